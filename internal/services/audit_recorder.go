package services

import (
	"context"
	"time"

	"shuttle-ticket/internal/logger"
	"shuttle-ticket/models"
	"shuttle-ticket/monitoring"
)

const auditTimeout = 5 * time.Second

type AuditAppender interface {
	AppendAudit(ctx context.Context, entry *models.AuditEntry) error
}

// AuditRecorder appends audit entries on a best-effort basis. Failures are
// logged and counted but never reach the caller.
type AuditRecorder struct {
	store   AuditAppender
	log     logger.Logger
	monitor *monitoring.Monitor
}

func NewAuditRecorder(store AuditAppender, log logger.Logger, monitor *monitoring.Monitor) *AuditRecorder {
	return &AuditRecorder{store: store, log: log, monitor: monitor}
}

func (r *AuditRecorder) Record(ctx context.Context, entry models.AuditEntry) {
	// the request may already be finished when the entry is written
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()

	if err := r.store.AppendAudit(ctx, &entry); err != nil {
		r.log.Error("failed to append audit entry",
			"action", entry.Action,
			"resource_type", entry.ResourceType,
			"resource_id", entry.ResourceID,
			"error", err,
		)
		r.monitor.TrackAuditFailure(entry.Action)
	}
}
