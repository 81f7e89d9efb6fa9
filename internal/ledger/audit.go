package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/tools/types"

	"shuttle-ticket/models"
)

func (s *Store) AppendAudit(ctx context.Context, entry *models.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	metadata := types.JSONMap[any]{}
	for k, v := range entry.Metadata {
		metadata[k] = v
	}

	_, err := s.builder(ctx).Insert("audit_logs", dbx.Params{
		"id":            entry.ID,
		"action":        entry.Action,
		"resource_type": entry.ResourceType,
		"resource_id":   entry.ResourceID,
		"actor_id":      entry.ActorID,
		"metadata":      metadata,
		"created_at":    dateTime(entry.CreatedAt),
	}).WithContext(ctx).Execute()

	return translate(err)
}

// AuditTrail lists the entries recorded for a resource, oldest first.
func (s *Store) AuditTrail(ctx context.Context, resourceType, resourceID string) ([]*models.AuditEntry, error) {
	var rows []auditRow
	err := s.builder(ctx).
		Select("*").
		From("audit_logs").
		Where(dbx.HashExp{"resource_type": resourceType, "resource_id": resourceID}).
		OrderBy("created_at", "id").
		WithContext(ctx).
		All(&rows)
	if err != nil {
		return nil, translate(err)
	}

	entries := make([]*models.AuditEntry, 0, len(rows))
	for i := range rows {
		entries = append(entries, rows[i].toModel())
	}
	return entries, nil
}
