package services

import (
	"context"
	"time"

	"shuttle-ticket/internal/logger"
	"shuttle-ticket/models"
	"shuttle-ticket/monitoring"
)

const reapBatchSize = 100

type OrphanStore interface {
	FindOrphanedTrips(ctx context.Context, limit int) ([]*models.Trip, error)
	CancelOrphanedTrip(ctx context.Context, tripID string, at time.Time) (bool, error)
	AppendAudit(ctx context.Context, entry *models.AuditEntry) error
}

// Reaper cancels never-started trips whose ticket has been cancelled.
// Unclaimed trips with a live ticket are left alone.
type Reaper struct {
	store   OrphanStore
	audit   *AuditRecorder
	monitor *monitoring.Monitor
	log     logger.Logger
	now     func() time.Time
}

func NewReaper(store OrphanStore, monitor *monitoring.Monitor, log logger.Logger) *Reaper {
	return &Reaper{
		store:   store,
		audit:   NewAuditRecorder(store, log, monitor),
		monitor: monitor,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Sweep cancels orphaned trips in batches and returns how many it cancelled.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	reaped := 0
	for {
		trips, err := r.store.FindOrphanedTrips(ctx, reapBatchSize)
		if err != nil {
			return reaped, err
		}

		progress := false
		for _, trip := range trips {
			ok, err := r.store.CancelOrphanedTrip(ctx, trip.ID, r.now())
			if err != nil {
				return reaped, err
			}
			if !ok {
				// claimed or reaped concurrently
				continue
			}
			progress = true
			reaped++

			r.audit.Record(ctx, models.AuditEntry{
				Action:       models.AuditTripReaped,
				ResourceType: models.ResourceTrip,
				ResourceID:   trip.ID,
				Metadata:     map[string]any{"ticketId": trip.TicketID},
			})
			r.monitor.TrackTransition(models.TripCancelled)
		}

		if len(trips) < reapBatchSize || !progress {
			break
		}
	}

	if reaped > 0 {
		r.log.Info("orphaned trips reaped", "count", reaped)
	}
	return reaped, nil
}

// Run sweeps every interval until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil {
				r.log.Error("reaper sweep failed", "error", err)
			}
		}
	}
}
