package ledger

import (
	"context"
	"fmt"
)

// Timestamps are stored as TEXT in the pocketbase DateTime layout so that the
// same schema and comparisons work on SQLite and Postgres.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS fares (
		id             TEXT PRIMARY KEY,
		origin         TEXT NOT NULL,
		destination    TEXT NOT NULL,
		price          TEXT NOT NULL,
		active         BOOLEAN NOT NULL DEFAULT TRUE,
		effective_from TEXT NOT NULL,
		effective_to   TEXT,
		UNIQUE (origin, destination)
	)`,
	`CREATE TABLE IF NOT EXISTS operators (
		id             TEXT PRIMARY KEY,
		user_id        TEXT NOT NULL UNIQUE,
		license_number TEXT NOT NULL UNIQUE,
		validated      BOOLEAN NOT NULL DEFAULT FALSE,
		company_id     TEXT NOT NULL DEFAULT '',
		created_at     TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS vehicles (
		id         TEXT PRIMARY KEY,
		plate      TEXT NOT NULL UNIQUE,
		model      TEXT NOT NULL DEFAULT '',
		company_id TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS tickets (
		id                  TEXT PRIMARY KEY,
		folio               TEXT NOT NULL UNIQUE,
		price               TEXT NOT NULL,
		status              TEXT NOT NULL,
		sale_channel        TEXT NOT NULL,
		passenger_id        TEXT,
		guest_name          TEXT,
		payment_reference   TEXT NOT NULL DEFAULT '',
		fare_id             TEXT NOT NULL REFERENCES fares (id),
		created_at          TEXT NOT NULL,
		paid_at             TEXT,
		cancelled_at        TEXT,
		cancellation_reason TEXT NOT NULL DEFAULT '',
		refund_status       TEXT NOT NULL DEFAULT 'NONE',
		CHECK ((passenger_id IS NULL) <> (guest_name IS NULL))
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tickets_passenger ON tickets (passenger_id, status)`,
	`CREATE TABLE IF NOT EXISTS trips (
		id                  TEXT PRIMARY KEY,
		ticket_id           TEXT NOT NULL UNIQUE REFERENCES tickets (id),
		status              TEXT NOT NULL,
		origin              TEXT NOT NULL,
		destination         TEXT NOT NULL,
		operator_id         TEXT REFERENCES operators (id),
		vehicle_id          TEXT REFERENCES vehicles (id),
		start_time          TEXT,
		end_time            TEXT,
		current_lat         DOUBLE PRECISION,
		current_lng         DOUBLE PRECISION,
		location_updated_at TEXT,
		created_at          TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_trips_status ON trips (status)`,
	`CREATE INDEX IF NOT EXISTS idx_trips_operator ON trips (operator_id)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id            TEXT PRIMARY KEY,
		action        TEXT NOT NULL,
		resource_type TEXT NOT NULL,
		resource_id   TEXT NOT NULL,
		actor_id      TEXT NOT NULL DEFAULT '',
		metadata      TEXT NOT NULL DEFAULT '{}',
		created_at    TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_resource ON audit_logs (resource_type, resource_id)`,
}

// EnsureSchema creates the ledger tables if they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.WithinTransaction(ctx, func(ctx context.Context) error {
		b := s.builder(ctx)
		for _, stmt := range schema {
			if _, err := b.NewQuery(stmt).WithContext(ctx).Execute(); err != nil {
				return fmt.Errorf("ledger: ensure schema: %w", err)
			}
		}
		return nil
	})
}
