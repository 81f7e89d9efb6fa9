package ledger

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/tools/types"

	"shuttle-ticket/internal/status"
	"shuttle-ticket/models"
)

type activeTripRow struct {
	ID          string         `db:"id"`
	Status      string         `db:"status"`
	Origin      string         `db:"origin"`
	Destination string         `db:"destination"`
	VehicleID   sql.NullString `db:"vehicle_id"`
	StartTime   types.DateTime `db:"start_time"`
	CreatedAt   types.DateTime `db:"created_at"`
	Folio       string         `db:"folio"`
	PassengerID sql.NullString `db:"passenger_id"`
	GuestName   sql.NullString `db:"guest_name"`
	Plate       sql.NullString `db:"plate"`
}

func (r *activeTripRow) toModel() *models.ActiveTrip {
	started := r.CreatedAt.Time()
	if !r.StartTime.IsZero() {
		started = r.StartTime.Time()
	}
	return &models.ActiveTrip{
		ID:           r.ID,
		Status:       models.TripStatus(r.Status),
		Folio:        r.Folio,
		Origin:       r.Origin,
		Destination:  r.Destination,
		PassengerID:  stringPtr(r.PassengerID),
		GuestName:    stringPtr(r.GuestName),
		VehicleID:    stringPtr(r.VehicleID),
		VehiclePlate: r.Plate.String,
		StartTime:    started,
	}
}

// FindOperatorActiveTrip returns the operator's most recent open trip with its
// folio, holder and vehicle plate.
func (s *Store) FindOperatorActiveTrip(ctx context.Context, operatorID string) (*models.ActiveTrip, error) {
	var row activeTripRow
	err := s.builder(ctx).NewQuery(`
		SELECT trips.id, trips.status, trips.origin, trips.destination, trips.vehicle_id,
			trips.start_time, trips.created_at,
			tickets.folio, tickets.passenger_id, tickets.guest_name,
			vehicles.plate
		FROM trips
		INNER JOIN tickets ON tickets.id = trips.ticket_id
		LEFT JOIN vehicles ON vehicles.id = trips.vehicle_id
		WHERE trips.operator_id = {:operator}
			AND trips.status IN ({:assigned}, {:inProgress})
		ORDER BY trips.created_at DESC
		LIMIT 1`).
		Bind(dbx.Params{
			"operator":   operatorID,
			"assigned":   string(models.TripAssigned),
			"inProgress": string(models.TripInProgress),
		}).
		WithContext(ctx).
		One(&row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, status.ErrTripNotFound
	}
	if err != nil {
		return nil, translate(err)
	}
	return row.toModel(), nil
}

// CountCompletedTrips counts the operator's trips that ended at or after since.
func (s *Store) CountCompletedTrips(ctx context.Context, operatorID string, since time.Time) (int64, error) {
	var total int64
	err := s.builder(ctx).
		Select("COUNT(*)").
		From("trips").
		Where(dbx.And(
			dbx.HashExp{"operator_id": operatorID, "status": string(models.TripCompleted)},
			dbx.NewExp("end_time >= {:since}", dbx.Params{"since": dateTime(since)}),
		)).
		WithContext(ctx).
		Row(&total)
	if err != nil {
		return 0, translate(err)
	}
	return total, nil
}
