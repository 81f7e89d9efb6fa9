package ledger

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pocketbase/dbx"

	"shuttle-ticket/internal/status"
	"shuttle-ticket/models"
)

func (s *Store) CreateTrip(ctx context.Context, t *models.Trip) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	_, err := s.builder(ctx).Insert("trips", dbx.Params{
		"id":          t.ID,
		"ticket_id":   t.TicketID,
		"status":      string(t.Status),
		"origin":      t.Origin,
		"destination": t.Destination,
		"operator_id": nullString(t.OperatorID),
		"vehicle_id":  nullString(t.VehicleID),
		"start_time":  nullTime(t.StartTime),
		"end_time":    nullTime(t.EndTime),
		"created_at":  dateTime(t.CreatedAt),
	}).WithContext(ctx).Execute()

	return translate(err)
}

func (s *Store) FindTrip(ctx context.Context, id string) (*models.Trip, error) {
	return s.findTrip(ctx, dbx.HashExp{"id": id})
}

// FindTripByTicket returns the trip paired with a ticket, whatever its status.
func (s *Store) FindTripByTicket(ctx context.Context, ticketID string) (*models.Trip, error) {
	return s.findTrip(ctx, dbx.HashExp{"ticket_id": ticketID})
}

func (s *Store) findTrip(ctx context.Context, where dbx.Expression) (*models.Trip, error) {
	var row tripRow
	err := s.builder(ctx).
		Select("*").
		From("trips").
		Where(where).
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

// ClaimTrip binds the operator (and optional vehicle) to an ASSIGNED trip and
// moves it to IN_PROGRESS. It is a compare-and-swap: the update applies only
// while the trip is still ASSIGNED and unbound or bound to the same operator.
func (s *Store) ClaimTrip(ctx context.Context, tripID, operatorID string, vehicleID *string, at time.Time) (bool, error) {
	res, err := s.builder(ctx).NewQuery(`
		UPDATE trips
		SET operator_id = {:operator},
			vehicle_id = COALESCE({:vehicle}, vehicle_id),
			status = {:inProgress},
			start_time = {:at}
		WHERE id = {:id}
			AND status = {:assigned}
			AND (operator_id IS NULL OR operator_id = {:operator})`).
		Bind(dbx.Params{
			"id":         tripID,
			"operator":   operatorID,
			"vehicle":    nullString(vehicleID),
			"inProgress": string(models.TripInProgress),
			"assigned":   string(models.TripAssigned),
			"at":         dateTime(at),
		}).
		WithContext(ctx).
		Execute()
	return applied(res, err)
}

// CompleteTrip closes an IN_PROGRESS trip. A non-empty operatorID further
// requires the trip to be claimed by that operator.
func (s *Store) CompleteTrip(ctx context.Context, tripID, operatorID string, at time.Time) (bool, error) {
	where := dbx.HashExp{"id": tripID, "status": string(models.TripInProgress)}
	if operatorID != "" {
		where["operator_id"] = operatorID
	}

	res, err := s.builder(ctx).Update("trips",
		dbx.Params{
			"status":   string(models.TripCompleted),
			"end_time": dateTime(at),
		},
		where,
	).WithContext(ctx).Execute()
	return applied(res, err)
}

// UpdateTripLocation stores the latest position regardless of trip status.
// A non-empty operatorID rejects trips claimed by someone else.
func (s *Store) UpdateTripLocation(ctx context.Context, tripID, operatorID string, lat, lng float64, at time.Time) (bool, error) {
	var where dbx.Expression = dbx.HashExp{"id": tripID}
	if operatorID != "" {
		where = dbx.And(where, dbx.Or(
			dbx.NewExp("operator_id IS NULL"),
			dbx.HashExp{"operator_id": operatorID},
		))
	}

	res, err := s.builder(ctx).Update("trips",
		dbx.Params{
			"current_lat":         lat,
			"current_lng":         lng,
			"location_updated_at": dateTime(at),
		},
		where,
	).WithContext(ctx).Execute()
	return applied(res, err)
}

const passengerTripsFrom = `
	FROM trips
	INNER JOIN tickets ON tickets.id = trips.ticket_id
	WHERE tickets.passenger_id = {:passenger}`

// FindCurrentTrip returns the passenger's trip that is in progress.
func (s *Store) FindCurrentTrip(ctx context.Context, passengerID string) (*models.Trip, error) {
	var row tripRow
	err := s.builder(ctx).NewQuery(`SELECT trips.*` + passengerTripsFrom + `
			AND trips.status = {:inProgress}
		ORDER BY trips.start_time DESC
		LIMIT 1`).
		Bind(dbx.Params{
			"passenger":  passengerID,
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

// ListPassengerTrips returns every trip of the passenger, newest first.
func (s *Store) ListPassengerTrips(ctx context.Context, passengerID string, page, limit int) ([]*models.Trip, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	params := dbx.Params{"passenger": passengerID}

	var total int64
	err := s.builder(ctx).NewQuery(`SELECT COUNT(*)` + passengerTripsFrom).
		Bind(params).
		WithContext(ctx).
		Row(&total)
	if err != nil {
		return nil, 0, translate(err)
	}

	params["limit"] = limit
	params["offset"] = (page - 1) * limit

	var rows []tripRow
	err = s.builder(ctx).NewQuery(`SELECT trips.*` + passengerTripsFrom + `
		ORDER BY trips.created_at DESC, trips.id
		LIMIT {:limit} OFFSET {:offset}`).
		Bind(params).
		WithContext(ctx).
		All(&rows)
	if err != nil {
		return nil, 0, translate(err)
	}

	trips := make([]*models.Trip, 0, len(rows))
	for i := range rows {
		trips = append(trips, rows[i].toModel())
	}
	return trips, total, nil
}

// FindOrphanedTrips returns never-started ASSIGNED trips whose ticket has been
// cancelled.
func (s *Store) FindOrphanedTrips(ctx context.Context, limit int) ([]*models.Trip, error) {
	var rows []tripRow
	err := s.builder(ctx).NewQuery(`
		SELECT trips.*
		FROM trips
		INNER JOIN tickets ON tickets.id = trips.ticket_id
		WHERE trips.status = {:assigned}
			AND trips.start_time IS NULL
			AND tickets.status = {:cancelled}
		ORDER BY trips.created_at
		LIMIT {:limit}`).
		Bind(dbx.Params{
			"assigned":  string(models.TripAssigned),
			"cancelled": string(models.TicketCancelled),
			"limit":     limit,
		}).
		WithContext(ctx).
		All(&rows)
	if err != nil {
		return nil, translate(err)
	}

	trips := make([]*models.Trip, 0, len(rows))
	for i := range rows {
		trips = append(trips, rows[i].toModel())
	}
	return trips, nil
}

// CancelOrphanedTrip cancels a trip that was never claimed.
func (s *Store) CancelOrphanedTrip(ctx context.Context, tripID string, at time.Time) (bool, error) {
	res, err := s.builder(ctx).NewQuery(`
		UPDATE trips
		SET status = {:cancelled}, end_time = {:at}
		WHERE id = {:id} AND status = {:assigned} AND start_time IS NULL`).
		Bind(dbx.Params{
			"id":        tripID,
			"cancelled": string(models.TripCancelled),
			"assigned":  string(models.TripAssigned),
			"at":        dateTime(at),
		}).
		WithContext(ctx).
		Execute()
	return applied(res, err)
}

// ListTrips returns one page of trips matching the filter, newest first.
func (s *Store) ListTrips(ctx context.Context, filter models.TripFilter) ([]*models.Trip, int64, error) {
	filter.Normalize()

	var exps []dbx.Expression
	if filter.Status != "" {
		exps = append(exps, dbx.HashExp{"status": string(filter.Status)})
	}
	if filter.OperatorID != "" {
		exps = append(exps, dbx.HashExp{"operator_id": filter.OperatorID})
	}
	if !filter.From.IsZero() {
		exps = append(exps, dbx.NewExp("start_time >= {:from}", dbx.Params{"from": dateTime(filter.From)}))
	}
	if !filter.To.IsZero() {
		exps = append(exps, dbx.NewExp("start_time < {:to}", dbx.Params{"to": dateTime(filter.To)}))
	}
	where := dbx.And(exps...)

	var total int64
	err := s.builder(ctx).
		Select("COUNT(*)").
		From("trips").
		Where(where).
		WithContext(ctx).
		Row(&total)
	if err != nil {
		return nil, 0, translate(err)
	}

	var rows []tripRow
	err = s.builder(ctx).
		Select("*").
		From("trips").
		Where(where).
		OrderBy("created_at DESC", "id").
		Offset(int64((filter.Page - 1) * filter.Limit)).
		Limit(int64(filter.Limit)).
		WithContext(ctx).
		All(&rows)
	if err != nil {
		return nil, 0, translate(err)
	}

	trips := make([]*models.Trip, 0, len(rows))
	for i := range rows {
		trips = append(trips, rows[i].toModel())
	}
	return trips, total, nil
}
