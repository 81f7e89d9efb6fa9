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

// CreateFare stores a tariff. A second fare for the same route is a conflict.
func (s *Store) CreateFare(ctx context.Context, fare *models.Fare) error {
	if fare.ID == "" {
		fare.ID = uuid.NewString()
	}
	if fare.EffectiveFrom.IsZero() {
		fare.EffectiveFrom = time.Now().UTC()
	}

	_, err := s.builder(ctx).Insert("fares", dbx.Params{
		"id":             fare.ID,
		"origin":         fare.Origin,
		"destination":    fare.Destination,
		"price":          fare.Price.String(),
		"active":         fare.Active,
		"effective_from": dateTime(fare.EffectiveFrom),
		"effective_to":   nullTime(fare.EffectiveTo),
	}).WithContext(ctx).Execute()

	return translate(err, conflict{"origin", status.ErrDuplicateRoute})
}

// FindActiveFare returns the fare for the route if it is active at the given
// instant. Routes are unique, so at most one fare can match.
func (s *Store) FindActiveFare(ctx context.Context, origin, destination string, at time.Time) (*models.Fare, error) {
	var row fareRow
	err := s.builder(ctx).
		Select("*").
		From("fares").
		Where(dbx.HashExp{"origin": origin, "destination": destination}).
		WithContext(ctx).
		One(&row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, status.ErrNoActiveFare
	}
	if err != nil {
		return nil, translate(err)
	}

	fare := row.toModel()
	if !fare.ActiveAt(at) {
		return nil, status.ErrNoActiveFare
	}
	return fare, nil
}

// SetFareActive toggles the active flag of a route's fare.
func (s *Store) SetFareActive(ctx context.Context, fareID string, active bool) error {
	res, err := s.builder(ctx).Update("fares",
		dbx.Params{"active": active},
		dbx.HashExp{"id": fareID},
	).WithContext(ctx).Execute()
	if err != nil {
		return translate(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return status.ErrFareNotFound
	}
	return nil
}
