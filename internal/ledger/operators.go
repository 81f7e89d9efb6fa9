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

func (s *Store) CreateOperator(ctx context.Context, op *models.Operator) error {
	if op.ID == "" {
		op.ID = uuid.NewString()
	}
	if op.CreatedAt.IsZero() {
		op.CreatedAt = time.Now().UTC()
	}

	_, err := s.builder(ctx).Insert("operators", dbx.Params{
		"id":             op.ID,
		"user_id":        op.UserID,
		"license_number": op.LicenseNumber,
		"validated":      op.Validated,
		"company_id":     op.CompanyID,
		"created_at":     dateTime(op.CreatedAt),
	}).WithContext(ctx).Execute()

	return translate(err,
		conflict{"license_number", status.ErrDuplicateLicense},
		conflict{"user_id", status.ErrDuplicateOperatorUser},
	)
}

// FindOperatorByUserID resolves the operator profile of an authenticated user.
func (s *Store) FindOperatorByUserID(ctx context.Context, userID string) (*models.Operator, error) {
	var row operatorRow
	err := s.builder(ctx).
		Select("*").
		From("operators").
		Where(dbx.HashExp{"user_id": userID}).
		WithContext(ctx).
		One(&row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, status.ErrOperatorNotRegistered
	}
	if err != nil {
		return nil, translate(err)
	}
	return row.toModel(), nil
}

func (s *Store) CreateVehicle(ctx context.Context, v *models.Vehicle) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}

	_, err := s.builder(ctx).Insert("vehicles", dbx.Params{
		"id":         v.ID,
		"plate":      v.Plate,
		"model":      v.Model,
		"company_id": v.CompanyID,
		"created_at": dateTime(v.CreatedAt),
	}).WithContext(ctx).Execute()

	return translate(err, conflict{"plate", status.ErrDuplicatePlate})
}

func (s *Store) FindVehicle(ctx context.Context, id string) (*models.Vehicle, error) {
	var row vehicleRow
	err := s.builder(ctx).
		Select("*").
		From("vehicles").
		Where(dbx.HashExp{"id": id}).
		WithContext(ctx).
		One(&row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, status.ErrVehicleNotFound
	}
	if err != nil {
		return nil, translate(err)
	}
	return row.toModel(), nil
}
