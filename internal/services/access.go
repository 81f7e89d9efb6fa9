package services

import (
	"context"
	"errors"

	"shuttle-ticket/internal/status"
	"shuttle-ticket/models"
)

// Actor is the authenticated caller of a trip operation.
type Actor struct {
	UserID    string
	Superuser bool
}

type operatorFinder interface {
	FindOperatorByUserID(ctx context.Context, userID string) (*models.Operator, error)
}

// authorizeTripOperator lets superusers act on any trip and operators act on
// trips that are unclaimed or claimed by them. It returns the operator id the
// write must be guarded with, empty for superusers.
func authorizeTripOperator(ctx context.Context, ops operatorFinder, trip *models.Trip, actor Actor) (string, error) {
	if actor.Superuser {
		return "", nil
	}

	op, err := ops.FindOperatorByUserID(ctx, actor.UserID)
	if errors.Is(err, status.ErrOperatorNotRegistered) {
		return "", status.ErrNotAnOperator
	}
	if err != nil {
		return "", err
	}
	if trip.Claimed() && !trip.ClaimedBy(op.ID) {
		return "", status.ErrNotTripOperator
	}
	return op.ID, nil
}
