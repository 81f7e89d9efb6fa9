package handlers

import (
	"errors"
	"net/http"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"shuttle-ticket/internal/services"
	"shuttle-ticket/internal/status"
)

// apiError maps a service error onto an HTTP error response.
func apiError(err error) error {
	msg := err.Error()
	switch {
	case errors.Is(err, status.ErrValidation):
		return apis.NewBadRequestError(msg, nil)
	case errors.Is(err, status.ErrInvalidToken):
		return apis.NewBadRequestError(msg, nil)
	case errors.Is(err, status.ErrNotFound):
		return apis.NewNotFoundError(msg, nil)
	case errors.Is(err, status.ErrForbidden):
		return apis.NewForbiddenError(msg, nil)
	case errors.Is(err, status.ErrConflict), errors.Is(err, status.ErrPreconditionFailed):
		return apis.NewApiError(http.StatusConflict, msg, nil)
	case errors.Is(err, status.ErrTransientStore):
		return apis.NewApiError(http.StatusServiceUnavailable, "Service temporarily unavailable, please retry", nil)
	}
	return apis.NewInternalServerError("Something went wrong", nil)
}

func authID(e *core.RequestEvent) (string, error) {
	if e.Auth == nil {
		return "", apis.NewUnauthorizedError("Unauthorized", nil)
	}
	return e.Auth.Id, nil
}

func actor(e *core.RequestEvent) (services.Actor, error) {
	userID, err := authID(e)
	if err != nil {
		return services.Actor{}, err
	}
	return services.Actor{UserID: userID, Superuser: e.HasSuperuserAuth()}, nil
}
