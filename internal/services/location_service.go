package services

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"shuttle-ticket/internal/logger"
	"shuttle-ticket/internal/status"
	"shuttle-ticket/models"
	"shuttle-ticket/monitoring"
)

type LocationStore interface {
	UpdateTripLocation(ctx context.Context, tripID, operatorID string, lat, lng float64, at time.Time) (bool, error)
	FindTrip(ctx context.Context, id string) (*models.Trip, error)
	FindOperatorByUserID(ctx context.Context, userID string) (*models.Operator, error)
}

// LocationService records vehicle positions and relays them to trip
// subscribers. Updates are accepted whatever the trip status, from operators
// and superusers only.
type LocationService struct {
	store    LocationStore
	notifier *Notifier
	monitor  *monitoring.Monitor
	log      logger.Logger
	now      func() time.Time
}

func NewLocationService(store LocationStore, notifier *Notifier, monitor *monitoring.Monitor, log logger.Logger) *LocationService {
	if notifier == nil {
		notifier = NewNotifier(nil, 0, log, monitor)
	}
	return &LocationService{
		store:    store,
		notifier: notifier,
		monitor:  monitor,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Wait blocks until pending broadcasts are delivered or have failed.
func (s *LocationService) Wait() {
	s.notifier.Wait()
}

func validateCoordinates(lat, lng float64) error {
	err := validation.Errors{
		"lat": validation.Validate(lat, validation.Min(-90.0), validation.Max(90.0)),
		"lng": validation.Validate(lng, validation.Min(-180.0), validation.Max(180.0)),
	}.Filter()
	if err != nil {
		return status.Validation("%v", err)
	}
	return nil
}

func (s *LocationService) Report(ctx context.Context, tripID string, lat, lng float64, actor Actor) (*models.Trip, error) {
	if err := validateCoordinates(lat, lng); err != nil {
		return nil, err
	}

	trip, err := s.store.FindTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}
	operatorID, err := authorizeTripOperator(ctx, s.store, trip, actor)
	if err != nil {
		return nil, err
	}

	now := s.now()
	ok, err := s.store.UpdateTripLocation(ctx, tripID, operatorID, lat, lng, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		// claimed by another operator since the read
		return nil, status.ErrNotTripOperator
	}

	trip, err = s.store.FindTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(models.TripTopic(tripID), models.EventLocationUpdate, models.LocationUpdate{
		TripID:    tripID,
		Lat:       lat,
		Lng:       lng,
		Timestamp: now,
	})
	s.monitor.TrackLocationUpdate()
	s.log.Debug("location updated", "trip_id", tripID, "lat", lat, "lng", lng)

	return trip, nil
}
