package models

import (
	"time"
)

type TripStatus string

const (
	TripAssigned   TripStatus = "ASSIGNED"
	TripInProgress TripStatus = "IN_PROGRESS"
	TripCompleted  TripStatus = "COMPLETED"
	TripCancelled  TripStatus = "CANCELLED"
)

func (s TripStatus) IsTerminal() bool {
	return s == TripCompleted || s == TripCancelled
}

type Trip struct {
	ID                string     `json:"id"`
	TicketID          string     `json:"ticket_id"`
	Status            TripStatus `json:"status"`
	Origin            string     `json:"origin"`
	Destination       string     `json:"destination"`
	OperatorID        *string    `json:"operator_id,omitempty"`
	VehicleID         *string    `json:"vehicle_id,omitempty"`
	StartTime         *time.Time `json:"start_time,omitempty"`
	EndTime           *time.Time `json:"end_time,omitempty"`
	CurrentLat        *float64   `json:"current_lat,omitempty"`
	CurrentLng        *float64   `json:"current_lng,omitempty"`
	LocationUpdatedAt *time.Time `json:"location_updated_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// Claimed reports whether an operator has been bound to the trip.
func (t *Trip) Claimed() bool {
	return t.OperatorID != nil && *t.OperatorID != ""
}

// ClaimedBy reports whether the trip is bound to the given operator.
func (t *Trip) ClaimedBy(operatorID string) bool {
	return t.Claimed() && *t.OperatorID == operatorID
}

// Broadcast event names published on a trip topic.
const (
	EventTripStarted    = "tripStarted"
	EventTripCompleted  = "tripCompleted"
	EventLocationUpdate = "locationUpdate"
)

// TripTopic is the broadcast topic for a single trip.
func TripTopic(tripID string) string {
	return "trip:" + tripID
}

type LocationUpdate struct {
	TripID    string    `json:"tripId"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Timestamp time.Time `json:"timestamp"`
}

type TripEvent struct {
	TripID     string     `json:"tripId"`
	TicketID   string     `json:"ticketId"`
	Status     TripStatus `json:"status"`
	OperatorID string     `json:"operatorId,omitempty"`
	At         time.Time  `json:"at"`
}

// TripFilter narrows trip listings. From and To bound the start time as
// [From, To).
type TripFilter struct {
	Status     TripStatus
	OperatorID string
	From       time.Time
	To         time.Time
	Page       int
	Limit      int
}

func (f *TripFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 10
	}
}
