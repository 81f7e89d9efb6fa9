package models

import "time"

// OperatorDashboard is an operator's home screen: the trip they are on, if
// any, and how many trips they finished today.
type OperatorDashboard struct {
	OperatorID    string      `json:"operator_id"`
	LicenseNumber string      `json:"license_number"`
	TripsToday    int64       `json:"trips_today"`
	ActiveVehicle string      `json:"active_vehicle,omitempty"`
	CurrentTrip   *ActiveTrip `json:"current_trip"`
}

// ActiveTrip is an open trip joined with its ticket and vehicle. StartTime
// falls back to the creation time until the trip starts.
type ActiveTrip struct {
	ID           string     `json:"id"`
	Status       TripStatus `json:"status"`
	Folio        string     `json:"folio"`
	Origin       string     `json:"origin"`
	Destination  string     `json:"destination"`
	PassengerID  *string    `json:"passenger_id,omitempty"`
	GuestName    *string    `json:"guest_name,omitempty"`
	VehicleID    *string    `json:"vehicle_id,omitempty"`
	VehiclePlate string     `json:"vehicle_plate,omitempty"`
	StartTime    time.Time  `json:"start_time"`
}
