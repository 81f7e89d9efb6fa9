package models

import (
	"time"
)

const (
	AuditTicketIssued    = "TICKET_ISSUED"
	AuditTicketCancelled = "TICKET_CANCELLED"
	AuditTripStarted     = "TRIP_STARTED"
	AuditTripCompleted   = "TRIP_COMPLETED"
	AuditTripReaped      = "TRIP_REAPED"
)

const (
	ResourceTicket = "TICKET"
	ResourceTrip   = "TRIP"
)

// AuditEntry is an immutable record of an action taken on a resource.
type AuditEntry struct {
	ID           string         `json:"id"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id"`
	ActorID      string         `json:"actor_id,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// BoardingClaims is the payload carried by a boarding token.
type BoardingClaims struct {
	TicketID string `json:"ticketId"`
	Folio    string `json:"folio"`
}

// BoardingPass is a passenger's current ticket with a freshly signed token.
type BoardingPass struct {
	Ticket    *Ticket   `json:"ticket"`
	TripID    string    `json:"trip_id"`
	Token     string    `json:"qr_token"`
	ExpiresAt time.Time `json:"expires_at"`
}
