package ledger

import (
	"database/sql"
	"time"

	"github.com/pocketbase/pocketbase/tools/types"
	"github.com/shopspring/decimal"

	"shuttle-ticket/models"
)

type fareRow struct {
	ID            string          `db:"id"`
	Origin        string          `db:"origin"`
	Destination   string          `db:"destination"`
	Price         decimal.Decimal `db:"price"`
	Active        bool            `db:"active"`
	EffectiveFrom types.DateTime  `db:"effective_from"`
	EffectiveTo   types.DateTime  `db:"effective_to"`
}

func (r *fareRow) toModel() *models.Fare {
	return &models.Fare{
		ID:            r.ID,
		Origin:        r.Origin,
		Destination:   r.Destination,
		Price:         r.Price,
		Active:        r.Active,
		EffectiveFrom: r.EffectiveFrom.Time(),
		EffectiveTo:   timePtr(r.EffectiveTo),
	}
}

type operatorRow struct {
	ID            string         `db:"id"`
	UserID        string         `db:"user_id"`
	LicenseNumber string         `db:"license_number"`
	Validated     bool           `db:"validated"`
	CompanyID     string         `db:"company_id"`
	CreatedAt     types.DateTime `db:"created_at"`
}

func (r *operatorRow) toModel() *models.Operator {
	return &models.Operator{
		ID:            r.ID,
		UserID:        r.UserID,
		LicenseNumber: r.LicenseNumber,
		Validated:     r.Validated,
		CompanyID:     r.CompanyID,
		CreatedAt:     r.CreatedAt.Time(),
	}
}

type vehicleRow struct {
	ID        string         `db:"id"`
	Plate     string         `db:"plate"`
	Model     string         `db:"model"`
	CompanyID string         `db:"company_id"`
	CreatedAt types.DateTime `db:"created_at"`
}

func (r *vehicleRow) toModel() *models.Vehicle {
	return &models.Vehicle{
		ID:        r.ID,
		Plate:     r.Plate,
		Model:     r.Model,
		CompanyID: r.CompanyID,
		CreatedAt: r.CreatedAt.Time(),
	}
}

type ticketRow struct {
	ID                 string          `db:"id"`
	Folio              string          `db:"folio"`
	Price              decimal.Decimal `db:"price"`
	Status             string          `db:"status"`
	SaleChannel        string          `db:"sale_channel"`
	PassengerID        sql.NullString  `db:"passenger_id"`
	GuestName          sql.NullString  `db:"guest_name"`
	PaymentReference   string          `db:"payment_reference"`
	FareID             string          `db:"fare_id"`
	CreatedAt          types.DateTime  `db:"created_at"`
	PaidAt             types.DateTime  `db:"paid_at"`
	CancelledAt        types.DateTime  `db:"cancelled_at"`
	CancellationReason string          `db:"cancellation_reason"`
	RefundStatus       string          `db:"refund_status"`
}

func (r *ticketRow) toModel() *models.Ticket {
	return &models.Ticket{
		ID:                 r.ID,
		Folio:              r.Folio,
		Price:              r.Price,
		Status:             models.TicketStatus(r.Status),
		SaleChannel:        models.SaleChannel(r.SaleChannel),
		PassengerID:        stringPtr(r.PassengerID),
		GuestName:          stringPtr(r.GuestName),
		PaymentReference:   r.PaymentReference,
		FareID:             r.FareID,
		CreatedAt:          r.CreatedAt.Time(),
		PaidAt:             timePtr(r.PaidAt),
		CancelledAt:        timePtr(r.CancelledAt),
		CancellationReason: r.CancellationReason,
		RefundStatus:       models.RefundStatus(r.RefundStatus),
	}
}

type tripRow struct {
	ID                string          `db:"id"`
	TicketID          string          `db:"ticket_id"`
	Status            string          `db:"status"`
	Origin            string          `db:"origin"`
	Destination       string          `db:"destination"`
	OperatorID        sql.NullString  `db:"operator_id"`
	VehicleID         sql.NullString  `db:"vehicle_id"`
	StartTime         types.DateTime  `db:"start_time"`
	EndTime           types.DateTime  `db:"end_time"`
	CurrentLat        sql.NullFloat64 `db:"current_lat"`
	CurrentLng        sql.NullFloat64 `db:"current_lng"`
	LocationUpdatedAt types.DateTime  `db:"location_updated_at"`
	CreatedAt         types.DateTime  `db:"created_at"`
}

func (r *tripRow) toModel() *models.Trip {
	return &models.Trip{
		ID:                r.ID,
		TicketID:          r.TicketID,
		Status:            models.TripStatus(r.Status),
		Origin:            r.Origin,
		Destination:       r.Destination,
		OperatorID:        stringPtr(r.OperatorID),
		VehicleID:         stringPtr(r.VehicleID),
		StartTime:         timePtr(r.StartTime),
		EndTime:           timePtr(r.EndTime),
		CurrentLat:        floatPtr(r.CurrentLat),
		CurrentLng:        floatPtr(r.CurrentLng),
		LocationUpdatedAt: timePtr(r.LocationUpdatedAt),
		CreatedAt:         r.CreatedAt.Time(),
	}
}

type auditRow struct {
	ID           string             `db:"id"`
	Action       string             `db:"action"`
	ResourceType string             `db:"resource_type"`
	ResourceID   string             `db:"resource_id"`
	ActorID      string             `db:"actor_id"`
	Metadata     types.JSONMap[any] `db:"metadata"`
	CreatedAt    types.DateTime     `db:"created_at"`
}

func (r *auditRow) toModel() *models.AuditEntry {
	return &models.AuditEntry{
		ID:           r.ID,
		Action:       r.Action,
		ResourceType: r.ResourceType,
		ResourceID:   r.ResourceID,
		ActorID:      r.ActorID,
		Metadata:     map[string]any(r.Metadata),
		CreatedAt:    r.CreatedAt.Time(),
	}
}

// dateTime formats t in the layout used by every timestamp column.
func dateTime(t time.Time) string {
	dt, _ := types.ParseDateTime(t)
	return dt.String()
}

func nullTime(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return dateTime(*t)
}

func nullString(s *string) any {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid || s.String == "" {
		return nil
	}
	v := s.String
	return &v
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

func timePtr(dt types.DateTime) *time.Time {
	if dt.IsZero() {
		return nil
	}
	t := dt.Time()
	return &t
}
