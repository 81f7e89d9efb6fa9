package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TicketStatus string

const (
	TicketPending   TicketStatus = "PENDING"
	TicketPaid      TicketStatus = "PAID"
	TicketValidated TicketStatus = "VALIDATED"
	TicketUsed      TicketStatus = "USED"
	TicketCancelled TicketStatus = "CANCELLED"
)

// IsTerminal reports whether no further transition is allowed.
func (s TicketStatus) IsTerminal() bool {
	return s == TicketUsed || s == TicketCancelled
}

// Boardable reports whether a ticket in this status can be consumed by a claim.
func (s TicketStatus) Boardable() bool {
	return s == TicketPaid || s == TicketValidated
}

type SaleChannel string

const (
	ChannelMobileApp SaleChannel = "MOBILE_APP"
	ChannelATMCard   SaleChannel = "ATM_CARD"
	ChannelCashier   SaleChannel = "CASHIER"
)

func (c SaleChannel) Valid() bool {
	switch c {
	case ChannelMobileApp, ChannelATMCard, ChannelCashier:
		return true
	}
	return false
}

type RefundStatus string

const (
	RefundNone      RefundStatus = "NONE"
	RefundPending   RefundStatus = "PENDING"
	RefundCompleted RefundStatus = "COMPLETED"
	RefundDenied    RefundStatus = "DENIED"
)

type Ticket struct {
	ID                 string          `json:"id"`
	Folio              string          `json:"folio"`
	Price              decimal.Decimal `json:"price"`
	Status             TicketStatus    `json:"status"`
	SaleChannel        SaleChannel     `json:"sale_channel"`
	PassengerID        *string         `json:"passenger_id,omitempty"`
	GuestName          *string         `json:"guest_name,omitempty"`
	PaymentReference   string          `json:"payment_reference,omitempty"`
	FareID             string          `json:"fare_id"`
	CreatedAt          time.Time       `json:"created_at"`
	PaidAt             *time.Time      `json:"paid_at,omitempty"`
	CancelledAt        *time.Time      `json:"cancelled_at,omitempty"`
	CancellationReason string          `json:"cancellation_reason,omitempty"`
	RefundStatus       RefundStatus    `json:"refund_status"`
}

// HolderValid reports whether exactly one of passenger and guest name is set.
func (t *Ticket) HolderValid() bool {
	hasPassenger := t.PassengerID != nil && *t.PassengerID != ""
	hasGuest := t.GuestName != nil && *t.GuestName != ""
	return hasPassenger != hasGuest
}

// TicketFilter narrows ticket listings. Zero values are ignored. From and To
// bound the creation time as [From, To).
type TicketFilter struct {
	Status      TicketStatus
	SaleChannel SaleChannel
	PassengerID string
	From        time.Time
	To          time.Time
	Page        int
	Limit       int
}

// Normalize clamps paging to sane bounds.
func (f *TicketFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 20
	}
}

// RefundInfo is the refund view of a ticket.
type RefundInfo struct {
	TicketID           string          `json:"ticket_id"`
	Folio              string          `json:"folio"`
	TicketStatus       TicketStatus    `json:"ticket_status"`
	RefundStatus       RefundStatus    `json:"refund_status"`
	Amount             decimal.Decimal `json:"amount"`
	CancelledAt        *time.Time      `json:"cancelled_at,omitempty"`
	CancellationReason string          `json:"cancellation_reason,omitempty"`
}

func (t *Ticket) Refund() *RefundInfo {
	return &RefundInfo{
		TicketID:           t.ID,
		Folio:              t.Folio,
		TicketStatus:       t.Status,
		RefundStatus:       t.RefundStatus,
		Amount:             t.Price,
		CancelledAt:        t.CancelledAt,
		CancellationReason: t.CancellationReason,
	}
}
