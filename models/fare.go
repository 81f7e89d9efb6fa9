package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Fare struct {
	ID            string          `json:"id"`
	Origin        string          `json:"origin"`
	Destination   string          `json:"destination"`
	Price         decimal.Decimal `json:"price"`
	Active        bool            `json:"active"`
	EffectiveFrom time.Time       `json:"effective_from"`
	EffectiveTo   *time.Time      `json:"effective_to,omitempty"`
}

// ActiveAt reports whether the fare can price a ticket at the given instant.
func (f *Fare) ActiveAt(at time.Time) bool {
	if !f.Active || at.Before(f.EffectiveFrom) {
		return false
	}
	return f.EffectiveTo == nil || at.Before(*f.EffectiveTo)
}

type Operator struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	LicenseNumber string    `json:"license_number"`
	Validated     bool      `json:"validated"`
	CompanyID     string    `json:"company_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type Vehicle struct {
	ID        string    `json:"id"`
	Plate     string    `json:"plate"`
	Model     string    `json:"model,omitempty"`
	CompanyID string    `json:"company_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
