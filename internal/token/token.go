// Package token issues and verifies short-lived boarding tokens.
//
// A boarding token is an HS256 JWT carrying the ticket id and folio. It is
// never stored: validity is signature plus expiry, checked at scan time.
// Replays inside the expiry window are expected and must be rejected by the
// claim logic, not here.
package token

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"

	"shuttle-ticket/internal/status"
	"shuttle-ticket/models"
)

const (
	DefaultTTL = 60 * time.Second
	keySize    = 32
)

var hkdfInfo = []byte("boarding-token")

var ErrEmptySecret = errors.New("token: signing secret is empty")

type claims struct {
	TicketID string `json:"ticketId"`
	Folio    string `json:"folio"`
	jwt.RegisteredClaims
}

type Issuer struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

type Option func(*Issuer)

// WithClock overrides the time source used for issuing and verifying.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

// NewIssuer derives the signing key from secret. A non-positive ttl uses
// DefaultTTL.
func NewIssuer(secret []byte, ttl time.Duration, opts ...Option) (*Issuer, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	key := make([]byte, keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, hkdfInfo), key); err != nil {
		return nil, fmt.Errorf("token: derive signing key: %w", err)
	}

	i := &Issuer{key: key, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

func (i *Issuer) TTL() time.Duration { return i.ttl }

// Issue signs a boarding token for the ticket and returns it with its expiry.
func (i *Issuer) Issue(ticketID, folio string) (string, time.Time, error) {
	now := i.now()
	expiresAt := now.Add(i.ttl)

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		TicketID: ticketID,
		Folio:    folio,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})

	signed, err := tok.SignedString(i.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("token: sign: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify checks the token against the issuer clock.
func (i *Issuer) Verify(raw string) (*models.BoardingClaims, error) {
	return i.VerifyAt(raw, i.now())
}

// VerifyAt checks signature, algorithm and expiry as of now. Every failure
// is reported as status.ErrInvalidOrExpiredToken.
func (i *Issuer) VerifyAt(raw string, now time.Time) (*models.BoardingClaims, error) {
	var c claims
	_, err := jwt.ParseWithClaims(raw, &c,
		func(*jwt.Token) (any, error) { return i.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", status.ErrInvalidOrExpiredToken, err)
	}
	if c.TicketID == "" {
		return nil, status.ErrInvalidOrExpiredToken
	}

	return &models.BoardingClaims{TicketID: c.TicketID, Folio: c.Folio}, nil
}
