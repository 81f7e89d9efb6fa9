package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shuttle-ticket/internal/status"
	"shuttle-ticket/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "ledger.db") + "?_pragma=synchronous(OFF)"
	store, err := Open(DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.EnsureSchema(context.Background()))
	return store
}

func seedFare(t *testing.T, s *Store, origin, destination, price string) *models.Fare {
	t.Helper()

	fare := &models.Fare{
		Origin:        origin,
		Destination:   destination,
		Price:         decimal.RequireFromString(price),
		Active:        true,
		EffectiveFrom: time.Now().Add(-time.Hour).UTC(),
	}
	require.NoError(t, s.CreateFare(context.Background(), fare))
	return fare
}

func seedOperator(t *testing.T, s *Store, userID string) *models.Operator {
	t.Helper()

	op := &models.Operator{UserID: userID, LicenseNumber: "LIC-" + userID, Validated: true}
	require.NoError(t, s.CreateOperator(context.Background(), op))
	return op
}

// seedTicketTrip stores a PAID ticket and its ASSIGNED trip.
func seedTicketTrip(t *testing.T, s *Store, fare *models.Fare, folio, passengerID string) (*models.Ticket, *models.Trip) {
	t.Helper()

	now := time.Now().UTC()
	ticket := &models.Ticket{
		Folio:            folio,
		Price:            fare.Price,
		Status:           models.TicketPaid,
		SaleChannel:      models.ChannelMobileApp,
		PassengerID:      &passengerID,
		PaymentReference: "pay-" + folio,
		FareID:           fare.ID,
		PaidAt:           &now,
	}
	trip := &models.Trip{
		Status:      models.TripAssigned,
		Origin:      fare.Origin,
		Destination: fare.Destination,
	}

	err := s.WithinTransaction(context.Background(), func(ctx context.Context) error {
		if err := s.CreateTicket(ctx, ticket); err != nil {
			return err
		}
		trip.TicketID = ticket.ID
		return s.CreateTrip(ctx, trip)
	})
	require.NoError(t, err)
	return ticket, trip
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open("mysql", "whatever")
	assert.Error(t, err)
}

func TestWithSQLitePragmas(t *testing.T) {
	assert.Equal(t,
		"a.db?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)",
		withSQLitePragmas("a.db"),
	)
	assert.Equal(t,
		"a.db?_pragma=busy_timeout(500)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)",
		withSQLitePragmas("a.db?_pragma=busy_timeout(500)"),
	)
}

func TestEnsureSchema_Idempotent(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.EnsureSchema(context.Background()))
	assert.NoError(t, s.Ping(context.Background()))
}

func TestWithinTransaction_RollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	fare := seedFare(t, s, "A", "B", "45.00")

	guest := "Walk-in"
	ticket := &models.Ticket{
		Folio:       "OMA-2025-ROLLBACK",
		Price:       fare.Price,
		Status:      models.TicketPaid,
		SaleChannel: models.ChannelCashier,
		GuestName:   &guest,
		FareID:      fare.ID,
	}
	boom := errors.New("boom")

	err := s.WithinTransaction(ctx, func(ctx context.Context) error {
		require.NoError(t, s.CreateTicket(ctx, ticket))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.FindTicket(ctx, ticket.ID)
	assert.ErrorIs(t, err, status.ErrTicketNotFound)
}

func TestWithinTransaction_Nested(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.WithinTransaction(ctx, func(outer context.Context) error {
		return s.WithinTransaction(outer, func(inner context.Context) error {
			assert.Equal(t, s.builder(outer), s.builder(inner))
			return nil
		})
	})
	assert.NoError(t, err)
}

func TestFares(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	fare := seedFare(t, s, "A", "B", "45.00")

	t.Run("duplicate route", func(t *testing.T) {
		dup := &models.Fare{Origin: "A", Destination: "B", Price: decimal.NewFromInt(1), Active: true}
		err := s.CreateFare(ctx, dup)
		assert.ErrorIs(t, err, status.ErrDuplicateRoute)
		assert.ErrorIs(t, err, status.ErrConflict)
	})

	t.Run("active fare found", func(t *testing.T) {
		got, err := s.FindActiveFare(ctx, "A", "B", now)
		require.NoError(t, err)
		assert.Equal(t, fare.ID, got.ID)
		assert.True(t, decimal.RequireFromString("45.00").Equal(got.Price))
	})

	t.Run("unknown route", func(t *testing.T) {
		_, err := s.FindActiveFare(ctx, "B", "A", now)
		assert.ErrorIs(t, err, status.ErrNoActiveFare)
		assert.ErrorIs(t, err, status.ErrNotFound)
	})

	t.Run("inactive fare", func(t *testing.T) {
		require.NoError(t, s.SetFareActive(ctx, fare.ID, false))
		_, err := s.FindActiveFare(ctx, "A", "B", now)
		assert.ErrorIs(t, err, status.ErrNoActiveFare)
		require.NoError(t, s.SetFareActive(ctx, fare.ID, true))
	})

	t.Run("toggle unknown fare", func(t *testing.T) {
		err := s.SetFareActive(ctx, "missing", false)
		assert.ErrorIs(t, err, status.ErrFareNotFound)
		assert.ErrorIs(t, err, status.ErrNotFound)
	})

	t.Run("outside validity window", func(t *testing.T) {
		end := now.Add(-time.Minute)
		expired := &models.Fare{
			Origin:        "C",
			Destination:   "D",
			Price:         decimal.NewFromInt(10),
			Active:        true,
			EffectiveFrom: now.Add(-time.Hour),
			EffectiveTo:   &end,
		}
		require.NoError(t, s.CreateFare(ctx, expired))

		_, err := s.FindActiveFare(ctx, "C", "D", now)
		assert.ErrorIs(t, err, status.ErrNoActiveFare)
	})
}

func TestOperatorsAndVehicles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	op := seedOperator(t, s, "user-1")

	got, err := s.FindOperatorByUserID(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, op.ID, got.ID)
	assert.True(t, got.Validated)

	_, err = s.FindOperatorByUserID(ctx, "user-404")
	assert.ErrorIs(t, err, status.ErrOperatorNotRegistered)

	err = s.CreateOperator(ctx, &models.Operator{UserID: "user-2", LicenseNumber: op.LicenseNumber})
	assert.ErrorIs(t, err, status.ErrDuplicateLicense)

	err = s.CreateOperator(ctx, &models.Operator{UserID: "user-1", LicenseNumber: "LIC-other"})
	assert.ErrorIs(t, err, status.ErrDuplicateOperatorUser)

	v := &models.Vehicle{Plate: "ABC-123", Model: "Sprinter"}
	require.NoError(t, s.CreateVehicle(ctx, v))

	gotVehicle, err := s.FindVehicle(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, "ABC-123", gotVehicle.Plate)

	err = s.CreateVehicle(ctx, &models.Vehicle{Plate: "ABC-123"})
	assert.ErrorIs(t, err, status.ErrDuplicatePlate)

	_, err = s.FindVehicle(ctx, "missing")
	assert.ErrorIs(t, err, status.ErrVehicleNotFound)
}

func TestAuditTrail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendAudit(ctx, &models.AuditEntry{
		Action:       models.AuditTicketIssued,
		ResourceType: models.ResourceTicket,
		ResourceID:   "t-1",
		ActorID:      "user-1",
		Metadata:     map[string]any{"folio": "OMA-2025-000001"},
	}))
	require.NoError(t, s.AppendAudit(ctx, &models.AuditEntry{
		Action:       models.AuditTicketCancelled,
		ResourceType: models.ResourceTicket,
		ResourceID:   "t-1",
	}))

	entries, err := s.AuditTrail(ctx, models.ResourceTicket, "t-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.AuditTicketIssued, entries[0].Action)
	assert.Equal(t, "OMA-2025-000001", entries[0].Metadata["folio"])
	assert.Equal(t, "user-1", entries[0].ActorID)
}

func TestTranslate(t *testing.T) {
	assert.NoError(t, translate(nil))

	err := translate(errors.New("UNIQUE constraint failed: tickets.folio"), conflict{"folio", status.ErrDuplicateFolio})
	assert.ErrorIs(t, err, status.ErrDuplicateFolio)

	err = translate(errors.New(`duplicate key value violates unique constraint "vehicles_plate_key"`),
		conflict{"plate", status.ErrDuplicatePlate})
	assert.ErrorIs(t, err, status.ErrDuplicatePlate)

	err = translate(errors.New("UNIQUE constraint failed: trips.ticket_id"))
	assert.ErrorIs(t, err, status.ErrConflict)

	err = translate(errors.New("database is locked"))
	assert.ErrorIs(t, err, status.ErrTransientStore)
}
