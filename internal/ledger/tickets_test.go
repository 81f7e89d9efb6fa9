package ledger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shuttle-ticket/internal/status"
	"shuttle-ticket/models"
)

func TestCreateTicket_DuplicateFolio(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	fare := seedFare(t, s, "A", "B", "45.00")

	seedTicketTrip(t, s, fare, "OMA-2025-000001", "p-1")

	guest := "Ana"
	err := s.CreateTicket(ctx, &models.Ticket{
		Folio:       "OMA-2025-000001",
		Price:       fare.Price,
		Status:      models.TicketPaid,
		SaleChannel: models.ChannelCashier,
		GuestName:   &guest,
		FareID:      fare.ID,
	})
	assert.ErrorIs(t, err, status.ErrDuplicateFolio)
}

func TestCreateTicket_HolderConstraint(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	fare := seedFare(t, s, "A", "B", "45.00")

	passenger, guest := "p-1", "Ana"
	err := s.CreateTicket(ctx, &models.Ticket{
		Folio:       "OMA-2025-BOTH",
		Price:       fare.Price,
		Status:      models.TicketPaid,
		SaleChannel: models.ChannelCashier,
		PassengerID: &passenger,
		GuestName:   &guest,
		FareID:      fare.ID,
	})
	assert.Error(t, err)

	err = s.CreateTicket(ctx, &models.Ticket{
		Folio:       "OMA-2025-NONE",
		Price:       fare.Price,
		Status:      models.TicketPaid,
		SaleChannel: models.ChannelCashier,
		FareID:      fare.ID,
	})
	assert.Error(t, err)
}

func TestFindTicket(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	fare := seedFare(t, s, "A", "B", "45.00")
	ticket, _ := seedTicketTrip(t, s, fare, "OMA-2025-000001", "p-1")

	got, err := s.FindTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, ticket.Folio, got.Folio)
	assert.Equal(t, models.TicketPaid, got.Status)
	assert.Equal(t, models.RefundNone, got.RefundStatus)
	assert.True(t, fare.Price.Equal(got.Price))
	require.NotNil(t, got.PassengerID)
	assert.Equal(t, "p-1", *got.PassengerID)
	assert.Nil(t, got.GuestName)
	assert.NotNil(t, got.PaidAt)
	assert.Nil(t, got.CancelledAt)

	byFolio, err := s.FindTicketByFolio(ctx, "OMA-2025-000001")
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, byFolio.ID)

	_, err = s.FindTicket(ctx, "missing")
	assert.ErrorIs(t, err, status.ErrTicketNotFound)

	current, err := s.FindCurrentTicket(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, current.ID)

	_, err = s.FindCurrentTicket(ctx, "p-2")
	assert.ErrorIs(t, err, status.ErrTicketNotFound)
}

func TestCancelTicket(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	fare := seedFare(t, s, "A", "B", "45.00")
	op := seedOperator(t, s, "driver-1")
	now := time.Now().UTC()

	t.Run("pre-boarding ticket is cancelled", func(t *testing.T) {
		ticket, _ := seedTicketTrip(t, s, fare, "OMA-2025-C00001", "p-1")

		ok, err := s.CancelTicket(ctx, ticket.ID, "changed plans", now)
		require.NoError(t, err)
		assert.True(t, ok)

		got, err := s.FindTicket(ctx, ticket.ID)
		require.NoError(t, err)
		assert.Equal(t, models.TicketCancelled, got.Status)
		assert.Equal(t, models.RefundPending, got.RefundStatus)
		assert.Equal(t, "changed plans", got.CancellationReason)
		assert.NotNil(t, got.CancelledAt)

		ok, err = s.CancelTicket(ctx, ticket.ID, "again", now)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("started trip blocks cancellation", func(t *testing.T) {
		ticket, trip := seedTicketTrip(t, s, fare, "OMA-2025-C00002", "p-2")

		claimed, err := s.ClaimTrip(ctx, trip.ID, op.ID, nil, now)
		require.NoError(t, err)
		require.True(t, claimed)

		ok, err := s.CancelTicket(ctx, ticket.ID, "too late", now)
		require.NoError(t, err)
		assert.False(t, ok)

		got, err := s.FindTicket(ctx, ticket.ID)
		require.NoError(t, err)
		assert.Equal(t, models.TicketPaid, got.Status)
	})
}

func TestMarkTicketUsed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	fare := seedFare(t, s, "A", "B", "45.00")
	ticket, _ := seedTicketTrip(t, s, fare, "OMA-2025-000001", "p-1")

	ok, err := s.MarkTicketUsed(ctx, ticket.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.MarkTicketUsed(ctx, ticket.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := s.FindTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TicketUsed, got.Status)
}

func TestListTickets(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	fare := seedFare(t, s, "A", "B", "45.00")

	for i := 0; i < 5; i++ {
		seedTicketTrip(t, s, fare, fmt.Sprintf("OMA-2025-L%05d", i), "p-1")
	}
	other, _ := seedTicketTrip(t, s, fare, "OMA-2025-OTHER", "p-2")
	_, err := s.CancelTicket(ctx, other.ID, "", time.Now().UTC())
	require.NoError(t, err)

	all, total, err := s.ListTickets(ctx, models.TicketFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 6, total)
	assert.Len(t, all, 6)

	page, total, err := s.ListTickets(ctx, models.TicketFilter{PassengerID: "p-1", Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	assert.Len(t, page, 2)

	cancelled, total, err := s.ListTickets(ctx, models.TicketFilter{Status: models.TicketCancelled})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, cancelled, 1)
	assert.Equal(t, other.ID, cancelled[0].ID)

	_, total, err = s.ListTickets(ctx, models.TicketFilter{From: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	assert.Zero(t, total)
}
