package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shuttle-ticket/internal/logger"
	"shuttle-ticket/models"
)

func TestReaper_Sweep(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedOperator(t, "driver-1")

	cancelled := env.issue(t, "p-1")
	live := env.issue(t, "p-2")
	boarded := env.issue(t, "p-3")

	_, err := env.svc.Cancel(ctx, cancelled.Ticket.ID, "", "p-1")
	require.NoError(t, err)
	_, err = env.svc.ClaimAndStart(ctx, env.tokenFor(t, boarded.Ticket), "driver-1", nil)
	require.NoError(t, err)

	reaper := NewReaper(env.store, nil, logger.NewNop())

	n, err := reaper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = reaper.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	trip, err := env.store.FindTrip(ctx, cancelled.TripID)
	require.NoError(t, err)
	assert.Equal(t, models.TripCancelled, trip.Status)
	assert.NotNil(t, trip.EndTime)

	trip, err = env.store.FindTrip(ctx, live.TripID)
	require.NoError(t, err)
	assert.Equal(t, models.TripAssigned, trip.Status, "unclaimed trips with a live ticket are never expired")

	trip, err = env.store.FindTrip(ctx, boarded.TripID)
	require.NoError(t, err)
	assert.Equal(t, models.TripInProgress, trip.Status)

	trail, err := env.store.AuditTrail(ctx, models.ResourceTrip, cancelled.TripID)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, models.AuditTripReaped, trail[0].Action)
}

func TestReaper_RunStopsOnCancel(t *testing.T) {
	env := newTestEnv(t)
	reaper := NewReaper(env.store, nil, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reaper.Run(ctx, 10*time.Millisecond)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
