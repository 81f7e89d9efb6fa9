package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"shuttle-ticket/internal/ledger"
	"shuttle-ticket/internal/logger"
	"shuttle-ticket/internal/token"
	"shuttle-ticket/models"
)

var testSecret = []byte("test-boarding-secret")

func newTestLedger(t *testing.T) *ledger.Store {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "ledger.db") + "?_pragma=synchronous(OFF)"
	store, err := ledger.Open(ledger.DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.EnsureSchema(context.Background()))
	return store
}

func newTestIssuer(t *testing.T, opts ...token.Option) *token.Issuer {
	t.Helper()

	issuer, err := token.NewIssuer(testSecret, time.Minute, opts...)
	require.NoError(t, err)
	return issuer
}

type published struct {
	Topic   string
	Event   string
	Payload any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
	err    error
	// delay holds back the first event, as a slow sink would.
	delay time.Duration
}

func (p *recordingPublisher) Publish(_ context.Context, topic, event string, payload any) error {
	p.mu.Lock()
	first := len(p.events) == 0
	p.mu.Unlock()
	if first && p.delay > 0 {
		time.Sleep(p.delay)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{Topic: topic, Event: event, Payload: payload})
	return p.err
}

func (p *recordingPublisher) Events() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.events...)
}

type testEnv struct {
	store     *ledger.Store
	issuer    *token.Issuer
	publisher *recordingPublisher
	notifier  *Notifier
	svc       *BoardingService
	location  *LocationService
	fare      *models.Fare
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := newTestLedger(t)
	env := &testEnv{
		store:     store,
		issuer:    newTestIssuer(t),
		publisher: &recordingPublisher{},
	}
	env.notifier = NewNotifier(env.publisher, time.Second, logger.NewNop(), nil)
	t.Cleanup(env.notifier.Close)
	env.svc = NewBoardingService(store, env.issuer, RandomFolioGenerator{Prefix: "OMA"}, env.notifier, nil, logger.NewNop(), BoardingOptions{})
	env.location = NewLocationService(store, env.notifier, nil, logger.NewNop())
	env.fare = env.seedFare(t, "A", "B", "45.00")
	return env
}

func (e *testEnv) seedFare(t *testing.T, origin, destination, price string) *models.Fare {
	t.Helper()

	fare := &models.Fare{
		Origin:        origin,
		Destination:   destination,
		Price:         decimal.RequireFromString(price),
		Active:        true,
		EffectiveFrom: time.Now().Add(-time.Hour).UTC(),
	}
	require.NoError(t, e.store.CreateFare(context.Background(), fare))
	return fare
}

func (e *testEnv) seedOperator(t *testing.T, userID string) *models.Operator {
	t.Helper()

	op := &models.Operator{UserID: userID, LicenseNumber: "LIC-" + userID, Validated: true}
	require.NoError(t, e.store.CreateOperator(context.Background(), op))
	return op
}

func (e *testEnv) issue(t *testing.T, passengerID string) *IssuedTicket {
	t.Helper()

	issued, err := e.svc.IssueTicket(context.Background(), IssueTicketParams{
		Origin:           "A",
		Destination:      "B",
		Channel:          models.ChannelMobileApp,
		PassengerID:      passengerID,
		PaymentReference: "pay-" + passengerID,
	})
	require.NoError(t, err)
	return issued
}

func (e *testEnv) tokenFor(t *testing.T, ticket *models.Ticket) string {
	t.Helper()

	raw, _, err := e.issuer.Issue(ticket.ID, ticket.Folio)
	require.NoError(t, err)
	return raw
}

// fixedFolios hands out folios from a list, repeating the last one.
type fixedFolios struct {
	mu     sync.Mutex
	folios []string
	calls  int
}

func (g *fixedFolios) Next(context.Context, time.Time) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	i := g.calls
	if i >= len(g.folios) {
		i = len(g.folios) - 1
	}
	g.calls++
	return g.folios[i], nil
}

// commitErrLedger runs the real transaction and then reports an error, as
// when a connection drops while the commit is acknowledged.
type commitErrLedger struct {
	*ledger.Store
	rollback bool
}

var errConnReset = errors.New("connection reset by peer")

func (l *commitErrLedger) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if l.rollback {
		return l.Store.WithinTransaction(ctx, func(ctx context.Context) error {
			if err := fn(ctx); err != nil {
				return err
			}
			return errConnReset
		})
	}
	if err := l.Store.WithinTransaction(ctx, fn); err != nil {
		return err
	}
	return errConnReset
}
