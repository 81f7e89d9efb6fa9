package monitoring

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"shuttle-ticket/internal/logger"
	"shuttle-ticket/models"
)

var (
	ticketsIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickets_issued_total",
			Help: "Tickets issued per sale channel",
		},
		[]string{"channel"},
	)

	ticketsCancelled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tickets_cancelled_total",
			Help: "Tickets cancelled before boarding",
		},
	)

	tripClaims = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trip_claims_total",
			Help: "Operator claim attempts by outcome",
		},
		[]string{"outcome"},
	)

	claimDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trip_claim_duration_seconds",
			Help:    "Duration of claim-and-start, token verification included",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
	)

	tripTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trip_transitions_total",
			Help: "Trip status transitions",
		},
		[]string{"status"},
	)

	tripsByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trips_by_status",
			Help: "Current number of trips per status",
		},
		[]string{"status"},
	)

	locationUpdates = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trip_location_updates_total",
			Help: "Accepted trip position updates",
		},
	)

	broadcastFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_failures_total",
			Help: "Trip events that could not be published",
		},
		[]string{"event"},
	)

	auditFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_failures_total",
			Help: "Audit records that could not be appended",
		},
		[]string{"action"},
	)

	scansRateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "boarding_scans_rate_limited_total",
			Help: "Boarding scans rejected by the per-operator rate limit",
		},
	)
)

// TripCounter reports how many trips are in each status.
type TripCounter interface {
	CountTripsByStatus(ctx context.Context) (map[models.TripStatus]int64, error)
}

// Monitor records service metrics. A nil *Monitor is valid and only
// updates the package collectors.
type Monitor struct {
	trips TripCounter
	log   logger.Logger
}

func NewMonitor(trips TripCounter, log logger.Logger) *Monitor {
	return &Monitor{trips: trips, log: log}
}

// Run refreshes the gauges every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.collectTripMetrics(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.collectTripMetrics(ctx)
		}
	}
}

func (m *Monitor) collectTripMetrics(ctx context.Context) {
	counts, err := m.trips.CountTripsByStatus(ctx)
	if err != nil {
		m.log.Warn("collect trip metrics", "error", err)
		return
	}

	for _, s := range []models.TripStatus{
		models.TripAssigned, models.TripInProgress, models.TripCompleted, models.TripCancelled,
	} {
		tripsByStatus.WithLabelValues(string(s)).Set(float64(counts[s]))
	}
}

func (m *Monitor) TrackTicketIssued(channel models.SaleChannel) {
	ticketsIssued.WithLabelValues(string(channel)).Inc()
}

func (m *Monitor) TrackTicketCancelled() {
	ticketsCancelled.Inc()
}

// TrackClaim records a claim attempt; outcome is "success" or an error kind.
func (m *Monitor) TrackClaim(outcome string, d time.Duration) {
	tripClaims.WithLabelValues(outcome).Inc()
	claimDuration.Observe(d.Seconds())
}

func (m *Monitor) TrackTransition(to models.TripStatus) {
	tripTransitions.WithLabelValues(string(to)).Inc()
}

func (m *Monitor) TrackLocationUpdate() {
	locationUpdates.Inc()
}

func (m *Monitor) TrackBroadcastFailure(event string) {
	broadcastFailures.WithLabelValues(event).Inc()
}

func (m *Monitor) TrackAuditFailure(action string) {
	auditFailures.WithLabelValues(action).Inc()
}

func (m *Monitor) TrackRateLimited() {
	scansRateLimited.Inc()
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
