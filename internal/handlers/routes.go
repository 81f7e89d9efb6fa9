package handlers

import (
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/router"

	"shuttle-ticket/security"
)

type Routes struct {
	Tickets *TicketHandler
	Trips   *TripHandler
	Health  *HealthHandler
	Limiter *security.RateLimiter
}

// Register mounts the API on the PocketBase router. Everything under
// /api/v1 requires an authenticated record.
func (rt Routes) Register(r *router.Router[*core.RequestEvent]) {
	r.GET("/health", rt.Health.Health)

	v1 := r.Group("/api/v1")
	v1.Bind(apis.RequireAuth())

	// tickets
	v1.POST("/tickets", rt.Tickets.IssueTicket).BindFunc(security.AntiBot)
	v1.GET("/tickets", rt.Tickets.ListTickets)
	v1.GET("/tickets/current", rt.Tickets.CurrentTicket)
	v1.GET("/tickets/{id}", rt.Tickets.GetTicket)
	v1.GET("/tickets/{id}/refund-status", rt.Tickets.RefundStatus)
	v1.PATCH("/tickets/{id}/cancel", rt.Tickets.CancelTicket)
	v1.GET("/folios/{folio}", rt.Tickets.GetTicketByFolio)

	// trips
	v1.POST("/trips/start", rt.Trips.StartTrip).BindFunc(rt.Limiter.ScanRateLimit)
	v1.GET("/trips", rt.Trips.ListTrips).Bind(apis.RequireSuperuserAuth())
	v1.GET("/trips/current", rt.Trips.CurrentTrip)
	v1.GET("/trips/history", rt.Trips.TripHistory)
	v1.GET("/trips/{id}", rt.Trips.GetTrip)
	v1.PATCH("/trips/{id}/complete", rt.Trips.CompleteTrip)
	v1.POST("/trips/{id}/location", rt.Trips.ReportLocation)

	// operators
	v1.GET("/operators/me/dashboard", rt.Trips.OperatorDashboard)
}
