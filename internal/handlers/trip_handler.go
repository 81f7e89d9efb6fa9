package handlers

import (
	"net/http"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"shuttle-ticket/internal/logger"
	"shuttle-ticket/internal/services"
	"shuttle-ticket/models"
)

type TripHandler struct {
	boarding *services.BoardingService
	location *services.LocationService
	log      logger.Logger
}

func NewTripHandler(boarding *services.BoardingService, location *services.LocationService, log logger.Logger) *TripHandler {
	return &TripHandler{boarding: boarding, location: location, log: log}
}

type startTripRequest struct {
	QRToken   string `json:"qr_token"`
	VehicleID string `json:"vehicle_id"`
}

// StartTrip is called by an operator after scanning a passenger's QR code.
func (h *TripHandler) StartTrip(e *core.RequestEvent) error {
	userID, err := authID(e)
	if err != nil {
		return err
	}

	var req startTripRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.QRToken == "" {
		return apis.NewBadRequestError("qr_token is required", nil)
	}

	var vehicleID *string
	if req.VehicleID != "" {
		vehicleID = &req.VehicleID
	}

	trip, err := h.boarding.ClaimAndStart(e.Request.Context(), req.QRToken, userID, vehicleID)
	if err != nil {
		h.log.Info("trip claim rejected", "user_id", userID, "error", err)
		return apiError(err)
	}
	return e.JSON(http.StatusOK, trip)
}

// CompleteTrip is restricted to the operator who claimed the trip and to
// superusers.
func (h *TripHandler) CompleteTrip(e *core.RequestEvent) error {
	caller, err := actor(e)
	if err != nil {
		return err
	}

	trip, err := h.boarding.Complete(e.Request.Context(), e.Request.PathValue("id"), caller)
	if err != nil {
		h.log.Info("trip completion rejected", "user_id", caller.UserID, "error", err)
		return apiError(err)
	}
	return e.JSON(http.StatusOK, trip)
}

type locationRequest struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

func (h *TripHandler) ReportLocation(e *core.RequestEvent) error {
	caller, err := actor(e)
	if err != nil {
		return err
	}

	var req locationRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.Lat == nil || req.Lng == nil {
		return apis.NewBadRequestError("lat and lng are required", nil)
	}

	trip, err := h.location.Report(e.Request.Context(), e.Request.PathValue("id"), *req.Lat, *req.Lng, caller)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, trip)
}

// GetTrip is visible to the passenger, the claiming operator and superusers.
func (h *TripHandler) GetTrip(e *core.RequestEvent) error {
	caller, err := actor(e)
	if err != nil {
		return err
	}

	trip, err := h.boarding.Trip(e.Request.Context(), e.Request.PathValue("id"), caller)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, trip)
}

// CurrentTrip returns the caller's trip that is in progress.
func (h *TripHandler) CurrentTrip(e *core.RequestEvent) error {
	userID, err := authID(e)
	if err != nil {
		return err
	}

	trip, err := h.boarding.CurrentTrip(e.Request.Context(), userID)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, trip)
}

// OperatorDashboard returns the calling operator's open trip and the number
// of trips they completed today.
func (h *TripHandler) OperatorDashboard(e *core.RequestEvent) error {
	userID, err := authID(e)
	if err != nil {
		return err
	}

	dashboard, err := h.boarding.OperatorDashboard(e.Request.Context(), userID)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, dashboard)
}

func (h *TripHandler) TripHistory(e *core.RequestEvent) error {
	userID, err := authID(e)
	if err != nil {
		return err
	}

	q := e.Request.URL.Query()
	filter := models.TripFilter{Page: queryInt(q.Get("page")), Limit: queryInt(q.Get("limit"))}
	filter.Normalize()

	trips, total, err := h.boarding.TripHistory(e.Request.Context(), userID, filter.Page, filter.Limit)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, page(trips, total, filter.Page, filter.Limit))
}

// ListTrips is the dispatch view over all trips.
func (h *TripHandler) ListTrips(e *core.RequestEvent) error {
	q := e.Request.URL.Query()
	filter := models.TripFilter{
		Status:     models.TripStatus(q.Get("status")),
		OperatorID: q.Get("operator_id"),
		Page:       queryInt(q.Get("page")),
		Limit:      queryInt(q.Get("limit")),
	}

	var err error
	if filter.From, err = queryTime(q.Get("from")); err != nil {
		return apis.NewBadRequestError("Invalid from date", err)
	}
	if filter.To, err = queryTime(q.Get("to")); err != nil {
		return apis.NewBadRequestError("Invalid to date", err)
	}

	trips, total, err := h.boarding.ListTrips(e.Request.Context(), filter)
	if err != nil {
		return apiError(err)
	}
	filter.Normalize()
	return e.JSON(http.StatusOK, page(trips, total, filter.Page, filter.Limit))
}
