package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"shuttle-ticket/internal/logger"
	"shuttle-ticket/internal/services"
	"shuttle-ticket/models"
)

type TicketHandler struct {
	boarding *services.BoardingService
	log      logger.Logger
}

func NewTicketHandler(boarding *services.BoardingService, log logger.Logger) *TicketHandler {
	return &TicketHandler{boarding: boarding, log: log}
}

type issueTicketRequest struct {
	Origin           string             `json:"origin"`
	Destination      string             `json:"destination"`
	SaleChannel      models.SaleChannel `json:"sale_channel"`
	GuestName        string             `json:"guest_name"`
	PaymentReference string             `json:"payment_reference"`
}

// IssueTicket sells a ticket. App sales belong to the caller; cashier and
// ATM sales may be issued to a named guest instead.
func (h *TicketHandler) IssueTicket(e *core.RequestEvent) error {
	userID, err := authID(e)
	if err != nil {
		return err
	}

	var req issueTicketRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	params := services.IssueTicketParams{
		Origin:           req.Origin,
		Destination:      req.Destination,
		Channel:          req.SaleChannel,
		GuestName:        req.GuestName,
		PaymentReference: req.PaymentReference,
		ActorID:          userID,
	}
	if req.GuestName == "" {
		params.PassengerID = userID
	}

	issued, err := h.boarding.IssueTicket(e.Request.Context(), params)
	if err != nil {
		h.log.Warn("issue ticket failed", "user_id", userID, "error", err)
		return apiError(err)
	}
	return e.JSON(http.StatusCreated, issued)
}

// CurrentTicket returns the caller's boardable ticket with a fresh QR token.
func (h *TicketHandler) CurrentTicket(e *core.RequestEvent) error {
	userID, err := authID(e)
	if err != nil {
		return err
	}

	pass, err := h.boarding.BoardingPass(e.Request.Context(), userID)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, pass)
}

func (h *TicketHandler) GetTicket(e *core.RequestEvent) error {
	ticket, err := h.boarding.Ticket(e.Request.Context(), e.Request.PathValue("id"))
	if err != nil {
		return apiError(err)
	}
	if err := canSee(e, ticket); err != nil {
		return err
	}
	return e.JSON(http.StatusOK, ticket)
}

// GetTicketByFolio looks a ticket up by the folio printed on it. Any
// authenticated user presenting the folio may read it.
func (h *TicketHandler) GetTicketByFolio(e *core.RequestEvent) error {
	if _, err := authID(e); err != nil {
		return err
	}
	ticket, err := h.boarding.TicketByFolio(e.Request.Context(), e.Request.PathValue("folio"))
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, ticket)
}

func (h *TicketHandler) RefundStatus(e *core.RequestEvent) error {
	ctx := e.Request.Context()
	ticketID := e.Request.PathValue("id")
	ticket, err := h.boarding.Ticket(ctx, ticketID)
	if err != nil {
		return apiError(err)
	}
	if err := canSee(e, ticket); err != nil {
		return err
	}

	refund, err := h.boarding.RefundStatus(ctx, ticketID)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, refund)
}

type cancelTicketRequest struct {
	Reason string `json:"reason"`
}

func (h *TicketHandler) CancelTicket(e *core.RequestEvent) error {
	userID, err := authID(e)
	if err != nil {
		return err
	}

	var req cancelTicketRequest
	if e.Request.ContentLength != 0 {
		if err := e.BindBody(&req); err != nil {
			return apis.NewBadRequestError("Invalid request", err)
		}
	}

	ctx := e.Request.Context()
	ticketID := e.Request.PathValue("id")
	ticket, err := h.boarding.Ticket(ctx, ticketID)
	if err != nil {
		return apiError(err)
	}
	if err := canSee(e, ticket); err != nil {
		return err
	}

	cancelled, err := h.boarding.Cancel(ctx, ticketID, req.Reason, userID)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, cancelled)
}

// ListTickets lists the caller's tickets. Superusers may list every ticket
// and filter by passenger.
func (h *TicketHandler) ListTickets(e *core.RequestEvent) error {
	userID, err := authID(e)
	if err != nil {
		return err
	}

	q := e.Request.URL.Query()
	filter := models.TicketFilter{
		Status:      models.TicketStatus(q.Get("status")),
		SaleChannel: models.SaleChannel(q.Get("sale_channel")),
		PassengerID: userID,
		Page:        queryInt(q.Get("page")),
		Limit:       queryInt(q.Get("limit")),
	}
	if e.HasSuperuserAuth() {
		filter.PassengerID = q.Get("passenger_id")
	}
	if filter.From, err = queryTime(q.Get("from")); err != nil {
		return apis.NewBadRequestError("Invalid from date", err)
	}
	if filter.To, err = queryTime(q.Get("to")); err != nil {
		return apis.NewBadRequestError("Invalid to date", err)
	}

	tickets, total, err := h.boarding.ListTickets(e.Request.Context(), filter)
	if err != nil {
		return apiError(err)
	}
	filter.Normalize()
	return e.JSON(http.StatusOK, page(tickets, total, filter.Page, filter.Limit))
}

// canSee allows the ticket holder, or a superuser.
func canSee(e *core.RequestEvent, ticket *models.Ticket) error {
	userID, err := authID(e)
	if err != nil {
		return err
	}
	if e.HasSuperuserAuth() {
		return nil
	}
	if ticket.PassengerID != nil && *ticket.PassengerID == userID {
		return nil
	}
	return apis.NewForbiddenError("Access denied", nil)
}

type pageResponse[T any] struct {
	Items      []T   `json:"items"`
	Page       int   `json:"page"`
	PerPage    int   `json:"perPage"`
	TotalItems int64 `json:"totalItems"`
	TotalPages int64 `json:"totalPages"`
}

func page[T any](items []T, total int64, pageNum, perPage int) pageResponse[T] {
	pages := int64(0)
	if perPage > 0 {
		pages = (total + int64(perPage) - 1) / int64(perPage)
	}
	return pageResponse[T]{
		Items:      items,
		Page:       pageNum,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: pages,
	}
}

func queryInt(raw string) int {
	n, _ := strconv.Atoi(raw)
	return n
}

// queryTime accepts RFC 3339 timestamps or plain dates.
func queryTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(time.DateOnly, raw)
}
