package services

import (
	"context"
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"shuttle-ticket/internal/logger"
	"shuttle-ticket/internal/status"
	"shuttle-ticket/models"
	"shuttle-ticket/monitoring"
)

const defaultFolioAttempts = 5

// Ledger is the subset of the ticket/trip store the boarding coordinator needs.
type Ledger interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	FindActiveFare(ctx context.Context, origin, destination string, at time.Time) (*models.Fare, error)
	FindOperatorByUserID(ctx context.Context, userID string) (*models.Operator, error)
	FindVehicle(ctx context.Context, id string) (*models.Vehicle, error)

	CreateTicket(ctx context.Context, t *models.Ticket) error
	FindTicket(ctx context.Context, id string) (*models.Ticket, error)
	FindTicketByFolio(ctx context.Context, folio string) (*models.Ticket, error)
	FindCurrentTicket(ctx context.Context, passengerID string) (*models.Ticket, error)
	ListTickets(ctx context.Context, filter models.TicketFilter) ([]*models.Ticket, int64, error)
	CancelTicket(ctx context.Context, id, reason string, at time.Time) (bool, error)
	MarkTicketUsed(ctx context.Context, id string) (bool, error)

	CreateTrip(ctx context.Context, t *models.Trip) error
	FindTrip(ctx context.Context, id string) (*models.Trip, error)
	FindTripByTicket(ctx context.Context, ticketID string) (*models.Trip, error)
	ClaimTrip(ctx context.Context, tripID, operatorID string, vehicleID *string, at time.Time) (bool, error)
	CompleteTrip(ctx context.Context, tripID, operatorID string, at time.Time) (bool, error)
	FindCurrentTrip(ctx context.Context, passengerID string) (*models.Trip, error)
	ListPassengerTrips(ctx context.Context, passengerID string, page, limit int) ([]*models.Trip, int64, error)
	ListTrips(ctx context.Context, filter models.TripFilter) ([]*models.Trip, int64, error)
	FindOperatorActiveTrip(ctx context.Context, operatorID string) (*models.ActiveTrip, error)
	CountCompletedTrips(ctx context.Context, operatorID string, since time.Time) (int64, error)

	AppendAudit(ctx context.Context, entry *models.AuditEntry) error
}

type TokenIssuer interface {
	Issue(ticketID, folio string) (string, time.Time, error)
	Verify(raw string) (*models.BoardingClaims, error)
}

type BoardingOptions struct {
	FolioAttempts int
	// TimeZone decides where an operator's day starts. Defaults to UTC.
	TimeZone *time.Location
}

// BoardingService owns the ticket and trip state machines.
type BoardingService struct {
	ledger        Ledger
	tokens        TokenIssuer
	folios        FolioGenerator
	audit         *AuditRecorder
	notifier      *Notifier
	monitor       *monitoring.Monitor
	log           logger.Logger
	folioAttempts int
	zone          *time.Location
	now           func() time.Time
}

func NewBoardingService(
	ledger Ledger,
	tokens TokenIssuer,
	folios FolioGenerator,
	notifier *Notifier,
	monitor *monitoring.Monitor,
	log logger.Logger,
	opts BoardingOptions,
) *BoardingService {
	if opts.FolioAttempts < 1 {
		opts.FolioAttempts = defaultFolioAttempts
	}
	if opts.TimeZone == nil {
		opts.TimeZone = time.UTC
	}
	if notifier == nil {
		notifier = NewNotifier(nil, 0, log, monitor)
	}
	return &BoardingService{
		ledger:        ledger,
		tokens:        tokens,
		folios:        folios,
		audit:         NewAuditRecorder(ledger, log, monitor),
		notifier:      notifier,
		monitor:       monitor,
		log:           log,
		folioAttempts: opts.FolioAttempts,
		zone:          opts.TimeZone,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Wait blocks until pending broadcasts are delivered or have failed.
func (s *BoardingService) Wait() {
	s.notifier.Wait()
}

type IssueTicketParams struct {
	Origin           string             `json:"origin"`
	Destination      string             `json:"destination"`
	Channel          models.SaleChannel `json:"sale_channel"`
	PassengerID      string             `json:"passenger_id"`
	GuestName        string             `json:"guest_name"`
	PaymentReference string             `json:"payment_reference"`
	// ActorID is the authenticated caller, recorded in the audit trail.
	ActorID string `json:"-"`
}

func (p *IssueTicketParams) normalize() {
	p.Origin = strings.TrimSpace(p.Origin)
	p.Destination = strings.TrimSpace(p.Destination)
	p.PassengerID = strings.TrimSpace(p.PassengerID)
	p.GuestName = strings.TrimSpace(p.GuestName)
	p.PaymentReference = strings.TrimSpace(p.PaymentReference)
}

func (p IssueTicketParams) validate() error {
	err := validation.ValidateStruct(&p,
		validation.Field(&p.Origin, validation.Required),
		validation.Field(&p.Destination, validation.Required),
		validation.Field(&p.Channel, validation.Required, validation.By(func(any) error {
			if !p.Channel.Valid() {
				return errors.New("must be one of MOBILE_APP, ATM_CARD, CASHIER")
			}
			return nil
		})),
		validation.Field(&p.PaymentReference,
			validation.When(p.Channel == models.ChannelMobileApp, validation.Required),
		),
	)
	if err != nil {
		return status.Validation("%v", err)
	}
	if (p.PassengerID == "") == (p.GuestName == "") {
		return status.Validation("exactly one of passenger_id and guest_name is required")
	}
	return nil
}

type IssuedTicket struct {
	Ticket *models.Ticket `json:"ticket"`
	TripID string         `json:"trip_id"`
}

// IssueTicket sells a ticket for a route and creates its unclaimed trip in the
// same transaction.
func (s *BoardingService) IssueTicket(ctx context.Context, p IssueTicketParams) (*IssuedTicket, error) {
	p.normalize()
	if err := p.validate(); err != nil {
		return nil, err
	}

	now := s.now()
	fare, err := s.ledger.FindActiveFare(ctx, p.Origin, p.Destination, now)
	if err != nil {
		return nil, err
	}

	var ticket *models.Ticket
	var trip *models.Trip
	for attempt := 1; ; attempt++ {
		folio, err := s.folios.Next(ctx, now)
		if err != nil {
			return nil, status.Transient(err)
		}

		ticket, trip = newTicketTrip(p, fare, folio, now)
		err = s.ledger.WithinTransaction(ctx, func(ctx context.Context) error {
			if err := s.ledger.CreateTicket(ctx, ticket); err != nil {
				return err
			}
			trip.TicketID = ticket.ID
			return s.ledger.CreateTrip(ctx, trip)
		})
		if err == nil {
			break
		}
		if !errors.Is(err, status.ErrDuplicateFolio) || attempt >= s.folioAttempts {
			return nil, err
		}
		s.log.Warn("folio collision, retrying", "folio", folio, "attempt", attempt)
	}

	s.audit.Record(ctx, models.AuditEntry{
		Action:       models.AuditTicketIssued,
		ResourceType: models.ResourceTicket,
		ResourceID:   ticket.ID,
		ActorID:      p.ActorID,
		Metadata: map[string]any{
			"folio":  ticket.Folio,
			"fareId": fare.ID,
			"tripId": trip.ID,
		},
	})
	s.monitor.TrackTicketIssued(ticket.SaleChannel)
	s.log.Info("ticket issued", "ticket_id", ticket.ID, "folio", ticket.Folio, "trip_id", trip.ID)

	return &IssuedTicket{Ticket: ticket, TripID: trip.ID}, nil
}

func newTicketTrip(p IssueTicketParams, fare *models.Fare, folio string, now time.Time) (*models.Ticket, *models.Trip) {
	paidAt := now
	ticket := &models.Ticket{
		Folio:            folio,
		Price:            fare.Price,
		Status:           models.TicketPaid,
		SaleChannel:      p.Channel,
		PaymentReference: p.PaymentReference,
		FareID:           fare.ID,
		CreatedAt:        now,
		PaidAt:           &paidAt,
		RefundStatus:     models.RefundNone,
	}
	if p.PassengerID != "" {
		ticket.PassengerID = &p.PassengerID
	} else {
		ticket.GuestName = &p.GuestName
	}

	trip := &models.Trip{
		Status:      models.TripAssigned,
		Origin:      fare.Origin,
		Destination: fare.Destination,
		CreatedAt:   now,
	}
	return ticket, trip
}

// BoardingPass returns the passenger's current boardable ticket with a
// freshly signed boarding token.
func (s *BoardingService) BoardingPass(ctx context.Context, passengerID string) (*models.BoardingPass, error) {
	ticket, err := s.ledger.FindCurrentTicket(ctx, passengerID)
	if err != nil {
		return nil, err
	}
	trip, err := s.ledger.FindTripByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}

	raw, expiresAt, err := s.tokens.Issue(ticket.ID, ticket.Folio)
	if err != nil {
		return nil, err
	}
	return &models.BoardingPass{
		Ticket:    ticket,
		TripID:    trip.ID,
		Token:     raw,
		ExpiresAt: expiresAt,
	}, nil
}

// ClaimAndStart binds the scanning operator to the trip of the ticket named
// by the boarding token and starts it. Exactly one operator can ever win a
// trip; the ticket is consumed in the same transaction.
func (s *BoardingService) ClaimAndStart(ctx context.Context, rawToken, operatorUserID string, vehicleID *string) (*models.Trip, error) {
	started := time.Now()
	trip, err := s.claimAndStart(ctx, rawToken, operatorUserID, vehicleID)
	s.monitor.TrackClaim(claimOutcome(err), time.Since(started))
	return trip, err
}

func (s *BoardingService) claimAndStart(ctx context.Context, rawToken, operatorUserID string, vehicleID *string) (*models.Trip, error) {
	claims, err := s.tokens.Verify(rawToken)
	if err != nil {
		return nil, err
	}

	op, err := s.ledger.FindOperatorByUserID(ctx, operatorUserID)
	if err != nil {
		return nil, err
	}
	if vehicleID != nil && *vehicleID == "" {
		vehicleID = nil
	}
	if vehicleID != nil {
		if _, err := s.ledger.FindVehicle(ctx, *vehicleID); err != nil {
			return nil, err
		}
	}

	now := s.now()
	var tripID string
	var trip *models.Trip
	err = s.ledger.WithinTransaction(ctx, func(ctx context.Context) error {
		ticket, err := s.ledger.FindTicket(ctx, claims.TicketID)
		if errors.Is(err, status.ErrTicketNotFound) {
			return status.ErrTripNotClaimable
		}
		if err != nil {
			return err
		}
		if ticket.Folio != claims.Folio {
			return status.ErrTripNotClaimable
		}

		current, err := s.ledger.FindTripByTicket(ctx, ticket.ID)
		if errors.Is(err, status.ErrTripNotFound) {
			return status.ErrTripNotClaimable
		}
		if err != nil {
			return err
		}
		tripID = current.ID
		if err := classifyClaim(current, op.ID); err != nil {
			return err
		}

		ok, err := s.ledger.ClaimTrip(ctx, current.ID, op.ID, vehicleID, now)
		if err != nil {
			return err
		}
		if !ok {
			// lost the race: report who won if we can tell
			if latest, err := s.ledger.FindTrip(ctx, current.ID); err == nil {
				if err := classifyClaim(latest, op.ID); err != nil {
					return err
				}
			}
			return status.ErrTripNotClaimable
		}

		ok, err = s.ledger.MarkTicketUsed(ctx, ticket.ID)
		if err != nil {
			return err
		}
		if !ok {
			return status.ErrTicketNotBoardable
		}

		trip, err = s.ledger.FindTrip(ctx, current.ID)
		return err
	})
	if err != nil {
		if status.IsBusiness(err) || tripID == "" {
			return nil, err
		}
		confirmed, ok := s.confirmClaim(ctx, tripID, op.ID, now)
		if !ok {
			s.log.Error("claim outcome unknown, reporting failure", "trip_id", tripID, "operator_id", op.ID, "error", err)
			return nil, err
		}
		s.log.Warn("claim committed despite error", "trip_id", tripID, "operator_id", op.ID, "error", err)
		trip = confirmed
	}

	s.audit.Record(ctx, models.AuditEntry{
		Action:       models.AuditTripStarted,
		ResourceType: models.ResourceTrip,
		ResourceID:   trip.ID,
		ActorID:      operatorUserID,
		Metadata: map[string]any{
			"ticketId":   trip.TicketID,
			"folio":      claims.Folio,
			"operatorId": op.ID,
			"vehicleId":  trip.VehicleID,
		},
	})
	s.notifier.Notify(models.TripTopic(trip.ID), models.EventTripStarted, tripEvent(trip))
	s.monitor.TrackTransition(models.TripInProgress)
	s.log.Info("trip started", "trip_id", trip.ID, "operator_id", op.ID)

	return trip, nil
}

// classifyClaim decides whether the operator may still claim the trip. A trip
// bound to someone else is reported as claimed whatever its status.
func classifyClaim(trip *models.Trip, operatorID string) error {
	if trip.Claimed() && !trip.ClaimedBy(operatorID) {
		return status.ErrAlreadyClaimed
	}
	if trip.Status != models.TripAssigned {
		return status.ErrTripNotClaimable
	}
	return nil
}

// confirmClaim re-reads the trip after an infrastructure error and reports
// whether our own claim is the one that was committed.
func (s *BoardingService) confirmClaim(ctx context.Context, tripID, operatorID string, at time.Time) (*models.Trip, bool) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()

	trip, err := s.ledger.FindTrip(ctx, tripID)
	if err != nil {
		return nil, false
	}
	if !trip.ClaimedBy(operatorID) || trip.Status != models.TripInProgress || trip.StartTime == nil {
		return nil, false
	}
	if d := trip.StartTime.Sub(at); d > time.Millisecond || d < -time.Millisecond {
		return nil, false
	}
	return trip, true
}

func claimOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, status.ErrAlreadyClaimed):
		return "already_claimed"
	case errors.Is(err, status.ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, status.ErrPreconditionFailed):
		return "not_claimable"
	case errors.Is(err, status.ErrNotFound):
		return "not_found"
	}
	return "error"
}

func tripEvent(trip *models.Trip) models.TripEvent {
	ev := models.TripEvent{
		TripID:   trip.ID,
		TicketID: trip.TicketID,
		Status:   trip.Status,
	}
	if trip.OperatorID != nil {
		ev.OperatorID = *trip.OperatorID
	}
	switch {
	case trip.EndTime != nil:
		ev.At = *trip.EndTime
	case trip.StartTime != nil:
		ev.At = *trip.StartTime
	default:
		ev.At = trip.CreatedAt
	}
	return ev
}

// Complete closes an in-progress trip. Only the operator who claimed it, or a
// superuser, may complete it.
func (s *BoardingService) Complete(ctx context.Context, tripID string, actor Actor) (*models.Trip, error) {
	trip, err := s.ledger.FindTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}
	operatorID, err := authorizeTripOperator(ctx, s.ledger, trip, actor)
	if err != nil {
		return nil, err
	}

	ok, err := s.ledger.CompleteTrip(ctx, tripID, operatorID, s.now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, status.ErrInvalidTransition
	}

	trip, err = s.ledger.FindTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, models.AuditEntry{
		Action:       models.AuditTripCompleted,
		ResourceType: models.ResourceTrip,
		ResourceID:   trip.ID,
		ActorID:      actor.UserID,
		Metadata:     map[string]any{"ticketId": trip.TicketID},
	})
	s.notifier.Notify(models.TripTopic(trip.ID), models.EventTripCompleted, tripEvent(trip))
	s.monitor.TrackTransition(models.TripCompleted)
	s.log.Info("trip completed", "trip_id", trip.ID)

	return trip, nil
}

// Cancel cancels a ticket whose trip has not started and marks its refund
// pending. The paired trip is left untouched.
func (s *BoardingService) Cancel(ctx context.Context, ticketID, reason, actorID string) (*models.Ticket, error) {
	reason = strings.TrimSpace(reason)

	ok, err := s.ledger.CancelTicket(ctx, ticketID, reason, s.now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.cancelRejection(ctx, ticketID)
	}

	ticket, err := s.ledger.FindTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	metadata := map[string]any{"folio": ticket.Folio}
	if reason != "" {
		metadata["reason"] = reason
	}
	s.audit.Record(ctx, models.AuditEntry{
		Action:       models.AuditTicketCancelled,
		ResourceType: models.ResourceTicket,
		ResourceID:   ticket.ID,
		ActorID:      actorID,
		Metadata:     metadata,
	})
	s.monitor.TrackTicketCancelled()
	s.log.Info("ticket cancelled", "ticket_id", ticket.ID, "folio", ticket.Folio)

	return ticket, nil
}

// cancelRejection explains why a cancel update did not apply.
func (s *BoardingService) cancelRejection(ctx context.Context, ticketID string) error {
	ticket, err := s.ledger.FindTicket(ctx, ticketID)
	if err != nil {
		return err
	}
	if ticket.Status == models.TicketCancelled {
		return status.ErrAlreadyCancelled
	}

	trip, err := s.ledger.FindTripByTicket(ctx, ticketID)
	switch {
	case err == nil && trip.StartTime != nil:
		return status.ErrTripAlreadyStarted
	case err != nil && !errors.Is(err, status.ErrTripNotFound):
		return err
	}
	return status.ErrInvalidTransition
}

func (s *BoardingService) Ticket(ctx context.Context, id string) (*models.Ticket, error) {
	return s.ledger.FindTicket(ctx, id)
}

func (s *BoardingService) TicketByFolio(ctx context.Context, folio string) (*models.Ticket, error) {
	return s.ledger.FindTicketByFolio(ctx, strings.TrimSpace(folio))
}

func (s *BoardingService) RefundStatus(ctx context.Context, ticketID string) (*models.RefundInfo, error) {
	ticket, err := s.ledger.FindTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	return ticket.Refund(), nil
}

func (s *BoardingService) ListTickets(ctx context.Context, filter models.TicketFilter) ([]*models.Ticket, int64, error) {
	if filter.Status != "" && !validTicketStatus(filter.Status) {
		return nil, 0, status.Validation("unknown ticket status %q", filter.Status)
	}
	if filter.SaleChannel != "" && !filter.SaleChannel.Valid() {
		return nil, 0, status.Validation("unknown sale channel %q", filter.SaleChannel)
	}
	return s.ledger.ListTickets(ctx, filter)
}

func validTicketStatus(st models.TicketStatus) bool {
	switch st {
	case models.TicketPending, models.TicketPaid, models.TicketValidated, models.TicketUsed, models.TicketCancelled:
		return true
	}
	return false
}

// Trip returns a trip to its passenger, the operator who claimed it, or a
// superuser.
func (s *BoardingService) Trip(ctx context.Context, id string, actor Actor) (*models.Trip, error) {
	trip, err := s.ledger.FindTrip(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Superuser {
		return trip, nil
	}

	ticket, err := s.ledger.FindTicket(ctx, trip.TicketID)
	if err != nil {
		return nil, err
	}
	if ticket.PassengerID != nil && *ticket.PassengerID == actor.UserID {
		return trip, nil
	}

	if trip.Claimed() {
		op, err := s.ledger.FindOperatorByUserID(ctx, actor.UserID)
		switch {
		case err == nil && trip.ClaimedBy(op.ID):
			return trip, nil
		case err != nil && !errors.Is(err, status.ErrOperatorNotRegistered):
			return nil, err
		}
	}
	return nil, status.ErrTripAccessDenied
}

func (s *BoardingService) ListTrips(ctx context.Context, filter models.TripFilter) ([]*models.Trip, int64, error) {
	switch filter.Status {
	case "", models.TripAssigned, models.TripInProgress, models.TripCompleted, models.TripCancelled:
	default:
		return nil, 0, status.Validation("unknown trip status %q", filter.Status)
	}
	return s.ledger.ListTrips(ctx, filter)
}

// CurrentTrip returns the passenger's trip that is in progress.
func (s *BoardingService) CurrentTrip(ctx context.Context, passengerID string) (*models.Trip, error) {
	return s.ledger.FindCurrentTrip(ctx, passengerID)
}

func (s *BoardingService) TripHistory(ctx context.Context, passengerID string, page, limit int) ([]*models.Trip, int64, error) {
	return s.ledger.ListPassengerTrips(ctx, passengerID, page, limit)
}

// OperatorDashboard summarises the operator's open trip and the trips they
// completed since the start of today.
func (s *BoardingService) OperatorDashboard(ctx context.Context, operatorUserID string) (*models.OperatorDashboard, error) {
	op, err := s.ledger.FindOperatorByUserID(ctx, operatorUserID)
	if errors.Is(err, status.ErrOperatorNotRegistered) {
		return nil, status.ErrNotAnOperator
	}
	if err != nil {
		return nil, err
	}

	now := s.now().In(s.zone)
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.zone)
	today, err := s.ledger.CountCompletedTrips(ctx, op.ID, startOfDay)
	if err != nil {
		return nil, err
	}

	dashboard := &models.OperatorDashboard{
		OperatorID:    op.ID,
		LicenseNumber: op.LicenseNumber,
		TripsToday:    today,
	}

	active, err := s.ledger.FindOperatorActiveTrip(ctx, op.ID)
	switch {
	case err == nil:
		dashboard.CurrentTrip = active
		dashboard.ActiveVehicle = active.VehiclePlate
	case !errors.Is(err, status.ErrTripNotFound):
		return nil, err
	}
	return dashboard, nil
}
