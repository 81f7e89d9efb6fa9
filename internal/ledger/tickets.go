package ledger

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pocketbase/dbx"

	"shuttle-ticket/internal/status"
	"shuttle-ticket/models"
)

// CreateTicket inserts a ticket. The folio UNIQUE constraint is the only
// guard against duplicate folios; a collision returns status.ErrDuplicateFolio.
func (s *Store) CreateTicket(ctx context.Context, t *models.Ticket) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if t.RefundStatus == "" {
		t.RefundStatus = models.RefundNone
	}

	_, err := s.builder(ctx).Insert("tickets", dbx.Params{
		"id":                  t.ID,
		"folio":               t.Folio,
		"price":               t.Price.String(),
		"status":              string(t.Status),
		"sale_channel":        string(t.SaleChannel),
		"passenger_id":        nullString(t.PassengerID),
		"guest_name":          nullString(t.GuestName),
		"payment_reference":   t.PaymentReference,
		"fare_id":             t.FareID,
		"created_at":          dateTime(t.CreatedAt),
		"paid_at":             nullTime(t.PaidAt),
		"cancelled_at":        nullTime(t.CancelledAt),
		"cancellation_reason": t.CancellationReason,
		"refund_status":       string(t.RefundStatus),
	}).WithContext(ctx).Execute()

	return translate(err, conflict{"folio", status.ErrDuplicateFolio})
}

func (s *Store) FindTicket(ctx context.Context, id string) (*models.Ticket, error) {
	return s.findTicket(ctx, dbx.HashExp{"id": id})
}

func (s *Store) FindTicketByFolio(ctx context.Context, folio string) (*models.Ticket, error) {
	return s.findTicket(ctx, dbx.HashExp{"folio": folio})
}

// FindCurrentTicket returns the passenger's most recent ticket that can still
// be boarded.
func (s *Store) FindCurrentTicket(ctx context.Context, passengerID string) (*models.Ticket, error) {
	var row ticketRow
	err := s.builder(ctx).
		Select("*").
		From("tickets").
		Where(dbx.HashExp{"passenger_id": passengerID}).
		AndWhere(dbx.In("status", string(models.TicketPaid), string(models.TicketValidated))).
		OrderBy("created_at DESC").
		Limit(1).
		WithContext(ctx).
		One(&row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, status.ErrTicketNotFound
	}
	if err != nil {
		return nil, translate(err)
	}
	return row.toModel(), nil
}

func (s *Store) findTicket(ctx context.Context, where dbx.Expression) (*models.Ticket, error) {
	var row ticketRow
	err := s.builder(ctx).
		Select("*").
		From("tickets").
		Where(where).
		WithContext(ctx).
		One(&row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, status.ErrTicketNotFound
	}
	if err != nil {
		return nil, translate(err)
	}
	return row.toModel(), nil
}

// ListTickets returns one page of tickets matching the filter, newest first,
// together with the total number of matches.
func (s *Store) ListTickets(ctx context.Context, filter models.TicketFilter) ([]*models.Ticket, int64, error) {
	filter.Normalize()

	var exps []dbx.Expression
	if filter.Status != "" {
		exps = append(exps, dbx.HashExp{"status": string(filter.Status)})
	}
	if filter.SaleChannel != "" {
		exps = append(exps, dbx.HashExp{"sale_channel": string(filter.SaleChannel)})
	}
	if filter.PassengerID != "" {
		exps = append(exps, dbx.HashExp{"passenger_id": filter.PassengerID})
	}
	if !filter.From.IsZero() {
		exps = append(exps, dbx.NewExp("created_at >= {:from}", dbx.Params{"from": dateTime(filter.From)}))
	}
	if !filter.To.IsZero() {
		exps = append(exps, dbx.NewExp("created_at < {:to}", dbx.Params{"to": dateTime(filter.To)}))
	}
	where := dbx.And(exps...)

	var total int64
	err := s.builder(ctx).
		Select("COUNT(*)").
		From("tickets").
		Where(where).
		WithContext(ctx).
		Row(&total)
	if err != nil {
		return nil, 0, translate(err)
	}

	var rows []ticketRow
	err = s.builder(ctx).
		Select("*").
		From("tickets").
		Where(where).
		OrderBy("created_at DESC", "id").
		Offset(int64((filter.Page - 1) * filter.Limit)).
		Limit(int64(filter.Limit)).
		WithContext(ctx).
		All(&rows)
	if err != nil {
		return nil, 0, translate(err)
	}

	tickets := make([]*models.Ticket, 0, len(rows))
	for i := range rows {
		tickets = append(tickets, rows[i].toModel())
	}
	return tickets, total, nil
}

// CancelTicket marks the ticket cancelled with a pending refund. It applies
// only while the ticket is neither cancelled nor used and its trip has not
// started; the returned bool reports whether the update applied.
func (s *Store) CancelTicket(ctx context.Context, id, reason string, at time.Time) (bool, error) {
	res, err := s.builder(ctx).NewQuery(`
		UPDATE tickets
		SET status = {:cancelled},
			cancelled_at = {:at},
			cancellation_reason = {:reason},
			refund_status = {:refund}
		WHERE id = {:id}
			AND status NOT IN ({:cancelled}, {:used})
			AND NOT EXISTS (
				SELECT 1 FROM trips
				WHERE trips.ticket_id = tickets.id AND trips.start_time IS NOT NULL
			)`).
		Bind(dbx.Params{
			"id":        id,
			"cancelled": string(models.TicketCancelled),
			"used":      string(models.TicketUsed),
			"at":        dateTime(at),
			"reason":    reason,
			"refund":    string(models.RefundPending),
		}).
		WithContext(ctx).
		Execute()
	return applied(res, err)
}

// MarkTicketUsed consumes a boardable ticket.
func (s *Store) MarkTicketUsed(ctx context.Context, id string) (bool, error) {
	res, err := s.builder(ctx).Update("tickets",
		dbx.Params{"status": string(models.TicketUsed)},
		dbx.And(
			dbx.HashExp{"id": id},
			dbx.In("status", string(models.TicketPaid), string(models.TicketValidated)),
		),
	).WithContext(ctx).Execute()
	return applied(res, err)
}

// applied reports whether a conditional update touched a row.
func applied(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, translate(err)
	}
	return n > 0, nil
}
