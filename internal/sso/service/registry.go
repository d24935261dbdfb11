package service

import (
	"context"
	"time"

	"github.com/aussiebroadwan/ssokit/internal/sso/domain"
	"github.com/aussiebroadwan/ssokit/internal/sso/store"
	"github.com/aussiebroadwan/ssokit/pkg/slogx"
)

// TicketRegistry owns ticket lifetime from registration to expiry. It layers
// the expiration and type-matching rules on top of the raw ticket store:
// expired, consumed and wrong-kind tickets are reported as absent, never as a
// distinct condition, so callers cannot probe for the existence of tickets
// they are not entitled to.
type TicketRegistry struct {
	Store store.Store

	// Now overrides the clock in tests. Nil means time.Now.
	Now func() time.Time
}

func (r *TicketRegistry) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// AddTicket registers a freshly minted ticket. A colliding id is rejected
// with store.ErrAlreadyExists; the stored record is never overwritten.
func (r *TicketRegistry) AddTicket(ctx context.Context, t domain.Ticket) error {
	if err := r.Store.Tickets().CreateTicket(ctx, t); err != nil {
		return err
	}
	slogx.FromContext(ctx).Debug("ticket registered",
		"ticket_id", t.ID, "kind", string(t.Kind), "service_id", t.ServiceID)
	return nil
}

// GetTicket returns the live ticket with the given id and kind. Absent,
// expired, consumed or differently-typed tickets all surface as
// store.ErrNotFound.
func (r *TicketRegistry) GetTicket(ctx context.Context, id string, kind domain.TicketKind) (domain.Ticket, error) {
	t, err := r.Store.Tickets().GetTicket(ctx, id)
	if err != nil {
		return domain.Ticket{}, err
	}
	if t.Kind != kind || t.Expired(r.now()) {
		return domain.Ticket{}, store.ErrNotFound
	}
	return t, nil
}

// UpdateTicket replaces the stored record atomically. Returns
// store.ErrNotFound if the id is absent.
func (r *TicketRegistry) UpdateTicket(ctx context.Context, t domain.Ticket) error {
	return r.Store.Tickets().UpdateTicket(ctx, t)
}

// ConsumeTicket redeems a single-use ticket at most once. Of any number of
// concurrent redemptions of the same id exactly one succeeds; the rest, and
// every later attempt, get store.ErrNotFound.
func (r *TicketRegistry) ConsumeTicket(ctx context.Context, id string, kind domain.TicketKind) (domain.Ticket, error) {
	t, err := r.Store.Tickets().ConsumeTicket(ctx, id, r.now())
	if err != nil {
		return domain.Ticket{}, err
	}
	if t.Kind != kind {
		// Consumed under the wrong type: the ticket is burned either way,
		// but the caller only learns "not found".
		return domain.Ticket{}, store.ErrNotFound
	}
	slogx.FromContext(ctx).Debug("ticket consumed", "ticket_id", t.ID, "kind", string(t.Kind))
	return t, nil
}
