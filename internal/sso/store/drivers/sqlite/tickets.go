package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/ssokit/internal/sso/domain"
	"github.com/aussiebroadwan/ssokit/internal/sso/store"
)

type ticketsRepo struct {
	db *sql.DB
}

const ticketColumns = `id, kind, service_id, redirect_uri, principal, state, nonce,
	authn_time, single_use, consumed, created_at, expires_at`

func (r *ticketsRepo) CreateTicket(ctx context.Context, t domain.Ticket) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO tickets (`+ticketColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`,
		t.ID, string(t.Kind), t.ServiceID, t.RedirectURI,
		t.Authentication.Principal, t.Authentication.Attributes.State,
		t.Authentication.Attributes.Nonce, toUnixNano(t.Authentication.AuthnTime),
		t.SingleUse, t.Consumed, toUnixNano(t.CreatedAt), toUnixNano(t.ExpiresAt),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrAlreadyExists
	}
	return nil
}

func (r *ticketsRepo) GetTicket(ctx context.Context, id string) (domain.Ticket, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+ticketColumns+` FROM tickets WHERE id = ?`, id)
	return scanTicket(row)
}

func (r *ticketsRepo) UpdateTicket(ctx context.Context, t domain.Ticket) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE tickets
		SET kind = ?, service_id = ?, redirect_uri = ?, principal = ?,
		    state = ?, nonce = ?, authn_time = ?, single_use = ?,
		    consumed = ?, created_at = ?, expires_at = ?
		WHERE id = ?`,
		string(t.Kind), t.ServiceID, t.RedirectURI,
		t.Authentication.Principal, t.Authentication.Attributes.State,
		t.Authentication.Attributes.Nonce, toUnixNano(t.Authentication.AuthnTime),
		t.SingleUse, t.Consumed, toUnixNano(t.CreatedAt), toUnixNano(t.ExpiresAt),
		t.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *ticketsRepo) ConsumeTicket(ctx context.Context, id string, now time.Time) (domain.Ticket, error) {
	// The conditional UPDATE is the at-most-once primitive: of any number of
	// concurrent redemptions exactly one flips consumed.
	res, err := r.db.ExecContext(ctx, `
		UPDATE tickets SET consumed = 1
		WHERE id = ? AND consumed = 0 AND expires_at > ?`,
		id, toUnixNano(now),
	)
	if err != nil {
		return domain.Ticket{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.Ticket{}, err
	}
	if n == 0 {
		return domain.Ticket{}, store.ErrNotFound
	}
	return r.GetTicket(ctx, id)
}

func (r *ticketsRepo) DeleteTicket(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM tickets WHERE id = ?`, id)
	return err
}

func (r *ticketsRepo) DeleteExpiredTickets(ctx context.Context, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM tickets
		WHERE expires_at <= ? OR (single_use = 1 AND consumed = 1)`,
		toUnixNano(now),
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (domain.Ticket, error) {
	var (
		t                               domain.Ticket
		kind                            string
		authnNano, createdNano, expNano int64
	)
	err := row.Scan(
		&t.ID, &kind, &t.ServiceID, &t.RedirectURI,
		&t.Authentication.Principal, &t.Authentication.Attributes.State,
		&t.Authentication.Attributes.Nonce, &authnNano,
		&t.SingleUse, &t.Consumed, &createdNano, &expNano,
	)
	if err != nil {
		return domain.Ticket{}, mapNotFound(err)
	}
	t.Kind = domain.TicketKind(kind)
	t.Authentication.AuthnTime = fromUnixNano(authnNano)
	t.CreatedAt = fromUnixNano(createdNano)
	t.ExpiresAt = fromUnixNano(expNano)
	return t, nil
}
