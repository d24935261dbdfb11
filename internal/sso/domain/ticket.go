package domain

import "time"

// TicketKind tags the ticket variants the registry stores. The values double
// as ticket-id prefixes, e.g. "OC-01J9ZC2Q7M...".
type TicketKind string

const (
	KindAuthorizationCode TicketKind = "OC"
	KindAccessToken       TicketKind = "AT"
	KindTicketGranting    TicketKind = "TGT"
)

// Ticket is an identity-bearing, time-bounded grant. An AuthorizationCode is
// single-use: once Consumed is set, every further redemption must fail. An
// AccessToken is a bearer credential valid until ExpiresAt.
type Ticket struct {
	ID             string
	Kind           TicketKind
	ServiceID      string // registered relying party this ticket was issued for
	RedirectURI    string // callback the ticket was bound to at issuance
	Authentication Authentication
	SingleUse      bool
	Consumed       bool
	CreatedAt      time.Time
	ExpiresAt      time.Time
}

// Expired reports whether the ticket's expiration policy considers it dead at
// the given instant. Consumed single-use tickets are expired by definition.
func (t Ticket) Expired(now time.Time) bool {
	if t.SingleUse && t.Consumed {
		return true
	}
	return !now.Before(t.ExpiresAt)
}
