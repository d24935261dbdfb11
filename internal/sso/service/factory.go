package service

import (
	"time"

	"github.com/aussiebroadwan/ssokit/internal/sso/domain"
	"github.com/aussiebroadwan/ssokit/pkg/idx"
)

// TicketFactory mints unpersisted tickets of one kind. The id generator is
// injected so tests can pin the clock; persistence is the caller's job via
// the TicketRegistry. The kind's id prefix makes tickets self-describing
// ("OC-...", "AT-...").
type TicketFactory struct {
	IDs       *idx.Generator
	Kind      domain.TicketKind
	TTL       time.Duration
	SingleUse bool

	// Now overrides the clock in tests. Nil means time.Now.
	Now func() time.Time
}

// NewAuthorizationCodeFactory returns a factory for single-use OAuth codes.
func NewAuthorizationCodeFactory(ids *idx.Generator, ttl time.Duration) *TicketFactory {
	return &TicketFactory{IDs: ids, Kind: domain.KindAuthorizationCode, TTL: ttl, SingleUse: true}
}

// NewAccessTokenFactory returns a factory for bearer access tokens.
func NewAccessTokenFactory(ids *idx.Generator, ttl time.Duration) *TicketFactory {
	return &TicketFactory{IDs: ids, Kind: domain.KindAccessToken, TTL: ttl, SingleUse: false}
}

// Create binds a new ticket to the given service and authentication,
// assigning a fresh unpredictable id and the factory's expiration policy.
// The returned ticket is not persisted.
func (f *TicketFactory) Create(svc domain.RegisteredService, redirectURI string, authn domain.Authentication) domain.Ticket {
	now := time.Now()
	if f.Now != nil {
		now = f.Now()
	}
	now = now.UTC()

	return domain.Ticket{
		ID:             f.IDs.NewTicketID(string(f.Kind)).String(),
		Kind:           f.Kind,
		ServiceID:      svc.ID,
		RedirectURI:    redirectURI,
		Authentication: authn,
		SingleUse:      f.SingleUse,
		CreatedAt:      now,
		ExpiresAt:      now.Add(f.TTL),
	}
}
