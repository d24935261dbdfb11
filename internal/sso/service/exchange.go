package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/ssokit/internal/sso/domain"
	"github.com/aussiebroadwan/ssokit/internal/sso/store"
	"github.com/aussiebroadwan/ssokit/pkg/slogx"
)

// ErrInvalidGrant means the presented authorization code is absent, expired,
// already consumed, or bound to a different client or callback.
var ErrInvalidGrant = errors.New("invalid_grant")

// ExchangeService redeems authorization codes for access tokens. Redemption
// is at-most-once: the registry burns the code atomically, so of N
// concurrent exchanges of the same code exactly one succeeds.
type ExchangeService struct {
	Store        store.Store
	Registry     *TicketRegistry
	AccessTokens *TicketFactory
}

type ExchangeRequest struct {
	ClientID    string
	Code        string
	RedirectURI string
}

type ExchangeResponse struct {
	AccessToken string
	TokenType   string
	ExpiresIn   int64
}

// Exchange validates the redemption request, consumes the code and issues a
// registry-backed access token bound to the same service and authentication.
func (s *ExchangeService) Exchange(ctx context.Context, req ExchangeRequest) (*ExchangeResponse, error) {
	log := slogx.FromContext(ctx)

	if strings.TrimSpace(req.ClientID) == "" || strings.TrimSpace(req.Code) == "" {
		return nil, fmt.Errorf("%w: missing client_id or code", ErrInvalidRequest)
	}

	svc, err := s.Store.Services().GetServiceByID(ctx, req.ClientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: unregistered client %q", ErrInvalidRequest, req.ClientID)
		}
		return nil, err
	}

	code, err := s.Registry.ConsumeTicket(ctx, req.Code, domain.KindAuthorizationCode)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Warn("exchange: code not redeemable", "client_id", req.ClientID)
			return nil, ErrInvalidGrant
		}
		return nil, err
	}

	if code.ServiceID != svc.ID || code.RedirectURI != req.RedirectURI {
		// The code is already burned at this point; a mismatched redemption
		// attempt must not resurrect it.
		log.Warn("exchange: code binding mismatch", "client_id", req.ClientID, "ticket_id", code.ID)
		return nil, ErrInvalidGrant
	}

	token := s.AccessTokens.Create(svc, code.RedirectURI, code.Authentication)
	if err := s.Registry.AddTicket(ctx, token); err != nil {
		return nil, err
	}

	log.Info("exchange: access token issued",
		"client_id", svc.ID, "principal", code.Authentication.Principal)
	return &ExchangeResponse{
		AccessToken: token.ID,
		TokenType:   "bearer",
		ExpiresIn:   int64(s.AccessTokens.TTL / time.Second),
	}, nil
}
