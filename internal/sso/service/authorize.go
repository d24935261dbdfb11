package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aussiebroadwan/ssokit/internal/sso/domain"
	"github.com/aussiebroadwan/ssokit/internal/sso/store"
	"github.com/aussiebroadwan/ssokit/pkg/slogx"
)

var (
	// ErrInvalidRequest covers missing/malformed parameters, unregistered
	// clients, disallowed callbacks and unsupported response types. The
	// user-facing view never distinguishes these from ErrUnauthorizedService;
	// the split exists for logs and diagnostics only.
	ErrInvalidRequest = errors.New("invalid_request")

	// ErrUnauthorizedService means the access policy denied the client or
	// the principal.
	ErrUnauthorizedService = errors.New("unauthorized_service")

	// ErrAuthenticationRequired means no user profile was established before
	// the authorization endpoint was reached.
	ErrAuthenticationRequired = errors.New("authentication_required")
)

const (
	ResponseTypeCode  = "code"
	ResponseTypeToken = "token"
)

// AuthorizeRequest captures one authorization request together with the
// already-established session profile. State and Nonce are the raw request
// parameters; the values echoed into the callback come from the
// authentication attribute bag, which the session layer records at hand-off.
type AuthorizeRequest struct {
	ClientID     string
	RedirectURI  string
	ResponseType string
	State        string
	Nonce        string

	// Profile is the authenticated principal resolved by the external
	// session collaborator. Nil means authentication never happened.
	Profile *Profile

	// ConsentApproved is set when the user has come back from an interactive
	// consent prompt and approved the grant.
	ConsentApproved bool
}

// Profile is the externally-established user session handed to the endpoint.
type Profile struct {
	Principal  string
	Attributes domain.AuthnAttributes
	AuthnTime  time.Time
}

// AccessStrategy decides whether a registered service, and then a specific
// principal, may go through the authorization flow. Both checks must pass.
type AccessStrategy interface {
	CheckServiceAccess(svc domain.RegisteredService) error
	CheckPrincipalAccess(svc domain.RegisteredService, authn domain.Authentication) error
}

// PolicyAccessStrategy enforces the registered service's own policy fields:
// the enabled flag and the allowed-principals list.
type PolicyAccessStrategy struct{}

func (PolicyAccessStrategy) CheckServiceAccess(svc domain.RegisteredService) error {
	if !svc.Enabled {
		return fmt.Errorf("%w: service %s is disabled", ErrUnauthorizedService, svc.ID)
	}
	return nil
}

func (PolicyAccessStrategy) CheckPrincipalAccess(svc domain.RegisteredService, authn domain.Authentication) error {
	if !svc.Enabled {
		return fmt.Errorf("%w: service %s is disabled", ErrUnauthorizedService, svc.ID)
	}
	if !svc.AllowsPrincipal(authn.Principal) {
		return fmt.Errorf("%w: principal denied for service %s", ErrUnauthorizedService, svc.ID)
	}
	return nil
}

// ConsentPrompt is the interactive consent view returned instead of a
// redirect when the grant still needs user approval. It is a valid non-error
// exit from the flow.
type ConsentPrompt struct {
	ServiceID   string
	ServiceName string
	Principal   string
}

// ConsentResolver decides whether the flow may proceed to ticket issuance or
// must short-circuit into an interactive prompt. A nil prompt means proceed.
type ConsentResolver interface {
	Resolve(ctx context.Context, req AuthorizeRequest, svc domain.RegisteredService, authn domain.Authentication) (*ConsentPrompt, error)
}

// ServiceConsentResolver prompts when the registered service demands consent
// and the user has not approved this request yet.
type ServiceConsentResolver struct{}

func (ServiceConsentResolver) Resolve(_ context.Context, req AuthorizeRequest, svc domain.RegisteredService, authn domain.Authentication) (*ConsentPrompt, error) {
	if !svc.RequireConsent || req.ConsentApproved {
		return nil, nil
	}
	return &ConsentPrompt{
		ServiceID:   svc.ID,
		ServiceName: svc.Name,
		Principal:   authn.Principal,
	}, nil
}

// AuthorizeResponse is the successful outcome of the endpoint: either a
// callback redirect, or an interactive consent prompt.
type AuthorizeResponse struct {
	RedirectURL string
	Consent     *ConsentPrompt
}

// AuthorizeService is the OAuth2 authorization endpoint state machine. It
// holds no persistent state of its own; every cross-request effect goes
// through the ticket registry.
type AuthorizeService struct {
	Store        store.Store
	Registry     *TicketRegistry
	Codes        *TicketFactory
	AccessTokens *TicketFactory
	Access       AccessStrategy
	Consent      ConsentResolver
}

// Authorize runs the full flow: request validation, authentication check,
// access policy, consent resolution, ticket issuance and redirect
// construction.
//
// Returns:
//   - (*AuthorizeResponse{RedirectURL}, nil) on success
//   - (*AuthorizeResponse{Consent}, nil) when interactive consent is needed
//   - (nil, ErrInvalidRequest) for malformed/unregistered/disallowed requests
//   - (nil, ErrAuthenticationRequired) when no profile is established
//   - (nil, ErrUnauthorizedService) when access policy denies the grant
//
// Registry failures (duplicate id) propagate unwrapped; they are not
// transient and are never retried here.
func (s *AuthorizeService) Authorize(ctx context.Context, req AuthorizeRequest) (*AuthorizeResponse, error) {
	log := slogx.FromContext(ctx)

	svc, err := s.verifyRequest(ctx, req)
	if err != nil {
		log.Warn("authorize: request verification failed", "client_id", req.ClientID, "error", err)
		return nil, err
	}

	if req.Profile == nil || strings.TrimSpace(req.Profile.Principal) == "" {
		log.Warn("authorize: no authenticated profile", "client_id", req.ClientID)
		return nil, ErrAuthenticationRequired
	}

	authn := domain.Authentication{
		Principal:  req.Profile.Principal,
		Attributes: req.Profile.Attributes,
		AuthnTime:  req.Profile.AuthnTime,
	}

	// The access policy is checked twice: once for the client's general
	// service access and once for this principal specifically.
	if err := s.Access.CheckServiceAccess(svc); err != nil {
		log.Warn("authorize: service access denied", "client_id", svc.ID, "error", err)
		return nil, err
	}
	if err := s.Access.CheckPrincipalAccess(svc, authn); err != nil {
		log.Warn("authorize: principal access denied",
			"client_id", svc.ID, "principal", authn.Principal, "error", err)
		return nil, err
	}

	prompt, err := s.Consent.Resolve(ctx, req, svc, authn)
	if err != nil {
		return nil, err
	}
	if prompt != nil {
		return &AuthorizeResponse{Consent: prompt}, nil
	}

	var callbackURL string
	if strings.EqualFold(req.ResponseType, ResponseTypeCode) {
		callbackURL, err = s.issueCode(ctx, svc, req.RedirectURI, authn)
	} else {
		callbackURL, err = s.issueImplicitToken(ctx, svc, req.RedirectURI, authn)
	}
	if err != nil {
		return nil, err
	}

	log.Info("authorize: callback built",
		"client_id", svc.ID, "principal", authn.Principal, "response_type", strings.ToLower(req.ResponseType))
	return &AuthorizeResponse{RedirectURL: callbackURL}, nil
}

// verifyRequest performs the ReceivedRequest -> Validated transition. Every
// failure maps to the same outward condition regardless of which check
// tripped; only the wrapped detail differs for logging.
func (s *AuthorizeService) verifyRequest(ctx context.Context, req AuthorizeRequest) (domain.RegisteredService, error) {
	if strings.TrimSpace(req.ClientID) == "" {
		return domain.RegisteredService{}, fmt.Errorf("%w: missing client_id", ErrInvalidRequest)
	}
	if strings.TrimSpace(req.RedirectURI) == "" {
		return domain.RegisteredService{}, fmt.Errorf("%w: missing redirect_uri", ErrInvalidRequest)
	}
	rt := strings.TrimSpace(req.ResponseType)
	if rt == "" {
		return domain.RegisteredService{}, fmt.Errorf("%w: missing response_type", ErrInvalidRequest)
	}
	if !strings.EqualFold(rt, ResponseTypeCode) && !strings.EqualFold(rt, ResponseTypeToken) {
		return domain.RegisteredService{}, fmt.Errorf("%w: unsupported response_type %q", ErrInvalidRequest, rt)
	}

	svc, err := s.Store.Services().GetServiceByID(ctx, req.ClientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.RegisteredService{}, fmt.Errorf("%w: unregistered client %q", ErrInvalidRequest, req.ClientID)
		}
		return domain.RegisteredService{}, err
	}

	if !svc.AllowsRedirectURI(req.RedirectURI) {
		return domain.RegisteredService{}, fmt.Errorf("%w: disallowed redirect_uri", ErrInvalidRequest)
	}

	return svc, nil
}

func (s *AuthorizeService) issueCode(ctx context.Context, svc domain.RegisteredService, redirectURI string, authn domain.Authentication) (string, error) {
	code := s.Codes.Create(svc, redirectURI, authn)
	if err := s.Registry.AddTicket(ctx, code); err != nil {
		return "", err
	}
	return buildCodeCallback(redirectURI, code.ID, authn.Attributes)
}

func (s *AuthorizeService) issueImplicitToken(ctx context.Context, svc domain.RegisteredService, redirectURI string, authn domain.Authentication) (string, error) {
	token := s.AccessTokens.Create(svc, redirectURI, authn)
	if err := s.Registry.AddTicket(ctx, token); err != nil {
		return "", err
	}
	expiresIn := int64(s.AccessTokens.TTL / time.Second)
	return buildImplicitCallback(redirectURI, token.ID, expiresIn, authn.Attributes)
}

// buildCodeCallback appends code (and state/nonce when recorded) to the
// redirect URI's query string.
func buildCodeCallback(redirectURI, codeID string, attrs domain.AuthnAttributes) (string, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return "", fmt.Errorf("%w: unparsable redirect_uri", ErrInvalidRequest)
	}

	q := u.Query()
	q.Set("code", codeID)
	if attrs.State != "" {
		q.Set("state", attrs.State)
	}
	if attrs.Nonce != "" {
		q.Set("nonce", attrs.Nonce)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// buildImplicitCallback appends the access token response as a URL fragment
// per the implicit-flow convention. The fragment is assembled by hand so the
// already-escaped values are not escaped a second time by url.URL.
func buildImplicitCallback(redirectURI, tokenID string, expiresIn int64, attrs domain.AuthnAttributes) (string, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return "", fmt.Errorf("%w: unparsable redirect_uri", ErrInvalidRequest)
	}
	u.Fragment = ""
	u.RawFragment = ""

	var frag strings.Builder
	frag.WriteString("access_token=")
	frag.WriteString(url.QueryEscape(tokenID))
	frag.WriteString("&token_type=bearer&expires_in=")
	fmt.Fprintf(&frag, "%d", expiresIn)
	if attrs.State != "" {
		frag.WriteString("&state=")
		frag.WriteString(url.QueryEscape(attrs.State))
	}
	if attrs.Nonce != "" {
		frag.WriteString("&nonce=")
		frag.WriteString(url.QueryEscape(attrs.Nonce))
	}

	return u.String() + "#" + frag.String(), nil
}
