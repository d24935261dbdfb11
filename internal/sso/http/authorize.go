package http

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/aussiebroadwan/ssokit/internal/sso/service"
	"github.com/aussiebroadwan/ssokit/pkg/httpx"
	"github.com/aussiebroadwan/ssokit/pkg/slogx"
)

// AuthorizeHandler serves the OAuth2 authorization endpoint. Every
// validation, authentication and policy failure renders the same generic
// unauthorized-service view; the specific kind only reaches the logs, so the
// response cannot be used to enumerate registered clients or callbacks.
type AuthorizeHandler struct {
	AuthorizeService *service.AuthorizeService
	Sessions         SessionResolver
}

func (h *AuthorizeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	req := buildAuthorizeRequest(r.URL.Query())
	if profile, ok := h.Sessions.Resolve(r); ok {
		// state/nonce are carried on the authentication attribute bag. When
		// the session was established before this request existed, seed the
		// bag from the request parameters exactly once.
		if profile.Attributes.State == "" {
			profile.Attributes.State = req.State
		}
		if profile.Attributes.Nonce == "" {
			profile.Attributes.Nonce = req.Nonce
		}
		req.Profile = profile
	}

	resp, err := h.AuthorizeService.Authorize(ctx, req)
	if err != nil {
		log.Warn("authorize request rejected", "client_id", req.ClientID, "error", err)
		writeErrorView(w)
		return
	}

	if resp.Consent != nil {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"consent_required": true,
			"service_id":       resp.Consent.ServiceID,
			"service_name":     resp.Consent.ServiceName,
			"principal":        resp.Consent.Principal,
		})
		return
	}

	http.Redirect(w, r, resp.RedirectURL, http.StatusFound)
}

func buildAuthorizeRequest(q url.Values) service.AuthorizeRequest {
	pick := func(key string) string { return strings.TrimSpace(q.Get(key)) }

	return service.AuthorizeRequest{
		ClientID:        pick("client_id"),
		RedirectURI:     pick("redirect_uri"),
		ResponseType:    pick("response_type"),
		State:           pick("state"),
		Nonce:           pick("nonce"),
		ConsentApproved: pick("consent") == "approved",
	}
}

// writeErrorView renders the one error view the endpoint ever shows.
// No failure detail is differentiated here on purpose.
func writeErrorView(w http.ResponseWriter) {
	httpx.WriteJSON(w, http.StatusForbidden, map[string]any{
		"error":             "unauthorized_service",
		"error_description": "service unauthorized",
	})
}
