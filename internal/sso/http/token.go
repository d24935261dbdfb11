package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/ssokit/internal/sso/service"
	"github.com/aussiebroadwan/ssokit/pkg/httpx"
	"github.com/aussiebroadwan/ssokit/pkg/slogx"
)

// TokenHandler redeems authorization codes for access tokens
// (grant_type=authorization_code only).
type TokenHandler struct {
	ExchangeService *service.ExchangeService
}

func (h *TokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "unsupported content type")
		return
	}
	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "malformed form body")
		return
	}

	if gt := strings.TrimSpace(r.Form.Get("grant_type")); gt != "authorization_code" {
		writeOAuthError(w, http.StatusBadRequest, "unsupported_grant_type", "only authorization_code is supported")
		return
	}

	resp, err := h.ExchangeService.Exchange(ctx, service.ExchangeRequest{
		ClientID:    strings.TrimSpace(r.Form.Get("client_id")),
		Code:        strings.TrimSpace(r.Form.Get("code")),
		RedirectURI: strings.TrimSpace(r.Form.Get("redirect_uri")),
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidGrant):
			writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "authorization code is not redeemable")
		case errors.Is(err, service.ErrInvalidRequest):
			writeOAuthError(w, http.StatusBadRequest, "invalid_request", "missing or invalid parameter")
		default:
			log.Error("token exchange failed", "error", err)
			writeOAuthError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"access_token": resp.AccessToken,
		"token_type":   resp.TokenType,
		"expires_in":   resp.ExpiresIn,
	})
}

func writeOAuthError(w http.ResponseWriter, status int, code, description string) {
	httpx.WriteJSON(w, status, map[string]any{
		"error":             code,
		"error_description": description,
	})
}
