package service

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/ssokit/internal/sso/domain"
	"github.com/aussiebroadwan/ssokit/internal/sso/store"
	"github.com/aussiebroadwan/ssokit/pkg/idx"
	"github.com/stretchr/testify/require"
)

func newTestExchange(t *testing.T) (*ExchangeService, *AuthorizeService, store.Store) {
	t.Helper()

	authorize, st := newTestAuthorize(t)
	exchange := &ExchangeService{
		Store:        st,
		Registry:     authorize.Registry,
		AccessTokens: NewAccessTokenFactory(idx.NewGenerator(nil), testTokenTTL),
	}
	return exchange, authorize, st
}

// issueCode runs the code flow end to end and returns the issued code id.
func issueCode(t *testing.T, authorize *AuthorizeService) string {
	t.Helper()

	resp, err := authorize.Authorize(context.Background(), AuthorizeRequest{
		ClientID:     testClientID,
		RedirectURI:  testRedirectURI,
		ResponseType: ResponseTypeCode,
		Profile:      authenticated(domain.AuthnAttributes{}),
	})
	require.NoError(t, err)

	u, err := url.Parse(resp.RedirectURL)
	require.NoError(t, err)

	code := u.Query().Get("code")
	require.NotEmpty(t, code)
	return code
}

func TestExchangeRedeemsCode(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	exchange, authorize, _ := newTestExchange(t)
	registerService(t, authorize.Store, nil)

	code := issueCode(t, authorize)

	resp, err := exchange.Exchange(ctx, ExchangeRequest{
		ClientID:    testClientID,
		Code:        code,
		RedirectURI: testRedirectURI,
	})
	require.NoError(t, err)
	require.Equal(t, "bearer", resp.TokenType)
	require.Equal(t, int64(testTokenTTL/time.Second), resp.ExpiresIn)

	// The token is live in the registry and carries the code's binding.
	token, err := exchange.Registry.GetTicket(ctx, resp.AccessToken, domain.KindAccessToken)
	require.NoError(t, err)
	require.Equal(t, testClientID, token.ServiceID)
	require.Equal(t, "casuser", token.Authentication.Principal)

	t.Run("code is burned", func(t *testing.T) {
		_, err := exchange.Exchange(ctx, ExchangeRequest{
			ClientID:    testClientID,
			Code:        code,
			RedirectURI: testRedirectURI,
		})
		require.ErrorIs(t, err, ErrInvalidGrant)
	})
}

func TestExchangeRejections(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("missing parameters", func(t *testing.T) {
		exchange, authorize, _ := newTestExchange(t)
		registerService(t, authorize.Store, nil)

		_, err := exchange.Exchange(ctx, ExchangeRequest{ClientID: testClientID})
		require.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("unregistered client", func(t *testing.T) {
		exchange, authorize, _ := newTestExchange(t)
		registerService(t, authorize.Store, nil)

		_, err := exchange.Exchange(ctx, ExchangeRequest{
			ClientID:    "nobody",
			Code:        "OC-whatever",
			RedirectURI: testRedirectURI,
		})
		require.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("unknown code", func(t *testing.T) {
		exchange, authorize, _ := newTestExchange(t)
		registerService(t, authorize.Store, nil)

		_, err := exchange.Exchange(ctx, ExchangeRequest{
			ClientID:    testClientID,
			Code:        "OC-unknown",
			RedirectURI: testRedirectURI,
		})
		require.ErrorIs(t, err, ErrInvalidGrant)
	})

	t.Run("redirect mismatch burns the code", func(t *testing.T) {
		exchange, authorize, _ := newTestExchange(t)
		registerService(t, authorize.Store, nil)
		code := issueCode(t, authorize)

		_, err := exchange.Exchange(ctx, ExchangeRequest{
			ClientID:    testClientID,
			Code:        code,
			RedirectURI: "https://app.example.com/other",
		})
		require.ErrorIs(t, err, ErrInvalidGrant)

		// The failed attempt must not leave the code redeemable.
		_, err = exchange.Exchange(ctx, ExchangeRequest{
			ClientID:    testClientID,
			Code:        code,
			RedirectURI: testRedirectURI,
		})
		require.ErrorIs(t, err, ErrInvalidGrant)
	})

	t.Run("client mismatch", func(t *testing.T) {
		exchange, authorize, st := newTestExchange(t)
		registerService(t, authorize.Store, nil)
		require.NoError(t, st.Services().CreateService(ctx, domain.RegisteredService{
			ID:           "other-app",
			Name:         "Other App",
			RedirectURIs: []string{testRedirectURI},
			Enabled:      true,
		}))
		code := issueCode(t, authorize)

		_, err := exchange.Exchange(ctx, ExchangeRequest{
			ClientID:    "other-app",
			Code:        code,
			RedirectURI: testRedirectURI,
		})
		require.ErrorIs(t, err, ErrInvalidGrant)
	})
}

func TestExchangeConcurrentRedemption(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	exchange, authorize, _ := newTestExchange(t)
	registerService(t, authorize.Store, nil)

	code := issueCode(t, authorize)

	const attempts = 16

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := exchange.Exchange(ctx, ExchangeRequest{
				ClientID:    testClientID,
				Code:        code,
				RedirectURI: testRedirectURI,
			})
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, successes, "a code must be redeemable at most once")
}
