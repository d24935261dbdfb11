package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/ssokit/internal/sso/domain"
	"github.com/aussiebroadwan/ssokit/internal/sso/store"
	"github.com/aussiebroadwan/ssokit/pkg/idx"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	st, err := NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.ApplyMigrations())
	return st
}

func sampleTicket(ttl time.Duration) domain.Ticket {
	now := time.Now().UTC()
	return domain.Ticket{
		ID:          idx.New().String(),
		Kind:        domain.KindAuthorizationCode,
		ServiceID:   "client-1",
		RedirectURI: "https://app.example.com/callback",
		Authentication: domain.Authentication{
			Principal:  "casuser",
			Attributes: domain.AuthnAttributes{State: "s1", Nonce: "n1"},
			AuthnTime:  now,
		},
		SingleUse: true,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

func TestTicketsRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := newTestStore(t)

	ticket := sampleTicket(time.Minute)
	require.NoError(t, st.Tickets().CreateTicket(ctx, ticket))

	got, err := st.Tickets().GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	require.Equal(t, ticket.ID, got.ID)
	require.Equal(t, domain.KindAuthorizationCode, got.Kind)
	require.Equal(t, "casuser", got.Authentication.Principal)
	require.Equal(t, "s1", got.Authentication.Attributes.State)
	require.Equal(t, "n1", got.Authentication.Attributes.Nonce)
	require.True(t, got.SingleUse)
	require.False(t, got.Consumed)
	require.Equal(t, ticket.ExpiresAt, got.ExpiresAt)

	t.Run("duplicate insert rejected", func(t *testing.T) {
		require.ErrorIs(t, st.Tickets().CreateTicket(ctx, ticket), store.ErrAlreadyExists)
	})

	t.Run("absent id", func(t *testing.T) {
		_, err := st.Tickets().GetTicket(ctx, "OC-missing")
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestTicketsUpdate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := newTestStore(t)

	ticket := sampleTicket(time.Minute)
	require.NoError(t, st.Tickets().CreateTicket(ctx, ticket))

	ticket.Consumed = true
	require.NoError(t, st.Tickets().UpdateTicket(ctx, ticket))

	got, err := st.Tickets().GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	require.True(t, got.Consumed)

	t.Run("absent id rejected", func(t *testing.T) {
		missing := sampleTicket(time.Minute)
		require.ErrorIs(t, st.Tickets().UpdateTicket(ctx, missing), store.ErrNotFound)
	})
}

func TestTicketsConsume(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := newTestStore(t)
	now := time.Now().UTC()

	t.Run("flips consumed exactly once", func(t *testing.T) {
		ticket := sampleTicket(time.Minute)
		require.NoError(t, st.Tickets().CreateTicket(ctx, ticket))

		got, err := st.Tickets().ConsumeTicket(ctx, ticket.ID, now)
		require.NoError(t, err)
		require.True(t, got.Consumed)

		_, err = st.Tickets().ConsumeTicket(ctx, ticket.ID, now)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("expired ticket not consumable", func(t *testing.T) {
		ticket := sampleTicket(time.Minute)
		require.NoError(t, st.Tickets().CreateTicket(ctx, ticket))

		_, err := st.Tickets().ConsumeTicket(ctx, ticket.ID, ticket.ExpiresAt)
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestTicketsDeleteExpired(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := newTestStore(t)
	now := time.Now().UTC()

	live := sampleTicket(time.Hour)
	expired := sampleTicket(time.Minute)
	burned := sampleTicket(time.Hour)

	require.NoError(t, st.Tickets().CreateTicket(ctx, live))
	require.NoError(t, st.Tickets().CreateTicket(ctx, expired))
	require.NoError(t, st.Tickets().CreateTicket(ctx, burned))

	_, err := st.Tickets().ConsumeTicket(ctx, burned.ID, now)
	require.NoError(t, err)

	require.NoError(t, st.Tickets().DeleteExpiredTickets(ctx, now.Add(30*time.Minute)))

	_, err = st.Tickets().GetTicket(ctx, live.ID)
	require.NoError(t, err)
	_, err = st.Tickets().GetTicket(ctx, expired.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.Tickets().GetTicket(ctx, burned.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestServicesRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := newTestStore(t)
	now := time.Now().UTC()

	svc := domain.RegisteredService{
		ID:                "client-app",
		Name:              "Example App",
		RedirectURIs:      []string{"https://a.example.com/cb", "https://b.example.com/cb"},
		Enabled:           true,
		AllowedPrincipals: []string{"casuser", "operator"},
		RequireConsent:    true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	require.NoError(t, st.Services().CreateService(ctx, svc))

	got, err := st.Services().GetServiceByID(ctx, "client-app")
	require.NoError(t, err)
	require.Equal(t, svc.Name, got.Name)
	require.Equal(t, svc.RedirectURIs, got.RedirectURIs)
	require.Equal(t, svc.AllowedPrincipals, got.AllowedPrincipals)
	require.True(t, got.Enabled)
	require.True(t, got.RequireConsent)

	t.Run("duplicate rejected", func(t *testing.T) {
		require.ErrorIs(t, st.Services().CreateService(ctx, svc), store.ErrAlreadyExists)
	})

	t.Run("list includes the service", func(t *testing.T) {
		all, err := st.Services().ListServices(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		require.Equal(t, "client-app", all[0].ID)
	})

	t.Run("delete removes it", func(t *testing.T) {
		require.NoError(t, st.Services().DeleteService(ctx, "client-app"))
		_, err := st.Services().GetServiceByID(ctx, "client-app")
		require.ErrorIs(t, err, store.ErrNotFound)
		require.ErrorIs(t, st.Services().DeleteService(ctx, "client-app"), store.ErrNotFound)
	})
}

func TestOTPAccountsRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := newTestStore(t)

	registered := time.Date(2026, 8, 31, 10, 15, 30, 123456789, time.UTC)
	account := domain.OneTimeTokenAccount{
		Username:         "casuser",
		SecretKey:        "ciphertext-blob",
		ValidationCode:   111222,
		ScratchCodes:     []int64{1, 2, 3, 4, 5, 6},
		RegistrationDate: registered,
	}
	require.NoError(t, st.OTPAccounts().CreateAccount(ctx, account))

	got, err := st.OTPAccounts().GetAccount(ctx, "casuser")
	require.NoError(t, err)
	require.Equal(t, "ciphertext-blob", got.SecretKey)
	require.Equal(t, int64(111222), got.ValidationCode)
	require.Equal(t, []int64{1, 2, 3, 4, 5, 6}, got.ScratchCodes)

	// Registration dates are stored at second precision.
	require.Equal(t, registered.Truncate(time.Second), got.RegistrationDate)

	t.Run("duplicate username rejected", func(t *testing.T) {
		require.ErrorIs(t, st.OTPAccounts().CreateAccount(ctx, account), store.ErrAlreadyExists)
	})

	t.Run("update keeps registration date", func(t *testing.T) {
		got.SecretKey = "new-ciphertext"
		got.ValidationCode = 999666
		got.ScratchCodes = []int64{9}
		got.RegistrationDate = got.RegistrationDate.Add(time.Hour)
		require.NoError(t, st.OTPAccounts().UpdateAccount(ctx, got))

		after, err := st.OTPAccounts().GetAccount(ctx, "casuser")
		require.NoError(t, err)
		require.Equal(t, "new-ciphertext", after.SecretKey)
		require.Equal(t, int64(999666), after.ValidationCode)
		require.Equal(t, []int64{9}, after.ScratchCodes)
		require.Equal(t, registered.Truncate(time.Second), after.RegistrationDate)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, st.OTPAccounts().DeleteAccount(ctx, "casuser"))
		_, err := st.OTPAccounts().GetAccount(ctx, "casuser")
		require.ErrorIs(t, err, store.ErrNotFound)
		require.ErrorIs(t, st.OTPAccounts().DeleteAccount(ctx, "casuser"), store.ErrNotFound)
	})

	t.Run("update of absent account", func(t *testing.T) {
		require.ErrorIs(t, st.OTPAccounts().UpdateAccount(ctx, account), store.ErrNotFound)
	})
}
