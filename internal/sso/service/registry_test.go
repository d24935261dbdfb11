package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/ssokit/internal/sso/domain"
	"github.com/aussiebroadwan/ssokit/internal/sso/store"
	"github.com/aussiebroadwan/ssokit/internal/sso/store/drivers/memory"
	"github.com/aussiebroadwan/ssokit/pkg/idx"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *TicketRegistry {
	t.Helper()

	st := memory.NewStore()
	t.Cleanup(func() { _ = st.Close() })

	return &TicketRegistry{Store: st}
}

func mintTicket(kind domain.TicketKind, singleUse bool, ttl time.Duration) domain.Ticket {
	now := time.Now().UTC()
	return domain.Ticket{
		ID:          idx.New().String(),
		Kind:        kind,
		ServiceID:   "client-1",
		RedirectURI: "https://app.example.com/callback",
		Authentication: domain.Authentication{
			Principal: "casuser",
			AuthnTime: now,
		},
		SingleUse: singleUse,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

func TestTicketRegistryAddAndGet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	registry := newTestRegistry(t)

	ticket := mintTicket(domain.KindAuthorizationCode, true, time.Minute)
	require.NoError(t, registry.AddTicket(ctx, ticket))

	got, err := registry.GetTicket(ctx, ticket.ID, domain.KindAuthorizationCode)
	require.NoError(t, err)
	require.Equal(t, ticket.ID, got.ID)
	require.Equal(t, "client-1", got.ServiceID)
	require.Equal(t, "casuser", got.Authentication.Principal)

	t.Run("duplicate id rejected", func(t *testing.T) {
		require.ErrorIs(t, registry.AddTicket(ctx, ticket), store.ErrAlreadyExists)

		// The stored record survives the rejected add.
		got, err := registry.GetTicket(ctx, ticket.ID, domain.KindAuthorizationCode)
		require.NoError(t, err)
		require.Equal(t, ticket.ID, got.ID)
	})
}

func TestTicketRegistryGetFilters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	registry := newTestRegistry(t)

	t.Run("absent id", func(t *testing.T) {
		_, err := registry.GetTicket(ctx, "OC-missing", domain.KindAuthorizationCode)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("kind mismatch reads as absent", func(t *testing.T) {
		ticket := mintTicket(domain.KindAuthorizationCode, true, time.Minute)
		require.NoError(t, registry.AddTicket(ctx, ticket))

		_, err := registry.GetTicket(ctx, ticket.ID, domain.KindAccessToken)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("expired reads as absent", func(t *testing.T) {
		ticket := mintTicket(domain.KindAuthorizationCode, true, time.Minute)
		require.NoError(t, registry.AddTicket(ctx, ticket))

		registry.Now = func() time.Time { return ticket.ExpiresAt }
		defer func() { registry.Now = nil }()

		_, err := registry.GetTicket(ctx, ticket.ID, domain.KindAuthorizationCode)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("consumed single-use reads as absent", func(t *testing.T) {
		ticket := mintTicket(domain.KindAuthorizationCode, true, time.Minute)
		require.NoError(t, registry.AddTicket(ctx, ticket))

		_, err := registry.ConsumeTicket(ctx, ticket.ID, domain.KindAuthorizationCode)
		require.NoError(t, err)

		_, err = registry.GetTicket(ctx, ticket.ID, domain.KindAuthorizationCode)
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestTicketRegistryUpdate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	registry := newTestRegistry(t)

	t.Run("replaces stored record", func(t *testing.T) {
		ticket := mintTicket(domain.KindAccessToken, false, time.Minute)
		require.NoError(t, registry.AddTicket(ctx, ticket))

		ticket.ExpiresAt = ticket.ExpiresAt.Add(time.Hour)
		require.NoError(t, registry.UpdateTicket(ctx, ticket))

		got, err := registry.GetTicket(ctx, ticket.ID, domain.KindAccessToken)
		require.NoError(t, err)
		require.WithinDuration(t, ticket.ExpiresAt, got.ExpiresAt, time.Second)
	})

	t.Run("absent id rejected", func(t *testing.T) {
		ticket := mintTicket(domain.KindAccessToken, false, time.Minute)
		require.ErrorIs(t, registry.UpdateTicket(ctx, ticket), store.ErrNotFound)
	})
}

func TestTicketRegistryConsume(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	registry := newTestRegistry(t)

	t.Run("second consume fails", func(t *testing.T) {
		ticket := mintTicket(domain.KindAuthorizationCode, true, time.Minute)
		require.NoError(t, registry.AddTicket(ctx, ticket))

		got, err := registry.ConsumeTicket(ctx, ticket.ID, domain.KindAuthorizationCode)
		require.NoError(t, err)
		require.Equal(t, ticket.ID, got.ID)
		require.True(t, got.Consumed)

		_, err = registry.ConsumeTicket(ctx, ticket.ID, domain.KindAuthorizationCode)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("wrong kind burns the ticket", func(t *testing.T) {
		ticket := mintTicket(domain.KindAuthorizationCode, true, time.Minute)
		require.NoError(t, registry.AddTicket(ctx, ticket))

		_, err := registry.ConsumeTicket(ctx, ticket.ID, domain.KindAccessToken)
		require.ErrorIs(t, err, store.ErrNotFound)

		_, err = registry.ConsumeTicket(ctx, ticket.ID, domain.KindAuthorizationCode)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("expired consume fails", func(t *testing.T) {
		ticket := mintTicket(domain.KindAuthorizationCode, true, time.Minute)
		require.NoError(t, registry.AddTicket(ctx, ticket))

		registry.Now = func() time.Time { return ticket.ExpiresAt }
		defer func() { registry.Now = nil }()

		_, err := registry.ConsumeTicket(ctx, ticket.ID, domain.KindAuthorizationCode)
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestTicketRegistryConcurrentConsume(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	registry := newTestRegistry(t)

	ticket := mintTicket(domain.KindAuthorizationCode, true, time.Minute)
	require.NoError(t, registry.AddTicket(ctx, ticket))

	const attempts = 32

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := registry.ConsumeTicket(ctx, ticket.ID, domain.KindAuthorizationCode); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, successes, "exactly one concurrent redemption must win")
}
