package memory

import (
	"context"
	"sync"
	"time"

	"github.com/aussiebroadwan/ssokit/internal/sso/domain"
	"github.com/aussiebroadwan/ssokit/internal/sso/store"

	"github.com/jellydator/ttlcache/v3"
)

type ticketsRepo struct {
	// mu serialises read-modify-write sequences (update, consume); the cache
	// itself is already safe for plain gets and sets.
	mu    sync.Mutex
	cache *ttlcache.Cache[string, domain.Ticket]
}

func (r *ticketsRepo) CreateTicket(_ context.Context, t domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cache.Has(t.ID) {
		return store.ErrAlreadyExists
	}
	r.cache.Set(t.ID, t, time.Until(t.ExpiresAt))
	return nil
}

func (r *ticketsRepo) GetTicket(_ context.Context, id string) (domain.Ticket, error) {
	item := r.cache.Get(id)
	if item == nil {
		return domain.Ticket{}, store.ErrNotFound
	}
	return item.Value(), nil
}

func (r *ticketsRepo) UpdateTicket(_ context.Context, t domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.cache.Has(t.ID) {
		return store.ErrNotFound
	}
	r.cache.Set(t.ID, t, time.Until(t.ExpiresAt))
	return nil
}

func (r *ticketsRepo) ConsumeTicket(_ context.Context, id string, now time.Time) (domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	item := r.cache.Get(id)
	if item == nil {
		return domain.Ticket{}, store.ErrNotFound
	}

	t := item.Value()
	if t.Consumed || !now.Before(t.ExpiresAt) {
		return domain.Ticket{}, store.ErrNotFound
	}

	t.Consumed = true
	r.cache.Set(id, t, time.Until(t.ExpiresAt))
	return t, nil
}

func (r *ticketsRepo) DeleteTicket(_ context.Context, id string) error {
	r.cache.Delete(id)
	return nil
}

// DeleteExpiredTickets flushes anything the background eviction has not got
// to yet. ttlcache already evicts on TTL, so this only sweeps consumed
// single-use tickets ahead of their deadline.
func (r *ticketsRepo) DeleteExpiredTickets(_ context.Context, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cache.DeleteExpired()
	for _, item := range r.cache.Items() {
		t := item.Value()
		if t.Expired(now) {
			r.cache.Delete(t.ID)
		}
	}
	return nil
}
