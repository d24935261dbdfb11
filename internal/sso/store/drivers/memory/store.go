// Package memory is an in-process store driver. Tickets live in a TTL cache
// so expired entries are evicted in the background without a housekeeping
// pass; services and OTP accounts live in mutex-guarded maps. Intended for
// tests and single-node deployments.
package memory

import (
	"context"
	"sync"

	"github.com/aussiebroadwan/ssokit/internal/sso/domain"
	"github.com/aussiebroadwan/ssokit/internal/sso/store"

	"github.com/jellydator/ttlcache/v3"
)

type Store struct {
	tickets  *ticketsRepo
	services *servicesRepo
	accounts *otpAccountsRepo
}

func NewStore() *Store {
	cache := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, domain.Ticket](),
	)
	go cache.Start()

	return &Store{
		tickets:  &ticketsRepo{cache: cache},
		services: &servicesRepo{services: make(map[string]domain.RegisteredService)},
		accounts: &otpAccountsRepo{accounts: make(map[string]domain.OneTimeTokenAccount)},
	}
}

func (s *Store) Tickets() store.Tickets         { return s.tickets }
func (s *Store) Services() store.Services       { return s.services }
func (s *Store) OTPAccounts() store.OTPAccounts { return s.accounts }

// ApplyMigrations is a no-op; the memory driver has no schema.
func (s *Store) ApplyMigrations() error { return nil }

func (s *Store) Ping(ctx context.Context) error { return nil }

func (s *Store) Close() error {
	s.tickets.cache.Stop()
	return nil
}

type servicesRepo struct {
	mu       sync.RWMutex
	services map[string]domain.RegisteredService
}

func (r *servicesRepo) GetServiceByID(_ context.Context, id string) (domain.RegisteredService, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	svc, ok := r.services[id]
	if !ok {
		return domain.RegisteredService{}, store.ErrNotFound
	}
	return svc, nil
}

func (r *servicesRepo) CreateService(_ context.Context, s domain.RegisteredService) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.services[s.ID]; ok {
		return store.ErrAlreadyExists
	}
	r.services[s.ID] = s
	return nil
}

func (r *servicesRepo) ListServices(_ context.Context) ([]domain.RegisteredService, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.RegisteredService, 0, len(r.services))
	for _, svc := range r.services {
		out = append(out, svc)
	}
	return out, nil
}

func (r *servicesRepo) DeleteService(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.services[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.services, id)
	return nil
}

type otpAccountsRepo struct {
	mu       sync.RWMutex
	accounts map[string]domain.OneTimeTokenAccount
}

func (r *otpAccountsRepo) CreateAccount(_ context.Context, a domain.OneTimeTokenAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[a.Username]; ok {
		return store.ErrAlreadyExists
	}
	a.RegistrationDate = a.RegistrationDate.UTC().Truncate(0)
	a.ScratchCodes = cloneCodes(a.ScratchCodes)
	r.accounts[a.Username] = a
	return nil
}

func (r *otpAccountsRepo) GetAccount(_ context.Context, username string) (domain.OneTimeTokenAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.accounts[username]
	if !ok {
		return domain.OneTimeTokenAccount{}, store.ErrNotFound
	}
	a.ScratchCodes = cloneCodes(a.ScratchCodes)
	return a, nil
}

func (r *otpAccountsRepo) UpdateAccount(_ context.Context, a domain.OneTimeTokenAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.accounts[a.Username]
	if !ok {
		return store.ErrNotFound
	}
	// registration date stays immutable
	a.RegistrationDate = existing.RegistrationDate
	a.ScratchCodes = cloneCodes(a.ScratchCodes)
	r.accounts[a.Username] = a
	return nil
}

func (r *otpAccountsRepo) DeleteAccount(_ context.Context, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[username]; !ok {
		return store.ErrNotFound
	}
	delete(r.accounts, username)
	return nil
}

func cloneCodes(codes []int64) []int64 {
	if codes == nil {
		return nil
	}
	out := make([]int64, len(codes))
	copy(out, codes)
	return out
}
