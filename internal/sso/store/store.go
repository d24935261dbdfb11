package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/ssokit/internal/sso/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite, memory)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable. All methods must be safe for concurrent use from multiple
// request workers.
type Store interface {
	Tickets() Tickets
	Services() Services
	OTPAccounts() OTPAccounts

	ApplyMigrations() error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the backing store is still reachable.
	Ping(ctx context.Context) error
}

type Tickets interface {
	// CreateTicket stores a freshly minted ticket. Returns ErrAlreadyExists
	// if the id is already present; existing records are never overwritten.
	CreateTicket(ctx context.Context, t domain.Ticket) error

	// GetTicket returns the stored ticket by id, including expired and
	// consumed records. Expiry filtering is the registry's concern.
	GetTicket(ctx context.Context, id string) (domain.Ticket, error)

	// UpdateTicket replaces the stored record atomically. Returns
	// ErrNotFound if the id is absent.
	UpdateTicket(ctx context.Context, t domain.Ticket) error

	// ConsumeTicket atomically marks a live, unconsumed ticket as consumed
	// and returns it. Exactly one of any number of concurrent calls for the
	// same id succeeds; the rest get ErrNotFound.
	ConsumeTicket(ctx context.Context, id string, now time.Time) (domain.Ticket, error)

	// DeleteTicket removes a ticket by id. Absent ids are not an error.
	DeleteTicket(ctx context.Context, id string) error

	// DeleteExpiredTickets removes every ticket expired at now (housekeeping).
	DeleteExpiredTickets(ctx context.Context, now time.Time) error
}

type Services interface {
	// GetServiceByID fetches a registered service by client_id.
	GetServiceByID(ctx context.Context, id string) (domain.RegisteredService, error)

	// CreateService registers a new relying party.
	CreateService(ctx context.Context, s domain.RegisteredService) error

	// ListServices returns all registered services ordered by creation date.
	ListServices(ctx context.Context) ([]domain.RegisteredService, error)

	// DeleteService removes a registered service.
	DeleteService(ctx context.Context, id string) error
}

type OTPAccounts interface {
	// CreateAccount stores a new account record. SecretKey must already be
	// ciphertext. Returns ErrAlreadyExists if the username is taken.
	CreateAccount(ctx context.Context, a domain.OneTimeTokenAccount) error

	// GetAccount returns the stored record (SecretKey is ciphertext) or
	// ErrNotFound.
	GetAccount(ctx context.Context, username string) (domain.OneTimeTokenAccount, error)

	// UpdateAccount replaces the mutable fields of an existing record.
	// RegistrationDate is preserved from the original record. Returns
	// ErrNotFound if the username is absent.
	UpdateAccount(ctx context.Context, a domain.OneTimeTokenAccount) error

	// DeleteAccount removes the record. Returns ErrNotFound if absent.
	DeleteAccount(ctx context.Context, username string) error
}
