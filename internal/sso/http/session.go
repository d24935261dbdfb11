package http

import (
	"net/http"
	"sync"
	"time"

	"github.com/aussiebroadwan/ssokit/internal/sso/service"
)

const sessionCookieName = "ssokit_session"

// SessionResolver is the external authenticated-principal lookup. Login and
// credential collection happen elsewhere; the authorization endpoint only
// asks whether this request carries an established session.
type SessionResolver interface {
	Resolve(r *http.Request) (*service.Profile, bool)
}

// MemorySessions is a minimal cookie-keyed session table for single-node
// deployments and tests. The profile's attribute bag (state/nonce) is
// recorded at establishment time and travels with the session.
type MemorySessions struct {
	mu       sync.RWMutex
	sessions map[string]service.Profile
	ttl      time.Duration
	expires  map[string]time.Time
}

func NewMemorySessions(ttl time.Duration) *MemorySessions {
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &MemorySessions{
		sessions: make(map[string]service.Profile),
		expires:  make(map[string]time.Time),
		ttl:      ttl,
	}
}

// Establish records a session under the given opaque id.
func (m *MemorySessions) Establish(id string, profile service.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = profile
	m.expires[id] = time.Now().Add(m.ttl)
}

// Drop removes a session.
func (m *MemorySessions) Drop(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	delete(m.expires, id)
}

func (m *MemorySessions) Resolve(r *http.Request) (*service.Profile, bool) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	profile, ok := m.sessions[cookie.Value]
	if !ok || time.Now().After(m.expires[cookie.Value]) {
		return nil, false
	}
	return &profile, true
}
