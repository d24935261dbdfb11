package idx

import (
	"crypto/rand"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

type ID string

// Zero represents the zero value ID, don't use this unless its a placeholder.
const Zero ID = ""

// ErrInvalid reports a malformed ID string.
var ErrInvalid = errors.New("idx: invalid id")

var (
	globalOnce sync.Once
	global     *Generator
)

// Generator produces ULID-based identifiers from a monotonic entropy source.
// It is safe for concurrent use. Construct one with NewGenerator and inject it
// into anything that mints identifiers so tests can substitute a fixed clock.
type Generator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	now     func() time.Time
}

// NewGenerator returns a Generator backed by crypto/rand. The optional now
// function overrides the clock (nil means time.Now, taken in UTC).
func NewGenerator(now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{
		entropy: ulid.Monotonic(rand.Reader, 0), // Max Monotonic Window
		now:     now,
	}
}

// New returns a new lexicographically sortable ID.
func (g *Generator) New() ID {
	g.mu.Lock()
	defer g.mu.Unlock()

	t := g.now().UTC()
	u := ulid.MustNew(ulid.Timestamp(t), g.entropy)
	return ID(u.String())
}

// NewTicketID mints a ticket identifier of the form "<prefix>-<ULID>",
// e.g. "OC-01J9ZC2Q7M...". The prefix tags the ticket kind so identifiers
// are self-describing in logs and callback URLs.
func (g *Generator) NewTicketID(prefix string) ID {
	id := g.New()
	if prefix == "" {
		return id
	}
	return ID(prefix + "-" + string(id))
}

func initGlobal() {
	global = NewGenerator(nil)
}

// New returns a new ULID-based ID from the process-wide generator.
func New() ID {
	globalOnce.Do(initGlobal)
	return global.New()
}

// Parse validates s as either a bare ULID or a prefixed ticket id.
func Parse(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Zero, ErrInvalid
	}

	body := s
	if i := strings.LastIndexByte(s, '-'); i >= 0 {
		if i == 0 || i == len(s)-1 {
			return Zero, ErrInvalid
		}
		body = s[i+1:]
	}
	if _, err := ulid.ParseStrict(body); err != nil {
		return Zero, ErrInvalid
	}
	return ID(s), nil
}

// MustParse parses or panics. Useful for hard-coded IDs in tests.
func MustParse(s string) ID {
	id, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}

// IsZero reports whether id is the zero value.
func (id ID) IsZero() bool { return id == Zero }

// String returns the canonical string form.
func (id ID) String() string { return string(id) }

// Prefix returns the ticket-kind prefix of a prefixed id, or "" for bare ULIDs.
func (id ID) Prefix() string {
	s := string(id)
	if i := strings.LastIndexByte(s, '-'); i > 0 {
		return s[:i]
	}
	return ""
}

// Time extracts the embedded UTC timestamp from the ID.
// If the ID is invalid or zero, it returns the zero time.
func (id ID) Time() time.Time {
	if id.IsZero() {
		return time.Time{}
	}

	body := string(id)
	if i := strings.LastIndexByte(body, '-'); i > 0 {
		body = body[i+1:]
	}
	u, err := ulid.ParseStrict(body)
	if err != nil {
		return time.Time{}
	}

	// ULID time component is in ms since epoch.
	return ulid.Time(u.Time())
}
