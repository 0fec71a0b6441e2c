package idx

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

type ID string

var (
	defaultOnce sync.Once
	defaultSrc  *Source
)

// Source generates ULIDs from a monotonic entropy source. The clock decides the
// timestamp component, so records created under a simulated clock still sort
// in creation order.
type Source struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	clock   func() time.Time
}

// NewSource returns a Source reading time from clock. A nil clock means
// time.Now.
func NewSource(clock func() time.Time) *Source {
	if clock == nil {
		clock = time.Now
	}
	return &Source{
		entropy: ulid.Monotonic(rand.Reader, 0),
		clock:   clock,
	}
}

func (s *Source) New() ID {
	return s.NewAt(s.clock())
}

func (s *Source) NewAt(t time.Time) ID {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := ulid.MustNew(ulid.Timestamp(t.UTC()), s.entropy)
	return ID(u.String())
}

func source() *Source {
	defaultOnce.Do(func() { defaultSrc = NewSource(nil) })
	return defaultSrc
}

// New returns a new lexicographically sortable ULID-based ID using the
// current time.
func New() ID {
	return source().New()
}

// NewAt generates an ID at the provided time, useful for tests or when the
// caller runs on an injected clock.
func NewAt(t time.Time) ID {
	return source().NewAt(t)
}

// String returns the canonical string form.
func (id ID) String() string { return string(id) }

// Compare reports the lexical ordering between a and b.
// Returns -1 if a<b, 0 if a==b, +1 if a>b.
func Compare(a, b ID) int {
	return strings.Compare(a.String(), b.String())
}
