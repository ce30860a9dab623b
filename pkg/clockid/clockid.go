// Package clockid provides the two primitives the job lifecycle depends on
// for anything observable: wall-clock timestamps and fresh job identifiers.
package clockid

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Clock hands out UTC wall-clock instants. Strict monotonicity isn't
// required across heartbeats, but Now is still serialized so that
// timestamps produced within one process are non-decreasing, which keeps
// the created_time ≤ claimed_time ≤ last_heartbeat_time ≤ finished_time
// invariant trivially satisfiable even under a coarse system clock.
type Clock struct {
	mu   sync.Mutex
	last time.Time
}

// New returns a ready-to-use Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current instant in UTC, never earlier than a
// previously-returned instant from this Clock.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().UTC()
	if !now.After(c.last) {
		now = c.last.Add(time.Microsecond)
	}
	c.last = now
	return now
}

// NewID returns a random UUID v4 in lowercase canonical 8-4-4-4-12 hex
// form.
func NewID() string {
	return strings.ToLower(uuid.New().String())
}
