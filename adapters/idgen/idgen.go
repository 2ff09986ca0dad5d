// Package idgen provides invocation ID generators.
package idgen

import (
	"strconv"
	"sync/atomic"

	"github.com/artpar/hfn/ports"
	"github.com/google/uuid"
)

// UUID generates time-ordered UUIDs (version 7), so invocation IDs sort by
// start time in logs. It falls back to a random version 4 UUID if the clock
// source fails.
type UUID struct{}

// New returns a new UUID string.
func (UUID) New() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

var _ ports.IDGenerator = UUID{}

// Sequential generates prefix1, prefix2, ... for tests.
type Sequential struct {
	prefix  string
	counter atomic.Uint64
}

// NewSequential creates a sequential generator.
func NewSequential(prefix string) *Sequential {
	return &Sequential{prefix: prefix}
}

// New returns the next ID.
func (s *Sequential) New() string {
	return s.prefix + strconv.FormatUint(s.counter.Add(1), 10)
}

// Reset restarts the sequence.
func (s *Sequential) Reset() {
	s.counter.Store(0)
}

var _ ports.IDGenerator = (*Sequential)(nil)
