package simulator

import (
	"context"
	"sync"

	"github.com/cuemby/fleetsim/internal/proto"
)

// Node is implemented by every manager level in the controller tree so
// the dispatcher and heartbeat walker can traverse it uniformly.
type Node interface {
	Addr() proto.Address
	childNodes() []Node
}

// allocIndex returns requested if it is non-negative and free, the
// lowest free non-negative integer if requested is negative ("auto"),
// or a *DuplicateIndexError if requested is already taken.
func allocIndex[T any](children map[int]T, requested int) (int, error) {
	if requested >= 0 {
		if _, exists := children[requested]; exists {
			return 0, &DuplicateIndexError{Index: requested}
		}
		return requested, nil
	}
	idx := 0
	for {
		if _, exists := children[idx]; !exists {
			return idx, nil
		}
		idx++
	}
}

// onceEvent is a one-shot completion signal: a request is matched to its
// response by waiting on the same event the dispatcher sets when the
// matching RSP arrives. Responses that arrive after the waiter has given
// up are simply dropped — Set is always safe to call more than once.
type onceEvent struct {
	ch   chan struct{}
	once sync.Once
}

func newOnceEvent() *onceEvent {
	return &onceEvent{ch: make(chan struct{})}
}

func (e *onceEvent) Set() {
	e.once.Do(func() { close(e.ch) })
}

// Wait blocks until Set is called or ctx is done. Passing a context
// without a deadline yields an unbounded wait — used deliberately for
// add_hub's wait on HUB_CONNECT_IND (see DESIGN.md: this is the spec's
// accepted open question, not an oversight).
func (e *onceEvent) Wait(ctx context.Context) error {
	select {
	case <-e.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// stats is the cached heartbeat counter snapshot mirrored from the
// worker's HEARTBEAT_STATS_RSP. The worker process is authoritative; the
// controller only ever caches the last reported values (see DESIGN.md's
// resolution of the "which side is authoritative" open question).
type stats struct {
	mu      sync.Mutex
	success int64
	failure int64
}

func (s *stats) update(success, failure int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.success = success
	s.failure = failure
}

func (s *stats) snapshot() (int64, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.success, s.failure
}
