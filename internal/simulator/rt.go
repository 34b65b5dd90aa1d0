package simulator

import (
	"sync"

	"github.com/cuemby/fleetsim/internal/proto"
	"github.com/google/uuid"
)

// RTState is the RTManager state machine (spec.md §3).
type RTState string

const (
	RTUnregistered      RTState = "unregistered"
	RTRegistered        RTState = "registered"
	RTRegistrationFailed RTState = "registration_failed"
)

// RTManager tracks a single Remote Terminal on the controller side.
type RTManager struct {
	mu sync.Mutex

	index            int
	address          proto.Address
	auid             string
	state            RTState
	heartbeatSeconds int

	registered *onceEvent
	stats      stats
}

func newRTManager(index int, addr proto.Address, heartbeatSeconds int) *RTManager {
	return &RTManager{
		index:            index,
		address:          addr,
		auid:             uuid.NewString(),
		state:            RTUnregistered,
		heartbeatSeconds: heartbeatSeconds,
		registered:       newOnceEvent(),
	}
}

// Addr implements Node.
func (r *RTManager) Addr() proto.Address { return r.address }

func (r *RTManager) childNodes() []Node { return nil }

// AUID returns the RT's globally unique node identifier.
func (r *RTManager) AUID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.auid
}

// State returns the current registration state.
func (r *RTManager) State() RTState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// HeartbeatSeconds returns the configured heartbeat interval.
func (r *RTManager) HeartbeatSeconds() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.heartbeatSeconds
}

// Index returns the RT's index within its parent AP.
func (r *RTManager) Index() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.index
}

// OnRegisterRsp is invoked by the dispatcher when RT_REGISTER_RSP
// arrives for this node. It must not block or perform I/O.
func (r *RTManager) OnRegisterRsp(success bool) {
	r.mu.Lock()
	if success {
		r.state = RTRegistered
	} else {
		r.state = RTRegistrationFailed
	}
	r.mu.Unlock()
	r.registered.Set()
}

// OnHeartbeatStatsRsp is invoked by the dispatcher when HEARTBEAT_STATS_RSP
// arrives for this node.
func (r *RTManager) OnHeartbeatStatsRsp(success, failure int64) {
	r.stats.update(success, failure)
}

// Stats returns the last cached heartbeat counter snapshot.
func (r *RTManager) Stats() (success, failure int64) {
	return r.stats.snapshot()
}
