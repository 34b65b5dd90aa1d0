package simulator

import (
	"sync"

	"github.com/cuemby/fleetsim/internal/proto"
	"github.com/google/uuid"
)

// APState is the APManager state machine (spec.md §3). Per DESIGN.md's
// resolution of the registration-timing open question, an AP is
// UNREGISTERED immediately after creation and only becomes REGISTERED
// once the worker's async AP_REGISTER_RSP arrives (the "202 Accepted,
// poll-to-registered" iteration).
type APState string

const (
	APUnregistered      APState = "unregistered"
	APRegistered        APState = "registered"
	APRegistrationFailed APState = "registration_failed"
)

// APManager tracks a single Access Point on the controller side.
type APManager struct {
	mu sync.Mutex

	index            int
	address          proto.Address
	auid             string
	hubAUID          string
	state            APState
	heartbeatSeconds int
	rtHeartbeatSec   int
	children         map[int]*RTManager

	registered *onceEvent
	stats      stats
}

func newAPManager(index int, addr proto.Address, hubAUID string, heartbeatSeconds, rtHeartbeatSeconds int) *APManager {
	return &APManager{
		index:            index,
		address:          addr,
		auid:             uuid.NewString(),
		hubAUID:          hubAUID,
		state:            APUnregistered,
		heartbeatSeconds: heartbeatSeconds,
		rtHeartbeatSec:   rtHeartbeatSeconds,
		children:         make(map[int]*RTManager),
		registered:       newOnceEvent(),
	}
}

// Addr implements Node.
func (a *APManager) Addr() proto.Address { return a.address }

func (a *APManager) childNodes() []Node {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Node, 0, len(a.children))
	for _, rt := range a.children {
		out = append(out, rt)
	}
	return out
}

// AUID returns the AP's globally unique node identifier.
func (a *APManager) AUID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.auid
}

// State returns the current registration state.
func (a *APManager) State() APState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// HeartbeatSeconds returns the configured heartbeat interval.
func (a *APManager) HeartbeatSeconds() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.heartbeatSeconds
}

// Index returns the AP's index within its parent hub.
func (a *APManager) Index() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.index
}

// RT returns the RT at the given index, or a *NotFoundError.
func (a *APManager) RT(index int) (*RTManager, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	rt, ok := a.children[index]
	if !ok {
		return nil, &NotFoundError{What: "rt"}
	}
	return rt, nil
}

// RTs returns a snapshot of all RT children.
func (a *APManager) RTs() map[int]*RTManager {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[int]*RTManager, len(a.children))
	for k, v := range a.children {
		out[k] = v
	}
	return out
}

func (a *APManager) removeRT(index int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.children[index]; !ok {
		return &NotFoundError{What: "rt"}
	}
	delete(a.children, index)
	return nil
}

// OnRegisterRsp is invoked by the dispatcher when AP_REGISTER_RSP
// arrives for this node. It must not block or perform I/O.
func (a *APManager) OnRegisterRsp(success bool) {
	a.mu.Lock()
	if success {
		a.state = APRegistered
	} else {
		a.state = APRegistrationFailed
	}
	a.mu.Unlock()
	a.registered.Set()
}

// OnHeartbeatStatsRsp is invoked by the dispatcher when HEARTBEAT_STATS_RSP
// arrives for this node.
func (a *APManager) OnHeartbeatStatsRsp(success, failure int64) {
	a.stats.update(success, failure)
}

// Stats returns the last cached heartbeat counter snapshot.
func (a *APManager) Stats() (success, failure int64) {
	return a.stats.snapshot()
}
