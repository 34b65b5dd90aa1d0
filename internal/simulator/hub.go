package simulator

import (
	"context"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/cuemby/fleetsim/internal/log"
	"github.com/cuemby/fleetsim/internal/proto"
	"github.com/google/uuid"
)

// HubState is the HubManager state machine (spec.md §3).
type HubState string

const (
	HubUnregistered HubState = "unregistered"
	HubRegistered   HubState = "registered"
)

// workerTerminateGrace is how long the controller waits for a worker
// process to exit after SIGTERM before sending SIGKILL (spec.md §5).
const workerTerminateGrace = 5 * time.Second

// HubManager tracks a single Hub and the worker process handling it.
type HubManager struct {
	mu sync.Mutex

	index    int
	address  proto.Address
	auid     string
	state    HubState
	children map[int]*APManager

	cmd       *exec.Cmd
	connected *onceEvent

	statsMu sync.Mutex
	statsCh chan hubStatsResult
}

func newHubManager(index int, addr proto.Address) *HubManager {
	return &HubManager{
		index:     index,
		address:   addr,
		auid:      uuid.NewString(),
		state:     HubUnregistered,
		children:  make(map[int]*APManager),
		connected: newOnceEvent(),
	}
}

// Addr implements Node.
func (h *HubManager) Addr() proto.Address { return h.address }

func (h *HubManager) childNodes() []Node {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Node, 0, len(h.children))
	for _, ap := range h.children {
		out = append(out, ap)
	}
	return out
}

// AUID returns the hub's globally unique node identifier.
func (h *HubManager) AUID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.auid
}

// State returns the current registration state.
func (h *HubManager) State() HubState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Index returns the hub's index within its parent network.
func (h *HubManager) Index() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.index
}

// AP returns the AP at the given index, or a *NotFoundError.
func (h *HubManager) AP(index int) (*APManager, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ap, ok := h.children[index]
	if !ok {
		return nil, &NotFoundError{What: "ap"}
	}
	return ap, nil
}

// APs returns a snapshot of all AP children.
func (h *HubManager) APs() map[int]*APManager {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[int]*APManager, len(h.children))
	for k, v := range h.children {
		out[k] = v
	}
	return out
}

func (h *HubManager) removeAP(index int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.children[index]; !ok {
		return &NotFoundError{What: "ap"}
	}
	delete(h.children, index)
	return nil
}

func (h *HubManager) setRegistered() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = HubRegistered
}

// OnConnectInd is invoked by the dispatcher when HUB_CONNECT_IND arrives
// for this hub. It must not block or perform I/O.
func (h *HubManager) OnConnectInd() {
	h.connected.Set()
}

// hubStatsResult is the worker's rolled-up success/failure tally for a
// HEARTBEAT_STATS_REQ addressed at the hub itself (the worker sums
// across every AP it hosts; see internal/worker's handleStatsReq).
type hubStatsResult struct {
	success, failure int64
}

// awaitStats registers a one-shot waiter for the next HEARTBEAT_STATS_RSP
// addressed at this hub. Only one wait may be outstanding at a time; a
// second call replaces the first, whose waiter then receives no reply and
// returns only when its own context is done.
func (h *HubManager) awaitStats() <-chan hubStatsResult {
	ch := make(chan hubStatsResult, 1)
	h.statsMu.Lock()
	h.statsCh = ch
	h.statsMu.Unlock()
	return ch
}

// OnHeartbeatStatsRsp is invoked by the dispatcher when a
// HEARTBEAT_STATS_RSP addressed at the hub itself arrives. It must not
// block or perform I/O.
func (h *HubManager) OnHeartbeatStatsRsp(success, failure int64) {
	h.statsMu.Lock()
	ch := h.statsCh
	h.statsCh = nil
	h.statsMu.Unlock()
	if ch != nil {
		ch <- hubStatsResult{success: success, failure: failure}
	}
}

// startWorker spawns the per-hub worker process and returns once it has
// launched. It does not wait for HUB_CONNECT_IND — callers await that
// separately via waitConnected so the unbounded-wait decision (see
// DESIGN.md) is visible at the call site.
func (h *HubManager) startWorker(workerBin, pubAddr, pullAddr string) error {
	cmd := exec.Command(
		workerBin,
		"-net", strconv.Itoa(*h.address.Net),
		"-hub", strconv.Itoa(*h.address.Hub),
		"-pub-addr", pubAddr,
		"-pull-addr", pullAddr,
	)
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return err
	}
	h.mu.Lock()
	h.cmd = cmd
	h.mu.Unlock()
	log.WithComponent("simulator").Info().Str("hub", h.address.Tag()).Msg("hub worker started")
	return nil
}

// waitConnected blocks until HUB_CONNECT_IND has been observed for this
// hub. Passing a context with no deadline gives the unbounded wait the
// spec's open question leaves unresolved (see DESIGN.md).
func (h *HubManager) waitConnected(ctx context.Context) error {
	return h.connected.Wait(ctx)
}

// stopWorker sends SIGTERM, waits up to workerTerminateGrace, then
// SIGKILL.
func (h *HubManager) stopWorker() {
	h.mu.Lock()
	cmd := h.cmd
	h.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return
	}
	_ = cmd.Process.Signal(syscall.SIGTERM)
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	select {
	case <-done:
	case <-time.After(workerTerminateGrace):
		_ = cmd.Process.Kill()
		<-done
	}
}
