// Package worker implements the Hub Worker Runtime (C3): the per-hub
// process that hosts AP and RT node objects, registers them against the
// NMS, and runs their heartbeat loops. One process is spawned per Hub by
// the controller.
package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/cuemby/fleetsim/internal/bus"
	"github.com/cuemby/fleetsim/internal/log"
	"github.com/cuemby/fleetsim/internal/metrics"
	"github.com/cuemby/fleetsim/internal/nms"
	"github.com/cuemby/fleetsim/internal/proto"
	"github.com/rs/zerolog"
)

// Config configures a single hub worker process.
type Config struct {
	Net           int
	Hub           int
	CSI           string
	MaxConcurrent int
}

// node is the shared shape of an AP or RT object hosted by this worker.
type node interface {
	auid() string
	heartbeatSeconds() int
	recordHeartbeat(ok bool)
	statsSnapshot(reset bool) (success, failure int64)
}

// Worker hosts every AP and RT node belonging to one hub, registering
// them against the NMS and heartbeating them for the life of the
// process. The node table maps an address tag to its node object; per
// spec.md's cyclic-ownership note, an RT keeps only its parent AP's
// *address*, never a pointer, and re-resolves it through this table.
type Worker struct {
	addr proto.Address
	csi  string

	conn   *bus.WorkerConn
	nms    *nms.Client
	logger zerolog.Logger

	sem chan struct{}

	mu    sync.RWMutex
	nodes map[string]node

	heartbeatWG sync.WaitGroup
}

// New builds a Worker for one hub. conn must already be dialed and
// subscribed (see bus.Dial); New does not perform any I/O.
func New(conn *bus.WorkerConn, nmsClient *nms.Client, cfg Config) *Worker {
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Worker{
		addr:   proto.HubAddr(cfg.Net, cfg.Hub),
		csi:    cfg.CSI,
		conn:   conn,
		nms:    nmsClient,
		logger: log.WithComponent("worker").With().Str("hub", proto.HubAddr(cfg.Net, cfg.Hub).Tag()).Logger(),
		sem:    make(chan struct{}, maxConcurrent),
		nodes:  make(map[string]node),
	}
}

// Run announces this hub to the controller and processes downlink
// frames until ctx is canceled or the connection is closed. Each frame
// is dispatched to its own goroutine so a slow AP/RT registration never
// stalls the rest of the hub; in-flight command handling is bounded by
// the configured concurrency limit.
func (w *Worker) Run(ctx context.Context) error {
	ind, err := proto.Encode(w.addr, proto.HubConnectInd, proto.HubConnectIndBody{})
	if err != nil {
		return fmt.Errorf("worker: encode hub_connect_ind: %w", err)
	}
	if err := w.conn.Send(ind); err != nil {
		return fmt.Errorf("worker: send hub_connect_ind: %w", err)
	}
	w.logger.Info().Msg("hub connected to controller")

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		env, err := w.conn.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("worker: downlink closed: %w", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.handle(ctx, env)
		}()
	}
}

// WaitHeartbeats blocks until every heartbeat loop this worker started
// has returned, used by cmd/hubworker to bound shutdown after canceling
// the worker's context.
func (w *Worker) WaitHeartbeats() {
	w.heartbeatWG.Wait()
}

func (w *Worker) handle(ctx context.Context, env proto.Envelope) {
	switch env.MsgType {
	case proto.APRegisterReq:
		w.withSlot(ctx, func() { w.handleAPRegister(ctx, env) })
	case proto.RTRegisterReq:
		w.withSlot(ctx, func() { w.handleRTRegister(ctx, env) })
	case proto.StartHeartbeatReq:
		w.startHeartbeat(ctx, env.Address)
	case proto.HeartbeatStatsReq:
		w.withSlot(ctx, func() { w.handleStatsReq(env) })
	default:
		w.logger.Warn().Str("msg_type", string(env.MsgType)).Msg("unexpected msg_type on downlink")
	}
}

// withSlot bounds the in-flight command count to MAX_CONCURRENT_WORKER_COMMANDS.
// Heartbeat loops are intentionally excluded: they run for the life of the
// node and would otherwise permanently pin a slot.
func (w *Worker) withSlot(ctx context.Context, fn func()) {
	select {
	case w.sem <- struct{}{}:
	case <-ctx.Done():
		return
	}
	gauge := metrics.WorkerCommandsInFlight.WithLabelValues(w.addr.Tag())
	gauge.Inc()
	defer func() {
		gauge.Dec()
		<-w.sem
	}()
	fn()
}

// outcomeLabel renders a bool as the "success"/"failure" metric label
// value used across registration and heartbeat counters.
func outcomeLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// nodeTypeLabel renders a node's concrete type as a metric label.
func nodeTypeLabel(n node) string {
	switch n.(type) {
	case *apNode:
		return "ap"
	case *rtNode:
		return "rt"
	default:
		return "unknown"
	}
}

func (w *Worker) put(tag string, n node) {
	w.mu.Lock()
	w.nodes[tag] = n
	w.mu.Unlock()
}

func (w *Worker) get(tag string) (node, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	n, ok := w.nodes[tag]
	return n, ok
}

func (w *Worker) snapshot() map[string]node {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make(map[string]node, len(w.nodes))
	for k, v := range w.nodes {
		out[k] = v
	}
	return out
}

// parentOf returns the address one level shallower than addr, or false
// if addr is already hub-level.
func parentOf(addr proto.Address) (proto.Address, bool) {
	switch {
	case addr.RT != nil:
		return proto.APAddr(*addr.Net, *addr.Hub, *addr.AP), true
	case addr.AP != nil:
		return proto.HubAddr(*addr.Net, *addr.Hub), true
	default:
		return proto.Address{}, false
	}
}

// recordHeartbeat updates the addressed node's own counters, then rolls
// the result up into the parent AP's descendant counters if one exists.
func (w *Worker) recordHeartbeat(addr proto.Address, ok bool) {
	n, exists := w.get(addr.Tag())
	if !exists {
		return
	}
	n.recordHeartbeat(ok)

	parentAddr, hasParent := parentOf(addr)
	if !hasParent {
		return
	}
	parent, exists := w.get(parentAddr.Tag())
	if !exists {
		return
	}
	if ap, ok2 := parent.(*apNode); ok2 {
		ap.descendants.add(ok)
	}
}
