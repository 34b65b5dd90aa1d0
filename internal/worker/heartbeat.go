package worker

import (
	"context"
	"math/rand"
	"time"

	"github.com/cuemby/fleetsim/internal/metrics"
	"github.com/cuemby/fleetsim/internal/proto"
)

// startHeartbeat begins the heartbeat task for exactly the addressed
// node, per spec.md §4.3. A hub-level address has no heartbeat
// parameters of its own (only AP/RT registration carries
// heartbeat_seconds), so it's logged and ignored rather than guessed at.
func (w *Worker) startHeartbeat(ctx context.Context, addr proto.Address) {
	if addr.Equal(w.addr) {
		w.logger.Warn().Str("address", addr.Tag()).Msg("start_heartbeat_req addressed at hub level, no heartbeat target")
		return
	}
	n, exists := w.get(addr.Tag())
	if !exists {
		w.logger.Warn().Str("address", addr.Tag()).Msg("start_heartbeat_req for unknown node")
		return
	}
	w.heartbeatWG.Add(1)
	go func() {
		defer w.heartbeatWG.Done()
		w.runHeartbeatLoop(ctx, addr, n)
	}()
}

// runHeartbeatLoop implements spec.md §4.3's heartbeat algorithm: a
// uniform random phase on the first iteration to avoid a thundering
// herd, then a monotonic per-iteration deadline that realigns to a full
// period on a missed deadline instead of accumulating drift.
func (w *Worker) runHeartbeatLoop(ctx context.Context, addr proto.Address, n node) {
	period := time.Duration(n.heartbeatSeconds()) * time.Second
	if period <= 0 {
		period = time.Second
	}

	jitter := time.Duration(rand.Int63n(int64(period)))
	select {
	case <-time.After(jitter):
	case <-ctx.Done():
		return
	}

	for {
		start := time.Now()
		deadline := start.Add(period)

		ok := w.postHeartbeat(ctx, n.auid())
		w.recordHeartbeat(addr, ok)
		metrics.HeartbeatsTotal.WithLabelValues(nodeTypeLabel(n), outcomeLabel(ok)).Inc()

		if time.Since(start) >= period {
			w.logger.Warn().Str("address", addr.Tag()).Dur("period", period).Msg("heartbeat iteration missed its deadline")
			select {
			case <-time.After(period):
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case <-time.After(time.Until(deadline)):
		case <-ctx.Done():
			return
		}
	}
}

func (w *Worker) postHeartbeat(ctx context.Context, auid string) bool {
	if err := w.nms.Heartbeat(ctx, auid); err != nil {
		w.logger.Debug().Err(err).Str("auid", auid).Msg("heartbeat post failed")
		return false
	}
	return true
}
