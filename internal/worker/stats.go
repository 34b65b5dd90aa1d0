package worker

import "github.com/cuemby/fleetsim/internal/proto"

// handleStatsReq replies with the addressed node's current heartbeat
// counter snapshot, optionally resetting it. A hub-level address sums
// across every AP this worker hosts (each AP's own snapshot already
// folds in its RT descendants, so only APs are summed to avoid counting
// RTs twice).
func (w *Worker) handleStatsReq(env proto.Envelope) {
	var body proto.HeartbeatStatsReqBody
	if err := proto.DecodePayload(env, proto.HeartbeatStatsReq, &body); err != nil {
		w.logger.Warn().Err(err).Msg("malformed heartbeat_stats_req")
		return
	}

	var success, failure int64
	if env.Address.Equal(w.addr) {
		for _, n := range w.snapshot() {
			ap, ok := n.(*apNode)
			if !ok {
				continue
			}
			s, f := ap.statsSnapshot(body.Reset)
			success += s
			failure += f
		}
	} else {
		n, exists := w.get(env.Address.Tag())
		if !exists {
			w.logger.Warn().Str("address", env.Address.Tag()).Msg("heartbeat_stats_req for unknown node")
			return
		}
		success, failure = n.statsSnapshot(body.Reset)
	}

	rsp, err := proto.Encode(env.Address, proto.HeartbeatStatsRsp, proto.HeartbeatStatsRspBody{
		Success: success,
		Failure: failure,
	})
	if err != nil {
		w.logger.Error().Err(err).Msg("encode heartbeat_stats_rsp")
		return
	}
	if err := w.conn.Send(rsp); err != nil {
		w.logger.Error().Err(err).Msg("send heartbeat_stats_rsp")
	}
}
