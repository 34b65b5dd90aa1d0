// Package dispatch implements the Controller Dispatcher (C5): the single
// goroutine that drains decoded uplink frames, resolves each frame's
// address against the simulator tree, and invokes the matching manager
// callback. Callbacks never block or perform I/O — they only update
// in-memory state and signal one-shot completion events.
package dispatch

import (
	"context"

	"github.com/cuemby/fleetsim/internal/bus"
	"github.com/cuemby/fleetsim/internal/log"
	"github.com/cuemby/fleetsim/internal/proto"
	"github.com/cuemby/fleetsim/internal/simulator"
	"github.com/rs/zerolog"
)

// Dispatcher drains one bus's uplink channel against one tree.
type Dispatcher struct {
	root   *simulator.Root
	logger zerolog.Logger
}

// New builds a dispatcher bound to root.
func New(root *simulator.Root) *Dispatcher {
	return &Dispatcher{root: root, logger: log.WithComponent("dispatcher")}
}

// Run drains incoming until ctx is canceled or the channel is closed.
// Intended to run in its own goroutine, one per controller process.
func (d *Dispatcher) Run(ctx context.Context, incoming <-chan bus.Uplink) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-incoming:
			if !ok {
				return
			}
			d.handle(u.Env)
		}
	}
}

func (d *Dispatcher) handle(env proto.Envelope) {
	node, err := d.root.GetNode(env.Address)
	if err != nil {
		d.logger.Warn().
			Str("address", env.Address.Tag()).
			Str("msg_type", string(env.MsgType)).
			Err(err).
			Msg("dropping frame for unresolved address")
		return
	}

	switch env.MsgType {
	case proto.HubConnectInd:
		hub, ok := node.(*simulator.HubManager)
		if !ok {
			d.logger.Warn().Str("address", env.Address.Tag()).Msg("hub_connect_ind for non-hub address")
			return
		}
		hub.OnConnectInd()

	case proto.APRegisterRsp:
		ap, ok := node.(*simulator.APManager)
		if !ok {
			d.logger.Warn().Str("address", env.Address.Tag()).Msg("ap_register_rsp for non-ap address")
			return
		}
		var body proto.APRegisterRspBody
		if err := proto.DecodePayload(env, proto.APRegisterRsp, &body); err != nil {
			d.logger.Warn().Err(err).Msg("malformed ap_register_rsp payload")
			return
		}
		ap.OnRegisterRsp(body.Success)

	case proto.RTRegisterRsp:
		rt, ok := node.(*simulator.RTManager)
		if !ok {
			d.logger.Warn().Str("address", env.Address.Tag()).Msg("rt_register_rsp for non-rt address")
			return
		}
		var body proto.RTRegisterRspBody
		if err := proto.DecodePayload(env, proto.RTRegisterRsp, &body); err != nil {
			d.logger.Warn().Err(err).Msg("malformed rt_register_rsp payload")
			return
		}
		rt.OnRegisterRsp(body.Success)

	case proto.HeartbeatStatsRsp:
		var body proto.HeartbeatStatsRspBody
		if err := proto.DecodePayload(env, proto.HeartbeatStatsRsp, &body); err != nil {
			d.logger.Warn().Err(err).Msg("malformed heartbeat_stats_rsp payload")
			return
		}
		switch n := node.(type) {
		case *simulator.HubManager:
			n.OnHeartbeatStatsRsp(body.Success, body.Failure)
		case *simulator.APManager:
			n.OnHeartbeatStatsRsp(body.Success, body.Failure)
		case *simulator.RTManager:
			n.OnHeartbeatStatsRsp(body.Success, body.Failure)
		default:
			d.logger.Warn().Str("address", env.Address.Tag()).Msg("heartbeat_stats_rsp for address with no stats sink")
		}

	default:
		d.logger.Warn().Str("msg_type", string(env.MsgType)).Msg("unexpected msg_type on uplink")
	}
}
