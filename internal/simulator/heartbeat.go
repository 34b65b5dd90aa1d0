package simulator

import (
	"context"

	"github.com/cuemby/fleetsim/internal/proto"
)

// HubStats publishes a HEARTBEAT_STATS_REQ addressed at the hub itself
// and waits for the worker's rolled-up success/failure counters across
// every AP (and, transitively, RT) it hosts.
func (r *Root) HubStats(ctx context.Context, hub *HubManager) (success, failure int64, err error) {
	ch := hub.awaitStats()
	env, err := proto.Encode(hub.Addr(), proto.HeartbeatStatsReq, proto.HeartbeatStatsReqBody{})
	if err != nil {
		return 0, 0, err
	}
	if err := r.bus.Publish(env); err != nil {
		return 0, 0, err
	}
	select {
	case res := <-ch:
		return res.success, res.failure, nil
	case <-ctx.Done():
		return 0, 0, ctx.Err()
	}
}

// StartHeartbeats walks the subtree rooted at node and publishes one
// START_HEARTBEAT_REQ per terminal (childless) node underneath it — RTs
// in the common case, or the node itself if it has no children (e.g. an
// AP created with zero RTs).
func (r *Root) StartHeartbeats(node Node) error {
	terminals := terminalNodes(node)
	for _, t := range terminals {
		env, err := proto.Encode(t.Addr(), proto.StartHeartbeatReq, proto.StartHeartbeatReqBody{})
		if err != nil {
			return err
		}
		if err := r.bus.Publish(env); err != nil {
			return err
		}
	}
	return nil
}

// terminalNodes returns every node in the subtree rooted at n that has
// no children of its own.
func terminalNodes(n Node) []Node {
	children := n.childNodes()
	if len(children) == 0 {
		return []Node{n}
	}
	var out []Node
	for _, c := range children {
		out = append(out, terminalNodes(c)...)
	}
	return out
}
