package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/cuemby/fleetsim/internal/bus"
	"github.com/cuemby/fleetsim/internal/proto"
	"github.com/cuemby/fleetsim/internal/simulator"
	"github.com/stretchr/testify/require"
)

type fakeNMS struct{}

func (fakeNMS) CreateNetwork(ctx context.Context, csi, emailDomain string) (string, error) {
	return "csni-" + csi, nil
}

func (fakeNMS) CreateHub(ctx context.Context, csni, auid string) error { return nil }

// autoAckPublisher simulates a cooperative worker: every registration
// request it "sends" is immediately acknowledged with success by
// injecting the matching response back onto the dispatcher's incoming
// channel, as if a worker process had replied over the bus.
type autoAckPublisher struct {
	incoming chan<- bus.Uplink
}

func (p *autoAckPublisher) Publish(env proto.Envelope) error {
	switch env.MsgType {
	case proto.APRegisterReq:
		rsp, err := proto.Encode(env.Address, proto.APRegisterRsp, proto.APRegisterRspBody{Success: true, RegisteredAt: "now"})
		if err != nil {
			return err
		}
		p.incoming <- bus.Uplink{Tag: env.Address.Tag(), Env: rsp}
	case proto.RTRegisterReq:
		rsp, err := proto.Encode(env.Address, proto.RTRegisterRsp, proto.RTRegisterRspBody{Success: true, RegisteredAt: "now"})
		if err != nil {
			return err
		}
		p.incoming <- bus.Uplink{Tag: env.Address.Tag(), Env: rsp}
	}
	return nil
}

// sendConnectIndWhenReady polls root until the hub at the given address
// exists in the tree, then injects HUB_CONNECT_IND for it. Spawning the
// real worker process is what the controller waits on; this stands in
// for the worker side actually dialing back in.
func sendConnectIndWhenReady(t *testing.T, root *simulator.Root, incoming chan<- bus.Uplink, addr proto.Address) {
	t.Helper()
	go func() {
		for i := 0; i < 500; i++ {
			if _, err := root.GetNode(addr); err == nil {
				env, err := proto.Encode(addr, proto.HubConnectInd, proto.HubConnectIndBody{})
				require.NoError(t, err)
				incoming <- bus.Uplink{Tag: addr.Tag(), Env: env}
				return
			}
			time.Sleep(2 * time.Millisecond)
		}
		t.Errorf("hub %s never appeared in tree", addr.Tag())
	}()
}

func TestDispatcherDrivesNetworkProvisioningEndToEnd(t *testing.T) {
	incoming := make(chan bus.Uplink, 32)
	root := simulator.NewRoot(fakeNMS{}, &autoAckPublisher{incoming: incoming}, "/bin/cat", "127.0.0.1:0", "127.0.0.1:0", 4)

	d := New(root)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx, incoming)

	sendConnectIndWhenReady(t, root, incoming, proto.HubAddr(0, 0))

	reqCtx, reqCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer reqCancel()
	net, err := root.AddNetwork(reqCtx, simulator.NetworkCreateRequest{
		CSI:                "acme",
		EmailDomain:        "acme.example",
		Hubs:               1,
		APsPerHub:          1,
		APHeartbeatSeconds: 30,
		RTsPerAP:           1,
		RTHeartbeatSeconds: 10,
	})
	require.NoError(t, err)
	defer func() { _ = root.RemoveNetwork(net.Index()) }()

	hub, err := net.Hub(0)
	require.NoError(t, err)
	require.Equal(t, simulator.HubRegistered, hub.State())

	ap, err := hub.AP(0)
	require.NoError(t, err)
	require.Equal(t, simulator.APRegistered, ap.State())

	rt, err := ap.RT(0)
	require.NoError(t, err)
	require.Equal(t, simulator.RTRegistered, rt.State())
}

func TestDispatcherIgnoresFrameForUnknownAddress(t *testing.T) {
	incoming := make(chan bus.Uplink, 4)
	root := simulator.NewRoot(fakeNMS{}, &autoAckPublisher{incoming: incoming}, "/bin/cat", "127.0.0.1:0", "127.0.0.1:0", 4)
	d := New(root)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx, incoming)

	env, err := proto.Encode(proto.HubAddr(9, 0), proto.HubConnectInd, proto.HubConnectIndBody{})
	require.NoError(t, err)
	incoming <- bus.Uplink{Tag: "N09H00", Env: env}

	// The dispatcher must not block or crash on an unresolved address; the
	// test passes as long as handling the frame does not panic within the
	// sleep window.
	time.Sleep(20 * time.Millisecond)
}
