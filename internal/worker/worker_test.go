package worker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cuemby/fleetsim/internal/auth"
	"github.com/cuemby/fleetsim/internal/bus"
	"github.com/cuemby/fleetsim/internal/nms"
	"github.com/cuemby/fleetsim/internal/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newHarness starts a real bus server and an httptest-backed NMS client,
// returning a connected worker ready to run.
func newHarness(t *testing.T, nbapiHandler, sbapiHandler http.HandlerFunc) (*Worker, *bus.Server, func()) {
	t.Helper()

	srv := bus.NewServer()
	ctx, cancel := context.WithCancel(context.Background())

	downAddr, err := srv.ListenDownlink(ctx, "127.0.0.1:0")
	require.NoError(t, err)
	upAddr, err := srv.ListenUplink(ctx, "127.0.0.1:0")
	require.NoError(t, err)

	nbapi := httptest.NewServer(nbapiHandler)
	sbapi := httptest.NewServer(sbapiHandler)

	minter, err := auth.NewMinter("admin-secret", "rt-secret", "HS256", 3600)
	require.NoError(t, err)
	nmsClient := nms.NewClient(nms.Config{
		NBAPIURL: nbapi.URL,
		SBAPIURL: sbapi.URL,
		Timeout:  2 * time.Second,
		PoolSize: 4,
	}, minter)

	hubAddr := proto.HubAddr(0, 0)
	conn, err := bus.Dial(context.Background(), downAddr, upAddr, hubAddr.Tag())
	require.NoError(t, err)

	w := New(conn, nmsClient, Config{Net: 0, Hub: 0, CSI: "acme", MaxConcurrent: 4})

	cleanup := func() {
		cancel()
		_ = conn.Close()
		nbapi.Close()
		sbapi.Close()
	}
	return w, srv, cleanup
}

func okHandler(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }

func TestRunSendsHubConnectInd(t *testing.T) {
	w, srv, cleanup := newHarness(t, http.HandlerFunc(okHandler), http.HandlerFunc(okHandler))
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	select {
	case up := <-srv.Incoming:
		assert.Equal(t, proto.HubConnectInd, up.Env.MsgType)
		assert.True(t, up.Env.Address.Equal(proto.HubAddr(0, 0)))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for hub_connect_ind")
	}
}

func TestAPRegistrationSucceedsAndRepliesSuccess(t *testing.T) {
	w, srv, cleanup := newHarness(t, http.HandlerFunc(okHandler), http.HandlerFunc(okHandler))
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()
	<-srv.Incoming // hub_connect_ind

	apAddr := proto.APAddr(0, 0, 0)
	env, err := proto.Encode(apAddr, proto.APRegisterReq, proto.APRegisterReqBody{
		AUID: "ap-auid-1", HubAUID: "hub-auid-1", HeartbeatSeconds: 30, AzimuthDeg: 90,
	})
	require.NoError(t, err)
	require.NoError(t, srv.Publish(env))

	select {
	case up := <-srv.Incoming:
		require.Equal(t, proto.APRegisterRsp, up.Env.MsgType)
		var body proto.APRegisterRspBody
		require.NoError(t, proto.DecodePayload(up.Env, proto.APRegisterRsp, &body))
		assert.True(t, body.Success)
		assert.NotEmpty(t, body.RegisteredAt)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for ap_register_rsp")
	}
}

func TestAPRegistrationFailsWhenNBAPIRejects(t *testing.T) {
	failing := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) }
	w, srv, cleanup := newHarness(t, http.HandlerFunc(failing), http.HandlerFunc(okHandler))
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()
	<-srv.Incoming

	apAddr := proto.APAddr(0, 0, 1)
	env, err := proto.Encode(apAddr, proto.APRegisterReq, proto.APRegisterReqBody{
		AUID: "ap-auid-2", HubAUID: "hub-auid-1", HeartbeatSeconds: 30, AzimuthDeg: 0,
	})
	require.NoError(t, err)
	require.NoError(t, srv.Publish(env))

	select {
	case up := <-srv.Incoming:
		var body proto.APRegisterRspBody
		require.NoError(t, proto.DecodePayload(up.Env, proto.APRegisterRsp, &body))
		assert.False(t, body.Success)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for ap_register_rsp")
	}
}

func TestRTRegistrationDerivesLocationFromParentAP(t *testing.T) {
	w, srv, cleanup := newHarness(t, http.HandlerFunc(okHandler), http.HandlerFunc(okHandler))
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()
	<-srv.Incoming

	apAddr := proto.APAddr(0, 0, 0)
	apEnv, err := proto.Encode(apAddr, proto.APRegisterReq, proto.APRegisterReqBody{
		AUID: "ap-auid-1", HubAUID: "hub-auid-1", HeartbeatSeconds: 30, AzimuthDeg: 0,
	})
	require.NoError(t, err)
	require.NoError(t, srv.Publish(apEnv))
	<-srv.Incoming // ap_register_rsp

	rtAddr := proto.RTAddr(0, 0, 0, 0)
	rtEnv, err := proto.Encode(rtAddr, proto.RTRegisterReq, proto.RTRegisterReqBody{
		AUID: "rt-auid-1", APAUID: "ap-auid-1", HeartbeatSeconds: 10,
	})
	require.NoError(t, err)
	require.NoError(t, srv.Publish(rtEnv))

	select {
	case up := <-srv.Incoming:
		require.Equal(t, proto.RTRegisterRsp, up.Env.MsgType)
		var body proto.RTRegisterRspBody
		require.NoError(t, proto.DecodePayload(up.Env, proto.RTRegisterRsp, &body))
		assert.True(t, body.Success)

		n, exists := w.get(rtAddr.Tag())
		require.True(t, exists)
		rt := n.(*rtNode)
		ap, exists := w.get(apAddr.Tag())
		require.True(t, exists)
		apNode := ap.(*apNode)
		assert.InDelta(t, apNode.Lat, rt.Lat, 1.0)
		assert.InDelta(t, apNode.Lon, rt.Lon, 1.0)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for rt_register_rsp")
	}
}

func TestHeartbeatStatsReqReportsCountersAndOptionallyResets(t *testing.T) {
	w, srv, cleanup := newHarness(t, http.HandlerFunc(okHandler), http.HandlerFunc(okHandler))
	defer cleanup()

	apAddr := proto.APAddr(0, 0, 0)
	ap := &apNode{AUID: "ap-auid-1", HeartbeatSeconds: 30}
	w.put(apAddr.Tag(), ap)
	ap.own.add(true)
	ap.own.add(true)
	ap.own.add(false)

	env, err := proto.Encode(apAddr, proto.HeartbeatStatsReq, proto.HeartbeatStatsReqBody{Reset: true})
	require.NoError(t, err)
	w.handleStatsReq(env)

	select {
	case up := <-srv.Incoming:
		require.Equal(t, proto.HeartbeatStatsRsp, up.Env.MsgType)
		var body proto.HeartbeatStatsRspBody
		require.NoError(t, proto.DecodePayload(up.Env, proto.HeartbeatStatsRsp, &body))
		assert.Equal(t, int64(2), body.Success)
		assert.Equal(t, int64(1), body.Failure)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for heartbeat_stats_rsp")
	}

	s, f := ap.statsSnapshot(false)
	assert.Equal(t, int64(0), s)
	assert.Equal(t, int64(0), f)
}

func TestHubLevelStatsReqSumsAcrossAPs(t *testing.T) {
	w, srv, cleanup := newHarness(t, http.HandlerFunc(okHandler), http.HandlerFunc(okHandler))
	defer cleanup()

	ap0 := &apNode{AUID: "ap-0", HeartbeatSeconds: 30}
	ap0.own.add(true)
	ap1 := &apNode{AUID: "ap-1", HeartbeatSeconds: 30}
	ap1.own.add(false)
	w.put(proto.APAddr(0, 0, 0).Tag(), ap0)
	w.put(proto.APAddr(0, 0, 1).Tag(), ap1)

	env, err := proto.Encode(w.addr, proto.HeartbeatStatsReq, proto.HeartbeatStatsReqBody{})
	require.NoError(t, err)
	w.handleStatsReq(env)

	select {
	case up := <-srv.Incoming:
		require.Equal(t, proto.HeartbeatStatsRsp, up.Env.MsgType)
		var body proto.HeartbeatStatsRspBody
		require.NoError(t, proto.DecodePayload(up.Env, proto.HeartbeatStatsRsp, &body))
		assert.Equal(t, int64(1), body.Success)
		assert.Equal(t, int64(1), body.Failure)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for heartbeat_stats_rsp")
	}

	s0, f0 := ap0.statsSnapshot(false)
	s1, f1 := ap1.statsSnapshot(false)
	assert.Equal(t, int64(1), s0)
	assert.Equal(t, int64(1), f1)
	assert.Equal(t, int64(0), f0)
	assert.Equal(t, int64(0), s1)
}

func TestRecordHeartbeatRollsUpToParentAP(t *testing.T) {
	w, _, cleanup := newHarness(t, http.HandlerFunc(okHandler), http.HandlerFunc(okHandler))
	defer cleanup()

	apAddr := proto.APAddr(0, 0, 0)
	rtAddr := proto.RTAddr(0, 0, 0, 0)
	ap := &apNode{AUID: "ap-0"}
	rt := &rtNode{AUID: "rt-0"}
	w.put(apAddr.Tag(), ap)
	w.put(rtAddr.Tag(), rt)

	w.recordHeartbeat(rtAddr, true)
	w.recordHeartbeat(rtAddr, false)

	rtS, rtF := rt.statsSnapshot(false)
	assert.Equal(t, int64(1), rtS)
	assert.Equal(t, int64(1), rtF)

	apS, apF := ap.statsSnapshot(false)
	assert.Equal(t, int64(1), apS)
	assert.Equal(t, int64(1), apF)
}

func TestParentOfReturnsCorrectLevel(t *testing.T) {
	rtAddr := proto.RTAddr(1, 2, 3, 4)
	apParent, ok := parentOf(rtAddr)
	require.True(t, ok)
	assert.True(t, apParent.Equal(proto.APAddr(1, 2, 3)))

	apAddr := proto.APAddr(1, 2, 3)
	hubParent, ok := parentOf(apAddr)
	require.True(t, ok)
	assert.True(t, hubParent.Equal(proto.HubAddr(1, 2)))

	_, ok = parentOf(proto.HubAddr(1, 2))
	assert.False(t, ok)
}

var _ = json.Marshal // keep encoding/json import if unused paths change
