// Package simulator implements the Controller Simulator State (C4): the
// singleton address tree of NetworkManager / HubManager / APManager /
// RTManager nodes, worker lifecycle, and the registration/heartbeat
// operations the HTTP API drives.
package simulator

import (
	"context"
	"fmt"
	"sync"

	"github.com/cuemby/fleetsim/internal/log"
	"github.com/cuemby/fleetsim/internal/proto"
	"golang.org/x/time/rate"
)

// NMSClient is the subset of the NMS HTTP client that the simulator
// needs. Defined here (rather than depending on the concrete
// internal/nms type) so tests can substitute a fake.
type NMSClient interface {
	CreateNetwork(ctx context.Context, csi, emailDomain string) (csni string, err error)
	CreateHub(ctx context.Context, csni, auid string) error
}

// Publisher is the subset of the bus the simulator needs to address
// frames to workers.
type Publisher interface {
	Publish(env proto.Envelope) error
}

// Root is the singleton simulator tree plus its explicit collaborators
// (bus, NMS client, worker binary path). Per DESIGN.md's resolution of
// the "global mutable state" design note, Root is passed by handle to
// the HTTP layer and dispatcher rather than reached via a package-level
// singleton.
type Root struct {
	mu       sync.RWMutex
	children map[int]*NetworkManager

	nms       NMSClient
	bus       Publisher
	workerBin string
	pubAddr   string
	pullAddr  string

	// fanout bounds concurrent registration fan-out from the controller
	// side (spec.md §4: "rate-limited concurrent registration of
	// thousands of nodes with bounded in-flight work").
	fanout *rate.Limiter
	sem    chan struct{}
}

// NewRoot creates an empty simulator tree.
func NewRoot(nms NMSClient, bus Publisher, workerBin, pubAddr, pullAddr string, maxConcurrent int) *Root {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Root{
		children:  make(map[int]*NetworkManager),
		nms:       nms,
		bus:       bus,
		workerBin: workerBin,
		pubAddr:   pubAddr,
		pullAddr:  pullAddr,
		fanout:    rate.NewLimiter(rate.Limit(maxConcurrent*4), maxConcurrent*4),
		sem:       make(chan struct{}, maxConcurrent),
	}
}

// acquire blocks until a fan-out slot is free, honoring both the rate
// limiter (smooths bursts) and the concurrency semaphore (bounds
// in-flight work), then returns a release func.
func (r *Root) acquire(ctx context.Context) (func(), error) {
	if err := r.fanout.Wait(ctx); err != nil {
		return nil, err
	}
	select {
	case r.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return func() { <-r.sem }, nil
}

// Network returns the network at the given index, or a *NotFoundError.
func (r *Root) Network(index int) (*NetworkManager, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.children[index]
	if !ok {
		return nil, &NotFoundError{What: "network"}
	}
	return n, nil
}

// Networks returns a snapshot of all networks.
func (r *Root) Networks() map[int]*NetworkManager {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[int]*NetworkManager, len(r.children))
	for k, v := range r.children {
		out[k] = v
	}
	return out
}

// GetNode resolves an address to the manager at that exact level,
// descending net -> hub -> ap -> rt according to which fields are
// populated. Missing intermediate nodes yield a *NotFoundError.
func (r *Root) GetNode(addr proto.Address) (Node, error) {
	if addr.Net == nil {
		return nil, &NotFoundError{What: "network"}
	}
	net, err := r.Network(*addr.Net)
	if err != nil {
		return nil, err
	}
	if addr.Hub == nil {
		return net, nil
	}
	hub, err := net.Hub(*addr.Hub)
	if err != nil {
		return nil, err
	}
	if addr.AP == nil {
		return hub, nil
	}
	ap, err := hub.AP(*addr.AP)
	if err != nil {
		return nil, err
	}
	if addr.RT == nil {
		return ap, nil
	}
	return ap.RT(*addr.RT)
}

// AddNetwork registers a new network with the NMS, then concurrently
// provisions the requested number of hubs underneath it.
func (r *Root) AddNetwork(ctx context.Context, req NetworkCreateRequest) (*NetworkManager, error) {
	csni, err := r.nms.CreateNetwork(ctx, req.CSI, req.EmailDomain)
	if err != nil {
		return nil, &UpstreamError{Err: err}
	}

	r.mu.Lock()
	index, err := allocIndex(r.children, -1)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	addr := proto.NetAddr(index)
	net := newNetworkManager(index, addr, req.CSI, csni)
	r.children[index] = net
	r.mu.Unlock()

	var wg sync.WaitGroup
	for i := 0; i < req.Hubs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hubReq := HubCreateRequest{
				NumAPs:             req.APsPerHub,
				NumRTsPerAP:        req.RTsPerAP,
				HeartbeatSeconds:   req.APHeartbeatSeconds,
				RTHeartbeatSeconds: req.RTHeartbeatSeconds,
			}
			if _, err := r.AddHub(ctx, net, hubReq, -1); err != nil {
				log.Logger.Warn().Err(err).Str("network", addr.Tag()).Msg("failed to add hub during network creation")
			}
		}()
	}
	wg.Wait()

	return net, nil
}

// RemoveNetwork deletes a network and all its descendants in one step,
// terminating every hub worker underneath it.
func (r *Root) RemoveNetwork(index int) error {
	net, err := r.Network(index)
	if err != nil {
		return err
	}
	for _, hub := range net.Hubs() {
		hub.stopWorker()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.children[index]; !ok {
		return &NotFoundError{What: "network"}
	}
	delete(r.children, index)
	return nil
}

// AddHub allocates a hub, spawns its worker process, waits for
// HUB_CONNECT_IND, registers it with the NMS, then concurrently adds the
// requested number of APs.
func (r *Root) AddHub(ctx context.Context, net *NetworkManager, req HubCreateRequest, index int) (*HubManager, error) {
	release, err := r.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	net.mu.Lock()
	idx, err := allocIndex(net.children, index)
	if err != nil {
		net.mu.Unlock()
		return nil, err
	}
	hubAddr := mustHubAddr(net.address, idx)
	hub := newHubManager(idx, hubAddr)
	// Inserted before spawning the worker so inbound frames resolve.
	net.children[idx] = hub
	net.mu.Unlock()

	if err := hub.startWorker(r.workerBin, r.pubAddr, r.pullAddr); err != nil {
		_ = net.removeHub(idx)
		return nil, fmt.Errorf("failed to start hub worker: %w", err)
	}

	// Per spec.md §5 / §9: this wait is deliberately unbounded. If the
	// worker fails to start or connect, add_hub hangs — an accepted
	// open question, not silently fixed with a timeout.
	if err := hub.waitConnected(context.Background()); err != nil {
		_ = net.removeHub(idx)
		return nil, err
	}

	if err := r.nms.CreateHub(ctx, net.CSNI(), hub.AUID()); err != nil {
		hub.stopWorker()
		_ = net.removeHub(idx)
		return nil, &UpstreamError{Err: err}
	}
	hub.setRegistered()

	var wg sync.WaitGroup
	for i := 0; i < req.NumAPs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			apReq := APCreateRequest{
				NumRTs:             req.NumRTsPerAP,
				HeartbeatSeconds:   req.HeartbeatSeconds,
				RTHeartbeatSeconds: req.RTHeartbeatSeconds,
			}
			if _, err := r.AddAP(ctx, hub, apReq, -1); err != nil {
				log.Logger.Warn().Err(err).Str("hub", hubAddr.Tag()).Msg("failed to add ap during hub creation")
			}
		}()
	}
	wg.Wait()

	return hub, nil
}

func mustHubAddr(netAddr proto.Address, hub int) proto.Address {
	a, err := proto.New(netAddr.Net, &hub, nil, nil)
	if err != nil {
		panic(err) // netAddr is always valid, so this cannot fail
	}
	return a
}

// RemoveHub removes a hub and all underlying APs/RTs from its network,
// terminating the hub's worker process.
func (r *Root) RemoveHub(net *NetworkManager, index int) error {
	hub, err := net.Hub(index)
	if err != nil {
		return err
	}
	hub.stopWorker()
	return net.removeHub(index)
}

// AddAP allocates an AP, publishes AP_REGISTER_REQ, awaits the matching
// AP_REGISTER_RSP, then concurrently adds the requested RTs.
func (r *Root) AddAP(ctx context.Context, hub *HubManager, req APCreateRequest, index int) (*APManager, error) {
	release, err := r.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	hub.mu.Lock()
	idx, err := allocIndex(hub.children, index)
	if err != nil {
		hub.mu.Unlock()
		return nil, err
	}
	apAddr := mustChildAddr(hub.address, idx)
	ap := newAPManager(idx, apAddr, hub.AUID(), req.HeartbeatSeconds, req.RTHeartbeatSeconds)
	hub.children[idx] = ap
	hub.mu.Unlock()

	env, err := proto.Encode(apAddr, proto.APRegisterReq, proto.APRegisterReqBody{
		AUID:             ap.AUID(),
		HubAUID:          hub.AUID(),
		HeartbeatSeconds: req.HeartbeatSeconds,
		AzimuthDeg:       req.AzimuthDeg,
	})
	if err != nil {
		_ = hub.removeAP(idx)
		return nil, err
	}
	if err := r.bus.Publish(env); err != nil {
		_ = hub.removeAP(idx)
		return nil, err
	}

	if err := ap.registered.Wait(ctx); err != nil {
		return ap, err
	}

	var wg sync.WaitGroup
	for i := 0; i < req.NumRTs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.AddRT(ctx, ap, RTCreateRequest{HeartbeatSeconds: req.RTHeartbeatSeconds}, -1); err != nil {
				log.Logger.Warn().Err(err).Str("ap", apAddr.Tag()).Msg("failed to add rt during ap creation")
			}
		}()
	}
	wg.Wait()

	return ap, nil
}

// RemoveAP removes an AP and all underlying RTs from its hub.
func (r *Root) RemoveAP(hub *HubManager, index int) error {
	return hub.removeAP(index)
}

// AddRT allocates an RT, publishes RT_REGISTER_REQ, and awaits the
// matching RT_REGISTER_RSP.
func (r *Root) AddRT(ctx context.Context, ap *APManager, req RTCreateRequest, index int) (*RTManager, error) {
	release, err := r.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	ap.mu.Lock()
	idx, err := allocIndex(ap.children, index)
	if err != nil {
		ap.mu.Unlock()
		return nil, err
	}
	rtAddr := mustChildAddr(ap.address, idx)
	rt := newRTManager(idx, rtAddr, req.HeartbeatSeconds)
	ap.children[idx] = rt
	ap.mu.Unlock()

	env, err := proto.Encode(rtAddr, proto.RTRegisterReq, proto.RTRegisterReqBody{
		AUID:             rt.AUID(),
		APAUID:           ap.AUID(),
		HeartbeatSeconds: req.HeartbeatSeconds,
	})
	if err != nil {
		_ = ap.removeRT(idx)
		return nil, err
	}
	if err := r.bus.Publish(env); err != nil {
		_ = ap.removeRT(idx)
		return nil, err
	}

	if err := rt.registered.Wait(ctx); err != nil {
		return rt, err
	}
	return rt, nil
}

// RemoveRT removes a single RT from its AP.
func (r *Root) RemoveRT(ap *APManager, index int) error {
	return ap.removeRT(index)
}

func mustChildAddr(parent proto.Address, index int) proto.Address {
	addr, err := parent.Child(index)
	if err != nil {
		panic(err) // parent is always a valid, non-RT address here
	}
	return addr
}
