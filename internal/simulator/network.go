package simulator

import (
	"sync"

	"github.com/cuemby/fleetsim/internal/proto"
)

// NetworkState is the NetworkManager state machine (spec.md §3).
type NetworkState string

const (
	NetworkUnregistered NetworkState = "unregistered"
	NetworkRegistered   NetworkState = "registered"
)

// NetworkManager tracks a single customer network.
type NetworkManager struct {
	mu sync.Mutex

	index    int
	address  proto.Address
	csi      string
	csni     string
	state    NetworkState
	children map[int]*HubManager
}

func newNetworkManager(index int, addr proto.Address, csi, csni string) *NetworkManager {
	return &NetworkManager{
		index:    index,
		address:  addr,
		csi:      csi,
		csni:     csni,
		state:    NetworkRegistered, // registration happens before the object is exposed
		children: make(map[int]*HubManager),
	}
}

// Addr implements Node.
func (n *NetworkManager) Addr() proto.Address { return n.address }

func (n *NetworkManager) childNodes() []Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Node, 0, len(n.children))
	for _, h := range n.children {
		out = append(out, h)
	}
	return out
}

// CSI returns the customer identifier supplied at creation.
func (n *NetworkManager) CSI() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.csi
}

// CSNI returns the network identifier assigned by the NMS.
func (n *NetworkManager) CSNI() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.csni
}

// State returns the current registration state.
func (n *NetworkManager) State() NetworkState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Index returns the network's index at the root.
func (n *NetworkManager) Index() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.index
}

// Hub returns the hub at the given index, or a *NotFoundError.
func (n *NetworkManager) Hub(index int) (*HubManager, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	h, ok := n.children[index]
	if !ok {
		return nil, &NotFoundError{What: "hub"}
	}
	return h, nil
}

// Hubs returns a snapshot of all hub children.
func (n *NetworkManager) Hubs() map[int]*HubManager {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make(map[int]*HubManager, len(n.children))
	for k, v := range n.children {
		out[k] = v
	}
	return out
}

func (n *NetworkManager) removeHub(index int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.children[index]; !ok {
		return &NotFoundError{What: "hub"}
	}
	delete(n.children, index)
	return nil
}
