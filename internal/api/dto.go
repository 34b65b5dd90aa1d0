package api

import "github.com/cuemby/fleetsim/internal/simulator"

// NetworkRead is the JSON representation of a NetworkManager returned
// from every network endpoint.
type NetworkRead struct {
	Index   int    `json:"index"`
	Address string `json:"address"`
	CSI     string `json:"csi"`
	CSNI    string `json:"csni"`
	State   string `json:"state"`
}

func networkRead(n *simulator.NetworkManager) NetworkRead {
	return NetworkRead{
		Index:   n.Index(),
		Address: n.Addr().Tag(),
		CSI:     n.CSI(),
		CSNI:    n.CSNI(),
		State:   string(n.State()),
	}
}

// HubRead is the JSON representation of a HubManager.
type HubRead struct {
	Index   int    `json:"index"`
	Address string `json:"address"`
	State   string `json:"state"`
}

func hubRead(h *simulator.HubManager) HubRead {
	return HubRead{
		Index:   h.Index(),
		Address: h.Addr().Tag(),
		State:   string(h.State()),
	}
}

// APRead is the JSON representation of an APManager.
type APRead struct {
	Index            int    `json:"index"`
	Address          string `json:"address"`
	State            string `json:"state"`
	HeartbeatSeconds int    `json:"heartbeat_seconds"`
}

func apRead(a *simulator.APManager) APRead {
	return APRead{
		Index:            a.Index(),
		Address:          a.Addr().Tag(),
		State:            string(a.State()),
		HeartbeatSeconds: a.HeartbeatSeconds(),
	}
}

// RTRead is the JSON representation of an RTManager.
type RTRead struct {
	Index            int    `json:"index"`
	Address          string `json:"address"`
	State            string `json:"state"`
	HeartbeatSeconds int    `json:"heartbeat_seconds"`
}

func rtRead(r *simulator.RTManager) RTRead {
	return RTRead{
		Index:            r.Index(),
		Address:          r.Addr().Tag(),
		State:            string(r.State()),
		HeartbeatSeconds: r.HeartbeatSeconds(),
	}
}

// statsRead is the JSON representation of a rolled-up heartbeat counter
// pair, returned by the hub stats endpoint.
type statsRead struct {
	Success int64 `json:"success"`
	Failure int64 `json:"failure"`
}
