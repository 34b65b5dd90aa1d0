package api

import (
	"context"
	"net/http"

	"github.com/cuemby/fleetsim/internal/simulator"
)

func (s *Server) createHub(w http.ResponseWriter, r *http.Request) {
	netIdx, err := pathIndex(r, "n")
	if err != nil {
		writeError(w, err)
		return
	}
	net, err := s.root.Network(netIdx)
	if err != nil {
		writeError(w, err)
		return
	}

	var req simulator.HubCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	hub, err := s.root.AddHub(ctx, net, req, -1)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.root.StartHeartbeats(hub); err != nil {
		s.logger.Warn().Err(err).Str("hub", hub.Addr().Tag()).Msg("failed to start heartbeats after hub creation")
	}

	writeJSON(w, http.StatusOK, hubRead(hub))
}

func (s *Server) getHub(w http.ResponseWriter, r *http.Request) {
	hub, err := s.resolveHub(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, hubRead(hub))
}

func (s *Server) deleteHub(w http.ResponseWriter, r *http.Request) {
	netIdx, err := pathIndex(r, "n")
	if err != nil {
		writeError(w, err)
		return
	}
	hubIdx, err := pathIndex(r, "h")
	if err != nil {
		writeError(w, err)
		return
	}
	net, err := s.root.Network(netIdx)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.root.RemoveHub(net, hubIdx); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "hub deleted"})
}

// hubStats proxies a HEARTBEAT_STATS_REQ for the whole hub subtree and
// returns the worker's rolled-up success/failure counters (SPEC_FULL.md
// §6.1's supplemental stats endpoint).
func (s *Server) hubStats(w http.ResponseWriter, r *http.Request) {
	hub, err := s.resolveHub(r)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	success, failure, err := s.root.HubStats(ctx, hub)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statsRead{Success: success, Failure: failure})
}

func (s *Server) resolveHub(r *http.Request) (*simulator.HubManager, error) {
	netIdx, err := pathIndex(r, "n")
	if err != nil {
		return nil, err
	}
	hubIdx, err := pathIndex(r, "h")
	if err != nil {
		return nil, err
	}
	net, err := s.root.Network(netIdx)
	if err != nil {
		return nil, err
	}
	return net.Hub(hubIdx)
}
