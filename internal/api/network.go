package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cuemby/fleetsim/internal/simulator"
)

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &badRequestError{msg: "malformed request body: " + err.Error()}
	}
	return nil
}

func (s *Server) createNetwork(w http.ResponseWriter, r *http.Request) {
	var req simulator.NetworkCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	net, err := s.root.AddNetwork(ctx, req)
	if err != nil {
		writeError(w, err)
		return
	}
	// Heartbeats auto-start after creation (spec.md §6's POST /network/ note).
	if err := s.root.StartHeartbeats(net); err != nil {
		s.logger.Warn().Err(err).Str("network", net.Addr().Tag()).Msg("failed to start heartbeats after network creation")
	}

	writeJSON(w, http.StatusOK, networkRead(net))
}

func (s *Server) listNetworks(w http.ResponseWriter, r *http.Request) {
	nets := s.root.Networks()
	out := make(map[int]NetworkRead, len(nets))
	for idx, n := range nets {
		out[idx] = networkRead(n)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getNetwork(w http.ResponseWriter, r *http.Request) {
	idx, err := pathIndex(r, "n")
	if err != nil {
		writeError(w, err)
		return
	}
	net, err := s.root.Network(idx)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, networkRead(net))
}

func (s *Server) deleteNetwork(w http.ResponseWriter, r *http.Request) {
	idx, err := pathIndex(r, "n")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.root.RemoveNetwork(idx); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "network deleted"})
}

// requestTimeout bounds create handlers' NMS round trips. The
// add_hub -> HUB_CONNECT_IND wait is unbounded by design (see
// DESIGN.md) and is not subject to this timeout since AddHub/AddAP take
// their own context only for the NMS call and registration wait, not
// for the worker-connect wait.
const requestTimeout = 30 * time.Second
