package api

import (
	"context"
	"net/http"

	"github.com/cuemby/fleetsim/internal/simulator"
)

// createAP returns 202 Accepted once AddAP has received the worker's
// AP_REGISTER_RSP, so the AP in the body is registered or
// registration_failed. If the request context expires first, AddAP
// returns an error and no 202 is written.
func (s *Server) createAP(w http.ResponseWriter, r *http.Request) {
	hub, err := s.resolveHub(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req simulator.APCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	ap, err := s.root.AddAP(ctx, hub, req, -1)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.root.StartHeartbeats(ap); err != nil {
		s.logger.Warn().Err(err).Str("ap", ap.Addr().Tag()).Msg("failed to start heartbeats after ap creation")
	}

	writeJSON(w, http.StatusAccepted, apRead(ap))
}

func (s *Server) getAP(w http.ResponseWriter, r *http.Request) {
	ap, err := s.resolveAP(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apRead(ap))
}

func (s *Server) deleteAP(w http.ResponseWriter, r *http.Request) {
	hub, err := s.resolveHub(r)
	if err != nil {
		writeError(w, err)
		return
	}
	apIdx, err := pathIndex(r, "a")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.root.RemoveAP(hub, apIdx); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "ap deleted"})
}

func (s *Server) resolveAP(r *http.Request) (*simulator.APManager, error) {
	hub, err := s.resolveHub(r)
	if err != nil {
		return nil, err
	}
	apIdx, err := pathIndex(r, "a")
	if err != nil {
		return nil, err
	}
	return hub.AP(apIdx)
}
