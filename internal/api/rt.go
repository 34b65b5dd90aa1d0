package api

import (
	"context"
	"net/http"

	"github.com/cuemby/fleetsim/internal/simulator"
)

// createRT adds a single RT under an existing AP (SPEC_FULL.md §6.1's
// supplemental endpoint — APCreateRequest's num_rts only covers
// creation-time fan-out).
func (s *Server) createRT(w http.ResponseWriter, r *http.Request) {
	ap, err := s.resolveAP(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req simulator.RTCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	rt, err := s.root.AddRT(ctx, ap, req, -1)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.root.StartHeartbeats(rt); err != nil {
		s.logger.Warn().Err(err).Str("rt", rt.Addr().Tag()).Msg("failed to start heartbeats after rt creation")
	}

	writeJSON(w, http.StatusAccepted, rtRead(rt))
}
