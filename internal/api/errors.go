package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cuemby/fleetsim/internal/simulator"
)

// errorResponse is the JSON body written for every non-2xx response
// (404, 400, 502, or 500; see writeError).
type errorResponse struct {
	Error string `json:"error"`
}

// badRequestError covers malformed input the simulator package never
// sees: a non-numeric path segment, or a request body that fails to
// decode. Always maps to 400.
type badRequestError struct{ msg string }

func (e *badRequestError) Error() string { return e.msg }

// writeError maps a simulator error to the HTTP status spec.md §7
// assigns it and writes a JSON body. Errors with no specific mapping
// become 500, which callers should treat as a bug, not an expected path.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	var notFound *simulator.NotFoundError
	var duplicate *simulator.DuplicateIndexError
	var upstream *simulator.UpstreamError
	var badRequest *badRequestError
	switch {
	case errors.As(err, &notFound):
		status = http.StatusNotFound
	case errors.As(err, &duplicate):
		status = http.StatusBadRequest
	case errors.As(err, &upstream):
		status = http.StatusBadGateway
	case errors.As(err, &badRequest):
		status = http.StatusBadRequest
	}

	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
