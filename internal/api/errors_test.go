package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cuemby/fleetsim/internal/simulator"
	"github.com/stretchr/testify/assert"
)

func TestWriteErrorMapsSimulatorErrorsToStatusCodes(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", &simulator.NotFoundError{What: "hub"}, http.StatusNotFound},
		{"duplicate index", &simulator.DuplicateIndexError{Index: 3}, http.StatusBadRequest},
		{"upstream", &simulator.UpstreamError{Err: errors.New("nms down")}, http.StatusBadGateway},
		{"bad request", &badRequestError{msg: "bad"}, http.StatusBadRequest},
		{"unmapped", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, tc.err)
			assert.Equal(t, tc.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.err.Error())
		})
	}
}

func TestSplitPattern(t *testing.T) {
	method, route := splitPattern("GET /network/{n}")
	assert.Equal(t, "GET", method)
	assert.Equal(t, "/network/{n}", route)

	method, route = splitPattern("/healthz")
	assert.Equal(t, "", method)
	assert.Equal(t, "/healthz", route)
}
