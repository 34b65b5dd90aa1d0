package nms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cuemby/fleetsim/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMinter(t *testing.T) *auth.Minter {
	t.Helper()
	m, err := auth.NewMinter("admin-secret", "rt-secret", "HS256", 3600)
	require.NoError(t, err)
	return m
}

func newTestClient(t *testing.T, nbapi, sbapi *httptest.Server) *Client {
	t.Helper()
	cfg := Config{
		Timeout:      2 * time.Second,
		PoolSize:     4,
		InstallerKey: "installer-key",
	}
	if nbapi != nil {
		cfg.NBAPIURL = nbapi.URL
	}
	if sbapi != nil {
		cfg.SBAPIURL = sbapi.URL
	}
	return NewClient(cfg, testMinter(t))
}

func TestCreateNetworkPostsToNBAPIAndParsesCSNI(t *testing.T) {
	var gotPath, gotAuth string
	nbapi := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "acme", body["csi"])
		assert.Equal(t, "acme.example", body["email_domain"])
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(CreateNetworkResponse{CSNI: "csni-001"})
	}))
	defer nbapi.Close()

	c := newTestClient(t, nbapi, nil)
	csni, err := c.CreateNetwork(context.Background(), "acme", "acme.example")
	require.NoError(t, err)
	assert.Equal(t, "csni-001", csni)
	assert.Equal(t, "/api/v1/network/csi/acme", gotPath)
	assert.Contains(t, gotAuth, "Bearer ")
}

func TestCreateHubPostsAUIDToNBAPI(t *testing.T) {
	var gotPath string
	nbapi := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer nbapi.Close()

	c := newTestClient(t, nbapi, nil)
	err := c.CreateHub(context.Background(), "csni-001", "hub-auid-1")
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/node/hub/hub-auid-1", gotPath)
}

func TestCreateAPNodeUsesCallerSuppliedTempAUID(t *testing.T) {
	var gotPath string
	var body APNodeConfig
	nbapi := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusOK)
	}))
	defer nbapi.Close()

	c := newTestClient(t, nbapi, nil)
	err := c.CreateAPNode(context.Background(), "T-ap-auid-1", APNodeConfig{
		AUID: "ap-auid-1", HubAUID: "hub-auid-1", HeartbeatSeconds: 30, AzimuthDeg: 90,
	})
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/node/ap/T-ap-auid-1", gotPath)
	assert.Equal(t, 90, body.AzimuthDeg)
}

func TestCreateRTNodeUsesCallerSuppliedTempAUID(t *testing.T) {
	var gotPath string
	nbapi := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer nbapi.Close()

	c := newTestClient(t, nbapi, nil)
	err := c.CreateRTNode(context.Background(), "T-rt-auid-1", RTNodeConfig{AUID: "rt-auid-1", APAUID: "ap-auid-1"})
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/node/rt/T-rt-auid-1", gotPath)
}

func TestCreateHubSurfacesUpstreamErrorStatus(t *testing.T) {
	nbapi := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer nbapi.Close()

	c := newTestClient(t, nbapi, nil)
	err := c.CreateHub(context.Background(), "csni-001", "hub-auid-1")
	assert.Error(t, err)
}

func TestRegisterAPSecretSetsHeaders(t *testing.T) {
	var gotGnodebid, gotSecret, gotPath string
	sbapi := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotGnodebid = r.Header.Get("gnodebid")
		gotSecret = r.Header.Get("secret")
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer sbapi.Close()

	c := newTestClient(t, nil, sbapi)
	err := c.RegisterAPSecret(context.Background(), "ap-gnodebid-1", "s3cr3t")
	require.NoError(t, err)
	assert.Equal(t, "ap-gnodebid-1", gotGnodebid)
	assert.Equal(t, "s3cr3t", gotSecret)
	assert.Equal(t, "/ap/register_secret/", gotPath)
}

func TestRegisterAPCandidateIncludesInstallerKey(t *testing.T) {
	var body map[string]string
	sbapi := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusOK)
	}))
	defer sbapi.Close()

	c := newTestClient(t, nil, sbapi)
	err := c.RegisterAPCandidate(context.Background(), "ap-gnodebid-1", "s3cr3t", "acme", "ap-auid-1")
	require.NoError(t, err)
	assert.Equal(t, "installer-key", body["installer_key"])
	assert.Equal(t, "acme", body["csi"])
	assert.Equal(t, "ap-auid-1", body["auid"])
}

func TestRegisterRTUsesRTScopedToken(t *testing.T) {
	var gotAuth, gotPath string
	sbapi := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer sbapi.Close()

	c := newTestClient(t, nil, sbapi)
	err := c.RegisterRT(context.Background(), "rt-temp-auid-1")
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/rt-temp-auid-1/rt-registration", gotPath)
	assert.Contains(t, gotAuth, "Bearer ")
}

func TestHeartbeatPostsToAUIDPath(t *testing.T) {
	var gotPath string
	sbapi := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer sbapi.Close()

	c := newTestClient(t, nil, sbapi)
	err := c.Heartbeat(context.Background(), "rt-auid-1")
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/rt-auid-1/heartbeat", gotPath)
}

func TestRequestRespectsContextDeadline(t *testing.T) {
	sbapi := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer sbapi.Close()

	c := newTestClient(t, nil, sbapi)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	err := c.Heartbeat(ctx, "rt-auid-1")
	assert.Error(t, err)
}
