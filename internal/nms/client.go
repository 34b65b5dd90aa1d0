// Package nms implements the HTTP client both the controller and every
// hub worker use to drive the real network management system: node
// creation, secret/candidate registration, and heartbeats against its
// NBAPI (northbound) and SBAPI (southbound) surfaces.
package nms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cuemby/fleetsim/internal/auth"
	"github.com/cuemby/fleetsim/internal/metrics"
)

// observeDuration returns a func to be deferred at the top of each
// public call, recording its wall-clock duration under the given
// operation label.
func observeDuration(operation string) func() {
	start := time.Now()
	return func() {
		metrics.NMSRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}

// Client is a single pooled HTTP client shared by every in-flight call
// in a process, grounded on the teacher's http.Client{Timeout: ...}
// idiom (pkg/health/http.go).
type Client struct {
	httpClient *http.Client
	nbapiURL   string
	sbapiURL   string
	minter     *auth.Minter
	installerKey string
}

// Config is the subset of fields the client needs to be constructed,
// kept separate from internal/config.Config so nms has no dependency on
// the config package's full surface.
type Config struct {
	NBAPIURL     string
	SBAPIURL     string
	Timeout      time.Duration
	PoolSize     int
	InstallerKey string
}

// NewClient builds a pooled NMS client. PoolSize bounds the transport's
// max idle connections, matching WORKER_HTTPX_POOLSIZE.
func NewClient(cfg Config, minter *auth.Minter) *Client {
	transport := &http.Transport{
		MaxIdleConns:        cfg.PoolSize,
		MaxIdleConnsPerHost: cfg.PoolSize,
	}
	return &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		nbapiURL:     cfg.NBAPIURL,
		sbapiURL:     cfg.SBAPIURL,
		minter:       minter,
		installerKey: cfg.InstallerKey,
	}
}

// CreateNetworkResponse is the NBAPI network-creation response body.
type CreateNetworkResponse struct {
	CSNI string `json:"csni"`
}

// CreateNetwork registers a network with the NMS and returns its
// assigned CSNI. Satisfies simulator.NMSClient.
func (c *Client) CreateNetwork(ctx context.Context, csi, emailDomain string) (string, error) {
	defer observeDuration("create_network")()
	body := map[string]string{"csi": csi, "email_domain": emailDomain}
	var resp CreateNetworkResponse
	path := fmt.Sprintf("/api/v1/network/csi/%s", csi)
	if err := c.doAdmin(ctx, c.nbapiURL+path, body, &resp); err != nil {
		return "", err
	}
	return resp.CSNI, nil
}

// CreateHub registers a hub node with the NMS. Satisfies
// simulator.NMSClient.
func (c *Client) CreateHub(ctx context.Context, csni, auid string) error {
	defer observeDuration("create_hub")()
	body := map[string]string{"csni": csni, "auid": auid}
	path := fmt.Sprintf("/api/v1/node/hub/%s", auid)
	return c.doAdmin(ctx, c.nbapiURL+path, body, nil)
}

// APNodeConfig is the payload for the AP node-creation call.
type APNodeConfig struct {
	AUID             string `json:"auid"`
	HubAUID          string `json:"hub_auid"`
	HeartbeatSeconds int    `json:"heartbeat_seconds"`
	AzimuthDeg       int    `json:"azimuth_deg"`
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
}

// CreateAPNode is the first of the three AP registration calls: POST
// {NBAPI}/api/v1/node/ap/{temp_auid}. tempAUID is expected to already
// carry the "T-" prefix that marks it as pre-registration.
func (c *Client) CreateAPNode(ctx context.Context, tempAUID string, cfg APNodeConfig) error {
	defer observeDuration("create_ap_node")()
	path := fmt.Sprintf("/api/v1/node/ap/%s", tempAUID)
	return c.doAdmin(ctx, c.nbapiURL+path, cfg, nil)
}

// RegisterAPSecret is the second AP registration call: POST
// {SBAPI}/ap/register_secret/ with headers gnodebid, secret.
func (c *Client) RegisterAPSecret(ctx context.Context, gnodebid, secret string) error {
	defer observeDuration("register_ap_secret")()
	req, err := c.newRequest(ctx, c.sbapiURL+"/ap/register_secret/", nil)
	if err != nil {
		return err
	}
	token, err := c.minter.MintAdmin()
	if err != nil {
		return fmt.Errorf("nms: mint admin token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("gnodebid", gnodebid)
	req.Header.Set("secret", secret)
	return c.send(req, nil)
}

// RegisterAPCandidate is the third AP registration call: POST
// {SBAPI}/ap/register_candidate with CSI, installer key, and the chosen
// AUID, carrying the same gnodebid/secret headers.
func (c *Client) RegisterAPCandidate(ctx context.Context, gnodebid, secret, csi, auid string) error {
	defer observeDuration("register_ap_candidate")()
	body := map[string]string{
		"csi":           csi,
		"installer_key": c.installerKey,
		"auid":          auid,
	}
	req, err := c.newRequest(ctx, c.sbapiURL+"/ap/register_candidate", body)
	if err != nil {
		return err
	}
	token, err := c.minter.MintAdmin()
	if err != nil {
		return fmt.Errorf("nms: mint admin token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("gnodebid", gnodebid)
	req.Header.Set("secret", secret)
	return c.send(req, nil)
}

// RTNodeConfig is the payload for the RT node-creation call.
type RTNodeConfig struct {
	AUID             string  `json:"auid"`
	APAUID           string  `json:"ap_auid"`
	HeartbeatSeconds int     `json:"heartbeat_seconds"`
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
}

// CreateRTNode is the first RT registration call: POST
// {NBAPI}/api/v1/node/rt/{temp_auid}.
func (c *Client) CreateRTNode(ctx context.Context, tempAUID string, cfg RTNodeConfig) error {
	defer observeDuration("create_rt_node")()
	path := fmt.Sprintf("/api/v1/node/rt/%s", tempAUID)
	return c.doAdmin(ctx, c.nbapiURL+path, cfg, nil)
}

// RegisterRT is the second RT registration call: POST
// {SBAPI}/api/v1/{temp_auid}/rt-registration.
func (c *Client) RegisterRT(ctx context.Context, tempAUID string) error {
	defer observeDuration("register_rt")()
	path := fmt.Sprintf("/api/v1/%s/rt-registration", tempAUID)
	return c.doRT(ctx, c.sbapiURL+path, tempAUID, nil, nil)
}

// Heartbeat posts a periodic heartbeat for an RT: POST
// {SBAPI}/api/v1/{auid}/heartbeat.
func (c *Client) Heartbeat(ctx context.Context, auid string) error {
	defer observeDuration("heartbeat")()
	path := fmt.Sprintf("/api/v1/%s/heartbeat", auid)
	return c.doRT(ctx, c.sbapiURL+path, auid, nil, nil)
}

func (c *Client) doAdmin(ctx context.Context, url string, body, out any) error {
	req, err := c.newRequest(ctx, url, body)
	if err != nil {
		return err
	}
	token, err := c.minter.MintAdmin()
	if err != nil {
		return fmt.Errorf("nms: mint admin token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return c.send(req, out)
}

func (c *Client) doRT(ctx context.Context, url, auid string, body, out any) error {
	req, err := c.newRequest(ctx, url, body)
	if err != nil {
		return err
	}
	token, err := c.minter.MintRT(auid)
	if err != nil {
		return fmt.Errorf("nms: mint rt token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return c.send(req, out)
}

func (c *Client) newRequest(ctx context.Context, url string, body any) (*http.Request, error) {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("nms: encode request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, reader)
	if err != nil {
		return nil, fmt.Errorf("nms: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("nms: %s %s: %w", req.Method, req.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("nms: %s %s: unexpected status %d", req.Method, req.URL, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("nms: decode response from %s: %w", req.URL, err)
		}
	}
	return nil
}
