// Package directory talks to the station directory service: the coordinator
// registers its own callable address there at startup, and resolves station
// names to live addresses when it needs to pull district state.
//
// The client is a thin, fault-absorbing adapter. Apart from Register (whose
// failure is fatal at startup), every operation degrades to a "not found" or
// "unreachable" sentinel and logs at warn; transport faults never propagate
// past this package. Resolved handles are valid for a single
// call's lifetime and are never cached: a station that reconnects comes
// back under a fresh address.
package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/zackehh/corba-flood-warning-system/internal/domain"
)

// Handle is a revocable reference to a remote station, produced by Resolve
// and consumed by Ping and CurrentState.
type Handle struct {
	Name string `json:"name"`
	Addr string `json:"addr"`
}

// Client resolves station names through the directory service and invokes
// liveness/state queries on the resolved stations.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a directory client. The timeout bounds every outbound
// request, directory lookups and station calls alike.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Register binds this coordinator's name to its callable address, replacing
// any previous binding. Called once at startup; an error here is fatal to
// the process, which must not run without a working directory.
func (c *Client) Register(ctx context.Context, name, addr string) error {
	body, err := json.Marshal(Handle{Name: name, Addr: addr})
	if err != nil {
		return fmt.Errorf("encode registration: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.serviceURL(name), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create registration request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("register with directory: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("register with directory: status %d", resp.StatusCode)
	}
	return nil
}

// Resolve looks a station name up in the directory. Returns false when the
// name is unknown or the lookup itself fails.
func (c *Client) Resolve(ctx context.Context, name string) (Handle, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.serviceURL(name), nil)
	if err != nil {
		c.logger.Warn("directory lookup failed", "station", name, "error", err)
		return Handle{}, false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("directory lookup failed", "station", name, "error", err)
		return Handle{}, false
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Handle{}, false
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("directory lookup failed", "station", name, "status", resp.StatusCode)
		return Handle{}, false
	}

	var h Handle
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		c.logger.Warn("directory lookup returned bad payload", "station", name, "error", err)
		return Handle{}, false
	}
	if h.Addr == "" {
		return Handle{}, false
	}
	return h, true
}

// Ping probes the station behind the handle. Any transport fault reads as
// unreachable.
func (c *Client) Ping(ctx context.Context, h Handle) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.Addr+"/ping", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("station unreachable", "station", h.Name, "error", err)
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// CurrentState asks the station for its own live alert list. Returns false
// on any fault, including the handle going stale between resolution and the
// call.
func (c *Client) CurrentState(ctx context.Context, h Handle) ([]domain.Alert, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.Addr+"/state", nil)
	if err != nil {
		return nil, false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("station state fetch failed", "station", h.Name, "error", err)
		return nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("station state fetch failed", "station", h.Name, "status", resp.StatusCode)
		return nil, false
	}

	var payload struct {
		Alerts []domain.Alert `json:"alerts"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.logger.Warn("station state payload invalid", "station", h.Name, "error", err)
		return nil, false
	}
	return payload.Alerts, true
}

func (c *Client) serviceURL(name string) string {
	return c.baseURL + "/services/" + url.PathEscape(name)
}
