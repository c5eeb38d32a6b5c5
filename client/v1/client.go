// Package v1 is a thin HTTP client for the status surface's v1 API,
// used by the iocored CLI and available to embedders that run the
// daemon out-of-process.
package v1

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	apiv1 "github.com/coophouse/iocore/api/v1"
)

// ErrServerNotReady is returned by BlockUntilReady when addr never
// answers /v1/healthz before ctx is done.
var ErrServerNotReady = errors.New("server not ready, timeout waiting")

// Client talks to one iocored status server.
type Client struct {
	addr string
	http *http.Client
}

// Op holds New's options.
type Op struct {
	httpClient *http.Client
}

// OpOption mutates an Op.
type OpOption func(*Op)

// WithHTTPClient overrides the client's default *http.Client.
func WithHTTPClient(c *http.Client) OpOption {
	return func(op *Op) { op.httpClient = c }
}

// New builds a Client against addr, e.g. "http://localhost:8980".
func New(addr string, opts ...OpOption) *Client {
	op := &Op{}
	for _, apply := range opts {
		apply(op)
	}
	if op.httpClient == nil {
		op.httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{addr: addr, http: op.httpClient}
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.addr+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status %d: %s", path, resp.StatusCode, string(body))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}

// Healthz checks GET /v1/healthz.
func (c *Client) Healthz(ctx context.Context) (apiv1.Healthz, error) {
	var hz apiv1.Healthz
	err := c.get(ctx, "/v1/healthz", &hz)
	return hz, err
}

// BlockUntilReady polls Healthz every second until it succeeds or ctx
// is done, whichever comes first.
func (c *Client) BlockUntilReady(ctx context.Context) error {
	if _, err := c.Healthz(ctx); err == nil {
		return nil
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := c.Healthz(ctx); err == nil {
				return nil
			}
		case <-ctx.Done():
			return ErrServerNotReady
		}
	}
}

// ListPorts fetches GET /v1/ports.
func (c *Client) ListPorts(ctx context.Context) (apiv1.PortStatuses, error) {
	var ports apiv1.PortStatuses
	err := c.get(ctx, "/v1/ports", &ports)
	return ports, err
}

// ListDataPoints fetches GET /v1/data-points.
func (c *Client) ListDataPoints(ctx context.Context) (apiv1.DataPointInfos, error) {
	var dps apiv1.DataPointInfos
	err := c.get(ctx, "/v1/data-points", &dps)
	return dps, err
}

// GetDataPoint fetches GET /v1/data-points/{name}.
func (c *Client) GetDataPoint(ctx context.Context, name string) (apiv1.CacheEntry, error) {
	var entry apiv1.CacheEntry
	err := c.get(ctx, "/v1/data-points/"+name, &entry)
	return entry, err
}

func (c *Client) post(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.addr+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s: unexpected status %d: %s", path, resp.StatusCode, string(body))
	}
	return nil
}

// UnskipSlave calls POST /v1/admin/ports/{port}/unskip?slave={slaveID}.
func (c *Client) UnskipSlave(ctx context.Context, port string, slaveID int) error {
	return c.post(ctx, fmt.Sprintf("/v1/admin/ports/%s/unskip?slave=%d", port, slaveID))
}

// ReloadPort calls POST /v1/admin/ports/{port}/reload.
func (c *Client) ReloadPort(ctx context.Context, port string) error {
	return c.post(ctx, fmt.Sprintf("/v1/admin/ports/%s/reload", port))
}
