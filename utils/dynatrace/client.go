// Package dynatrace provides a low-level client for the upstream
// observability REST API.
package dynatrace

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"dtgate/utils/config"
)

const (
	apiV2Root     = "/api/v2/"
	apiConfigRoot = "/api/config/v1/"

	dialTimeout    = 5 * time.Second
	requestTimeout = 30 * time.Second
	retryPause     = 1 * time.Second

	// Upstream error bodies can be large; keep enough for diagnostics.
	maxErrorBody = 2048
)

// UpstreamError is returned when the upstream answers with a non-2xx status.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream request failed: status=%d body=%s", e.Status, e.Body)
}

// NetworkError is returned when the transport fails after retries.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("upstream unreachable: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Client issues authenticated GET requests against the upstream API.
// It is safe for concurrent use; the underlying transport pools
// connections across callers.
type Client struct {
	baseURL      string
	token        string
	httpClient   *http.Client
	requestCount atomic.Int64
}

// NewClient creates a new upstream client from the given configuration.
func NewClient(cfg config.UpstreamConfig) *Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: dialTimeout,
		}).DialContext,
		TLSHandshakeTimeout: dialTimeout,
		MaxIdleConns:        cfg.MaxConnections,
		MaxIdleConnsPerHost: cfg.MaxConnections,
		MaxConnsPerHost:     cfg.MaxConnections,
		IdleConnTimeout:     90 * time.Second,
	}
	if !cfg.VerifySSL {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		log.Println("TLS verification disabled for upstream requests")
	}

	return &Client{
		baseURL: cfg.EnvURL,
		token:   cfg.APIToken,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   requestTimeout,
		},
	}
}

// Get issues a GET against the v2 API, e.g. Get(ctx, "entities", params).
func (c *Client) Get(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	return c.get(ctx, apiV2Root+path, params)
}

// GetConfig issues a GET against the config v1 API, used for the
// management zone catalog.
func (c *Client) GetConfig(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	return c.get(ctx, apiConfigRoot+path, params)
}

// RequestCount returns the total number of upstream requests issued.
func (c *Client) RequestCount() int64 {
	return c.requestCount.Load()
}

// Ping verifies connectivity to the upstream by listing the management
// zone catalog.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.GetConfig(ctx, "managementZones", nil); err != nil {
		log.Printf("Upstream ping failed: %v", err)
		return err
	}
	return nil
}

// get performs the request with a single retry on transport failure.
func (c *Client) get(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	endpoint, err := url.Parse(c.baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("parse upstream endpoint: %w", err)
	}
	if params != nil {
		endpoint.RawQuery = params.Encode()
	}

	resp, err := c.do(ctx, endpoint.String())
	if err != nil {
		// Transient connection failures get one retry after a pause.
		select {
		case <-ctx.Done():
			return nil, &NetworkError{Err: ctx.Err()}
		case <-time.After(retryPause):
		}
		log.Printf("Retrying upstream request after transport error: %v", err)
		resp, err = c.do(ctx, endpoint.String())
		if err != nil {
			return nil, &NetworkError{Err: err}
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		upErr := &UpstreamError{Status: resp.StatusCode, Body: string(body)}
		log.Printf("Upstream returned %d for %s: %s", resp.StatusCode, path, upErr.Body)
		return nil, upErr
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	return json.RawMessage(body), nil
}

func (c *Client) do(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Api-Token "+c.token)
	req.Header.Set("Accept", "application/json")

	c.requestCount.Add(1)
	return c.httpClient.Do(req)
}
