// Package api is the HTTP adapter for the finance backend. It owns wire
// formats; callers only see normalized types.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const defaultRequestTimeout = 15 * time.Second

// HeaderSource supplies per-request auth headers.
type HeaderSource interface {
	AuthHeaders(ctx context.Context) map[string]string
}

type Client struct {
	baseURL   string
	http      *http.Client
	headers   HeaderSource
	requestID func() string
	now       func() time.Time
}

// NewClient builds a client for baseURL. A nil httpClient gets a default with
// a 15s timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	return &Client{
		baseURL:   strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:      httpClient,
		requestID: uuid.NewString,
		now:       time.Now,
	}
}

// SetHeaderSource wires the auth session in after both are constructed.
func (c *Client) SetHeaderSource(h HeaderSource) {
	c.headers = h
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) do(ctx context.Context, method, path string, in any, extra map[string]string) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", c.requestID())
	if c.headers != nil {
		for k, v := range c.headers.AuthHeaders(ctx) {
			req.Header.Set(k, v)
		}
	}
	for k, v := range extra {
		req.Header.Set(k, v)
	}

	started := c.now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.WithError(errClose).Warn("api: close response body failed")
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: read response: %w", method, path, err)
	}
	log.WithFields(log.Fields{
		"method":   method,
		"path":     path,
		"status":   resp.StatusCode,
		"duration": c.now().Sub(started).String(),
	}).Debug("api: request done")

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, errorFromBody(resp.StatusCode, respBody)
	}
	return unwrapData(respBody), nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	body, err := c.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return err
	}
	return decodeInto(path, body, out)
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	body, err := c.do(ctx, http.MethodPost, path, in, nil)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return decodeInto(path, body, out)
}

func decodeInto(path string, body []byte, out any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
