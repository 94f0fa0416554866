// Package remote is the HTTP client for the analysis service.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"livecheck/internal/auth"
	"livecheck/internal/config"
	"livecheck/internal/version"
)

// DefaultMaxBodySize bounds every response body read.
const DefaultMaxBodySize = 10 << 20

// Authenticator wraps a call with the authorization header.
type Authenticator interface {
	Do(ctx context.Context, fn auth.Call) error
}

// transport is shared by Client and TokenClient.
type transport struct {
	baseURL  *url.URL
	client   *http.Client
	compress bool
	logger   *slog.Logger
}

func newTransport(cfg config.ServerConfig, logger *slog.Logger) (*transport, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("server.baseURL is not configured")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &transport{
		baseURL:  u,
		client:   &http.Client{Timeout: timeout},
		compress: cfg.CompressRequests,
		logger:   logger,
	}, nil
}

// doRequest performs one request. Failures are not retried here; the auth
// decorator owns the only retry.
func (t *transport) doRequest(ctx context.Context, method, path string, body interface{}, authorization string) ([]byte, error) {
	u := *t.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + path

	var (
		reader   io.Reader
		encoding string
	)
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		if t.compress {
			var buf bytes.Buffer
			zw := gzip.NewWriter(&buf)
			if _, err := zw.Write(data); err != nil {
				return nil, fmt.Errorf("failed to compress request body: %w", err)
			}
			if err := zw.Close(); err != nil {
				return nil, fmt.Errorf("failed to compress request body: %w", err)
			}
			data = buf.Bytes()
			encoding = "gzip"
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("X-Client-Name", version.ClientName)
	req.Header.Set("X-Client-Version", version.Version)
	if authorization != "" {
		req.Header.Set(auth.HeaderName, authorization)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if encoding != "" {
		req.Header.Set("Content-Encoding", encoding)
	}

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, DefaultMaxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	t.logger.Debug("Remote request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode >= 400 {
		return nil, parseErrorResponse(resp.StatusCode, data)
	}
	return data, nil
}

func decode[T any](data []byte) (*T, error) {
	var out T
	if len(bytes.TrimSpace(data)) == 0 {
		return &out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &out, nil
}

// Client calls the authenticated endpoints.
type Client struct {
	*transport
	auth  Authenticator
	paths config.ServerConfig
}

// New creates a client for the configured server.
func New(cfg config.ServerConfig, authenticator Authenticator, logger *slog.Logger) (*Client, error) {
	t, err := newTransport(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &Client{transport: t, auth: authenticator, paths: cfg}, nil
}

// call runs one authenticated request through the auth decorator.
func (c *Client) call(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	var data []byte
	err := c.auth.Do(ctx, func(ctx context.Context, authorization string) error {
		var err error
		data, err = c.doRequest(ctx, method, path, body, authorization)
		return err
	})
	return data, err
}
