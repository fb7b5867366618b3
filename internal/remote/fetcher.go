// Package remote downloads generated media from the upstream provider and
// classifies upstream failures.
package remote

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/veostudio/studio-agent/internal/logging"
)

const (
	DefaultTimeout = 120 * time.Second
	// DefaultMaxBytes caps a single video download.
	DefaultMaxBytes = 2 << 30
	errorBodyLimit  = 4096
)

// HTTPFetcher downloads remote videos. When an API key is configured it is
// sent as the "key" query parameter, which generated-video URIs require.
type HTTPFetcher struct {
	apiKey     string
	maxBytes   int64
	httpClient *http.Client
	logger     *slog.Logger
}

func NewHTTPFetcher(apiKey string, timeout time.Duration, logger *slog.Logger) *HTTPFetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &HTTPFetcher{
		apiKey:   apiKey,
		maxBytes: DefaultMaxBytes,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logging.WithComponent(logger, "remote"),
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	target, err := f.authorize(uri)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Request-Id", uuid.New().String())

	start := time.Now()
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return nil, &FetchError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("remote video exceeds %d bytes", f.maxBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("remote video is empty")
	}

	f.logger.Info("fetched remote video",
		"uri", logging.SanitizeURL(uri),
		"bytes", len(data),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return data, nil
}

func (f *HTTPFetcher) authorize(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("parse uri: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported uri scheme %q", u.Scheme)
	}
	if f.apiKey != "" {
		q := u.Query()
		q.Set("key", f.apiKey)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
