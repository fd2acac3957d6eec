// Package fetcher retrieves occurrence records from the GBIF API, the
// outbound collaborator spec.md §6 describes as feeding the core its
// native JSON-shaped records. It is built on the teacher's shared-transport
// HTTP client and APIError conventions (pkg/ml/http.go) and its
// disk-caching download shape (pkg/ml/model_downloader.go), with a file
// lock guarding concurrent writers to the same cache entry.
package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const gbifOccurrenceBaseURL = "https://api.gbif.org/v1/occurrence"

// sharedTransport pools connections across every fetcher client the way
// the teacher's ml package shares one transport across its ML service
// clients.
var sharedTransport = &http.Transport{
	DialContext: (&net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
	MaxIdleConns:        100,
	MaxIdleConnsPerHost: 10,
	IdleConnTimeout:     90 * time.Second,
}

// NewHTTPClient builds an HTTP client sharing sharedTransport.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout, Transport: sharedTransport}
}

// APIError reports a non-2xx GBIF response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gbif: HTTP %d: %s", e.StatusCode, e.Body)
}

func checkResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &APIError{StatusCode: resp.StatusCode, Body: string(body)}
}

// Client fetches and disk-caches GBIF occurrence payloads.
type Client struct {
	http     *http.Client
	cacheDir string
	baseURL  string
}

// NewClient builds a fetcher Client. cacheDir may be empty to disable
// on-disk caching entirely.
func NewClient(cacheDir string) *Client {
	return &Client{http: NewHTTPClient(30 * time.Second), cacheDir: cacheDir, baseURL: gbifOccurrenceBaseURL}
}

// GetOccurrence fetches a single occurrence by its GBIF key, disk-cached
// forever (GBIF occurrence records are immutable once published under a
// given key in practice).
func (c *Client) GetOccurrence(ctx context.Context, gbifKey int64) (map[string]any, error) {
	if c.cacheDir != "" {
		if cached, ok, err := c.readCache(gbifKey); err != nil {
			return nil, err
		} else if ok {
			return cached, nil
		}
	}

	url := fmt.Sprintf("%s/%d", c.baseURL, gbifKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetcher: build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetcher: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkResponse(resp); err != nil {
		return nil, err
	}

	var occurrence map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&occurrence); err != nil {
		return nil, fmt.Errorf("fetcher: decode response: %w", err)
	}

	if c.cacheDir != "" {
		if err := c.writeCache(gbifKey, occurrence); err != nil {
			return nil, err
		}
	}
	return occurrence, nil
}

func (c *Client) cachePath(gbifKey int64) string {
	return filepath.Join(c.cacheDir, fmt.Sprintf("%d.json", gbifKey))
}

func (c *Client) readCache(gbifKey int64) (map[string]any, bool, error) {
	path := c.cachePath(gbifKey)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("fetcher: read cache: %w", err)
	}
	var occurrence map[string]any
	if err := json.Unmarshal(data, &occurrence); err != nil {
		return nil, false, fmt.Errorf("fetcher: decode cache: %w", err)
	}
	return occurrence, true, nil
}

// writeCache writes the occurrence to disk atomically (temp file + rename)
// under a file lock, so concurrent fetches of the same key never interleave
// writes, the same pattern the teacher's model_downloader.go uses for its
// multi-hundred-megabyte model files.
func (c *Client) writeCache(gbifKey int64, occurrence map[string]any) error {
	if err := os.MkdirAll(c.cacheDir, 0o755); err != nil {
		return fmt.Errorf("fetcher: create cache dir: %w", err)
	}

	lock := flock.New(c.cachePath(gbifKey) + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("fetcher: acquire cache lock: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	path := c.cachePath(gbifKey)
	tmpPath := path + ".tmp"
	data, err := json.Marshal(occurrence)
	if err != nil {
		return fmt.Errorf("fetcher: encode cache entry: %w", err)
	}
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("fetcher: write cache temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("fetcher: finalize cache entry: %w", err)
	}
	return nil
}
