package model

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const defaultCoefficientsURL = "https://www.ngdc.noaa.gov/IAGA/vmod/coeffs/igrf13coeffs.txt"

// Fetcher retrieves a raw coefficient file from a remote source.
type Fetcher struct {
	sourceURL  string
	httpClient *http.Client
}

// NewFetcher creates a Fetcher for the given source URL.
func NewFetcher(sourceURL string) *Fetcher {
	if sourceURL == "" {
		sourceURL = defaultCoefficientsURL
	}
	return &Fetcher{
		sourceURL: sourceURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SourceURL returns the configured source URL.
func (f *Fetcher) SourceURL() string {
	return f.sourceURL
}

// Fetch performs an HTTP GET to retrieve the raw coefficient file.
func (f *Fetcher) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching coefficient data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, f.sourceURL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	return body, nil
}

// Refresher ties a Fetcher, a disk Cache, and a Store together: fetch a
// coefficient file, parse it, persist it, and swap it into the store.
// A file that fails to parse is discarded and the active table is kept.
type Refresher struct {
	fetcher *Fetcher
	cache   *Cache
	store   *Store
	logger  *slog.Logger
}

// NewRefresher creates a Refresher.
func NewRefresher(fetcher *Fetcher, cache *Cache, store *Store, logger *slog.Logger) *Refresher {
	return &Refresher{fetcher: fetcher, cache: cache, store: store, logger: logger}
}

// Refresh fetches, validates, caches, and activates a coefficient table.
func (r *Refresher) Refresh(ctx context.Context) (*Table, error) {
	raw, err := r.fetcher.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	table, err := ParseCoefficients(bytes.NewReader(raw), r.fetcher.SourceURL(), r.logger)
	if err != nil {
		return nil, fmt.Errorf("fetched coefficient file is invalid: %w", err)
	}

	now := time.Now().UTC()
	if err := r.cache.Write(raw, table.LastEpoch(), now); err != nil {
		// Cache persistence is best effort; the table is already validated.
		r.logger.Warn("failed to cache coefficient file", "error", err)
	}

	r.store.Set(table)
	r.logger.Info("coefficient table refreshed",
		"source", r.fetcher.SourceURL(),
		"last_epoch", table.LastEpoch(),
		"fetched_at", now.Format(time.RFC3339),
	)
	return table, nil
}
