// Package geocode resolves street addresses to coordinates via the
// Nominatim API.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/visitplan/visitplan/internal/platform/geo"
)

// Result is a single geocoding hit.
type Result struct {
	Point       geo.Point
	DisplayName string
}

// Geocoder converts a free-form address query to coordinates. A query that
// matches nothing returns (nil, nil): an unresolvable address is an expected
// outcome, not a failure.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (*Result, error)
}

type nominatim struct {
	baseURL   string
	userAgent string
	client    *http.Client
	logger    zerolog.Logger

	// Nominatim's usage policy caps clients at one request per second.
	mu          sync.Mutex
	lastRequest time.Time
	minInterval time.Duration
}

// NewNominatim creates a rate-limited Nominatim client. An empty baseURL
// selects the public openstreetmap.org instance.
func NewNominatim(baseURL, userAgent string, logger zerolog.Logger) Geocoder {
	if baseURL == "" {
		baseURL = "https://nominatim.openstreetmap.org"
	}
	return &nominatim{
		baseURL:     baseURL,
		userAgent:   userAgent,
		client:      &http.Client{Timeout: 10 * time.Second},
		logger:      logger,
		minInterval: time.Second,
	}
}

func (g *nominatim) wait(ctx context.Context) error {
	g.mu.Lock()
	sleep := g.minInterval - time.Since(g.lastRequest)
	g.lastRequest = time.Now().Add(sleep)
	g.mu.Unlock()

	if sleep <= 0 {
		return nil
	}
	select {
	case <-time.After(sleep):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type nominatimHit struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

func (g *nominatim) Geocode(ctx context.Context, query string) (*Result, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}

	reqURL := fmt.Sprintf("%s/search?q=%s&format=json&limit=1", g.baseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("geocode: build request: %w", err)
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocode %q: %w", query, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocode %q: unexpected status %d", query, resp.StatusCode)
	}

	var hits []nominatimHit
	if err := json.NewDecoder(resp.Body).Decode(&hits); err != nil {
		return nil, fmt.Errorf("geocode %q: decode response: %w", query, err)
	}

	result, err := parseHits(hits)
	if err != nil {
		return nil, fmt.Errorf("geocode %q: %w", query, err)
	}
	if result == nil {
		g.logger.Debug().Str("query", query).Msg("geocode: no results")
		return nil, nil
	}

	g.logger.Debug().
		Str("query", query).
		Float64("lat", result.Point.Lat).
		Float64("lon", result.Point.Lon).
		Msg("geocode: resolved")
	return result, nil
}

func parseHits(hits []nominatimHit) (*Result, error) {
	if len(hits) == 0 {
		return nil, nil
	}

	lat, err := strconv.ParseFloat(hits[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid latitude %q", hits[0].Lat)
	}
	lon, err := strconv.ParseFloat(hits[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid longitude %q", hits[0].Lon)
	}

	return &Result{
		Point:       geo.Point{Lat: lat, Lon: lon},
		DisplayName: hits[0].DisplayName,
	}, nil
}
