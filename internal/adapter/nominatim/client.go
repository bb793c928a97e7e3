// Package nominatim resolves free-text place queries against a
// Nominatim-compatible search API.
package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/wildfire-analysis/internal/domain"
	"github.com/couchcryptid/wildfire-analysis/internal/observability"
)

const userAgent = "wildfire-analysis/1.0 (+https://github.com/couchcryptid/wildfire-analysis)"

// MaxLimit is the largest result count Nominatim honours.
const MaxLimit = 40

// Client implements domain.PlaceSearcher using the Nominatim search API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Nominatim search client.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		metrics: metrics,
		logger:  logger,
	}
}

// Search returns up to limit places matching query. An empty country searches
// worldwide.
func (c *Client) Search(ctx context.Context, query string, limit int, country string) ([]domain.GeoPoint, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 5
	}
	limit = min(limit, MaxLimit)

	params := url.Values{
		"format":         {"jsonv2"},
		"q":              {query},
		"limit":          {strconv.Itoa(limit)},
		"addressdetails": {"0"},
	}
	if country != "" {
		params.Set("countrycodes", strings.ToLower(country))
	}

	start := time.Now()
	points, err := c.doRequest(ctx, c.baseURL+"/search?"+params.Encode())
	c.metrics.SearchDuration.Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		c.metrics.SearchRequests.WithLabelValues("error").Inc()
		c.logger.Warn("place search failed", "query", query, "error", err)
		return nil, err
	case len(points) == 0:
		c.metrics.SearchRequests.WithLabelValues("empty").Inc()
	default:
		c.metrics.SearchRequests.WithLabelValues("success").Inc()
	}
	return points, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL string) ([]domain.GeoPoint, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("place search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("nominatim API error: status %d: %s", resp.StatusCode, body)
	}

	var places []place
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	points := make([]domain.GeoPoint, 0, len(places))
	for _, p := range places {
		pt, err := p.toGeoPoint()
		if err != nil {
			c.logger.Debug("skipping place with bad coordinates", "place_id", p.PlaceID, "error", err)
			continue
		}
		points = append(points, pt)
	}
	return points, nil
}

// Nominatim jsonv2 response types. Coordinates arrive as strings.

type place struct {
	PlaceID     int64   `json:"place_id"`
	Lat         string  `json:"lat"`
	Lon         string  `json:"lon"`
	Name        string  `json:"name"`
	DisplayName string  `json:"display_name"`
	Importance  float64 `json:"importance"`
	Type        string  `json:"type"`
}

func (p place) toGeoPoint() (domain.GeoPoint, error) {
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return domain.GeoPoint{}, fmt.Errorf("parse lat %q: %w", p.Lat, err)
	}
	lon, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return domain.GeoPoint{}, fmt.Errorf("parse lon %q: %w", p.Lon, err)
	}

	name := p.Name
	if name == "" {
		name, _, _ = strings.Cut(p.DisplayName, ",")
	}
	pt := domain.GeoPoint{
		ID:          strconv.FormatInt(p.PlaceID, 10),
		Name:        strings.TrimSpace(name),
		Latitude:    lat,
		Longitude:   lon,
		DisplayName: p.DisplayName,
		Importance:  max(p.Importance, 0),
		Type:        p.Type,
	}
	if err := pt.Validate(); err != nil {
		return domain.GeoPoint{}, err
	}
	return pt, nil
}
