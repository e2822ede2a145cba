// Package geozone resolves free-form location strings to integer cost zones
// using configured anchor locations and geographic proximity, with a
// persistent cache in front of the geocoding service.
package geozone

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"
)

// Coord is a WGS84 coordinate pair.
type Coord struct {
	Lat float64
	Lon float64
}

// Geocoder turns a location string into coordinates. Implementations call
// out to an external service and are treated as unreliable: callers fall
// back to the unknown zone on any error.
type Geocoder interface {
	Geocode(ctx context.Context, location string) (Coord, error)
}

// NominatimClient geocodes against a Nominatim-compatible search endpoint.
// Responses are JSON arrays; the first candidate's lat/lon is used.
type NominatimClient struct {
	// BaseURL is the search endpoint, e.g. "https://nominatim.openstreetmap.org/search".
	BaseURL string

	// UserAgent identifies the client as the service's usage policy requires.
	UserAgent string

	// Timeout bounds each lookup. Defaults to 5s.
	Timeout time.Duration

	// HTTPClient is optional; if nil a default client is used.
	HTTPClient *http.Client
}

// Geocode looks up a location string. Returns an error on transport
// failure, non-200 status, or an empty candidate list.
func (c *NominatimClient) Geocode(ctx context.Context, location string) (Coord, error) {
	if c.BaseURL == "" {
		return Coord{}, fmt.Errorf("geocoder: BaseURL is required")
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s?q=%s&format=json&limit=1", c.BaseURL, url.QueryEscape(location))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Coord{}, fmt.Errorf("geocoder: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	cli := c.HTTPClient
	if cli == nil {
		cli = &http.Client{Timeout: timeout}
	}

	resp, err := cli.Do(req)
	if err != nil {
		return Coord{}, fmt.Errorf("geocoder: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Coord{}, fmt.Errorf("geocoder: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Coord{}, fmt.Errorf("geocoder: read response: %w", err)
	}

	lat := gjson.GetBytes(body, "0.lat")
	lon := gjson.GetBytes(body, "0.lon")
	if !lat.Exists() || !lon.Exists() {
		return Coord{}, fmt.Errorf("geocoder: no result for %q", location)
	}

	return Coord{Lat: lat.Float(), Lon: lon.Float()}, nil
}
