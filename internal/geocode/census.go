// Package geocode wraps the free federal geocoding services the screener
// depends on: the Census one-line geocoder for address → coordinates and
// the FCC census-block API for coordinates → jurisdiction.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// DefaultCensusURL is the Census Bureau one-line address geocoder (free, no API key).
const DefaultCensusURL = "https://geocoding.geo.census.gov/geocoder/locations/onelineaddress"

var (
	// ErrNoMatch is returned when a service cannot place the input
	ErrNoMatch = errors.New("no geocoding match")
)

// Geocoder resolves a one-line street address to WGS-84 coordinates.
type Geocoder struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewGeocoder creates a geocoder. An empty baseURL selects the Census service.
func NewGeocoder(baseURL string, timeout time.Duration, logger *slog.Logger) *Geocoder {
	if baseURL == "" {
		baseURL = DefaultCensusURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Geocoder{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type censusResponse struct {
	Result struct {
		AddressMatches []struct {
			Coordinates struct {
				X float64 `json:"x"` // longitude
				Y float64 `json:"y"` // latitude
			} `json:"coordinates"`
		} `json:"addressMatches"`
	} `json:"result"`
}

// Geocode resolves an address like "4510 N Brighton Ave, Kansas City, MO 64117".
func (g *Geocoder) Geocode(ctx context.Context, address string) (lat, lon float64, err error) {
	params := url.Values{}
	params.Set("address", address)
	params.Set("benchmark", "Public_AR_Current")
	params.Set("format", "json")

	var resp censusResponse
	if err := getJSON(ctx, g.client, g.baseURL, params, &resp); err != nil {
		g.logger.Warn("Geocoding request failed",
			slog.String("address", address),
			slog.String("error", err.Error()),
		)
		return 0, 0, fmt.Errorf("%w: %w", ErrNoMatch, err)
	}

	matches := resp.Result.AddressMatches
	if len(matches) == 0 {
		return 0, 0, ErrNoMatch
	}

	return matches[0].Coordinates.Y, matches[0].Coordinates.X, nil
}

func getJSON(ctx context.Context, client *http.Client, baseURL string, params url.Values, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.URL.RawQuery = params.Encode()

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	return nil
}
