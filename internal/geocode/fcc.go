package geocode

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/rmpcap/screener-be/internal/registry"
)

// DefaultFCCURL is the FCC census-block lookup used to attribute a
// coordinate to a state and county.
const DefaultFCCURL = "https://geo.fcc.gov/api/census/block/find"

// Locator identifies the jurisdiction containing a coordinate.
type Locator struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewLocator creates a locator. An empty baseURL selects the FCC service.
func NewLocator(baseURL string, timeout time.Duration, logger *slog.Logger) *Locator {
	if baseURL == "" {
		baseURL = DefaultFCCURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Locator{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type fccResponse struct {
	State struct {
		Code string `json:"code"`
	} `json:"State"`
	County struct {
		Name string `json:"name"`
	} `json:"County"`
}

// Locate returns the jurisdiction (state + county) for a coordinate.
func (l *Locator) Locate(ctx context.Context, lat, lon float64) (registry.Jurisdiction, error) {
	params := url.Values{}
	params.Set("latitude", fmt.Sprintf("%f", lat))
	params.Set("longitude", fmt.Sprintf("%f", lon))
	params.Set("format", "json")

	var resp fccResponse
	if err := getJSON(ctx, l.client, l.baseURL, params, &resp); err != nil {
		l.logger.Warn("Jurisdiction lookup failed",
			slog.Float64("lat", lat),
			slog.Float64("lon", lon),
			slog.String("error", err.Error()),
		)
		return registry.Jurisdiction{}, fmt.Errorf("%w: %w", ErrNoMatch, err)
	}

	if resp.State.Code == "" {
		return registry.Jurisdiction{}, ErrNoMatch
	}

	// FCC county names carry a "County" suffix the registry keys don't use
	county := trimCountySuffix(resp.County.Name)

	return registry.Jurisdiction{State: resp.State.Code, County: county}, nil
}

func trimCountySuffix(name string) string {
	const suffix = " County"
	if len(name) > len(suffix) && name[len(name)-len(suffix):] == suffix {
		return name[:len(name)-len(suffix)]
	}
	return name
}
