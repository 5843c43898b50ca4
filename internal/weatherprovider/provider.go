// Package weatherprovider supplies the recent-conditions snapshot the
// weather model (C3) measures deviation against (C4). It caches the last
// fetch for a configured TTL and falls back to standard conditions rather
// than ever returning an error to its caller.
package weatherprovider

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

	"github.com/lukassojak/Smart-Irrigation-System/internal/ierrors"
	"github.com/lukassojak/Smart-Irrigation-System/internal/model"
)

// Provider is implemented by both the live HTTP-backed client and the
// simulator; the controller depends only on this interface.
type Provider interface {
	GetRecent(ctx context.Context, windowDays int) model.WeatherConditions
}

// cachedSnapshot pairs one fetched conditions value with its expiry, the
// same shape the exchange-rate client's RateCache used for its 1-hour TTL.
type cachedSnapshot struct {
	conditions model.WeatherConditions
	expiresAt  time.Time
}

// Client is the live HTTP-backed Provider (C4).
type Client struct {
	baseURL  string
	apiKey   string
	ttl      time.Duration
	standard model.StandardConditions

	httpClient *http.Client
	log        zerolog.Logger

	mu    sync.RWMutex
	cache map[int]cachedSnapshot // keyed by window_days
}

// NewClient builds a live weather provider. ttl is the freshness window:
// a cached snapshot older than ttl is refetched on the next GetRecent call.
func NewClient(endpoints model.WeatherEndpoints, ttl time.Duration, standard model.StandardConditions, log zerolog.Logger) *Client {
	return &Client{
		baseURL:    endpoints.BaseURL,
		apiKey:     endpoints.APIKey,
		ttl:        ttl,
		standard:   standard,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        log.With().Str("component", "weather_provider").Logger(),
		cache:      make(map[int]cachedSnapshot),
	}
}

// GetRecent implements Provider. On any fetch failure it logs at WARN and
// returns standard conditions rather than propagating an error, per §4.4.
func (c *Client) GetRecent(ctx context.Context, windowDays int) model.WeatherConditions {
	c.mu.RLock()
	cached, ok := c.cache[windowDays]
	c.mu.RUnlock()

	if ok && time.Now().Before(cached.expiresAt) {
		c.log.Debug().Int("window_days", windowDays).Msg("weather cache hit")
		return cached.conditions
	}

	conditions, err := c.fetch(ctx, windowDays)
	if err != nil {
		c.log.Warn().Err(err).Int("window_days", windowDays).Msg("weather fetch failed, falling back to standard conditions")
		return c.standard
	}

	c.mu.Lock()
	c.cache[windowDays] = cachedSnapshot{conditions: conditions, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()

	c.log.Info().Int("window_days", windowDays).Msg("fetched weather conditions")
	return conditions
}

func (c *Client) fetch(ctx context.Context, windowDays int) (model.WeatherConditions, error) {
	if c.baseURL == "" {
		return model.WeatherConditions{}, &ierrors.WeatherFetchError{Err: fmt.Errorf("no weather endpoint configured")}
	}

	reqURL := fmt.Sprintf("%s/recent?%s", c.baseURL, url.Values{
		"window_days": {strconv.Itoa(windowDays)},
		"api_key":     {c.apiKey},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return model.WeatherConditions{}, &ierrors.WeatherFetchError{Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.WeatherConditions{}, &ierrors.WeatherFetchError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.WeatherConditions{}, &ierrors.WeatherFetchError{Err: fmt.Errorf("weather API returned status %d", resp.StatusCode)}
	}

	var payload struct {
		SolarTotalKWhM2Day float64 `json:"solar_total"`
		TemperatureC       float64 `json:"temperature"`
		RainfallMM         float64 `json:"rainfall"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return model.WeatherConditions{}, &ierrors.WeatherFetchError{Err: fmt.Errorf("malformed weather payload: %w", err)}
	}

	return model.WeatherConditions{
		SolarTotalKWhM2Day: payload.SolarTotalKWhM2Day,
		TemperatureC:       payload.TemperatureC,
		RainfallMM:         payload.RainfallMM,
	}, nil
}
