package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weatherlink-logger/internal/weather"
)

// DefaultWeatherLinkBaseURL is the WeatherLink v2 API root.
const DefaultWeatherLinkBaseURL = "https://api.weatherlink.com/v2"

// WeatherLinkSettings identifies the station and its credentials.
type WeatherLinkSettings struct {
	BaseURL    string
	APIKey     string
	APISecret  string
	StationID  string
	MaxRetries int
}

// WeatherLinkProvider implements weather.Fetcher for the WeatherLink v2
// current-conditions endpoint.
type WeatherLinkProvider struct {
	name     string
	settings WeatherLinkSettings
	baseURL  string
	httpCfg  HTTPClientConfig
	circuit  *gobreaker.CircuitBreaker
}

var _ weather.Fetcher = (*WeatherLinkProvider)(nil)

func NewWeatherLinkProvider(client *http.Client, settings WeatherLinkSettings) *WeatherLinkProvider {
	const name = "weatherlink"
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    5 * time.Minute,
		Timeout:     10 * time.Minute,
	})

	base := strings.TrimRight(settings.BaseURL, "/")
	if base == "" {
		base = DefaultWeatherLinkBaseURL
	}

	return &WeatherLinkProvider{
		name:     name,
		settings: settings,
		baseURL:  base,
		httpCfg: HTTPClientConfig{
			Client: client,
			Backoff: BackoffConfig{
				MaxRetries:      settings.MaxRetries,
				InitialInterval: 2 * time.Second,
				MaxInterval:     30 * time.Second,
			},
		},
		circuit: cb,
	}
}

// Name identifies the provider in errors and logs.
func (p *WeatherLinkProvider) Name() string {
	return p.name
}

// Fetch issues one authenticated request and decodes the sensor document.
// Numbers are kept as json.Number until normalized by the selector.
func (p *WeatherLinkProvider) Fetch(ctx context.Context) (weather.Document, error) {
	if p.settings.APIKey == "" || p.settings.APISecret == "" {
		return weather.Document{}, fmt.Errorf("%s api key/secret is not configured", p.Name())
	}
	if p.settings.StationID == "" {
		return weather.Document{}, fmt.Errorf("%s station id is not configured", p.Name())
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("api-key", p.settings.APIKey)

		u := fmt.Sprintf("%s/current/%s?%s", p.baseURL, url.PathEscape(p.settings.StationID), values.Encode())
		req, err := http.NewRequest(http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-Api-Secret", p.settings.APISecret)
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return weather.Document{}, fmt.Errorf("%s: %w", p.Name(), redact(err, p.settings.APIKey))
	}
	defer resp.Body.Close()

	var doc weather.Document
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return weather.Document{}, fmt.Errorf("decode %s response: %w", p.Name(), err)
	}
	return doc, nil
}

// redact strips the api key from transport errors, which embed the request URL.
func redact(err error, secret string) error {
	var uerr *url.Error
	if secret == "" || !errors.As(err, &uerr) {
		return err
	}
	return &url.Error{
		Op:  uerr.Op,
		URL: strings.ReplaceAll(uerr.URL, url.QueryEscape(secret), "REDACTED"),
		Err: uerr.Err,
	}
}
