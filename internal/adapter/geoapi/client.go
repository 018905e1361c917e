// Package geoapi resolves coordinates to communes through geo.api.gouv.fr.
package geoapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/transit-weather-etl/internal/domain"
	"github.com/couchcryptid/transit-weather-etl/internal/observability"
	"github.com/couchcryptid/transit-weather-etl/internal/retry"
	"golang.org/x/time/rate"
)

const (
	serviceName = "geo_api"
	fields      = "nom,code,codeDepartement,codeRegion,population,codesPostaux"
)

// Client implements domain.CommuneLocator using the geo.api.gouv.fr communes endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	policy     retry.Policy
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a commune lookup client paced to ratePerSecond requests.
// Rate-limited answers are retried under policy.
func NewClient(baseURL string, ratePerSecond int, timeout time.Duration, policy retry.Policy, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		limiter:    rate.NewLimiter(rate.Limit(ratePerSecond), 1),
		policy:     policy,
		metrics:    metrics,
		logger:     logger,
	}
}

// LocateCommune returns the commune containing (lat, lon). An empty answer
// yields domain.ErrCommuneNotFound.
func (c *Client) LocateCommune(ctx context.Context, lat, lon float64) (domain.Commune, error) {
	var communes []domain.Commune
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		var err error
		communes, err = c.fetch(ctx, lat, lon)
		return err
	}, func(err error, wait time.Duration) {
		c.metrics.UpstreamRetries.WithLabelValues(serviceName).Inc()
		c.logger.Info("transient upstream error, backing off",
			"lat", lat,
			"lon", lon,
			"wait", wait,
			"error", err,
		)
	})
	if err != nil {
		return domain.Commune{}, err
	}

	if len(communes) == 0 {
		return domain.Commune{}, domain.ErrCommuneNotFound
	}
	if len(communes) > 1 {
		c.logger.Debug("several communes returned, keeping the first", "lat", lat, "lon", lon, "count", len(communes))
	}
	return communes[0], nil
}

// fetch performs one paced request. HTTP 429 is returned as a transient error.
func (c *Client) fetch(ctx context.Context, lat, lon float64) ([]domain.Commune, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("wait for rate limiter: %w", err)
	}

	params := url.Values{
		"lat":    {strconv.FormatFloat(lat, 'f', -1, 64)},
		"lon":    {strconv.FormatFloat(lon, 'f', -1, 64)},
		"fields": {fields},
	}
	u := c.baseURL + "/communes?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.UpstreamDuration.WithLabelValues(serviceName).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.UpstreamRequests.WithLabelValues(serviceName, "error").Inc()
		return nil, fmt.Errorf("commune request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		statusErr := fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
		if resp.StatusCode == http.StatusTooManyRequests {
			c.metrics.UpstreamRequests.WithLabelValues(serviceName, "transient").Inc()
			return nil, retry.Transient(statusErr)
		}
		c.metrics.UpstreamRequests.WithLabelValues(serviceName, "error").Inc()
		return nil, statusErr
	}

	var communes []domain.Commune
	if err := json.NewDecoder(resp.Body).Decode(&communes); err != nil {
		c.metrics.UpstreamRequests.WithLabelValues(serviceName, "error").Inc()
		return nil, fmt.Errorf("decode response: %w", err)
	}
	c.metrics.UpstreamRequests.WithLabelValues(serviceName, "success").Inc()
	return communes, nil
}
