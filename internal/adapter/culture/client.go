// Package culture fetches museum counts per postal code from the
// data.culture.gouv.fr Explore API.
package culture

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
)

const (
	serviceName = "culture"

	// pageLimit is the largest group count the Explore API returns in one call.
	pageLimit = 1000
)

// Client queries the museums dataset.
type Client struct {
	httpClient *http.Client
	recordsURL string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a client for the records endpoint at recordsURL.
func NewClient(recordsURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		recordsURL: recordsURL,
		metrics:    metrics,
		logger:     logger,
	}
}

// MuseumCounts groups the dataset by postal code and counts museums per group.
func (c *Client) MuseumCounts(ctx context.Context) (domain.MuseumCensus, error) {
	params := url.Values{
		"select":   {"count(*) as count"},
		"group_by": {"code_postal"},
		"limit":    {strconv.Itoa(pageLimit)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.recordsURL+"?"+params.Encode(), nil)
	if err != nil {
		return domain.MuseumCensus{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.UpstreamDuration.WithLabelValues(serviceName).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.UpstreamRequests.WithLabelValues(serviceName, "error").Inc()
		return domain.MuseumCensus{}, fmt.Errorf("museum request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.UpstreamRequests.WithLabelValues(serviceName, "error").Inc()
		_, _ = io.Copy(io.Discard, resp.Body)
		return domain.MuseumCensus{}, fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	var page recordsResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		c.metrics.UpstreamRequests.WithLabelValues(serviceName, "error").Inc()
		return domain.MuseumCensus{}, fmt.Errorf("decode response: %w", err)
	}
	c.metrics.UpstreamRequests.WithLabelValues(serviceName, "success").Inc()

	if page.TotalCount > pageLimit {
		c.logger.Warn("museum groups exceed the page limit, some postal codes may be missing",
			"total_count", page.TotalCount,
			"limit", pageLimit,
		)
	}

	res := domain.MuseumCensus{TotalCount: page.TotalCount, Counts: make([]domain.MuseumCount, 0, len(page.Results))}
	for _, r := range page.Results {
		if r.PostalCode == nil || *r.PostalCode == "" {
			res.SkippedNull++
			continue
		}
		if r.Count == nil {
			res.NullCounts = append(res.NullCounts, *r.PostalCode)
			continue
		}
		res.Counts = append(res.Counts, domain.MuseumCount{PostalCode: *r.PostalCode, Count: *r.Count})
	}
	return res, nil
}

// Explore API response types.

type recordsResponse struct {
	TotalCount int           `json:"total_count"`
	Results    []groupRecord `json:"results"`
}

type groupRecord struct {
	PostalCode *string `json:"code_postal"`
	Count      *int    `json:"count"`
}
