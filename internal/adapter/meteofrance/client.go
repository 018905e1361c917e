// Package meteofrance talks to the Météo-France DPClim climatology API:
// station listings per department and asynchronous monthly data orders.
package meteofrance

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
	"unicode/utf8"

	"github.com/couchcryptid/transit-weather-etl/internal/domain"
	"github.com/couchcryptid/transit-weather-etl/internal/observability"
	"github.com/couchcryptid/transit-weather-etl/internal/retry"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/time/rate"
)

const (
	serviceName = "meteo_france"

	// dateLayout is the period bound format expected by the order endpoint.
	dateLayout = "2006-01-02T15:04:05Z"
)

// stationParameters restricts listings to stations measuring every averaged field.
var stationParameters = []string{"temperature", "precipitation", "insolation"}

// ErrEmptyOrderID is returned when an order was accepted without an identifier.
var ErrEmptyOrderID = errors.New("order response has no identifier")

// StatusError is a non-2xx answer from the API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Client calls the DPClim endpoints with the portal API key.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	policy     retry.Policy
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// Options configures a Client.
type Options struct {
	APIKey         string
	BaseURL        string
	RatePerMinute  int
	RequestTimeout time.Duration
	Retry          retry.Policy
}

// NewClient creates a DPClim client paced to opts.RatePerMinute requests.
func NewClient(opts Options, metrics *observability.Metrics, logger *slog.Logger) *Client {
	perMinute := max(opts.RatePerMinute, 1)
	return &Client{
		apiKey:     opts.APIKey,
		baseURL:    opts.BaseURL,
		httpClient: &http.Client{Timeout: opts.RequestTimeout},
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
		policy:     opts.Retry,
		metrics:    metrics,
		logger:     logger,
	}
}

// ListStations returns the stations of a department that measure temperature,
// precipitation and insolation. Each station is tagged with departmentCode.
func (c *Client) ListStations(ctx context.Context, departmentCode string) ([]domain.WeatherStation, error) {
	params := url.Values{
		"id-departement": {departmentCode},
		"parametre":      stationParameters,
	}

	var body []byte
	err := c.withRetry(ctx, "list stations", func(ctx context.Context) error {
		var err error
		body, err = c.get(ctx, "/liste-stations/horaire", params)
		if isStatus(err, http.StatusTooManyRequests) {
			return retry.Transient(err)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list stations for department %s: %w", departmentCode, err)
	}

	var raw []stationJSON
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode stations for department %s: %w", departmentCode, err)
	}

	stations := make([]domain.WeatherStation, 0, len(raw))
	for _, r := range raw {
		st := r.toDomain()
		st.DepartmentCode = departmentCode
		stations = append(stations, st)
	}
	return stations, nil
}

// OrderMonthly places a monthly data order for a station over [start, end)
// and returns the order identifier.
func (c *Client) OrderMonthly(ctx context.Context, stationID string, start, end time.Time) (string, error) {
	params := url.Values{
		"id-station":       {stationID},
		"date-deb-periode": {start.UTC().Format(dateLayout)},
		"date-fin-periode": {end.UTC().Format(dateLayout)},
	}

	var body []byte
	err := c.withRetry(ctx, "order monthly", func(ctx context.Context) error {
		var err error
		body, err = c.get(ctx, "/commande-station/mensuelle", params)
		if isStatus(err, http.StatusTooManyRequests) {
			return retry.Transient(err)
		}
		return err
	})
	if err != nil {
		return "", fmt.Errorf("order monthly data for station %s: %w", stationID, err)
	}

	var resp orderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode order for station %s: %w", stationID, err)
	}
	id := resp.Response.Return.String()
	if id == "" {
		return "", fmt.Errorf("order monthly data for station %s: %w", stationID, ErrEmptyOrderID)
	}
	return id, nil
}

// FetchOrder polls an order until its CSV is ready and returns it as UTF-8
// text. A 404 (or an empty 204) means the file is still being produced.
func (c *Client) FetchOrder(ctx context.Context, orderID string) (string, error) {
	params := url.Values{"id-cmde": {orderID}}

	var body []byte
	err := c.withRetry(ctx, "fetch order", func(ctx context.Context) error {
		var err error
		body, err = c.get(ctx, "/commande/fichier", params)
		switch {
		case isStatus(err, http.StatusTooManyRequests), isStatus(err, http.StatusNotFound):
			return retry.Transient(err)
		case err == nil && len(body) == 0:
			return retry.Transient(errors.New("order file not ready"))
		}
		return err
	})
	if err != nil {
		return "", fmt.Errorf("fetch order %s: %w", orderID, err)
	}
	return decodeText(body)
}

// FetchMonthly orders and downloads one station's monthly extract over [start, end).
func (c *Client) FetchMonthly(ctx context.Context, stationID string, start, end time.Time) (string, error) {
	orderID, err := c.OrderMonthly(ctx, stationID, start, end)
	if err != nil {
		return "", err
	}
	c.logger.Debug("monthly order placed", "station_id", stationID, "order_id", orderID)
	return c.FetchOrder(ctx, orderID)
}

// yearBounds returns [Jan 1 of year, Jan 1 of year+1) in UTC.
func yearBounds(year int) (time.Time, time.Time) {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(1, 0, 0)
}

// FetchYear downloads one calendar year of monthly data for a station.
func (c *Client) FetchYear(ctx context.Context, stationID string, year int) (string, error) {
	start, end := yearBounds(year)
	data, err := c.FetchMonthly(ctx, stationID, start, end)
	if err != nil {
		return "", fmt.Errorf("year %d: %w", year, err)
	}
	return data, nil
}

func (c *Client) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	return c.policy.Do(ctx, fn, func(err error, wait time.Duration) {
		c.metrics.UpstreamRetries.WithLabelValues(serviceName).Inc()
		c.logger.Info("transient upstream error, backing off",
			"operation", op,
			"wait", wait,
			"error", err,
		)
	})
}

// get performs one paced GET and returns the body of a 2xx answer.
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("wait for rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "*/*")
	req.Header.Set("apikey", c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.UpstreamDuration.WithLabelValues(serviceName).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.UpstreamRequests.WithLabelValues(serviceName, "error").Inc()
		return nil, fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.UpstreamRequests.WithLabelValues(serviceName, "error").Inc()
		return nil, fmt.Errorf("read %s body: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		outcome := "error"
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusNotFound {
			outcome = "transient"
		}
		c.metrics.UpstreamRequests.WithLabelValues(serviceName, outcome).Inc()
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 256)}
	}

	c.metrics.UpstreamRequests.WithLabelValues(serviceName, "success").Inc()
	return body, nil
}

func isStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// decodeText returns body as UTF-8, transcoding from Latin-1 when needed.
func decodeText(body []byte) (string, error) {
	if utf8.Valid(body) {
		return string(body), nil
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(body)
	if err != nil {
		return "", fmt.Errorf("transcode latin-1 body: %w", err)
	}
	return string(out), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// DPClim response types.

type stationJSON struct {
	ID     flexString `json:"id"`
	Name   string     `json:"nom"`
	Open   bool       `json:"posteOuvert"`
	Type   int        `json:"typePoste"`
	Lat    float64    `json:"lat"`
	Lon    float64    `json:"lon"`
	Alt    int        `json:"alt"`
	Public bool       `json:"postePublic"`
}

func (s stationJSON) toDomain() domain.WeatherStation {
	return domain.WeatherStation{
		StationID: s.ID.String(),
		Name:      s.Name,
		Open:      s.Open,
		Type:      s.Type,
		Lat:       s.Lat,
		Lon:       s.Lon,
		Alt:       s.Alt,
		Public:    s.Public,
	}
}

type orderResponse struct {
	Response struct {
		Return flexString `json:"return"`
	} `json:"elaboreProduitAvecDemandeResponse"`
}

// flexString accepts an identifier encoded as a JSON string or number.
// Station identifiers keep their leading zeros only in the string form.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("identifier: %w", err)
	}
	*f = flexString(n.String())
	return nil
}

func (f flexString) String() string { return string(f) }
