// Package gateway is the typed HTTP client for the Flame Prophet backend. Each
// remote operation has its own method, fixed timeout, and circuit breaker.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
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
	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker/v2"
)

// Operation names, used in errors, logs, and metric labels.
const (
	OpHealth            = "health"
	OpCurrentWeather    = "current_weather"
	OpHistoricalWeather = "historical_weather"
	OpClassify          = "classify"
	OpForecast          = "forecast"
)

// MaxImageBytes mirrors the backend's upload limit.
const MaxImageBytes = 16 << 20

const maxResponseBytes = 4 << 20

const unknownErrorCode = "Unknown error"

// Timeouts are the per-call deadlines for each operation.
type Timeouts struct {
	Health            time.Duration
	CurrentWeather    time.Duration
	HistoricalWeather time.Duration
	Classify          time.Duration
	Forecast          time.Duration
}

// DefaultTimeouts returns the deadlines the backend is sized for.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Health:            5 * time.Second,
		CurrentWeather:    10 * time.Second,
		HistoricalWeather: 15 * time.Second,
		Classify:          30 * time.Second,
		Forecast:          30 * time.Second,
	}
}

// healthRetryDelays is the linear backoff between health attempts.
var healthRetryDelays = []time.Duration{1 * time.Second, 2 * time.Second, 3 * time.Second}

// HealthStatus is the /health response body.
type HealthStatus struct {
	Status  string `json:"status"`
	Service string `json:"service,omitempty"`
	Version string `json:"version,omitempty"`
}

// Client calls the backend API. It is safe for concurrent use.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	timeouts    Timeouts
	retryDelays []time.Duration
	breakers    map[string]*gobreaker.CircuitBreaker[[]byte]
	clock       clockwork.Clock
	metrics     *observability.Metrics
	logger      *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying transport client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeouts overrides the per-operation deadlines.
func WithTimeouts(t Timeouts) Option {
	return func(c *Client) { c.timeouts = t }
}

// WithClock sets the clock used for health retry waits.
func WithClock(clk clockwork.Clock) Option {
	return func(c *Client) { c.clock = clk }
}

// WithRetryDelays overrides the health retry backoff schedule.
func WithRetryDelays(d ...time.Duration) Option {
	return func(c *Client) { c.retryDelays = d }
}

// NewClient creates a backend client rooted at baseURL (for example
// http://localhost:5000/api).
func NewClient(baseURL string, metrics *observability.Metrics, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{},
		timeouts:    DefaultTimeouts(),
		retryDelays: healthRetryDelays,
		clock:       clockwork.NewRealClock(),
		metrics:     metrics,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.breakers = make(map[string]*gobreaker.CircuitBreaker[[]byte], 5)
	for _, op := range []string{OpHealth, OpCurrentWeather, OpHistoricalWeather, OpClassify, OpForecast} {
		c.breakers[op] = c.newBreaker(op)
	}
	return c
}

func (c *Client) newBreaker(op string) *gobreaker.CircuitBreaker[[]byte] {
	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        op,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: breakerSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.metrics.BreakerState.WithLabelValues(name).Set(float64(to))
			c.logger.Warn("circuit breaker state change", "operation", name, "from", from.String(), "to", to.String())
		},
	})
}

// breakerSuccess keeps caller cancellation and client-side (4xx) rejections
// from tripping the breaker.
func breakerSuccess(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var remote *domain.RemoteError
	if errors.As(err, &remote) {
		return remote.StatusCode < 500 && remote.StatusCode != http.StatusTooManyRequests
	}
	return false
}

// Health probes the backend, retrying up to three times with linear backoff.
// It is the only operation that retries.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	var lastErr error
	for attempt := 0; attempt <= len(c.retryDelays); attempt++ {
		if attempt > 0 {
			delay := c.retryDelays[attempt-1]
			c.logger.Debug("retrying health check", "attempt", attempt+1, "delay", delay, "error", lastErr)
			select {
			case <-ctx.Done():
				return HealthStatus{}, abortError(ctx, OpHealth, c.timeouts.Health)
			case <-c.clock.After(delay):
			}
		}

		status, err := c.healthOnce(ctx)
		if err == nil {
			return status, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return HealthStatus{}, err
		}
	}
	return HealthStatus{}, fmt.Errorf("health check failed after %d attempts: %w", len(c.retryDelays)+1, lastErr)
}

func (c *Client) healthOnce(ctx context.Context) (HealthStatus, error) {
	var status HealthStatus
	err := c.call(ctx, OpHealth, c.timeouts.Health, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	}, &status)
	return status, err
}

// CheckReadiness reports whether the backend answers a single health probe.
func (c *Client) CheckReadiness(ctx context.Context) error {
	_, err := c.healthOnce(ctx)
	return err
}

// CurrentWeather fetches the current conditions at a point.
func (c *Client) CurrentWeather(ctx context.Context, lat, lon float64) (domain.CurrentWeatherSnapshot, error) {
	q := url.Values{
		"lat": {formatCoord(lat)},
		"lon": {formatCoord(lon)},
	}
	var snap domain.CurrentWeatherSnapshot
	err := c.call(ctx, OpCurrentWeather, c.timeouts.CurrentWeather, c.get("/weather/current", q), &snap)
	return snap, err
}

// HistoricalWeather fetches the last days of daily history at a point. The
// series is returned as sent; length and shape are checked by the normalizer.
func (c *Client) HistoricalWeather(ctx context.Context, lat, lon float64, days int) (domain.HistoricalResponse, error) {
	q := url.Values{
		"lat":  {formatCoord(lat)},
		"lon":  {formatCoord(lon)},
		"days": {strconv.Itoa(days)},
	}
	var hist domain.HistoricalResponse
	err := c.call(ctx, OpHistoricalWeather, c.timeouts.HistoricalWeather, c.get("/weather/historical", q), &hist)
	return hist, err
}

// Classify uploads a captured image for wildfire classification.
func (c *Client) Classify(ctx context.Context, img domain.Image) (domain.ClassificationResult, error) {
	if len(img.Data) == 0 {
		return domain.ClassificationResult{}, &domain.CaptureError{Err: errors.New("empty image")}
	}
	if len(img.Data) > MaxImageBytes {
		return domain.ClassificationResult{}, &domain.RemoteError{
			Operation:  OpClassify,
			StatusCode: http.StatusRequestEntityTooLarge,
			Message:    fmt.Sprintf("image is %d bytes, limit is %d", len(img.Data), MaxImageBytes),
		}
	}

	body, contentType, err := encodeImage(img)
	if err != nil {
		return domain.ClassificationResult{}, &domain.TransportError{Operation: OpClassify, Err: err}
	}

	var result domain.ClassificationResult
	err = c.call(ctx, OpClassify, c.timeouts.Classify, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/classify", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		return req, nil
	}, &result)
	return result, err
}

// Forecast requests a temperature forecast from exactly HistoryDays feature
// vectors. A body reporting success=false is surfaced as a RemoteError.
func (c *Client) Forecast(ctx context.Context, in domain.ForecastRequest) (domain.ForecastResult, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return domain.ForecastResult{}, &domain.TransportError{Operation: OpForecast, Err: err}
	}

	var result domain.ForecastResult
	err = c.call(ctx, OpForecast, c.timeouts.Forecast, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, &result)
	if err != nil {
		return domain.ForecastResult{}, err
	}
	if !result.Success {
		return domain.ForecastResult{}, &domain.RemoteError{
			Operation:  OpForecast,
			StatusCode: http.StatusOK,
			Code:       "Prediction failed",
			Message:    "forecast service reported an unsuccessful prediction",
		}
	}
	return result, nil
}

func (c *Client) get(path string, q url.Values) func(context.Context) (*http.Request, error) {
	return func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	}
}

// call runs one request under the operation's deadline and breaker and
// decodes a 2xx body into out.
func (c *Client) call(ctx context.Context, op string, timeout time.Duration, newReq func(context.Context) (*http.Request, error), out any) error {
	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := c.breakers[op].Execute(func() ([]byte, error) {
		req, err := newReq(callCtx)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, parseRemoteError(op, resp.StatusCode, data)
		}
		return data, nil
	})
	c.metrics.GatewayDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	if err != nil {
		err = c.classify(ctx, callCtx, op, timeout, err)
		c.metrics.GatewayRequests.WithLabelValues(op, outcome(err)).Inc()
		c.logger.Debug("backend request failed", "operation", op, "error", err)
		return err
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			err = &domain.TransportError{Operation: op, Err: fmt.Errorf("decode response: %w", err)}
			c.metrics.GatewayRequests.WithLabelValues(op, outcome(err)).Inc()
			return err
		}
	}
	c.metrics.GatewayRequests.WithLabelValues(op, "success").Inc()
	return nil
}

// classify maps a raw failure into the domain error taxonomy.
func (c *Client) classify(parent, callCtx context.Context, op string, timeout time.Duration, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &domain.RemoteError{
			Operation:  op,
			StatusCode: http.StatusServiceUnavailable,
			Code:       "Circuit open",
			Message:    "service temporarily unavailable",
		}
	}
	var remote *domain.RemoteError
	if errors.As(err, &remote) {
		return remote
	}
	if callCtx.Err() != nil {
		return abortError(parent, op, timeout)
	}
	return &domain.TransportError{Operation: op, Err: err}
}

// abortError reports a deadline or a caller cancellation. Cancelled is set
// when the caller's context ended first.
func abortError(parent context.Context, op string, timeout time.Duration) error {
	return &domain.TimeoutError{
		Operation: op,
		Timeout:   timeout,
		Cancelled: parent.Err() != nil,
	}
}

func outcome(err error) string {
	var (
		remote    *domain.RemoteError
		timeout   *domain.TimeoutError
		transport *domain.TransportError
	)
	switch {
	case errors.As(err, &remote) && remote.StatusCode == http.StatusServiceUnavailable && remote.Code == "Circuit open":
		return "breaker_open"
	case errors.As(err, &remote):
		return "remote_error"
	case errors.As(err, &timeout):
		return "timeout"
	case errors.As(err, &transport):
		return "transport_error"
	default:
		return "error"
	}
}

// parseRemoteError reads the backend's {error, message} body. A body that is
// not JSON at all is reported as "Unknown error"; an empty or malformed JSON
// body leaves both fields blank so Display falls back to the status.
func parseRemoteError(op string, status int, body []byte) *domain.RemoteError {
	e := &domain.RemoteError{Operation: op, StatusCode: status}

	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return e
	}
	if !json.Valid(body) {
		e.Code = unknownErrorCode
		return e
	}

	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return e
	}
	e.Code = payload.Error
	e.Message = payload.Message
	return e
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
