// Package provider adapts the search backend HTTP API to pagination.Provider.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/search-pager/pkg/errclass"
	"github.com/Sternrassler/search-pager/pkg/pagination"
)

// Prometheus metrics for backend requests.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "search_provider_requests_total",
		Help: "Total search backend requests by status",
	}, []string{"status"})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "search_provider_request_duration_seconds",
		Help:    "Search backend request duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	})
)

const (
	// maxBodySize bounds the decoded response body.
	maxBodySize = 4 << 20

	// maxErrorBodySize bounds the body kept on a StatusError.
	maxErrorBodySize = 1 << 10
)

// Config holds the HTTP provider configuration.
type Config struct {
	// BaseURL of the search backend, e.g. "https://search.example.com"
	BaseURL string

	// UserAgent header sent with every request (required)
	UserAgent string

	// Timeout per request
	Timeout time.Duration
}

// DefaultConfig returns a default configuration for baseURL.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:   baseURL,
		UserAgent: "search-pager/1.0",
		Timeout:   30 * time.Second,
	}
}

// envelope is the backend response body.
type envelope struct {
	Results []map[string]any `json:"results"`
	Vqd     string           `json:"vqd"`
	Error   string           `json:"error"`
}

// HTTPProvider fetches result pages from the search backend.
type HTTPProvider struct {
	httpClient *http.Client
	endpoint   *url.URL
	config     Config
	logger     zerolog.Logger
}

// New creates an HTTP provider.
func New(cfg Config, logger zerolog.Logger) (*HTTPProvider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https, got %q", cfg.BaseURL)
	}

	return &HTTPProvider{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		endpoint: base.JoinPath("search"),
		config:   cfg,
		logger:   logger.With().Str("component", "provider").Logger(),
	}, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (p *HTTPProvider) SetHTTPClient(client *http.Client) {
	p.httpClient = client
}

// Search implements pagination.Provider.
func (p *HTTPProvider) Search(ctx context.Context, req pagination.Request) (*pagination.Page, error) {
	startTime := time.Now()
	defer func() {
		requestDuration.Observe(time.Since(startTime).Seconds())
	}()

	u := *p.endpoint
	u.RawQuery = buildQuery(req).Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("User-Agent", p.config.UserAgent)
	httpReq.Header.Set("Accept", "application/json")

	p.logger.Debug().
		Int("offset", req.Offset).
		Int("page_size", req.PageSize).
		Bool("continued", req.Token != "").
		Msg("Executing search request")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		requestsTotal.WithLabelValues("network_error").Inc()
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		p.logger.Warn().
			Int("status", resp.StatusCode).
			Msg("Search backend error")
		return nil, &errclass.StatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
			Body:       string(body),
		}
	}

	var env envelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&env); err != nil {
		return nil, fmt.Errorf("parse search response: %w", err)
	}

	if env.Error != "" {
		if isTokenMessage(env.Error) {
			return nil, fmt.Errorf("search backend: %s: %w", env.Error, errclass.ErrTokenInvalid)
		}
		return nil, errors.New("search backend: " + env.Error)
	}

	records := make([]pagination.Record, len(env.Results))
	for i, r := range env.Results {
		records[i] = pagination.Record(r)
	}

	return &pagination.Page{
		Records: records,
		Token:   env.Vqd,
	}, nil
}

// buildQuery maps a page request onto backend query parameters.
func buildQuery(req pagination.Request) url.Values {
	q := url.Values{}
	q.Set("q", req.Query)

	if v := req.Options.Locale; v != "" {
		q.Set("l", v)
	}
	if v := req.Options.Region; v != "" {
		q.Set("kl", v)
	}
	if v, ok := safeSearchParam[strings.ToLower(req.Options.SafeSearch)]; ok {
		q.Set("kp", v)
	}
	if v := req.Options.TimePeriod; v != "" {
		q.Set("df", strings.ToLower(v))
	}
	if req.Offset > 0 {
		q.Set("s", strconv.Itoa(req.Offset))
	}
	if req.PageSize > 0 {
		q.Set("n", strconv.Itoa(req.PageSize))
	}
	if req.Token != "" {
		q.Set("vqd", req.Token)
	}

	return q
}

var safeSearchParam = map[string]string{
	"strict":   "1",
	"moderate": "-1",
	"off":      "-2",
}

func isTokenMessage(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "vqd") || strings.Contains(msg, "token")
}

// parseRetryAfter parses a Retry-After header in seconds or HTTP date form.
// Returns 0 if absent or invalid.
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}

	if t, err := http.ParseTime(value); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
