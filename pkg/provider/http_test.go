package provider

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/search-pager/internal/testutil"
	"github.com/Sternrassler/search-pager/pkg/errclass"
	"github.com/Sternrassler/search-pager/pkg/pagination"
)

func newTestProvider(t *testing.T, baseURL string) *HTTPProvider {
	t.Helper()
	p, err := New(Config{BaseURL: baseURL, UserAgent: "TestApp/1.0", Timeout: 2 * time.Second}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return p
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", DefaultConfig("https://search.example.com"), false},
		{"missing base url", Config{UserAgent: "a"}, true},
		{"missing user agent", Config{BaseURL: "https://search.example.com"}, true},
		{"bad scheme", Config{BaseURL: "ftp://search.example.com", UserAgent: "a"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg, zerolog.Nop())
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestHTTPProvider_Search(t *testing.T) {
	mock := testutil.NewMockSearch(25)
	defer mock.Close()

	p := newTestProvider(t, mock.URL())

	page, err := p.Search(context.Background(), pagination.Request{
		Query:    "golang",
		Options:  pagination.SearchOptions{Locale: "us-en", Region: "wt-wt", SafeSearch: "Strict", TimePeriod: "W"},
		Offset:   20,
		PageSize: 10,
		Token:    "4-abc",
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if len(page.Records) != 5 {
		t.Errorf("len(Records) = %d, want 5", len(page.Records))
	}
	if page.Token != testutil.DefaultToken {
		t.Errorf("Token = %q, want %q", page.Token, testutil.DefaultToken)
	}
	if id, _ := page.Records[0]["id"].(float64); id != 20 {
		t.Errorf("Records[0].id = %v, want 20", page.Records[0]["id"])
	}

	q := mock.GetQueries()[0]
	want := map[string]string{
		"q":   "golang",
		"l":   "us-en",
		"kl":  "wt-wt",
		"kp":  "1",
		"df":  "w",
		"s":   "20",
		"n":   "10",
		"vqd": "4-abc",
	}
	for key, value := range want {
		if got := q.Get(key); got != value {
			t.Errorf("query %s = %q, want %q", key, got, value)
		}
	}

	if ua := mock.LastRequestHeader.Get("User-Agent"); ua != "TestApp/1.0" {
		t.Errorf("User-Agent = %q, want TestApp/1.0", ua)
	}
}

func TestHTTPProvider_FirstPageOmitsOptionalParams(t *testing.T) {
	mock := testutil.NewMockSearch(5)
	defer mock.Close()

	p := newTestProvider(t, mock.URL())
	if _, err := p.Search(context.Background(), pagination.Request{Query: "x", PageSize: 10}); err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	q := mock.GetQueries()[0]
	for _, key := range []string{"s", "vqd", "kp", "l", "df"} {
		if q.Has(key) {
			t.Errorf("query has %s=%q, want absent", key, q.Get(key))
		}
	}
}

func TestHTTPProvider_ErrorClassification(t *testing.T) {
	tests := []struct {
		name          string
		resp          testutil.MockResponse
		wantKind      errclass.Kind
		wantRetryable bool
	}{
		{"rate limited", testutil.NewRateLimitResponse(7), errclass.KindTooManyRequests, true},
		{"server error", testutil.NewServerErrorResponse(), errclass.KindServerError, true},
		{"unavailable", testutil.NewUnavailableResponse(), errclass.KindServiceUnavailable, true},
		{"bad request", testutil.MockResponse{StatusCode: http.StatusBadRequest}, errclass.KindAPIError, false},
		{"token rejected", testutil.NewTokenErrorResponse(), errclass.KindTokenError, true},
		{"malformed body", testutil.NewMalformedResponse(), errclass.KindParsingError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockSearch(10)
			defer mock.Close()
			mock.SetResponse("/search", tt.resp)

			p := newTestProvider(t, mock.URL())
			_, err := p.Search(context.Background(), pagination.Request{Query: "q", PageSize: 10})
			if err == nil {
				t.Fatal("Search() error = nil, want error")
			}

			ce := errclass.Classify(err)
			if ce.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v (err: %v)", ce.Kind, tt.wantKind, err)
			}
			if ce.Retryable != tt.wantRetryable {
				t.Errorf("Retryable = %v, want %v", ce.Retryable, tt.wantRetryable)
			}
		})
	}
}

func TestHTTPProvider_RetryAfter(t *testing.T) {
	mock := testutil.NewMockSearch(10)
	defer mock.Close()
	mock.SetResponse("/search", testutil.NewRateLimitResponse(7))

	p := newTestProvider(t, mock.URL())
	_, err := p.Search(context.Background(), pagination.Request{Query: "q"})

	var se *errclass.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("error type = %T, want *StatusError", err)
	}
	if se.RetryAfter != 7*time.Second {
		t.Errorf("RetryAfter = %v, want 7s", se.RetryAfter)
	}
	if se.Body == "" {
		t.Error("Body is empty, want error body")
	}
}

func TestHTTPProvider_RejectedToken(t *testing.T) {
	mock := testutil.NewMockSearch(10)
	defer mock.Close()
	mock.RejectToken("stale")

	p := newTestProvider(t, mock.URL())

	_, err := p.Search(context.Background(), pagination.Request{Query: "q", Token: "stale"})
	if !errors.Is(err, errclass.ErrTokenInvalid) {
		t.Errorf("err = %v, want ErrTokenInvalid", err)
	}

	if _, err := p.Search(context.Background(), pagination.Request{Query: "q"}); err != nil {
		t.Errorf("tokenless Search() error = %v", err)
	}
}

func TestHTTPProvider_ConnectionRefused(t *testing.T) {
	mock := testutil.NewMockSearch(10)
	url := mock.URL()
	mock.Close()

	p := newTestProvider(t, url)
	_, err := p.Search(context.Background(), pagination.Request{Query: "q"})

	ce := errclass.Classify(err)
	if ce.Kind != errclass.KindConnectionRefused {
		t.Errorf("Kind = %v, want CONNECTION_REFUSED (err: %v)", ce.Kind, err)
	}
}

func TestHTTPProvider_Timeout(t *testing.T) {
	mock := testutil.NewMockSearch(10)
	defer mock.Close()
	mock.SetResponse("/search", testutil.MockResponse{StatusCode: http.StatusOK, Delay: 200 * time.Millisecond})

	p, err := New(Config{BaseURL: mock.URL(), UserAgent: "a", Timeout: 20 * time.Millisecond}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = p.Search(context.Background(), pagination.Request{Query: "q"})
	if ce := errclass.Classify(err); ce.Kind != errclass.KindTimeout {
		t.Errorf("Kind = %v, want TIMEOUT (err: %v)", ce.Kind, err)
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"empty", "", 0},
		{"seconds", "30", 30 * time.Second},
		{"negative", "-5", 0},
		{"http date", now.Add(90 * time.Second).Format(http.TimeFormat), 90 * time.Second},
		{"past date", now.Add(-time.Minute).Format(http.TimeFormat), 0},
		{"garbage", "soon", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseRetryAfter(tt.value, now); got != tt.want {
				t.Errorf("parseRetryAfter(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestHTTPProvider_WithPaginator(t *testing.T) {
	mock := testutil.NewMockSearch(100)
	defer mock.Close()
	mock.RejectToken(testutil.DefaultToken)

	p := newTestProvider(t, mock.URL())
	limiter := newQuietLimiter()
	paginator := pagination.NewPaginator(p, limiter, nil, nil, zerolog.Nop())

	result, err := paginator.Paginate(context.Background(), "golang", pagination.SearchOptions{}, pagination.Options{
		MaxResults: 30,
		PageSize:   10,
		MaxPages:   3,
	})
	if err != nil {
		t.Fatalf("Paginate() error = %v", err)
	}

	if result.TotalFetched != 30 {
		t.Errorf("TotalFetched = %d, want 30", result.TotalFetched)
	}
	if result.Strategy != pagination.StrategyHybrid {
		t.Errorf("Strategy = %v, want hybrid", result.Strategy)
	}
	if id, _ := result.Results[29]["id"].(float64); id != 29 {
		t.Errorf("last record id = %v, want 29", result.Results[29]["id"])
	}
}
