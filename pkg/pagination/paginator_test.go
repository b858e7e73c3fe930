package pagination

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/search-pager/pkg/cache"
	"github.com/Sternrassler/search-pager/pkg/errclass"
	"github.com/Sternrassler/search-pager/pkg/ratelimit"
)

// fakeBackend serves generated records and records every request.
type fakeBackend struct {
	mu sync.Mutex

	// total is the number of records available by offset
	total int

	// pageSizes overrides the size of each successfully served page
	pageSizes []int

	// token is returned with every page
	token string

	// rejectTokenOnPage rejects any sent token on that page (1-based)
	rejectTokenOnPage int

	// failures maps a call number (1-based) to the error it returns
	failures map[int]error

	// onCall runs after each request is recorded
	onCall func(call int)

	served   int
	requests []Request
}

func (b *fakeBackend) Search(ctx context.Context, req Request) (*Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.requests = append(b.requests, req)
	call := len(b.requests)
	if b.onCall != nil {
		b.onCall(call)
	}

	if err, ok := b.failures[call]; ok {
		return nil, err
	}

	page := b.served + 1
	if req.Token != "" && page == b.rejectTokenOnPage {
		return nil, fmt.Errorf("backend said: %w", errclass.ErrTokenInvalid)
	}

	size := req.PageSize
	if b.pageSizes != nil {
		size = 0
		if page <= len(b.pageSizes) {
			size = b.pageSizes[page-1]
		}
	} else if remaining := b.total - req.Offset; remaining < size {
		size = max(remaining, 0)
	}

	records := make([]Record, size)
	for i := range records {
		records[i] = Record{"id": req.Offset + i, "title": fmt.Sprintf("result %d", req.Offset+i)}
	}

	b.served++
	return &Page{Records: records, Token: b.token}, nil
}

func (b *fakeBackend) calls() []Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Request(nil), b.requests...)
}

// recordingReporter counts reporter calls.
type recordingReporter struct {
	mu     sync.Mutex
	errors []errclass.Kind
	runs   int
}

func (r *recordingReporter) ReportError(_ context.Context, _ string, err *errclass.ClassifiedError) {
	r.mu.Lock()
	r.errors = append(r.errors, err.Kind)
	r.mu.Unlock()
}

func (r *recordingReporter) ReportRun(context.Context, *Result, time.Duration) {
	r.mu.Lock()
	r.runs++
	r.mu.Unlock()
}

func testLimiterConfig() ratelimit.Config {
	return ratelimit.Config{
		EmptyResultThreshold: 5,
		InitialBackoff:       time.Millisecond,
		MaxBackoff:           10 * time.Millisecond,
		FailureThreshold:     10,
		CircuitResetTimeout:  time.Minute,
		MaxRetries:           2,
		RetryDelay:           time.Millisecond,
	}
}

func newTestPaginator(provider Provider) (*Paginator, *ratelimit.Limiter, *recordingReporter) {
	limiter := ratelimit.NewLimiter(testLimiterConfig(), zerolog.Nop())
	reporter := &recordingReporter{}
	tokens := cache.NewTokenCache(cache.TokenCacheConfig{MaxEntries: 10})
	return NewPaginator(provider, limiter, tokens, reporter, zerolog.Nop()), limiter, reporter
}

func testOptions(maxResults, pageSize, maxPages int) Options {
	return Options{
		MaxResults: maxResults,
		PageSize:   pageSize,
		MaxPages:   maxPages,
	}
}

func TestPaginate_StableToken(t *testing.T) {
	backend := &fakeBackend{pageSizes: []int{10, 10, 5}, token: "vqd-1"}
	p, _, reporter := newTestPaginator(backend)

	result, err := p.Paginate(context.Background(), "golang", SearchOptions{}, testOptions(25, 10, 3))
	if err != nil {
		t.Fatalf("Paginate() error = %v", err)
	}

	if result.TotalFetched != 25 {
		t.Errorf("TotalFetched = %d, want 25", result.TotalFetched)
	}
	if result.PagesProcessed != 3 {
		t.Errorf("PagesProcessed = %d, want 3", result.PagesProcessed)
	}
	if result.HasMore {
		t.Error("HasMore = true, want false")
	}
	if result.Strategy != StrategyPrimary {
		t.Errorf("Strategy = %v, want %v", result.Strategy, StrategyPrimary)
	}
	if result.VqdToken != "vqd-1" {
		t.Errorf("VqdToken = %q, want vqd-1", result.VqdToken)
	}
	if result.RunID == "" {
		t.Error("RunID is empty")
	}

	calls := backend.calls()
	if calls[0].Token != "" {
		t.Errorf("first call token = %q, want none", calls[0].Token)
	}
	for i, c := range calls[1:] {
		if c.Token != "vqd-1" {
			t.Errorf("call %d token = %q, want vqd-1", i+2, c.Token)
		}
	}
	if reporter.runs != 1 {
		t.Errorf("ReportRun calls = %d, want 1", reporter.runs)
	}
}

func TestPaginate_TokenRejectedMidRun(t *testing.T) {
	backend := &fakeBackend{total: 100, token: "vqd-1", rejectTokenOnPage: 2}
	p, _, _ := newTestPaginator(backend)

	result, err := p.Paginate(context.Background(), "golang", SearchOptions{}, testOptions(30, 10, 3))
	if err != nil {
		t.Fatalf("Paginate() error = %v", err)
	}

	if result.Strategy != StrategyHybrid {
		t.Errorf("Strategy = %v, want %v", result.Strategy, StrategyHybrid)
	}
	if result.TotalFetched != 30 {
		t.Errorf("TotalFetched = %d, want 30", result.TotalFetched)
	}
	if result.PagesProcessed != 3 {
		t.Errorf("PagesProcessed = %d, want 3", result.PagesProcessed)
	}

	calls := backend.calls()
	if len(calls) != 4 {
		t.Fatalf("provider calls = %d, want 4", len(calls))
	}
	if calls[1].Token != "vqd-1" {
		t.Errorf("page 2 first try token = %q, want vqd-1", calls[1].Token)
	}
	for _, c := range calls[2:] {
		if c.Token != "" {
			t.Errorf("call after rejection sent token %q", c.Token)
		}
	}
	if calls[2].Offset != 10 {
		t.Errorf("re-issued page offset = %d, want 10", calls[2].Offset)
	}

	// Records continue by offset without gaps
	for i, rec := range result.Results {
		if rec["id"] != i {
			t.Fatalf("Results[%d].id = %v, want %d", i, rec["id"], i)
		}
	}

	// Tokens from tokenless calls are still cached for later runs
	if tok, ok := p.Tokens().Get(SearchOptions{}.Fingerprint("golang")); !ok || tok != "vqd-1" {
		t.Errorf("cached token = (%q, %v), want (vqd-1, true)", tok, ok)
	}
}

func TestPaginate_CachedTokenRejectedOnFirstPage(t *testing.T) {
	backend := &fakeBackend{total: 100, token: "vqd-2", rejectTokenOnPage: 1}
	p, _, _ := newTestPaginator(backend)

	fp := SearchOptions{Locale: "us-en"}.Fingerprint("Golang")
	p.Tokens().Set(fp, "stale")

	result, err := p.Paginate(context.Background(), "golang", SearchOptions{Locale: "US-EN"}, testOptions(20, 10, 2))
	if err != nil {
		t.Fatalf("Paginate() error = %v", err)
	}

	if result.Strategy != StrategyFallback {
		t.Errorf("Strategy = %v, want %v", result.Strategy, StrategyFallback)
	}
	if result.TotalFetched != 20 {
		t.Errorf("TotalFetched = %d, want 20", result.TotalFetched)
	}

	calls := backend.calls()
	if calls[0].Token != "stale" {
		t.Errorf("first call token = %q, want stale", calls[0].Token)
	}
	if calls[1].Token != "" || calls[1].Offset != 0 {
		t.Errorf("re-issued first page = %+v, want tokenless offset 0", calls[1])
	}
}

func TestPaginate_CachedTokenReused(t *testing.T) {
	backend := &fakeBackend{total: 100, token: "vqd-3"}
	p, _, _ := newTestPaginator(backend)

	if _, err := p.Paginate(context.Background(), "golang", SearchOptions{}, testOptions(10, 10, 1)); err != nil {
		t.Fatalf("first Paginate() error = %v", err)
	}
	if _, err := p.Paginate(context.Background(), "golang", SearchOptions{}, testOptions(10, 10, 1)); err != nil {
		t.Fatalf("second Paginate() error = %v", err)
	}

	calls := backend.calls()
	if calls[1].Token != "vqd-3" {
		t.Errorf("second run first call token = %q, want vqd-3", calls[1].Token)
	}
}

func TestPaginate_HasMore(t *testing.T) {
	tests := []struct {
		name        string
		backend     *fakeBackend
		opts        Options
		wantTotal   int
		wantPages   int
		wantHasMore bool
	}{
		{
			name:        "short page ends run before max pages",
			backend:     &fakeBackend{pageSizes: []int{10, 4}},
			opts:        testOptions(50, 10, 5),
			wantTotal:   14,
			wantPages:   2,
			wantHasMore: false,
		},
		{
			name:        "short page on last allowed page",
			backend:     &fakeBackend{pageSizes: []int{10, 9}},
			opts:        testOptions(50, 10, 2),
			wantTotal:   19,
			wantPages:   2,
			wantHasMore: false,
		},
		{
			name:        "max pages reached with full pages",
			backend:     &fakeBackend{total: 100},
			opts:        testOptions(50, 10, 2),
			wantTotal:   20,
			wantPages:   2,
			wantHasMore: true,
		},
		{
			name:        "max results reached and trimmed",
			backend:     &fakeBackend{total: 100},
			opts:        testOptions(15, 10, 5),
			wantTotal:   15,
			wantPages:   2,
			wantHasMore: true,
		},
		{
			name:        "empty first page",
			backend:     &fakeBackend{total: 0},
			opts:        testOptions(10, 10, 5),
			wantTotal:   0,
			wantPages:   1,
			wantHasMore: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _, _ := newTestPaginator(tt.backend)

			result, err := p.Paginate(context.Background(), "q", SearchOptions{}, tt.opts)
			if err != nil {
				t.Fatalf("Paginate() error = %v", err)
			}
			if result.TotalFetched != tt.wantTotal || len(result.Results) != tt.wantTotal {
				t.Errorf("TotalFetched = %d (len %d), want %d", result.TotalFetched, len(result.Results), tt.wantTotal)
			}
			if result.PagesProcessed != tt.wantPages {
				t.Errorf("PagesProcessed = %d, want %d", result.PagesProcessed, tt.wantPages)
			}
			if result.HasMore != tt.wantHasMore {
				t.Errorf("HasMore = %v, want %v", result.HasMore, tt.wantHasMore)
			}
		})
	}
}

func TestPaginate_EmptyPageRecordedOnLimiter(t *testing.T) {
	p, limiter, _ := newTestPaginator(&fakeBackend{total: 0})

	if _, err := p.Paginate(context.Background(), "q", SearchOptions{}, testOptions(10, 10, 5)); err != nil {
		t.Fatalf("Paginate() error = %v", err)
	}

	if got := limiter.Metrics().ConsecutiveEmptyResults; got != 1 {
		t.Errorf("ConsecutiveEmptyResults = %d, want 1", got)
	}
}

func TestPaginate_CircuitOpen(t *testing.T) {
	backend := &fakeBackend{total: 100}
	p, limiter, _ := newTestPaginator(backend)

	for i := 0; i < testLimiterConfig().FailureThreshold; i++ {
		limiter.RecordFailure()
	}

	result, err := p.Paginate(context.Background(), "q", SearchOptions{}, testOptions(10, 10, 1))
	if result != nil {
		t.Errorf("result = %+v, want nil", result)
	}

	ce, ok := errclass.As(err)
	if !ok {
		t.Fatalf("error type = %T, want *ClassifiedError", err)
	}
	if ce.Kind != errclass.KindCircuitOpen {
		t.Errorf("Kind = %v, want %v", ce.Kind, errclass.KindCircuitOpen)
	}
	if !errors.Is(err, errclass.ErrCircuitOpen) {
		t.Error("errors.Is(err, ErrCircuitOpen) = false")
	}
	if ce.RetryAfter <= 0 || ce.RetryAfter > time.Minute {
		t.Errorf("RetryAfter = %v, want (0, 1m]", ce.RetryAfter)
	}
	if n := len(backend.calls()); n != 0 {
		t.Errorf("provider calls = %d, want 0", n)
	}
}

func TestPaginate_UnrecordedTrialFreesSlot(t *testing.T) {
	tests := []struct {
		name    string
		failure error
		cancel  bool
	}{
		{"client error", &errclass.StatusError{StatusCode: http.StatusBadRequest}, false},
		{"cancelled", &errclass.StatusError{StatusCode: http.StatusServiceUnavailable}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var mu sync.Mutex
			now := time.Unix(1_700_000_000, 0)
			cfg := testLimiterConfig()
			cfg.FailureThreshold = 1
			cfg.MaxRetries = 0
			cfg.Clock = func() time.Time {
				mu.Lock()
				defer mu.Unlock()
				return now
			}
			limiter := ratelimit.NewLimiter(cfg, zerolog.Nop())

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			backend := &fakeBackend{
				total: 100,
				failures: map[int]error{
					1: &errclass.StatusError{StatusCode: http.StatusServiceUnavailable},
					2: tt.failure,
				},
			}
			if tt.cancel {
				backend.onCall = func(call int) {
					if call == 2 {
						cancel()
					}
				}
			}
			tokens := cache.NewTokenCache(cache.TokenCacheConfig{MaxEntries: 10})
			p := NewPaginator(backend, limiter, tokens, &recordingReporter{}, zerolog.Nop())
			opts := testOptions(10, 10, 1)

			// Opens the circuit.
			p.Paginate(context.Background(), "q", SearchOptions{}, opts)

			mu.Lock()
			now = now.Add(cfg.CircuitResetTimeout)
			mu.Unlock()

			// Admitted as the trial call, ends without a recorded outcome.
			p.Paginate(ctx, "q", SearchOptions{}, opts)
			if got := limiter.Metrics().Circuit; got != ratelimit.CircuitHalfOpen {
				t.Fatalf("Circuit = %v, want HALF_OPEN", got)
			}

			result, err := p.Paginate(context.Background(), "q", SearchOptions{}, opts)
			if err != nil {
				t.Fatalf("Paginate() error = %v, want next trial admitted", err)
			}
			if result.TotalFetched != 10 {
				t.Errorf("TotalFetched = %d, want 10", result.TotalFetched)
			}
			if got := limiter.Metrics().Circuit; got != ratelimit.CircuitClosed {
				t.Errorf("Circuit = %v, want CLOSED", got)
			}
			if n := len(backend.calls()); n != 3 {
				t.Errorf("provider calls = %d, want 3", n)
			}
		})
	}
}

func TestPaginate_TokenlessReissueRespectsCircuit(t *testing.T) {
	backend := &fakeBackend{total: 100, token: "vqd-1", rejectTokenOnPage: 2}
	p, limiter, _ := newTestPaginator(backend)
	backend.onCall = func(call int) {
		if call == 2 {
			for i := 0; i < testLimiterConfig().FailureThreshold; i++ {
				limiter.RecordFailure()
			}
		}
	}

	result, err := p.Paginate(context.Background(), "q", SearchOptions{}, testOptions(30, 10, 3))
	if err != nil {
		t.Fatalf("Paginate() error = %v, want nil with partial results", err)
	}

	if result.TotalFetched != 10 {
		t.Errorf("TotalFetched = %d, want 10", result.TotalFetched)
	}
	if result.Interruption == nil || result.Interruption.Kind != errclass.KindCircuitOpen {
		t.Errorf("Interruption = %v, want CIRCUIT_OPEN", result.Interruption)
	}
	if result.Strategy != StrategyHybrid {
		t.Errorf("Strategy = %v, want %v", result.Strategy, StrategyHybrid)
	}
	if n := len(backend.calls()); n != 2 {
		t.Errorf("provider calls = %d, want 2 (no re-issue while open)", n)
	}
}

func TestPaginate_PartialResultsOnFailure(t *testing.T) {
	backend := &fakeBackend{
		total:    100,
		failures: map[int]error{2: &errclass.StatusError{StatusCode: http.StatusForbidden}},
	}
	p, _, reporter := newTestPaginator(backend)

	result, err := p.Paginate(context.Background(), "q", SearchOptions{}, testOptions(30, 10, 3))
	if err != nil {
		t.Fatalf("Paginate() error = %v, want nil with partial results", err)
	}

	if result.TotalFetched != 10 {
		t.Errorf("TotalFetched = %d, want 10", result.TotalFetched)
	}
	if result.HasMore {
		t.Error("HasMore = true, want false")
	}
	if result.Interruption == nil || result.Interruption.Kind != errclass.KindAPIError {
		t.Errorf("Interruption = %v, want API_ERROR", result.Interruption)
	}
	if result.Interruption != nil && result.Interruption.Detail != nil {
		t.Error("Interruption.Detail set without debug mode")
	}
	if len(backend.calls()) != 2 {
		t.Errorf("provider calls = %d, want 2 (no retry for 403)", len(backend.calls()))
	}
	if len(reporter.errors) != 1 || reporter.errors[0] != errclass.KindAPIError {
		t.Errorf("reported errors = %v, want [API_ERROR]", reporter.errors)
	}
}

func TestPaginate_RetriesTransientFailure(t *testing.T) {
	backend := &fakeBackend{
		total:    100,
		failures: map[int]error{2: &errclass.StatusError{StatusCode: http.StatusServiceUnavailable}},
	}
	p, limiter, _ := newTestPaginator(backend)

	result, err := p.Paginate(context.Background(), "q", SearchOptions{}, testOptions(20, 10, 2))
	if err != nil {
		t.Fatalf("Paginate() error = %v", err)
	}

	if result.TotalFetched != 20 {
		t.Errorf("TotalFetched = %d, want 20", result.TotalFetched)
	}
	if result.Interruption != nil {
		t.Errorf("Interruption = %v, want nil", result.Interruption)
	}
	if len(backend.calls()) != 3 {
		t.Errorf("provider calls = %d, want 3", len(backend.calls()))
	}
	if got := limiter.Metrics().FailureCount; got != 0 {
		t.Errorf("FailureCount = %d, want 0 after later success", got)
	}
}

func TestPaginate_FailureWithoutResults(t *testing.T) {
	tests := []struct {
		name       string
		debug      bool
		wantDetail bool
	}{
		{"redacted by default", false, false},
		{"detail in debug mode", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{
				failures: map[int]error{1: &errclass.StatusError{StatusCode: http.StatusBadRequest}},
			}
			p, _, _ := newTestPaginator(backend)

			opts := testOptions(10, 10, 1)
			opts.DebugMode = tt.debug

			result, err := p.Paginate(context.Background(), "q", SearchOptions{}, opts)
			if result != nil {
				t.Errorf("result = %+v, want nil", result)
			}

			ce, ok := errclass.As(err)
			if !ok || ce.Kind != errclass.KindAPIError {
				t.Fatalf("err = %v, want API_ERROR", err)
			}
			if (ce.Detail != nil) != tt.wantDetail {
				t.Errorf("Detail = %v, want present = %v", ce.Detail, tt.wantDetail)
			}
		})
	}
}

func TestPaginate_UpstreamFailuresCountOnLimiter(t *testing.T) {
	unavailable := &errclass.StatusError{StatusCode: http.StatusServiceUnavailable}
	backend := &fakeBackend{
		failures: map[int]error{1: unavailable, 2: unavailable, 3: unavailable},
	}
	p, limiter, _ := newTestPaginator(backend)

	_, err := p.Paginate(context.Background(), "q", SearchOptions{}, testOptions(10, 10, 1))

	ce, ok := errclass.As(err)
	if !ok || ce.Kind != errclass.KindServiceUnavailable {
		t.Fatalf("err = %v, want SERVICE_UNAVAILABLE", err)
	}
	if n := len(backend.calls()); n != 3 {
		t.Errorf("provider calls = %d, want 3 (1 + 2 retries)", n)
	}
	if got := limiter.Metrics().FailureCount; got != 3 {
		t.Errorf("FailureCount = %d, want 3", got)
	}
}

func TestPaginate_ClientErrorsDoNotCountOnLimiter(t *testing.T) {
	backend := &fakeBackend{
		failures: map[int]error{1: &errclass.StatusError{StatusCode: http.StatusNotFound}},
	}
	p, limiter, _ := newTestPaginator(backend)

	p.Paginate(context.Background(), "q", SearchOptions{}, testOptions(10, 10, 1))

	if got := limiter.Metrics().FailureCount; got != 0 {
		t.Errorf("FailureCount = %d, want 0", got)
	}
}

func TestPaginate_CancellationStopsFurtherCalls(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend := &fakeBackend{total: 100}
	backend.onCall = func(call int) {
		if call == 1 {
			cancel()
		}
	}
	p, _, _ := newTestPaginator(backend)

	result, err := p.Paginate(ctx, "q", SearchOptions{}, testOptions(50, 10, 5))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if result == nil {
		t.Fatal("result = nil, want partial result")
	}
	if result.TotalFetched != 10 {
		t.Errorf("TotalFetched = %d, want 10", result.TotalFetched)
	}
	if result.HasMore {
		t.Error("HasMore = true, want false")
	}
	if n := len(backend.calls()); n != 1 {
		t.Errorf("provider calls = %d, want 1", n)
	}
}

func TestPaginate_DelayBetweenRequests(t *testing.T) {
	p, _, _ := newTestPaginator(&fakeBackend{total: 100})

	opts := testOptions(30, 10, 3)
	opts.DelayBetweenRequests = 15 * time.Millisecond

	start := time.Now()
	if _, err := p.Paginate(context.Background(), "q", SearchOptions{}, opts); err != nil {
		t.Fatalf("Paginate() error = %v", err)
	}

	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("elapsed = %v, want >= 30ms (two delays)", elapsed)
	}
}

func TestPaginate_InvalidInput(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		searchOpts SearchOptions
		opts       Options
	}{
		{"empty query", "  ", SearchOptions{}, testOptions(10, 10, 1)},
		{"max results zero", "q", SearchOptions{}, testOptions(0, 10, 1)},
		{"max results above limit", "q", SearchOptions{}, testOptions(51, 10, 1)},
		{"page size zero", "q", SearchOptions{}, testOptions(10, 0, 1)},
		{"max pages zero", "q", SearchOptions{}, testOptions(10, 10, 0)},
		{"negative delay", "q", SearchOptions{}, Options{MaxResults: 10, PageSize: 10, MaxPages: 1, DelayBetweenRequests: -time.Second}},
		{"unknown safe search", "q", SearchOptions{SafeSearch: "bogus"}, testOptions(10, 10, 1)},
		{"unknown time period", "q", SearchOptions{TimePeriod: "decade"}, testOptions(10, 10, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{total: 100}
			p, _, _ := newTestPaginator(backend)

			_, err := p.Paginate(context.Background(), tt.query, tt.searchOpts, tt.opts)

			ce, ok := errclass.As(err)
			if !ok || ce.Kind != errclass.KindInvalidInput {
				t.Fatalf("err = %v, want INVALID_INPUT", err)
			}
			if ce.Retryable {
				t.Error("Retryable = true, want false")
			}
			if n := len(backend.calls()); n != 0 {
				t.Errorf("provider calls = %d, want 0", n)
			}
		})
	}
}

func TestPaginate_ConcurrentRuns(t *testing.T) {
	provider := ProviderFunc(func(ctx context.Context, req Request) (*Page, error) {
		records := make([]Record, req.PageSize)
		for i := range records {
			records[i] = Record{"id": req.Offset + i}
		}
		return &Page{Records: records, Token: "tok-" + req.Query}, nil
	})
	p, _, _ := newTestPaginator(provider)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := p.Paginate(context.Background(), fmt.Sprintf("query %d", i), SearchOptions{}, testOptions(20, 5, 4))
			if err != nil {
				errs <- err
				return
			}
			if result.TotalFetched != 20 {
				errs <- fmt.Errorf("query %d: TotalFetched = %d, want 20", i, result.TotalFetched)
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
	if got := p.Tokens().Size(); got != 10 {
		t.Errorf("token cache size = %d, want 10", got)
	}
}

func TestProviderFunc(t *testing.T) {
	var got Request
	f := ProviderFunc(func(ctx context.Context, req Request) (*Page, error) {
		got = req
		return &Page{Token: "t"}, nil
	})

	page, err := f.Search(context.Background(), Request{Query: "q", PageSize: 3})
	if err != nil || page.Token != "t" {
		t.Errorf("Search() = (%+v, %v)", page, err)
	}
	if got.Query != "q" || got.PageSize != 3 {
		t.Errorf("request = %+v", got)
	}
}
