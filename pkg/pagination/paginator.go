package pagination

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/search-pager/pkg/cache"
	"github.com/Sternrassler/search-pager/pkg/errclass"
	"github.com/Sternrassler/search-pager/pkg/ratelimit"
)

// OperationPage labels page fetches in limiter metrics and classified errors.
const OperationPage = "pagination.page"

// Paginator stitches provider pages into one bounded result.
// A Paginator is safe for concurrent use; pages of one run are fetched
// strictly in sequence.
type Paginator struct {
	provider Provider
	limiter  *ratelimit.Limiter
	tokens   *cache.TokenCache
	reporter Reporter
	logger   zerolog.Logger
}

// NewPaginator creates a paginator. A nil token cache gets a default one and
// a nil reporter discards telemetry.
func NewPaginator(provider Provider, limiter *ratelimit.Limiter, tokens *cache.TokenCache, reporter Reporter, logger zerolog.Logger) *Paginator {
	if provider == nil {
		panic("provider cannot be nil")
	}
	if limiter == nil {
		panic("limiter cannot be nil")
	}
	if tokens == nil {
		tokens = cache.NewTokenCache(cache.TokenCacheConfig{})
	}
	if reporter == nil {
		reporter = NopReporter{}
	}

	return &Paginator{
		provider: provider,
		limiter:  limiter,
		tokens:   tokens,
		reporter: reporter,
		logger:   logger.With().Str("component", "pagination").Logger(),
	}
}

// Tokens returns the token cache.
func (p *Paginator) Tokens() *cache.TokenCache {
	return p.tokens
}

// Paginate fetches up to opts.MaxResults records for query.
//
// Invalid input returns an INVALID_INPUT error before any backend call. When
// the gate blocks, a CIRCUIT_OPEN error is returned. A failure after some
// records were fetched ends the run with those records, HasMore=false and
// Result.Interruption set; the error itself is only returned when nothing was
// fetched. Cancellation returns the partial result together with ctx.Err().
func (p *Paginator) Paginate(ctx context.Context, query string, searchOpts SearchOptions, opts Options) (*Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, p.surface(ctx, errclass.NewInputError("query", "must not be empty"), opts)
	}
	if ce := opts.Validate(); ce != nil {
		return nil, p.surface(ctx, ce, opts)
	}
	if ce := searchOpts.Validate(); ce != nil {
		return nil, p.surface(ctx, ce, opts)
	}

	r := &run{
		p:           p,
		id:          uuid.NewString(),
		query:       query,
		searchOpts:  searchOpts,
		opts:        opts,
		fingerprint: searchOpts.Fingerprint(query),
		strategy:    StrategyPrimary,
	}
	r.logger = p.logger.With().Str("run_id", r.id).Logger()

	if token, ok := p.tokens.Get(r.fingerprint); ok {
		r.token = token
		r.lastToken = token
		r.logger.Debug().Msg("Continuing with cached token")
	}

	start := time.Now()
	result, err := r.execute(ctx)
	if result != nil {
		p.reporter.ReportRun(ctx, result, time.Since(start))
	}
	return result, err
}

// surface reports a classified error and strips its detail unless debugging.
func (p *Paginator) surface(ctx context.Context, ce *errclass.ClassifiedError, opts Options) *errclass.ClassifiedError {
	p.reporter.ReportError(ctx, OperationPage, ce)
	if opts.DebugMode {
		return ce
	}
	return ce.Redact()
}

// run is the state of one Paginate call.
type run struct {
	p      *Paginator
	id     string
	logger zerolog.Logger

	query       string
	searchOpts  SearchOptions
	opts        Options
	fingerprint string

	records   []Record
	pages     int
	token     string
	lastToken string
	tokenless bool
	strategy  Strategy
}

func (r *run) execute(ctx context.Context) (*Result, error) {
	start := time.Now()
	lastFull := false

	var interruption *errclass.ClassifiedError

	for {
		if r.pages > 0 {
			if len(r.records) >= r.opts.MaxResults || r.pages >= r.opts.MaxPages || !lastFull {
				break
			}
			if err := sleepContext(ctx, r.opts.DelayBetweenRequests); err != nil {
				return r.result(false, nil), err
			}
		}

		page, err := r.fetch(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				r.logger.Info().
					Int("pages", r.pages).
					Int("records", len(r.records)).
					Msg("Pagination cancelled")
				return r.result(false, nil), ctxErr
			}

			ce := errclass.Classify(err)
			if !r.opts.DebugMode {
				ce = ce.Redact()
			}

			if len(r.records) == 0 {
				r.logger.Warn().
					Str("kind", string(ce.Kind)).
					Int("page", r.pages+1).
					Msg("Pagination failed before any results")
				return nil, ce
			}

			r.logger.Warn().
				Str("kind", string(ce.Kind)).
				Int("page", r.pages+1).
				Int("records", len(r.records)).
				Msg("Pagination interrupted - returning partial results")
			interruption = ce
			break
		}

		r.pages++
		r.records = append(r.records, page.Records...)
		lastFull = len(page.Records) >= r.opts.PageSize

		r.logPage(len(page.Records))
	}

	result := r.result(interruption == nil && lastFull, interruption)

	r.logger.Info().
		Str("strategy", string(result.Strategy)).
		Int("pages", result.PagesProcessed).
		Int("total", result.TotalFetched).
		Bool("has_more", result.HasMore).
		Dur("duration", time.Since(start)).
		Msg("Pagination complete")

	return result, nil
}

// fetch retrieves the next page under retry.
func (r *run) fetch(ctx context.Context) (*Page, error) {
	return ratelimit.Retry(ctx, r.p.limiter, OperationPage, r.attempt)
}

// attempt is one gated page fetch. A rejected token is dropped and the same
// page is re-issued once without it, inside the same attempt. A trial that
// ends without a recorded outcome gives its slot back.
func (r *run) attempt(ctx context.Context) (page *Page, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ticket, allowed, err := r.p.limiter.Acquire(ctx, OperationPage)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, r.circuitOpen(ctx)
	}

	recorded := false
	defer func() {
		if !recorded {
			r.p.limiter.Release(ticket)
		}
	}()

	page, err = r.call(ctx)
	if err != nil && !r.tokenless && r.token != "" && isTokenRejection(err) {
		r.abandonToken()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		// The re-issue skips the backoff delay but not the circuit.
		if !r.p.limiter.Admits(ticket) {
			return nil, r.circuitOpen(ctx)
		}
		page, err = r.call(ctx)
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		ce := errclass.Classify(err).WithOperation(OperationPage)
		if ce.IsUpstreamFailure() {
			r.p.limiter.RecordFailure()
			recorded = true
		}
		r.p.reporter.ReportError(ctx, OperationPage, ce)
		return nil, ce
	}

	recorded = true
	if len(page.Records) == 0 {
		r.p.limiter.RecordEmptyResult()
	} else {
		r.p.limiter.RecordSuccess()
	}

	if page.Token != "" {
		r.p.tokens.Set(r.fingerprint, page.Token)
		r.lastToken = page.Token
		if !r.tokenless {
			r.token = page.Token
		}
	}

	return page, nil
}

// circuitOpen reports and returns the error for a refused call.
func (r *run) circuitOpen(ctx context.Context) *errclass.ClassifiedError {
	ce := errclass.NewCircuitOpen(OperationPage, r.p.limiter.RemainingCooldown())
	r.p.reporter.ReportError(ctx, OperationPage, ce)
	return ce
}

// call issues the provider request for the next page.
func (r *run) call(ctx context.Context) (*Page, error) {
	req := Request{
		Query:    r.query,
		Options:  r.searchOpts,
		Offset:   len(r.records),
		PageSize: r.opts.PageSize,
	}
	if !r.tokenless {
		req.Token = r.token
	}

	page, err := r.p.provider.Search(ctx, req)
	if err != nil {
		return nil, err
	}
	if page == nil {
		page = &Page{}
	}
	return page, nil
}

// abandonToken switches the run to tokenless continuation.
func (r *run) abandonToken() {
	r.p.tokens.Delete(r.fingerprint)
	r.token = ""
	r.lastToken = ""
	r.tokenless = true

	if r.pages == 0 {
		r.strategy = StrategyFallback
	} else {
		r.strategy = StrategyHybrid
	}

	r.logger.Warn().
		Int("page", r.pages+1).
		Str("strategy", string(r.strategy)).
		Msg("Continuation token rejected - continuing without token")
}

func (r *run) logPage(n int) {
	event := r.logger.Debug()
	if r.opts.DebugMode {
		event = r.logger.Info()
	}
	event.
		Int("page", r.pages).
		Int("records", n).
		Int("total", len(r.records)).
		Bool("tokenless", r.tokenless).
		Msg("Page fetched")
}

// result assembles the trimmed, immutable result.
func (r *run) result(hasMore bool, interruption *errclass.ClassifiedError) *Result {
	records := r.records
	if len(records) > r.opts.MaxResults {
		records = records[:r.opts.MaxResults]
	}
	out := make([]Record, len(records))
	copy(out, records)

	return &Result{
		Results:        out,
		TotalFetched:   len(out),
		PagesProcessed: r.pages,
		VqdToken:       r.lastToken,
		HasMore:        hasMore,
		Strategy:       r.strategy,
		RunID:          r.id,
		Interruption:   interruption,
	}
}

func isTokenRejection(err error) bool {
	if errors.Is(err, errclass.ErrTokenInvalid) {
		return true
	}
	return errclass.Classify(err).Kind == errclass.KindTokenError
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
