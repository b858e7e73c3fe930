package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/search-pager/pkg/client"
	"github.com/Sternrassler/search-pager/pkg/errclass"
	"github.com/Sternrassler/search-pager/pkg/metrics"
	"github.com/Sternrassler/search-pager/pkg/pagination"
)

// requestTimeout bounds a single /search call.
const requestTimeout = 2 * time.Minute

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve searches over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), a)
		},
	}

	cmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	_ = a.v.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))

	return cmd
}

func runServe(ctx context.Context, a *app) error {
	cfg, logger, err := a.load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, cleanup, err := newClient(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           newMux(c, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", cfg.Server.Addr).
			Str("backend", cfg.Provider.BaseURL).
			Msg("Starting search proxy")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newMux(c *client.Client, logger zerolog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /diagnostics", diagnosticsHandler(c))
	mux.HandleFunc("GET /search", searchHandler(c, logger))
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func diagnosticsHandler(c *client.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, c.Diagnostics())
	}
}

func searchHandler(c *client.Client, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()

		opts, ce := parseOptions(query, c.DefaultOptions())
		if ce != nil {
			writeError(w, ce)
			return
		}
		searchOpts := pagination.SearchOptions{
			Locale:     query.Get("locale"),
			Region:     query.Get("region"),
			SafeSearch: query.Get("safe"),
			TimePeriod: query.Get("time"),
		}

		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		result, err := c.Paginate(ctx, query.Get("q"), searchOpts, &opts)
		if err != nil {
			logger.Warn().Err(err).Str("query", query.Get("q")).Msg("Search failed")
			writeError(w, errclass.Classify(err))
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}

// parseOptions overlays query parameters on the defaults.
func parseOptions(query map[string][]string, opts pagination.Options) (pagination.Options, *errclass.ClassifiedError) {
	ints := []struct {
		param string
		field string
		dst   *int
	}{
		{"max", "maxResults", &opts.MaxResults},
		{"pages", "maxPages", &opts.MaxPages},
		{"page_size", "pageSize", &opts.PageSize},
	}

	for _, p := range ints {
		values := query[p.param]
		if len(values) == 0 || values[0] == "" {
			continue
		}
		n, err := strconv.Atoi(values[0])
		if err != nil {
			return opts, errclass.NewInputError(p.field, "must be an integer")
		}
		*p.dst = n
	}

	if values := query["debug"]; len(values) > 0 && values[0] != "" {
		debug, err := strconv.ParseBool(values[0])
		if err != nil {
			return opts, errclass.NewInputError("debugMode", "must be a boolean")
		}
		opts.DebugMode = debug
	}

	return opts, nil
}

// statusFor maps a classified error to the proxy's HTTP status.
func statusFor(ce *errclass.ClassifiedError) int {
	switch ce.Kind {
	case errclass.KindInvalidInput:
		return http.StatusBadRequest
	case errclass.KindCircuitOpen:
		return http.StatusServiceUnavailable
	case errclass.KindTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusBadGateway
	}
}

func writeError(w http.ResponseWriter, ce *errclass.ClassifiedError) {
	if secs := ce.RetryAfterSeconds(); secs > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}
	writeJSON(w, statusFor(ce), ce)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
