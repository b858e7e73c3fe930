package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Sternrassler/search-pager/pkg/client"
	"github.com/Sternrassler/search-pager/pkg/errclass"
	"github.com/Sternrassler/search-pager/pkg/pagination"
)

// searchOutcome is the result of one query of a search command.
type searchOutcome struct {
	Query  string                    `json:"query"`
	Result *pagination.Result        `json:"result,omitempty"`
	Error  *errclass.ClassifiedError `json:"error,omitempty"`
}

func newSearchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query> [query...]",
		Short: "Run one or more paginated searches",
		Long: `Run paginated searches and print a summary table.

Several queries run in parallel and share one rate limiter, so a backend that
pushes back slows all of them down together.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, a, args)
		},
	}

	cmd.Flags().Int("max", 0, "maximum results per query (default from config)")
	cmd.Flags().Int("pages", 0, "maximum pages per query (default from config)")
	cmd.Flags().Int("page-size", 0, "results per page (default from config)")
	cmd.Flags().String("locale", "", "result locale, e.g. us-en")
	cmd.Flags().String("region", "", "result region")
	cmd.Flags().String("safe", "", "safe search: strict, moderate, off")
	cmd.Flags().String("time", "", "time period: d, w, m, y")
	cmd.Flags().Int("concurrency", 2, "queries run in parallel")
	cmd.Flags().String("output", "table", "output format: table, json")
	cmd.Flags().Bool("results", false, "list the fetched records")

	return cmd
}

func runSearch(cmd *cobra.Command, a *app, queries []string) error {
	flags := cmd.Flags()

	concurrency, err := flags.GetInt("concurrency")
	if err != nil {
		return err
	}
	if concurrency < 1 {
		return errors.New("concurrency must be at least 1")
	}

	format, err := flags.GetString("output")
	if err != nil {
		return err
	}
	if format != "table" && format != "json" {
		return fmt.Errorf("unknown output format %q", format)
	}

	cfg, logger, err := a.load()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	c, cleanup, err := newClient(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	opts := c.DefaultOptions()
	for flag, dst := range map[string]*int{"max": &opts.MaxResults, "pages": &opts.MaxPages, "page-size": &opts.PageSize} {
		if flags.Changed(flag) {
			if *dst, err = flags.GetInt(flag); err != nil {
				return err
			}
		}
	}

	searchOpts := pagination.SearchOptions{}
	searchOpts.Locale, _ = flags.GetString("locale")
	searchOpts.Region, _ = flags.GetString("region")
	searchOpts.SafeSearch, _ = flags.GetString("safe")
	searchOpts.TimePeriod, _ = flags.GetString("time")

	outcomes, err := searchAll(ctx, c, queries, searchOpts, opts, concurrency)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(outcomes)
	}

	fmt.Fprintln(out, renderSummary(outcomes))
	if showResults, _ := flags.GetBool("results"); showResults {
		writeRecords(out, outcomes)
	}
	return nil
}

// searchAll runs every query with at most concurrency in flight. A failing
// query is reported in its outcome; only cancellation aborts the batch.
func searchAll(ctx context.Context, c *client.Client, queries []string, searchOpts pagination.SearchOptions, opts pagination.Options, concurrency int) ([]searchOutcome, error) {
	outcomes := make([]searchOutcome, len(queries))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, query := range queries {
		g.Go(func() error {
			result, err := c.Paginate(ctx, query, searchOpts, &opts)
			outcomes[i] = searchOutcome{Query: query, Result: result}
			if err == nil {
				return nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			outcomes[i].Error = errclass.Classify(err)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return outcomes, err
	}
	return outcomes, nil
}

func renderSummary(outcomes []searchOutcome) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Query", "Results", "Pages", "Strategy", "More", "Status"})

	total := 0
	for _, o := range outcomes {
		if o.Result == nil {
			t.AppendRow(table.Row{o.Query, 0, 0, "-", "-", statusLabel(o.Error)})
			continue
		}

		status := statusLabel(o.Error)
		if o.Result.Interruption != nil {
			status = "partial: " + string(o.Result.Interruption.Kind)
		}
		t.AppendRow(table.Row{
			o.Query,
			o.Result.TotalFetched,
			o.Result.PagesProcessed,
			string(o.Result.Strategy),
			o.Result.HasMore,
			status,
		})
		total += o.Result.TotalFetched
	}

	t.AppendFooter(table.Row{"", total, "", "", "", fmt.Sprintf("%d queries", len(outcomes))})
	return t.Render()
}

func statusLabel(ce *errclass.ClassifiedError) string {
	if ce == nil {
		return "ok"
	}
	return string(ce.Kind)
}

func writeRecords(w io.Writer, outcomes []searchOutcome) {
	for _, o := range outcomes {
		if o.Result == nil || len(o.Result.Results) == 0 {
			continue
		}

		t := table.NewWriter()
		t.SetStyle(table.StyleRounded)
		t.SetTitle(o.Query)
		t.AppendHeader(table.Row{"#", "Title", "URL"})
		for i, r := range o.Result.Results {
			t.AppendRow(table.Row{i + 1, field(r, "title"), field(r, "url")})
		}
		fmt.Fprintln(w, t.Render())
	}
}

func field(r pagination.Record, key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}
