package cli

import (
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/qsearch/internal/config"
	"github.com/roach88/qsearch/internal/fts"
	"github.com/roach88/qsearch/internal/observability"
	"github.com/roach88/qsearch/internal/search"
	"github.com/roach88/qsearch/internal/store"
)

// NewSearchCommand creates the search command.
func NewSearchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FormOptions{}

	cmd := &cobra.Command{
		Use:   "search --provider <definition> [form flags]",
		Short: "Run a search against the database",
		Long: `Run a search form against the configured database and print the result:
total and filtered counts, page counts in page-based modes, and the items.

Providers with full_text settings search through the full-text index;
create it first with "qsearch index".`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, rootOpts, opts)
		},
	}
	opts.register(cmd)
	return cmd
}

func runSearch(cmd *cobra.Command, rootOpts *RootOptions, opts *FormOptions) error {
	formatter := &OutputFormatter{
		Format:    rootOpts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   rootOpts.Verbose,
	}
	logger := rootOpts.logger()

	def, err := loadDefinition(opts)
	if err != nil {
		return formatter.Fail(err)
	}
	form, err := opts.Form(cmd)
	if err != nil {
		return formatter.Fail(err)
	}

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	ctx := cmd.Context()
	st, err := openStore(ctx, rootOpts, store.WithMetrics(metrics))
	if err != nil {
		return formatter.FailDatabase("open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	provider, err := def.Provider(st.Dialect(), fts.WithMetrics(metrics))
	if err != nil {
		return formatter.Fail(err)
	}

	logger.Debug("searching", "provider", def.Name, "kind", def.ProviderKind(), "term", form.Term, "filters", len(form.Comparisons))
	start := time.Now()
	res, err := search.Search[config.Entity](searchContext(ctx, rootOpts), provider, def.Query(st, st.Dialect()), form)
	metrics.ObserveSearch(def.ProviderKind(), time.Since(start), err)
	logMetrics(logger, registry)
	if err != nil {
		return formatter.Fail(err)
	}

	if formatter.Format == "json" {
		return formatter.Success(res)
	}
	writeResult(formatter.Writer, def, res)
	return nil
}

// writeResult prints a search result as text, one item per line with the
// fields in declaration order.
func writeResult(w io.Writer, def *config.Definition, res *search.SearchResult[config.Entity]) {
	fmt.Fprintf(w, "%d of %d match", res.FilteredCount, res.FullCount)
	if res.Page != nil && res.FilteredPageCount != nil {
		fmt.Fprintf(w, ", page %d of %d", *res.Page+1, *res.FilteredPageCount)
	}
	fmt.Fprintf(w, " (skip %d, take %d)\n", res.Skip, res.Take)

	fields := def.Schema.Fields()
	for _, item := range res.Items {
		parts := make([]string, 0, len(fields))
		for _, f := range fields {
			parts = append(parts, fmt.Sprintf("%s=%v", f.Name, display(item[f.Name])))
		}
		fmt.Fprintln(w, "  "+strings.Join(parts, " "))
	}
}

func display(v any) any {
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return "null"
		}
		v = rv.Elem().Interface()
	}
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("%q", x)
	case time.Time:
		return x.Format(time.RFC3339)
	}
	return v
}

// logMetrics logs the gathered counters at debug level.
func logMetrics(logger *slog.Logger, g prometheus.Gatherer) {
	families, err := g.Gather()
	if err != nil {
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if c := m.GetCounter(); c != nil {
				labels := make([]any, 0, 2*len(m.GetLabel())+2)
				for _, l := range m.GetLabel() {
					labels = append(labels, l.GetName(), l.GetValue())
				}
				labels = append(labels, "value", c.GetValue())
				logger.Debug("metric "+mf.GetName(), labels...)
			}
		}
	}
}
