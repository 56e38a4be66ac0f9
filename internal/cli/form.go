package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/qsearch/internal/config"
	"github.com/roach88/qsearch/internal/search"
	"github.com/roach88/qsearch/internal/store"
)

// FormOptions holds the search form flags shared by sql and search.
type FormOptions struct {
	Provider    string
	Name        string
	Term        string
	Filters     []string
	Composition string
	Skip        int
	Take        int
	Page        int
	PageSize    int
	OrderBy     string
	Rank        bool
}

func (o *FormOptions) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&o.Provider, "provider", "", "provider definition (.cue file or directory)")
	f.StringVar(&o.Name, "name", "", "provider name, required when the definition holds several")
	f.StringVar(&o.Term, "term", "", "search term")
	f.StringArrayVar(&o.Filters, "filter", nil, "comparison path:kind:value, repeatable (value is YAML, e.g. 2000 or [1, 2])")
	f.StringVar(&o.Composition, "composition", "And", "how filters combine with each other and the term (And|Or)")
	f.IntVar(&o.Skip, "skip", 0, "rows to skip")
	f.IntVar(&o.Take, "take", 0, "rows to take")
	f.IntVar(&o.Page, "page", 0, "zero-based page")
	f.IntVar(&o.PageSize, "page-size", 0, "requested page size")
	f.StringVar(&o.OrderBy, "order-by", "", `sort string, e.g. "Year desc, Id"`)
	f.BoolVar(&o.Rank, "rank", false, "order by full-text rank")
	_ = cmd.MarkFlagRequired("provider")
}

// Form builds the search form. Paging flags the user did not set stay
// nil so the pagination mode picks its defaults.
func (o *FormOptions) Form(cmd *cobra.Command) (*search.SearchForm, error) {
	composition, err := search.ParseCombiner(o.Composition)
	if err != nil {
		return nil, err
	}
	form := &search.SearchForm{
		Term:              o.Term,
		FilterComposition: composition,
		OrderBy:           o.OrderBy,
		ByTermRank:        o.Rank,
	}
	for _, raw := range o.Filters {
		c, err := parseFilter(raw)
		if err != nil {
			return nil, err
		}
		form.Comparisons = append(form.Comparisons, c)
	}

	flags := cmd.Flags()
	optional := []struct {
		name string
		val  int
		dst  **int
	}{
		{"skip", o.Skip, &form.Skip},
		{"take", o.Take, &form.Take},
		{"page", o.Page, &form.Page},
		{"page-size", o.PageSize, &form.PageSize},
	}
	for _, opt := range optional {
		if flags.Changed(opt.name) {
			*opt.dst = search.Int(opt.val)
		}
	}
	return form, nil
}

// parseFilter parses "path:kind:value". The value may itself contain
// colons.
func parseFilter(raw string) (search.Comparison, error) {
	parts := strings.SplitN(raw, ":", 3)
	if len(parts) != 3 {
		return search.Comparison{}, NewExitError(ExitCommandError, fmt.Sprintf("filter %q: want path:kind:value", raw))
	}
	kind, err := search.ParseComparisonKind(parts[1])
	if err != nil {
		return search.Comparison{}, err
	}
	var value any
	if err := yaml.Unmarshal([]byte(parts[2]), &value); err != nil {
		return search.Comparison{}, NewExitError(ExitCommandError, fmt.Sprintf("filter %q: value: %v", raw, err))
	}
	return search.Comparison{Path: strings.TrimSpace(parts[0]), Kind: kind, Value: value}, nil
}

// loadDefinition loads the provider definition the form flags name.
func loadDefinition(o *FormOptions) (*config.Definition, error) {
	return loadNamedDefinition(o.Provider, o.Name)
}

func loadNamedDefinition(path, name string) (*config.Definition, error) {
	res, errs := config.Load(path, config.LoadModeFailFast)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	return res.Definition(name)
}

// openStore opens the database the settings select.
func openStore(ctx context.Context, opts *RootOptions, storeOpts ...store.Option) (*store.Store, error) {
	storeOpts = append([]store.Option{store.WithLogger(opts.logger())}, storeOpts...)
	switch opts.Settings.SQLDialect().Name() {
	case "sqlite":
		return store.Open(opts.Settings.DB, storeOpts...)
	case "postgres":
		if opts.Settings.PostgresDSN == "" {
			return nil, NewExitError(ExitCommandError, "--postgres-dsn is required with --dialect postgres")
		}
		return store.OpenPostgres(ctx, opts.Settings.PostgresDSN, storeOpts...)
	}
	return nil, NewExitError(ExitCommandError, fmt.Sprintf("dialect %s can render statements but cannot run them", opts.Settings.Dialect))
}

// searchContext carries the configured culture, if any.
func searchContext(ctx context.Context, opts *RootOptions) context.Context {
	tag, err := opts.Settings.CultureTag()
	if err != nil || opts.Settings.Culture == "" {
		return ctx
	}
	return search.WithCulture(ctx, tag)
}
