package fts

import (
	"context"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/qsearch/internal/observability"
	"github.com/roach88/qsearch/internal/qerr"
	"github.com/roach88/qsearch/internal/queryir"
	"github.com/roach88/qsearch/internal/querysql"
	"github.com/roach88/qsearch/internal/search"
)

const (
	stageWhere      = "where"
	stagePagination = "pagination"

	defaultCacheSize = 256
)

// Option configures a Provider.
type Option func(*config)

type config struct {
	mode      Mode
	cacheSize int
	metrics   *observability.Metrics
}

// WithMode sets how the term is turned into an index query. The default
// is FreeText.
func WithMode(m Mode) Option {
	return func(c *config) { c.mode = m }
}

// WithCacheSize sets how many splices are cached. Zero disables the cache.
func WithCacheSize(n int) Option {
	return func(c *config) { c.cacheSize = n }
}

// WithMetrics records rewrites and cache lookups.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *config) { c.metrics = m }
}

// Provider is a search.Provider that matches the term through a full-text
// index. Everything but the term is compiled by the embedded engine.
type Provider[T any] struct {
	*search.Engine[T]

	dialect querysql.Dialect
	table   Table
	mode    Mode
	backend backend
	splicer splicer
	cache   *lru.Cache[string, string]
	metrics *observability.Metrics
}

var _ search.Provider[struct{}] = (*Provider[struct{}])(nil)

// New returns a full-text provider for table over engine.
func New[T any](engine *search.Engine[T], d querysql.Dialect, table Table, opts ...Option) (*Provider[T], error) {
	if engine == nil {
		return nil, qerr.New(qerr.CodeConfiguration, "engine is required")
	}
	if d == nil {
		return nil, qerr.New(qerr.CodeConfiguration, "dialect is required")
	}
	table = table.WithDefaults()
	if err := table.Validate(d); err != nil {
		return nil, err
	}

	cfg := config{mode: FreeText, cacheSize: defaultCacheSize}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.mode < FreeText || cfg.mode > WeightedPrefixesPlusReverse {
		return nil, qerr.New(qerr.CodeConfiguration, "invalid full-text mode %s", cfg.mode)
	}

	p := &Provider[T]{
		Engine:  engine,
		dialect: d,
		table:   table,
		mode:    cfg.mode,
		metrics: cfg.metrics,
	}
	p.backend = newBackend(d, table, cfg.mode)
	p.splicer = newSplicer(p.backend.template, d.QuoteIdent(BaseAlias))
	if cfg.cacheSize > 0 {
		cache, err := lru.New[string, string](cfg.cacheSize)
		if err != nil {
			return nil, qerr.Wrap(qerr.CodeConfiguration, err, "splice cache")
		}
		p.cache = cache
	}
	return p, nil
}

// Table returns the indexed table description.
func (p *Provider[T]) Table() Table { return p.table }

// Mode returns the term mode.
func (p *Provider[T]) Mode() Mode { return p.mode }

// BaseStatement returns the base statement with its term placeholder.
func (p *Provider[T]) BaseStatement() string { return p.backend.template }

// ApplyWhere filters q through the full-text index when the form has a
// term, and falls back to the engine otherwise. form must also be a
// search.PageForm and a search.RankForm.
func (p *Provider[T]) ApplyWhere(ctx context.Context, q queryir.Queryable[T], form search.FilterForm) (queryir.Queryable[T], error) {
	if _, ok := form.(search.PageForm); !ok {
		return nil, qerr.New(qerr.CodeConfiguration, "full-text search needs a filter form that is also a page form, got %T", form)
	}
	if _, ok := form.(search.RankForm); !ok {
		return nil, qerr.New(qerr.CodeConfiguration, "full-text search needs a form that reports rank ordering, got %T", form)
	}

	term := normalize(form.SearchTerm())
	if term == "" {
		return p.Engine.ApplyWhere(ctx, q, form)
	}
	tq, err := p.textQuery(q)
	if err != nil {
		return nil, err
	}

	arg := p.termArg(term)
	filtered, err := p.Engine.ApplyWhere(ctx, tq.FromText(p.backend.template, arg), form)
	if err != nil {
		return nil, err
	}
	stmt, err := render(filtered)
	if err != nil {
		return nil, err
	}
	text, err := p.splice(stageWhere, stmt.Text, arg, nil)
	if err != nil {
		return nil, err
	}
	return tq.FromText(text, append([]any{arg}, stmt.Args...)...), nil
}

// ApplyPagination orders and slices q, which ApplyWhere produced. With
// rank ordering requested the order is the index rank followed by the
// engine's tie-breaker chain; otherwise the engine's order is kept. form
// must also be a search.FilterForm and a search.RankForm.
func (p *Provider[T]) ApplyPagination(ctx context.Context, q queryir.Queryable[T], form search.PageForm) (search.PaginationResult[T], error) {
	ff, ok := form.(search.FilterForm)
	if !ok {
		return search.PaginationResult[T]{}, qerr.New(qerr.CodeConfiguration, "full-text search needs a page form that is also a filter form, got %T", form)
	}
	rf, ok := form.(search.RankForm)
	if !ok {
		return search.PaginationResult[T]{}, qerr.New(qerr.CodeConfiguration, "full-text search needs a form that reports rank ordering, got %T", form)
	}

	term := normalize(ff.SearchTerm())
	if term == "" {
		return p.Engine.ApplyPagination(ctx, q, form)
	}
	tq, err := p.textQuery(q)
	if err != nil {
		return search.PaginationResult[T]{}, err
	}

	// The filter is compiled again so the outer query carries it.
	filtered, err := p.Engine.ApplyWhere(ctx, q, ff)
	if err != nil {
		return search.PaginationResult[T]{}, err
	}

	byRank := rf.SortByTermRank()
	var window search.PaginationResult[T]
	if byRank {
		window, err = p.Engine.ComputeWindow(filtered, form, false)
	} else {
		window, err = p.Engine.ApplyPagination(ctx, filtered, form)
	}
	if err != nil {
		return search.PaginationResult[T]{}, err
	}

	stmt, err := render(window.Query)
	if err != nil {
		return search.PaginationResult[T]{}, err
	}
	arg := p.termArg(term)

	var keep func(string) bool
	if byRank {
		keep = isWhere
	}
	text, err := p.splice(stagePagination, stmt.Text, arg, keep)
	if err != nil {
		return search.PaginationResult[T]{}, err
	}
	if byRank {
		clause, err := p.rankClause(window.Skip, window.Take)
		if err != nil {
			return search.PaginationResult[T]{}, err
		}
		text += "\n" + clause
	}

	window.Query = tq.FromText(text, append([]any{arg}, stmt.Args...)...)
	return window, nil
}

// rankClause orders by rank, then by the tie-breaker chain, and bounds
// the window.
func (p *Provider[T]) rankClause(skip, take int) (string, error) {
	q := p.dialect.QuoteIdent
	alias := q(BaseAlias)
	keys := []string{q(KeyTable) + "." + q(RankColumn) + " DESC"}

	chain := p.TieBreaker()
	if len(chain) == 0 {
		keys = append(keys, alias+"."+q(p.table.Key)+" ASC")
	}
	for _, k := range chain {
		if k.Manual() || k.Field.Column == "" {
			return "", qerr.New(qerr.CodeConfiguration, "tie-breaker %q has no column", k.Path).WithPath(k.Path)
		}
		keys = append(keys, alias+"."+q(k.Field.Column)+" "+k.Direction.String())
	}

	lines := append([]string{"ORDER BY " + strings.Join(keys, ", ")}, p.dialect.Paging(true, skip, &take)...)
	return strings.Join(lines, "\n"), nil
}

// splice rewrites rendered text, consulting the cache first.
func (p *Provider[T]) splice(stage, text, arg string, keep func(string) bool) (string, error) {
	key := stage + "\x00" + text
	if p.cache != nil {
		if out, ok := p.cache.Get(key); ok {
			p.metrics.ObserveSpliceCache(true)
			return out, nil
		}
		p.metrics.ObserveSpliceCache(false)
	}

	out, err := p.splicer.splice(text, p.dialect.QuoteLiteral(arg), keep)
	p.metrics.ObserveRewrite(stage, err)
	if err != nil {
		return "", err
	}
	if p.cache != nil {
		p.cache.Add(key, out)
	}
	return out, nil
}

func (p *Provider[T]) termArg(term string) string {
	return p.backend.shape(strings.Fields(term), p.mode)
}

// textQuery checks that q can be rendered and rebuilt, in this
// provider's dialect.
func (p *Provider[T]) textQuery(q queryir.Queryable[T]) (queryir.TextQueryable[T], error) {
	tq, ok := q.(queryir.TextQueryable[T])
	if !ok {
		return nil, qerr.New(qerr.CodeConfiguration, "full-text search needs a text query source, got %T", q)
	}
	if dq, ok := q.(interface{ Dialect() querysql.Dialect }); ok && dq.Dialect().Name() != p.dialect.Name() {
		return nil, qerr.New(qerr.CodeConfiguration, "query dialect %s does not match provider dialect %s",
			dq.Dialect().Name(), p.dialect.Name())
	}
	return tq, nil
}

func render[T any](q queryir.Queryable[T]) (queryir.Statement, error) {
	tq, ok := q.(queryir.TextQueryable[T])
	if !ok {
		return queryir.Statement{}, qerr.New(qerr.CodeConfiguration, "composed query %T cannot be rendered", q)
	}
	return tq.RenderText()
}

func normalize(term string) string {
	return strings.TrimSpace(norm.NFC.String(term))
}
