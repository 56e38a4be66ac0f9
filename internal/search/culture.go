package search

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/qsearch/internal/queryir"
)

// Localizer translates a localization key of an entity into the word a
// user types in the given culture.
type Localizer interface {
	Localize(entity, key string, culture language.Tag) string
}

// DefaultLocalizer returns every key unchanged.
type DefaultLocalizer struct{}

func (DefaultLocalizer) Localize(_, key string, _ language.Tag) string { return key }

// CatalogLocalizer resolves keys through an x/text message catalog. Keys
// missing from the catalog resolve to themselves.
type CatalogLocalizer struct {
	Catalog catalog.Catalog
}

func (l CatalogLocalizer) Localize(_, key string, culture language.Tag) string {
	p := message.NewPrinter(culture, message.Catalog(l.Catalog))
	return p.Sprintf(message.Key(key, key))
}

type cultureKey struct{}

// WithCulture returns a context carrying the culture used to match
// localized keywords.
func WithCulture(ctx context.Context, culture language.Tag) context.Context {
	return context.WithValue(ctx, cultureKey{}, culture)
}

// CultureFrom returns the culture carried by ctx.
func CultureFrom(ctx context.Context) (language.Tag, bool) {
	tag, ok := ctx.Value(cultureKey{}).(language.Tag)
	return tag, ok
}

// cultureCache maps a culture to its localized keyword table. Entries are
// built on first use and never removed.
type cultureCache struct {
	mu      sync.RWMutex
	entries map[language.Tag]map[string]queryir.Predicate
}

// get returns the table for culture, building it with build when absent.
// Concurrent first use builds the table exactly once.
func (c *cultureCache) get(culture language.Tag, build func() map[string]queryir.Predicate) map[string]queryir.Predicate {
	c.mu.RLock()
	table, ok := c.entries[culture]
	c.mu.RUnlock()
	if ok {
		return table
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if table, ok := c.entries[culture]; ok {
		return table
	}
	if c.entries == nil {
		c.entries = make(map[language.Tag]map[string]queryir.Predicate)
	}
	table = build()
	c.entries[culture] = table
	return table
}

// normalizeTerm applies NFC and trims surrounding whitespace.
func normalizeTerm(term string) string {
	return strings.TrimSpace(norm.NFC.String(term))
}

// foldKey is the case-insensitive lookup key for keywords. A new Caser is
// created per call because Casers are not safe for concurrent use.
func foldKey(s string) string {
	return cases.Fold().String(normalizeTerm(s))
}
