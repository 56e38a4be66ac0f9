package config

import (
	"github.com/roach88/qsearch/internal/fts"
	"github.com/roach88/qsearch/internal/querysql"
	"github.com/roach88/qsearch/internal/search"
)

// Provider kinds reported by ProviderKind.
const (
	KindEngine   = "engine"
	KindFullText = "fts"
)

// ProviderKind names the provider Provider returns.
func (d *Definition) ProviderKind() string {
	if d.FullText != nil {
		return KindFullText
	}
	return KindEngine
}

// Provider returns the full-text provider when the definition has
// full_text settings and the engine otherwise.
func (d *Definition) Provider(dialect querysql.Dialect, opts ...fts.Option) (search.Provider[Entity], error) {
	if d.FullText == nil {
		return d.Engine, nil
	}
	opts = append([]fts.Option{fts.WithMode(d.FullText.Mode)}, opts...)
	return fts.New(d.Engine, dialect, d.FullText.Table, opts...)
}

// Query returns the relational source over the definition's table.
func (d *Definition) Query(exec querysql.Executor, dialect querysql.Dialect) *querysql.Query[Entity] {
	return querysql.NewTable[Entity](exec, dialect, d.Schema, d.Table)
}
