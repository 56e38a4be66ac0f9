package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"github.com/google/uuid"
	"golang.org/x/text/language"
	"golang.org/x/text/message/catalog"

	"github.com/roach88/qsearch/internal/fts"
	"github.com/roach88/qsearch/internal/queryir"
	"github.com/roach88/qsearch/internal/schema"
	"github.com/roach88/qsearch/internal/search"
)

// Entity is the dynamic record type providers defined in CUE search.
type Entity = schema.Record

// Definition is a compiled provider definition.
type Definition struct {
	Name     string
	Table    string
	Schema   *schema.Schema
	Engine   *search.Engine[Entity]
	FullText *FullText
}

// FullText configures the full-text provider of a definition.
type FullText struct {
	Table fts.Table
	Mode  fts.Mode
}

// CompileError is a definition error with its CUE position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var fieldTypes = map[string]reflect.Type{
	"string": reflect.TypeFor[string](),
	"int":    reflect.TypeFor[int64](),
	"float":  reflect.TypeFor[float64](),
	"bool":   reflect.TypeFor[bool](),
	"time":   reflect.TypeFor[time.Time](),
	"uuid":   reflect.TypeFor[uuid.UUID](),
}

// CompileDefinition compiles one provider struct, e.g. the value at
// provider.docs:
//
//	provider: docs: {
//		table: "docs"
//		fields: [{name: "Id", column: "id", type: "int"}, ...]
//		options: {pagination: "PageSize", page_size: 10}
//		word_search: {op: "Contains", fields: ["Title"]}
//		keywords: old: {path: "Year", kind: "LessThan", value: 2000}
//		default_sort: "Title, Id"
//		full_text: {columns: ["title", "body"], mode: "WeightedPrefixes"}
//	}
func CompileDefinition(v cue.Value) (*Definition, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	def := &Definition{}
	if labels := v.Path().Selectors(); len(labels) > 0 {
		def.Name = labels[len(labels)-1].Unquoted()
	}

	table, err := requiredString(v, "table")
	if err != nil {
		return nil, err
	}
	def.Table = table
	if def.Schema, err = parseFields(v, def.Name); err != nil {
		return nil, err
	}

	opts, err := parseOptions(v)
	if err != nil {
		return nil, err
	}
	if def.Engine, err = search.New[Entity](def.Schema, opts); err != nil {
		return nil, &CompileError{Field: "options", Message: err.Error(), Pos: v.LookupPath(cue.ParsePath("options")).Pos()}
	}

	for _, step := range []func(cue.Value, *search.Engine[Entity]) error{
		parseTextSearch,
		parseKeywords,
		parseSorts,
	} {
		if err := step(v, def.Engine); err != nil {
			return nil, err
		}
	}

	if def.FullText, err = parseFullText(v, table); err != nil {
		return nil, err
	}
	return def, nil
}

func parseFields(v cue.Value, name string) (*schema.Schema, error) {
	list := v.LookupPath(cue.ParsePath("fields"))
	if !list.Exists() {
		return nil, &CompileError{Field: "fields", Message: "fields are required", Pos: v.Pos()}
	}
	iter, err := list.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var fields []schema.Field
	for iter.Next() {
		fv := iter.Value()
		fname, err := requiredString(fv, "name")
		if err != nil {
			return nil, err
		}
		column, err := optionalString(fv, "column")
		if err != nil {
			return nil, err
		}
		typeName, err := requiredString(fv, "type")
		if err != nil {
			return nil, err
		}
		typ, ok := fieldTypes[strings.TrimSuffix(typeName, "?")]
		if !ok {
			return nil, &CompileError{Field: "type", Message: fmt.Sprintf("unknown field type %q", typeName), Pos: fv.LookupPath(cue.ParsePath("type")).Pos()}
		}
		if strings.HasSuffix(typeName, "?") {
			typ = reflect.PointerTo(typ)
		}
		fields = append(fields, schema.Field{Name: fname, Column: column, Type: typ})
	}
	if len(fields) == 0 {
		return nil, &CompileError{Field: "fields", Message: "at least one field is required", Pos: list.Pos()}
	}

	s, err := schema.NewRecord(name, fields...)
	if err != nil {
		return nil, &CompileError{Field: "fields", Message: err.Error(), Pos: list.Pos()}
	}
	return s, nil
}

func parseOptions(v cue.Value) (search.Options, error) {
	opts := search.DefaultOptions()
	ov := v.LookupPath(cue.ParsePath("options"))
	if !ov.Exists() {
		return opts, nil
	}

	texts := []struct {
		field string
		parse func(string) error
	}{
		{"pagination", func(s string) (err error) { opts.Mode, err = search.ParsePaginationMode(s); return }},
		{"word_combiner", func(s string) (err error) { opts.WordCombiner, err = search.ParseCombiner(s); return }},
		{"text_keyword_combiner", func(s string) (err error) { opts.TextKeywordCombiner, err = search.ParseCombiner(s); return }},
		{"culture", func(s string) (err error) { opts.Culture, err = language.Parse(s); return }},
	}
	for _, t := range texts {
		s, err := optionalString(ov, t.field)
		if err != nil {
			return opts, err
		}
		if s == "" {
			continue
		}
		if err := t.parse(s); err != nil {
			return opts, &CompileError{Field: t.field, Message: err.Error(), Pos: ov.LookupPath(cue.ParsePath(t.field)).Pos()}
		}
	}

	ints := []struct {
		field string
		dst   *int
	}{
		{"page_size", &opts.PageSize},
		{"max_take", &opts.MaxTake},
		{"min_page_size", &opts.MinPageSize},
		{"max_page_size", &opts.MaxPageSize},
	}
	for _, i := range ints {
		if err := optionalInt(ov, i.field, i.dst); err != nil {
			return opts, err
		}
	}

	if sizes := ov.LookupPath(cue.ParsePath("page_sizes")); sizes.Exists() {
		if err := sizes.Decode(&opts.PredefinedPageSizes); err != nil {
			return opts, formatCUEError(err)
		}
	}

	if tv := v.LookupPath(cue.ParsePath("translations")); tv.Exists() {
		loc, err := parseTranslations(tv)
		if err != nil {
			return opts, err
		}
		opts.Localizer = loc
	}
	return opts, nil
}

// parseTranslations reads culture -> key -> word into a message catalog.
func parseTranslations(v cue.Value) (search.Localizer, error) {
	b := catalog.NewBuilder()
	cultures, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for cultures.Next() {
		tag, err := language.Parse(cultures.Selector().Unquoted())
		if err != nil {
			return nil, &CompileError{Field: "translations", Message: err.Error(), Pos: cultures.Value().Pos()}
		}
		words, err := cultures.Value().Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for words.Next() {
			word, err := words.Value().String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			if err := b.SetString(tag, words.Selector().Unquoted(), word); err != nil {
				return nil, &CompileError{Field: "translations", Message: err.Error(), Pos: words.Value().Pos()}
			}
		}
	}
	return search.CatalogLocalizer{Catalog: b}, nil
}

func parseTextSearch(v cue.Value, e *search.Engine[Entity]) error {
	for _, name := range []string{"word_search", "sentence_search"} {
		sv := v.LookupPath(cue.ParsePath(name))
		if !sv.Exists() {
			continue
		}
		op, err := optionalString(sv, "op")
		if err != nil {
			return err
		}
		var paths []string
		if err := sv.LookupPath(cue.ParsePath("fields")).Decode(&paths); err != nil {
			return &CompileError{Field: name, Message: "fields must be a list of paths", Pos: sv.Pos()}
		}
		fields := make([]schema.FieldAccess, 0, len(paths))
		for _, p := range paths {
			f, err := e.Field(p)
			if err != nil {
				return &CompileError{Field: name, Message: err.Error(), Pos: sv.Pos()}
			}
			fields = append(fields, f)
		}

		var factory search.TextSearch
		switch strings.ToLower(op) {
		case "", "contains":
			factory = search.ContainsAny(fields...)
		case "startswith":
			factory = search.StartsWithAny(fields...)
		default:
			return &CompileError{Field: name, Message: fmt.Sprintf("unknown text operator %q", op), Pos: sv.LookupPath(cue.ParsePath("op")).Pos()}
		}
		if name == "word_search" {
			e.RegisterWordSearch(factory)
		} else {
			e.RegisterSentenceSearch(factory)
		}
	}
	return nil
}

func parseKeywords(v cue.Value, e *search.Engine[Entity]) error {
	sets := []struct {
		field    string
		register func(string, queryir.Predicate) error
	}{
		{"keywords", e.RegisterKeyword},
		{"localized_keywords", e.RegisterLocalizedKeyword},
	}
	for _, set := range sets {
		kv := v.LookupPath(cue.ParsePath(set.field))
		if !kv.Exists() {
			continue
		}
		iter, err := kv.Fields()
		if err != nil {
			return formatCUEError(err)
		}
		for iter.Next() {
			p, err := parseCondition(iter.Value(), e)
			if err != nil {
				return err
			}
			if err := set.register(iter.Selector().Unquoted(), p); err != nil {
				return &CompileError{Field: set.field, Message: err.Error(), Pos: iter.Value().Pos()}
			}
		}
	}
	return nil
}

// parseCondition compiles {path, kind, value}, {all: [...]}, {any: [...]}
// or {not: ...}.
func parseCondition(v cue.Value, e *search.Engine[Entity]) (queryir.Predicate, error) {
	for _, junction := range []string{"all", "any"} {
		jv := v.LookupPath(cue.ParsePath(junction))
		if !jv.Exists() {
			continue
		}
		iter, err := jv.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		var parts []queryir.Predicate
		for iter.Next() {
			p, err := parseCondition(iter.Value(), e)
			if err != nil {
				return nil, err
			}
			parts = append(parts, p)
		}
		if len(parts) == 0 {
			return nil, &CompileError{Field: junction, Message: "at least one condition is required", Pos: jv.Pos()}
		}
		if junction == "all" {
			return queryir.AndOf(parts...), nil
		}
		return queryir.OrOf(parts...), nil
	}

	if nv := v.LookupPath(cue.ParsePath("not")); nv.Exists() {
		p, err := parseCondition(nv, e)
		if err != nil {
			return nil, err
		}
		return &queryir.Not{Predicate: p}, nil
	}

	path, err := requiredString(v, "path")
	if err != nil {
		return nil, err
	}
	kindName, err := requiredString(v, "kind")
	if err != nil {
		return nil, err
	}
	kind, err := search.ParseComparisonKind(kindName)
	if err != nil {
		return nil, &CompileError{Field: "kind", Message: err.Error(), Pos: v.LookupPath(cue.ParsePath("kind")).Pos()}
	}
	vv := v.LookupPath(cue.ParsePath("value"))
	if !vv.Exists() {
		return nil, &CompileError{Field: "value", Message: "value is required", Pos: v.Pos()}
	}
	value, err := decodeValue(vv)
	if err != nil {
		return nil, err
	}

	p, err := e.Compare(path, kind, value)
	if err != nil {
		return nil, &CompileError{Field: "path", Message: err.Error(), Pos: v.LookupPath(cue.ParsePath("path")).Pos()}
	}
	return p, nil
}

// decodeValue converts a concrete CUE value into a comparison value.
func decodeValue(v cue.Value) (any, error) {
	var (
		out any
		err error
	)
	switch v.IncompleteKind() {
	case cue.NullKind:
		return nil, nil
	case cue.BoolKind:
		out, err = v.Bool()
	case cue.IntKind:
		out, err = v.Int64()
	case cue.FloatKind, cue.NumberKind:
		out, err = v.Float64()
	case cue.StringKind:
		out, err = v.String()
	case cue.ListKind:
		var items []any
		iter, lerr := v.List()
		if lerr != nil {
			return nil, formatCUEError(lerr)
		}
		for iter.Next() {
			item, ierr := decodeValue(iter.Value())
			if ierr != nil {
				return nil, ierr
			}
			items = append(items, item)
		}
		return items, nil
	default:
		return nil, &CompileError{Field: "value", Message: fmt.Sprintf("unsupported value kind %s", v.IncompleteKind()), Pos: v.Pos()}
	}
	if err != nil {
		return nil, formatCUEError(err)
	}
	return out, nil
}

func parseSorts(v cue.Value, e *search.Engine[Entity]) error {
	notUnique := false
	if nv := v.LookupPath(cue.ParsePath("default_sort_unique")); nv.Exists() {
		unique, err := nv.Bool()
		if err != nil {
			return formatCUEError(err)
		}
		notUnique = !unique
	}

	for _, field := range []string{"default_sort", "unique_sort"} {
		expr, err := optionalString(v, field)
		if err != nil {
			return err
		}
		if expr == "" {
			continue
		}
		pos := v.LookupPath(cue.ParsePath(field)).Pos()
		chain, err := e.SortChainOf(expr)
		if err != nil {
			return &CompileError{Field: field, Message: err.Error(), Pos: pos}
		}
		for _, k := range chain {
			if k.Manual() {
				return &CompileError{Field: field, Message: fmt.Sprintf("sort path %q does not resolve", k.Path), Pos: pos}
			}
		}

		if field == "default_sort" {
			var opts []search.SortOption
			if notUnique {
				opts = append(opts, search.NotUnique())
			}
			err = e.RegisterDefaultSort(search.Chain[Entity](chain), opts...)
		} else {
			err = e.RegisterUniqueSort(search.Chain[Entity](chain))
		}
		if err != nil {
			return &CompileError{Field: field, Message: err.Error(), Pos: pos}
		}
	}
	return nil
}

func parseFullText(v cue.Value, table string) (*FullText, error) {
	fv := v.LookupPath(cue.ParsePath("full_text"))
	if !fv.Exists() {
		return nil, nil
	}
	ft := &FullText{Table: fts.Table{Name: table}}

	var err error
	if ft.Table.Index, err = optionalString(fv, "index"); err != nil {
		return nil, err
	}
	if ft.Table.Key, err = optionalString(fv, "key"); err != nil {
		return nil, err
	}
	if err := fv.LookupPath(cue.ParsePath("columns")).Decode(&ft.Table.TermColumns); err != nil || len(ft.Table.TermColumns) == 0 {
		return nil, &CompileError{Field: "full_text.columns", Message: "at least one term column is required", Pos: fv.Pos()}
	}

	mode, err := optionalString(fv, "mode")
	if err != nil {
		return nil, err
	}
	if mode != "" {
		if ft.Mode, err = fts.ParseMode(mode); err != nil {
			return nil, &CompileError{Field: "full_text.mode", Message: err.Error(), Pos: fv.LookupPath(cue.ParsePath("mode")).Pos()}
		}
	}
	ft.Table = ft.Table.WithDefaults()
	return ft, nil
}

func requiredString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &CompileError{Field: field, Message: field + " is required", Pos: v.Pos()}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	if strings.TrimSpace(s) == "" {
		return "", &CompileError{Field: field, Message: field + " must not be empty", Pos: fv.Pos()}
	}
	return s, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalInt(v cue.Value, field string, dst *int) error {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return nil
	}
	n, err := fv.Int64()
	if err != nil {
		return formatCUEError(err)
	}
	*dst = int(n)
	return nil
}

// formatCUEError converts a CUE error to a CompileError with position info.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
