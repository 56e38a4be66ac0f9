package querysql

import (
	"database/sql"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/qsearch/internal/queryir"
	"github.com/roach88/qsearch/internal/schema"
)

var positionalPattern = regexp.MustCompile(`\{(\d+)\}`)

// renderer renders one statement. Parameter names are allocated once per
// statement so nested sources never reuse a name.
type renderer struct {
	d      Dialect
	inline bool
	args   []sql.NamedArg
	used   map[string]bool
	next   int
}

func renderState(st *state, d Dialect, inline bool) ([]string, []sql.NamedArg, error) {
	r := &renderer{d: d, inline: inline, used: make(map[string]bool)}
	r.reserve(st)
	lines, err := r.state(st)
	if err != nil {
		return nil, nil, err
	}
	return lines, r.args, nil
}

// renderRaw renders a raw statement on its own, binding its positional
// arguments.
func renderRaw(src textSource, d Dialect) ([]string, []sql.NamedArg, error) {
	r := &renderer{d: d, used: make(map[string]bool)}
	r.reserve(&state{from: src})
	text, err := r.text(src)
	if err != nil {
		return nil, nil, err
	}
	return splitLines(text), r.args, nil
}

func (r *renderer) reserve(st *state) {
	switch src := st.from.(type) {
	case textSource:
		for _, na := range src.named {
			r.used[na.Name] = true
		}
		for i := range src.positional {
			r.used[positionalName(i)] = true
		}
	case querySource:
		r.reserve(src.inner)
	}
}

func (r *renderer) state(st *state) ([]string, error) {
	alias := r.d.QuoteIdent(defaultAlias)
	lines := []string{"SELECT " + alias + ".*"}

	switch src := st.from.(type) {
	case tableSource:
		lines = append(lines, "FROM "+r.d.QuoteIdent(src.name)+" AS "+alias)
	case textSource:
		text, err := r.text(src)
		if err != nil {
			return nil, err
		}
		lines = append(lines, SubqueryOpen)
		lines = append(lines, splitLines(text)...)
		lines = append(lines, SubqueryClosePrefix+alias)
	case querySource:
		inner, err := r.state(src.inner)
		if err != nil {
			return nil, err
		}
		lines = append(lines, SubqueryOpen)
		lines = append(lines, inner...)
		lines = append(lines, SubqueryClosePrefix+alias)
	default:
		return nil, fmt.Errorf("unsupported source type: %T", st.from)
	}

	if len(st.where) > 0 {
		parts := make([]string, 0, len(st.where))
		for _, p := range st.where {
			frag, err := r.predicate(p, alias)
			if err != nil {
				return nil, fmt.Errorf("compile filter: %w", err)
			}
			parts = append(parts, frag)
		}
		lines = append(lines, "WHERE "+strings.Join(parts, " AND "))
	}

	if len(st.order) > 0 {
		keys := make([]string, 0, len(st.order))
		for _, k := range st.order {
			if k.Manual() {
				return nil, fmt.Errorf("compile order: %q has no column", k.Path)
			}
			col, err := r.column(k.Field, alias)
			if err != nil {
				return nil, fmt.Errorf("compile order: %w", err)
			}
			keys = append(keys, col+" "+k.Direction.String())
		}
		lines = append(lines, "ORDER BY "+strings.Join(keys, ", "))
	}

	lines = append(lines, r.d.Paging(len(st.order) > 0, st.skip, st.take)...)
	return lines, nil
}

// text substitutes positional placeholders of a raw source.
func (r *renderer) text(src textSource) (string, error) {
	var bad error
	out := positionalPattern.ReplaceAllStringFunc(src.text, func(m string) string {
		i, _ := strconv.Atoi(m[1 : len(m)-1])
		if i >= len(src.positional) {
			if bad == nil {
				bad = fmt.Errorf("placeholder %s has no argument (got %d)", m, len(src.positional))
			}
			return m
		}
		if r.inline {
			return r.literal(src.positional[i])
		}
		name := positionalName(i)
		r.args = append(r.args, sql.Named(name, src.positional[i]))
		return "@" + name
	})
	if bad != nil {
		return "", bad
	}
	r.args = append(r.args, src.named...)
	return out, nil
}

// predicate compiles a predicate into a WHERE fragment.
// CRITICAL: Values are NEVER interpolated - always bound as parameters.
func (r *renderer) predicate(p queryir.Predicate, alias string) (string, error) {
	switch pred := p.(type) {
	case *queryir.Compare:
		return r.compare(pred, alias)
	case *queryir.And:
		return r.junction(pred.Predicates, " AND ", "1 = 1", alias)
	case *queryir.Or:
		return r.junction(pred.Predicates, " OR ", "1 = 0", alias)
	case *queryir.Not:
		inner, err := r.predicate(pred.Predicate, alias)
		if err != nil {
			return "", err
		}
		return "NOT (" + inner + ")", nil
	default:
		return "", fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func (r *renderer) junction(ps []queryir.Predicate, sep, empty, alias string) (string, error) {
	if len(ps) == 0 {
		return empty, nil
	}
	parts := make([]string, 0, len(ps))
	for _, p := range ps {
		frag, err := r.predicate(p, alias)
		if err != nil {
			return "", err
		}
		parts = append(parts, frag)
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return "(" + strings.Join(parts, sep) + ")", nil
}

func (r *renderer) compare(c *queryir.Compare, alias string) (string, error) {
	col, err := r.column(c.Field, alias)
	if err != nil {
		return "", err
	}
	if c.Param == nil {
		return "", fmt.Errorf("compare %s: missing parameter", c.Field.Path)
	}
	value := paramValue(c.Param.Value)
	if value == nil && c.Op == queryir.OpEqual {
		return col + " IS NULL", nil
	}

	ph := r.bind(value)
	switch c.Op {
	case queryir.OpEqual, queryir.OpGreaterThan, queryir.OpGreaterThanOrEqual,
		queryir.OpLessThan, queryir.OpLessThanOrEqual:
		return col + " " + c.Op.String() + " " + ph, nil
	case queryir.OpStartsWith:
		return r.d.StartsWith(col, ph), nil
	case queryir.OpContains:
		return r.d.Contains(col, ph), nil
	default:
		return "", fmt.Errorf("compare %s: unsupported operator %d", c.Field.Path, c.Op)
	}
}

func (r *renderer) column(f schema.FieldAccess, alias string) (string, error) {
	if !f.Valid() || f.Column == "" {
		return "", fmt.Errorf("field %q has no column", f.Path)
	}
	return alias + "." + r.d.QuoteIdent(f.Column), nil
}

func (r *renderer) bind(v any) string {
	var name string
	for {
		name = "p" + strconv.Itoa(r.next)
		r.next++
		if !r.used[name] {
			break
		}
	}
	r.used[name] = true
	r.args = append(r.args, sql.Named(name, v))
	return "@" + name
}

func (r *renderer) literal(v any) string {
	switch x := paramValue(v).(type) {
	case nil:
		return "NULL"
	case string:
		return r.d.QuoteLiteral(x)
	case []byte:
		return r.d.QuoteLiteral(string(x))
	case bool:
		if x {
			return "1"
		}
		return "0"
	case time.Time:
		return r.d.QuoteLiteral(x.Format(time.RFC3339Nano))
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return fmt.Sprint(x)
	case fmt.Stringer:
		return r.d.QuoteLiteral(x.String())
	default:
		return r.d.QuoteLiteral(fmt.Sprint(x))
	}
}

func positionalName(i int) string { return "arg" + strconv.Itoa(i) }

// paramValue strips pointers so drivers see plain values.
func paramValue(v any) any {
	rv := reflect.ValueOf(v)
	for rv.IsValid() && rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return nil
	}
	return rv.Interface()
}

// pruneArgs drops named arguments whose placeholder is absent from text and
// returns the rest as driver arguments.
func pruneArgs(text string, args []sql.NamedArg) []any {
	out := make([]any, 0, len(args))
	seen := make(map[string]bool, len(args))
	for _, a := range args {
		if seen[a.Name] || !hasPlaceholder(text, a.Name) {
			continue
		}
		seen[a.Name] = true
		out = append(out, a)
	}
	return out
}

func hasPlaceholder(text, name string) bool {
	needle := "@" + name
	for i := 0; ; {
		j := strings.Index(text[i:], needle)
		if j < 0 {
			return false
		}
		end := i + j + len(needle)
		if end == len(text) || !isIdentByte(text[end]) {
			return true
		}
		i = end
	}
}

func joinLines(lines []string) string { return strings.Join(lines, "\n") }

func splitLines(text string) []string {
	text = strings.TrimRight(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	return strings.Split(text, "\n")
}
