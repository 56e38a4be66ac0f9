package fts

import (
	"fmt"
	"slices"
	"strings"
	"unicode"

	"github.com/roach88/qsearch/internal/qerr"
)

// Mode selects how the term is turned into an index query.
type Mode int

const (
	// FreeText passes the words as they are; any word matches.
	FreeText Mode = iota
	// WeightedPrefixes matches every word as a prefix.
	WeightedPrefixes
	// WeightedPrefixesPlusReverse adds the words in reverse order as a
	// phrase to WeightedPrefixes.
	WeightedPrefixesPlusReverse
)

var modeNames = []string{"FreeText", "WeightedPrefixes", "WeightedPrefixesPlusReverse"}

func (m Mode) String() string {
	if int(m) >= 0 && int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode parses a mode name, ignoring case.
func ParseMode(s string) (Mode, error) {
	for i, name := range modeNames {
		if strings.EqualFold(name, strings.TrimSpace(s)) {
			return Mode(i), nil
		}
	}
	return 0, qerr.New(qerr.CodeConfiguration, "unknown full-text mode %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// shapeSQLite builds an FTS5 query. Words are quoted so operators and
// column filters typed by users stay plain text.
func shapeSQLite(words []string, mode Mode) string {
	quote := func(w string) string { return `"` + strings.ReplaceAll(w, `"`, `""`) + `"` }
	parts := make([]string, 0, len(words)+1)
	for _, w := range words {
		if mode == FreeText {
			parts = append(parts, quote(w))
		} else {
			parts = append(parts, quote(w)+"*")
		}
	}
	if mode == WeightedPrefixesPlusReverse && len(words) > 1 {
		parts = append(parts, quote(strings.Join(reversed(words), " ")))
	}
	return strings.Join(parts, " OR ")
}

// shapePostgres builds a to_tsquery expression for the prefix modes.
// FreeText terms go to plainto_tsquery unchanged.
func shapePostgres(words []string, mode Mode) string {
	if mode == FreeText {
		return strings.Join(words, " ")
	}
	lexemes := make([]string, 0, len(words))
	for _, w := range words {
		if l := lexeme(w); l != "" {
			lexemes = append(lexemes, l)
		}
	}
	parts := make([]string, 0, len(lexemes)+1)
	for _, l := range lexemes {
		parts = append(parts, l+":*")
	}
	if mode == WeightedPrefixesPlusReverse && len(lexemes) > 1 {
		parts = append(parts, "("+strings.Join(reversed(lexemes), " <-> ")+")")
	}
	return strings.Join(parts, " | ")
}

// shapeSQLServer builds a CONTAINSTABLE condition for the prefix modes.
// FreeText terms go to FREETEXTTABLE unchanged.
func shapeSQLServer(words []string, mode Mode) string {
	if mode == FreeText {
		return strings.Join(words, " ")
	}
	clean := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.ReplaceAll(w, `"`, ""); w != "" {
			clean = append(clean, w)
		}
	}
	parts := make([]string, 0, len(clean)+1)
	for _, w := range clean {
		parts = append(parts, `"`+w+`*"`)
	}
	if mode == WeightedPrefixesPlusReverse && len(clean) > 1 {
		parts = append(parts, `"`+strings.Join(reversed(clean), " ")+`"`)
	}
	return strings.Join(parts, " OR ")
}

// lexeme keeps the letters and digits of w, lowercased.
func lexeme(w string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, w)
}

func reversed(words []string) []string {
	out := slices.Clone(words)
	slices.Reverse(out)
	return out
}
