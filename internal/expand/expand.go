// Package expand substitutes ${env.KEY} and ${env.KEY:-default} expressions
// in configuration text.
package expand

import (
	"os"
	"strings"
	"unicode"
)

const (
	prefix          = "${env."
	defaultOperator = ":-"
)

// Lookup resolves a variable name
type Lookup func(key string) (string, bool)

// Env expands expressions with process environment variables
func Env(value string) string {
	return Expand(value, os.LookupEnv)
}

// Expand replaces every well formed expression with the looked up value, the
// expression default when unset, or "" otherwise.  Malformed expressions are
// kept as literal text.
func Expand(value string, lookup Lookup) string {
	var b strings.Builder
	i := 0
	for {
		idx := strings.Index(value[i:], prefix)
		if idx < 0 {
			b.WriteString(value[i:])
			break
		}
		b.WriteString(value[i : i+idx])
		startKey := i + idx + len(prefix)
		endKey := strings.IndexByte(value[startKey:], '}')
		if endKey < 0 {
			b.WriteString(value[i+idx:])
			break
		}
		expr := value[startKey : startKey+endKey]
		key, fallback, hasDefault := strings.Cut(expr, defaultOperator)
		if !validKey(key) {
			// keep the prefix literal and rescan right after it so nested expressions still expand
			b.WriteString(value[i+idx : startKey])
			i = startKey
			continue
		}
		if resolved, ok := lookup(key); ok && (resolved != "" || !hasDefault) {
			b.WriteString(resolved)
		} else if hasDefault {
			b.WriteString(fallback)
		}
		i = startKey + endKey + 1
	}
	return b.String()
}

func validKey(key string) bool {
	for _, r := range key {
		if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_') {
			return false
		}
	}
	return true
}
