package symptom

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Normalize converts a raw symptom string into its canonical token form:
// NFKC folded, trimmed, lowercased, spaces replaced by underscores and every
// character outside [a-z0-9_] removed. The empty string is a valid result.
func Normalize(raw string) string {
	folded := norm.NFKC.String(raw)
	folded = strings.ToLower(strings.TrimSpace(folded))
	folded = strings.ReplaceAll(folded, " ", "_")

	var b strings.Builder
	b.Grow(len(folded))
	for i := 0; i < len(folded); i++ {
		ch := folded[i]
		if (ch >= 'a' && ch <= 'z') || (ch >= '0' && ch <= '9') || ch == '_' {
			b.WriteByte(ch)
		}
	}
	return b.String()
}

// NormalizeAll normalizes every raw string and returns the resulting set,
// leaving out empty tokens.
func NormalizeAll(raw []string) Set {
	out := make(Set, len(raw))
	for _, r := range raw {
		if n := Normalize(r); n != "" {
			out.Add(n)
		}
	}
	return out
}
