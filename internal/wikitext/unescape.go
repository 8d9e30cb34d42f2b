package wikitext

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// Unescape decodes literal backslash escape sequences (\n, \t, \\, \", \',
// \xNN, \uNNNN, \UNNNNNNNN, octal) that occasionally survive in fetched
// markup. It is a best-effort normalization: unknown or malformed sequences
// are kept verbatim and non-ASCII text passes through untouched.
func Unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		if s[i] != '\\' {
			_, size := utf8.DecodeRuneInString(s[i:])
			b.WriteString(s[i : i+size])
			i += size
			continue
		}
		if i+1 < len(s) && (s[i+1] == '"' || s[i+1] == '\'') {
			b.WriteByte(s[i+1])
			i += 2
			continue
		}
		value, _, tail, err := strconv.UnquoteChar(s[i:], 0)
		if err != nil {
			b.WriteByte('\\')
			i++
			continue
		}
		b.WriteRune(value)
		i = len(s) - len(tail)
	}
	return b.String()
}
