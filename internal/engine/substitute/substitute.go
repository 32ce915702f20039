// Package substitute replaces whole identifiers inside the code spans of a
// source unit. String literals, triple-quoted blocks and comments are never
// touched.
package substitute

import (
	"strings"

	"scriptlib/internal/engine/scan"
)

// Substitute replaces every plain-code occurrence of a mapped local name
// with its qualified path. A name preceded by '.' is an attribute access and
// is left alone, as is any name embedded in a longer identifier. Each token
// is looked up once, so substituted output is never matched again.
func Substitute(text string, m *AliasMapping) string {
	if m == nil || !m.Substitutable() {
		return text
	}
	return mapCode(text, func(code string) string {
		return replaceTokens(code, func(token string) (string, bool) {
			q, ok := m.Lookup(token)
			if !ok || q == token {
				return "", false
			}
			return q, true
		}, false)
	})
}

// Reverse replaces qualified paths with their local names. Longer paths win
// over their prefixes, so `pkg.mod.foo` reverts to `foo` even when `pkg.mod`
// is also mapped.
func Reverse(text string, m *AliasMapping) string {
	if m == nil || !m.Substitutable() {
		return text
	}
	order := m.reverseOrder()
	return mapCode(text, func(code string) string {
		return replaceTokens(code, func(token string) (string, bool) {
			for _, e := range order {
				if token == e.Qualified {
					return e.Local, true
				}
				if strings.HasPrefix(token, e.Qualified) && token[len(e.Qualified)] == '.' {
					return e.Local + token[len(e.Qualified):], true
				}
			}
			return "", false
		}, true)
	})
}

func mapCode(text string, fn func(string) string) string {
	lines, _ := scan.Text(text)
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = line.Spans.MapCode(fn)
	}
	return strings.Join(out, "\n")
}

// replaceTokens walks the identifier tokens of one code span. With dotted
// set, a token extends over `.name` segments so a qualified path is
// matched as one unit.
func replaceTokens(code string, lookup func(string) (string, bool), dotted bool) string {
	var b strings.Builder
	last := 0
	i := 0
	for i < len(code) {
		c := code[i]
		if !scan.IsIdentByte(c) {
			i++
			continue
		}
		start := i
		for i < len(code) && scan.IsIdentByte(code[i]) {
			i++
		}
		if dotted {
			for i+1 < len(code) && code[i] == '.' && scan.IsIdentByte(code[i+1]) {
				i++
				for i < len(code) && scan.IsIdentByte(code[i]) {
					i++
				}
			}
		}
		if start > 0 && code[start-1] == '.' {
			continue
		}
		// numeric literals such as 1e5 or 0x1f are not names
		if c >= '0' && c <= '9' {
			continue
		}
		repl, ok := lookup(code[start:i])
		if !ok {
			continue
		}
		b.WriteString(code[last:start])
		b.WriteString(repl)
		last = i
	}
	if last == 0 {
		return code
	}
	b.WriteString(code[last:])
	return b.String()
}
