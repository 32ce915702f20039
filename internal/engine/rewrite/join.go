package rewrite

import (
	"strings"

	"scriptlib/internal/engine/scan"
)

// JoinDirective merges a directive that continues over several physical
// lines, through a trailing backslash or an open parenthesis, into one
// logical line. It returns the logical text and the index of the last line
// consumed. Comments on the joined lines are dropped, so the original
// wrapping cannot be restored. A single-line directive is returned as is.
func JoinDirective(lines []string, start int) (string, int) {
	depth := 0
	var parts []string
	end := start
	for end < len(lines) {
		code, continued := directiveCode(lines[end])
		for _, c := range code {
			switch c {
			case '(':
				depth++
			case ')':
				depth--
			}
		}
		if end == start && !continued && depth <= 0 {
			return lines[start], start
		}
		if part := strings.TrimSpace(code); part != "" {
			parts = append(parts, part)
		}
		if !continued && depth <= 0 {
			break
		}
		end++
	}
	if end >= len(lines) {
		end = len(lines) - 1
	}
	return strings.Join(parts, " "), end
}

// directiveCode returns the code part of one physical line with a trailing
// comment and continuation backslash removed.
func directiveCode(line string) (string, bool) {
	spans, _ := scan.ScanLine(line, scan.StateCode)
	var b strings.Builder
	for i, span := range spans {
		if i%2 == 1 && strings.HasPrefix(strings.TrimLeft(span.Text, " \t\f"), "#") {
			break
		}
		b.WriteString(span.Text)
	}
	code := strings.TrimRight(b.String(), " \t\r")
	if strings.HasSuffix(code, `\`) {
		return strings.TrimSuffix(code, `\`), true
	}
	return code, false
}
