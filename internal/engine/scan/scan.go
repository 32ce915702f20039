// Package scan splits Python source lines into code and literal spans.
//
// A literal span is anything whose text must never be rewritten: quoted
// strings (with their prefixes), triple-quoted blocks and comments. The scan
// is line oriented; the State returned for one line is fed into the next so
// that blocks spanning several lines are tracked without re-reading the file.
package scan

import (
	"strings"
)

// State is the lexical context carried from the end of one line to the
// start of the next.
type State uint8

const (
	// StateCode means the next line starts in ordinary code.
	StateCode State = iota
	// StateTripleDouble means the next line continues a """ block.
	StateTripleDouble
	// StateTripleSingle means the next line continues a ''' block.
	StateTripleSingle
	// StateContinuedDouble means a "..." string ended the line with a
	// backslash continuation.
	StateContinuedDouble
	// StateContinuedSingle is StateContinuedDouble for '...' strings.
	StateContinuedSingle
)

// InMultiline reports whether a line scanned in this state starts inside a
// literal.
func (s State) InMultiline() bool { return s != StateCode }

func (s State) String() string {
	switch s {
	case StateCode:
		return "code"
	case StateTripleDouble:
		return `in """ block`
	case StateTripleSingle:
		return "in ''' block"
	case StateContinuedDouble:
		return `in continued " string`
	case StateContinuedSingle:
		return "in continued ' string"
	}
	return "unknown"
}

func (s State) delimiter() string {
	switch s {
	case StateTripleDouble:
		return `"""`
	case StateTripleSingle:
		return "'''"
	case StateContinuedDouble:
		return `"`
	case StateContinuedSingle:
		return "'"
	}
	return ""
}

func (s State) triple() bool {
	return s == StateTripleDouble || s == StateTripleSingle
}

func tripleState(quote byte) State {
	if quote == '"' {
		return StateTripleDouble
	}
	return StateTripleSingle
}

func continuedState(quote byte) State {
	if quote == '"' {
		return StateContinuedDouble
	}
	return StateContinuedSingle
}

// Kind tags a span.
type Kind uint8

const (
	KindCode Kind = iota
	KindLiteral
)

func (k Kind) String() string {
	if k == KindLiteral {
		return "LITERAL"
	}
	return "CODE"
}

// Span is a run of one line's text with a single kind.
type Span struct {
	Kind Kind
	Text string
}

// Spans always alternate CODE, LITERAL, CODE, ... and always start with a
// CODE span, which may be empty. Even indexes are therefore code.
type Spans []Span

// String reassembles the original line.
func (s Spans) String() string {
	var b strings.Builder
	for _, span := range s {
		b.WriteString(span.Text)
	}
	return b.String()
}

// MapCode rebuilds the line with every code span passed through fn.
func (s Spans) MapCode(fn func(string) string) string {
	var b strings.Builder
	for i, span := range s {
		if i%2 == 0 {
			b.WriteString(fn(span.Text))
			continue
		}
		b.WriteString(span.Text)
	}
	return b.String()
}

// HasLiteral reports whether any part of the line is literal.
func (s Spans) HasLiteral() bool {
	return len(s) > 1
}

type spanBuilder struct {
	spans Spans
}

func (b *spanBuilder) code(text string) {
	if text == "" {
		b.ensureStart()
		return
	}
	if n := len(b.spans); n > 0 && b.spans[n-1].Kind == KindCode {
		b.spans[n-1].Text += text
		return
	}
	b.spans = append(b.spans, Span{Kind: KindCode, Text: text})
}

func (b *spanBuilder) literal(text string) {
	b.ensureStart()
	if text == "" {
		return
	}
	if n := len(b.spans); b.spans[n-1].Kind == KindLiteral {
		b.spans[n-1].Text += text
		return
	}
	b.spans = append(b.spans, Span{Kind: KindLiteral, Text: text})
}

func (b *spanBuilder) ensureStart() {
	if len(b.spans) == 0 {
		b.spans = append(b.spans, Span{Kind: KindCode})
	}
}

func (b *spanBuilder) result() Spans {
	b.ensureStart()
	return b.spans
}

// ScanLine splits one line (without its newline) into spans, starting in
// state st, and returns the state the following line starts in.
func ScanLine(line string, st State) (Spans, State) {
	var b spanBuilder
	i := 0

	if st.InMultiline() {
		end, closed, dangling := findClose(line, 0, st.delimiter())
		b.literal(line[:end])
		if !closed {
			if st.triple() || dangling {
				return b.result(), st
			}
			// an unterminated single-quoted continuation is a syntax
			// error in the source; resynchronise on the next line
			return b.result(), StateCode
		}
		i = end
	} else if strings.HasPrefix(strings.TrimLeft(line, " \t\f"), "#") {
		b.literal(line)
		return b.result(), StateCode
	}

	codeStart := i
	for i < len(line) {
		c := line[i]
		switch c {
		case '#':
			b.code(line[codeStart:i])
			b.literal(line[i:])
			return b.result(), StateCode
		case '"', '\'':
			start := prefixStart(line, codeStart, i)
			b.code(line[codeStart:start])
			if strings.HasPrefix(line[i:], strings.Repeat(string(c), 3)) {
				end, closed, _ := findClose(line, i+3, strings.Repeat(string(c), 3))
				b.literal(line[start:end])
				if !closed {
					return b.result(), tripleState(c)
				}
				i = end
			} else {
				end, closed, dangling := findClose(line, i+1, string(c))
				b.literal(line[start:end])
				if !closed {
					if dangling {
						return b.result(), continuedState(c)
					}
					return b.result(), StateCode
				}
				i = end
			}
			codeStart = i
		default:
			i++
		}
	}
	b.code(line[codeStart:])
	return b.result(), StateCode
}

// findClose looks for delim starting at from, honouring backslash escapes.
// It returns the offset just past the delimiter, whether it was found, and
// whether the line ended on an unpaired backslash.
func findClose(line string, from int, delim string) (int, bool, bool) {
	j := from
	for j < len(line) {
		if line[j] == '\\' {
			if j+1 >= len(line) {
				return len(line), false, true
			}
			j += 2
			continue
		}
		if strings.HasPrefix(line[j:], delim) {
			return j + len(delim), true, false
		}
		j++
	}
	return len(line), false, false
}

var stringPrefixes = map[string]bool{
	"r": true, "u": true, "b": true, "f": true,
	"br": true, "rb": true, "fr": true, "rf": true,
}

// prefixStart returns the offset where the literal opened by the quote at
// quote really starts, that is, including a string prefix such as r or b.
func prefixStart(line string, lo, quote int) int {
	for n := 2; n >= 1; n-- {
		start := quote - n
		if start < lo {
			continue
		}
		candidate := strings.ToLower(line[start:quote])
		if !stringPrefixes[candidate] {
			continue
		}
		if start > 0 && IsIdentByte(line[start-1]) {
			continue
		}
		return start
	}
	return quote
}

// IsIdentByte reports whether c can be part of a Python identifier. Any
// non-ASCII byte is treated as an identifier byte so multi-byte names are
// never split.
func IsIdentByte(c byte) bool {
	return c == '_' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') ||
		c >= 0x80
}

// Line is one scanned line together with the states around it.
type Line struct {
	Text  string
	Spans Spans
	Start State
	End   State
}

// StartsInCode reports whether the line begins outside any literal.
func (l Line) StartsInCode() bool { return !l.Start.InMultiline() }

// Lines scans a sequence of lines from a fresh state. The returned state is
// the one left after the last line; anything other than StateCode means the
// text ends inside an unterminated literal, and the remainder was treated
// as literal.
func Lines(lines []string) ([]Line, State) {
	out := make([]Line, len(lines))
	st := StateCode
	for i, text := range lines {
		spans, next := ScanLine(text, st)
		out[i] = Line{Text: text, Spans: spans, Start: st, End: next}
		st = next
	}
	return out, st
}

// Text scans a whole source unit.
func Text(text string) ([]Line, State) {
	return Lines(strings.Split(text, "\n"))
}
