package scan

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(spans Spans) []Kind {
	out := make([]Kind, len(spans))
	for i, s := range spans {
		out[i] = s.Kind
	}
	return out
}

func texts(spans Spans) []string {
	out := make([]string, len(spans))
	for i, s := range spans {
		out[i] = s.Text
	}
	return out
}

func TestScanLine(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		line  string
		in    State
		texts []string
		out   State
	}{
		{name: "PlainCode", line: "x = foo(1)", texts: []string{"x = foo(1)"}},
		{name: "Empty", line: "", texts: []string{""}},
		{name: "DoubleQuoted", line: `x = "foo" + foo`, texts: []string{"x = ", `"foo"`, " + foo"}},
		{name: "SingleQuoted", line: `f('a', b)`, texts: []string{"f(", "'a'", ", b)"}},
		{name: "EscapedQuote", line: `s = "a\"foo" + foo`, texts: []string{"s = ", `"a\"foo"`, " + foo"}},
		{name: "QuoteInsideOther", line: `s = "it's" + foo`, texts: []string{"s = ", `"it's"`, " + foo"}},
		{name: "StringPrefix", line: `p = r"\d+" + rb'x'`, texts: []string{"p = ", `r"\d+"`, " + ", "rb'x'"}},
		{name: "IdentifierEndingInR", line: `bar"x"`, texts: []string{"bar", `"x"`}},
		{name: "TrailingComment", line: "foo()  # call foo", texts: []string{"foo()  ", "# call foo"}},
		{name: "HashInString", line: `x = "#not" + foo`, texts: []string{"x = ", `"#not"`, " + foo"}},
		{name: "CommentLine", line: "    # foo = bar", texts: []string{"", "    # foo = bar"}},
		{name: "TripleOnOneLine", line: `doc = """foo""" + foo`, texts: []string{"doc = ", `"""foo"""`, " + foo"}},
		{name: "TripleOpens", line: `doc = """foo`, texts: []string{"doc = ", `"""foo`}, out: StateTripleDouble},
		{name: "TripleSingleOpens", line: "doc = '''", texts: []string{"doc = ", "'''"}, out: StateTripleSingle},
		{name: "InsideBlock", line: "foo bar", in: StateTripleDouble, texts: []string{"", "foo bar"}, out: StateTripleDouble},
		{name: "BlockCloses", line: `end""" + foo`, in: StateTripleDouble, texts: []string{"", `end"""`, " + foo"}},
		{name: "OtherDelimiterInBlock", line: `'''still""" x`, in: StateTripleSingle, texts: []string{"", `'''`, "still", `""" x`}, out: StateTripleDouble},
		{name: "EscapedDelimiterInBlock", line: `a \""" b`, in: StateTripleDouble, texts: []string{"", `a \""" b`}, out: StateTripleDouble},
		{name: "CommentMarkerInsideBlockIsLiteral", line: "# not a comment", in: StateTripleDouble, texts: []string{"", "# not a comment"}, out: StateTripleDouble},
		{name: "Continuation", line: `s = "abc\`, texts: []string{"s = ", `"abc\`}, out: StateContinuedDouble},
		{name: "ContinuationEnds", line: `def" + foo`, in: StateContinuedDouble, texts: []string{"", `def"`, " + foo"}},
		{name: "UnterminatedString", line: `s = "abc`, texts: []string{"s = ", `"abc`}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			spans, out := ScanLine(tc.line, tc.in)
			assert.Equal(t, tc.texts, texts(spans))
			assert.Equal(t, tc.out, out)
			assert.Equal(t, tc.line, spans.String())
			for i, k := range kinds(spans) {
				if i%2 == 0 {
					assert.Equal(t, KindCode, k, "span %d", i)
				} else {
					assert.Equal(t, KindLiteral, k, "span %d", i)
				}
			}
		})
	}
}

func TestScanLine_DelimiterParity(t *testing.T) {
	t.Parallel()

	// Two delimiters on one line: the block opens and closes, no net change.
	_, st := ScanLine(`a = """x""" ; b = 1`, StateCode)
	assert.Equal(t, StateCode, st)

	// Three delimiters: net toggle into a block.
	_, st = ScanLine(`a = """x""" + """y`, StateCode)
	assert.Equal(t, StateTripleDouble, st)

	// Starting inside a block, one delimiter closes it.
	_, st = ScanLine(`"""`, StateTripleDouble)
	assert.Equal(t, StateCode, st)

	// Starting inside a block, two delimiters reopen it.
	_, st = ScanLine(`""" + """`, StateTripleDouble)
	assert.Equal(t, StateTripleDouble, st)
}

func TestText_TracksBlocksAcrossLines(t *testing.T) {
	t.Parallel()

	src := strings.Join([]string{
		`def f():`,
		`    """Docstring mentioning foo`,
		`    and more foo`,
		`    """`,
		`    return foo`,
	}, "\n")

	lines, final := Text(src)
	require.Len(t, lines, 5)
	assert.Equal(t, StateCode, final)

	assert.True(t, lines[0].StartsInCode())
	assert.True(t, lines[1].StartsInCode())
	assert.False(t, lines[2].StartsInCode())
	assert.False(t, lines[3].StartsInCode())
	assert.True(t, lines[4].StartsInCode())

	assert.Equal(t, []string{"", "    and more foo"}, texts(lines[2].Spans))
	assert.Equal(t, []string{"    return foo"}, texts(lines[4].Spans))
}

func TestText_UnterminatedBlockIsLiteralToEOF(t *testing.T) {
	t.Parallel()

	src := "x = 1\ns = '''open\nfoo = 2\nbar()"
	lines, final := Text(src)
	assert.Equal(t, StateTripleSingle, final)
	require.Len(t, lines, 4)
	assert.Equal(t, []Kind{KindCode, KindLiteral}, kinds(lines[2].Spans))
	assert.Equal(t, []Kind{KindCode, KindLiteral}, kinds(lines[3].Spans))
	assert.Equal(t, "", lines[3].Spans[0].Text)
}

func TestSpans_MapCode(t *testing.T) {
	t.Parallel()

	spans, _ := ScanLine(`foo("foo") # foo`, StateCode)
	got := spans.MapCode(strings.ToUpper)
	assert.Equal(t, `FOO("foo") # foo`, got)
	assert.True(t, spans.HasLiteral())
}

func TestIsIdentByte(t *testing.T) {
	t.Parallel()

	for _, c := range []byte("azAZ09_") {
		assert.True(t, IsIdentByte(c), string(c))
	}
	for _, c := range []byte(" .()\"'#:=") {
		assert.False(t, IsIdentByte(c), string(c))
	}
	assert.True(t, IsIdentByte(0xc3))
}
