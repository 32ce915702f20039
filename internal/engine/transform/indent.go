package transform

import (
	"strings"

	"scriptlib/internal/engine/scan"
)

// FoldIndent replaces each run of width spaces in the leading indentation
// of lines that start in code with a tab. Lines inside literal blocks and
// lines whose indentation already contains a tab are left alone.
func FoldIndent(text string, width int) string {
	if width <= 0 {
		return text
	}
	return mapCodeLines(text, func(line string) string {
		n := 0
		for n < len(line) && line[n] == ' ' {
			n++
		}
		if n < width || (n < len(line) && line[n] == '\t') {
			return line
		}
		return strings.Repeat("\t", n/width) + strings.Repeat(" ", n%width) + line[n:]
	})
}

// UnfoldIndent expands leading tabs of lines that start in code back into
// width spaces each.
func UnfoldIndent(text string, width int) string {
	if width <= 0 {
		return text
	}
	return mapCodeLines(text, func(line string) string {
		n := 0
		for n < len(line) && line[n] == '\t' {
			n++
		}
		if n == 0 {
			return line
		}
		return strings.Repeat(" ", n*width) + line[n:]
	})
}

// tabIndented lists the 1-based numbers of code lines indented with a
// leading tab. Such lines are expanded to spaces by the inverse transform.
func tabIndented(text string) []int {
	var out []int
	lines, _ := scan.Text(text)
	for i, line := range lines {
		if line.StartsInCode() && strings.HasPrefix(line.Text, "\t") {
			out = append(out, i+1)
		}
	}
	return out
}

func mapCodeLines(text string, fn func(string) string) string {
	lines, _ := scan.Text(text)
	out := make([]string, len(lines))
	for i, line := range lines {
		if line.StartsInCode() {
			out[i] = fn(line.Text)
			continue
		}
		out[i] = line.Text
	}
	return strings.Join(out, "\n")
}
