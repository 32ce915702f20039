package transform

import (
	"strings"
)

const (
	DefaultDeclarationSource = "# coding="
	DefaultDeclarationHost   = "# CODING="
	declarationLines         = 2
)

// Declaration is the encoding declaration spelling on each side. The host
// interpreter rejects the source spelling, so it is renamed on the way in.
type Declaration struct {
	Source string
	Host   string
}

func (d Declaration) enabled() bool {
	return d.Source != "" && d.Host != "" && d.Source != d.Host
}

// Forward renames the first source spelling found in the declaration region.
// It does nothing when the host spelling is already there.
func (d Declaration) Forward(text string) string {
	if !d.enabled() {
		return text
	}
	return replaceInHead(text, d.Source, d.Host, d.Host)
}

// Inverse renames the first host spelling back.
func (d Declaration) Inverse(text string) string {
	if !d.enabled() {
		return text
	}
	return replaceInHead(text, d.Host, d.Source, "")
}

// replaceInHead replaces the first from with to within the first lines of
// text, unless guard already occurs there.
func replaceInHead(text, from, to, guard string) string {
	lines := strings.SplitN(text, "\n", declarationLines+1)
	head := len(lines)
	if head > declarationLines {
		head = declarationLines
	}
	if guard != "" {
		for _, line := range lines[:head] {
			if strings.Contains(line, guard) {
				return text
			}
		}
	}
	for i, line := range lines[:head] {
		if strings.Contains(line, from) {
			lines[i] = strings.Replace(line, from, to, 1)
			return strings.Join(lines, "\n")
		}
	}
	return text
}
