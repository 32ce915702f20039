package parser

import (
	"strings"
)

const (
	KeywordImport = "import"
	KeywordFrom   = "from"
)

// Head is the lexical shape of a directive line, read without the grammar.
// It is only good enough to decide whether a line is worth parsing.
type Head struct {
	Keyword string
	Modules []string
}

// ParseHead reads the keyword and module names of a line that starts, at
// column zero, with `import` or `from`. It does not validate the rest of
// the statement.
func ParseHead(line string) (Head, bool) {
	keyword, rest, ok := cutKeyword(line)
	if !ok {
		return Head{}, false
	}
	if i := strings.IndexByte(rest, '#'); i >= 0 {
		rest = rest[:i]
	}

	switch keyword {
	case KeywordFrom:
		module := leadingDotted(rest)
		if module == "" {
			return Head{}, false
		}
		return Head{Keyword: keyword, Modules: []string{module}}, true
	default:
		var modules []string
		for _, part := range strings.Split(rest, ",") {
			part = strings.Trim(strings.TrimSpace(part), `\`)
			if module := leadingDotted(strings.TrimSpace(part)); module != "" {
				modules = append(modules, module)
			}
		}
		if len(modules) == 0 {
			return Head{}, false
		}
		return Head{Keyword: keyword, Modules: modules}, true
	}
}

// IsDirectiveStart reports whether the line opens an import statement at
// column zero.
func IsDirectiveStart(line string) bool {
	_, _, ok := cutKeyword(line)
	return ok
}

func cutKeyword(line string) (string, string, bool) {
	for _, keyword := range []string{KeywordImport, KeywordFrom} {
		if !strings.HasPrefix(line, keyword) {
			continue
		}
		rest := line[len(keyword):]
		if rest == "" || (rest[0] != ' ' && rest[0] != '\t' && rest[0] != '\\') {
			continue
		}
		return keyword, strings.TrimLeft(rest, " \t"), true
	}
	return "", "", false
}

// leadingDotted returns the dotted name at the start of s, including leading
// dots of relative imports.
func leadingDotted(s string) string {
	end := 0
	for end < len(s) {
		c := s[end]
		if c == '.' || c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c >= 0x80 {
			end++
			continue
		}
		break
	}
	return s[:end]
}

// RootOf returns the first segment of a dotted module name. Relative names
// have no root.
func RootOf(module string) string {
	if strings.HasPrefix(module, ".") {
		return ""
	}
	root, _, _ := strings.Cut(module, ".")
	return root
}
