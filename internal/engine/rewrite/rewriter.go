// Package rewrite finds the import directives that target configured root
// modules, comments them out and records the names they bound. The inverse
// direction recognises those commented directives and restores them.
package rewrite

import (
	"errors"
	"fmt"
	"strings"

	coreerrors "scriptlib/internal/core/errors"
	"scriptlib/internal/engine/parser"
	"scriptlib/internal/engine/scan"
	"scriptlib/internal/engine/substitute"
)

// CommentPrefix is prepended to every rewritten directive.
const CommentPrefix = "# "

var ErrMixedRoots = errors.New("import list mixes targeted and untargeted modules")

// Warning is a non-fatal finding about one line.
type Warning struct {
	Line    int
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("line %d: %s", w.Line, w.Message)
}

// Directive is a commented directive found in converted text.
type Directive struct {
	Index   int    // zero-based line index
	Text    string // the directive without its comment prefix
	Aliases []string
}

// Rewriter rewrites directives for one root set and strategy. It holds no
// per-file state and is safe for concurrent use when its extractor is.
type Rewriter struct {
	roots     RootSet
	strategy  Strategy
	extractor parser.Extractor
}

func New(roots RootSet, strategy Strategy, extractor parser.Extractor) *Rewriter {
	if extractor == nil {
		extractor = parser.NewDefaultExtractor()
	}
	if strategy == "" {
		strategy = StrategySubstitute
	}
	return &Rewriter{roots: roots, strategy: strategy, extractor: extractor}
}

func (r *Rewriter) Strategy() Strategy { return r.strategy }

// Result is the outcome of a forward rewrite.
type Result struct {
	Lines      []string
	Mapping    *substitute.AliasMapping
	Directives int
	Warnings   []Warning
}

// Forward comments out every targeted directive in lines.
func (r *Rewriter) Forward(path string, lines []string) (Result, error) {
	scanned, _ := scan.Lines(lines)
	res := Result{Lines: make([]string, 0, len(lines)), Mapping: substitute.NewAliasMapping()}

	for i := 0; i < len(lines); i++ {
		text := lines[i]
		if !scanned[i].StartsInCode() {
			res.Lines = append(res.Lines, text)
			continue
		}
		if r.commentedDirective(path, i, text) {
			res.Warnings = append(res.Warnings, Warning{
				Line:    i + 1,
				Message: "commented-out directive will be restored by a reverse build",
			})
		}

		head, ok := parser.ParseHead(text)
		if !ok && parser.IsDirectiveStart(text) {
			// the module name may follow a continuation after the keyword
			logical, _ := JoinDirective(lines, i)
			head, ok = parser.ParseHead(logical)
		}
		if !ok {
			res.Lines = append(res.Lines, text)
			continue
		}
		targeted, err := r.targets(head)
		if err != nil {
			return Result{}, &coreerrors.MalformedReferenceError{Path: path, Line: i + 1, Directive: text, Err: err}
		}
		if !targeted {
			res.Lines = append(res.Lines, text)
			continue
		}

		logical, end := JoinDirective(lines, i)
		refs, err := r.extractor.Extract(path, i+1, logical)
		if err != nil {
			return Result{}, err
		}
		aliases, err := r.bind(res.Mapping, refs)
		if err != nil {
			return Result{}, &coreerrors.MalformedReferenceError{Path: path, Line: i + 1, Directive: logical, Err: err}
		}

		comment := CommentPrefix + logical
		eol := lineEnding(lines[end])
		if !strings.HasSuffix(comment, eol) {
			comment += eol
		}
		res.Lines = append(res.Lines, comment)
		if r.strategy == StrategyAlias {
			for _, alias := range aliases {
				res.Lines = append(res.Lines, alias+eol)
			}
		}
		res.Directives++
		i = end
	}
	return res, nil
}

// Collect finds the commented directives in converted text and rebuilds the
// mapping they describe. Comments that look like directives but do not
// parse are left alone with a warning.
func (r *Rewriter) Collect(path string, lines []string) (*substitute.AliasMapping, []Directive, []Warning, error) {
	scanned, _ := scan.Lines(lines)
	mapping := substitute.NewAliasMapping()
	var directives []Directive
	var warnings []Warning

	for i, text := range lines {
		if !scanned[i].StartsInCode() {
			continue
		}
		directive, ok := r.uncomment(text)
		if !ok {
			continue
		}
		refs, err := r.extractor.Extract(path, i+1, directive)
		if err != nil {
			warnings = append(warnings, Warning{Line: i + 1, Message: "comment resembles a directive but does not parse; left as is"})
			continue
		}
		aliases, err := r.bind(mapping, refs)
		if err != nil {
			return nil, nil, nil, &coreerrors.MalformedReferenceError{Path: path, Line: i + 1, Directive: directive, Err: err}
		}
		directives = append(directives, Directive{Index: i, Text: directive, Aliases: aliases})
	}
	return mapping, directives, warnings, nil
}

// Restore uncomments the collected directives. With the alias strategy the
// synthetic assignments directly after each directive are dropped.
func (r *Rewriter) Restore(lines []string, directives []Directive) []string {
	byIndex := make(map[int]Directive, len(directives))
	for _, d := range directives {
		byIndex[d.Index] = d
	}

	out := make([]string, 0, len(lines))
	for i := 0; i < len(lines); i++ {
		d, ok := byIndex[i]
		if !ok {
			out = append(out, lines[i])
			continue
		}
		out = append(out, d.Text)
		if r.strategy != StrategyAlias {
			continue
		}
		for _, alias := range d.Aliases {
			if i+1 < len(lines) && strings.TrimSuffix(lines[i+1], "\r") == alias {
				i++
				continue
			}
			break
		}
	}
	return out
}

// DetectStrategy infers the strategy that produced converted text from its
// shape. ok is false when nothing in the text tells the strategies apart.
func DetectStrategy(lines []string, directives []Directive) (Strategy, bool) {
	decidable := false
	for _, d := range directives {
		if len(d.Aliases) == 0 {
			continue
		}
		decidable = true
		if d.Index+1 < len(lines) && strings.TrimSuffix(lines[d.Index+1], "\r") == d.Aliases[0] {
			return StrategyAlias, true
		}
	}
	if !decidable {
		return "", false
	}
	return StrategySubstitute, true
}

// AliasLine renders the synthetic assignment for one binding.
func AliasLine(e substitute.Entry) string {
	return e.Local + " = " + e.Qualified
}

func (r *Rewriter) targets(head parser.Head) (bool, error) {
	targeted := 0
	for _, module := range head.Modules {
		if r.roots.Contains(parser.RootOf(module)) {
			targeted++
		}
	}
	if targeted > 0 && targeted < len(head.Modules) {
		return false, ErrMixedRoots
	}
	return targeted > 0, nil
}

// bind records the bindings of refs and returns the synthetic assignments
// for the ones that are new.
func (r *Rewriter) bind(m *substitute.AliasMapping, refs []parser.ModuleReference) ([]string, error) {
	var aliases []string
	for _, ref := range refs {
		if r.roots.Reserved(ref.Root()) {
			continue
		}
		for _, b := range ref.Bindings() {
			added, err := m.Bind(b.Local, b.Qualified)
			if err != nil {
				return nil, err
			}
			e := substitute.Entry{Local: b.Local, Qualified: b.Qualified}
			if added && !e.Identity() {
				aliases = append(aliases, AliasLine(e))
			}
		}
	}
	return aliases, nil
}

// uncomment returns the directive inside a line produced by Forward.
func (r *Rewriter) uncomment(text string) (string, bool) {
	if !strings.HasPrefix(text, CommentPrefix) {
		return "", false
	}
	directive := text[len(CommentPrefix):]
	head, ok := parser.ParseHead(directive)
	if !ok {
		return "", false
	}
	targeted, err := r.targets(head)
	if err != nil || !targeted {
		return "", false
	}
	return directive, true
}

func (r *Rewriter) commentedDirective(path string, i int, text string) bool {
	directive, ok := r.uncomment(text)
	if !ok {
		return false
	}
	_, err := r.extractor.Extract(path, i+1, directive)
	return err == nil
}

// lineEnding returns the carriage return left on a CRLF line after the
// text was split on newlines.
func lineEnding(line string) string {
	if strings.HasSuffix(line, "\r") {
		return "\r"
	}
	return ""
}
