// Package transform converts whole source units between the project layout
// and the host layout. Forward comments out targeted directives and
// rewrites the names they bound; Inverse undoes it.
package transform

import (
	"fmt"
	"strings"

	coreerrors "scriptlib/internal/core/errors"
	"scriptlib/internal/engine/parser"
	"scriptlib/internal/engine/rewrite"
	"scriptlib/internal/engine/scan"
	"scriptlib/internal/engine/substitute"
)

const DefaultTabWidth = 4

type Options struct {
	Roots           rewrite.RootSet
	Strategy        rewrite.Strategy
	TabWidth        int
	FoldTabs        bool
	Declaration     Declaration
	VerifyRoundTrip bool
	// Strict turns a non-reversible forward result into an error.
	Strict bool
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions(roots []string) Options {
	return Options{
		Roots:           rewrite.NewRootSet(roots, rewrite.DefaultReserved),
		Strategy:        rewrite.StrategySubstitute,
		TabWidth:        DefaultTabWidth,
		FoldTabs:        true,
		Declaration:     Declaration{Source: DefaultDeclarationSource, Host: DefaultDeclarationHost},
		VerifyRoundTrip: true,
	}
}

type Result struct {
	Text       string
	Strategy   rewrite.Strategy
	Directives int
	Warnings   []string
	// Reversible is false when the forward output was checked and does not
	// invert back to its source.
	Reversible bool
}

// Engine runs transforms for one configuration. It is stateless between
// calls and safe for concurrent use.
type Engine struct {
	opts     Options
	rewriter *rewrite.Rewriter
}

func New(opts Options, extractor parser.Extractor) *Engine {
	if opts.Strategy == "" {
		opts.Strategy = rewrite.StrategySubstitute
	}
	if opts.TabWidth <= 0 {
		opts.TabWidth = DefaultTabWidth
	}
	return &Engine{
		opts:     opts,
		rewriter: rewrite.New(opts.Roots, opts.Strategy, extractor),
	}
}

func (e *Engine) Options() Options { return e.opts }

// Forward converts one source unit to the host layout.
func (e *Engine) Forward(path, text string) (Result, error) {
	res := Result{Strategy: e.opts.Strategy, Reversible: true}

	if _, final := scan.Text(text); final != scan.StateCode {
		res.Warnings = append(res.Warnings, fmt.Sprintf("source ends %s; the remainder was kept verbatim", final))
	}
	if e.opts.FoldTabs {
		if lines := tabIndented(text); len(lines) > 0 {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%d line(s) indented with tabs, first at line %d; a reverse build expands them to spaces", len(lines), lines[0]))
		}
	}

	out, rw, err := e.convert(path, text)
	if err != nil {
		return Result{}, err
	}
	for _, w := range rw.Warnings {
		res.Warnings = append(res.Warnings, w.String())
	}
	res.Directives = rw.Directives
	res.Text = out

	if e.opts.VerifyRoundTrip && !e.reversible(path, text, out) {
		if e.opts.Strict {
			return Result{}, &coreerrors.RoundTripAmbiguityError{
				Path:   path,
				Reason: "converted output does not reverse to its source",
			}
		}
		res.Reversible = false
		res.Warnings = append(res.Warnings, "converted output does not reverse to its source byte for byte")
	}
	return res, nil
}

// convert runs the forward pipeline without verification.
func (e *Engine) convert(path, text string) (string, rewrite.Result, error) {
	out := e.opts.Declaration.Forward(text)

	rw, err := e.rewriter.Forward(path, strings.Split(out, "\n"))
	if err != nil {
		return "", rewrite.Result{}, err
	}

	out = strings.Join(rw.Lines, "\n")
	if e.opts.Strategy == rewrite.StrategySubstitute {
		out = substitute.Substitute(out, rw.Mapping)
	}
	if e.opts.FoldTabs {
		out = FoldIndent(out, e.opts.TabWidth)
	}
	return out, rw, nil
}

// reversible reports whether out inverts back to text. Input that forward
// leaves unchanged is already in host form; it only has to survive an
// inverse followed by another forward.
func (e *Engine) reversible(path, text, out string) bool {
	back, err := e.inverse(path, out)
	if err != nil {
		return false
	}
	if out != text {
		return back.Text == text
	}
	again, _, err := e.convert(path, back.Text)
	return err == nil && again == out
}

// Inverse converts one host-layout unit back. tagged is the strategy
// recorded when the unit was built, or empty when none was recorded; in
// that case the strategy is inferred from the text where possible.
func (e *Engine) Inverse(path, text string, tagged rewrite.Strategy) (Result, error) {
	if tagged != "" && tagged != e.opts.Strategy {
		return Result{}, &coreerrors.RoundTripAmbiguityError{
			Path:     path,
			Expected: string(e.opts.Strategy),
			Found:    string(tagged),
			Reason:   "artifact was built with a different strategy",
		}
	}
	res, err := e.inverse(path, text)
	if err != nil {
		return Result{}, err
	}
	if tagged == "" && res.Strategy != "" && res.Strategy != e.opts.Strategy {
		return Result{}, &coreerrors.RoundTripAmbiguityError{
			Path:     path,
			Expected: string(e.opts.Strategy),
			Found:    string(res.Strategy),
			Reason:   "artifact looks like it was built with a different strategy",
		}
	}
	res.Strategy = e.opts.Strategy
	return res, nil
}

// inverse runs the reverse pipeline. The returned Strategy is the one the
// text's shape suggests, empty when undecidable.
func (e *Engine) inverse(path, text string) (Result, error) {
	res := Result{Reversible: true}

	out := text
	if e.opts.FoldTabs {
		out = UnfoldIndent(out, e.opts.TabWidth)
	}

	lines := strings.Split(out, "\n")
	mapping, directives, warnings, err := e.rewriter.Collect(path, lines)
	if err != nil {
		return Result{}, err
	}
	for _, w := range warnings {
		res.Warnings = append(res.Warnings, w.String())
	}
	if detected, ok := rewrite.DetectStrategy(lines, directives); ok {
		res.Strategy = detected
	}
	res.Directives = len(directives)

	if e.opts.Strategy == rewrite.StrategySubstitute {
		lines = strings.Split(substitute.Reverse(out, mapping), "\n")
	}
	lines = e.rewriter.Restore(lines, directives)

	res.Text = e.opts.Declaration.Inverse(strings.Join(lines, "\n"))
	return res, nil
}
