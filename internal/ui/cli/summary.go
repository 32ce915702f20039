package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	coreapp "scriptlib/internal/core/app"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// printSummary reports one build: the totals line, then every warning and
// every failing file with its cause.
func printSummary(w io.Writer, s coreapp.Summary) {
	io.WriteString(w, formatSummary(s))
}

func formatSummary(s coreapp.Summary) string {
	var b strings.Builder

	status := okStyle.Render("ok")
	if !s.OK() {
		status = errorStyle.Render("failed")
	}
	fmt.Fprintf(&b, "%s %s %s (%s)\n",
		titleStyle.Render("scriptlib "+s.Direction.String()),
		status,
		mutedStyle.Render(s.Source+" -> "+s.Destination),
		s.Strategy,
	)
	fmt.Fprintf(&b, "  files: %d  written: %d  skipped: %d  failed: %d  directives: %d  in %s\n",
		s.Total, s.Written, s.Skipped, len(s.Failed), s.Directives, s.Duration.Round(time.Millisecond))

	for _, warn := range s.Warnings {
		fmt.Fprintf(&b, "  %s %s: %s\n", warningStyle.Render("warning"), warn.Rel, warn.Message)
	}
	for _, fe := range s.Failed {
		name := fe.Rel
		if name == "" {
			name = fe.Path
		}
		fmt.Fprintf(&b, "  %s %s: %v\n", errorStyle.Render("error"), name, fe.Err)
	}
	return b.String()
}
