package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"golang.org/x/term"
)

// statusStyles holds pre-built lipgloss styles and terminal metadata.
type statusStyles struct {
	colorEnabled bool
	width        int

	green  lipgloss.Style
	yellow lipgloss.Style
	gray   lipgloss.Style
	bold   lipgloss.Style
	dim    lipgloss.Style
	cyan   lipgloss.Style
}

// newStatusStyles creates styles appropriate for the output writer.
func newStatusStyles(w io.Writer) statusStyles {
	s := statusStyles{
		colorEnabled: shouldUseColor(w),
		width:        getTerminalWidth(w),
	}

	if s.colorEnabled {
		s.green = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
		s.yellow = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
		s.gray = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
		s.bold = lipgloss.NewStyle().Bold(true)
		s.dim = lipgloss.NewStyle().Faint(true)
		s.cyan = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	}

	return s
}

// render applies a style to text only when color is enabled.
func (s statusStyles) render(style lipgloss.Style, text string) string {
	if !s.colorEnabled {
		return text
	}
	return style.Render(text)
}

// shouldUseColor returns true if the writer supports color output.
func shouldUseColor(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if f, ok := w.(*os.File); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return false
}

// getTerminalWidth returns the width of w's terminal, capped at 80 with a
// fallback of 60.
func getTerminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return 60
	}
	if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 0 {
		return min(width, 80)
	}
	return 60
}

// sectionRule renders a section header like: ── Session State ────────────
func (s statusStyles) sectionRule(label string, width int) string {
	used := len("── ") + len(label) + 1
	trailing := max(width-used, 1)

	var b strings.Builder
	b.WriteString(s.render(s.dim, "── "))
	b.WriteString(s.render(s.dim, label))
	b.WriteString(" ")
	b.WriteString(s.render(s.dim, strings.Repeat("─", trailing)))
	return b.String()
}

// field renders an indented "label  value" line.
func (s statusStyles) field(label, value string) string {
	return fmt.Sprintf("  %s %s", s.render(s.gray, fmt.Sprintf("%-10s", label)), value)
}

// timeAgo formats how long ago t was, relative to now.
func timeAgo(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
