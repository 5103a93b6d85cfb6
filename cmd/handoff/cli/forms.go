package cli

import (
	"os"

	"github.com/charmbracelet/huh"
)

// NewAccessibleForm returns a huh form that switches to accessible mode
// (plain prompts, no TUI) when ACCESSIBLE is set.
func NewAccessibleForm(groups ...*huh.Group) *huh.Form {
	return huh.NewForm(groups...).WithAccessible(os.Getenv("ACCESSIBLE") != "")
}

// canPromptInteractively checks if we can show interactive prompts.
// Returns false when running in CI, tests, or other non-interactive environments.
func canPromptInteractively() bool {
	if v := os.Getenv("HANDOFF_TEST_TTY"); v != "" {
		return v == "1"
	}

	tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
	if err != nil {
		return false
	}
	_ = tty.Close()
	return true
}
