// Package cli implements the handoff command line: the hook dispatcher the
// host invokes on lifecycle events, and the status and setup commands.
package cli

import (
	"fmt"

	"github.com/sessionhandoff/handoff/cmd/handoff/cli/paths"
	"github.com/sessionhandoff/handoff/cmd/handoff/cli/settings"
	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "dev"

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configPath string
}

// resolveConfigPath returns the host config path: the --config flag, then
// OPENCLAW_CONFIG, then ~/.openclaw/openclaw.json.
func (o *rootOptions) resolveConfigPath() string {
	if o.configPath != "" {
		return paths.ExpandHome(o.configPath)
	}
	return paths.HostConfigFile()
}

func (o *rootOptions) loadSettings() (*settings.Settings, error) {
	s, err := settings.Load(o.resolveConfigPath())
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}
	return s, nil
}

// NewRootCmd builds the handoff command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "handoff",
		Short: "Carry session context across resets and compactions",
		Long: `handoff summarizes a session's recent conversation into SESSION-STATE.md
when the session is reset or compacted, and injects that file into the next
session's context when it starts.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to the host config file (default $OPENCLAW_CONFIG or ~/.openclaw/openclaw.json)")

	cmd.AddCommand(newHooksCmd(opts))
	cmd.AddCommand(newStatusCmd(opts))
	cmd.AddCommand(newSetupCmd(opts))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the handoff version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "handoff %s\n", Version)
		},
	}
}
