package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/sessionhandoff/handoff/cmd/handoff/cli/agent"
	"github.com/sessionhandoff/handoff/cmd/handoff/cli/paths"
	"github.com/sessionhandoff/handoff/cmd/handoff/cli/settings"
	"github.com/sessionhandoff/handoff/cmd/handoff/cli/statefile"
	"github.com/spf13/cobra"
)

func newStatusCmd(opts *rootOptions) *cobra.Command {
	var workspace string
	var raw bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show handoff configuration and the saved session state",
		Long: `Show whether handoff is enabled, which gateway and model it uses, and a
summary of the SESSION-STATE.md in the workspace.

The workspace defaults to the one configured in the host config.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.loadSettings()
			if err != nil {
				return err
			}
			return runStatus(cmd.OutOrStdout(), s, workspace, raw, time.Now())
		},
	}

	cmd.Flags().StringVar(&workspace, "workspace", "", "Workspace directory to inspect")
	cmd.Flags().BoolVar(&raw, "raw", false, "Print the state file as is")

	return cmd
}

func runStatus(w io.Writer, s *settings.Settings, workspace string, raw bool, now time.Time) error {
	if workspace == "" {
		workspace = agent.ResolveWorkspaceDir(&agent.HookContext{Cfg: s.Host}).UnwrapOr("")
	} else {
		workspace = paths.ExpandHome(workspace)
	}

	if raw {
		content, ok := unwrap(statefile.Read(workspace))
		if !ok {
			return NewSilentError(fmt.Errorf("no session state in %q", workspace))
		}
		fmt.Fprint(w, content)
		return nil
	}

	sty := newStatusStyles(w)

	fmt.Fprintln(w)
	fmt.Fprintln(w, formatPluginStatus(s, sty))
	fmt.Fprintln(w, sty.field("config", s.ConfigPath))
	fmt.Fprintln(w, sty.field("gateway", formatGateway(s.Host)))
	fmt.Fprintln(w, sty.field("model", s.Plugin.EffectiveModel()))
	fmt.Fprintln(w, sty.field("cleanup", s.Plugin.EffectiveCleanup()))
	fmt.Fprintln(w, sty.field("redact", strconv.FormatBool(s.Plugin.Redact)))
	fmt.Fprintln(w)

	fmt.Fprintln(w, sty.sectionRule("Session State", sty.width))
	fmt.Fprintln(w)

	if workspace == "" {
		fmt.Fprintln(w, "  ○ no workspace configured (use --workspace)")
		fmt.Fprintln(w)
		return nil
	}

	content, ok := unwrap(statefile.Read(workspace))
	if !ok {
		if statefile.Exists(workspace) {
			fmt.Fprintf(w, "  ○ %s is empty\n\n", paths.StateFile(workspace))
			return nil
		}
		fmt.Fprintf(w, "  ○ no %s in %s\n\n", paths.StateFileName, workspace)
		return nil
	}

	doc, err := statefile.Parse(content)
	if err != nil {
		fmt.Fprintf(w, "  %s %s is not in the expected format\n\n", sty.render(sty.yellow, "!"), paths.StateFile(workspace))
		return nil
	}

	fmt.Fprintln(w, formatStateStatus(doc, paths.StateFile(workspace), sty, now))
	return nil
}

// formatPluginStatus formats the enabled line, e.g. "● enabled".
func formatPluginStatus(s *settings.Settings, sty statusStyles) string {
	if !s.Plugin.Enabled {
		return sty.render(sty.gray, "○") + " " + sty.render(sty.bold, "disabled")
	}
	return sty.render(sty.green, "●") + " " + sty.render(sty.bold, "enabled")
}

func formatGateway(host *settings.HostConfig) string {
	addr := settings.DefaultGatewayHost + ":" + strconv.Itoa(host.GatewayPort())
	if host.GatewayToken() == "" {
		return addr + " (no token, summaries fall back to recent messages)"
	}
	return addr
}

// formatStateStatus formats the parsed state document.
func formatStateStatus(doc *statefile.Parsed, path string, sty statusStyles, now time.Time) string {
	var b strings.Builder

	b.WriteString(sty.field("file", path) + "\n")

	updated := doc.Updated
	if !doc.UpdatedAt.IsZero() {
		updated += " " + sty.render(sty.dim, "("+timeAgo(doc.UpdatedAt, now)+")")
	}
	if updated != "" {
		b.WriteString(sty.field("updated", updated) + "\n")
	}
	if doc.SessionKey != "" {
		b.WriteString(sty.field("session", sty.render(sty.cyan, doc.SessionKey)) + "\n")
	}
	if doc.Trigger != "" {
		b.WriteString(sty.field("trigger", doc.Trigger) + "\n")
	}

	kind := "summary"
	if doc.Fallback {
		kind = sty.render(sty.yellow, "fallback (recent messages)")
	}
	b.WriteString(sty.field("body", kind) + "\n")

	if len(doc.Headings) > 0 {
		b.WriteString(sty.field("sections", strings.Join(doc.Headings, ", ")) + "\n")
	}

	return b.String()
}
