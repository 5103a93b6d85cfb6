package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/huh"
	"github.com/sessionhandoff/handoff/cmd/handoff/cli/paths"
	"github.com/sessionhandoff/handoff/cmd/handoff/cli/settings"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// setupFlags are the values given on the command line. Only flags the user
// set are applied.
type setupFlags struct {
	model   string
	cleanup string
	debug   bool
	redact  bool
	disable bool

	changed func(name string) bool
}

// anySet reports whether at least one setting flag was given.
func (f setupFlags) anySet() bool {
	for _, name := range []string{"model", "cleanup", "debug", "redact", "disable"} {
		if f.changed(name) {
			return true
		}
	}
	return false
}

// apply writes the given flags over cfg and returns the keys it set.
func (f setupFlags) apply(cfg *settings.PluginConfig) []string {
	var keys []string
	if f.changed("model") {
		cfg.Model = f.model
		keys = append(keys, settings.KeyModel)
	}
	if f.changed("cleanup") {
		cfg.Cleanup = f.cleanup
		keys = append(keys, settings.KeyCleanup)
	}
	if f.changed("debug") {
		cfg.Debug = f.debug
		keys = append(keys, settings.KeyDebug)
	}
	if f.changed("redact") {
		cfg.Redact = f.redact
		keys = append(keys, settings.KeyRedact)
	}
	if f.changed("disable") {
		cfg.Enabled = !f.disable
		keys = append(keys, settings.KeyEnabled)
	}
	return keys
}

// setupFormFunc edits cfg interactively.
type setupFormFunc func(cfg *settings.PluginConfig) error

func newSetupCmd(opts *rootOptions) *cobra.Command {
	flags := setupFlags{}

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Configure handoff",
		Long: `Write handoff's local settings file (session-handoff.local.json next to the
host config). Only the values set here are written, and they override the
plugin entry in the host config.

Without flags, and when a terminal is available, an interactive form is shown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags.changed = cmd.Flags().Changed

			var form setupFormFunc
			if !flags.anySet() && canPromptInteractively() {
				form = runSetupForm
			}
			return runSetup(cmd.OutOrStdout(), opts.resolveConfigPath(), flags, form)
		},
	}

	cmd.Flags().StringVar(&flags.model, "model", "", "Model used for summaries (default "+settings.DefaultModel+")")
	cmd.Flags().StringVar(&flags.cleanup, "cleanup", "", "Worker session cleanup: rpc, registry or none")
	cmd.Flags().BoolVar(&flags.debug, "debug", false, "Log at debug level")
	cmd.Flags().BoolVar(&flags.redact, "redact", true, "Redact secrets before summarizing")
	cmd.Flags().BoolVar(&flags.disable, "disable", false, "Disable all hooks")
	//nolint:errcheck,gosec // completion is optional, flag is defined above
	cmd.RegisterFlagCompletionFunc("cleanup", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{settings.CleanupRPC, settings.CleanupRegistry, settings.CleanupNone}, cobra.ShellCompDirectiveNoFileComp
	})

	defaultFlagErr := cmd.FlagErrorFunc()
	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		var valErr *pflag.ValueRequiredError
		if errors.As(err, &valErr) && valErr.GetSpecifiedName() == "cleanup" {
			fmt.Fprintln(c.ErrOrStderr(), "Missing cleanup strategy. Use one of: rpc, registry, none.")
			return NewSilentError(errors.New("missing cleanup strategy"))
		}
		return defaultFlagErr(c, err)
	})

	return cmd
}

// runSetup starts from the effective settings (host config plus local
// overrides), applies flags (or the form, when one is given) and saves only
// the keys that were set to the local override file.
func runSetup(w io.Writer, configPath string, flags setupFlags, form setupFormFunc) error {
	s, err := settings.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}
	cfg := s.Plugin

	var keys []string
	if form != nil {
		before := cfg
		if err := form(&cfg); err != nil {
			return fmt.Errorf("setup form: %w", err)
		}
		keys = settings.ChangedKeys(before, cfg)
	} else {
		keys = flags.apply(&cfg)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(w, "Invalid settings: %v\n", err)
		return NewSilentError(err)
	}

	if err := settings.SaveLocal(configPath, cfg, keys...); err != nil {
		return fmt.Errorf("saving local settings: %w", err)
	}

	state := "enabled"
	if !cfg.Enabled {
		state = "disabled"
	}
	fmt.Fprintf(w, "✓ Saved %s (handoff %s, model %s, cleanup %s)\n",
		paths.LocalSettingsFile(configPath), state, cfg.EffectiveModel(), cfg.EffectiveCleanup())
	return nil
}

// runSetupForm shows the interactive settings form.
func runSetupForm(cfg *settings.PluginConfig) error {
	model := cfg.EffectiveModel()
	cleanup := cfg.EffectiveCleanup()

	form := NewAccessibleForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Enable session handoff?").
				Description("Save SESSION-STATE.md on reset and compaction, and load it on bootstrap.").
				Affirmative("Yes").
				Negative("No").
				Value(&cfg.Enabled),
			huh.NewInput().
				Title("Summary model").
				Description("Model the gateway uses to write the summary.").
				Value(&model),
			huh.NewSelect[string]().
				Title("Worker session cleanup").
				Description("How the summarization session is removed afterwards.").
				Options(
					huh.NewOption("Gateway RPC (recommended)", settings.CleanupRPC),
					huh.NewOption("Edit the local session registry", settings.CleanupRegistry),
					huh.NewOption("Leave it", settings.CleanupNone),
				).
				Value(&cleanup),
			huh.NewConfirm().
				Title("Redact secrets?").
				Description("Replace credentials found in the conversation before it is summarized.").
				Value(&cfg.Redact),
		),
	)

	if err := form.Run(); err != nil {
		return fmt.Errorf("running form: %w", err)
	}

	if model != cfg.EffectiveModel() {
		cfg.Model = model
	}
	if cleanup != cfg.EffectiveCleanup() {
		cfg.Cleanup = cleanup
	}
	return nil
}
