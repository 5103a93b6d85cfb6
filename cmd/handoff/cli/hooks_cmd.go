package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/sessionhandoff/handoff/cmd/handoff/cli/agent"
	"github.com/sessionhandoff/handoff/cmd/handoff/cli/logging"
	"github.com/sessionhandoff/handoff/cmd/handoff/cli/settings"
	"github.com/spf13/cobra"
)

// maxEnvelopeSize bounds the event envelope read from stdin.
const maxEnvelopeSize = 8 << 20

func newHooksCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:    "hooks",
		Short:  "Hook handlers",
		Long:   "Commands called by the host runtime. These are internal and not for direct user use.",
		Hidden: true,
	}

	for _, name := range agent.HookNames() {
		cmd.AddCommand(newHookVerbCmd(opts, name))
	}

	return cmd
}

// newHookVerbCmd creates the command for one hook. It reads the event
// envelope from stdin and writes the envelope, with the handler's changes,
// to stdout.
func newHookVerbCmd(opts *rootOptions, hookName string) *cobra.Command {
	return &cobra.Command{
		Use:    hookName,
		Hidden: true,
		Short:  "Called on " + hookName,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.loadSettings()
			if err != nil {
				// A broken config must not break the host; run with defaults.
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
				s = settings.Default()
			}

			level := logging.ResolveLevel(s.Plugin.LogLevel, s.Plugin.Debug)
			logger := logging.New(cmd.ErrOrStderr(), level)
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx = logging.WithComponent(logging.WithLogger(ctx, logger), "hooks")

			return runHook(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), hookName, s,
				WithLogger(logger),
				WithHostConfig(s.Host),
			)
		},
	}
}

// runHook decodes one envelope from r, runs it through the registered
// handlers for hookName and encodes the result to w.
func runHook(ctx context.Context, r io.Reader, w io.Writer, hookName string, s *settings.Settings, opts ...LifecycleOption) error {
	start := time.Now()

	if _, err := agent.ParseEventType(hookName); err != nil {
		return err
	}

	event, err := readEnvelope(r)
	if err != nil {
		return err
	}

	registry := NewHookRegistry()
	Register(ctx, registry, s.Plugin, opts...)

	logging.Debug(ctx, "hook invoked",
		slog.String("hook", hookName),
		slog.String("session_key", event.SessionKey),
	)

	hookErr := registry.Run(ctx, hookName, event)

	logging.LogDuration(ctx, slog.LevelDebug, "hook completed", start,
		slog.String("hook", hookName),
		slog.Bool("success", hookErr == nil),
	)
	if hookErr != nil {
		return hookErr
	}

	out, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	out = append(out, '\n')
	if _, err := w.Write(out); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	return nil
}

// readEnvelope decodes the event envelope. Empty input is an empty event.
func readEnvelope(r io.Reader) (*agent.Event, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxEnvelopeSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read event: %w", err)
	}
	if len(data) > maxEnvelopeSize {
		return nil, fmt.Errorf("event exceeds %d bytes", maxEnvelopeSize)
	}

	event := &agent.Event{}
	if len(bytes.TrimSpace(data)) == 0 {
		return event, nil
	}
	if err := json.Unmarshal(data, event); err != nil {
		return nil, fmt.Errorf("failed to parse event: %w", err)
	}
	return event, nil
}
