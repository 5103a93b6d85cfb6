// lifecycle.go implements the lifecycle event dispatcher.
// Session reset and compaction summarize the outgoing conversation into the
// workspace state file; bootstrap hands that file back to the host.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/sessionhandoff/handoff/cmd/handoff/cli/agent"
	"github.com/sessionhandoff/handoff/cmd/handoff/cli/logging"
	"github.com/sessionhandoff/handoff/cmd/handoff/cli/paths"
	"github.com/sessionhandoff/handoff/cmd/handoff/cli/redact"
	"github.com/sessionhandoff/handoff/cmd/handoff/cli/settings"
	"github.com/sessionhandoff/handoff/cmd/handoff/cli/statefile"
	"github.com/sessionhandoff/handoff/cmd/handoff/cli/summarize"
	"github.com/sessionhandoff/handoff/cmd/handoff/cli/transcript"
)

// ConfirmationMessage is shown to the user after a reset saved the state file.
const ConfirmationMessage = "🧠 Session state saved"

// GeneratorFactory builds the summary generator for one event. host is the
// host config seen by that event and is never nil.
type GeneratorFactory func(host *settings.HostConfig, cfg settings.PluginConfig, agentID string) summarize.Generator

// Redactor scrubs turns before they are summarized or written.
type Redactor func([]transcript.Turn) []transcript.Turn

// Lifecycle handles lifecycle events. All of its collaborators are fixed at
// construction.
type Lifecycle struct {
	config       settings.PluginConfig
	host         *settings.HostConfig
	newGenerator GeneratorFactory
	now          func() time.Time
	redact       Redactor
	logger       *slog.Logger
}

// LifecycleOption configures a Lifecycle.
type LifecycleOption func(*Lifecycle)

// WithHostConfig sets the host config used when an event carries none.
func WithHostConfig(host *settings.HostConfig) LifecycleOption {
	return func(l *Lifecycle) { l.host = host }
}

// WithGeneratorFactory replaces the gateway generator.
func WithGeneratorFactory(f GeneratorFactory) LifecycleOption {
	return func(l *Lifecycle) { l.newGenerator = f }
}

// WithClock sets the time source for document timestamps.
func WithClock(now func() time.Time) LifecycleOption {
	return func(l *Lifecycle) { l.now = now }
}

// WithRedactor replaces the configured redactor.
func WithRedactor(r Redactor) LifecycleOption {
	return func(l *Lifecycle) { l.redact = r }
}

// WithLogger sets the logger handlers log to.
func WithLogger(logger *slog.Logger) LifecycleOption {
	return func(l *Lifecycle) { l.logger = logger }
}

// NewLifecycle returns a Lifecycle for cfg.
func NewLifecycle(cfg settings.PluginConfig, opts ...LifecycleOption) *Lifecycle {
	l := &Lifecycle{
		config:       cfg,
		host:         &settings.HostConfig{},
		newGenerator: GatewayGeneratorFactory,
		now:          time.Now,
		redact:       redact.Noop,
		logger:       slog.New(slog.DiscardHandler),
	}
	if cfg.Redact {
		l.redact = redact.Turns
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.host == nil {
		l.host = &settings.HostConfig{}
	}
	if l.redact == nil {
		l.redact = redact.Noop
	}
	if l.now == nil {
		l.now = time.Now
	}
	if l.logger == nil {
		l.logger = slog.New(slog.DiscardHandler)
	}
	return l
}

// GatewayGeneratorFactory builds a summarize.GatewayGenerator for the
// gateway described by host, with the cleanup strategy cfg selects.
func GatewayGeneratorFactory(host *settings.HostConfig, cfg settings.PluginConfig, agentID string) summarize.Generator {
	endpoint := summarize.Endpoint{
		Host:  settings.DefaultGatewayHost,
		Port:  host.GatewayPort(),
		Token: host.GatewayToken(),
	}
	client := &http.Client{Timeout: 120 * time.Second}

	cleaner, err := summarize.NewCleaner(cfg.EffectiveCleanup(), endpoint, agentID, client)
	if err != nil {
		cleaner = summarize.NopCleaner{}
	}

	return summarize.NewGatewayGenerator(endpoint, cfg.EffectiveModel(), agentID,
		summarize.WithCleaner(cleaner),
		summarize.WithHTTPClient(client),
	)
}

// Dispatch routes event to the handler for typ. Handler failures are logged
// and never returned; the error result is reserved for invalid input.
func (l *Lifecycle) Dispatch(ctx context.Context, typ agent.EventType, event *agent.Event) error {
	if event == nil {
		return errors.New("event cannot be nil")
	}

	ctx = logging.WithLogger(ctx, l.logger)
	ctx = logging.WithComponent(ctx, "lifecycle")
	ctx = logging.WithHook(ctx, typ.HookName())
	ctx = logging.WithSession(ctx, event.SessionKey)

	switch typ {
	case agent.SessionReset:
		l.guard(ctx, func() { l.handleSessionReset(ctx, event) })
	case agent.Compaction:
		l.guard(ctx, func() { l.handleCompaction(ctx, event) })
	case agent.Bootstrap:
		l.guard(ctx, func() { l.handleBootstrap(ctx, event) })
	default:
		return fmt.Errorf("unknown lifecycle event type: %d", typ)
	}
	return nil
}

// guard runs f and logs any panic instead of letting it reach the host.
func (l *Lifecycle) guard(ctx context.Context, f func()) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error(ctx, "hook panicked",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()
	f()
}

// handleSessionReset saves the outgoing session and tells the user.
func (l *Lifecycle) handleSessionReset(ctx context.Context, event *agent.Event) {
	logging.Info(ctx, "session-reset")

	if l.updateSessionState(ctx, event, statefile.TriggerReset) {
		event.AddMessage(ConfirmationMessage)
	}
}

// handleCompaction saves the session before the host compacts it. It adds
// no message.
func (l *Lifecycle) handleCompaction(ctx context.Context, event *agent.Event) {
	logging.Info(ctx, "compaction")

	l.updateSessionState(ctx, event, statefile.TriggerCompaction)
}

// handleBootstrap injects the workspace state file into the new session's
// bootstrap files.
func (l *Lifecycle) handleBootstrap(ctx context.Context, event *agent.Event) {
	logging.Debug(ctx, "bootstrap")

	workspace, ok := unwrap(agent.BootstrapWorkspaceDir(&event.Context))
	if !ok {
		return
	}

	content, ok := unwrap(statefile.Read(workspace))
	if !ok {
		logging.Debug(ctx, "no session state to inject",
			slog.String("workspace", workspace),
		)
		return
	}

	injected := event.Context.AddBootstrapFile(agent.BootstrapFile{
		Path:    paths.StateFileName,
		Content: content,
		Virtual: true,
	})
	if !injected {
		logging.Debug(ctx, "event has no bootstrap file list")
		return
	}
	logging.Info(ctx, "injected session state into bootstrap",
		slog.String("workspace", workspace),
	)
}

// updateSessionState runs the save pipeline: resolve paths, read the last
// turns, summarize (or fall back), write the document. It reports whether a
// document was written.
func (l *Lifecycle) updateSessionState(ctx context.Context, event *agent.Event, trigger string) bool {
	start := time.Now()

	workspace, ok := unwrap(agent.ResolveWorkspaceDir(&event.Context))
	if !ok {
		logging.Warn(ctx, "no workspace directory, skipping session state")
		return false
	}
	transcriptPath := agent.ResolveTranscriptPath(&event.Context).UnwrapOr("")

	turns := transcript.ReadLastTurns(ctx, transcriptPath, transcript.MaxTurns)
	if len(turns) == 0 {
		logging.Info(ctx, "no conversation turns, skipping session state",
			slog.String("transcript", transcriptPath),
		)
		return false
	}
	turns = l.redact(turns)

	agentID := summarize.AgentIDFromSessionKey(event.SessionKey)
	gen := l.newGenerator(l.hostConfig(event), l.config, agentID)

	summary := fn.None[string]()
	if gen != nil {
		summary = gen.Summarize(ctx, summarize.FormatConversation(turns))
	}
	body := summary.UnwrapOrFunc(func() string {
		logging.Info(ctx, "using fallback summary")
		return summarize.Fallback(turns)
	})

	doc := statefile.Document{
		UpdatedAt:  l.now(),
		SessionKey: event.SessionKey,
		Trigger:    trigger,
		Body:       body,
	}

	if logging.Enabled(ctx, slog.LevelDebug) {
		previous := statefile.Read(workspace).UnwrapOr("")
		inserted, deleted := statefile.Changes(previous, doc.Render())
		logging.Debug(ctx, "session state changes",
			slog.Int("lines_inserted", inserted),
			slog.Int("lines_deleted", deleted),
		)
	}

	if err := statefile.Write(workspace, doc); err != nil {
		logging.Error(ctx, "failed to save session state",
			slog.String("error", err.Error()),
		)
		return false
	}

	logging.LogDuration(ctx, slog.LevelInfo, "session state saved", start,
		slog.String("trigger", trigger),
		slog.String("path", paths.StateFile(workspace)),
		slog.Int("turns", len(turns)),
		slog.Bool("fallback", summarize.IsFallback(body)),
	)
	return true
}

// hostConfig prefers the config carried by the event over the one loaded
// at registration.
func (l *Lifecycle) hostConfig(event *agent.Event) *settings.HostConfig {
	if event.Context.Cfg != nil {
		return event.Context.Cfg
	}
	return l.host
}

// unwrap splits an optional string for use in if statements.
func unwrap(o fn.Option[string]) (string, bool) {
	return o.UnwrapOr(""), o.IsSome()
}
