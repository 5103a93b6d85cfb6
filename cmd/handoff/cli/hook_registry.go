package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/sessionhandoff/handoff/cmd/handoff/cli/agent"
	"github.com/sessionhandoff/handoff/cmd/handoff/cli/logging"
	"github.com/sessionhandoff/handoff/cmd/handoff/cli/settings"
)

// HookFunc handles one lifecycle event. It may mutate the event's messages
// and bootstrap files.
type HookFunc func(ctx context.Context, event *agent.Event) error

// HookAPI is the host's hook registration surface.
type HookAPI interface {
	RegisterHook(events []string, fn HookFunc)
}

// Register binds the session reset, compaction and bootstrap handlers to
// api. Nothing is registered when cfg is disabled, and nil is returned.
func Register(ctx context.Context, api HookAPI, cfg settings.PluginConfig, opts ...LifecycleOption) *Lifecycle {
	if !cfg.Enabled {
		logging.Info(ctx, "plugin disabled, no hooks registered")
		return nil
	}

	l := NewLifecycle(cfg, opts...)
	for _, typ := range []agent.EventType{agent.SessionReset, agent.Compaction, agent.Bootstrap} {
		api.RegisterHook([]string{typ.HookName()}, func(ctx context.Context, event *agent.Event) error {
			return l.Dispatch(ctx, typ, event)
		})
	}

	logging.Debug(ctx, "hooks registered",
		slog.Any("hooks", agent.HookNames()),
		slog.String("model", cfg.EffectiveModel()),
		slog.String("cleanup", cfg.EffectiveCleanup()),
	)
	return l
}

// HookRegistry is an in-process HookAPI. The hooks command registers into
// one and runs the event it received through it.
type HookRegistry struct {
	hooks map[string][]HookFunc
}

// NewHookRegistry returns an empty registry.
func NewHookRegistry() *HookRegistry {
	return &HookRegistry{hooks: make(map[string][]HookFunc)}
}

// RegisterHook implements HookAPI.
func (r *HookRegistry) RegisterHook(events []string, fn HookFunc) {
	for _, name := range events {
		r.hooks[name] = append(r.hooks[name], fn)
	}
}

// Names returns the registered hook names, sorted.
func (r *HookRegistry) Names() []string {
	names := make([]string, 0, len(r.hooks))
	for name := range r.hooks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run calls every handler registered for name, in registration order. It
// returns the joined handler errors. An unregistered name is not an error.
func (r *HookRegistry) Run(ctx context.Context, name string, event *agent.Event) error {
	var errs []error
	for _, fn := range r.hooks[name] {
		if err := fn(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
