package agent

import (
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/sessionhandoff/handoff/cmd/handoff/cli/paths"
)

// ResolveWorkspaceDir finds the workspace the state file belongs in. The
// first non-empty of these wins: the context's workspace directory, the
// workspace reported by the previous or current session entry, the default
// agent workspace from the host config, the host config's generic workspace
// directory.
func ResolveWorkspaceDir(c *HookContext) fn.Option[string] {
	if c == nil {
		return fn.None[string]()
	}
	if c.WorkspaceDir != "" {
		return fn.Some(c.WorkspaceDir)
	}
	if entry := c.ActiveSessionEntry(); entry != nil && entry.SystemPromptReport != nil {
		if dir := entry.SystemPromptReport.WorkspaceDir; dir != "" {
			return fn.Some(dir)
		}
	}
	if c.Cfg != nil {
		if dir := c.Cfg.Agents.Defaults.Workspace; dir != "" {
			return fn.Some(paths.ExpandHome(dir))
		}
		if dir := c.Cfg.Workspace.Dir; dir != "" {
			return fn.Some(paths.ExpandHome(dir))
		}
	}
	return fn.None[string]()
}

// BootstrapWorkspaceDir returns the context's own workspace directory. The
// bootstrap hook does not consult any fallback.
func BootstrapWorkspaceDir(c *HookContext) fn.Option[string] {
	if c == nil || c.WorkspaceDir == "" {
		return fn.None[string]()
	}
	return fn.Some(c.WorkspaceDir)
}

// ResolveTranscriptPath finds the transcript to summarize: the previous or
// current session entry's transcript path, then its session file, then the
// context's session file.
func ResolveTranscriptPath(c *HookContext) fn.Option[string] {
	if c == nil {
		return fn.None[string]()
	}
	if entry := c.ActiveSessionEntry(); entry != nil {
		if entry.TranscriptPath != "" {
			return fn.Some(entry.TranscriptPath)
		}
		if entry.SessionFile != "" {
			return fn.Some(entry.SessionFile)
		}
	}
	if c.SessionFile != "" {
		return fn.Some(c.SessionFile)
	}
	return fn.None[string]()
}
