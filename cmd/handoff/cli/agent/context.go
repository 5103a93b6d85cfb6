package agent

import (
	"encoding/json"
	"maps"

	"github.com/sessionhandoff/handoff/cmd/handoff/cli/settings"
)

// HookContext is the context object of an event envelope. Which fields are
// present depends on the lifecycle point that fired.
type HookContext struct {
	WorkspaceDir string
	SessionID    string
	SessionFile  string

	// SessionEntry describes the current session.
	SessionEntry *SessionEntry

	// PreviousSessionEntry describes the session being replaced. It is set on
	// session reset and carries the transcript to summarize.
	PreviousSessionEntry *SessionEntry

	// BootstrapFiles is nil unless the envelope carried a bootstrap file array.
	BootstrapFiles *[]BootstrapFile

	// Cfg is the host runtime configuration as seen by the host.
	Cfg *settings.HostConfig

	raw map[string]json.RawMessage
}

// SessionEntry is the host's descriptor of a session.
type SessionEntry struct {
	TranscriptPath     string              `json:"transcriptPath,omitempty"`
	SessionFile        string              `json:"sessionFile,omitempty"`
	SystemPromptReport *SystemPromptReport `json:"systemPromptReport,omitempty"`
}

// SystemPromptReport carries what the host reported when building the
// session's system prompt.
type SystemPromptReport struct {
	WorkspaceDir string `json:"workspaceDir,omitempty"`
}

// UnmarshalJSON decodes the entry field by field.
func (s *SessionEntry) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err //nolint:wrapcheck // the entry is dropped by the caller
	}
	*s = SessionEntry{}
	decodeField(raw, "transcriptPath", &s.TranscriptPath)
	decodeField(raw, "sessionFile", &s.SessionFile)
	s.SystemPromptReport = decodeObject[SystemPromptReport](raw, "systemPromptReport")
	return nil
}

// BootstrapFile is a file injected into a new session's context.
type BootstrapFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
	Virtual bool   `json:"virtual,omitempty"`

	raw json.RawMessage
}

// UnmarshalJSON keeps the original encoding so entries added by the host
// survive re-encoding unchanged.
func (f *BootstrapFile) UnmarshalJSON(data []byte) error {
	type plain BootstrapFile
	var p plain
	if isObject(data) {
		if err := json.Unmarshal(data, &p); err != nil {
			p = plain{}
		}
	}
	*f = BootstrapFile(p)
	f.raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON returns the original encoding of entries read from an
// envelope and the field encoding of entries created here.
func (f BootstrapFile) MarshalJSON() ([]byte, error) {
	if f.raw != nil {
		return f.raw, nil
	}
	type plain BootstrapFile
	return json.Marshal(plain(f))
}

// ActiveSessionEntry returns the previous session entry if there is one,
// else the current one.
func (c *HookContext) ActiveSessionEntry() *SessionEntry {
	if c.PreviousSessionEntry != nil {
		return c.PreviousSessionEntry
	}
	return c.SessionEntry
}

// HasBootstrapFiles reports whether the envelope carried a bootstrap file array.
func (c *HookContext) HasBootstrapFiles() bool {
	return c.BootstrapFiles != nil
}

// AddBootstrapFile appends f to the bootstrap file array. It reports false,
// and does nothing, when the envelope had no such array.
func (c *HookContext) AddBootstrapFile(f BootstrapFile) bool {
	if c.BootstrapFiles == nil {
		return false
	}
	*c.BootstrapFiles = append(*c.BootstrapFiles, f)
	return true
}

// UnmarshalJSON decodes the context field by field. A field of the wrong
// shape is treated as absent.
func (c *HookContext) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err //nolint:wrapcheck // surfaced by Event.UnmarshalJSON
	}
	*c = HookContext{raw: raw}

	decodeField(raw, "workspaceDir", &c.WorkspaceDir)
	decodeField(raw, "sessionId", &c.SessionID)
	decodeField(raw, "sessionFile", &c.SessionFile)
	c.SessionEntry = decodeObject[SessionEntry](raw, "sessionEntry")
	c.PreviousSessionEntry = decodeObject[SessionEntry](raw, "previousSessionEntry")
	c.Cfg = decodeObject[settings.HostConfig](raw, "cfg")

	if value, ok := raw["bootstrapFiles"]; ok && isArray(value) {
		var files []BootstrapFile
		if err := json.Unmarshal(value, &files); err == nil {
			if files == nil {
				files = []BootstrapFile{}
			}
			c.BootstrapFiles = &files
		}
	}
	return nil
}

// MarshalJSON encodes the context, keeping fields it does not model. Fields
// read from an envelope are written back as they were, except bootstrapFiles.
func (c HookContext) MarshalJSON() ([]byte, error) {
	out := maps.Clone(c.raw)
	if out == nil {
		out = make(map[string]json.RawMessage)
	}

	setIfAbsent(out, "workspaceDir", c.WorkspaceDir)
	setIfAbsent(out, "sessionId", c.SessionID)
	setIfAbsent(out, "sessionFile", c.SessionFile)
	for key, entry := range map[string]*SessionEntry{
		"sessionEntry":         c.SessionEntry,
		"previousSessionEntry": c.PreviousSessionEntry,
	} {
		if _, ok := out[key]; ok || entry == nil {
			continue
		}
		if err := setField(out, key, entry); err != nil {
			return nil, err
		}
	}
	if _, ok := out["cfg"]; !ok && c.Cfg != nil {
		if err := setField(out, "cfg", c.Cfg); err != nil {
			return nil, err
		}
	}
	if c.BootstrapFiles != nil {
		if err := setField(out, "bootstrapFiles", *c.BootstrapFiles); err != nil {
			return nil, err
		}
	}

	return json.Marshal(out)
}

// decodeObject decodes raw[key] into a new T when it holds a JSON object of
// the right shape. It returns nil otherwise.
func decodeObject[T any](raw map[string]json.RawMessage, key string) *T {
	value, ok := raw[key]
	if !ok || !isObject(value) {
		return nil
	}
	v := new(T)
	if err := json.Unmarshal(value, v); err != nil {
		return nil
	}
	return v
}
