// Package agent models the lifecycle event envelopes the host runtime hands
// to hooks and resolves the loosely shaped context they carry.
package agent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
)

// Hook names the host fires.
const (
	HookSessionReset = "command:new"
	HookCompaction   = "before_compaction"
	HookBootstrap    = "agent:bootstrap"
)

// EventType is a lifecycle point handled by the plugin.
type EventType int

const (
	// SessionReset fires when the user starts a new session.
	SessionReset EventType = iota + 1

	// Compaction fires before the host compresses the context window.
	Compaction

	// Bootstrap fires when a session starts and assembles its context files.
	Bootstrap
)

// String returns a human-readable name for the event type.
func (e EventType) String() string {
	switch e {
	case SessionReset:
		return "SessionReset"
	case Compaction:
		return "Compaction"
	case Bootstrap:
		return "Bootstrap"
	default:
		return "Unknown"
	}
}

// HookName returns the host hook name for the event type.
func (e EventType) HookName() string {
	switch e {
	case SessionReset:
		return HookSessionReset
	case Compaction:
		return HookCompaction
	case Bootstrap:
		return HookBootstrap
	default:
		return ""
	}
}

// HookNames lists every hook the plugin registers for, in registration order.
func HookNames() []string {
	return []string{HookSessionReset, HookCompaction, HookBootstrap}
}

// ParseEventType maps a hook name to its event type.
func ParseEventType(name string) (EventType, error) {
	switch name {
	case HookSessionReset:
		return SessionReset, nil
	case HookCompaction:
		return Compaction, nil
	case HookBootstrap:
		return Bootstrap, nil
	default:
		return 0, fmt.Errorf("unknown hook %q", name)
	}
}

// EventName joins an envelope's type and action into a hook name:
// ("command", "new") is "command:new". An empty action yields type alone.
func EventName(typ, action string) string {
	if action == "" {
		return typ
	}
	return typ + ":" + action
}

// Event is the envelope the host passes to a hook. Messages and
// Context.BootstrapFiles are the only fields hooks mutate; every other field
// of the envelope, known or not, is preserved when the event is encoded
// again.
type Event struct {
	Type       string
	Action     string
	SessionKey string
	Timestamp  string

	// Messages are shown to the user after the hook returns. Append only.
	Messages []string

	Context HookContext

	raw map[string]json.RawMessage
}

// Name returns the hook name of the envelope.
func (e *Event) Name() string {
	return EventName(e.Type, e.Action)
}

// AddMessage appends a user-visible message.
func (e *Event) AddMessage(msg string) {
	e.Messages = append(e.Messages, msg)
}

// UnmarshalJSON decodes an envelope field by field. A field of the wrong
// shape is left at its zero value instead of failing the whole envelope.
func (e *Event) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("event envelope is not a JSON object: %w", err)
	}
	*e = Event{raw: raw}

	decodeField(raw, "type", &e.Type)
	decodeField(raw, "action", &e.Action)
	decodeField(raw, "sessionKey", &e.SessionKey)
	decodeField(raw, "timestamp", &e.Timestamp)
	decodeField(raw, "messages", &e.Messages)
	if ctx, ok := raw["context"]; ok && isObject(ctx) {
		if err := json.Unmarshal(ctx, &e.Context); err != nil {
			e.Context = HookContext{}
		}
	}
	return nil
}

// MarshalJSON encodes the envelope, keeping fields it does not model.
func (e Event) MarshalJSON() ([]byte, error) {
	out := maps.Clone(e.raw)
	if out == nil {
		out = make(map[string]json.RawMessage)
	}

	setIfAbsent(out, "type", e.Type)
	setIfAbsent(out, "action", e.Action)
	setIfAbsent(out, "sessionKey", e.SessionKey)
	setIfAbsent(out, "timestamp", e.Timestamp)
	if e.Messages != nil {
		if err := setField(out, "messages", e.Messages); err != nil {
			return nil, err
		}
	}
	if ctx, ok := out["context"]; !ok || isObject(ctx) {
		if err := setField(out, "context", e.Context); err != nil {
			return nil, err
		}
	}

	return json.Marshal(out)
}

// decodeField decodes raw[key] into dst, leaving dst untouched on a missing
// key or a type mismatch.
func decodeField[T any](raw map[string]json.RawMessage, key string, dst *T) {
	value, ok := raw[key]
	if !ok {
		return
	}
	var v T
	if err := json.Unmarshal(value, &v); err != nil {
		return
	}
	*dst = v
}

func setField(out map[string]json.RawMessage, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	out[key] = data
	return nil
}

// setIfAbsent stores a non-empty string under key unless the original
// envelope already had that key.
func setIfAbsent(out map[string]json.RawMessage, key, value string) {
	if _, ok := out[key]; ok || value == "" {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	out[key] = data
}

func isObject(data json.RawMessage) bool {
	data = bytes.TrimSpace(data)
	return len(data) > 0 && data[0] == '{'
}

func isArray(data json.RawMessage) bool {
	data = bytes.TrimSpace(data)
	return len(data) > 0 && data[0] == '['
}
