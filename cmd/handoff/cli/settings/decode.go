package settings

import (
	"bytes"
	"encoding/json"
)

// The host config is written by the host and by users. Each key is decoded
// on its own so that a value of the wrong type only blanks that key.

// UnmarshalJSON decodes the host config key by key.
func (h *HostConfig) UnmarshalJSON(data []byte) error {
	raw, err := objectFields(data)
	if err != nil {
		return err
	}
	*h = HostConfig{}
	decodeField(raw, "gateway", &h.Gateway)
	decodeField(raw, "agents", &h.Agents)
	decodeField(raw, "workspace", &h.Workspace)
	decodeField(raw, "plugins", &h.Plugins)
	return nil
}

// UnmarshalJSON decodes the gateway section key by key.
func (g *GatewayConfig) UnmarshalJSON(data []byte) error {
	raw, err := objectFields(data)
	if err != nil {
		return err
	}
	*g = GatewayConfig{}
	decodeField(raw, "port", &g.Port)
	decodeField(raw, "auth", &g.Auth)
	return nil
}

// UnmarshalJSON decodes the gateway auth section key by key.
func (a *GatewayAuth) UnmarshalJSON(data []byte) error {
	raw, err := objectFields(data)
	if err != nil {
		return err
	}
	*a = GatewayAuth{}
	decodeField(raw, "token", &a.Token)
	return nil
}

// UnmarshalJSON decodes the agents section key by key.
func (a *AgentsConfig) UnmarshalJSON(data []byte) error {
	raw, err := objectFields(data)
	if err != nil {
		return err
	}
	*a = AgentsConfig{}
	decodeField(raw, "defaults", &a.Defaults)
	return nil
}

// UnmarshalJSON decodes the agent defaults key by key.
func (d *AgentDefaults) UnmarshalJSON(data []byte) error {
	raw, err := objectFields(data)
	if err != nil {
		return err
	}
	*d = AgentDefaults{}
	decodeField(raw, "workspace", &d.Workspace)
	return nil
}

// UnmarshalJSON decodes the workspace section key by key.
func (w *WorkspaceConfig) UnmarshalJSON(data []byte) error {
	raw, err := objectFields(data)
	if err != nil {
		return err
	}
	*w = WorkspaceConfig{}
	decodeField(raw, "dir", &w.Dir)
	return nil
}

// UnmarshalJSON decodes the plugin entries one by one. An entry that is
// not an object is dropped.
func (p *PluginsConfig) UnmarshalJSON(data []byte) error {
	raw, err := objectFields(data)
	if err != nil {
		return err
	}
	*p = PluginsConfig{}

	var entries map[string]json.RawMessage
	decodeField(raw, "entries", &entries)
	for id, value := range entries {
		var entry PluginEntry
		if err := json.Unmarshal(value, &entry); err != nil {
			continue
		}
		if p.Entries == nil {
			p.Entries = make(map[string]PluginEntry, len(entries))
		}
		p.Entries[id] = entry
	}
	return nil
}

// UnmarshalJSON decodes a plugin entry key by key. Config is kept only when
// it is an object.
func (e *PluginEntry) UnmarshalJSON(data []byte) error {
	raw, err := objectFields(data)
	if err != nil {
		return err
	}
	*e = PluginEntry{}

	var enabled bool
	if value, ok := raw["enabled"]; ok && json.Unmarshal(value, &enabled) == nil {
		e.Enabled = &enabled
	}
	if value, ok := raw["config"]; ok && isObject(value) {
		e.Config = value
	}
	return nil
}

// decodePluginConfig applies the keys of a plugin entry's config object to
// cfg. Keys of the wrong type keep their current value.
func decodePluginConfig(data []byte, cfg *PluginConfig) error {
	raw, err := objectFields(data)
	if err != nil {
		return err
	}
	decodeField(raw, "enabled", &cfg.Enabled)
	decodeField(raw, "debug", &cfg.Debug)
	decodeField(raw, "model", &cfg.Model)
	decodeField(raw, "cleanup", &cfg.Cleanup)
	decodeField(raw, "redact", &cfg.Redact)
	decodeField(raw, "log_level", &cfg.LogLevel)
	return nil
}

// objectFields splits a JSON object into its raw members. null yields no
// members; any other non-object is an error.
func objectFields(data []byte) (map[string]json.RawMessage, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err //nolint:wrapcheck // the caller treats the key as absent
	}
	return raw, nil
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

func isObject(data json.RawMessage) bool {
	data = bytes.TrimSpace(data)
	return len(data) > 0 && data[0] == '{'
}
