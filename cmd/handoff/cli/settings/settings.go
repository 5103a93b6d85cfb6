// Package settings provides configuration loading for handoff.
//
// Two sources are read: the host runtime's config file (JSON with comments,
// ~/.openclaw/openclaw.json by default), which carries the gateway endpoint,
// workspace defaults and the plugin's own entry, and an optional local
// override file (session-handoff.local.json next to it) written by
// `handoff setup`. Local values win key by key.
package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sessionhandoff/handoff/cmd/handoff/cli/paths"
	"github.com/tidwall/jsonc"
)

const (
	// PluginID is the key of this plugin under plugins.entries in the host config.
	PluginID = "session-handoff"

	// LegacyPluginID is the key used by earlier releases.
	LegacyPluginID = "simme-memory"

	// DefaultGatewayPort is the host gateway's default HTTP port.
	DefaultGatewayPort = 18789

	// DefaultGatewayHost is where the gateway listens.
	DefaultGatewayHost = "localhost"

	// DefaultModel is the model used for summarization when none is configured.
	DefaultModel = "anthropic/claude-haiku-4-5"
)

// Cleanup strategies for the ephemeral worker session.
const (
	CleanupRPC      = "rpc"
	CleanupRegistry = "registry"
	CleanupNone     = "none"
)

// ErrInvalidCleanup is returned for an unknown cleanup strategy name.
var ErrInvalidCleanup = errors.New("invalid cleanup strategy")

// PluginConfig is the plugin's configuration. It is read once at
// registration and passed by value from then on.
type PluginConfig struct {
	// Enabled turns all hooks on or off. Defaults to true.
	Enabled bool `json:"enabled"`

	// Debug raises the log level to debug.
	Debug bool `json:"debug,omitempty"`

	// Model overrides the summarization model.
	Model string `json:"model,omitempty"`

	// Cleanup selects how the worker session is removed after a summary:
	// "rpc" (default), "registry" or "none".
	Cleanup string `json:"cleanup,omitempty"`

	// Redact scrubs secrets from turns before they are summarized or
	// written. Defaults to true.
	Redact bool `json:"redact"`

	// LogLevel sets the logging verbosity (debug, info, warn, error).
	// HANDOFF_LOG_LEVEL takes precedence.
	LogLevel string `json:"log_level,omitempty"`
}

// DefaultPluginConfig returns the configuration used when nothing is configured.
func DefaultPluginConfig() PluginConfig {
	return PluginConfig{
		Enabled: true,
		Cleanup: CleanupRPC,
		Redact:  true,
	}
}

// EffectiveModel returns the configured model or DefaultModel.
func (c PluginConfig) EffectiveModel() string {
	if c.Model != "" {
		return c.Model
	}
	return DefaultModel
}

// EffectiveCleanup returns the configured cleanup strategy or CleanupRPC.
func (c PluginConfig) EffectiveCleanup() string {
	if c.Cleanup != "" {
		return c.Cleanup
	}
	return CleanupRPC
}

// Validate checks enumerated fields.
func (c PluginConfig) Validate() error {
	switch c.Cleanup {
	case "", CleanupRPC, CleanupRegistry, CleanupNone:
		return nil
	default:
		return fmt.Errorf("%w: %q (want %s, %s or %s)", ErrInvalidCleanup, c.Cleanup, CleanupRPC, CleanupRegistry, CleanupNone)
	}
}

// HostConfig is the subset of the host runtime configuration handoff reads.
// The same shape arrives in lifecycle events as context.cfg.
type HostConfig struct {
	Gateway   GatewayConfig   `json:"gateway"`
	Agents    AgentsConfig    `json:"agents"`
	Workspace WorkspaceConfig `json:"workspace"`
	Plugins   PluginsConfig   `json:"plugins"`
}

// GatewayConfig describes the host gateway.
type GatewayConfig struct {
	Port int         `json:"port,omitempty"`
	Auth GatewayAuth `json:"auth"`
}

// GatewayAuth holds the gateway bearer token.
type GatewayAuth struct {
	Token string `json:"token,omitempty"`
}

// AgentsConfig holds agent defaults.
type AgentsConfig struct {
	Defaults AgentDefaults `json:"defaults"`
}

// AgentDefaults holds the default agent workspace.
type AgentDefaults struct {
	Workspace string `json:"workspace,omitempty"`
}

// WorkspaceConfig is the generic workspace section.
type WorkspaceConfig struct {
	Dir string `json:"dir,omitempty"`
}

// PluginsConfig holds per-plugin entries keyed by plugin ID.
type PluginsConfig struct {
	Entries map[string]PluginEntry `json:"entries,omitempty"`
}

// PluginEntry is one plugin's entry. Config is kept raw so that it can be
// decoded over DefaultPluginConfig.
type PluginEntry struct {
	Enabled *bool           `json:"enabled,omitempty"`
	Config  json.RawMessage `json:"config,omitempty"`
}

// GatewayPort returns the configured port or DefaultGatewayPort.
func (h *HostConfig) GatewayPort() int {
	if h == nil || h.Gateway.Port <= 0 {
		return DefaultGatewayPort
	}
	return h.Gateway.Port
}

// GatewayToken returns the gateway bearer token, or "" if none is configured.
func (h *HostConfig) GatewayToken() string {
	if h == nil {
		return ""
	}
	return h.Gateway.Auth.Token
}

// PluginConfig extracts this plugin's configuration from the host config,
// falling back to the legacy entry key. Missing entries yield defaults.
func (h *HostConfig) PluginConfig() (PluginConfig, error) {
	cfg := DefaultPluginConfig()
	if h == nil {
		return cfg, nil
	}
	entry, ok := h.Plugins.Entries[PluginID]
	if !ok {
		entry, ok = h.Plugins.Entries[LegacyPluginID]
	}
	if !ok {
		return cfg, nil
	}
	if len(entry.Config) > 0 && !bytes.Equal(bytes.TrimSpace(entry.Config), []byte("null")) {
		if err := decodePluginConfig(entry.Config, &cfg); err != nil {
			return DefaultPluginConfig(), fmt.Errorf("parsing plugin config: %w", err)
		}
	}
	if entry.Enabled != nil && !*entry.Enabled {
		cfg.Enabled = false
	}
	return cfg, nil
}

// ParseHostConfig parses host configuration. Comments and trailing commas
// are accepted.
func ParseHostConfig(data []byte) (*HostConfig, error) {
	var cfg HostConfig
	if len(bytes.TrimSpace(data)) == 0 {
		return &cfg, nil
	}
	if err := json.Unmarshal(jsonc.ToJSON(data), &cfg); err != nil {
		return nil, fmt.Errorf("parsing host config: %w", err)
	}
	return &cfg, nil
}

// Settings is the fully resolved configuration of one process.
type Settings struct {
	// ConfigPath is the host config file that was read (it may not exist).
	ConfigPath string

	// Host is the parsed host config; never nil.
	Host *HostConfig

	// Plugin is the plugin config with local overrides applied.
	Plugin PluginConfig
}

// Load reads the host config at configPath (paths.HostConfigFile() when
// empty) and applies local overrides. Missing files are not errors.
func Load(configPath string) (*Settings, error) {
	if configPath == "" {
		configPath = paths.HostConfigFile()
	}

	host, err := loadHostConfig(configPath)
	if err != nil {
		return nil, err
	}

	plugin, err := host.PluginConfig()
	if err != nil {
		return nil, err
	}

	localPath := paths.LocalSettingsFile(configPath)
	localData, err := os.ReadFile(localPath) //nolint:gosec // path derived from config location
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading local settings file: %w", err)
		}
	} else {
		if err := mergeJSON(&plugin, localData); err != nil {
			return nil, fmt.Errorf("merging local settings: %w", err)
		}
	}

	if err := plugin.Validate(); err != nil {
		return nil, err
	}

	return &Settings{ConfigPath: configPath, Host: host, Plugin: plugin}, nil
}

// Default returns settings built only from defaults, for use when loading fails.
func Default() *Settings {
	return &Settings{
		ConfigPath: paths.HostConfigFile(),
		Host:       &HostConfig{},
		Plugin:     DefaultPluginConfig(),
	}
}

func loadHostConfig(configPath string) (*HostConfig, error) {
	data, err := os.ReadFile(configPath) //nolint:gosec // path is from caller or well-known location
	if err != nil {
		if os.IsNotExist(err) {
			return &HostConfig{}, nil
		}
		return nil, fmt.Errorf("reading host config: %w", err)
	}
	return ParseHostConfig(data)
}

// mergeJSON merges JSON data into existing plugin config.
// Only keys present in the JSON override existing values.
func mergeJSON(cfg *PluginConfig, data []byte) error {
	// First, validate that there are no unknown keys using strict decoding
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var temp PluginConfig
	if err := dec.Decode(&temp); err != nil {
		return fmt.Errorf("parsing JSON: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing JSON: %w", err)
	}

	if v, ok := raw["enabled"]; ok {
		if err := json.Unmarshal(v, &cfg.Enabled); err != nil {
			return fmt.Errorf("parsing enabled field: %w", err)
		}
	}
	if v, ok := raw["debug"]; ok {
		if err := json.Unmarshal(v, &cfg.Debug); err != nil {
			return fmt.Errorf("parsing debug field: %w", err)
		}
	}
	if v, ok := raw["redact"]; ok {
		if err := json.Unmarshal(v, &cfg.Redact); err != nil {
			return fmt.Errorf("parsing redact field: %w", err)
		}
	}

	// String fields only override when non-empty
	for key, dst := range map[string]*string{
		"model":     &cfg.Model,
		"cleanup":   &cfg.Cleanup,
		"log_level": &cfg.LogLevel,
	} {
		v, ok := raw[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return fmt.Errorf("parsing %s field: %w", key, err)
		}
		if s != "" {
			*dst = s
		}
	}

	return nil
}

// Local setting keys, as written to the local override file.
const (
	KeyEnabled  = "enabled"
	KeyDebug    = "debug"
	KeyModel    = "model"
	KeyCleanup  = "cleanup"
	KeyRedact   = "redact"
	KeyLogLevel = "log_level"
)

// ChangedKeys lists the keys whose values differ between before and after.
func ChangedKeys(before, after PluginConfig) []string {
	var keys []string
	if before.Enabled != after.Enabled {
		keys = append(keys, KeyEnabled)
	}
	if before.Debug != after.Debug {
		keys = append(keys, KeyDebug)
	}
	if before.Model != after.Model {
		keys = append(keys, KeyModel)
	}
	if before.Cleanup != after.Cleanup {
		keys = append(keys, KeyCleanup)
	}
	if before.Redact != after.Redact {
		keys = append(keys, KeyRedact)
	}
	if before.LogLevel != after.LogLevel {
		keys = append(keys, KeyLogLevel)
	}
	return keys
}

// SaveLocal writes the given keys of cfg to the local override file next to
// configPath. Keys already in the file and not listed are kept as they are,
// so values inherited from the host config are not pinned.
func SaveLocal(configPath string, cfg PluginConfig, keys ...string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if configPath == "" {
		configPath = paths.HostConfigFile()
	}
	filePath := paths.LocalSettingsFile(configPath)

	local := make(map[string]json.RawMessage)
	existing, err := os.ReadFile(filePath) //nolint:gosec // path derived from config location
	switch {
	case err == nil:
		if err := json.Unmarshal(existing, &local); err != nil {
			return fmt.Errorf("parsing local settings file: %w", err)
		}
		if local == nil {
			local = make(map[string]json.RawMessage)
		}
	case !os.IsNotExist(err):
		return fmt.Errorf("reading local settings file: %w", err)
	}

	values := map[string]any{
		KeyEnabled:  cfg.Enabled,
		KeyDebug:    cfg.Debug,
		KeyModel:    cfg.Model,
		KeyCleanup:  cfg.Cleanup,
		KeyRedact:   cfg.Redact,
		KeyLogLevel: cfg.LogLevel,
	}
	for _, key := range keys {
		value, ok := values[key]
		if !ok {
			return fmt.Errorf("unknown setting %q", key)
		}
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("marshaling %s: %w", key, err)
		}
		local[key] = data
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0o750); err != nil {
		return fmt.Errorf("creating settings directory: %w", err)
	}

	data, err := json.MarshalIndent(local, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling settings: %w", err)
	}
	data = append(data, '\n')

	//nolint:gosec // G306: settings file is config, not secrets; 0o644 is appropriate
	if err := os.WriteFile(filePath, data, 0o644); err != nil {
		return fmt.Errorf("writing settings file: %w", err)
	}
	return nil
}
