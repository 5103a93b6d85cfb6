// Package paths resolves the well-known file locations handoff reads and writes.
package paths

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	// StateFileName is the name of the session state document inside a workspace.
	StateFileName = "SESSION-STATE.md"

	// HostDirName is the host runtime's per-user state directory under $HOME.
	HostDirName = ".openclaw"

	// HostConfigFileName is the host runtime's configuration file.
	HostConfigFileName = "openclaw.json"

	// LocalSettingsFileName holds handoff's local overrides, next to the host config.
	LocalSettingsFileName = "session-handoff.local.json"

	// HostConfigEnvVar overrides the host config location.
	HostConfigEnvVar = "OPENCLAW_CONFIG"

	// sessionRegistryFileName is the host's per-agent session index.
	sessionRegistryFileName = "sessions.json"
)

// StateFile returns the state document path for a workspace.
func StateFile(workspace string) string {
	return filepath.Join(workspace, StateFileName)
}

// HomeDir returns the user's home directory, preferring $HOME.
// Falls back to the current directory when neither is available.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return "."
}

// HostDir returns ~/.openclaw.
func HostDir() string {
	return filepath.Join(HomeDir(), HostDirName)
}

// HostConfigFile returns the host config path: $OPENCLAW_CONFIG when set,
// otherwise ~/.openclaw/openclaw.json.
func HostConfigFile() string {
	if p := strings.TrimSpace(os.Getenv(HostConfigEnvVar)); p != "" {
		return ExpandHome(p)
	}
	return filepath.Join(HostDir(), HostConfigFileName)
}

// LocalSettingsFile returns the local override file that sits next to configPath.
func LocalSettingsFile(configPath string) string {
	return filepath.Join(filepath.Dir(configPath), LocalSettingsFileName)
}

// SessionRegistryFile returns the host's session index for an agent:
// ~/.openclaw/agents/<agentID>/sessions/sessions.json.
func SessionRegistryFile(agentID string) string {
	return filepath.Join(HostDir(), "agents", agentID, "sessions", sessionRegistryFileName)
}

// ExpandHome replaces a leading "~/" with the home directory.
func ExpandHome(p string) string {
	if p == "~" {
		return HomeDir()
	}
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(HomeDir(), p[2:])
	}
	return p
}
