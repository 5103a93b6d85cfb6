package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sessionhandoff/handoff/cmd/handoff/cli/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunHook_BootstrapRoundTrip(t *testing.T) {
	t.Parallel()

	workspace := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(workspace, "SESSION-STATE.md"), []byte("# SESSION-STATE.md\n\nstate\n"), 0o600))

	in, err := json.Marshal(map[string]any{
		"type":       "agent",
		"action":     "bootstrap",
		"sessionKey": "agent:main:main",
		"hostField":  "kept",
		"context": map[string]any{
			"workspaceDir":   workspace,
			"bootstrapFiles": []any{map[string]any{"path": "AGENTS.md", "content": "x"}},
		},
	})
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, runHook(context.Background(), bytes.NewReader(in), &out, "agent:bootstrap", settings.Default()))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, "kept", decoded["hostField"])

	files := decoded["context"].(map[string]any)["bootstrapFiles"].([]any)
	require.Len(t, files, 2)
	assert.Equal(t, "SESSION-STATE.md", files[1].(map[string]any)["path"])
	assert.Equal(t, true, files[1].(map[string]any)["virtual"])
}

func TestRunHook_ResetAddsMessage(t *testing.T) {
	t.Parallel()

	workspace := t.TempDir()
	transcriptPath := writeTestTranscript(t, t.TempDir(), [2]string{"user", "hello"})
	in := `{"type":"command","action":"new","sessionKey":"agent:main:main","messages":[],` +
		`"context":{"workspaceDir":"` + workspace + `","sessionFile":"` + transcriptPath + `"}}`

	gen := &fakeGenerator{}
	var out bytes.Buffer
	require.NoError(t, runHook(context.Background(), strings.NewReader(in), &out, "command:new", settings.Default(),
		WithGeneratorFactory(gen.factory()),
	))

	var decoded struct {
		Messages []string `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, []string{ConfirmationMessage}, decoded.Messages)
	assert.FileExists(t, filepath.Join(workspace, "SESSION-STATE.md"))
}

func TestRunHook_DisabledPassesThrough(t *testing.T) {
	t.Parallel()

	s := settings.Default()
	s.Plugin.Enabled = false

	var out bytes.Buffer
	in := `{"type":"agent","action":"bootstrap","context":{"workspaceDir":"/nowhere","bootstrapFiles":[]}}`
	require.NoError(t, runHook(context.Background(), strings.NewReader(in), &out, "agent:bootstrap", s))

	assert.JSONEq(t, in, out.String())
}

func TestRunHook_EmptyInput(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	require.NoError(t, runHook(context.Background(), strings.NewReader("  \n"), &out, "agent:bootstrap", settings.Default()))
	assert.JSONEq(t, `{"context":{}}`, out.String())
}

func TestRunHook_InvalidInput(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	err := runHook(context.Background(), strings.NewReader("not json"), &out, "agent:bootstrap", settings.Default())
	require.Error(t, err)
	assert.Empty(t, out.String())
}

func TestRunHook_UnknownHook(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	err := runHook(context.Background(), strings.NewReader("{}"), &out, "session:end", settings.Default())
	require.ErrorContains(t, err, "unknown hook")
	assert.Empty(t, out.String())
}

func TestReadEnvelope_TooLarge(t *testing.T) {
	t.Parallel()

	big := strings.Repeat(" ", maxEnvelopeSize+1)
	_, err := readEnvelope(strings.NewReader(big))
	require.Error(t, err)
}

func TestHooksCmd_HasVerbPerHook(t *testing.T) {
	t.Parallel()

	cmd := newHooksCmd(&rootOptions{})
	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.ElementsMatch(t, []string{"command:new", "before_compaction", "agent:bootstrap"}, names)
	assert.True(t, cmd.Hidden)
}
