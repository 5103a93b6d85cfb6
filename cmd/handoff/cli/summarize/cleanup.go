package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"slices"

	"github.com/sessionhandoff/handoff/cmd/handoff/cli/paths"
	"github.com/sessionhandoff/handoff/cmd/handoff/cli/settings"
)

// Cleaner removes the gateway session used for summarization.
type Cleaner interface {
	Cleanup(ctx context.Context, sessionKey string) error
}

// NewCleaner returns the Cleaner for strategy. An unknown strategy is an
// error wrapping settings.ErrInvalidCleanup.
func NewCleaner(strategy string, endpoint Endpoint, agentID string, client *http.Client) (Cleaner, error) {
	switch strategy {
	case "", settings.CleanupRPC:
		return &RPCCleaner{Endpoint: endpoint, Client: client}, nil
	case settings.CleanupRegistry:
		return &RegistryCleaner{Path: paths.SessionRegistryFile(agentID)}, nil
	case settings.CleanupNone:
		return NopCleaner{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", settings.ErrInvalidCleanup, strategy)
	}
}

// NopCleaner leaves worker sessions in place.
type NopCleaner struct{}

// Cleanup does nothing.
func (NopCleaner) Cleanup(context.Context, string) error { return nil }

// RPCCleaner deletes the session through the gateway's RPC endpoint.
type RPCCleaner struct {
	Endpoint Endpoint
	Client   *http.Client
}

type rpcRequest struct {
	Method string    `json:"method"`
	Params rpcParams `json:"params"`
}

type rpcParams struct {
	Key string `json:"key"`
}

// Cleanup issues a sessions.delete call for sessionKey.
func (c *RPCCleaner) Cleanup(ctx context.Context, sessionKey string) error {
	payload, err := json.Marshal(rpcRequest{
		Method: "sessions.delete",
		Params: rpcParams{Key: sessionKey},
	})
	if err != nil {
		return fmt.Errorf("marshal rpc request: %w", err)
	}

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	if _, err := postJSON(ctx, client, c.Endpoint, rpcPath, "", payload); err != nil {
		return fmt.Errorf("sessions.delete: %w", err)
	}
	return nil
}

// RegistryCleaner removes the session from the agent's local session
// registry, a JSON object keyed by session key.
type RegistryCleaner struct {
	Path string
}

// Cleanup deletes sessionKey from the registry file. A missing file or key
// is not an error. Other entries are kept in their original order.
func (c *RegistryCleaner) Cleanup(_ context.Context, sessionKey string) error {
	info, err := os.Stat(c.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat session registry: %w", err)
	}

	data, err := os.ReadFile(c.Path)
	if err != nil {
		return fmt.Errorf("read session registry: %w", err)
	}

	entries, err := decodeRegistry(data)
	if err != nil {
		return fmt.Errorf("parse session registry: %w", err)
	}
	kept := slices.DeleteFunc(slices.Clone(entries), func(e registryEntry) bool {
		return e.key == sessionKey
	})
	if len(kept) == len(entries) {
		return nil
	}

	out, err := encodeRegistry(kept)
	if err != nil {
		return fmt.Errorf("marshal session registry: %w", err)
	}

	//nolint:gosec // path is derived from the agent ID under the host directory
	if err := os.WriteFile(filepath.Clean(c.Path), out, info.Mode().Perm()); err != nil {
		return fmt.Errorf("write session registry: %w", err)
	}
	return nil
}

// registryEntry is one top-level key of the session registry.
type registryEntry struct {
	key   string
	value json.RawMessage
}

// decodeRegistry reads the top-level object of the registry, keeping its
// key order.
func decodeRegistry(data []byte) ([]registryEntry, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err //nolint:wrapcheck // wrapped by Cleanup
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errors.New("session registry is not an object")
	}

	var entries []registryEntry
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err //nolint:wrapcheck // wrapped by Cleanup
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", tok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err //nolint:wrapcheck // wrapped by Cleanup
		}
		entries = append(entries, registryEntry{key: key, value: value})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err //nolint:wrapcheck // wrapped by Cleanup
	}
	return entries, nil
}

// encodeRegistry writes entries as a 2-space indented object in order.
func encodeRegistry(entries []registryEntry) ([]byte, error) {
	if len(entries) == 0 {
		return []byte("{}"), nil
	}

	var buf bytes.Buffer
	buf.WriteString("{\n")
	for i, e := range entries {
		key, err := json.Marshal(e.key)
		if err != nil {
			return nil, err //nolint:wrapcheck // wrapped by Cleanup
		}
		if i > 0 {
			buf.WriteString(",\n")
		}
		buf.WriteString("  ")
		buf.Write(key)
		buf.WriteString(": ")

		var compact bytes.Buffer
		if err := json.Compact(&compact, e.value); err != nil {
			return nil, err //nolint:wrapcheck // wrapped by Cleanup
		}
		if err := json.Indent(&buf, compact.Bytes(), "  ", "  "); err != nil {
			return nil, err //nolint:wrapcheck // wrapped by Cleanup
		}
	}
	buf.WriteString("\n}")
	return buf.Bytes(), nil
}
