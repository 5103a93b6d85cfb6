// Package redact scrubs credentials from conversation text before it is sent
// to the summarization model or written to the workspace.
package redact

import (
	"sort"
	"strings"
	"sync"

	"github.com/sessionhandoff/handoff/cmd/handoff/cli/transcript"
	"github.com/zricethezav/gitleaks/v8/detect"
)

// Placeholder replaces every detected secret.
const Placeholder = "REDACTED"

var (
	detectorOnce sync.Once
	detector     *detect.Detector
	detectorErr  error
)

// getDetector builds the gitleaks detector with its default rule set once
// per process.
func getDetector() (*detect.Detector, error) {
	detectorOnce.Do(func() {
		detector, detectorErr = detect.NewDetectorDefaultConfig()
	})
	return detector, detectorErr
}

// String returns s with every secret found by the default gitleaks rules
// replaced by Placeholder. If the detector cannot be built s is returned
// unchanged.
func String(s string) string {
	if strings.TrimSpace(s) == "" {
		return s
	}
	d, err := getDetector()
	if err != nil {
		return s
	}

	var secrets []string
	for _, finding := range d.DetectString(s) {
		if finding.Secret != "" {
			secrets = append(secrets, finding.Secret)
		}
	}
	if len(secrets) == 0 {
		return s
	}

	// Longest first so a secret containing another is replaced whole.
	sort.Slice(secrets, func(i, j int) bool { return len(secrets[i]) > len(secrets[j]) })
	for _, secret := range secrets {
		s = strings.ReplaceAll(s, secret, Placeholder)
	}
	return s
}

// Turns returns a copy of turns with each text passed through String.
func Turns(turns []transcript.Turn) []transcript.Turn {
	if len(turns) == 0 {
		return turns
	}
	out := make([]transcript.Turn, len(turns))
	for i, turn := range turns {
		out[i] = transcript.Turn{Role: turn.Role, Text: String(turn.Text)}
	}
	return out
}

// Noop returns turns unchanged. It is used when redaction is disabled.
func Noop(turns []transcript.Turn) []transcript.Turn {
	return turns
}
