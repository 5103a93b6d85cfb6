// Package summarize turns recent conversation turns into the body of a
// session state document, either through the host gateway's chat completion
// endpoint or, when that is unavailable, by quoting the last turns verbatim.
package summarize

import (
	"context"
	"log/slog"
	"strings"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/sessionhandoff/handoff/cmd/handoff/cli/logging"
	"github.com/sessionhandoff/handoff/cmd/handoff/cli/transcript"
)

const (
	// FallbackTurns is how many turns the fallback body quotes.
	FallbackTurns = 10

	// FallbackHeading opens every fallback body.
	FallbackHeading = "## Recent Conversation (Fallback)"

	fallbackNote = "*LLM summarization failed. Showing last 10 messages.*"

	// workerSuffix names the gateway session used for summarization.
	workerSuffix = "session-handoff-worker"

	defaultAgentID = "main"
)

// Generator produces a summary body for a formatted conversation.
// Implementations never fail: every failure is reported as None so the
// caller can fall back.
type Generator interface {
	Summarize(ctx context.Context, conversation string) fn.Option[string]
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, conversation string) fn.Option[string]

// Summarize calls f.
func (f GeneratorFunc) Summarize(ctx context.Context, conversation string) fn.Option[string] {
	return f(ctx, conversation)
}

// toOption converts a (summary, error) result into an Option, logging the error.
func toOption(ctx context.Context, summary string, err error) fn.Option[string] {
	if err != nil {
		logging.Warn(ctx, "summarization unavailable",
			slog.String("error", err.Error()),
		)
		return fn.None[string]()
	}
	if summary == "" {
		return fn.None[string]()
	}
	return fn.Some(summary)
}

// FormatConversation renders turns as "User: ..." / "Assistant: ..." blocks
// separated by blank lines.
func FormatConversation(turns []transcript.Turn) string {
	parts := make([]string, len(turns))
	for i, turn := range turns {
		parts[i] = turn.Role.Label() + ": " + turn.Text
	}
	return strings.Join(parts, "\n\n")
}

// Fallback renders the last FallbackTurns turns verbatim under a fixed
// preamble. It is used when no summary could be generated.
func Fallback(turns []transcript.Turn) string {
	if len(turns) > FallbackTurns {
		turns = turns[len(turns)-FallbackTurns:]
	}

	parts := make([]string, len(turns))
	for i, turn := range turns {
		marker := "🤖 Assistant"
		if turn.Role == transcript.RoleUser {
			marker = "👤 User"
		}
		parts[i] = "### " + marker + "\n" + turn.Text
	}

	return FallbackHeading + "\n\n" + fallbackNote + "\n\n" + strings.Join(parts, "\n\n")
}

// IsFallback reports whether a summary body was produced by Fallback.
func IsFallback(body string) bool {
	return strings.HasPrefix(strings.TrimSpace(body), FallbackHeading)
}

// WorkerSessionKey returns the gateway session key used for summarizing on
// behalf of agentID. It is stable so repeated summaries reuse one slot.
func WorkerSessionKey(agentID string) string {
	return "agent:" + agentID + ":" + workerSuffix
}

// AgentIDFromSessionKey extracts the agent ID from a host session key of the
// form agent:<agentID>:<rest>. Returns "main" when there is none.
func AgentIDFromSessionKey(sessionKey string) string {
	parts := strings.Split(sessionKey, ":")
	if len(parts) > 1 && parts[1] != "" {
		return parts[1]
	}
	return defaultAgentID
}
