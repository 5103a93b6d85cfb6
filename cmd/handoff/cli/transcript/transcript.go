// Package transcript reads host session transcripts.
//
// A transcript is newline-delimited JSON: every line is an independent JSON
// value. Chat turns are records of the form
//
//	{"type":"message","message":{"role":"user","content":"..."}}
//
// where content is either a string or an array of typed blocks. Everything
// else in the file is ignored.
package transcript

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/sessionhandoff/handoff/cmd/handoff/cli/logging"
)

const (
	// MaxTurns is the number of most recent turns kept from a transcript.
	MaxTurns = 50

	// MaxTurnChars caps the text of a single turn, in characters.
	MaxTurnChars = 500

	// maxLineSize bounds a single transcript line. Tool results can be large.
	maxLineSize = 16 * 1024 * 1024
)

// TypeMessage is the discriminator of chat message records.
const TypeMessage = "message"

// ContentTypeText marks a textual content block.
const ContentTypeText = "text"

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Label returns the display name used in prompts ("User", "Assistant").
func (r Role) Label() string {
	if r == RoleUser {
		return "User"
	}
	return "Assistant"
}

// Turn is one normalized chat turn.
type Turn struct {
	Role Role
	Text string
}

// Line is a single transcript record.
type Line struct {
	Type    string          `json:"type"`
	Message json.RawMessage `json:"message"`
}

// Message is the message payload of a chat record.
type Message struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// ContentBlock is one element of an array-valued content field.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ReadLastTurns streams the transcript at path and returns at most maxTurns
// of its most recent turns, oldest first. Each turn's text is truncated to
// MaxTurnChars. A missing or unreadable file yields no turns; malformed
// lines are skipped. If ctx is cancelled the turns read so far are returned.
func ReadLastTurns(ctx context.Context, path string, maxTurns int) []Turn {
	if path == "" {
		return nil
	}
	if maxTurns <= 0 {
		maxTurns = MaxTurns
	}

	f, err := os.Open(path) //nolint:gosec // path comes from the host's session entry
	if err != nil {
		logging.Debug(ctx, "transcript not readable",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return nil
	}
	defer f.Close()

	turns := make([]Turn, 0, maxTurns)

	skipped, err := eachLine(ctx, f, maxLineSize, func(line []byte) {
		turn, ok := ParseLine(line)
		if !ok {
			return
		}
		if len(turns) == maxTurns {
			// Drop the oldest turn; copy keeps the backing array bounded.
			copy(turns, turns[1:])
			turns = turns[:maxTurns-1]
		}
		turns = append(turns, turn)
	})
	if skipped > 0 {
		logging.Debug(ctx, "skipped oversized transcript lines",
			slog.String("path", path),
			slog.Int("lines", skipped),
		)
	}
	if err != nil {
		logging.Warn(ctx, "error reading transcript",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}

	return turns
}

// eachLine calls fn with every line of r, without its line ending. Lines
// longer than limit are skipped whole and counted; reading continues with
// the next line. It stops early when ctx is cancelled.
func eachLine(ctx context.Context, r io.Reader, limit int, fn func([]byte)) (skipped int, err error) {
	reader := bufio.NewReaderSize(r, 64*1024)
	var line []byte
	tooLong := false

	for ctx.Err() == nil {
		chunk, readErr := reader.ReadSlice('\n')
		if !tooLong {
			n := len(chunk)
			if readErr == nil {
				n-- // newline
			}
			if len(line)+n > limit {
				tooLong = true
				line = nil
			} else {
				line = append(line, chunk...)
			}
		}
		if errors.Is(readErr, bufio.ErrBufferFull) {
			continue
		}

		if tooLong {
			skipped++
		} else if len(line) > 0 {
			fn(bytes.TrimRight(line, "\r\n"))
		}
		line = line[:0]
		tooLong = false

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return skipped, nil
			}
			return skipped, readErr //nolint:wrapcheck // logged by the caller
		}
	}
	return skipped, nil
}

// ParseLine converts one transcript line into a turn. It reports false for
// blank lines, invalid JSON, non-message records, roles other than user and
// assistant, and turns whose text is empty after trimming.
func ParseLine(line []byte) (Turn, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return Turn{}, false
	}

	var rec Line
	if err := json.Unmarshal(line, &rec); err != nil {
		return Turn{}, false
	}
	if rec.Type != TypeMessage || len(rec.Message) == 0 {
		return Turn{}, false
	}

	var msg Message
	if err := json.Unmarshal(rec.Message, &msg); err != nil {
		return Turn{}, false
	}
	role := Role(msg.Role)
	if role != RoleUser && role != RoleAssistant {
		return Turn{}, false
	}

	text := ExtractText(msg.Content)
	if strings.TrimSpace(text) == "" {
		return Turn{}, false
	}

	return Turn{Role: role, Text: Truncate(text, MaxTurnChars)}, true
}

// ExtractText returns the text of a content field. String content is used
// verbatim; array content yields the text of its "text" blocks joined by
// newlines. Any other shape yields "".
func ExtractText(content json.RawMessage) string {
	content = bytes.TrimSpace(content)
	if len(content) == 0 {
		return ""
	}

	switch content[0] {
	case '"':
		var s string
		if err := json.Unmarshal(content, &s); err != nil {
			return ""
		}
		return s
	case '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(content, &elems); err != nil {
			return ""
		}
		var texts []string
		for _, elem := range elems {
			var block ContentBlock
			if err := json.Unmarshal(elem, &block); err != nil {
				continue
			}
			if block.Type == ContentTypeText && block.Text != "" {
				texts = append(texts, block.Text)
			}
		}
		return strings.Join(texts, "\n")
	default:
		return ""
	}
}

// Truncate returns the first n characters of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
