package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/sessionhandoff/handoff/cmd/handoff/cli/logging"
)

const (
	// MaxTokens caps the length of a generated summary.
	MaxTokens = 800

	// SessionKeyHeader carries the session key of a gateway request.
	SessionKeyHeader = "x-openclaw-session-key"

	chatCompletionsPath = "/v1/chat/completions"
	rpcPath             = "/v1/gateway/rpc"

	// errorPreviewLen bounds how much of an error response body is logged.
	errorPreviewLen = 200
)

var (
	// ErrNoToken is returned when no gateway bearer token is configured.
	ErrNoToken = errors.New("gateway auth token not configured")

	// ErrNoContent is returned when a completion response has no text.
	ErrNoContent = errors.New("chat completion returned no content")
)

// Endpoint locates the host gateway.
type Endpoint struct {
	Host  string
	Port  int
	Token string
}

// URL returns the absolute URL of path on the gateway.
func (e Endpoint) URL(path string) string {
	return "http://" + net.JoinHostPort(e.Host, strconv.Itoa(e.Port)) + path
}

// GatewayGenerator summarizes through the gateway's OpenAI-compatible chat
// completion endpoint. On success the worker session it used is removed by
// Cleaner.
type GatewayGenerator struct {
	Endpoint Endpoint
	Model    string
	AgentID  string
	Cleaner  Cleaner
	Client   *http.Client
}

// GatewayOption configures a GatewayGenerator.
type GatewayOption func(*GatewayGenerator)

// WithCleaner sets the cleanup strategy for the worker session.
func WithCleaner(c Cleaner) GatewayOption {
	return func(g *GatewayGenerator) { g.Cleaner = c }
}

// WithHTTPClient sets the HTTP client used for gateway calls.
func WithHTTPClient(c *http.Client) GatewayOption {
	return func(g *GatewayGenerator) { g.Client = c }
}

// NewGatewayGenerator returns a generator for agentID using model.
// Cleanup defaults to NopCleaner.
func NewGatewayGenerator(endpoint Endpoint, model, agentID string, opts ...GatewayOption) *GatewayGenerator {
	g := &GatewayGenerator{
		Endpoint: endpoint,
		Model:    model,
		AgentID:  agentID,
		Cleaner:  NopCleaner{},
		Client:   &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Summarize implements Generator.
func (g *GatewayGenerator) Summarize(ctx context.Context, conversation string) fn.Option[string] {
	start := time.Now()
	summary, err := g.Generate(ctx, conversation)
	logging.LogDuration(ctx, slog.LevelDebug, "gateway summarization finished", start,
		slog.Bool("ok", err == nil),
	)
	return toOption(ctx, summary, err)
}

// Generate performs a single chat completion request and returns the
// content of the first choice as sent. There are no retries.
func (g *GatewayGenerator) Generate(ctx context.Context, conversation string) (string, error) {
	if g.Endpoint.Token == "" {
		return "", ErrNoToken
	}

	workerKey := WorkerSessionKey(g.AgentID)

	reqBody, err := json.Marshal(chatRequest{
		Model: g.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildUserPrompt(conversation)},
		},
		MaxTokens: MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	body, err := g.post(ctx, chatCompletionsPath, workerKey, reqBody)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	var result chatResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", ErrNoContent
	}
	content := result.Choices[0].Message.Content
	if content == "" {
		return "", ErrNoContent
	}

	g.cleanup(ctx, workerKey)

	return content, nil
}

// cleanup removes the worker session. Failures are logged and dropped.
func (g *GatewayGenerator) cleanup(ctx context.Context, workerKey string) {
	if g.Cleaner == nil {
		return
	}
	if err := g.Cleaner.Cleanup(ctx, workerKey); err != nil {
		logging.Debug(ctx, "worker session cleanup failed",
			slog.String("worker_key", workerKey),
			slog.String("error", err.Error()),
		)
	}
}

// post sends a JSON body to the gateway and returns the response body of a
// 2xx reply. Other statuses become errors carrying a preview of the body.
func (g *GatewayGenerator) post(ctx context.Context, path, sessionKey string, payload []byte) ([]byte, error) {
	return postJSON(ctx, g.client(), g.Endpoint, path, sessionKey, payload)
}

func (g *GatewayGenerator) client() *http.Client {
	if g.Client != nil {
		return g.Client
	}
	return http.DefaultClient
}

func postJSON(ctx context.Context, client *http.Client, endpoint Endpoint, path, sessionKey string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.URL(path), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+endpoint.Token)
	if sessionKey != "" {
		req.Header.Set(SessionKeyHeader, sessionKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		preview := string(body)
		if len(preview) > errorPreviewLen {
			preview = preview[:errorPreviewLen] + "..."
		}
		return nil, fmt.Errorf("gateway returned %d: %s", resp.StatusCode, preview)
	}

	return body, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}
