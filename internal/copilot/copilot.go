// Package copilot wraps the Copilot inference endpoint behind a small
// chat client. One client (and its underlying HTTP session) is reused
// across calls within a run to amortize startup cost.
//
// Errors fall into three outcomes the callers care about: success,
// retryable (timeout, transient failure, empty response), and
// ErrModelUnavailable — the configured model is unknown to the service
// and retrying it is pointless, so the caller should offer reselection.
package copilot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// ErrModelUnavailable indicates the requested model is not served by the
// endpoint. Not retried against the same model.
var ErrModelUnavailable = errors.New("copilot model unavailable")

const (
	// DefaultTimeout bounds a single chat attempt.
	DefaultTimeout = 15 * time.Second

	// defaultRetries bounds attempts per Chat call.
	defaultRetries = 3
)

// Client is a reusable handle to the inference endpoint.
type Client struct {
	baseURL string
	model   string
	token   string
	timeout time.Duration
	llm     llms.Model
}

// New builds a client for the given endpoint and model. The API token is
// read from COPILOT_API_KEY, falling back to GITHUB_TOKEN.
func New(baseURL, model string) (*Client, error) {
	token := os.Getenv("COPILOT_API_KEY")
	if token == "" {
		token = os.Getenv("GITHUB_TOKEN")
	}
	if token == "" {
		// langchaingo requires a non-empty token even for endpoints
		// that authenticate some other way.
		token = "unauthenticated"
	}

	llm, err := openai.New(
		openai.WithBaseURL(baseURL),
		openai.WithModel(model),
		openai.WithToken(token),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create copilot client: %w", err)
	}
	return &Client{
		baseURL: baseURL,
		model:   model,
		token:   token,
		timeout: DefaultTimeout,
		llm:     llm,
	}, nil
}

// Model returns the model this client targets by default.
func (c *Client) Model() string { return c.model }

// Chat sends a prompt using the configured model.
func (c *Client) Chat(ctx context.Context, prompt string) (string, error) {
	return c.ChatWithModel(ctx, prompt, c.model)
}

// ChatWithModel sends a prompt, retrying timeouts and empty responses up
// to the retry budget on the same underlying connection. A model-invalid
// error is returned immediately as ErrModelUnavailable.
func (c *Client) ChatWithModel(ctx context.Context, prompt, model string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= defaultRetries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		text, err := llms.GenerateFromSinglePrompt(attemptCtx, c.llm, prompt, llms.WithModel(model))
		cancel()

		if err != nil {
			if isModelError(err) {
				return "", fmt.Errorf("%w: %s", ErrModelUnavailable, model)
			}
			lastErr = err
			continue
		}
		if strings.TrimSpace(text) == "" {
			lastErr = errors.New("copilot returned empty response")
			continue
		}
		return text, nil
	}
	return "", fmt.Errorf("copilot failed after %d attempts: %w", defaultRetries, lastErr)
}

// isModelError classifies an inference error as "model unavailable or
// invalid" by matching known substrings, mirroring what the endpoint
// actually returns for unknown model IDs.
func isModelError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"model", "not found", "invalid", "unavailable"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// ModelInfo identifies one model served by the endpoint.
type ModelInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ListModels fetches the models available at the endpoint. langchaingo
// exposes chat but not the /models listing, so this is a direct call.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(c.baseURL, "/")+"/models", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch models: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model listing returned %s", resp.Status)
	}

	var payload struct {
		Data []ModelInfo `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode model listing: %w", err)
	}
	for i := range payload.Data {
		if payload.Data[i].Name == "" {
			payload.Data[i].Name = payload.Data[i].ID
		}
	}
	return payload.Data, nil
}
