package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/MimeLyc/segmented-transcript-translator/internal/transcript"
)

const (
	// lineSeparator joins subtitle texts into one prompt and splits
	// the model's answer back into lines.
	lineSeparator = "<<<SEP>>>"
	// inlineBreak stands in for newlines inside a single subtitle so
	// the model does not confuse them with line boundaries.
	inlineBreak = "<<<BR>>>"
)

// Message is a chat message in OpenAI-compatible format.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
}

type chatChoice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// APIError is the provider's error payload.
type APIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Param   string `json:"param,omitempty"`
	Code    string `json:"code,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%s): %s", e.Type, e.Message)
}

// chatResponse is the single response shape this client accepts.
// Providers that deviate need an adapter in front of this client,
// never special-casing in the engine.
type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
	Error   *APIError    `json:"error,omitempty"`
}

// Client talks to an OpenAI-compatible chat-completion endpoint and
// implements Backend. Thread-safe for concurrent use.
type Client struct {
	config     Config
	httpClient *http.Client
}

func NewClient(config Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.Timeout) * time.Second,
		},
	}, nil
}

// Translate sends one segment's texts to the model and maps the
// translated lines back onto the input timestamps. A reply whose line
// count differs from the input is rejected as ErrMalformedResponse.
func (c *Client) Translate(ctx context.Context, entries []transcript.Entry, tc Context) ([]transcript.Entry, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	texts := c.complete(ctx, translatePrompt(tc), joinEntries(entries), tc)
	return zipTexts(entries, texts.lines, texts.err)
}

// StitchContext re-translates a small window straddling a segment
// boundary, asking the model to repair cross-entry meaning while
// keeping one output line per input line.
func (c *Client) StitchContext(ctx context.Context, window []transcript.Entry, hint BoundaryHint, tc Context) ([]transcript.Entry, error) {
	if len(window) == 0 {
		return nil, nil
	}

	texts := c.complete(ctx, stitchPrompt(hint, tc), joinEntries(window), tc)
	return zipTexts(window, texts.lines, texts.err)
}

type completion struct {
	lines []string
	err   error
}

func (c *Client) complete(ctx context.Context, systemPrompt, userMessage string, tc Context) completion {
	request := chatRequest{
		Model: c.model(tc),
		Messages: []Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userMessage},
		},
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.temperature(tc),
	}

	response, err := c.makeRequest(ctx, http.MethodPost, "/chat/completions", request)
	if err != nil {
		return completion{err: err}
	}
	if len(response.Choices) == 0 {
		return completion{err: fmt.Errorf("%w: no choices", ErrMalformedResponse)}
	}

	content := response.Choices[0].Message.Content
	content = strings.ReplaceAll(content, inlineBreak, "\n")
	return completion{lines: strings.Split(content, lineSeparator)}
}

func (c *Client) makeRequest(ctx context.Context, method, path string, payload any) (*chatResponse, error) {
	url := strings.TrimSuffix(c.config.APIURL, "/") + path

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range c.config.GetHeaders() {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if os.IsTimeout(err) {
			return nil, fmt.Errorf("request timed out: %w", err)
		}
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(responseBody, &chatResp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if chatResp.Error != nil && chatResp.Error.Message != "" {
		return &chatResp, chatResp.Error
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &chatResp, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(responseBody))
	}

	return &chatResp, nil
}

func (c *Client) model(tc Context) string {
	if tc.Model != "" {
		return tc.Model
	}
	return c.config.Model
}

func (c *Client) temperature(tc Context) float64 {
	if tc.Temperature > 0 {
		return tc.Temperature
	}
	return c.config.Temperature
}

func joinEntries(entries []transcript.Entry) string {
	texts := make([]string, len(entries))
	for i, e := range entries {
		texts[i] = strings.ReplaceAll(e.Text, "\n", inlineBreak)
	}
	return strings.Join(texts, lineSeparator)
}

// zipTexts maps translated texts back onto the source entries,
// keeping start/end untouched. Count mismatches are malformed: the
// caller's retry policy decides what happens next.
func zipTexts(entries []transcript.Entry, lines []string, err error) ([]transcript.Entry, error) {
	if err != nil {
		return nil, err
	}
	if len(lines) != len(entries) {
		return nil, fmt.Errorf("%w: got %d lines, want %d", ErrMalformedResponse, len(lines), len(entries))
	}

	out := make([]transcript.Entry, len(entries))
	for i, e := range entries {
		out[i] = transcript.Entry{
			Start: e.Start,
			End:   e.End,
			Text:  strings.TrimSpace(lines[i]),
		}
	}
	return out, nil
}
