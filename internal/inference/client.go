// Package inference talks to an OpenAI-compatible chat-completions endpoint
// (OpenRouter by default).
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sin-text/backend/internal/models"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1"
	defaultModel   = "anthropic/claude-3-sonnet-20240229"
	defaultTimeout = 600 * time.Second

	maxErrorBody = 4096
)

// Options configures a Client.
type Options struct {
	BaseURL  string
	APIKey   string
	Model    string
	SiteURL  string // sent as HTTP-Referer
	SiteName string // sent as X-Title
	Timeout  time.Duration
	// HTTPClient overrides the default client; Timeout is ignored when set.
	HTTPClient *http.Client
}

// Client handles communication with the chat-completions API
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	siteURL    string
	siteName   string
	httpClient *http.Client
}

// Message represents a chat message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request represents the API request structure
type Request struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

// Response represents the API response structure
type Response struct {
	ID      string    `json:"id"`
	Model   string    `json:"model"`
	Choices []Choice  `json:"choices"`
	Error   *APIError `json:"error,omitempty"`
}

// Choice represents a single completion choice
type Choice struct {
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// APIError is the error object some providers return with a 200 status.
type APIError struct {
	Message string `json:"message"`
	Code    any    `json:"code,omitempty"`
}

// Completion is the generated text and the model that produced it.
type Completion struct {
	Text  string
	Model string
}

// NewClient creates a new inference client
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.Model == "" {
		opts.Model = defaultModel
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		model:      opts.Model,
		siteURL:    opts.SiteURL,
		siteName:   opts.SiteName,
		httpClient: httpClient,
	}
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

// Complete sends one system+user exchange and returns the first choice.
func (c *Client) Complete(ctx context.Context, system, user string) (*Completion, error) {
	body, err := json.Marshal(c.buildRequest(system, user))
	if err != nil {
		return nil, models.InferenceFailure(models.ReasonTransport, "failed to marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, models.InferenceFailure(models.ReasonTransport, "failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.siteURL != "" {
		req.Header.Set("HTTP-Referer", c.siteURL)
	}
	if c.siteName != "" {
		req.Header.Set("X-Title", c.siteName)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, models.InferenceFailure(models.ReasonTimeout, "inference request timed out", err)
		}
		return nil, models.InferenceFailure(models.ReasonTransport, "failed to send request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, models.InferenceFailure(models.ReasonStatus,
			fmt.Sprintf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))), nil)
	}

	var parsed Response
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		if isTimeout(err) {
			return nil, models.InferenceFailure(models.ReasonTimeout, "inference response timed out", err)
		}
		return nil, models.InferenceFailure(models.ReasonInvalidResponse, "failed to decode response", err)
	}

	return c.completionFrom(&parsed)
}

func (c *Client) buildRequest(system, user string) *Request {
	return &Request{
		Model: c.model,
		Messages: []Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}
}

func (c *Client) completionFrom(resp *Response) (*Completion, error) {
	if len(resp.Choices) == 0 {
		msg := "no choices returned"
		if resp.Error != nil && resp.Error.Message != "" {
			msg += ": " + resp.Error.Message
		}
		return nil, models.InferenceFailure(models.ReasonInvalidResponse, msg, nil)
	}

	text := resp.Choices[0].Message.Content
	if strings.TrimSpace(text) == "" {
		return nil, models.InferenceFailure(models.ReasonInvalidResponse, "empty completion content", nil)
	}

	model := resp.Model
	if model == "" {
		model = c.model
	}
	return &Completion{Text: text, Model: model}, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
