// Package openai implements the ai.Provider interface against any
// OpenAI-compatible chat-completions endpoint, including hosted AI gateways.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/clipscribe/clipscribe/internal/ai"
	"github.com/clipscribe/clipscribe/pkg/logger"
)

// Client handles communication with an OpenAI-compatible gateway
type Client struct {
	apiKey              string
	httpClient          *http.Client
	logger              *logger.Logger
	baseURL             string // Stored without trailing slash
	chatCompletionsPath string
}

// Option configures a Client
type Option func(*Client)

// WithChatCompletionsPath overrides the chat completions endpoint path
func WithChatCompletionsPath(path string) Option {
	return func(c *Client) {
		if path != "" {
			c.chatCompletionsPath = path
		}
	}
}

// WithTimeout overrides the HTTP client timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// NewClient creates a new gateway client. The API key may be empty here;
// ChatCompletion rejects requests without a key before any network call.
func NewClient(apiKey, baseURL string, logger *logger.Logger, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		logger:  logger.Named("openai"),
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		chatCompletionsPath: "/v1/chat/completions",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Wire types for the chat-completions request. Content is either a string
// (system messages) or an array of typed parts (multimodal user messages),
// so it is marshalled as any.
type wireMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type wireTextPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type wireImagePart struct {
	Type     string `json:"type"`
	ImageURL struct {
		URL string `json:"url"`
	} `json:"image_url"`
}

type wireRequest struct {
	Model     string        `json:"model"`
	Messages  []wireMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

// ChatCompletion sends a conversation to the gateway and returns the text
// of the first choice. Failures are returned as *ai.GatewayError.
func (c *Client) ChatCompletion(ctx context.Context, messages []ai.ChatMessage, config ai.ChatConfig) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("gateway API key is not configured")
	}

	apiURL := c.baseURL + c.chatCompletionsPath

	reqMessages := make([]wireMessage, len(messages))
	for i, msg := range messages {
		reqMessages[i] = wireMessage{Role: msg.Role, Content: encodeContent(msg)}
	}

	jsonData, err := json.Marshal(wireRequest{
		Model:     config.Model,
		Messages:  reqMessages,
		MaxTokens: config.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", ai.TransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		gerr := ai.ClassifyStatus(resp.StatusCode, string(body))
		c.logger.Error("Chat completion failed",
			logger.Int("status", resp.StatusCode),
			logger.String("kind", gerr.Kind.String()),
			logger.Duration("elapsed", time.Since(start)))
		return "", gerr
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	c.logger.Debug("Chat completion succeeded",
		logger.String("model", config.Model),
		logger.Duration("elapsed", time.Since(start)))

	return result.Choices[0].Message.Content, nil
}

// encodeContent renders a message body for the wire: plain string when there
// are no parts, typed part array otherwise.
func encodeContent(msg ai.ChatMessage) any {
	if len(msg.Parts) == 0 {
		return msg.Content
	}
	parts := make([]any, 0, len(msg.Parts))
	for _, p := range msg.Parts {
		switch p.Type {
		case ai.PartTypeImageURL:
			var ip wireImagePart
			ip.Type = "image_url"
			ip.ImageURL.URL = p.ImageURL
			parts = append(parts, ip)
		default:
			parts = append(parts, wireTextPart{Type: "text", Text: p.Text})
		}
	}
	return parts
}
