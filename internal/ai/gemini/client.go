// Package gemini implements the ai.Provider interface over the official
// Google Gemini SDK, sending media as inline bytes instead of data URLs.
package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"github.com/clipscribe/clipscribe/internal/ai"
	"github.com/clipscribe/clipscribe/pkg/logger"
)

// Client represents a Gemini API client
type Client struct {
	apiKey string
	logger *logger.Logger

	mu  sync.Mutex
	sdk *genai.Client
}

// NewClient creates a new Gemini client. The SDK client is built lazily on
// first use so that a missing key is reported per request, before any
// network call, matching the other provider.
func NewClient(apiKey string, logger *logger.Logger) *Client {
	return &Client{
		apiKey: apiKey,
		logger: logger.Named("gemini"),
	}
}

func (c *Client) client(ctx context.Context) (*genai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sdk != nil {
		return c.sdk, nil
	}
	sdk, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  c.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	c.sdk = sdk
	return sdk, nil
}

// ChatCompletion sends a conversation to Gemini and returns the response
// text. System messages become the system instruction; data-URL media parts
// are decoded to inline bytes. Failures are returned as *ai.GatewayError.
func (c *Client) ChatCompletion(ctx context.Context, messages []ai.ChatMessage, config ai.ChatConfig) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("gateway API key is not configured")
	}

	sdk, err := c.client(ctx)
	if err != nil {
		return "", err
	}

	var systemInstruction *genai.Content
	var contents []*genai.Content

	for _, msg := range messages {
		if msg.Role == "system" {
			systemInstruction = genai.NewContentFromText(msg.Content, genai.RoleUser)
			continue
		}

		role := genai.RoleUser
		if msg.Role == "assistant" {
			role = genai.RoleModel
		}

		parts, err := convertParts(msg)
		if err != nil {
			return "", err
		}
		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}

	genConfig := &genai.GenerateContentConfig{
		SystemInstruction: systemInstruction,
	}
	if config.MaxTokens > 0 {
		genConfig.MaxOutputTokens = int32(config.MaxTokens)
	}

	start := time.Now()
	resp, err := sdk.Models.GenerateContent(ctx, config.Model, contents, genConfig)
	if err != nil {
		gerr := classify(err)
		c.logger.Error("Generate content failed",
			logger.Int("status", gerr.Status),
			logger.String("kind", gerr.Kind.String()),
			logger.Duration("elapsed", time.Since(start)))
		return "", gerr
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("no content in gemini response")
	}

	c.logger.Debug("Generate content succeeded",
		logger.String("model", config.Model),
		logger.Duration("elapsed", time.Since(start)))

	return text, nil
}

// convertParts maps provider-neutral content parts to SDK parts. Media parts
// arrive as data URLs and are decoded back to raw bytes for inline upload.
func convertParts(msg ai.ChatMessage) ([]*genai.Part, error) {
	if len(msg.Parts) == 0 {
		return []*genai.Part{genai.NewPartFromText(msg.Content)}, nil
	}

	parts := make([]*genai.Part, 0, len(msg.Parts))
	for _, p := range msg.Parts {
		switch p.Type {
		case ai.PartTypeImageURL:
			mime, data, err := decodeDataURL(p.ImageURL)
			if err != nil {
				return nil, err
			}
			parts = append(parts, genai.NewPartFromBytes(data, mime))
		default:
			parts = append(parts, genai.NewPartFromText(p.Text))
		}
	}
	return parts, nil
}

func decodeDataURL(u string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(u, "data:")
	if !ok {
		return "", nil, fmt.Errorf("media part is not a data URL")
	}
	mime, b64, ok := strings.Cut(rest, ";base64,")
	if !ok {
		return "", nil, fmt.Errorf("media part is not base64-encoded")
	}
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", nil, fmt.Errorf("failed to decode media part: %w", err)
	}
	return mime, data, nil
}

// classify maps SDK errors to the shared gateway error taxonomy
func classify(err error) *ai.GatewayError {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return ai.ClassifyStatus(apiErr.Code, apiErr.Message)
	}
	return ai.TransportError(err)
}
