// Package ai defines the provider-neutral surface for multimodal chat
// completions and the error taxonomy the HTTP layer maps to status codes.
package ai

import (
	"context"
	"errors"
	"fmt"
)

// Content part types for multimodal messages
const (
	PartTypeText     = "text"
	PartTypeImageURL = "image_url"
)

// ContentPart is one element of a multimodal message: either plain text or
// an inline media reference (data URL).
type ContentPart struct {
	Type     string
	Text     string
	ImageURL string
}

// TextPart builds a text content part
func TextPart(text string) ContentPart {
	return ContentPart{Type: PartTypeText, Text: text}
}

// MediaPart builds an inline media content part from a data URL
func MediaPart(dataURL string) ContentPart {
	return ContentPart{Type: PartTypeImageURL, ImageURL: dataURL}
}

// ChatMessage represents a message in a chat conversation. Content carries
// plain-text messages (system instructions); Parts carries multimodal user
// messages. When Parts is non-empty it takes precedence over Content.
type ChatMessage struct {
	Role    string
	Content string
	Parts   []ContentPart
}

// ChatConfig holds configuration for chat completions
type ChatConfig struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Provider defines the interface for multimodal chat completions
type Provider interface {
	// ChatCompletion sends a conversation to the model and returns the text response
	ChatCompletion(ctx context.Context, messages []ChatMessage, config ChatConfig) (string, error)
}

// ErrorKind classifies gateway failures for status-code mapping
type ErrorKind int

const (
	// KindUpstream is any non-2xx gateway response not covered below
	KindUpstream ErrorKind = iota
	// KindRateLimited is a 429 from the gateway
	KindRateLimited
	// KindQuotaExceeded is a 402 from the gateway (payment/credits exhausted)
	KindQuotaExceeded
	// KindTransport is a network-level failure before any HTTP status exists
	KindTransport
)

func (k ErrorKind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindQuotaExceeded:
		return "quota_exceeded"
	case KindTransport:
		return "transport"
	default:
		return "upstream"
	}
}

// GatewayError carries the classification of a failed gateway call plus the
// raw status and response body for logging. Status is 0 for transport errors.
type GatewayError struct {
	Kind   ErrorKind
	Status int
	Body   string
	Err    error
}

func (e *GatewayError) Error() string {
	if e.Kind == KindTransport {
		return fmt.Sprintf("ai gateway: transport failure: %v", e.Err)
	}
	return fmt.Sprintf("ai gateway: %s (status %d): %s", e.Kind, e.Status, e.Body)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// ClassifyStatus builds a GatewayError for a non-2xx gateway response
func ClassifyStatus(status int, body string) *GatewayError {
	kind := KindUpstream
	switch status {
	case 429:
		kind = KindRateLimited
	case 402:
		kind = KindQuotaExceeded
	}
	return &GatewayError{Kind: kind, Status: status, Body: body}
}

// TransportError wraps a network-level failure
func TransportError(err error) *GatewayError {
	return &GatewayError{Kind: KindTransport, Err: err}
}

// AsGatewayError extracts a *GatewayError from an error chain
func AsGatewayError(err error) (*GatewayError, bool) {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}
