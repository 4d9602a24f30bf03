package transcription

import (
	"context"
	"fmt"

	"github.com/clipscribe/clipscribe/internal/ai"
	"github.com/clipscribe/clipscribe/internal/media"
	"github.com/clipscribe/clipscribe/pkg/logger"
)

// Config holds the tunables for the transcription service
type Config struct {
	Model                 string // Model for standard transcription
	VisualModel           string // Model for visual analysis
	MaxTokens             int
	SegmentSeconds        int
	FallbackWindowSeconds int
	DecodeChunkSize       int
}

// Service runs transcriptions against an AI provider
type Service struct {
	provider ai.Provider
	config   Config
	logger   *logger.Logger
}

// NewService creates a new transcription service
func NewService(provider ai.Provider, config Config, logger *logger.Logger) *Service {
	if config.MaxTokens <= 0 {
		config.MaxTokens = 8000
	}
	if config.SegmentSeconds <= 0 {
		config.SegmentSeconds = DefaultSegmentSeconds
	}
	if config.FallbackWindowSeconds <= 0 {
		config.FallbackWindowSeconds = DefaultFallbackWindowSeconds
	}
	if config.DecodeChunkSize <= 0 {
		config.DecodeChunkSize = media.DefaultChunkSize
	}
	return &Service{
		provider: provider,
		config:   config,
		logger:   logger.Named("transcription"),
	}
}

// TranscribeRequest is a standard transcription job
type TranscribeRequest struct {
	Audio    string // base64-encoded media
	Language string // language hint code, "" or "auto" for auto-detect
	FileName string
}

// VisualRequest is a combined speech + visual analysis job
type VisualRequest struct {
	Video    string // base64-encoded media
	FileName string
}

// Transcribe runs a standard speech transcription. The base64 payload is
// decoded up front to validate it and report its size; the gateway receives
// the original base64 string as a data URL.
func (s *Service) Transcribe(ctx context.Context, req TranscribeRequest) (*Result, error) {
	if req.Audio == "" {
		return nil, fmt.Errorf("no audio data provided")
	}

	binary, err := media.DecodeChunked(req.Audio, s.config.DecodeChunkSize)
	if err != nil {
		return nil, fmt.Errorf("invalid audio payload: %w", err)
	}

	mimeType := media.MIMETypeForFilename(req.FileName)
	s.logger.Info("Processing transcription request",
		logger.String("file_name", req.FileName),
		logger.String("language", orAuto(req.Language)),
		logger.String("mime_type", mimeType),
		logger.Int("bytes", len(binary)))

	messages := BuildStandardRequest(req.Audio, mimeType, req.Language)
	transcript, err := s.provider.ChatCompletion(ctx, messages, ai.ChatConfig{
		Model:     s.config.Model,
		MaxTokens: s.config.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Transcription complete", logger.Int("chars", len(transcript)))

	return &Result{
		Transcript: transcript,
		Language:   orAuto(req.Language),
		Segments:   SegmentTranscript(transcript, s.config.SegmentSeconds),
	}, nil
}

// VisualTranscribe runs a combined speech + visual analysis. Model output
// that cannot be parsed as a segment array degrades to a single fallback
// segment; this path never fails on parse.
func (s *Service) VisualTranscribe(ctx context.Context, req VisualRequest) (*VisualResult, error) {
	if req.Video == "" {
		return nil, fmt.Errorf("no video data provided")
	}

	binary, err := media.DecodeChunked(req.Video, s.config.DecodeChunkSize)
	if err != nil {
		return nil, fmt.Errorf("invalid video payload: %w", err)
	}

	mimeType := media.MIMETypeForFilename(req.FileName)
	s.logger.Info("Processing visual transcription request",
		logger.String("file_name", req.FileName),
		logger.String("mime_type", mimeType),
		logger.Int("bytes", len(binary)))

	messages := BuildVisualRequest(req.Video, mimeType)
	content, err := s.provider.ChatCompletion(ctx, messages, ai.ChatConfig{
		Model:     s.config.VisualModel,
		MaxTokens: s.config.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	segments := ParseVisualSegments(content, s.config.SegmentSeconds, s.config.FallbackWindowSeconds)
	s.logger.Info("Visual transcription complete", logger.Int("segments", len(segments)))

	return &VisualResult{Segments: segments}, nil
}

func orAuto(language string) string {
	if language == "" {
		return "auto"
	}
	return language
}
