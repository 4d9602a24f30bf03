package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// EnvAPIKey is the environment variable consulted when [gateway] api_key is
// not set in the config file. The key is resolved at request time, matching
// the deployment model where secrets are injected into the process
// environment rather than written to disk.
const EnvAPIKey = "CLIPSCRIBE_API_KEY"

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server        ServerConfig        `toml:"server"`        // HTTP server settings
	Logging       LoggingConfig       `toml:"logging"`       // Application logging settings
	Gateway       GatewayConfig       `toml:"gateway"`       // AI gateway settings
	Transcription TranscriptionConfig `toml:"transcription"` // Transcription pipeline settings
	Pipeline      PipelineConfig      `toml:"pipeline"`      // Client-visible progress simulation settings
	Storage       StorageConfig       `toml:"storage"`       // Transcript history persistence settings
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port               int      `toml:"port"`                  // HTTP port for the server
	Host               string   `toml:"host"`                  // Host address to bind to (e.g., 127.0.0.1 for localhost only, 0.0.0.0 for all interfaces)
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`  // List of origins allowed for CORS requests (use ["*"] for all origins)
	ReadTimeoutSecs    int      `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request (0 = no timeout)
	WriteTimeoutSecs   int      `toml:"write_timeout_seconds"` // Maximum duration for writing the response (0 = no timeout)
	IdleTimeoutSecs    int      `toml:"idle_timeout_seconds"`  // Maximum duration to wait for the next request when keep-alives are enabled
	MaxUploadMB        int      `toml:"max_upload_mb"`         // Maximum accepted request body size in megabytes (default: 500)
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`  // Log level: "debug", "info", "warn", or "error"
	Format string `toml:"format"` // Log format: "json" (structured) or "console" (human-readable)
}

// GatewayConfig contains settings for the multimodal AI gateway
type GatewayConfig struct {
	// Provider selection
	// Allowed values:
	// - "openai-compatible": any chat-completions style endpoint (default)
	// - "gemini": Google Gemini via the official SDK
	Provider string `toml:"provider"`

	APIKey              string `toml:"api_key"`               // Bearer credential; falls back to the CLIPSCRIBE_API_KEY environment variable
	BaseURL             string `toml:"base_url"`              // Base URL for the gateway (e.g., https://ai.gateway.lovable.dev)
	ChatCompletionsPath string `toml:"chat_completions_path"` // Path for chat completions (default: /v1/chat/completions)

	Model       string `toml:"model"`        // Model for standard speech transcription
	VisualModel string `toml:"visual_model"` // Model for combined speech + visual analysis

	MaxTokens      int `toml:"max_tokens"`      // Ceiling on generated output length (default: 8000)
	TimeoutSeconds int `toml:"timeout_seconds"` // HTTP timeout for gateway requests in seconds (default: 120)
}

// TranscriptionConfig contains settings for the transcription pipeline
type TranscriptionConfig struct {
	SegmentSeconds        int `toml:"segment_seconds"`         // Synthetic duration assigned to each standard-mode segment (default: 5)
	FallbackWindowSeconds int `toml:"fallback_window_seconds"` // End time of the single fallback segment in visual mode (default: 30)
	DecodeChunkSize       int `toml:"decode_chunk_size"`       // Base64 decode chunk size in characters; must be a multiple of 4 (default: 32768)
}

// PipelineConfig contains timings for the simulated progress steps.
// These steps are cosmetic UX feedback only; no real work is bound to them.
// The transcribing step is the only one gated on the gateway call.
type PipelineConfig struct {
	UploadingMs  int `toml:"uploading_ms"`  // Simulated duration of the uploading step (default: 1500)
	ExtractingMs int `toml:"extracting_ms"` // Simulated duration of the extracting step (default: 2000)
	AnalyzingMs  int `toml:"analyzing_ms"`  // Simulated duration of the analyzing step, visual mode only (default: 2500)
	FormattingMs int `toml:"formatting_ms"` // Simulated duration of the formatting step, standard mode only (default: 1000)
	AligningMs   int `toml:"aligning_ms"`   // Simulated duration of the aligning step, visual mode only (default: 1500)
	Ticks        int `toml:"ticks"`         // Progress updates emitted per simulated step (default: 20)

	SessionRetentionMinutes int `toml:"session_retention_minutes"` // How long idle sessions stay resolvable by ID (default: 60)
}

// StorageConfig contains transcript history persistence configuration
type StorageConfig struct {
	SQLitePath string `toml:"sqlite_path"` // Path to the SQLite database file; empty disables history
	MaxResults int    `toml:"max_results"` // Maximum number of records returned by history queries (default: 100)
}

// Load loads the configuration from the specified file path
func Load(path string) (*Config, error) {
	var config Config

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	return &config, nil
}

// LoadWithFallback loads the configuration by checking multiple locations in order of preference
func LoadWithFallback(preferredPath string) (*Config, error) {
	searchPaths := []string{
		preferredPath,         // User-specified path (if provided)
		"configs/config.toml", // configs/ folder
		"config.toml",         // Root directory
	}

	// Remove duplicates while preserving order
	uniquePaths := make([]string, 0, len(searchPaths))
	seen := make(map[string]bool)
	for _, path := range searchPaths {
		if path != "" && !seen[path] {
			uniquePaths = append(uniquePaths, path)
			seen[path] = true
		}
	}

	var lastErr error
	for _, path := range uniquePaths {
		if _, err := os.Stat(path); err == nil {
			config, err := Load(path)
			if err != nil {
				lastErr = fmt.Errorf("failed to load config from %s: %w", path, err)
				continue
			}
			return config, nil
		}
		lastErr = fmt.Errorf("config file not found: %s", path)
	}

	return nil, fmt.Errorf("config file not found in any of the expected locations: %v. Last error: %w", uniquePaths, lastErr)
}

// ResolveAPIKey returns the gateway credential, preferring the config file
// value over the process environment. An empty result means the credential is
// not configured; callers must treat that as a fatal condition for the
// request, raised before any network call.
func (c *Config) ResolveAPIKey() string {
	if c.Gateway.APIKey != "" {
		return c.Gateway.APIKey
	}
	return os.Getenv(EnvAPIKey)
}

// Validate validates the configuration and applies defaults
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		c.Server.MaxUploadMB = 500
	}
	if len(c.Server.CORSAllowedOrigins) == 0 {
		c.Server.CORSAllowedOrigins = []string{"*"}
	}

	// Validate logging config
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// Valid log level
	case "":
		c.Logging.Level = "info"
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "console":
		// Valid log format
	case "":
		c.Logging.Format = "console"
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	if err := c.ValidateGateway(); err != nil {
		return err
	}

	// Transcription defaults
	if c.Transcription.SegmentSeconds <= 0 {
		c.Transcription.SegmentSeconds = 5
	}
	if c.Transcription.FallbackWindowSeconds <= 0 {
		c.Transcription.FallbackWindowSeconds = 30
	}
	if c.Transcription.DecodeChunkSize == 0 {
		c.Transcription.DecodeChunkSize = 32768
	}
	if c.Transcription.DecodeChunkSize < 4 || c.Transcription.DecodeChunkSize%4 != 0 {
		return fmt.Errorf("invalid decode_chunk_size: %d (must be a positive multiple of 4)", c.Transcription.DecodeChunkSize)
	}

	// Pipeline step defaults
	if c.Pipeline.UploadingMs <= 0 {
		c.Pipeline.UploadingMs = 1500
	}
	if c.Pipeline.ExtractingMs <= 0 {
		c.Pipeline.ExtractingMs = 2000
	}
	if c.Pipeline.AnalyzingMs <= 0 {
		c.Pipeline.AnalyzingMs = 2500
	}
	if c.Pipeline.FormattingMs <= 0 {
		c.Pipeline.FormattingMs = 1000
	}
	if c.Pipeline.AligningMs <= 0 {
		c.Pipeline.AligningMs = 1500
	}
	if c.Pipeline.Ticks <= 0 {
		c.Pipeline.Ticks = 20
	}
	if c.Pipeline.SessionRetentionMinutes <= 0 {
		c.Pipeline.SessionRetentionMinutes = 60
	}

	// Storage defaults
	if c.Storage.MaxResults <= 0 {
		c.Storage.MaxResults = 100
	}

	return nil
}

// ValidateGateway validates the gateway configuration and applies defaults
func (c *Config) ValidateGateway() error {
	if c.Gateway.Provider == "" {
		c.Gateway.Provider = "openai-compatible"
	}
	if c.Gateway.Provider != "openai-compatible" && c.Gateway.Provider != "gemini" {
		return fmt.Errorf("invalid gateway provider: %s (must be 'openai-compatible' or 'gemini')", c.Gateway.Provider)
	}

	if c.Gateway.Provider == "openai-compatible" && c.Gateway.BaseURL == "" {
		return fmt.Errorf("gateway base_url is required when provider is openai-compatible")
	}
	if c.Gateway.ChatCompletionsPath == "" {
		c.Gateway.ChatCompletionsPath = "/v1/chat/completions"
	}

	if c.Gateway.Model == "" {
		c.Gateway.Model = "google/gemini-2.5-flash"
	}
	if c.Gateway.VisualModel == "" {
		c.Gateway.VisualModel = "google/gemini-2.5-pro"
	}

	if c.Gateway.MaxTokens <= 0 {
		c.Gateway.MaxTokens = 8000
	}
	if c.Gateway.TimeoutSeconds <= 0 {
		c.Gateway.TimeoutSeconds = 120
	}

	// The credential itself is resolved lazily per request; warn-level
	// handling happens at startup in main.
	return nil
}
