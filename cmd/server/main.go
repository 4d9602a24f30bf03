package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/clipscribe/clipscribe/internal/ai"
	"github.com/clipscribe/clipscribe/internal/ai/gemini"
	"github.com/clipscribe/clipscribe/internal/ai/openai"
	"github.com/clipscribe/clipscribe/internal/api"
	"github.com/clipscribe/clipscribe/internal/config"
	"github.com/clipscribe/clipscribe/internal/session"
	"github.com/clipscribe/clipscribe/internal/storage/sqlite"
	"github.com/clipscribe/clipscribe/internal/transcription"
	"github.com/clipscribe/clipscribe/internal/websocket"
	"github.com/clipscribe/clipscribe/pkg/logger"
)

var (
	// Version is injected at build time
	Version = "dev"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	flag.Parse()

	// Load configuration with fallback logic
	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Create logger
	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting Clipscribe server",
		logger.String("version", Version),
		logger.String("config_path", *configPath),
	)

	apiKey := cfg.ResolveAPIKey()
	if apiKey == "" {
		// Requests will fail with a configuration error until the key is set
		log.Warn("Gateway API key is not configured",
			logger.String("env_var", config.EnvAPIKey))
	}

	// Create the AI provider
	var provider ai.Provider
	switch cfg.Gateway.Provider {
	case "gemini":
		provider = gemini.NewClient(apiKey, log)
	default:
		provider = openai.NewClient(apiKey, cfg.Gateway.BaseURL, log,
			openai.WithChatCompletionsPath(cfg.Gateway.ChatCompletionsPath),
			openai.WithTimeout(time.Duration(cfg.Gateway.TimeoutSeconds)*time.Second),
		)
	}
	log.Info("Using AI provider", logger.String("provider", cfg.Gateway.Provider))

	// Create transcript storage (optional)
	var transcriptStorage *sqlite.TranscriptStorage
	if cfg.Storage.SQLitePath != "" {
		dbDir := filepath.Dir(cfg.Storage.SQLitePath)
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			log.Error("Failed to create database directory", logger.Error(err), logger.String("path", dbDir))
			os.Exit(1)
		}

		db, err := sqlite.Open(cfg.Storage.SQLitePath, log)
		if err != nil {
			log.Error("Failed to open SQLite storage", logger.Error(err))
			os.Exit(1)
		}
		defer db.Close()

		transcriptStorage, err = sqlite.NewTranscriptStorage(db, log)
		if err != nil {
			log.Error("Failed to initialize transcript storage", logger.Error(err))
			os.Exit(1)
		}
		log.Info("Using SQLite storage", logger.String("path", cfg.Storage.SQLitePath))
	} else {
		log.Info("Transcript history disabled (no storage path configured)")
	}

	// Create WebSocket server
	wsServer := websocket.NewServer(log)
	go wsServer.Run()

	// Create transcription service
	transcriptionService := transcription.NewService(provider, transcription.Config{
		Model:                 cfg.Gateway.Model,
		VisualModel:           cfg.Gateway.VisualModel,
		MaxTokens:             cfg.Gateway.MaxTokens,
		SegmentSeconds:        cfg.Transcription.SegmentSeconds,
		FallbackWindowSeconds: cfg.Transcription.FallbackWindowSeconds,
		DecodeChunkSize:       cfg.Transcription.DecodeChunkSize,
	}, log)

	// Create session manager
	sessions := session.NewManager(session.Config{
		Uploading:  time.Duration(cfg.Pipeline.UploadingMs) * time.Millisecond,
		Extracting: time.Duration(cfg.Pipeline.ExtractingMs) * time.Millisecond,
		Analyzing:  time.Duration(cfg.Pipeline.AnalyzingMs) * time.Millisecond,
		Formatting: time.Duration(cfg.Pipeline.FormattingMs) * time.Millisecond,
		Aligning:   time.Duration(cfg.Pipeline.AligningMs) * time.Millisecond,
		Ticks:      cfg.Pipeline.Ticks,
		Retention:  time.Duration(cfg.Pipeline.SessionRetentionMinutes) * time.Minute,
	}, wsServer, log)

	// Create API router
	handler := api.NewHandler(
		transcriptionService,
		sessions,
		transcriptStorage,
		wsServer,
		log,
		int64(cfg.Server.MaxUploadMB)*1024*1024,
	)
	router := api.NewRouter(handler, cfg.Server.CORSAllowedOrigins)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
	}

	go func() {
		log.Info("Starting HTTP server", logger.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error on startup", logger.String("addr", addr), logger.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", logger.Error(err))
	} else {
		log.Info("HTTP server shutdown complete")
	}

	log.Info("Server fully stopped")
}
