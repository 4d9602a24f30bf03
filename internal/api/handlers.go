// Package api exposes the HTTP surface: the two transcription endpoints,
// session and history reads, and the progress WebSocket.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clipscribe/clipscribe/internal/ai"
	"github.com/clipscribe/clipscribe/internal/session"
	"github.com/clipscribe/clipscribe/internal/storage/sqlite"
	"github.com/clipscribe/clipscribe/internal/transcription"
	"github.com/clipscribe/clipscribe/internal/websocket"
	"github.com/clipscribe/clipscribe/pkg/logger"
)

// Client-facing error messages for gateway failures
const (
	msgRateLimited   = "Rate limit exceeded. Please try again in a moment."
	msgQuotaExceeded = "AI usage limit reached. Please add credits to continue."
)

// Handler contains the API handlers
type Handler struct {
	transcriptionService *transcription.Service
	sessions             *session.Manager
	transcriptStorage    *sqlite.TranscriptStorage // nil when history is disabled
	wsServer             *websocket.Server
	logger               *logger.Logger
	maxUploadBytes       int64
}

// NewHandler creates a new API handler. transcriptStorage may be nil.
func NewHandler(transcriptionService *transcription.Service, sessions *session.Manager, transcriptStorage *sqlite.TranscriptStorage, wsServer *websocket.Server, logger *logger.Logger, maxUploadBytes int64) *Handler {
	return &Handler{
		transcriptionService: transcriptionService,
		sessions:             sessions,
		transcriptStorage:    transcriptStorage,
		wsServer:             wsServer,
		logger:               logger.Named("api-handler"),
		maxUploadBytes:       maxUploadBytes,
	}
}

type transcribeRequest struct {
	Audio    string  `json:"audio"`
	Language *string `json:"language"`
	FileName string  `json:"fileName"`
}

type visualTranscribeRequest struct {
	Video    string `json:"video"`
	FileName string `json:"fileName"`
}

// Transcribe handles POST /api/transcribe
func (h *Handler) Transcribe(w http.ResponseWriter, r *http.Request) {
	var req transcribeRequest
	if err := h.decodeBody(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	language := ""
	if req.Language != nil {
		language = *req.Language
	}

	sess := h.sessions.Create(session.ModeStandard)
	result, err := h.sessions.RunStandard(r.Context(), sess, func(ctx context.Context) (*transcription.Result, error) {
		return h.transcriptionService.Transcribe(ctx, transcription.TranscribeRequest{
			Audio:    req.Audio,
			Language: language,
			FileName: req.FileName,
		})
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.storeStandard(sess.ID, req.FileName, result)

	WriteJSON(w, http.StatusOK, map[string]any{
		"transcript": result.Transcript,
		"success":    true,
		"language":   result.Language,
		"session_id": sess.ID,
	})
}

// VisualTranscribe handles POST /api/visual-transcribe
func (h *Handler) VisualTranscribe(w http.ResponseWriter, r *http.Request) {
	var req visualTranscribeRequest
	if err := h.decodeBody(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	sess := h.sessions.Create(session.ModeVisual)
	result, err := h.sessions.RunVisual(r.Context(), sess, func(ctx context.Context) (*transcription.VisualResult, error) {
		return h.transcriptionService.VisualTranscribe(ctx, transcription.VisualRequest{
			Video:    req.Video,
			FileName: req.FileName,
		})
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.storeVisual(sess.ID, req.FileName, result)

	WriteJSON(w, http.StatusOK, map[string]any{
		"segments":   result.Segments,
		"success":    true,
		"session_id": sess.ID,
	})
}

// GetSession handles GET /api/sessions/{id}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, ok := h.sessions.Get(id)
	if !ok {
		WriteJSON(w, http.StatusNotFound, map[string]any{
			"error":   "session not found",
			"success": false,
		})
		return
	}
	WriteJSON(w, http.StatusOK, sess.Snapshot())
}

// GetTranscripts handles GET /api/transcripts
func (h *Handler) GetTranscripts(w http.ResponseWriter, r *http.Request) {
	if h.transcriptStorage == nil {
		WriteJSON(w, http.StatusNotFound, map[string]any{
			"error":   "transcript history is disabled",
			"success": false,
		})
		return
	}

	limit, offset := parsePaginationParams(r)
	transcripts, err := h.transcriptStorage.GetTranscripts(limit, offset)
	if err != nil {
		h.logger.Error("Failed to retrieve transcripts", logger.Error(err))
		WriteJSON(w, http.StatusInternalServerError, map[string]any{
			"error":   "Failed to retrieve transcripts",
			"success": false,
		})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"timestamp":   time.Now(),
		"count":       len(transcripts),
		"transcripts": transcripts,
	})
}

// GetTranscript handles GET /api/transcripts/{id}
func (h *Handler) GetTranscript(w http.ResponseWriter, r *http.Request) {
	if h.transcriptStorage == nil {
		WriteJSON(w, http.StatusNotFound, map[string]any{
			"error":   "transcript history is disabled",
			"success": false,
		})
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "invalid transcript ID",
			"success": false,
		})
		return
	}

	record, err := h.transcriptStorage.GetTranscript(id)
	if err != nil {
		h.logger.Error("Failed to retrieve transcript", logger.Error(err))
		WriteJSON(w, http.StatusInternalServerError, map[string]any{
			"error":   "Failed to retrieve transcript",
			"success": false,
		})
		return
	}
	if record == nil {
		WriteJSON(w, http.StatusNotFound, map[string]any{
			"error":   "transcript not found",
			"success": false,
		})
		return
	}

	WriteJSON(w, http.StatusOK, record)
}

// Health handles GET /api/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

// HandleWebSocket handles GET /api/ws
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	h.wsServer.HandleConnection(w, r)
}

// decodeBody reads and decodes a JSON request body with the upload cap
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}
	return json.NewDecoder(r.Body).Decode(v)
}

// writeError maps an error to the client-facing status and message. Gateway
// rate and quota failures keep their dedicated statuses; everything else,
// including missing payload fields and missing credentials, is a 500.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := err.Error()

	if gerr, ok := ai.AsGatewayError(err); ok {
		switch gerr.Kind {
		case ai.KindRateLimited:
			status = http.StatusTooManyRequests
			message = msgRateLimited
		case ai.KindQuotaExceeded:
			status = http.StatusPaymentRequired
			message = msgQuotaExceeded
		}
	}

	h.logger.Error("Request failed",
		logger.Int("status", status),
		logger.Error(err))

	WriteJSON(w, status, map[string]any{
		"error":   message,
		"success": false,
	})
}

func (h *Handler) storeStandard(sessionID, fileName string, result *transcription.Result) {
	if h.transcriptStorage == nil {
		return
	}
	if _, err := h.transcriptStorage.StoreStandard(sessionID, fileName, result); err != nil {
		// History is best-effort; the response already succeeded
		h.logger.Error("Failed to store transcript", logger.Error(err))
	}
}

func (h *Handler) storeVisual(sessionID, fileName string, result *transcription.VisualResult) {
	if h.transcriptStorage == nil {
		return
	}
	if _, err := h.transcriptStorage.StoreVisual(sessionID, fileName, result); err != nil {
		h.logger.Error("Failed to store transcript", logger.Error(err))
	}
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// Helper functions
func parsePaginationParams(r *http.Request) (int, int) {
	limit := 100 // Default limit
	offset := 0  // Default offset

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	return limit, offset
}
