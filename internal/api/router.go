package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// CORSOptions builds the permissive CORS policy the browser app relies on:
// any origin by default, plus the headers the frontend client attaches to
// every call (authorization, x-client-info, apikey).
func CORSOptions(allowedOrigins []string) cors.Options {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	// When wildcard is used, disable AllowCredentials to prevent CSRF
	allowCreds := true
	for _, o := range allowedOrigins {
		if o == "*" {
			allowCreds = false
			break
		}
	}

	return cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "X-Client-Info", "Apikey", "Content-Type"},
		AllowCredentials: allowCreds,
		MaxAge:           300,
	}
}

// NewRouter builds the HTTP router
func NewRouter(handler *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(cors.Handler(CORSOptions(allowedOrigins)))

	r.Route("/api", func(r chi.Router) {
		r.Post("/transcribe", handler.Transcribe)
		r.Post("/visual-transcribe", handler.VisualTranscribe)

		r.Get("/health", handler.Health)
		r.Get("/sessions/{id}", handler.GetSession)
		r.Get("/transcripts", handler.GetTranscripts)
		r.Get("/transcripts/{id}", handler.GetTranscript)
		r.Get("/ws", handler.HandleWebSocket)
	})

	return r
}
