package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the relay HTTP server: the webhook endpoint plus the two
// chat-proxy endpoints.
type Server struct {
	config   Config
	platform PlatformClient
	verifier SignatureVerifier
	logger   *slog.Logger
	server   *http.Server

	// offers is the membership index over config.Offers
	offers map[string]struct{}
}

// New creates a new relay server instance. verifier may be nil to run
// the unsigned variant.
func New(config Config, platform PlatformClient, verifier SignatureVerifier, logger *slog.Logger) *Server {
	if config.MaxBodySize == 0 {
		config.MaxBodySize = DefaultMaxBodySize
	}

	offers := make(map[string]struct{}, len(config.Offers))
	for _, h := range config.Offers {
		offers[h] = struct{}{}
	}

	return &Server{
		config:   config,
		platform: platform,
		verifier: verifier,
		logger:   logger,
		offers:   offers,
	}
}

// Start starts the relay HTTP server (blocking).
func (s *Server) Start(ctx context.Context) error {
	router := s.setupRoutes()

	s.server = &http.Server{
		Addr:    s.config.Listen,
		Handler: router,
		// No WriteTimeout: the webhook handler holds the response open
		// for the full greeting delay plus the outbound call.
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	s.logger.Info("relay server starting",
		"listen", s.config.Listen,
		"offers", len(s.offers),
		"signed", s.verifier != nil,
	)

	// Run server in goroutine
	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for context cancellation or server error
	select {
	case <-ctx.Done():
		s.logger.Info("relay server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("relay server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("relay server error: %w", err)
	}
}

// setupRoutes configures the HTTP router.
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Post("/webhook", s.handleWebhook)
	r.Post("/trade-chat/get", s.handleChatGet)
	r.Post("/trade-chat/post", s.handleChatPost)

	return r
}

// loggingMiddleware logs HTTP requests (excludes payloads).
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
			"remote_addr", r.RemoteAddr,
		)
	})
}

// watched reports whether the offer hash is in the configured set.
func (s *Server) watched(offerHash string) bool {
	_, ok := s.offers[offerHash]
	return ok
}

// respondText sends a plain-text response. The webhook endpoint's wire
// contract is plain "OK" / "Invalid signature" / "Error" bodies.
func (s *Server) respondText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(body))
}

// respondEnvelope sends the chat-proxy JSON status envelope.
func (s *Server) respondEnvelope(w http.ResponseWriter, status int, resp StatusResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// successEnvelope wraps a platform response body.
func successEnvelope(data json.RawMessage) StatusResponse {
	return StatusResponse{
		Data:      data,
		Status:    StatusSuccess,
		Timestamp: time.Now().Unix(),
	}
}

// errorEnvelope carries no detail beyond the status.
func errorEnvelope() StatusResponse {
	return StatusResponse{
		Status:    StatusError,
		Timestamp: time.Now().Unix(),
	}
}
