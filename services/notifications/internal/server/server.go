package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"depohub/internal/ratelimit"
	"depohub/internal/util"
	"depohub/pkg/domain"
	"depohub/services/notifications/internal/app"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App          *app.App
	Limiter      *ratelimit.FixedWindowLimiter
	TrustProxy   bool
	MaxBodyBytes int64
}

// Server exposes the pub/sub webhook for the notifications service.
type Server struct {
	app          *app.App
	limiter      *ratelimit.FixedWindowLimiter
	trustProxy   bool
	maxBodyBytes int64
	mux          *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	maxBodyBytes := cfg.MaxBodyBytes
	if maxBodyBytes <= 0 {
		maxBodyBytes = 1 * 1024 * 1024
	}
	s := &Server{
		app:          cfg.App,
		limiter:      cfg.Limiter,
		trustProxy:   cfg.TrustProxy,
		maxBodyBytes: maxBodyBytes,
		mux:          http.NewServeMux(),
	}
	s.routes()
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("notifications", s.mux))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.Handle("/notifications", s.withRateLimit(s.handleNotifications))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) withRateLimit(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil {
			ip := util.ClientIP(r, s.trustProxy)
			if !s.limiter.Allow(ip) {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
		}
		next(w, r)
	})
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, s.maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	var env domain.NotificationEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if env.MessageID == "" {
		writeError(w, http.StatusBadRequest, "MessageId is required")
		return
	}

	if err := s.app.Process(r.Context(), env); err != nil {
		if app.IsHandleError(err) {
			// a data problem: acknowledge so the producer does not redeliver
			slog.Warn("dropping unprocessable message", "message_id", env.MessageID, "err", err)
			writeJSON(w, http.StatusOK, map[string]string{"status": "dropped"})
			return
		}
		slog.Error("notification processing failed", "message_id", env.MessageID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "processed"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		RequestID: strings.TrimSpace(w.Header().Get("X-Request-Id")),
	})
}
