package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"

	"depohub/internal/accesstoken"
	"depohub/internal/util"
	"depohub/pkg/domain"
	"depohub/pkg/signalhub"
	"depohub/services/transcriptions/internal/app"
)

const defaultSampleRate = 16000

// Config wires required dependencies for the transcription server.
type Config struct {
	App    *app.App
	Tokens *accesstoken.Codec
	Hub    *signalhub.Hub
}

// Server exposes the websocket ingress and the draft-request endpoint.
type Server struct {
	app      *app.App
	tokens   *accesstoken.Codec
	hub      *signalhub.Hub
	upgrader websocket.Upgrader
	mux      *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	s := &Server{
		app:    cfg.App,
		tokens: cfg.Tokens,
		hub:    cfg.Hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  32 * 1024,
			WriteBufferSize: 8 * 1024,
		},
		mux: http.NewServeMux(),
	}
	s.routes()
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("transcriptions", s.mux))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/transcriptions/stream", s.handleStream)
	s.mux.HandleFunc("/transcriptions/drafts", s.handleDraftRequest)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStream upgrades to a websocket and relays audio frames into the
// connection's recognition session. The session starts lazily on the first
// frame and ends when the socket closes or the client unsubscribes.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	email, ok := s.authenticate(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	depositionID := r.URL.Query().Get("depositionId")
	if depositionID == "" {
		writeError(w, http.StatusBadRequest, "depositionId is required")
		return
	}
	sampleRate := defaultSampleRate
	if v := r.URL.Query().Get("sampleRate"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			sampleRate = n
		}
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	connectionID := util.NewID()
	conn := s.hub.Register(email, ws)
	defer func() {
		s.app.Registry.Unsubscribe(connectionID)
		s.hub.Unregister(email, conn)
		ws.Close()
	}()

	emit := func(e app.TranscriptEvent) {
		payload, err := json.Marshal(e)
		if err != nil {
			return
		}
		if err := conn.Send(payload); err != nil {
			slog.Warn("transcript write failed", "connection_id", e.ConnectionID, "err", err)
		}
	}

	slog.Info("transcription stream opened",
		"connection_id", connectionID, "deposition_id", depositionID, "user", email)

	for {
		msgType, frame, err := ws.ReadMessage()
		if err != nil {
			slog.Info("transcription stream closed", "connection_id", connectionID)
			return
		}
		if msgType != websocket.BinaryMessage && msgType != websocket.TextMessage {
			continue
		}
		if err := s.app.Registry.TryInitialize(r.Context(), connectionID, email, depositionID, sampleRate, emit); err != nil {
			slog.Error("session initialization failed",
				"connection_id", connectionID, "err", err)
			return
		}
		session, ok := s.app.Registry.Get(connectionID)
		if !ok {
			return
		}
		if err := session.ProcessAudio(r.Context(), frame); err != nil {
			slog.Warn("audio frame rejected", "connection_id", connectionID, "err", err)
			return
		}
	}
}

// handleDraftRequest enqueues a background draft-transcript job. The job is
// fire and forget, so the only honest answer is 202.
func (s *Server) handleDraftRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if _, ok := s.authenticate(r); !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req domain.DraftTranscriptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.DepositionID == "" {
		writeError(w, http.StatusBadRequest, "depositionId is required")
		return
	}
	if err := s.app.RequestDraft(&req); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to enqueue draft request")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// authenticate resolves the caller's email from the bearer token. Websocket
// clients that cannot set headers may pass the token as a query parameter.
func (s *Server) authenticate(r *http.Request) (string, bool) {
	token := ""
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		token = strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		return "", false
	}
	email, err := s.tokens.VerifySubject(token)
	if err != nil {
		return "", false
	}
	return email, true
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
