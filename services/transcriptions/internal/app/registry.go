package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"depohub/pkg/speech"
	"depohub/pkg/store"
)

// Registry maps live connection ids to their recognition sessions. Insert is
// atomic: under a first-frame race, exactly one caller starts a session and
// every other caller observes it and does nothing.
type Registry struct {
	sessions sync.Map
	engine   speech.Engine
	store    store.Store
	log      *slog.Logger
}

func NewRegistry(engine speech.Engine, s store.Store, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{engine: engine, store: s, log: log}
}

// TryInitialize ensures a started session exists for connectionID. The
// insert winner starts the session; a failed start removes the entry so a
// later call can retry. Losers return nil without touching anything.
func (r *Registry) TryInitialize(ctx context.Context, connectionID, userEmail, depositionID string, sampleRate int, emit func(TranscriptEvent)) error {
	s := newSession(connectionID, userEmail, depositionID, r.store, emit, r.log)
	if _, loaded := r.sessions.LoadOrStore(connectionID, s); loaded {
		return nil
	}
	if err := s.start(ctx, r.engine, sampleRate); err != nil {
		r.sessions.Delete(connectionID)
		return fmt.Errorf("start session %s: %w", connectionID, err)
	}
	r.log.Info("transcription session started",
		"connection_id", connectionID, "deposition_id", depositionID, "user", userEmail)
	return nil
}

// Get looks up the session for connectionID. It never creates one.
func (r *Registry) Get(connectionID string) (*Session, bool) {
	v, ok := r.sessions.Load(connectionID)
	if !ok {
		return nil, false
	}
	return v.(*Session), true
}

// Unsubscribe removes and closes the session for connectionID. A no-op when
// absent; safe to call any number of times.
func (r *Registry) Unsubscribe(connectionID string) {
	v, ok := r.sessions.LoadAndDelete(connectionID)
	if !ok {
		return
	}
	if err := v.(*Session).Close(); err != nil {
		r.log.Warn("session close failed", "connection_id", connectionID, "err", err)
	}
}

// Len reports how many sessions are live.
func (r *Registry) Len() int {
	n := 0
	r.sessions.Range(func(any, any) bool {
		n++
		return true
	})
	return n
}
