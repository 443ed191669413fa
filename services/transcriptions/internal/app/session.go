package app

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"depohub/internal/util"
	"depohub/pkg/domain"
	"depohub/pkg/speech"
	"depohub/pkg/store"
)

var errSessionClosed = errors.New("transcription session closed")

// TranscriptEvent is one recognition result attributed to its connection.
type TranscriptEvent struct {
	ConnectionID string `json:"connectionId"`
	DepositionID string `json:"depositionId"`
	UserEmail    string `json:"userEmail"`
	Text         string `json:"text"`
	IsFinal      bool   `json:"isFinal"`
}

// controlFrame is an in-band JSON frame on the audio stream.
type controlFrame struct {
	OffRecord bool `json:"OffRecord"`
}

// Session owns one connection's recognition state: its engine handle, its
// off-record flag and the pump that persists final results. Audio frames for
// a session process one at a time; distinct sessions run fully in parallel.
type Session struct {
	connectionID string
	userEmail    string
	depositionID string

	recognizer speech.Recognizer
	sem        *semaphore.Weighted
	ready      chan struct{}
	closed     atomic.Bool
	offRecord  atomic.Bool

	store store.Store
	emit  func(TranscriptEvent)
	log   *slog.Logger
}

func newSession(connectionID, userEmail, depositionID string, s store.Store, emit func(TranscriptEvent), log *slog.Logger) *Session {
	if emit == nil {
		emit = func(TranscriptEvent) {}
	}
	return &Session{
		connectionID: connectionID,
		userEmail:    userEmail,
		depositionID: depositionID,
		sem:          semaphore.NewWeighted(1),
		ready:        make(chan struct{}),
		store:        s,
		emit:         emit,
		log:          log,
	}
}

// start opens the recognition session and begins the result pump. Called
// exactly once, by the registry insert winner.
func (s *Session) start(ctx context.Context, engine speech.Engine, sampleRate int) error {
	rec, err := engine.OpenSession(ctx, sampleRate)
	if err != nil {
		return err
	}
	s.recognizer = rec
	close(s.ready)
	go s.resultPump()
	return nil
}

// ProcessAudio handles one inbound frame. A frame starting with '{' is
// treated as a control frame; unrecognized control frames are dropped without
// closing the socket. Audio frames are serialized through the session
// semaphore, one in flight at a time.
func (s *Session) ProcessAudio(ctx context.Context, frame []byte) error {
	if s.closed.Load() {
		return errSessionClosed
	}
	select {
	case <-s.ready:
	case <-ctx.Done():
		return ctx.Err()
	}

	if len(frame) > 0 && frame[0] == '{' {
		var ctrl controlFrame
		if err := json.Unmarshal(frame, &ctrl); err != nil {
			return nil
		}
		if ctrl.OffRecord {
			s.offRecord.Store(true)
			s.log.Info("session went off record", "connection_id", s.connectionID)
		} else {
			s.offRecord.Store(false)
		}
		return nil
	}

	if s.offRecord.Load() {
		return nil
	}
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.sem.Release(1)
	if s.closed.Load() {
		return errSessionClosed
	}
	return s.recognizer.WriteAudio(ctx, frame)
}

// Close releases the recognition engine handle. Idempotent and safe under
// concurrent teardown attempts; engine handle goes first, the rest of the
// session state follows.
func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if s.recognizer != nil {
		return s.recognizer.Close()
	}
	return nil
}

func (s *Session) resultPump() {
	for res := range s.recognizer.Results() {
		if s.offRecord.Load() {
			continue
		}
		if res.IsFinal {
			record := domain.TranscriptionRecord{
				ID:           util.NewID(),
				DepositionID: s.depositionID,
				UserEmail:    s.userEmail,
				Text:         res.Text,
				RecordedAt:   time.Now().UTC(),
				CreatedAt:    time.Now().UTC(),
			}
			if err := s.store.SaveTranscription(record); err != nil {
				s.log.Error("failed to persist transcription",
					"connection_id", s.connectionID, "deposition_id", s.depositionID, "err", err)
			}
		}
		s.emit(TranscriptEvent{
			ConnectionID: s.connectionID,
			DepositionID: s.depositionID,
			UserEmail:    s.userEmail,
			Text:         res.Text,
			IsFinal:      res.IsFinal,
		})
	}
}
