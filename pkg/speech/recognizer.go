package speech

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Result is one recognition hypothesis from the engine. Interim results may
// be revised; a final result is stable and safe to persist.
type Result struct {
	Text       string  `json:"text"`
	IsFinal    bool    `json:"isFinal"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Recognizer is one live recognition session. WriteAudio streams raw audio
// in; Results delivers hypotheses until the session ends, then the channel
// closes. Close is idempotent.
type Recognizer interface {
	WriteAudio(ctx context.Context, chunk []byte) error
	Results() <-chan Result
	Close() error
}

// Engine opens recognition sessions against a speech-to-text backend.
type Engine interface {
	OpenSession(ctx context.Context, sampleRate int) (Recognizer, error)
}

// WSEngine speaks to a websocket speech-to-text service: binary frames carry
// audio upstream, text frames carry JSON results downstream.
type WSEngine struct {
	url    string
	dialer *websocket.Dialer
}

func NewWSEngine(url string) *WSEngine {
	return &WSEngine{
		url: url,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

func (e *WSEngine) OpenSession(ctx context.Context, sampleRate int) (Recognizer, error) {
	header := http.Header{}
	header.Set("X-Sample-Rate", fmt.Sprintf("%d", sampleRate))
	conn, _, err := e.dialer.DialContext(ctx, e.url, header)
	if err != nil {
		return nil, fmt.Errorf("dial speech engine: %w", err)
	}
	s := &wsSession{
		conn:    conn,
		results: make(chan Result, 16),
	}
	go s.readPump()
	return s, nil
}

type wsSession struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	closed  atomic.Bool
	results chan Result
}

func (s *wsSession) WriteAudio(ctx context.Context, chunk []byte) error {
	if s.closed.Load() {
		return fmt.Errorf("speech session closed")
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		s.conn.SetWriteDeadline(deadline)
	} else {
		s.conn.SetWriteDeadline(time.Now().Add(30 * time.Second))
	}
	if err := s.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
		return fmt.Errorf("write audio: %w", err)
	}
	return nil
}

func (s *wsSession) Results() <-chan Result {
	return s.results
}

func (s *wsSession) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.writeMu.Lock()
	s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	s.writeMu.Unlock()
	return s.conn.Close()
}

func (s *wsSession) readPump() {
	defer close(s.results)
	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			s.closed.Store(true)
			return
		}
		var res Result
		if err := json.Unmarshal(payload, &res); err != nil {
			// non-JSON frames from the engine are ignored
			continue
		}
		s.results <- res
	}
}
