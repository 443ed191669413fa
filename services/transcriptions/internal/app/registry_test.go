package app

import (
	"context"
	"errors"
	"sync"
	"testing"

	"depohub/pkg/speech"
	"depohub/pkg/store"
)

type fakeRecognizer struct {
	mu      sync.Mutex
	writes  [][]byte
	closes  int
	results chan speech.Result
}

func newFakeRecognizer() *fakeRecognizer {
	return &fakeRecognizer{results: make(chan speech.Result, 16)}
}

func (f *fakeRecognizer) WriteAudio(_ context.Context, chunk []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, append([]byte(nil), chunk...))
	return nil
}

func (f *fakeRecognizer) Results() <-chan speech.Result { return f.results }

func (f *fakeRecognizer) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	if f.closes == 1 {
		close(f.results)
	}
	return nil
}

func (f *fakeRecognizer) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

func (f *fakeRecognizer) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

type fakeEngine struct {
	mu       sync.Mutex
	opens    int
	failErr  error
	sessions []*fakeRecognizer
}

func (f *fakeEngine) OpenSession(context.Context, int) (speech.Recognizer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens++
	if f.failErr != nil {
		return nil, f.failErr
	}
	rec := newFakeRecognizer()
	f.sessions = append(f.sessions, rec)
	return rec, nil
}

func (f *fakeEngine) openCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens
}

func TestConcurrentInitializeStartsExactlyOneSession(t *testing.T) {
	engine := &fakeEngine{}
	r := NewRegistry(engine, store.NewMemoryStore(), nil)

	const callers = 16
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = r.TryInitialize(context.Background(), "conn-1",
				"reporter@example.com", "depo-1", 16000, nil)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("caller %d: %v", i, err)
		}
	}
	if engine.openCount() != 1 {
		t.Fatalf("expected exactly 1 engine session, got %d", engine.openCount())
	}
	if r.Len() != 1 {
		t.Fatalf("expected 1 registered session, got %d", r.Len())
	}
}

func TestInitializeFailureLeavesNoEntry(t *testing.T) {
	engine := &fakeEngine{failErr: errors.New("engine unavailable")}
	r := NewRegistry(engine, store.NewMemoryStore(), nil)

	err := r.TryInitialize(context.Background(), "conn-1", "a@example.com", "depo-1", 16000, nil)
	if err == nil {
		t.Fatal("expected initialization failure")
	}
	if _, ok := r.Get("conn-1"); ok {
		t.Fatal("failed initialization must not leave an entry")
	}

	// a later attempt may retry and succeed
	engine.mu.Lock()
	engine.failErr = nil
	engine.mu.Unlock()
	if err := r.TryInitialize(context.Background(), "conn-1", "a@example.com", "depo-1", 16000, nil); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
	if _, ok := r.Get("conn-1"); !ok {
		t.Fatal("retry should have registered a session")
	}
}

func TestGetDoesNotCreate(t *testing.T) {
	r := NewRegistry(&fakeEngine{}, store.NewMemoryStore(), nil)
	if _, ok := r.Get("nope"); ok {
		t.Fatal("lookup must not create sessions")
	}
	if r.Len() != 0 {
		t.Fatalf("registry should stay empty, got %d", r.Len())
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	engine := &fakeEngine{}
	r := NewRegistry(engine, store.NewMemoryStore(), nil)
	if err := r.TryInitialize(context.Background(), "conn-1", "a@example.com", "depo-1", 16000, nil); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	r.Unsubscribe("conn-1")
	r.Unsubscribe("conn-1")
	r.Unsubscribe("never-existed")

	if _, ok := r.Get("conn-1"); ok {
		t.Fatal("session should be gone after unsubscribe")
	}
	if n := engine.sessions[0].closeCount(); n != 1 {
		t.Fatalf("engine handle should be closed once, got %d", n)
	}
}

func TestConcurrentUnsubscribeClosesOnce(t *testing.T) {
	engine := &fakeEngine{}
	r := NewRegistry(engine, store.NewMemoryStore(), nil)
	if err := r.TryInitialize(context.Background(), "conn-1", "a@example.com", "depo-1", 16000, nil); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Unsubscribe("conn-1")
		}()
	}
	wg.Wait()

	if n := engine.sessions[0].closeCount(); n != 1 {
		t.Fatalf("engine handle should be closed exactly once, got %d", n)
	}
}
