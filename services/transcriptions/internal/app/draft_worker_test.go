package app

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"depohub/pkg/domain"
	"depohub/pkg/queue"
	"depohub/pkg/storage"
	"depohub/pkg/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedRecords(t *testing.T, mem *store.MemoryStore) {
	t.Helper()
	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	for i, text := range []string{"please state your name", "John Smith", "thank you"} {
		err := mem.SaveTranscription(domain.TranscriptionRecord{
			ID:           text,
			DepositionID: "depo-1",
			UserEmail:    "reporter@example.com",
			Text:         text,
			RecordedAt:   base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("seed record: %v", err)
		}
	}
}

func TestDraftGenerationPersistsDocumentAndObject(t *testing.T) {
	mem := store.NewMemoryStore()
	objects := storage.NewMemoryStore()
	seedRecords(t, mem)
	w := NewDraftWorker(queue.NewTaskQueue(), mem, objects, testLogger())

	req := &domain.DraftTranscriptRequest{
		DepositionID: "depo-1",
		DocumentType: domain.DocumentTypeDraftTranscription,
		Format:       domain.DraftFormatText,
	}
	if err := w.generate(context.Background(), req); err != nil {
		t.Fatalf("generate: %v", err)
	}

	docs, err := mem.ListDocumentsByDeposition("depo-1")
	if err != nil || len(docs) != 1 {
		t.Fatalf("expected 1 draft document, got %d (%v)", len(docs), err)
	}
	doc := docs[0]
	if doc.Type != domain.DocumentTypeDraftTranscription || doc.FileExtension != "txt" {
		t.Fatalf("unexpected draft document: %+v", doc)
	}

	data, ok := objects.Object(doc.FilePath)
	if !ok {
		t.Fatalf("draft object %q not uploaded", doc.FilePath)
	}
	text := string(data)
	if !strings.Contains(text, "reporter@example.com: John Smith") {
		t.Fatalf("draft missing attributed line:\n%s", text)
	}
	if strings.Index(text, "please state your name") > strings.Index(text, "thank you") {
		t.Fatalf("draft lines out of recording order:\n%s", text)
	}
	if doc.Size != int64(len(data)) {
		t.Fatalf("document size %d does not match object size %d", doc.Size, len(data))
	}
}

func TestDraftSkippedWithoutRecords(t *testing.T) {
	mem := store.NewMemoryStore()
	objects := storage.NewMemoryStore()
	w := NewDraftWorker(queue.NewTaskQueue(), mem, objects, testLogger())

	req := &domain.DraftTranscriptRequest{DepositionID: "empty-depo"}
	if err := w.generate(context.Background(), req); err != nil {
		t.Fatalf("generate on empty deposition must not error: %v", err)
	}
	if docs, _ := mem.ListDocumentsByDeposition("empty-depo"); len(docs) != 0 {
		t.Fatal("no document should be created without records")
	}
	if len(objects.Keys()) != 0 {
		t.Fatal("no object should be uploaded without records")
	}
}

func TestWorkerRunConsumesQueue(t *testing.T) {
	mem := store.NewMemoryStore()
	objects := storage.NewMemoryStore()
	seedRecords(t, mem)
	q := queue.NewTaskQueue()
	w := NewDraftWorker(q, mem, objects, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()

	if err := q.Enqueue(&domain.DraftTranscriptRequest{DepositionID: "depo-1"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		docs, _ := mem.ListDocumentsByDeposition("depo-1")
		if len(docs) == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("worker did not generate the draft, %d docs", len(docs))
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on cancellation")
	}
}
