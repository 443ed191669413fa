package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"depohub/internal/util"
	"depohub/pkg/domain"
	"depohub/pkg/queue"
	"depohub/pkg/storage"
	"depohub/pkg/store"
)

// DraftWorker consumes draft-transcript requests and materializes a rough
// transcript document from the accumulated transcription records. Requests
// carry no acknowledgement path: failures are logged and the request is gone.
type DraftWorker struct {
	queue   *queue.TaskQueue
	store   store.Store
	objects storage.ObjectStore
	log     *slog.Logger
}

func NewDraftWorker(q *queue.TaskQueue, s store.Store, objects storage.ObjectStore, log *slog.Logger) *DraftWorker {
	if log == nil {
		log = slog.Default()
	}
	return &DraftWorker{queue: q, store: s, objects: objects, log: log}
}

// Run is the single consumer loop. It lives for the process lifetime and
// exits only when ctx is canceled.
func (w *DraftWorker) Run(ctx context.Context) error {
	for {
		req, err := w.queue.Dequeue(ctx)
		if err != nil {
			return err
		}
		if err := w.generate(ctx, req); err != nil {
			w.log.Error("draft generation failed",
				"deposition_id", req.DepositionID, "err", err)
		}
	}
}

func (w *DraftWorker) generate(ctx context.Context, req *domain.DraftTranscriptRequest) error {
	records, err := w.store.ListTranscriptionsByDeposition(req.DepositionID)
	if err != nil {
		return fmt.Errorf("list transcriptions: %w", err)
	}
	if len(records) == 0 {
		w.log.Info("no transcription records, skipping draft", "deposition_id", req.DepositionID)
		return nil
	}

	text := composeDraft(records)
	// pdf requests are stored with their requested format but rendered as
	// plain text; conversion happens outside this system
	name := fmt.Sprintf("draft-%s.txt", time.Now().UTC().Format("20060102-150405"))
	key := fmt.Sprintf("depositions/%s/drafts/%s-%s", req.DepositionID, util.NewID(), name)
	if err := w.objects.Put(ctx, key, strings.NewReader(text), int64(len(text)), "text/plain"); err != nil {
		return fmt.Errorf("upload draft: %w", err)
	}

	docType := req.DocumentType
	if docType == "" {
		docType = domain.DocumentTypeDraftTranscription
	}
	doc := domain.Document{
		ID:            util.NewID(),
		Name:          name,
		DisplayName:   name,
		FilePath:      key,
		FileExtension: "txt",
		Size:          int64(len(text)),
		Type:          docType,
		DepositionID:  req.DepositionID,
		CreatedAt:     time.Now().UTC(),
	}
	if err := w.store.SaveDocument(doc); err != nil {
		return fmt.Errorf("save draft document: %w", err)
	}
	w.log.Info("draft transcript generated",
		"deposition_id", req.DepositionID, "document_id", doc.ID, "records", len(records))
	return nil
}

func composeDraft(records []domain.TranscriptionRecord) string {
	var b strings.Builder
	for _, r := range records {
		b.WriteString(r.RecordedAt.UTC().Format("15:04:05"))
		b.WriteString(" ")
		b.WriteString(r.UserEmail)
		b.WriteString(": ")
		b.WriteString(r.Text)
		b.WriteString("\n")
	}
	return b.String()
}
