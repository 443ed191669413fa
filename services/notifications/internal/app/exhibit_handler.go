package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"depohub/internal/util"
	"depohub/pkg/domain"
	"depohub/pkg/storage"
	"depohub/pkg/store"
)

// Notifier delivers a real-time push to a single user identity.
type Notifier interface {
	SendToUser(ctx context.Context, identity string, payload []byte) error
}

// ExhibitHandler claims exhibit-uploaded notifications: it persists the
// document atomically and, only after the commit, pushes a Create event to
// the uploading user.
type ExhibitHandler struct {
	store    store.Store
	objects  storage.ObjectStore
	notifier Notifier
	maxSize  int64
	log      *slog.Logger
}

func NewExhibitHandler(s store.Store, objects storage.ObjectStore, notifier Notifier, maxSize int64, log *slog.Logger) *ExhibitHandler {
	return &ExhibitHandler{store: s, objects: objects, notifier: notifier, maxSize: maxSize, log: log}
}

func (h *ExhibitHandler) Handle(ctx context.Context, env domain.NotificationEnvelope) (bool, error) {
	notif, ok := ParseExhibitUploaded(env.Message)
	if !ok {
		return false, nil
	}

	dc := notif.Context
	if h.maxSize > 0 && dc.Size > h.maxSize {
		return false, NewHandleError(env.MessageID,
			fmt.Errorf("exhibit size %d exceeds limit %d", dc.Size, h.maxSize))
	}
	if dc.AddedBy == "" || dc.DepositionID == "" {
		return false, NewHandleError(env.MessageID,
			fmt.Errorf("exhibit notification missing AddedBy or DepositionId"))
	}

	doc := domain.Document{
		ID:            util.NewID(),
		Name:          dc.Name,
		DisplayName:   dc.DisplayName,
		FilePath:      dc.FilePath,
		FileExtension: strings.TrimPrefix(filepath.Ext(dc.Name), "."),
		Size:          dc.Size,
		AddedByID:     dc.AddedBy,
		Type:          domain.ParseDocumentType(dc.DocumentType),
		DepositionID:  dc.DepositionID,
		CreatedAt:     time.Now().UTC(),
	}
	if doc.DisplayName == "" {
		doc.DisplayName = doc.Name
	}
	doc.PageCount = h.countPages(ctx, doc)

	owner, err := h.store.CreateExhibitDocument(ctx, doc)
	if err != nil {
		return false, NewHandleError(env.MessageID, fmt.Errorf("persist exhibit: %w", err))
	}
	if err := h.store.RecordProcessedMessage(env.MessageID, []byte(env.Message)); err != nil {
		h.log.Warn("failed to record processed message", "message_id", env.MessageID, "err", err)
	}

	// push only after the transaction committed: a client reacting to the
	// event must be able to query the document
	push := domain.PushNotification{
		Action:     domain.ActionCreate,
		EntityType: domain.EntityExhibit,
		Content: domain.PushContent{
			Message: fmt.Sprintf("Exhibit %q uploaded", doc.DisplayName),
			Data: domain.PushData{
				ResourceID: doc.DepositionID,
				DocumentID: doc.ID,
			},
		},
	}
	payload, err := json.Marshal(push)
	if err != nil {
		return true, fmt.Errorf("encode push: %w", err)
	}
	if err := h.notifier.SendToUser(ctx, owner.Email, payload); err != nil {
		// the document is committed; a lost push is not worth a redelivery
		h.log.Error("exhibit push failed", "message_id", env.MessageID,
			"document_id", doc.ID, "user", owner.Email, "err", err)
	}
	return true, nil
}

// countPages fetches a PDF exhibit from object storage and counts its pages.
// Best effort: any failure means 0.
func (h *ExhibitHandler) countPages(ctx context.Context, doc domain.Document) int {
	if h.objects == nil || !strings.EqualFold(doc.FileExtension, "pdf") {
		return 0
	}
	r, size, err := h.objects.Get(ctx, doc.FilePath)
	if err != nil {
		h.log.Warn("exhibit fetch for page count failed", "path", doc.FilePath, "err", err)
		return 0
	}
	defer r.Close()
	data, err := io.ReadAll(io.LimitReader(r, size))
	if err != nil {
		return 0
	}
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		h.log.Warn("exhibit is not a readable pdf", "path", doc.FilePath, "err", err)
		return 0
	}
	return reader.NumPage()
}
