package store

import (
	"context"
	"errors"

	"depohub/pkg/domain"
)

var (
	// ErrUserNotFound is returned when an operation references a user id or
	// email that does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrDepositionNotFound is returned when a referenced deposition is
	// missing.
	ErrDepositionNotFound = errors.New("deposition not found")
)

// Store defines persistence for users, depositions, documents and
// transcription records.
type Store interface {
	// users
	SaveUser(domain.User) error
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)

	// depositions
	SaveDeposition(domain.Deposition) error
	GetDeposition(id string) (domain.Deposition, bool, error)

	// documents
	SaveDocument(domain.Document) error
	GetDocument(id string) (domain.Document, bool, error)
	ListDocumentsByDeposition(depositionID string) ([]domain.Document, error)

	// CreateExhibitDocument atomically persists the document row, the
	// document-user-deposition join row and the uploader's ownership grant,
	// and returns the owning user for push addressing. If any step fails the
	// whole write rolls back: no partial document is ever visible.
	CreateExhibitDocument(ctx context.Context, doc domain.Document) (domain.User, error)

	// transcriptions
	SaveTranscription(domain.TranscriptionRecord) error
	ListTranscriptionsByDeposition(depositionID string) ([]domain.TranscriptionRecord, error)

	// envelope audit
	RecordProcessedMessage(messageID string, body []byte) error
	HasProcessedMessage(messageID string) (bool, error)
}
