package domain

import "time"

// DocumentType classifies a document attached to a deposition.
type DocumentType string

const (
	DocumentTypeExhibit            DocumentType = "Exhibit"
	DocumentTypeCaption            DocumentType = "Caption"
	DocumentTypeTranscription      DocumentType = "Transcription"
	DocumentTypeDraftTranscription DocumentType = "DraftTranscription"
)

// ParseDocumentType maps a wire string onto a known document type.
// Unknown values fall back to Exhibit.
func ParseDocumentType(raw string) DocumentType {
	switch DocumentType(raw) {
	case DocumentTypeCaption:
		return DocumentTypeCaption
	case DocumentTypeTranscription:
		return DocumentTypeTranscription
	case DocumentTypeDraftTranscription:
		return DocumentTypeDraftTranscription
	default:
		return DocumentTypeExhibit
	}
}

// ParticipantRole identifies what a user does inside a deposition.
type ParticipantRole string

const (
	RoleAttorney      ParticipantRole = "attorney"
	RoleWitness       ParticipantRole = "witness"
	RoleCourtReporter ParticipantRole = "court_reporter"
	RoleAdmin         ParticipantRole = "admin"
)

// DocumentOwnerRole is granted to the uploading user when an exhibit is
// persisted.
const DocumentOwnerRole = "Owner"

type User struct {
	ID           string          `json:"id"`
	Email        string          `json:"email"`
	FirstName    string          `json:"firstName,omitempty"`
	LastName     string          `json:"lastName,omitempty"`
	PasswordHash string          `json:"-"`
	Role         ParticipantRole `json:"role"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// DepositionStatus tracks a deposition through its lifecycle.
type DepositionStatus string

const (
	DepositionPending   DepositionStatus = "pending"
	DepositionConfirmed DepositionStatus = "confirmed"
	DepositionCompleted DepositionStatus = "completed"
	DepositionCanceled  DepositionStatus = "canceled"
)

type Deposition struct {
	ID        string           `json:"id"`
	CaseID    string           `json:"caseId"`
	Caption   string           `json:"caption,omitempty"`
	Status    DepositionStatus `json:"status"`
	StartDate time.Time        `json:"startDate"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// Document is a file owned by a deposition: an exhibit, caption or
// transcript. CreatedAt is server-assigned and immutable once set.
type Document struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	DisplayName   string       `json:"displayName"`
	FilePath      string       `json:"-"`
	FileExtension string       `json:"fileExtension,omitempty"`
	Size          int64        `json:"size"`
	PageCount     int          `json:"pageCount,omitempty"`
	AddedByID     string       `json:"addedById"`
	Type          DocumentType `json:"type"`
	DepositionID  string       `json:"depositionId"`
	CreatedAt     time.Time    `json:"createdAt"`
}

// DocumentUserDeposition ties a document to the deposition/user pair it was
// uploaded under. Created atomically with the document row.
type DocumentUserDeposition struct {
	ID           string    `json:"id"`
	DepositionID string    `json:"depositionId"`
	DocumentID   string    `json:"documentId"`
	UserID       string    `json:"userId"`
	CreatedAt    time.Time `json:"createdAt"`
}

// TranscriptionRecord is one final recognition result captured during a live
// deposition session.
type TranscriptionRecord struct {
	ID           string    `json:"id"`
	DepositionID string    `json:"depositionId"`
	UserEmail    string    `json:"userEmail"`
	Text         string    `json:"text"`
	RecordedAt   time.Time `json:"recordedAt"`
	CreatedAt    time.Time `json:"createdAt"`
}

// DraftFormat is the requested rendering of a draft transcript.
type DraftFormat string

const (
	DraftFormatText DraftFormat = "txt"
	DraftFormatPDF  DraftFormat = "pdf"
)

// DraftTranscriptRequest asks the background worker to materialize a rough
// transcript document for a deposition. Requests are best-effort and not
// persisted: a process restart loses any queued requests.
type DraftTranscriptRequest struct {
	DepositionID string       `json:"depositionId"`
	DocumentType DocumentType `json:"documentType"`
	Format       DraftFormat  `json:"format"`
}
