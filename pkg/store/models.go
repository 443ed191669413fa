package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID           string `gorm:"primaryKey"`
	Email        string `gorm:"uniqueIndex;not null"`
	FirstName    string
	LastName     string
	PasswordHash string
	Role         string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time
}

type DepositionModel struct {
	ID        string `gorm:"primaryKey"`
	CaseID    string `gorm:"index"`
	Caption   string
	Status    string `gorm:"not null"`
	StartDate time.Time
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time
}

type DocumentModel struct {
	ID            string `gorm:"primaryKey"`
	Name          string `gorm:"not null"`
	DisplayName   string `gorm:"not null"`
	FilePath      string
	FileExtension string
	Size          int64  `gorm:"not null"`
	PageCount     int
	AddedByID     string    `gorm:"not null;index"`
	Type          string    `gorm:"not null"`
	DepositionID  string    `gorm:"not null;index"`
	CreatedAt     time.Time `gorm:"not null"`
}

type DocumentUserDepositionModel struct {
	ID           string    `gorm:"primaryKey"`
	DepositionID string    `gorm:"not null;index:idx_doc_user_depo,unique"`
	DocumentID   string    `gorm:"not null;index:idx_doc_user_depo,unique"`
	UserID       string    `gorm:"not null;index:idx_doc_user_depo,unique"`
	CreatedAt    time.Time `gorm:"not null"`
}

// DocumentAccessModel records a role a user holds on a document; the
// uploading user receives the Owner role inside the exhibit transaction.
type DocumentAccessModel struct {
	ID         string    `gorm:"primaryKey"`
	DocumentID string    `gorm:"not null;index"`
	UserID     string    `gorm:"not null;index"`
	Role       string    `gorm:"not null"`
	CreatedAt  time.Time `gorm:"not null"`
}

type TranscriptionModel struct {
	ID           string `gorm:"primaryKey"`
	DepositionID string `gorm:"not null;index"`
	UserEmail    string `gorm:"not null"`
	Text         string `gorm:"type:text;not null"`
	RecordedAt   time.Time
	CreatedAt    time.Time `gorm:"not null;index"`
}

// ProcessedMessageModel is the envelope audit log: one row per business
// notification that reached a handler, keyed by the transport message id so
// redeliveries can be detected.
type ProcessedMessageModel struct {
	ID         string         `gorm:"primaryKey"`
	MessageID  string         `gorm:"uniqueIndex;not null"`
	Body       datatypes.JSON `gorm:"type:jsonb"`
	ReceivedAt time.Time      `gorm:"not null"`
}
