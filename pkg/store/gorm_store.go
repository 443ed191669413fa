package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"depohub/internal/util"
	"depohub/pkg/domain"
)

const (
	defaultTxRetries = 3
	txRetryBackoff   = 200 * time.Millisecond
)

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db        *gorm.DB
	txRetries int
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(
		&UserModel{},
		&DepositionModel{},
		&DocumentModel{},
		&DocumentUserDepositionModel{},
		&DocumentAccessModel{},
		&TranscriptionModel{},
		&ProcessedMessageModel{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db, txRetries: defaultTxRetries}, nil
}

// SaveUser registers or updates a user.
func (s *GormStore) SaveUser(u domain.User) error {
	model := userToModel(u)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "first_name", "last_name", "password_hash", "role", "updated_at"}),
	}).Create(&model).Error
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("email = ?", email).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// SaveDeposition stores or updates a deposition.
func (s *GormStore) SaveDeposition(d domain.Deposition) error {
	model := depositionToModel(d)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"case_id", "caption", "status", "start_date", "updated_at"}),
	}).Create(&model).Error
}

// GetDeposition retrieves a deposition.
func (s *GormStore) GetDeposition(id string) (domain.Deposition, bool, error) {
	var model DepositionModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Deposition{}, false, nil
		}
		return domain.Deposition{}, false, err
	}
	return depositionFromModel(model), true, nil
}

// SaveDocument stores a document outside of the exhibit transaction, e.g.
// system-generated draft transcripts.
func (s *GormStore) SaveDocument(d domain.Document) error {
	model := documentToModel(d)
	return s.db.Create(&model).Error
}

// GetDocument retrieves a document.
func (s *GormStore) GetDocument(id string) (domain.Document, bool, error) {
	var model DocumentModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Document{}, false, nil
		}
		return domain.Document{}, false, err
	}
	return documentFromModel(model), true, nil
}

// ListDocumentsByDeposition returns a deposition's documents oldest-first.
func (s *GormStore) ListDocumentsByDeposition(depositionID string) ([]domain.Document, error) {
	var models []DocumentModel
	if err := s.db.Where("deposition_id = ?", depositionID).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	docs := make([]domain.Document, 0, len(models))
	for _, m := range models {
		docs = append(docs, documentFromModel(m))
	}
	return docs, nil
}

// CreateExhibitDocument persists the document, join row and ownership grant
// in one transaction. When the store is already operating inside a
// transaction the steps run in that ambient scope and commit/rollback is
// delegated to the outer owner; otherwise a new transaction is started with
// a transient-failure retry.
func (s *GormStore) CreateExhibitDocument(ctx context.Context, doc domain.Document) (domain.User, error) {
	var owner domain.User
	run := func(tx *gorm.DB) error {
		var user UserModel
		if err := tx.First(&user, "id = ?", doc.AddedByID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("lookup user: %w", err)
		}
		owner = userFromModel(user)

		model := documentToModel(doc)
		if err := tx.Create(&model).Error; err != nil {
			return fmt.Errorf("create document: %w", err)
		}
		join := DocumentUserDepositionModel{
			ID:           util.NewID(),
			DepositionID: doc.DepositionID,
			DocumentID:   doc.ID,
			UserID:       doc.AddedByID,
			CreatedAt:    time.Now().UTC(),
		}
		if err := tx.Create(&join).Error; err != nil {
			return fmt.Errorf("create document join: %w", err)
		}
		grant := DocumentAccessModel{
			ID:         util.NewID(),
			DocumentID: doc.ID,
			UserID:     doc.AddedByID,
			Role:       domain.DocumentOwnerRole,
			CreatedAt:  time.Now().UTC(),
		}
		if err := tx.Create(&grant).Error; err != nil {
			return fmt.Errorf("grant document ownership: %w", err)
		}
		return nil
	}

	db := s.db.WithContext(ctx)
	// Ambient transaction: run in the caller's scope without nesting.
	if _, ok := db.Statement.ConnPool.(gorm.TxCommitter); ok {
		if err := run(db); err != nil {
			return domain.User{}, err
		}
		return owner, nil
	}

	retries := s.txRetries
	if retries <= 0 {
		retries = defaultTxRetries
	}
	var err error
	for attempt := 0; attempt <= retries; attempt++ {
		err = db.Transaction(run)
		if err == nil {
			return owner, nil
		}
		if !isTransientDBError(err) {
			return domain.User{}, err
		}
		select {
		case <-ctx.Done():
			return domain.User{}, ctx.Err()
		case <-time.After(txRetryBackoff << attempt):
		}
	}
	return domain.User{}, err
}

// SaveTranscription records one recognition result.
func (s *GormStore) SaveTranscription(r domain.TranscriptionRecord) error {
	model := transcriptionToModel(r)
	return s.db.Create(&model).Error
}

// ListTranscriptionsByDeposition returns records in recording order.
func (s *GormStore) ListTranscriptionsByDeposition(depositionID string) ([]domain.TranscriptionRecord, error) {
	var models []TranscriptionModel
	if err := s.db.Where("deposition_id = ?", depositionID).Order("recorded_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	records := make([]domain.TranscriptionRecord, 0, len(models))
	for _, m := range models {
		records = append(records, transcriptionFromModel(m))
	}
	return records, nil
}

// RecordProcessedMessage appends to the envelope audit log; duplicate
// message ids are kept single-row.
func (s *GormStore) RecordProcessedMessage(messageID string, body []byte) error {
	model := ProcessedMessageModel{
		ID:         util.NewID(),
		MessageID:  messageID,
		Body:       datatypes.JSON(body),
		ReceivedAt: time.Now().UTC(),
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "message_id"}},
		DoNothing: true,
	}).Create(&model).Error
}

// HasProcessedMessage reports whether a message id was already handled.
func (s *GormStore) HasProcessedMessage(messageID string) (bool, error) {
	var count int64
	if err := s.db.Model(&ProcessedMessageModel{}).Where("message_id = ?", messageID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// isTransientDBError classifies connectivity-level failures that are safe to
// retry. Constraint violations and data errors are not retried.
func isTransientDBError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	msg := err.Error()
	for _, fragment := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"server closed the connection",
		"i/o timeout",
	} {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Email:        u.Email,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Email:        m.Email,
		FirstName:    m.FirstName,
		LastName:     m.LastName,
		PasswordHash: m.PasswordHash,
		Role:         domain.ParticipantRole(m.Role),
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func depositionToModel(d domain.Deposition) DepositionModel {
	return DepositionModel{
		ID:        d.ID,
		CaseID:    d.CaseID,
		Caption:   d.Caption,
		Status:    string(d.Status),
		StartDate: d.StartDate,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func depositionFromModel(m DepositionModel) domain.Deposition {
	return domain.Deposition{
		ID:        m.ID,
		CaseID:    m.CaseID,
		Caption:   m.Caption,
		Status:    domain.DepositionStatus(m.Status),
		StartDate: m.StartDate,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func documentToModel(d domain.Document) DocumentModel {
	return DocumentModel{
		ID:            d.ID,
		Name:          d.Name,
		DisplayName:   d.DisplayName,
		FilePath:      d.FilePath,
		FileExtension: d.FileExtension,
		Size:          d.Size,
		PageCount:     d.PageCount,
		AddedByID:     d.AddedByID,
		Type:          string(d.Type),
		DepositionID:  d.DepositionID,
		CreatedAt:     d.CreatedAt,
	}
}

func documentFromModel(m DocumentModel) domain.Document {
	return domain.Document{
		ID:            m.ID,
		Name:          m.Name,
		DisplayName:   m.DisplayName,
		FilePath:      m.FilePath,
		FileExtension: m.FileExtension,
		Size:          m.Size,
		PageCount:     m.PageCount,
		AddedByID:     m.AddedByID,
		Type:          domain.DocumentType(m.Type),
		DepositionID:  m.DepositionID,
		CreatedAt:     m.CreatedAt,
	}
}

func transcriptionToModel(r domain.TranscriptionRecord) TranscriptionModel {
	return TranscriptionModel{
		ID:           r.ID,
		DepositionID: r.DepositionID,
		UserEmail:    r.UserEmail,
		Text:         r.Text,
		RecordedAt:   r.RecordedAt,
		CreatedAt:    r.CreatedAt,
	}
}

func transcriptionFromModel(m TranscriptionModel) domain.TranscriptionRecord {
	return domain.TranscriptionRecord{
		ID:           m.ID,
		DepositionID: m.DepositionID,
		UserEmail:    m.UserEmail,
		Text:         m.Text,
		RecordedAt:   m.RecordedAt,
		CreatedAt:    m.CreatedAt,
	}
}
