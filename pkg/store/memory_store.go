package store

import (
	"context"
	"sync"

	"depohub/pkg/domain"
)

// MemoryStore keeps everything in-process. It backs handler tests and local
// development without Postgres.
type MemoryStore struct {
	mu             sync.RWMutex
	users          map[string]domain.User
	emails         map[string]string // email -> user ID
	depositions    map[string]domain.Deposition
	documents      map[string]domain.Document
	docOrder       []string
	joins          map[string]domain.DocumentUserDeposition
	grants         map[string]string // document ID -> owner user ID
	transcriptions map[string][]domain.TranscriptionRecord
	processed      map[string][]byte

	// joinErr simulates a failure of the join-row step inside
	// CreateExhibitDocument; used by atomicity tests in this package.
	joinErr error
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:          make(map[string]domain.User),
		emails:         make(map[string]string),
		depositions:    make(map[string]domain.Deposition),
		documents:      make(map[string]domain.Document),
		joins:          make(map[string]domain.DocumentUserDeposition),
		grants:         make(map[string]string),
		transcriptions: make(map[string][]domain.TranscriptionRecord),
		processed:      make(map[string][]byte),
	}
}

func (m *MemoryStore) SaveUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	m.emails[u.Email] = u.ID
	return nil
}

func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.emails[email]
	if !ok {
		return domain.User{}, false, nil
	}
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *MemoryStore) SaveDeposition(d domain.Deposition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.depositions[d.ID] = d
	return nil
}

func (m *MemoryStore) GetDeposition(id string) (domain.Deposition, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.depositions[id]
	return d, ok, nil
}

func (m *MemoryStore) SaveDocument(d domain.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.storeDocumentLocked(d)
	return nil
}

func (m *MemoryStore) storeDocumentLocked(d domain.Document) {
	if _, exists := m.documents[d.ID]; !exists {
		m.docOrder = append(m.docOrder, d.ID)
	}
	m.documents[d.ID] = d
}

func (m *MemoryStore) GetDocument(id string) (domain.Document, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.documents[id]
	return d, ok, nil
}

func (m *MemoryStore) ListDocumentsByDeposition(depositionID string) ([]domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var docs []domain.Document
	for _, id := range m.docOrder {
		if d, ok := m.documents[id]; ok && d.DepositionID == depositionID {
			docs = append(docs, d)
		}
	}
	return docs, nil
}

// CreateExhibitDocument mirrors the transactional semantics of the gorm
// store: either every step lands or none does.
func (m *MemoryStore) CreateExhibitDocument(_ context.Context, doc domain.Document) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	owner, ok := m.users[doc.AddedByID]
	if !ok {
		return domain.User{}, ErrUserNotFound
	}
	m.storeDocumentLocked(doc)
	if m.joinErr != nil {
		// Join step failed after the document write: roll back.
		delete(m.documents, doc.ID)
		m.docOrder = m.docOrder[:len(m.docOrder)-1]
		return domain.User{}, m.joinErr
	}
	join := domain.DocumentUserDeposition{
		ID:           doc.ID + ":" + doc.AddedByID,
		DepositionID: doc.DepositionID,
		DocumentID:   doc.ID,
		UserID:       doc.AddedByID,
		CreatedAt:    doc.CreatedAt,
	}
	m.joins[join.ID] = join
	m.grants[doc.ID] = doc.AddedByID
	return owner, nil
}

// JoinFor returns the join row created for a document, if any.
func (m *MemoryStore) JoinFor(documentID, userID string) (domain.DocumentUserDeposition, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	join, ok := m.joins[documentID+":"+userID]
	return join, ok
}

// OwnerOf returns the user granted ownership of a document, if any.
func (m *MemoryStore) OwnerOf(documentID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	owner, ok := m.grants[documentID]
	return owner, ok
}

func (m *MemoryStore) SaveTranscription(r domain.TranscriptionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transcriptions[r.DepositionID] = append(m.transcriptions[r.DepositionID], r)
	return nil
}

func (m *MemoryStore) ListTranscriptionsByDeposition(depositionID string) ([]domain.TranscriptionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	records := m.transcriptions[depositionID]
	out := make([]domain.TranscriptionRecord, len(records))
	copy(out, records)
	return out, nil
}

func (m *MemoryStore) RecordProcessedMessage(messageID string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.processed[messageID]; exists {
		return nil
	}
	buf := make([]byte, len(body))
	copy(buf, body)
	m.processed[messageID] = buf
	return nil
}

func (m *MemoryStore) HasProcessedMessage(messageID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.processed[messageID]
	return ok, nil
}
