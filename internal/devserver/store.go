package devserver

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/nebulaglass/nebula-client/pkg/types"
)

var (
	errEmailTaken       = errors.New("email already in use")
	errDocumentNotFound = errors.New("document not found")
	errAnalysisNotFound = errors.New("analysis not found")
)

type user struct {
	ID           int64
	Email        string
	PasswordHash []byte
}

type document struct {
	ID         int64
	OwnerID    int64
	Filename   string
	UploadDate time.Time
	Text       string
}

// memoryStore keeps users, documents and analyses for the lifetime of the
// server
type memoryStore struct {
	mu        sync.RWMutex
	nextUser  int64
	nextDoc   int64
	users     map[string]*user
	documents map[int64]*document
	analyses  map[int64]*types.Analysis
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		users:     make(map[string]*user),
		documents: make(map[int64]*document),
		analyses:  make(map[int64]*types.Analysis),
	}
}

func (s *memoryStore) createUser(email string, hash []byte) (*user, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[email]; exists {
		return nil, errEmailTaken
	}
	s.nextUser++
	u := &user{ID: s.nextUser, Email: email, PasswordHash: hash}
	s.users[email] = u
	return u, nil
}

func (s *memoryStore) userByEmail(email string) (*user, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[email]
	return u, ok
}

func (s *memoryStore) addDocument(ownerID int64, filename, text string) *document {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextDoc++
	doc := &document{
		ID:         s.nextDoc,
		OwnerID:    ownerID,
		Filename:   filename,
		UploadDate: time.Now().UTC(),
		Text:       text,
	}
	s.documents[doc.ID] = doc
	return doc
}

// documentsOf returns the owner's documents, newest first
func (s *memoryStore) documentsOf(ownerID int64) []*document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]*document, 0)
	for _, doc := range s.documents {
		if doc.OwnerID == ownerID {
			docs = append(docs, doc)
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].UploadDate.Equal(docs[j].UploadDate) {
			return docs[i].ID > docs[j].ID
		}
		return docs[i].UploadDate.After(docs[j].UploadDate)
	})
	return docs
}

func (s *memoryStore) document(ownerID, id int64) (*document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[id]
	if !ok || doc.OwnerID != ownerID {
		return nil, errDocumentNotFound
	}
	return doc, nil
}

func (s *memoryStore) deleteDocument(ownerID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[id]
	if !ok || doc.OwnerID != ownerID {
		return errDocumentNotFound
	}
	delete(s.documents, id)
	delete(s.analyses, id)
	return nil
}

func (s *memoryStore) saveAnalysis(analysis *types.Analysis) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analyses[analysis.DocumentID] = analysis
}

func (s *memoryStore) analysis(ownerID, documentID int64) (*types.Analysis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[documentID]
	if !ok || doc.OwnerID != ownerID {
		return nil, errAnalysisNotFound
	}
	analysis, ok := s.analyses[documentID]
	if !ok {
		return nil, errAnalysisNotFound
	}
	return analysis, nil
}

// counts returns the number of users, documents and analyses held
func (s *memoryStore) counts() (users, documents, analyses int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), len(s.documents), len(s.analyses)
}
