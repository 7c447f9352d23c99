// Package memory holds in-process implementations of the repository
// stores. They keep the same conditional-write semantics as the SQL and
// Redis versions and are used by tests and local runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"bankledger/internal/model"
	"bankledger/internal/repository"
)

type AccountStore struct {
	mu   sync.Mutex
	docs map[int64]*model.AccountDocument

	replaceHook func(doc *model.AccountDocument) error
}

func NewAccountStore() *AccountStore {
	return &AccountStore{docs: make(map[int64]*model.AccountDocument)}
}

func (s *AccountStore) CreateDocument(ctx context.Context, doc *model.AccountDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[doc.CustomerID]; ok {
		return repository.ErrVersionConflict
	}
	if doc.Accounts == nil {
		doc.Accounts = model.AccountList{}
	}
	s.docs[doc.CustomerID] = doc.Clone()
	return nil
}

func (s *AccountStore) GetDocument(ctx context.Context, customerID int64) (*model.AccountDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[customerID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return doc.Clone(), nil
}

func (s *AccountStore) ListDocuments(ctx context.Context) ([]*model.AccountDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := make([]*model.AccountDocument, 0, len(s.docs))
	for _, doc := range s.docs {
		docs = append(docs, doc.Clone())
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].CustomerID < docs[j].CustomerID })
	return docs, nil
}

func (s *AccountStore) ReplaceDocument(ctx context.Context, doc *model.AccountDocument, expectedVersion int64) error {
	s.mu.Lock()
	hook := s.replaceHook
	s.mu.Unlock()
	if hook != nil {
		if err := hook(doc); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.docs[doc.CustomerID]
	if !ok {
		return repository.ErrNotFound
	}
	if cur.Version != expectedVersion {
		return repository.ErrVersionConflict
	}
	next := doc.Clone()
	next.Version = expectedVersion + 1
	s.docs[doc.CustomerID] = next
	doc.Version = next.Version
	return nil
}

// SetReplaceHook installs a function run before every ReplaceDocument. A
// non-nil error fails the write without touching the stored document.
func (s *AccountStore) SetReplaceHook(hook func(doc *model.AccountDocument) error) {
	s.mu.Lock()
	s.replaceHook = hook
	s.mu.Unlock()
}
