package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"bankledger/internal/model"
	"bankledger/internal/repository"
)

type TransferStore struct {
	mu        sync.Mutex
	transfers map[string]*model.Transfer
	nextID    int64

	updateHook func(t *model.Transfer, status string) error
}

func NewTransferStore() *TransferStore {
	return &TransferStore{transfers: make(map[string]*model.Transfer)}
}

// SetUpdateHook installs a function run before each UpdateStatus.
func (s *TransferStore) SetUpdateHook(hook func(t *model.Transfer, status string) error) {
	s.mu.Lock()
	s.updateHook = hook
	s.mu.Unlock()
}

func (s *TransferStore) Create(ctx context.Context, t *model.Transfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.transfers[t.TransferNo]; ok {
		return repository.ErrStatusConflict
	}
	s.nextID++
	now := time.Now()
	t.ID = s.nextID
	t.CreatedAt, t.UpdatedAt = now, now
	cp := *t
	s.transfers[t.TransferNo] = &cp
	return nil
}

func (s *TransferStore) Get(ctx context.Context, transferNo string) (*model.Transfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.transfers[transferNo]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *TransferStore) UpdateStatus(ctx context.Context, t *model.Transfer, status, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.updateHook != nil {
		if err := s.updateHook(t, status); err != nil {
			return err
		}
	}
	cur, ok := s.transfers[t.TransferNo]
	if !ok {
		return repository.ErrNotFound
	}
	if cur.Status != t.Status || !cur.CanTransitionTo(status) {
		return repository.ErrStatusConflict
	}
	cur.Status = status
	cur.LastError = lastError
	cur.Attempts++
	cur.UpdatedAt = time.Now()

	t.Status, t.LastError, t.Attempts, t.UpdatedAt = cur.Status, cur.LastError, cur.Attempts, cur.UpdatedAt
	return nil
}

func (s *TransferStore) ListByStatus(ctx context.Context, statuses []string, updatedBefore time.Time, limit int) ([]*model.Transfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	want := make(map[string]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}
	var out []*model.Transfer
	for _, t := range s.transfers {
		if want[t.Status] && t.UpdatedAt.Before(updatedBefore) {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
