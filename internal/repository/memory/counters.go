package memory

import (
	"context"
	"sync"
)

type CounterStore struct {
	mu     sync.Mutex
	values map[string]int64
}

func NewCounterStore() *CounterStore {
	return &CounterStore{values: make(map[string]int64)}
}

func (s *CounterStore) Get(ctx context.Context, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[name], nil
}

func (s *CounterStore) CompareAndSwap(ctx context.Context, name string, old, next int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.values[name] != old {
		return false, nil
	}
	s.values[name] = next
	return true, nil
}
