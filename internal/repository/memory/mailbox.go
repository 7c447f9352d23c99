package memory

import (
	"context"
	"sync"

	"bankledger/internal/model"
)

type mailboxKey struct {
	routingCode   string
	accountNumber int64
}

type Mailbox struct {
	mu    sync.Mutex
	lists map[mailboxKey][]model.PendingCredit

	appendHook func(credit model.PendingCredit) error
	removeHook func(ids []string) error
}

func NewMailbox() *Mailbox {
	return &Mailbox{lists: make(map[mailboxKey][]model.PendingCredit)}
}

// SetAppendHook installs a function run before each Append; a non-nil
// error fails the append.
func (m *Mailbox) SetAppendHook(hook func(credit model.PendingCredit) error) {
	m.mu.Lock()
	m.appendHook = hook
	m.mu.Unlock()
}

// SetRemoveHook installs a function run before each Remove; a non-nil
// error fails the removal.
func (m *Mailbox) SetRemoveHook(hook func(ids []string) error) {
	m.mu.Lock()
	m.removeHook = hook
	m.mu.Unlock()
}

func (m *Mailbox) Append(ctx context.Context, routingCode string, accountNumber int64, credit model.PendingCredit) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.appendHook != nil {
		if err := m.appendHook(credit); err != nil {
			return err
		}
	}
	k := mailboxKey{routingCode, accountNumber}
	m.lists[k] = append(m.lists[k], credit)
	return nil
}

func (m *Mailbox) Pending(ctx context.Context, routingCode string, accountNumber int64) ([]model.PendingCredit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]model.PendingCredit(nil), m.lists[mailboxKey{routingCode, accountNumber}]...), nil
}

func (m *Mailbox) Remove(ctx context.Context, routingCode string, accountNumber int64, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.removeHook != nil {
		if err := m.removeHook(ids); err != nil {
			return err
		}
	}
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	k := mailboxKey{routingCode, accountNumber}
	kept := m.lists[k][:0:0]
	for _, c := range m.lists[k] {
		if !drop[c.ID] {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		delete(m.lists, k)
		return nil
	}
	m.lists[k] = kept
	return nil
}

func (m *Mailbox) Snapshot(ctx context.Context, routingCode string) (map[int64][]model.PendingCredit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[int64][]model.PendingCredit)
	for k, list := range m.lists {
		if k.routingCode == routingCode && len(list) > 0 {
			out[k.accountNumber] = append([]model.PendingCredit(nil), list...)
		}
	}
	return out, nil
}
