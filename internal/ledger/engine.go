package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"bankledger/internal/config"
	"bankledger/internal/infrastructure/lock"
	"bankledger/internal/model"
	"bankledger/internal/notify"
	"bankledger/internal/repository"

	"github.com/rs/zerolog"
)

type AccountStore interface {
	GetDocument(ctx context.Context, customerID int64) (*model.AccountDocument, error)
	ListDocuments(ctx context.Context) ([]*model.AccountDocument, error)
	CreateDocument(ctx context.Context, doc *model.AccountDocument) error
	ReplaceDocument(ctx context.Context, doc *model.AccountDocument, expectedVersion int64) error
}

// Mailbox is the shared inter-bank ledger of pending credits.
type Mailbox interface {
	Append(ctx context.Context, routingCode string, accountNumber int64, credit model.PendingCredit) error
	Pending(ctx context.Context, routingCode string, accountNumber int64) ([]model.PendingCredit, error)
	Remove(ctx context.Context, routingCode string, accountNumber int64, ids []string) error
	Snapshot(ctx context.Context, routingCode string) (map[int64][]model.PendingCredit, error)
}

type CounterStore interface {
	Get(ctx context.Context, name string) (int64, error)
	CompareAndSwap(ctx context.Context, name string, old, next int64) (bool, error)
}

type TransferStore interface {
	Create(ctx context.Context, t *model.Transfer) error
	Get(ctx context.Context, transferNo string) (*model.Transfer, error)
	UpdateStatus(ctx context.Context, t *model.Transfer, status, lastError string) error
	ListByStatus(ctx context.Context, statuses []string, updatedBefore time.Time, limit int) ([]*model.Transfer, error)
}

type Journal interface {
	Append(ctx context.Context, entries ...*model.JournalEntry) error
	ListByAccount(ctx context.Context, accountNumber int64, limit int) ([]*model.JournalEntry, error)
}

type EventOutbox interface {
	Enqueue(ctx context.Context, msg *model.OutboxMessage) error
}

// Locker serializes work on one key. The release func must be called
// exactly once the critical section ends.
type Locker interface {
	Acquire(ctx context.Context, key string) (func(), error)
}

type Stores struct {
	Accounts  AccountStore
	Mailbox   Mailbox
	Counters  CounterStore
	Transfers TransferStore
	Journal   Journal
	Outbox    EventOutbox
	Locker    Locker
}

type Options struct {
	RoutingCode        string
	MaxConflictRetries int
	StoreRetries       int
	MailboxRetries     int
	RetryBackoff       time.Duration
	EventTopic         string
}

func OptionsFromConfig(cfg *config.LedgerConfig) Options {
	return Options{
		RoutingCode:        cfg.RoutingCode,
		MaxConflictRetries: cfg.MaxConflictRetries,
		StoreRetries:       cfg.StoreRetries,
		MailboxRetries:     cfg.MailboxRetries,
		RetryBackoff:       cfg.RetryBackoff,
		EventTopic:         cfg.EventTopic,
	}
}

// Engine validates and applies balance mutations. Every write to an
// account document happens under that customer's lock and is conditional
// on the version read inside the lock.
type Engine struct {
	accounts  AccountStore
	mailbox   Mailbox
	transfers TransferStore
	journal   Journal
	outbox    EventOutbox
	locker    Locker
	notifier  notify.Notifier
	seq       *Sequencer
	opts      Options
	log       zerolog.Logger
	now       func() time.Time
}

func NewEngine(stores Stores, notifier notify.Notifier, opts Options, log zerolog.Logger) *Engine {
	if opts.EventTopic == "" {
		opts.EventTopic = "ledger_events"
	}
	log = log.With().Str("component", "ledger").Logger()
	e := &Engine{
		accounts:  stores.Accounts,
		mailbox:   stores.Mailbox,
		transfers: stores.Transfers,
		journal:   stores.Journal,
		outbox:    stores.Outbox,
		locker:    stores.Locker,
		notifier:  notifier,
		opts:      opts,
		log:       log,
		now:       time.Now,
	}
	e.seq = NewSequencer(stores.Counters, opts, log)
	return e
}

func (e *Engine) RoutingCode() string {
	return e.opts.RoutingCode
}

// Sequencer exposes the engine's counter generator.
func (e *Engine) Sequencer() *Sequencer {
	return e.seq
}

// ==================== document mutation ====================

// applyFunc edits doc in place. Returning errNoChange skips the write,
// any other error aborts the mutation.
type applyFunc func(doc *model.AccountDocument) error

// mutate runs apply under the customer's lock. applied is false when apply
// found nothing to do, e.g. the operation id was already recorded.
func (e *Engine) mutate(ctx context.Context, customerID int64, apply applyFunc) (doc *model.AccountDocument, applied bool, err error) {
	release, err := e.locker.Acquire(ctx, lock.CustomerKey(customerID))
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer release()

	return e.mutateLocked(ctx, customerID, apply)
}

func (e *Engine) mutateLocked(ctx context.Context, customerID int64, apply applyFunc) (*model.AccountDocument, bool, error) {
	for attempt := 0; attempt <= e.opts.MaxConflictRetries; attempt++ {
		if attempt > 0 {
			if err := e.backoff(ctx, attempt); err != nil {
				return nil, false, err
			}
		}

		doc, err := e.loadDocument(ctx, customerID)
		if err != nil {
			return nil, false, err
		}

		next := doc.Clone()
		if err := apply(next); err != nil {
			if errors.Is(err, errNoChange) {
				return doc, false, nil
			}
			return nil, false, err
		}

		err = e.retryStore(ctx, func() error {
			return e.accounts.ReplaceDocument(ctx, next, doc.Version)
		})
		switch {
		case err == nil:
			return next, true, nil
		case errors.Is(err, repository.ErrVersionConflict):
			e.log.Debug().Int64("customer_id", customerID).Int("attempt", attempt).Msg("version conflict, re-reading")
		case errors.Is(err, repository.ErrNotFound):
			return nil, false, ErrAccountNotFound
		default:
			return nil, false, err
		}
	}
	return nil, false, errConflictsExhausted
}

func (e *Engine) loadDocument(ctx context.Context, customerID int64) (*model.AccountDocument, error) {
	var doc *model.AccountDocument
	err := e.retryStore(ctx, func() error {
		var err error
		doc, err = e.accounts.GetDocument(ctx, customerID)
		return err
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrAccountNotFound
	}
	return doc, err
}

// loadAccount returns a copy of one account of customerID.
func (e *Engine) loadAccount(ctx context.Context, customerID, accountNumber int64) (*model.AccountDocument, *model.Account, error) {
	doc, err := e.loadDocument(ctx, customerID)
	if err != nil {
		return nil, nil, err
	}
	acct := doc.Find(accountNumber)
	if acct == nil {
		return nil, nil, ErrAccountNotFound
	}
	return doc, acct, nil
}

// ==================== retry ====================

// retryStore retries op on transient failures. Repository sentinels and
// context errors are returned as is; anything else that survives every
// attempt becomes ErrStoreUnavailable.
func (e *Engine) retryStore(ctx context.Context, op func() error) error {
	var err error
	for attempt := 0; attempt <= e.opts.StoreRetries; attempt++ {
		if attempt > 0 {
			if werr := e.backoff(ctx, attempt); werr != nil {
				return werr
			}
		}
		err = op()
		if err == nil || isDefinite(err) {
			return err
		}
		e.log.Warn().Err(err).Int("attempt", attempt).Msg("store call failed")
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func isDefinite(err error) bool {
	return errors.Is(err, repository.ErrNotFound) ||
		errors.Is(err, repository.ErrVersionConflict) ||
		errors.Is(err, repository.ErrStatusConflict) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func (e *Engine) backoff(ctx context.Context, attempt int) error {
	d := e.opts.RetryBackoff * time.Duration(attempt)
	if d > 0 {
		d += time.Duration(rand.Int63n(int64(d)/2 + 1))
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// ==================== checks ====================

// checkAmount applies the limit and, for debits, the balance rule, in
// that order.
func checkAmount(acct *model.Account, amount int64, debit bool) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if amount > acct.TransferLimit {
		return ErrLimitExceeded
	}
	if debit && amount > acct.Balance {
		return ErrInsufficientFunds
	}
	return nil
}

// ==================== side records ====================

func (e *Engine) journalEntry(customerID int64, acct *model.Account, delta int64, typ, ref string) *model.JournalEntry {
	return &model.JournalEntry{
		EntryNo:       nextEntryNo(),
		CustomerID:    customerID,
		AccountNumber: acct.AccountNumber,
		Amount:        delta,
		Type:          typ,
		Reference:     ref,
		BalanceBefore: acct.Balance - delta,
		BalanceAfter:  acct.Balance,
		CreatedAt:     e.now(),
	}
}

func (e *Engine) event(typ string, customerID int64, acct *model.Account, amount int64, ref, status string) model.LedgerEvent {
	return model.LedgerEvent{
		Type:          typ,
		CustomerID:    customerID,
		AccountNumber: acct.AccountNumber,
		Amount:        amount,
		Balance:       acct.Balance,
		Reference:     ref,
		Status:        status,
		OccurredAt:    e.now(),
	}
}

// record appends audit lines and outbox events for a committed change.
// The balance write is already durable, so failures here are logged only.
func (e *Engine) record(ctx context.Context, entries []*model.JournalEntry, events ...model.LedgerEvent) {
	if len(entries) > 0 {
		if err := e.retryStore(ctx, func() error { return e.journal.Append(ctx, entries...) }); err != nil {
			e.log.Error().Err(err).Str("entry_no", entries[0].EntryNo).Msg("journal append failed")
		}
	}
	for _, ev := range events {
		msg, err := outboxMessage(e.opts.EventTopic, ev)
		if err != nil {
			e.log.Error().Err(err).Str("type", ev.Type).Msg("encode ledger event")
			continue
		}
		if err := e.retryStore(ctx, func() error { return e.outbox.Enqueue(ctx, msg) }); err != nil {
			e.log.Error().Err(err).Str("type", ev.Type).Str("reference", ev.Reference).Msg("outbox insert failed")
		}
	}
}

// notify is fire-and-forget from the ledger's point of view.
func (e *Engine) notify(ctx context.Context, to, subject, text string) {
	if e.notifier == nil || to == "" {
		return
	}
	if err := e.notifier.Notify(ctx, notify.Message{To: to, Subject: subject, Text: text}); err != nil {
		e.log.Warn().Err(err).Str("to", to).Str("subject", subject).Msg("notification failed")
	}
}
