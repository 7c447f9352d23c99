package ledger

import (
	"context"
	"errors"
	"fmt"

	"bankledger/internal/infrastructure/lock"
	"bankledger/internal/model"
)

type ReconcileResult struct {
	Credited int64 `json:"credited"`
	Entries  int   `json:"entries"`
	Balance  int64 `json:"balance"`
}

const incomingPrefix = "in:"

func incomingOpID(creditID string) string {
	return incomingPrefix + creditID
}

// ReconcileIncoming drains the account's pending inter-bank credits into its
// balance. It holds the owner's lock for the whole read, credit and clear,
// credits each entry id at most once, and removes only the ids it read.
func (e *Engine) ReconcileIncoming(ctx context.Context, customerID, accountNumber int64) (*ReconcileResult, error) {
	release, err := e.locker.Acquire(ctx, lock.CustomerKey(customerID))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer release()

	_, acct, err := e.loadAccount(ctx, customerID, accountNumber)
	if err != nil {
		return nil, err
	}
	routing := acct.RoutingCode

	var pending []model.PendingCredit
	err = e.retryStore(ctx, func() error {
		var err error
		pending, err = e.mailbox.Pending(ctx, routing, accountNumber)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return nil, ErrNoIncomingFunds
	}

	inMailbox := make(map[string]bool, len(pending))
	for _, c := range pending {
		inMailbox[incomingOpID(c.ID)] = true
	}

	var (
		fresh []model.PendingCredit
		sum   int64
	)
	doc, _, err := e.mutateLocked(ctx, customerID, func(doc *model.AccountDocument) error {
		fresh, sum = nil, 0
		a := doc.Find(accountNumber)
		if a == nil {
			return ErrAccountNotFound
		}
		// credits cleared from the mailbox earlier no longer need a held id
		released := false
		for _, id := range a.HeldWithPrefix(incomingPrefix) {
			if !inMailbox[id] {
				released = a.Release(id) || released
			}
		}
		for _, c := range pending {
			if c.Amount <= 0 || a.HasApplied(incomingOpID(c.ID)) {
				continue
			}
			a.Balance += c.Amount
			a.Hold(incomingOpID(c.ID))
			fresh = append(fresh, c)
			sum += c.Amount
		}
		if len(fresh) == 0 && !released {
			return errNoChange
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errConflictsExhausted) {
			return nil, ErrReconciliationConflict
		}
		return nil, err
	}

	ids := make([]string, len(pending))
	for i, c := range pending {
		ids[i] = c.ID
	}
	if err := e.retryStore(ctx, func() error { return e.mailbox.Remove(ctx, routing, accountNumber, ids) }); err != nil {
		// credited ids stay held while their entries remain, so leftovers are skipped
		e.log.Warn().Err(err).Int64("account", accountNumber).Int("entries", len(ids)).Msg("clearing pending credits failed")
	}

	if len(fresh) == 0 {
		return nil, ErrNoIncomingFunds
	}

	a := doc.Find(accountNumber)
	entries := make([]*model.JournalEntry, 0, len(fresh))
	balance := a.Balance - sum
	for _, c := range fresh {
		balance += c.Amount
		entries = append(entries, &model.JournalEntry{
			EntryNo:       nextEntryNo(),
			CustomerID:    customerID,
			AccountNumber: accountNumber,
			Amount:        c.Amount,
			Type:          model.JournalTypeIncoming,
			Reference:     c.ID,
			BalanceBefore: balance - c.Amount,
			BalanceAfter:  balance,
			CreatedAt:     e.now(),
		})
	}
	e.record(ctx, entries, e.event(model.EventIncomingSettled, customerID, a, sum, "", ""))

	e.log.Info().
		Int64("customer_id", customerID).
		Int64("account", accountNumber).
		Int("entries", len(fresh)).
		Int64("credited", sum).
		Msg("incoming credits reconciled")

	return &ReconcileResult{Credited: sum, Entries: len(fresh), Balance: a.Balance}, nil
}
