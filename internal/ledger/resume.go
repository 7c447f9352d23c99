package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bankledger/internal/model"
	"bankledger/internal/repository"
)

var openStatuses = []string{
	model.TransferStatusCreated,
	model.TransferStatusDebited,
	model.TransferStatusPartial,
	model.TransferStatusPendingRetry,
}

// Resume drives an open transfer forward: a CREATED transfer is resolved
// against the sender's held ids, a debited one gets its credit retried.
// For a completed transfer it only releases ids still held. It is safe to
// call repeatedly and concurrently with itself.
func (e *Engine) Resume(ctx context.Context, transferNo string) (*model.Transfer, error) {
	t, err := e.TransferStatus(ctx, transferNo)
	if err != nil {
		return nil, err
	}
	if t.Status == model.TransferStatusCompleted {
		e.releaseHolds(ctx, t)
		return t, nil
	}
	if !t.IsOpen() {
		return t, nil
	}

	if t.Status == model.TransferStatusCreated {
		debited, err := e.resolveCreated(ctx, t)
		if err != nil {
			return t, err
		}
		if !debited {
			e.advance(ctx, t, model.TransferStatusFailed, "voided: debit never applied")
			return t, nil
		}
		e.advance(ctx, t, model.TransferStatusDebited, "")
	}

	var (
		creditErr   error
		stallStatus string
		outcome     error
	)
	if t.Kind == model.TransferKindExternal {
		creditErr = e.postCredit(ctx, t)
		stallStatus, outcome = model.TransferStatusPendingRetry, ErrTransferPendingRetry
	} else {
		creditErr = e.creditReceiver(ctx, t)
		stallStatus, outcome = model.TransferStatusPartial, ErrPartialTransferFailure
	}

	if creditErr != nil {
		if t.Status == model.TransferStatusDebited {
			e.stall(ctx, t, stallStatus, creditErr)
		} else {
			e.log.Warn().Err(creditErr).Str("transfer_no", t.TransferNo).Str("status", t.Status).Msg("resume attempt failed")
		}
		return t, fmt.Errorf("%w: %v", outcome, creditErr)
	}

	e.complete(ctx, t)
	return t, nil
}

// resolveCreated decides whether a CREATED transfer's debit landed. The
// debit id is held until the transfer completes, so its absence means the
// debit never happened. A void marker is then written in the same
// conditional write that checked, so a late debit attempt for this
// transfer can no longer apply.
func (e *Engine) resolveCreated(ctx context.Context, t *model.Transfer) (bool, error) {
	debited := false
	_, _, err := e.mutate(ctx, t.SenderCustomerID, func(doc *model.AccountDocument) error {
		acct := doc.Find(t.SenderAccount)
		if acct == nil {
			return ErrAccountNotFound
		}
		if acct.HasApplied(t.DebitOpID()) {
			debited = true
			return errNoChange
		}
		if acct.HasApplied(voidOpID(t)) {
			return errNoChange
		}
		acct.MarkApplied(voidOpID(t))
		return nil
	})
	if errors.Is(err, ErrAccountNotFound) {
		return false, nil
	}
	if err != nil {
		return false, e.storeOutcome(err)
	}
	return debited, nil
}

func (e *Engine) TransferStatus(ctx context.Context, transferNo string) (*model.Transfer, error) {
	var t *model.Transfer
	err := e.retryStore(ctx, func() error {
		var err error
		t, err = e.transfers.Get(ctx, transferNo)
		return err
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrTransferNotFound
	}
	return t, err
}

// StalledTransfers lists open transfers untouched for at least olderThan.
func (e *Engine) StalledTransfers(ctx context.Context, olderThan time.Duration, limit int) ([]*model.Transfer, error) {
	var out []*model.Transfer
	err := e.retryStore(ctx, func() error {
		var err error
		out, err = e.transfers.ListByStatus(ctx, openStatuses, e.now().Add(-olderThan), limit)
		return err
	})
	return out, err
}

// ListTransfers lists transfers in one status, oldest first.
func (e *Engine) ListTransfers(ctx context.Context, status string, limit int) ([]*model.Transfer, error) {
	if _, ok := model.ValidTransferTransitions[status]; !ok {
		return nil, fmt.Errorf("unknown transfer status %q", status)
	}
	var out []*model.Transfer
	err := e.retryStore(ctx, func() error {
		var err error
		out, err = e.transfers.ListByStatus(ctx, []string{status}, e.now().Add(time.Second), limit)
		return err
	})
	return out, err
}
