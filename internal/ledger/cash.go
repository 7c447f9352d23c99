package ledger

import (
	"context"
	"errors"
	"fmt"

	"bankledger/internal/model"
)

type CashKind string

const (
	CashDeposit  CashKind = "DEPOSIT"
	CashWithdraw CashKind = "WITHDRAW"
)

type CashRequest struct {
	CustomerID    int64
	AccountNumber int64
	Kind          CashKind
	Amount        int64
	// RequestID makes a retried request idempotent. One is generated when
	// empty. Reusing it with another kind or amount is ErrRequestIDReused.
	RequestID string
}

// ApplyCashOperation deposits into or withdraws from one account and
// returns the new balance.
func (e *Engine) ApplyCashOperation(ctx context.Context, req CashRequest) (int64, error) {
	if req.Amount <= 0 {
		return 0, ErrInvalidAmount
	}
	if req.Kind != CashDeposit && req.Kind != CashWithdraw {
		return 0, ErrInvalidAmount
	}
	opID := req.RequestID
	if opID == "" {
		opID = nextEntryNo()
	}
	opID = "cash:" + opID
	fingerprint := fmt.Sprintf("%s:%d", req.Kind, req.Amount)
	debit := req.Kind == CashWithdraw

	doc, applied, err := e.mutate(ctx, req.CustomerID, func(doc *model.AccountDocument) error {
		acct := doc.Find(req.AccountNumber)
		if acct == nil {
			return ErrAccountNotFound
		}
		if fp, ok := acct.LookupOp(opID); ok {
			if fp != fingerprint {
				return ErrRequestIDReused
			}
			return errNoChange
		}
		if err := checkAmount(acct, req.Amount, debit); err != nil {
			return err
		}
		if debit {
			acct.Balance -= req.Amount
		} else {
			acct.Balance += req.Amount
		}
		acct.MarkAppliedWith(opID, fingerprint)
		return nil
	})
	if err != nil {
		return 0, e.storeOutcome(err)
	}

	acct := doc.Find(req.AccountNumber)
	if applied {
		delta, typ := req.Amount, model.JournalTypeDeposit
		if debit {
			delta, typ = -req.Amount, model.JournalTypeWithdraw
		}
		e.record(ctx,
			[]*model.JournalEntry{e.journalEntry(req.CustomerID, acct, delta, typ, opID)},
			e.event(model.EventCashApplied, req.CustomerID, acct, delta, opID, ""),
		)
		e.log.Info().
			Int64("customer_id", req.CustomerID).
			Int64("account", req.AccountNumber).
			Str("kind", string(req.Kind)).
			Int64("amount", req.Amount).
			Int64("balance", acct.Balance).
			Msg("cash operation applied")
	}
	return acct.Balance, nil
}

func (e *Engine) Deposit(ctx context.Context, customerID, accountNumber, amount int64) (int64, error) {
	return e.ApplyCashOperation(ctx, CashRequest{
		CustomerID:    customerID,
		AccountNumber: accountNumber,
		Kind:          CashDeposit,
		Amount:        amount,
	})
}

func (e *Engine) Withdraw(ctx context.Context, customerID, accountNumber, amount int64) (int64, error) {
	return e.ApplyCashOperation(ctx, CashRequest{
		CustomerID:    customerID,
		AccountNumber: accountNumber,
		Kind:          CashWithdraw,
		Amount:        amount,
	})
}

// storeOutcome maps an exhausted conflict loop to a retryable error.
func (e *Engine) storeOutcome(err error) error {
	if errors.Is(err, errConflictsExhausted) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return err
}
