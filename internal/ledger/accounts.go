package ledger

import (
	"context"
	"errors"

	"bankledger/internal/model"
	"bankledger/internal/repository"
)

// OpenAccountRequest adds one account for a customer, creating the
// customer's document when it does not exist yet.
type OpenAccountRequest struct {
	CustomerID     int64
	Email          string
	AccountType    string
	OpeningBalance int64
	TransferLimit  int64
}

func (e *Engine) OpenAccount(ctx context.Context, req OpenAccountRequest) (*model.Account, error) {
	if req.OpeningBalance < 0 {
		return nil, ErrInvalidAmount
	}
	if req.TransferLimit < 0 {
		return nil, ErrInvalidLimit
	}

	number, err := e.seq.Next(ctx, model.CounterAccount)
	if err != nil {
		return nil, err
	}
	acct := model.Account{
		AccountNumber: number,
		AccountType:   req.AccountType,
		Balance:       req.OpeningBalance,
		TransferLimit: req.TransferLimit,
		RoutingCode:   e.opts.RoutingCode,
	}

	err = e.retryStore(ctx, func() error {
		_, gerr := e.accounts.GetDocument(ctx, req.CustomerID)
		if !errors.Is(gerr, repository.ErrNotFound) {
			return gerr
		}
		cerr := e.accounts.CreateDocument(ctx, &model.AccountDocument{
			CustomerID: req.CustomerID,
			Email:      req.Email,
			Accounts:   model.AccountList{acct},
		})
		if errors.Is(cerr, repository.ErrVersionConflict) {
			// created concurrently; the append below covers it
			return nil
		}
		return cerr
	})
	if err != nil {
		return nil, err
	}

	doc, _, err := e.mutate(ctx, req.CustomerID, func(doc *model.AccountDocument) error {
		if doc.Find(number) != nil {
			return errNoChange
		}
		doc.Accounts = append(doc.Accounts, acct)
		if doc.Email == "" {
			doc.Email = req.Email
		}
		return nil
	})
	if err != nil {
		return nil, e.storeOutcome(err)
	}

	created := doc.Find(number)
	if req.OpeningBalance > 0 {
		e.record(ctx,
			[]*model.JournalEntry{e.journalEntry(req.CustomerID, created, req.OpeningBalance, model.JournalTypeDeposit, "opening")},
			e.event(model.EventCashApplied, req.CustomerID, created, req.OpeningBalance, "opening", ""),
		)
	}
	e.log.Info().Int64("customer_id", req.CustomerID).Int64("account", number).Msg("account opened")
	return publicAccount(created), nil
}

// Accounts returns the customer's accounts without internal bookkeeping.
func (e *Engine) Accounts(ctx context.Context, customerID int64) ([]model.Account, error) {
	doc, err := e.loadDocument(ctx, customerID)
	if err != nil {
		return nil, err
	}
	out := make([]model.Account, len(doc.Accounts))
	for i := range doc.Accounts {
		out[i] = *publicAccount(&doc.Accounts[i])
	}
	return out, nil
}

// SetTransferLimit replaces the per-operation cap of one account.
func (e *Engine) SetTransferLimit(ctx context.Context, customerID, accountNumber, limit int64) (*model.Account, error) {
	if limit < 0 {
		return nil, ErrInvalidLimit
	}
	doc, applied, err := e.mutate(ctx, customerID, func(doc *model.AccountDocument) error {
		acct := doc.Find(accountNumber)
		if acct == nil {
			return ErrAccountNotFound
		}
		if acct.TransferLimit == limit {
			return errNoChange
		}
		acct.TransferLimit = limit
		return nil
	})
	if err != nil {
		return nil, e.storeOutcome(err)
	}

	acct := doc.Find(accountNumber)
	if applied {
		e.record(ctx, nil, e.event(model.EventTransferLimitSet, customerID, acct, limit, "", ""))
		e.log.Info().Int64("customer_id", customerID).Int64("account", accountNumber).Int64("limit", limit).Msg("transfer limit set")
	}
	return publicAccount(acct), nil
}

// IncomingCredits lists the account's pending credits without consuming them.
func (e *Engine) IncomingCredits(ctx context.Context, customerID, accountNumber int64) ([]model.PendingCredit, error) {
	_, acct, err := e.loadAccount(ctx, customerID, accountNumber)
	if err != nil {
		return nil, err
	}
	var pending []model.PendingCredit
	err = e.retryStore(ctx, func() error {
		var err error
		pending, err = e.mailbox.Pending(ctx, acct.RoutingCode, accountNumber)
		return err
	})
	return pending, err
}

func (e *Engine) MailboxSnapshot(ctx context.Context, routingCode string) (map[int64][]model.PendingCredit, error) {
	var snap map[int64][]model.PendingCredit
	err := e.retryStore(ctx, func() error {
		var err error
		snap, err = e.mailbox.Snapshot(ctx, routingCode)
		return err
	})
	return snap, err
}

// Journal returns the newest entries of an account owned by customerID.
func (e *Engine) Journal(ctx context.Context, customerID, accountNumber int64, limit int) ([]*model.JournalEntry, error) {
	if _, _, err := e.loadAccount(ctx, customerID, accountNumber); err != nil {
		return nil, err
	}
	var entries []*model.JournalEntry
	err := e.retryStore(ctx, func() error {
		var err error
		entries, err = e.journal.ListByAccount(ctx, accountNumber, limit)
		return err
	})
	return entries, err
}

// CustomerEmail returns the address stored with the customer's accounts.
func (e *Engine) CustomerEmail(ctx context.Context, customerID int64) (string, error) {
	doc, err := e.loadDocument(ctx, customerID)
	if err != nil {
		return "", err
	}
	return doc.Email, nil
}

// SetCustomerEmail changes the address notifications for the customer's
// accounts go to.
func (e *Engine) SetCustomerEmail(ctx context.Context, customerID int64, email string) error {
	_, applied, err := e.mutate(ctx, customerID, func(doc *model.AccountDocument) error {
		if doc.Email == email {
			return errNoChange
		}
		doc.Email = email
		return nil
	})
	if err != nil {
		return e.storeOutcome(err)
	}
	if applied {
		e.log.Info().Int64("customer_id", customerID).Msg("notification address changed")
	}
	return nil
}

func publicAccount(a *model.Account) *model.Account {
	cp := *a
	cp.Applied = nil
	cp.Held = nil
	return &cp
}
