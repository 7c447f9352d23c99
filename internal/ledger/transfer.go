package ledger

import (
	"context"
	"errors"
	"fmt"

	"bankledger/internal/model"
	"bankledger/internal/repository"
)

type TransferRequest struct {
	CustomerID    int64
	FromAccount   int64
	ToAccount     int64
	ToRoutingCode string
	Amount        int64
}

// TransferResult is returned with ErrPartialTransferFailure and
// ErrTransferPendingRetry as well as on success, so callers always learn
// the transfer number and its status.
type TransferResult struct {
	TransferNo    string `json:"transfer_no"`
	Status        string `json:"status"`
	SenderBalance int64  `json:"sender_balance"`
}

// Transfer moves money to an account of this bank, or to another bank
// through the shared ledger, depending on the recipient routing code.
func (e *Engine) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	if req.ToRoutingCode == "" || req.ToRoutingCode == e.opts.RoutingCode {
		req.ToRoutingCode = e.opts.RoutingCode
		return e.TransferWithinStore(ctx, req)
	}
	return e.TransferCrossBank(ctx, req)
}

// TransferWithinStore debits the sender and credits a recipient held in the
// same account store. The debit always lands first; a credit that then fails
// leaves the transfer PARTIAL for recovery.
func (e *Engine) TransferWithinStore(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if req.ToRoutingCode == "" {
		req.ToRoutingCode = e.opts.RoutingCode
	}
	if req.ToRoutingCode != e.opts.RoutingCode {
		return nil, ErrRecipientNotFound
	}
	if req.FromAccount == req.ToAccount {
		return nil, ErrSameAccount
	}

	if err := e.precheckSender(ctx, req); err != nil {
		return nil, err
	}

	receiverID, err := e.findRecipient(ctx, req.ToAccount, req.ToRoutingCode)
	if err != nil {
		return nil, err
	}

	t, err := e.startTransfer(ctx, req, model.TransferKindInternal, receiverID)
	if err != nil {
		return nil, err
	}

	if receiverID == req.CustomerID {
		return e.transferInDocument(ctx, t)
	}

	senderDoc, err := e.debitSender(ctx, t)
	if err != nil {
		return nil, err
	}
	result := &TransferResult{TransferNo: t.TransferNo, SenderBalance: senderDoc.Find(t.SenderAccount).Balance}

	if err := e.creditReceiver(ctx, t); err != nil {
		e.stall(ctx, t, model.TransferStatusPartial, err)
		result.Status = t.Status
		return result, fmt.Errorf("%w: %v", ErrPartialTransferFailure, err)
	}

	e.complete(ctx, t)
	result.Status = model.TransferStatusCompleted
	return result, nil
}

// transferInDocument handles sender and recipient owned by one customer:
// both balances change in a single conditional write.
func (e *Engine) transferInDocument(ctx context.Context, t *model.Transfer) (*TransferResult, error) {
	doc, applied, err := e.mutate(ctx, t.SenderCustomerID, func(doc *model.AccountDocument) error {
		from, to := doc.Find(t.SenderAccount), doc.Find(t.ReceiverAccount)
		if from == nil {
			return ErrAccountNotFound
		}
		if to == nil {
			return ErrRecipientNotFound
		}
		if from.HasApplied(t.DebitOpID()) {
			return errNoChange
		}
		if from.HasApplied(voidOpID(t)) {
			return errTransferVoided
		}
		if err := checkAmount(from, t.Amount, true); err != nil {
			return err
		}
		from.Balance -= t.Amount
		from.Hold(t.DebitOpID())
		to.Balance += t.Amount
		to.Hold(t.CreditOpID())
		return nil
	})
	if err != nil {
		return nil, e.abandon(ctx, t, err)
	}

	from, to := doc.Find(t.SenderAccount), doc.Find(t.ReceiverAccount)
	if applied {
		e.record(ctx,
			[]*model.JournalEntry{
				e.journalEntry(t.SenderCustomerID, from, -t.Amount, model.JournalTypeTransferOut, t.TransferNo),
				e.journalEntry(t.ReceiverCustomerID, to, t.Amount, model.JournalTypeTransferIn, t.TransferNo),
			},
			e.event(model.EventTransferSettled, t.SenderCustomerID, from, -t.Amount, t.TransferNo, model.TransferStatusCompleted),
			e.event(model.EventTransferSettled, t.ReceiverCustomerID, to, t.Amount, t.TransferNo, model.TransferStatusCompleted),
		)
	}
	e.complete(ctx, t)
	return &TransferResult{TransferNo: t.TransferNo, Status: model.TransferStatusCompleted, SenderBalance: from.Balance}, nil
}

// precheckSender rejects invalid requests before any record is written.
// The same rules are enforced again inside the debit.
func (e *Engine) precheckSender(ctx context.Context, req TransferRequest) error {
	_, acct, err := e.loadAccount(ctx, req.CustomerID, req.FromAccount)
	if err != nil {
		return err
	}
	return checkAmount(acct, req.Amount, true)
}

// findRecipient scans every customer document for the account number under
// routingCode and returns its owner.
func (e *Engine) findRecipient(ctx context.Context, accountNumber int64, routingCode string) (int64, error) {
	var docs []*model.AccountDocument
	err := e.retryStore(ctx, func() error {
		var err error
		docs, err = e.accounts.ListDocuments(ctx)
		return err
	})
	if err != nil {
		return 0, err
	}
	for _, doc := range docs {
		if acct := doc.Find(accountNumber); acct != nil && acct.RoutingCode == routingCode {
			return doc.CustomerID, nil
		}
	}
	return 0, ErrRecipientNotFound
}

func (e *Engine) startTransfer(ctx context.Context, req TransferRequest, kind string, receiverID int64) (*model.Transfer, error) {
	t := &model.Transfer{
		TransferNo:          nextTransferNo(),
		Kind:                kind,
		SenderCustomerID:    req.CustomerID,
		SenderAccount:       req.FromAccount,
		ReceiverCustomerID:  receiverID,
		ReceiverAccount:     req.ToAccount,
		ReceiverRoutingCode: req.ToRoutingCode,
		Amount:              req.Amount,
		Status:              model.TransferStatusCreated,
	}
	if err := e.retryStore(ctx, func() error { return e.transfers.Create(ctx, t) }); err != nil {
		return nil, err
	}
	e.log.Info().
		Str("transfer_no", t.TransferNo).
		Str("kind", kind).
		Int64("from", t.SenderAccount).
		Int64("to", t.ReceiverAccount).
		Str("to_routing", t.ReceiverRoutingCode).
		Int64("amount", t.Amount).
		Msg("transfer created")
	return t, nil
}

func voidOpID(t *model.Transfer) string {
	return t.TransferNo + ":X"
}

// debitSender is the commit point of a transfer. It is idempotent on the
// transfer's debit id and refuses to run once the transfer was voided.
func (e *Engine) debitSender(ctx context.Context, t *model.Transfer) (*model.AccountDocument, error) {
	doc, applied, err := e.mutate(ctx, t.SenderCustomerID, func(doc *model.AccountDocument) error {
		acct := doc.Find(t.SenderAccount)
		if acct == nil {
			return ErrAccountNotFound
		}
		if acct.HasApplied(t.DebitOpID()) {
			return errNoChange
		}
		if acct.HasApplied(voidOpID(t)) {
			return errTransferVoided
		}
		if err := checkAmount(acct, t.Amount, true); err != nil {
			return err
		}
		acct.Balance -= t.Amount
		acct.Hold(t.DebitOpID())
		return nil
	})
	if err != nil {
		return nil, e.abandon(ctx, t, err)
	}

	acct := doc.Find(t.SenderAccount)
	if applied {
		e.record(ctx,
			[]*model.JournalEntry{e.journalEntry(t.SenderCustomerID, acct, -t.Amount, model.JournalTypeTransferOut, t.TransferNo)},
			e.event(model.EventTransferDebited, t.SenderCustomerID, acct, -t.Amount, t.TransferNo, model.TransferStatusDebited),
		)
	}
	e.advance(ctx, t, model.TransferStatusDebited, "")
	return doc, nil
}

// abandon settles a transfer whose debit did not happen. Validation
// failures close it as FAILED. Store failures leave it CREATED: the debit
// may or may not have landed, and recovery resolves that later.
func (e *Engine) abandon(ctx context.Context, t *model.Transfer, err error) error {
	if errors.Is(err, errConflictsExhausted) || errors.Is(err, ErrStoreUnavailable) {
		e.log.Warn().Err(err).Str("transfer_no", t.TransferNo).Msg("debit outcome unknown, left for recovery")
		return e.storeOutcome(err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	e.advance(ctx, t, model.TransferStatusFailed, err.Error())
	if errors.Is(err, errTransferVoided) {
		return fmt.Errorf("transfer %s: %w", t.TransferNo, err)
	}
	return err
}

// creditReceiver credits an internal recipient, idempotent on the
// transfer's credit id.
func (e *Engine) creditReceiver(ctx context.Context, t *model.Transfer) error {
	doc, applied, err := e.mutate(ctx, t.ReceiverCustomerID, func(doc *model.AccountDocument) error {
		acct := doc.Find(t.ReceiverAccount)
		if acct == nil {
			return ErrRecipientNotFound
		}
		if acct.HasApplied(t.CreditOpID()) {
			return errNoChange
		}
		acct.Balance += t.Amount
		acct.Hold(t.CreditOpID())
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return ErrRecipientNotFound
		}
		return e.storeOutcome(err)
	}

	if applied {
		acct := doc.Find(t.ReceiverAccount)
		e.record(ctx,
			[]*model.JournalEntry{e.journalEntry(t.ReceiverCustomerID, acct, t.Amount, model.JournalTypeTransferIn, t.TransferNo)},
			e.event(model.EventTransferSettled, t.ReceiverCustomerID, acct, t.Amount, t.TransferNo, model.TransferStatusCompleted),
		)
	}
	return nil
}

// advance moves t to status, stepping through DEBITED when t is still
// CREATED. A failed status write is logged; the balances are already
// correct and recovery re-derives the status from the applied ids.
func (e *Engine) advance(ctx context.Context, t *model.Transfer, status, lastError string) {
	if t.Status == status {
		return
	}
	if t.Status == model.TransferStatusCreated && status != model.TransferStatusDebited && status != model.TransferStatusFailed {
		e.advance(ctx, t, model.TransferStatusDebited, "")
	}
	if !t.CanTransitionTo(status) {
		e.log.Warn().Str("transfer_no", t.TransferNo).Str("from", t.Status).Str("to", status).Msg("illegal transfer transition skipped")
		return
	}

	err := e.retryStore(ctx, func() error { return e.transfers.UpdateStatus(ctx, t, status, lastError) })
	if errors.Is(err, repository.ErrStatusConflict) {
		// someone else moved it; pick up the stored state
		if cur, gerr := e.transfers.Get(ctx, t.TransferNo); gerr == nil {
			*t = *cur
		}
		return
	}
	if err != nil {
		e.log.Error().Err(err).Str("transfer_no", t.TransferNo).Str("status", status).Msg("transfer status update failed")
		return
	}
	e.log.Info().Str("transfer_no", t.TransferNo).Str("status", status).Msg("transfer status changed")
}

// complete closes t as COMPLETED. Once that is stored the transfer's held
// op ids are released; until then they stay and recovery can rely on them.
func (e *Engine) complete(ctx context.Context, t *model.Transfer) {
	e.advance(ctx, t, model.TransferStatusCompleted, "")
	if t.Status == model.TransferStatusCompleted {
		e.releaseHolds(ctx, t)
	}
}

type heldOp struct {
	account int64
	opID    string
}

// releaseHolds moves the debit and credit ids of a completed transfer into
// the pruned list of their accounts. A failed release only keeps the ids
// longer; a later Resume of the transfer retries it.
func (e *Engine) releaseHolds(ctx context.Context, t *model.Transfer) {
	byCustomer := map[int64][]heldOp{
		t.SenderCustomerID: {{t.SenderAccount, t.DebitOpID()}},
	}
	if t.Kind == model.TransferKindInternal {
		byCustomer[t.ReceiverCustomerID] = append(byCustomer[t.ReceiverCustomerID], heldOp{t.ReceiverAccount, t.CreditOpID()})
	}

	for customerID, ops := range byCustomer {
		_, _, err := e.mutate(ctx, customerID, func(doc *model.AccountDocument) error {
			released := false
			for _, op := range ops {
				if acct := doc.Find(op.account); acct != nil && acct.Release(op.opID) {
					released = true
				}
			}
			if !released {
				return errNoChange
			}
			return nil
		})
		if err != nil {
			e.log.Warn().Err(err).Str("transfer_no", t.TransferNo).Int64("customer_id", customerID).Msg("held op ids not released")
		}
	}
}

// stall records a transfer left debited but not credited and tells the
// sender.
func (e *Engine) stall(ctx context.Context, t *model.Transfer, status string, cause error) {
	if t.Status == model.TransferStatusDebited || t.Status == model.TransferStatusCreated {
		e.advance(ctx, t, status, cause.Error())
	}
	e.log.Warn().Err(cause).Str("transfer_no", t.TransferNo).Str("status", t.Status).Msg("transfer stalled after debit")

	doc, err := e.loadDocument(ctx, t.SenderCustomerID)
	if err != nil {
		return
	}
	if acct := doc.Find(t.SenderAccount); acct != nil {
		e.record(ctx, nil, e.event(model.EventTransferStalled, t.SenderCustomerID, acct, -t.Amount, t.TransferNo, t.Status))
	}
	e.notify(ctx, doc.Email, "Transfer "+t.TransferNo+" pending",
		fmt.Sprintf("Your transfer of %d from account %d to account %d has been debited and is pending settlement. No action is needed; it will be completed automatically.",
			t.Amount, t.SenderAccount, t.ReceiverAccount))
}
