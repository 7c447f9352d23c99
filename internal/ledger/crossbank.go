package ledger

import (
	"context"
	"fmt"

	"bankledger/internal/model"
)

// TransferCrossBank debits the sender and posts a pending credit to the
// recipient bank's mailbox. The debit is the commit point: if the mailbox
// stays unreachable the transfer is PENDING_RETRY, never rolled back.
func (e *Engine) TransferCrossBank(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if req.ToRoutingCode == "" {
		return nil, ErrRecipientNotFound
	}
	if req.ToRoutingCode == e.opts.RoutingCode {
		return nil, ErrSameBankRoute
	}

	if err := e.precheckSender(ctx, req); err != nil {
		return nil, err
	}

	t, err := e.startTransfer(ctx, req, model.TransferKindExternal, 0)
	if err != nil {
		return nil, err
	}

	senderDoc, err := e.debitSender(ctx, t)
	if err != nil {
		return nil, err
	}
	result := &TransferResult{TransferNo: t.TransferNo, SenderBalance: senderDoc.Find(t.SenderAccount).Balance}

	if err := e.postCredit(ctx, t); err != nil {
		e.stall(ctx, t, model.TransferStatusPendingRetry, err)
		result.Status = t.Status
		return result, fmt.Errorf("%w: %v", ErrTransferPendingRetry, err)
	}

	e.complete(ctx, t)
	result.Status = model.TransferStatusCompleted
	return result, nil
}

// postCredit appends the transfer's pending credit with bounded retries.
// A repeated append after an unacknowledged success is harmless: the entry
// id is the transfer number and reconciliation credits each id once.
func (e *Engine) postCredit(ctx context.Context, t *model.Transfer) error {
	credit := model.PendingCredit{
		ID:                  t.TransferNo,
		SenderAccountNumber: t.SenderAccount,
		SenderRoutingCode:   e.opts.RoutingCode,
		Amount:              t.Amount,
		Timestamp:           e.now(),
	}

	var err error
	for attempt := 0; attempt <= e.opts.MailboxRetries; attempt++ {
		if attempt > 0 {
			if werr := e.backoff(ctx, attempt); werr != nil {
				return werr
			}
		}
		err = e.mailbox.Append(ctx, t.ReceiverRoutingCode, t.ReceiverAccount, credit)
		if err == nil {
			e.log.Info().
				Str("transfer_no", t.TransferNo).
				Str("routing", t.ReceiverRoutingCode).
				Int64("account", t.ReceiverAccount).
				Msg("pending credit posted")
			return nil
		}
		e.log.Warn().Err(err).Str("transfer_no", t.TransferNo).Int("attempt", attempt).Msg("mailbox append failed")
	}
	return err
}
