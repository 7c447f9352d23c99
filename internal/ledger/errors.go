package ledger

import "errors"

// Validation errors are terminal and leave no state change.
var (
	ErrInvalidAmount     = errors.New("amount must be a positive whole number")
	ErrLimitExceeded     = errors.New("amount exceeds the account transfer limit")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrRecipientNotFound = errors.New("recipient account not found")
	ErrAccountNotFound   = errors.New("account not found")
	ErrSameAccount       = errors.New("sender and recipient are the same account")
	ErrSameBankRoute     = errors.New("recipient routing code belongs to this bank")
	ErrInvalidLimit      = errors.New("transfer limit must not be negative")
	ErrTransferNotFound  = errors.New("transfer not found")
	ErrRequestIDReused   = errors.New("request id already used for a different operation")
)

// Intermediate outcomes. Money has left the sender and the transfer record
// stays open until the credit side is durable.
var (
	ErrPartialTransferFailure = errors.New("sender debited but recipient credit failed")
	ErrTransferPendingRetry   = errors.New("sender debited, inter-bank credit pending retry")
)

var (
	ErrNoIncomingFunds        = errors.New("no incoming funds")
	ErrReconciliationConflict = errors.New("incoming credits changed concurrently, retry")
	ErrStoreUnavailable       = errors.New("store unavailable")
	ErrCounterRace            = errors.New("counter increment collided too often")
)

var (
	errNoChange           = errors.New("no change")
	errConflictsExhausted = errors.New("version conflicts exhausted")
	errTransferVoided     = errors.New("transfer voided before debit")
)
