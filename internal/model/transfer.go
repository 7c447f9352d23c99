package model

import (
	"time"
)

const (
	TransferKindInternal = "INTERNAL"
	TransferKindExternal = "EXTERNAL"
)

const (
	TransferStatusCreated      = "CREATED"
	TransferStatusDebited      = "DEBITED"
	TransferStatusCompleted    = "COMPLETED"
	TransferStatusFailed       = "FAILED"
	TransferStatusPartial      = "PARTIAL"
	TransferStatusPendingRetry = "PENDING_RETRY"
)

var ValidTransferTransitions = map[string][]string{
	TransferStatusCreated:      {TransferStatusDebited, TransferStatusFailed},
	TransferStatusDebited:      {TransferStatusCompleted, TransferStatusPartial, TransferStatusPendingRetry},
	TransferStatusPartial:      {TransferStatusCompleted},
	TransferStatusPendingRetry: {TransferStatusCompleted},
	TransferStatusCompleted:    {},
	TransferStatusFailed:       {},
}

// Transfer is the durable record of a transfer in flight. The sender's
// debit is the commit point; a record left in DEBITED, PARTIAL or
// PENDING_RETRY still owes the receiver its credit.
type Transfer struct {
	ID                  int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TransferNo          string    `gorm:"type:varchar(32);uniqueIndex;not null" json:"transfer_no"`
	Kind                string    `gorm:"type:varchar(16);not null" json:"kind"`
	SenderCustomerID    int64     `gorm:"index;not null" json:"sender_customer_id"`
	SenderAccount       int64     `gorm:"not null" json:"sender_account"`
	ReceiverCustomerID  int64     `json:"receiver_customer_id,omitempty"`
	ReceiverAccount     int64     `gorm:"not null" json:"receiver_account"`
	ReceiverRoutingCode string    `gorm:"type:varchar(32);not null" json:"receiver_routing_code"`
	Amount              int64     `gorm:"not null" json:"amount"`
	Status              string    `gorm:"type:varchar(20);index;not null" json:"status"`
	Attempts            int       `gorm:"not null;default:0" json:"attempts"`
	LastError           string    `gorm:"type:varchar(255)" json:"last_error,omitempty"`
	CreatedAt           time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time `gorm:"autoUpdateTime;index" json:"updated_at"`
}

func (Transfer) TableName() string {
	return "transfer"
}

func (t *Transfer) CanTransitionTo(target string) bool {
	for _, s := range ValidTransferTransitions[t.Status] {
		if s == target {
			return true
		}
	}
	return false
}

// IsOpen reports whether the transfer still needs work.
func (t *Transfer) IsOpen() bool {
	return t.Status != TransferStatusCompleted && t.Status != TransferStatusFailed
}

// DebitOpID and CreditOpID identify the two balance writes of a transfer
// on the accounts they touch. Both stay held until the transfer completes.
func (t *Transfer) DebitOpID() string {
	return t.TransferNo + ":D"
}

func (t *Transfer) CreditOpID() string {
	return t.TransferNo + ":C"
}
