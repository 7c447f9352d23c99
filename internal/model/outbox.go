package model

import (
	"time"
)

const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)

const (
	EventCashApplied      = "cash.applied"
	EventTransferDebited  = "transfer.debited"
	EventTransferSettled  = "transfer.settled"
	EventTransferStalled  = "transfer.stalled"
	EventIncomingSettled  = "incoming.settled"
	EventTransferLimitSet = "account.limit_set"
)

// OutboxMessage is a ledger event written after the balance change it
// describes and relayed to Kafka by the outbox sender. MessageKey is the
// account number so that events for one account stay ordered.
type OutboxMessage struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageKey string    `gorm:"type:varchar(64);not null" json:"message_key"`
	Topic      string    `gorm:"type:varchar(64);not null" json:"topic"`
	EventType  string    `gorm:"type:varchar(32);not null" json:"event_type"`
	Payload    string    `gorm:"type:text;not null" json:"payload"`
	Status     string    `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	RetryCount int       `gorm:"not null;default:0" json:"retry_count"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (OutboxMessage) TableName() string {
	return "outbox_message"
}

// LedgerEvent is the JSON payload of an OutboxMessage.
type LedgerEvent struct {
	Type          string    `json:"type"`
	CustomerID    int64     `json:"customer_id"`
	AccountNumber int64     `json:"account_number"`
	Amount        int64     `json:"amount"`
	Balance       int64     `json:"balance"`
	Reference     string    `json:"reference,omitempty"`
	Status        string    `json:"status,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}
