package model

import (
	"time"
)

const (
	JournalTypeDeposit     = "DEPOSIT"
	JournalTypeWithdraw    = "WITHDRAW"
	JournalTypeTransferOut = "TRANSFER_OUT"
	JournalTypeTransferIn  = "TRANSFER_IN"
	JournalTypeIncoming    = "INCOMING"
)

// JournalEntry is an append-only audit line for one balance change.
// Amount is positive for credits and negative for debits.
type JournalEntry struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	EntryNo       string    `gorm:"type:varchar(32);uniqueIndex;not null" json:"entry_no"`
	CustomerID    int64     `gorm:"index;not null" json:"customer_id"`
	AccountNumber int64     `gorm:"index;not null" json:"account_number"`
	Amount        int64     `gorm:"not null" json:"amount"`
	Type          string    `gorm:"type:varchar(20);not null" json:"type"`
	Reference     string    `gorm:"type:varchar(64)" json:"reference"`
	BalanceBefore int64     `gorm:"not null" json:"balance_before"`
	BalanceAfter  int64     `gorm:"not null" json:"balance_after"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (JournalEntry) TableName() string {
	return "journal_entry"
}
