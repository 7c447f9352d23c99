package model

import (
	"time"
)

// PendingCredit is an inbound cross-bank credit waiting in the shared
// ledger for the receiver to reconcile it. ID is the sender's transfer
// number, so a re-delivered entry carries the same ID.
type PendingCredit struct {
	ID                  string    `json:"id"`
	SenderAccountNumber int64     `json:"sender_account_number"`
	SenderRoutingCode   string    `json:"sender_routing_code"`
	Amount              int64     `json:"amount"`
	Timestamp           time.Time `json:"timestamp"`
}
