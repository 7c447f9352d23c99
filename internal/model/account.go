package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

const (
	AccountTypeSavings = "Savings"
	AccountTypeCurrent = "Current"
)

// maxAppliedOps bounds the per-account list of operation ids kept for
// idempotent re-application.
const maxAppliedOps = 256

// Account is one sub-account inside a customer's account document.
// Balance and TransferLimit are integral minor currency units.
type Account struct {
	AccountNumber int64    `json:"account_number"`
	AccountType   string   `json:"account_type"`
	Balance       int64    `json:"balance"`
	TransferLimit int64    `json:"transfer_limit"`
	RoutingCode   string   `json:"routing_code"`
	Applied       []string `json:"applied,omitempty"`
	// Held ids are never pruned. They mark writes whose transfer or
	// mailbox entry is still open and are moved to Applied by Release.
	Held []string `json:"held,omitempty"`
}

// HasApplied reports whether opID was already applied to this account.
func (a *Account) HasApplied(opID string) bool {
	for _, id := range a.Held {
		if id == opID {
			return true
		}
	}
	for _, id := range a.Applied {
		if id == opID {
			return true
		}
	}
	return false
}

// LookupOp finds an id recorded by MarkAppliedWith and returns the
// fingerprint stored alongside it.
func (a *Account) LookupOp(opID string) (fingerprint string, ok bool) {
	for _, entry := range a.Applied {
		i := strings.LastIndexByte(entry, '#')
		if i < 0 {
			continue
		}
		if entry[:i] == opID {
			return entry[i+1:], true
		}
	}
	return "", false
}

// MarkAppliedWith records opID together with a fingerprint of the
// operation, so a replay of the id with other parameters can be told apart.
func (a *Account) MarkAppliedWith(opID, fingerprint string) {
	a.MarkApplied(opID + "#" + fingerprint)
}

// Hold records opID in the unpruned list.
func (a *Account) Hold(opID string) {
	for _, id := range a.Held {
		if id == opID {
			return
		}
	}
	a.Held = append(a.Held, opID)
}

// Release moves a held id into the pruned list. It reports false when
// opID was not held.
func (a *Account) Release(opID string) bool {
	for i, id := range a.Held {
		if id != opID {
			continue
		}
		a.Held = append(a.Held[:i:i], a.Held[i+1:]...)
		if len(a.Held) == 0 {
			a.Held = nil
		}
		a.MarkApplied(opID)
		return true
	}
	return false
}

// HeldWithPrefix lists the held ids starting with prefix.
func (a *Account) HeldWithPrefix(prefix string) []string {
	var out []string
	for _, id := range a.Held {
		if strings.HasPrefix(id, prefix) {
			out = append(out, id)
		}
	}
	return out
}

// MarkApplied records opID, dropping the oldest ids beyond the retention bound.
func (a *Account) MarkApplied(opID string) {
	a.Applied = append(a.Applied, opID)
	if n := len(a.Applied); n > maxAppliedOps {
		a.Applied = append([]string(nil), a.Applied[n-maxAppliedOps:]...)
	}
}

// AccountList is stored as a single JSON column so that the whole list is
// replaced in one conditional write.
type AccountList []Account

func (l AccountList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *AccountList) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = AccountList{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("account list: unsupported column type")
	}
	return json.Unmarshal(raw, l)
}

// GormDBDataType sizes the column for the JSON list. MySQL TEXT stops at
// 64KB, which a few busy accounts with their op ids can exceed.
func (AccountList) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	switch db.Dialector.Name() {
	case "mysql":
		return "LONGTEXT"
	default:
		return "TEXT"
	}
}

// AccountDocument holds every sub-account of one customer.
// Every replace is conditional on Version (optimistic lock).
type AccountDocument struct {
	CustomerID int64       `gorm:"primaryKey;autoIncrement:false" json:"customer_id"`
	Email      string      `gorm:"type:varchar(128)" json:"email"`
	Accounts   AccountList `gorm:"not null" json:"accounts"`
	Version    int64       `gorm:"not null;default:0" json:"version"`
	CreatedAt  time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

func (AccountDocument) TableName() string {
	return "account_document"
}

// Find returns the account with the given number, or nil.
func (d *AccountDocument) Find(accountNumber int64) *Account {
	for i := range d.Accounts {
		if d.Accounts[i].AccountNumber == accountNumber {
			return &d.Accounts[i]
		}
	}
	return nil
}

// Clone returns a deep copy safe to mutate before a conditional write.
func (d *AccountDocument) Clone() *AccountDocument {
	cp := *d
	cp.Accounts = make(AccountList, len(d.Accounts))
	for i, a := range d.Accounts {
		a.Applied = append([]string(nil), a.Applied...)
		a.Held = append([]string(nil), a.Held...)
		cp.Accounts[i] = a
	}
	return &cp
}
