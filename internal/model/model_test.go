package model

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func TestAccountApplied(t *testing.T) {
	as := assert.New(t)

	var a Account
	for i := 0; i < maxAppliedOps+10; i++ {
		a.MarkApplied(fmt.Sprintf("op-%d", i))
	}
	as.Len(a.Applied, maxAppliedOps)
	as.False(a.HasApplied("op-0"))
	as.False(a.HasApplied("op-9"))
	as.True(a.HasApplied("op-10"))
	as.True(a.HasApplied(fmt.Sprintf("op-%d", maxAppliedOps+9)))
}

func TestAccountHeld(t *testing.T) {
	t.Run("held ids survive any number of later ops", func(tt *testing.T) {
		as := assert.New(tt)
		var a Account
		a.Hold("TR1:D")
		a.Hold("TR1:D")
		for i := 0; i < maxAppliedOps*2; i++ {
			a.MarkApplied(fmt.Sprintf("op-%d", i))
		}
		as.True(a.HasApplied("TR1:D"))
		as.Equal([]string{"TR1:D"}, a.Held)
	})

	t.Run("release moves the id into the pruned list", func(tt *testing.T) {
		as := assert.New(tt)
		var a Account
		a.Hold("in:1")
		a.Hold("TR2:D")
		a.Hold("in:3")
		as.Equal([]string{"in:1", "in:3"}, a.HeldWithPrefix("in:"))

		as.True(a.Release("TR2:D"))
		as.False(a.Release("TR2:D"))
		as.Equal([]string{"in:1", "in:3"}, a.Held)
		as.Equal([]string{"TR2:D"}, a.Applied)
		as.True(a.HasApplied("TR2:D"))

		as.True(a.Release("in:1"))
		as.True(a.Release("in:3"))
		as.Nil(a.Held)
	})

	t.Run("clone does not share the held list", func(tt *testing.T) {
		as := assert.New(tt)
		doc := &AccountDocument{Accounts: AccountList{{AccountNumber: 5, Held: []string{"a", "b"}}}}
		cp := doc.Clone()
		cp.Find(5).Release("a")
		as.Equal([]string{"a", "b"}, doc.Find(5).Held)
	})
}

func TestAccountLookupOp(t *testing.T) {
	as := assert.New(t)
	var a Account
	a.MarkAppliedWith("cash:r1", "DEPOSIT:500")
	a.MarkAppliedWith("cash:a#b", "WITHDRAW:3")
	a.MarkApplied("TR1:D")

	fp, ok := a.LookupOp("cash:r1")
	as.True(ok)
	as.Equal("DEPOSIT:500", fp)

	fp, ok = a.LookupOp("cash:a#b")
	as.True(ok)
	as.Equal("WITHDRAW:3", fp)

	_, ok = a.LookupOp("cash:r2")
	as.False(ok)
	_, ok = a.LookupOp("TR1:D")
	as.False(ok)
}

func TestAccountListColumn(t *testing.T) {
	t.Run("round trips through the driver value", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		in := AccountList{{AccountNumber: 1, AccountType: AccountTypeSavings, Balance: 10, TransferLimit: 20, RoutingCode: "x"}}

		v, err := in.Value()
		reqrd.NoError(err)

		var out AccountList
		reqrd.NoError(out.Scan([]byte(v.(string))))
		as.Equal(in, out)
	})

	t.Run("nil list is stored as an empty array", func(tt *testing.T) {
		as := assert.New(tt)
		var l AccountList
		v, err := l.Value()
		as.NoError(err)
		as.Equal("[]", v)

		as.NoError(l.Scan(nil))
		as.NotNil(l)
		as.Error(l.Scan(42))
	})

	t.Run("mysql gets a column larger than TEXT", func(tt *testing.T) {
		as := assert.New(tt)
		var l AccountList
		my := &gorm.DB{Config: &gorm.Config{Dialector: mysql.New(mysql.Config{})}}
		pg := &gorm.DB{Config: &gorm.Config{Dialector: postgres.New(postgres.Config{})}}
		as.Equal("LONGTEXT", l.GormDBDataType(my, nil))
		as.Equal("TEXT", l.GormDBDataType(pg, nil))
	})
}

func TestAccountDocumentClone(t *testing.T) {
	as := assert.New(t)
	doc := &AccountDocument{
		CustomerID: 1,
		Accounts:   AccountList{{AccountNumber: 5, Balance: 10, Applied: []string{"a"}}},
	}

	cp := doc.Clone()
	cp.Find(5).Balance = 99
	cp.Find(5).MarkApplied("b")

	as.Equal(int64(10), doc.Find(5).Balance)
	as.Equal([]string{"a"}, doc.Find(5).Applied)
	as.Nil(doc.Find(6))
}

func TestTransferTransitions(t *testing.T) {
	as := assert.New(t)
	cases := []struct {
		from, to string
		ok       bool
	}{
		{TransferStatusCreated, TransferStatusDebited, true},
		{TransferStatusCreated, TransferStatusFailed, true},
		{TransferStatusCreated, TransferStatusCompleted, false},
		{TransferStatusDebited, TransferStatusCompleted, true},
		{TransferStatusDebited, TransferStatusPartial, true},
		{TransferStatusDebited, TransferStatusPendingRetry, true},
		{TransferStatusDebited, TransferStatusFailed, false},
		{TransferStatusPartial, TransferStatusCompleted, true},
		{TransferStatusPendingRetry, TransferStatusCompleted, true},
		{TransferStatusPendingRetry, TransferStatusPartial, false},
		{TransferStatusCompleted, TransferStatusPartial, false},
		{TransferStatusFailed, TransferStatusDebited, false},
	}
	for _, c := range cases {
		tr := Transfer{Status: c.from}
		as.Equal(c.ok, tr.CanTransitionTo(c.to), "%s -> %s", c.from, c.to)
	}

	as.True((&Transfer{Status: TransferStatusPartial}).IsOpen())
	as.False((&Transfer{Status: TransferStatusCompleted}).IsOpen())
}

func TestCustomerAge(t *testing.T) {
	as := assert.New(t)
	c := Customer{DateOfBirth: time.Date(1960, time.June, 15, 0, 0, 0, 0, time.UTC)}
	as.Equal(59, c.AgeAt(time.Date(2020, time.June, 14, 0, 0, 0, 0, time.UTC)))
	as.Equal(60, c.AgeAt(time.Date(2020, time.June, 15, 0, 0, 0, 0, time.UTC)))
}
