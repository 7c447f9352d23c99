package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"bankledger/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyCashOperation(t *testing.T) {
	ctx := context.Background()

	t.Run("deposit raises balance and is journaled", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		env := newTestEnv(tt, bankX, nil)
		env.seed(tt, 1, "a@example.com", acct(100, 1000, 5000))

		bal, err := env.engine.Deposit(ctx, 1, 100, 250)
		reqrd.NoError(err)
		as.Equal(int64(1250), bal)
		as.Equal(int64(1250), env.balance(tt, 1, 100))

		entries, err := env.journal.ListByAccount(ctx, 100, 10)
		reqrd.NoError(err)
		reqrd.Len(entries, 1)
		as.Equal(int64(250), entries[0].Amount)
		as.Equal(int64(1000), entries[0].BalanceBefore)
		as.Equal(int64(1250), entries[0].BalanceAfter)
		as.Equal(model.JournalTypeDeposit, entries[0].Type)

		msgs := env.outbox.Messages()
		reqrd.Len(msgs, 1)
		as.Equal(model.EventCashApplied, msgs[0].EventType)
		as.Equal("100", msgs[0].MessageKey)
	})

	t.Run("withdraw lowers balance", func(tt *testing.T) {
		as := assert.New(tt)
		env := newTestEnv(tt, bankX, nil)
		env.seed(tt, 1, "", acct(100, 1000, 5000))

		bal, err := env.engine.Withdraw(ctx, 1, 100, 400)
		as.NoError(err)
		as.Equal(int64(600), bal)
	})

	t.Run("non-positive amounts are rejected without change", func(tt *testing.T) {
		as := assert.New(tt)
		env := newTestEnv(tt, bankX, nil)
		env.seed(tt, 1, "", acct(100, 1000, 5000))

		for _, amount := range []int64{0, -1, -500} {
			_, err := env.engine.Deposit(ctx, 1, 100, amount)
			as.ErrorIs(err, ErrInvalidAmount)
			_, err = env.engine.Withdraw(ctx, 1, 100, amount)
			as.ErrorIs(err, ErrInvalidAmount)
		}
		as.Equal(int64(1000), env.balance(tt, 1, 100))
		as.Empty(env.outbox.Messages())
	})

	t.Run("limit is checked before balance", func(tt *testing.T) {
		as := assert.New(tt)
		env := newTestEnv(tt, bankX, nil)
		env.seed(tt, 1, "", acct(100, 500000, 500000))

		_, err := env.engine.Withdraw(ctx, 1, 100, 600000)
		as.ErrorIs(err, ErrLimitExceeded)
		as.Equal(int64(500000), env.balance(tt, 1, 100))
	})

	t.Run("deposit above limit is rejected", func(tt *testing.T) {
		as := assert.New(tt)
		env := newTestEnv(tt, bankX, nil)
		env.seed(tt, 1, "", acct(100, 0, 100))

		_, err := env.engine.Deposit(ctx, 1, 100, 101)
		as.ErrorIs(err, ErrLimitExceeded)
		as.Equal(int64(0), env.balance(tt, 1, 100))
	})

	t.Run("withdraw beyond balance is insufficient funds", func(tt *testing.T) {
		as := assert.New(tt)
		env := newTestEnv(tt, bankX, nil)
		env.seed(tt, 1, "", acct(100, 50, 1000))

		_, err := env.engine.Withdraw(ctx, 1, 100, 51)
		as.ErrorIs(err, ErrInsufficientFunds)
		as.Equal(int64(50), env.balance(tt, 1, 100))
	})

	t.Run("unknown account or customer", func(tt *testing.T) {
		as := assert.New(tt)
		env := newTestEnv(tt, bankX, nil)
		env.seed(tt, 1, "", acct(100, 50, 1000))

		_, err := env.engine.Deposit(ctx, 1, 999, 10)
		as.ErrorIs(err, ErrAccountNotFound)
		_, err = env.engine.Deposit(ctx, 2, 100, 10)
		as.ErrorIs(err, ErrAccountNotFound)
	})

	t.Run("retried request id applies once", func(tt *testing.T) {
		as := assert.New(tt)
		env := newTestEnv(tt, bankX, nil)
		env.seed(tt, 1, "", acct(100, 0, 1000))

		req := CashRequest{CustomerID: 1, AccountNumber: 100, Kind: CashDeposit, Amount: 70, RequestID: "req-1"}
		bal1, err := env.engine.ApplyCashOperation(ctx, req)
		as.NoError(err)
		bal2, err := env.engine.ApplyCashOperation(ctx, req)
		as.NoError(err)
		as.Equal(int64(70), bal1)
		as.Equal(int64(70), bal2)
		as.Len(env.outbox.Messages(), 1)
	})

	t.Run("request id reused with another kind or amount is refused", func(tt *testing.T) {
		as := assert.New(tt)
		env := newTestEnv(tt, bankX, nil)
		env.seed(tt, 1, "", acct(100, 1000, 5000))

		bal, err := env.engine.ApplyCashOperation(ctx, CashRequest{CustomerID: 1, AccountNumber: 100, Kind: CashDeposit, Amount: 500, RequestID: "r1"})
		as.NoError(err)
		as.Equal(int64(1500), bal)

		_, err = env.engine.ApplyCashOperation(ctx, CashRequest{CustomerID: 1, AccountNumber: 100, Kind: CashWithdraw, Amount: 300, RequestID: "r1"})
		as.ErrorIs(err, ErrRequestIDReused)
		_, err = env.engine.ApplyCashOperation(ctx, CashRequest{CustomerID: 1, AccountNumber: 100, Kind: CashDeposit, Amount: 501, RequestID: "r1"})
		as.ErrorIs(err, ErrRequestIDReused)
		as.Equal(int64(1500), env.balance(tt, 1, 100))

		bal, err = env.engine.ApplyCashOperation(ctx, CashRequest{CustomerID: 1, AccountNumber: 100, Kind: CashWithdraw, Amount: 300, RequestID: "r2"})
		as.NoError(err)
		as.Equal(int64(1200), bal)
	})

	t.Run("store failure surfaces as unavailable", func(tt *testing.T) {
		as := assert.New(tt)
		env := newTestEnv(tt, bankX, nil)
		env.seed(tt, 1, "", acct(100, 1000, 5000))
		env.accounts.SetReplaceHook(func(*model.AccountDocument) error {
			return errors.New("connection reset")
		})

		_, err := env.engine.Withdraw(ctx, 1, 100, 10)
		as.ErrorIs(err, ErrStoreUnavailable)
		as.Equal(int64(1000), env.balance(tt, 1, 100))
	})

	t.Run("transient store failure is retried", func(tt *testing.T) {
		as := assert.New(tt)
		env := newTestEnv(tt, bankX, nil)
		env.seed(tt, 1, "", acct(100, 1000, 5000))
		fails := 1
		env.accounts.SetReplaceHook(func(*model.AccountDocument) error {
			if fails > 0 {
				fails--
				return errors.New("timeout")
			}
			return nil
		})

		bal, err := env.engine.Withdraw(ctx, 1, 100, 10)
		as.NoError(err)
		as.Equal(int64(990), bal)
	})
}

func TestCashConcurrency(t *testing.T) {
	ctx := context.Background()

	t.Run("two withdrawals of 300 from 400 leave 100", func(tt *testing.T) {
		as := assert.New(tt)
		env := newTestEnv(tt, bankX, nil)
		env.seed(tt, 1, "", acct(100, 400, 1000))

		errs := make([]error, 2)
		var wg sync.WaitGroup
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = env.engine.Withdraw(ctx, 1, 100, 300)
			}(i)
		}
		wg.Wait()

		var ok, insufficient int
		for _, err := range errs {
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrInsufficientFunds):
				insufficient++
			}
		}
		as.Equal(1, ok)
		as.Equal(1, insufficient)
		as.Equal(int64(100), env.balance(tt, 1, 100))
	})

	t.Run("balance never goes negative under contention", func(tt *testing.T) {
		as := assert.New(tt)
		env := newTestEnv(tt, bankX, nil)
		env.seed(tt, 1, "", acct(100, 1000, 1000))

		var (
			wg sync.WaitGroup
			mu sync.Mutex
			ok int
		)
		for i := 0; i < 40; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := env.engine.Withdraw(ctx, 1, 100, 50); err == nil {
					mu.Lock()
					ok++
					mu.Unlock()
				} else {
					as.ErrorIs(err, ErrInsufficientFunds)
				}
			}()
		}
		wg.Wait()

		as.Equal(20, ok)
		as.Equal(int64(0), env.balance(tt, 1, 100))
	})

	t.Run("sibling accounts in one document keep both updates", func(tt *testing.T) {
		as := assert.New(tt)
		env := newTestEnv(tt, bankX, nil)
		env.seed(tt, 1, "", acct(100, 0, 1000), acct(101, 0, 1000))

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				_, err := env.engine.Deposit(ctx, 1, 100, 1)
				as.NoError(err)
			}()
			go func() {
				defer wg.Done()
				_, err := env.engine.Deposit(ctx, 1, 101, 2)
				as.NoError(err)
			}()
		}
		wg.Wait()

		as.Equal(int64(10), env.balance(tt, 1, 100))
		as.Equal(int64(20), env.balance(tt, 1, 101))
	})
}
