package ledger

import (
	"context"
	"errors"
	"testing"

	"bankledger/internal/model"
	"bankledger/internal/notify"
	"bankledger/internal/notify/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestTransferWithinStore(t *testing.T) {
	ctx := context.Background()

	t.Run("moves money and conserves the total", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		env := newTestEnv(tt, bankX, nil)
		env.seed(tt, 1, "a@example.com", acct(100, 1000, 5000))
		env.seed(tt, 2, "b@example.com", acct(200, 300, 5000))

		res, err := env.engine.Transfer(ctx, TransferRequest{CustomerID: 1, FromAccount: 100, ToAccount: 200, Amount: 400})
		reqrd.NoError(err)
		as.Equal(model.TransferStatusCompleted, res.Status)
		as.Equal(int64(600), res.SenderBalance)

		a, b := env.balance(tt, 1, 100), env.balance(tt, 2, 200)
		as.Equal(int64(600), a)
		as.Equal(int64(700), b)
		as.Equal(int64(1300), a+b)

		tr, err := env.engine.TransferStatus(ctx, res.TransferNo)
		reqrd.NoError(err)
		as.Equal(model.TransferStatusCompleted, tr.Status)
		as.Equal(model.TransferKindInternal, tr.Kind)
		as.Equal(int64(2), tr.ReceiverCustomerID)

		out, err := env.journal.ListByAccount(ctx, 100, 10)
		reqrd.NoError(err)
		reqrd.Len(out, 1)
		as.Equal(int64(-400), out[0].Amount)
		in, err := env.journal.ListByAccount(ctx, 200, 10)
		reqrd.NoError(err)
		reqrd.Len(in, 1)
		as.Equal(int64(400), in[0].Amount)
	})

	t.Run("accounts of the same customer change in one write", func(tt *testing.T) {
		as := assert.New(tt)
		env := newTestEnv(tt, bankX, nil)
		env.seed(tt, 1, "", acct(100, 1000, 5000), acct(101, 0, 5000))

		before, _ := env.accounts.GetDocument(ctx, 1)
		res, err := env.engine.Transfer(ctx, TransferRequest{CustomerID: 1, FromAccount: 100, ToAccount: 101, Amount: 10})
		as.NoError(err)
		as.Equal(model.TransferStatusCompleted, res.Status)

		after, _ := env.accounts.GetDocument(ctx, 1)
		as.Equal(before.Version+1, after.Version)
		as.Equal(int64(990), after.Find(100).Balance)
		as.Equal(int64(10), after.Find(101).Balance)
	})

	t.Run("unknown recipient is rejected before any write", func(tt *testing.T) {
		as := assert.New(tt)
		env := newTestEnv(tt, bankX, nil)
		env.seed(tt, 1, "", acct(100, 1000, 5000))

		res, err := env.engine.Transfer(ctx, TransferRequest{CustomerID: 1, FromAccount: 100, ToAccount: 999, Amount: 10})
		as.ErrorIs(err, ErrRecipientNotFound)
		as.Nil(res)
		as.Equal(int64(1000), env.balance(tt, 1, 100))
		open, _ := env.transfers.ListByStatus(ctx, openStatuses, env.engine.now().Add(1e9), 10)
		as.Empty(open)
	})

	t.Run("validation errors", func(tt *testing.T) {
		as := assert.New(tt)
		env := newTestEnv(tt, bankX, nil)
		env.seed(tt, 1, "", acct(100, 1000, 500))
		env.seed(tt, 2, "", acct(200, 0, 500))

		cases := []struct {
			req  TransferRequest
			want error
		}{
			{TransferRequest{CustomerID: 1, FromAccount: 100, ToAccount: 200, Amount: 0}, ErrInvalidAmount},
			{TransferRequest{CustomerID: 1, FromAccount: 100, ToAccount: 100, Amount: 10}, ErrSameAccount},
			{TransferRequest{CustomerID: 1, FromAccount: 100, ToAccount: 200, Amount: 501}, ErrLimitExceeded},
			{TransferRequest{CustomerID: 2, FromAccount: 200, ToAccount: 100, Amount: 1}, ErrInsufficientFunds},
			{TransferRequest{CustomerID: 2, FromAccount: 100, ToAccount: 200, Amount: 1}, ErrAccountNotFound},
		}
		for _, c := range cases {
			_, err := env.engine.Transfer(ctx, c.req)
			as.ErrorIs(err, c.want)
		}
		as.Equal(int64(1000), env.balance(tt, 1, 100))
		as.Equal(int64(0), env.balance(tt, 2, 200))
	})

	t.Run("credit failure is reported as partial and recovered", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		ctrl := gomock.NewController(tt)
		notifier := mocks.NewMockNotifier(ctrl)
		notifier.EXPECT().
			Notify(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, msg notify.Message) error {
				as.Equal("a@example.com", msg.To)
				return errors.New("relay down")
			}).
			Times(1)

		env := newTestEnv(tt, bankX, notifier)
		env.seed(tt, 1, "a@example.com", acct(100, 1000, 5000))
		env.seed(tt, 2, "b@example.com", acct(200, 0, 5000))
		env.accounts.SetReplaceHook(func(doc *model.AccountDocument) error {
			if doc.CustomerID == 2 {
				return errors.New("receiver shard offline")
			}
			return nil
		})

		res, err := env.engine.Transfer(ctx, TransferRequest{CustomerID: 1, FromAccount: 100, ToAccount: 200, Amount: 250})
		as.ErrorIs(err, ErrPartialTransferFailure)
		reqrd.NotNil(res)
		as.Equal(model.TransferStatusPartial, res.Status)
		as.Equal(int64(750), env.balance(tt, 1, 100))
		as.Equal(int64(0), env.balance(tt, 2, 200))

		tr, err := env.engine.TransferStatus(ctx, res.TransferNo)
		reqrd.NoError(err)
		as.Equal(model.TransferStatusPartial, tr.Status)
		as.NotEmpty(tr.LastError)

		env.accounts.SetReplaceHook(nil)
		tr, err = env.engine.Resume(ctx, res.TransferNo)
		reqrd.NoError(err)
		as.Equal(model.TransferStatusCompleted, tr.Status)
		as.Equal(int64(250), env.balance(tt, 2, 200))

		tr, err = env.engine.Resume(ctx, res.TransferNo)
		reqrd.NoError(err)
		as.Equal(model.TransferStatusCompleted, tr.Status)
		as.Equal(int64(250), env.balance(tt, 2, 200))
		as.Equal(int64(1000), env.balance(tt, 1, 100)+env.balance(tt, 2, 200))
	})
}
