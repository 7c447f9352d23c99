package ledger

import (
	"context"
	"testing"

	"bankledger/internal/infrastructure/lock"
	"bankledger/internal/model"
	"bankledger/internal/notify"
	"bankledger/internal/repository/memory"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	bankX = "bankX"
	bankY = "bankY"
)

type testEnv struct {
	engine    *Engine
	accounts  *memory.AccountStore
	mailbox   *memory.Mailbox
	counters  *memory.CounterStore
	transfers *memory.TransferStore
	journal   *memory.Journal
	outbox    *memory.Outbox
}

func testOptions(routing string) Options {
	return Options{
		RoutingCode:        routing,
		MaxConflictRetries: 50,
		StoreRetries:       2,
		MailboxRetries:     2,
		EventTopic:         "ledger_events",
	}
}

func newTestEnv(t *testing.T, routing string, notifier notify.Notifier) *testEnv {
	return newTestEnvWithMailbox(t, routing, notifier, memory.NewMailbox())
}

func newTestEnvWithMailbox(t *testing.T, routing string, notifier notify.Notifier, mailbox *memory.Mailbox) *testEnv {
	t.Helper()
	env := &testEnv{
		accounts:  memory.NewAccountStore(),
		mailbox:   mailbox,
		counters:  memory.NewCounterStore(),
		transfers: memory.NewTransferStore(),
		journal:   memory.NewJournal(),
		outbox:    memory.NewOutbox(),
	}
	env.engine = NewEngine(Stores{
		Accounts:  env.accounts,
		Mailbox:   env.mailbox,
		Counters:  env.counters,
		Transfers: env.transfers,
		Journal:   env.journal,
		Outbox:    env.outbox,
		Locker:    lock.NewLocalLocker(),
	}, notifier, testOptions(routing), zerolog.Nop())
	return env
}

func (env *testEnv) seed(t *testing.T, customerID int64, email string, accounts ...model.Account) {
	t.Helper()
	for i := range accounts {
		if accounts[i].RoutingCode == "" {
			accounts[i].RoutingCode = env.engine.RoutingCode()
		}
		if accounts[i].AccountType == "" {
			accounts[i].AccountType = model.AccountTypeSavings
		}
	}
	err := env.accounts.CreateDocument(context.Background(), &model.AccountDocument{
		CustomerID: customerID,
		Email:      email,
		Accounts:   accounts,
	})
	require.NoError(t, err)
}

func (env *testEnv) balance(t *testing.T, customerID, accountNumber int64) int64 {
	t.Helper()
	doc, err := env.accounts.GetDocument(context.Background(), customerID)
	require.NoError(t, err)
	acct := doc.Find(accountNumber)
	require.NotNil(t, acct)
	return acct.Balance
}

func acct(number, balance, limit int64) model.Account {
	return model.Account{AccountNumber: number, Balance: balance, TransferLimit: limit}
}
