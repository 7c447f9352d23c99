package service

import (
	"testing"

	"bankledger/internal/infrastructure/lock"
	"bankledger/internal/ledger"
	"bankledger/internal/notify"
	"bankledger/internal/repository/memory"

	"github.com/rs/zerolog"
)

type fixture struct {
	engine    *ledger.Engine
	customers *memory.CustomerStore
	requests  *memory.RequestStore
	journal   *memory.Journal
}

func newFixture(t *testing.T, notifier notify.Notifier) *fixture {
	t.Helper()
	f := &fixture{
		customers: memory.NewCustomerStore(),
		requests:  memory.NewRequestStore(),
		journal:   memory.NewJournal(),
	}
	f.engine = ledger.NewEngine(ledger.Stores{
		Accounts:  memory.NewAccountStore(),
		Mailbox:   memory.NewMailbox(),
		Counters:  memory.NewCounterStore(),
		Transfers: memory.NewTransferStore(),
		Journal:   f.journal,
		Outbox:    memory.NewOutbox(),
		Locker:    lock.NewLocalLocker(),
	}, notifier, ledger.Options{
		RoutingCode:        "bankX",
		MaxConflictRetries: 10,
		StoreRetries:       1,
		MailboxRetries:     1,
	}, zerolog.Nop())
	return f
}

func (f *fixture) onboarding(notifier notify.Notifier) *OnboardingService {
	return NewOnboardingService(f.engine, f.customers, f.requests, notifier, OnboardingOptions{
		MinOpeningBalance:    1000,
		DefaultTransferLimit: 5000,
	}, zerolog.Nop())
}

func validApplication() *AccountApplication {
	return &AccountApplication{
		Name:           "Asha Rao",
		Email:          "asha@example.com",
		Phone:          "9000000000",
		DateOfBirth:    "1990-04-12",
		PAN:            "ABCDE1234F",
		Aadhar:         "123412341234",
		AccountType:    "Savings",
		OpeningBalance: 2500,
	}
}
