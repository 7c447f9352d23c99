package service

import (
	"context"
	"errors"

	"bankledger/internal/model"
	"bankledger/internal/notify"

	"github.com/rs/zerolog"
)

var (
	ErrInvalidApplication = errors.New("invalid application")
	ErrRequestNotFound    = errors.New("request not found")
	ErrCustomerNotFound   = errors.New("customer not found")
	ErrNotEligible        = errors.New("customer not eligible for this product")
)

type CustomerStore interface {
	Create(ctx context.Context, c *model.Customer) error
	Get(ctx context.Context, customerID int64) (*model.Customer, error)
	UpdateProfile(ctx context.Context, c *model.Customer) error
}

type RequestStore interface {
	CreateAccountRequest(ctx context.Context, req *model.AccountRequest) error
	GetAccountRequest(ctx context.Context, requestID int64) (*model.AccountRequest, error)
	ListAccountRequests(ctx context.Context) ([]*model.AccountRequest, error)
	DeleteAccountRequest(ctx context.Context, requestID int64) error

	CreateLoanRequest(ctx context.Context, req *model.LoanRequest) error
	GetLoanRequest(ctx context.Context, requestID int64) (*model.LoanRequest, error)
	ListLoanRequests(ctx context.Context) ([]*model.LoanRequest, error)
	DeleteLoanRequest(ctx context.Context, requestID int64) error

	CreateFDRequest(ctx context.Context, req *model.FDRequest) error
	GetFDRequest(ctx context.Context, requestID int64) (*model.FDRequest, error)
	ListFDRequests(ctx context.Context) ([]*model.FDRequest, error)
	DeleteFDRequest(ctx context.Context, requestID int64) error
}

type ProductStore interface {
	AcceptLoan(ctx context.Context, requestID int64, loan *model.Loan) error
	ListLoans(ctx context.Context, customerID int64) ([]*model.Loan, error)
	AcceptFD(ctx context.Context, requestID int64, fd *model.FixedDeposit) error
	ListFDs(ctx context.Context, customerID int64) ([]*model.FixedDeposit, error)
}

// Counters hands out ids; *ledger.Sequencer satisfies it.
type Counters interface {
	Next(ctx context.Context, name string) (int64, error)
}

func sendBestEffort(ctx context.Context, n notify.Notifier, log zerolog.Logger, msg notify.Message) {
	if n == nil || msg.To == "" {
		return
	}
	if err := n.Notify(ctx, msg); err != nil {
		log.Warn().Err(err).Str("to", msg.To).Str("subject", msg.Subject).Msg("notification failed")
	}
}
