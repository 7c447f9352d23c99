package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bankledger/internal/model"
	"bankledger/internal/notify"
	"bankledger/internal/repository"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	maxLoanYears = 30
	maxFDYears   = 10
	seniorAge    = 60
)

var (
	hundred = decimal.NewFromInt(100)
	twelve  = decimal.NewFromInt(12)
)

// ProductService handles loan and fixed deposit applications. Approval
// records the product only; no funds move on the ledger.
type ProductService struct {
	counters  Counters
	customers CustomerStore
	requests  RequestStore
	products  ProductStore
	notifier  notify.Notifier
	loanRates map[string]decimal.Decimal
	fdRates   map[string]decimal.Decimal
	log       zerolog.Logger
	now       func() time.Time
}

// NewProductService parses the configured rates. Keys are matched without
// regard to case.
func NewProductService(counters Counters, customers CustomerStore, requests RequestStore, products ProductStore,
	notifier notify.Notifier, loanRates, fdRates map[string]string, log zerolog.Logger) (*ProductService, error) {
	lr, err := parseRates(loanRates)
	if err != nil {
		return nil, fmt.Errorf("loan rates: %w", err)
	}
	fr, err := parseRates(fdRates)
	if err != nil {
		return nil, fmt.Errorf("fd rates: %w", err)
	}
	return &ProductService{
		counters:  counters,
		customers: customers,
		requests:  requests,
		products:  products,
		notifier:  notifier,
		loanRates: lr,
		fdRates:   fr,
		log:       log.With().Str("component", "products").Logger(),
		now:       time.Now,
	}, nil
}

func parseRates(in map[string]string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(in))
	for k, v := range in {
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		if d.IsNegative() {
			return nil, fmt.Errorf("%s: negative rate", k)
		}
		out[strings.ToLower(k)] = d
	}
	return out, nil
}

type LoanQuote struct {
	LoanType           string `json:"loan_type"`
	Principal          int64  `json:"principal"`
	Years              int    `json:"years"`
	InterestRate       string `json:"interest_rate"`
	MonthlyInstallment int64  `json:"monthly_installment"`
	TotalInterest      int64  `json:"total_interest"`
	TotalPayable       int64  `json:"total_payable"`
}

type FDQuote struct {
	FDType       string `json:"fd_type"`
	Principal    int64  `json:"principal"`
	Years        int    `json:"years"`
	InterestRate string `json:"interest_rate"`
	Returns      int64  `json:"returns"`
	TotalPayable int64  `json:"total_payable"`
}

type ProductApplication struct {
	Type      string `json:"type" binding:"required"`
	Principal int64  `json:"principal" binding:"required"`
	Years     int    `json:"years" binding:"required"`
}

// QuoteLoan computes a fixed monthly installment:
// EMI = P*r / (1 - (1+r)^-n) with r the monthly rate and n the months.
func (s *ProductService) QuoteLoan(loanType string, principal int64, years int) (*LoanQuote, error) {
	rate, ok := s.loanRates[strings.ToLower(loanType)]
	if !ok {
		return nil, fmt.Errorf("%w: unknown loan type %q", ErrInvalidApplication, loanType)
	}
	if principal <= 0 {
		return nil, fmt.Errorf("%w: principal must be positive", ErrInvalidApplication)
	}
	if years < 1 || years > maxLoanYears {
		return nil, fmt.Errorf("%w: tenure must be 1 to %d years", ErrInvalidApplication, maxLoanYears)
	}

	p := decimal.NewFromInt(principal)
	n := decimal.NewFromInt(int64(years) * 12)

	var emi decimal.Decimal
	if rate.IsZero() {
		emi = p.Div(n)
	} else {
		r := rate.Div(hundred).Div(twelve)
		growth := decimal.NewFromInt(1).Add(r).Pow(n)
		emi = p.Mul(r).Mul(growth).Div(growth.Sub(decimal.NewFromInt(1)))
	}
	emi = emi.Round(0)
	total := emi.Mul(n)

	return &LoanQuote{
		LoanType:           canonicalType(loanType, model.LoanTypePersonal, model.LoanTypeHome, model.LoanTypeCar, model.LoanTypeEducation),
		Principal:          principal,
		Years:              years,
		InterestRate:       rate.String(),
		MonthlyInstallment: emi.IntPart(),
		TotalInterest:      total.Sub(p).IntPart(),
		TotalPayable:       total.IntPart(),
	}, nil
}

// QuoteFD uses simple interest over the whole term.
func (s *ProductService) QuoteFD(fdType string, principal int64, years int) (*FDQuote, error) {
	rate, ok := s.fdRates[strings.ToLower(fdType)]
	if !ok {
		return nil, fmt.Errorf("%w: unknown deposit type %q", ErrInvalidApplication, fdType)
	}
	if principal <= 0 {
		return nil, fmt.Errorf("%w: principal must be positive", ErrInvalidApplication)
	}
	if years < 1 || years > maxFDYears {
		return nil, fmt.Errorf("%w: tenure must be 1 to %d years", ErrInvalidApplication, maxFDYears)
	}

	p := decimal.NewFromInt(principal)
	returns := p.Mul(rate).Div(hundred).Mul(decimal.NewFromInt(int64(years))).Round(0)

	return &FDQuote{
		FDType:       canonicalType(fdType, model.FDTypeRegular, model.FDTypeTaxSaving, model.FDTypeSeniorCitizen),
		Principal:    principal,
		Years:        years,
		InterestRate: rate.String(),
		Returns:      returns.IntPart(),
		TotalPayable: p.Add(returns).IntPart(),
	}, nil
}

func canonicalType(in string, known ...string) string {
	for _, k := range known {
		if strings.EqualFold(in, k) {
			return k
		}
	}
	return in
}

func (s *ProductService) customer(ctx context.Context, customerID int64) (*model.Customer, error) {
	c, err := s.customers.Get(ctx, customerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}
	return c, nil
}

// ==================== loans ====================

func (s *ProductService) SubmitLoanRequest(ctx context.Context, customerID int64, app *ProductApplication) (*model.LoanRequest, error) {
	quote, err := s.QuoteLoan(app.Type, app.Principal, app.Years)
	if err != nil {
		return nil, err
	}
	if _, err := s.customer(ctx, customerID); err != nil {
		return nil, err
	}

	id, err := s.counters.Next(ctx, model.CounterLoanRequest)
	if err != nil {
		return nil, err
	}
	req := &model.LoanRequest{
		RequestID:          id,
		CustomerID:         customerID,
		LoanType:           quote.LoanType,
		Principal:          quote.Principal,
		Years:              quote.Years,
		InterestRate:       quote.InterestRate,
		MonthlyInstallment: quote.MonthlyInstallment,
		TotalInterest:      quote.TotalInterest,
		TotalPayable:       quote.TotalPayable,
	}
	if err := s.requests.CreateLoanRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("save loan request: %w", err)
	}

	s.log.Info().Int64("request_id", id).Int64("customer_id", customerID).Str("loan_type", req.LoanType).Msg("loan request submitted")
	return req, nil
}

func (s *ProductService) ListLoanRequests(ctx context.Context) ([]*model.LoanRequest, error) {
	return s.requests.ListLoanRequests(ctx)
}

func (s *ProductService) ApproveLoanRequest(ctx context.Context, requestID int64) (*model.Loan, error) {
	req, err := s.requests.GetLoanRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}

	loanID, err := s.counters.Next(ctx, model.CounterLoan)
	if err != nil {
		return nil, err
	}
	loan := &model.Loan{
		LoanID:             loanID,
		CustomerID:         req.CustomerID,
		LoanType:           req.LoanType,
		Principal:          req.Principal,
		Years:              req.Years,
		InterestRate:       req.InterestRate,
		MonthlyInstallment: req.MonthlyInstallment,
		TotalInterest:      req.TotalInterest,
		TotalPayable:       req.TotalPayable,
	}
	if err := s.products.AcceptLoan(ctx, requestID, loan); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("accept loan: %w", err)
	}

	s.log.Info().Int64("request_id", requestID).Int64("loan_id", loanID).Msg("loan approved")
	s.notifyCustomer(ctx, req.CustomerID, "Loan Approved",
		fmt.Sprintf("Your %s loan of %d has been approved.\nLoan ID: %d\nMonthly installment: %d for %d years\n",
			loan.LoanType, loan.Principal, loanID, loan.MonthlyInstallment, loan.Years))
	return loan, nil
}

func (s *ProductService) RejectLoanRequest(ctx context.Context, requestID int64) error {
	req, err := s.requests.GetLoanRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrRequestNotFound
		}
		return err
	}
	if err := s.requests.DeleteLoanRequest(ctx, requestID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrRequestNotFound
		}
		return err
	}

	s.log.Info().Int64("request_id", requestID).Msg("loan request rejected")
	s.notifyCustomer(ctx, req.CustomerID, "Loan Request Rejected",
		fmt.Sprintf("Your %s loan request for %d was not approved.\n", req.LoanType, req.Principal))
	return nil
}

func (s *ProductService) Loans(ctx context.Context, customerID int64) ([]*model.Loan, error) {
	return s.products.ListLoans(ctx, customerID)
}

// ==================== fixed deposits ====================

func (s *ProductService) SubmitFDRequest(ctx context.Context, customerID int64, app *ProductApplication) (*model.FDRequest, error) {
	quote, err := s.QuoteFD(app.Type, app.Principal, app.Years)
	if err != nil {
		return nil, err
	}
	c, err := s.customer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if quote.FDType == model.FDTypeSeniorCitizen && c.AgeAt(s.now()) < seniorAge {
		return nil, ErrNotEligible
	}

	id, err := s.counters.Next(ctx, model.CounterFDRequest)
	if err != nil {
		return nil, err
	}
	req := &model.FDRequest{
		RequestID:    id,
		CustomerID:   customerID,
		FDType:       quote.FDType,
		Principal:    quote.Principal,
		Years:        quote.Years,
		InterestRate: quote.InterestRate,
		Returns:      quote.Returns,
		TotalPayable: quote.TotalPayable,
	}
	if err := s.requests.CreateFDRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("save fd request: %w", err)
	}

	s.log.Info().Int64("request_id", id).Int64("customer_id", customerID).Str("fd_type", req.FDType).Msg("fd request submitted")
	return req, nil
}

func (s *ProductService) ListFDRequests(ctx context.Context) ([]*model.FDRequest, error) {
	return s.requests.ListFDRequests(ctx)
}

func (s *ProductService) ApproveFDRequest(ctx context.Context, requestID int64) (*model.FixedDeposit, error) {
	req, err := s.requests.GetFDRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}

	fdID, err := s.counters.Next(ctx, model.CounterFD)
	if err != nil {
		return nil, err
	}
	fd := &model.FixedDeposit{
		FDID:         fdID,
		CustomerID:   req.CustomerID,
		FDType:       req.FDType,
		Principal:    req.Principal,
		Years:        req.Years,
		InterestRate: req.InterestRate,
		Returns:      req.Returns,
		TotalPayable: req.TotalPayable,
	}
	if err := s.products.AcceptFD(ctx, requestID, fd); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("accept fd: %w", err)
	}

	s.log.Info().Int64("request_id", requestID).Int64("fd_id", fdID).Msg("fd approved")
	s.notifyCustomer(ctx, req.CustomerID, "Fixed Deposit Approved",
		fmt.Sprintf("Your %s fixed deposit of %d has been approved.\nFD ID: %d\nMaturity amount: %d after %d years\n",
			fd.FDType, fd.Principal, fdID, fd.TotalPayable, fd.Years))
	return fd, nil
}

func (s *ProductService) RejectFDRequest(ctx context.Context, requestID int64) error {
	req, err := s.requests.GetFDRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrRequestNotFound
		}
		return err
	}
	if err := s.requests.DeleteFDRequest(ctx, requestID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrRequestNotFound
		}
		return err
	}

	s.log.Info().Int64("request_id", requestID).Msg("fd request rejected")
	s.notifyCustomer(ctx, req.CustomerID, "Fixed Deposit Request Rejected",
		fmt.Sprintf("Your %s fixed deposit request for %d was not approved.\n", req.FDType, req.Principal))
	return nil
}

func (s *ProductService) FixedDeposits(ctx context.Context, customerID int64) ([]*model.FixedDeposit, error) {
	return s.products.ListFDs(ctx, customerID)
}

func (s *ProductService) notifyCustomer(ctx context.Context, customerID int64, subject, text string) {
	c, err := s.customers.Get(ctx, customerID)
	if err != nil {
		s.log.Warn().Err(err).Int64("customer_id", customerID).Msg("no contact for notification")
		return
	}
	sendBestEffort(ctx, s.notifier, s.log, notify.Message{
		To:      c.Email,
		Subject: subject,
		Text:    fmt.Sprintf("Dear %s,\n\n%s", c.Name, text),
	})
}
