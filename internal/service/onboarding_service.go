package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"bankledger/internal/ledger"
	"bankledger/internal/model"
	"bankledger/internal/notify"
	"bankledger/internal/repository"

	"github.com/rs/zerolog"
)

var (
	panPattern    = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)
	aadharPattern = regexp.MustCompile(`^[0-9]{12}$`)
)

const dateLayout = "2006-01-02"

type OnboardingService struct {
	engine               *ledger.Engine
	counters             Counters
	customers            CustomerStore
	requests             RequestStore
	notifier             notify.Notifier
	minOpeningBalance    int64
	defaultTransferLimit int64
	log                  zerolog.Logger
}

type OnboardingOptions struct {
	MinOpeningBalance    int64
	DefaultTransferLimit int64
}

func NewOnboardingService(engine *ledger.Engine, customers CustomerStore, requests RequestStore, notifier notify.Notifier, opts OnboardingOptions, log zerolog.Logger) *OnboardingService {
	return &OnboardingService{
		engine:               engine,
		counters:             engine.Sequencer(),
		customers:            customers,
		requests:             requests,
		notifier:             notifier,
		minOpeningBalance:    opts.MinOpeningBalance,
		defaultTransferLimit: opts.DefaultTransferLimit,
		log:                  log.With().Str("component", "onboarding").Logger(),
	}
}

type AccountApplication struct {
	Name           string `json:"name" binding:"required"`
	Email          string `json:"email" binding:"required,email"`
	Phone          string `json:"phone"`
	DateOfBirth    string `json:"date_of_birth" binding:"required"`
	PAN            string `json:"pan" binding:"required"`
	Aadhar         string `json:"aadhar" binding:"required"`
	AccountType    string `json:"account_type" binding:"required"`
	OpeningBalance int64  `json:"opening_balance"`
}

type AccountOpened struct {
	CustomerID int64          `json:"customer_id"`
	Account    *model.Account `json:"account"`
}

func (s *OnboardingService) validate(app *AccountApplication) (time.Time, error) {
	if strings.TrimSpace(app.Name) == "" || strings.TrimSpace(app.Email) == "" {
		return time.Time{}, fmt.Errorf("%w: name and email are required", ErrInvalidApplication)
	}
	if !panPattern.MatchString(app.PAN) {
		return time.Time{}, fmt.Errorf("%w: malformed PAN", ErrInvalidApplication)
	}
	if !aadharPattern.MatchString(app.Aadhar) {
		return time.Time{}, fmt.Errorf("%w: aadhar must be 12 digits", ErrInvalidApplication)
	}
	if app.AccountType != model.AccountTypeSavings && app.AccountType != model.AccountTypeCurrent {
		return time.Time{}, fmt.Errorf("%w: account type must be Savings or Current", ErrInvalidApplication)
	}
	if app.OpeningBalance < s.minOpeningBalance {
		return time.Time{}, fmt.Errorf("%w: opening balance must be at least %d", ErrInvalidApplication, s.minOpeningBalance)
	}
	dob, err := time.Parse(dateLayout, app.DateOfBirth)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date of birth must be YYYY-MM-DD", ErrInvalidApplication)
	}
	return dob, nil
}

func (s *OnboardingService) SubmitAccountRequest(ctx context.Context, app *AccountApplication) (*model.AccountRequest, error) {
	dob, err := s.validate(app)
	if err != nil {
		return nil, err
	}

	id, err := s.counters.Next(ctx, model.CounterAccountRequest)
	if err != nil {
		return nil, err
	}

	req := &model.AccountRequest{
		RequestID:      id,
		Name:           strings.TrimSpace(app.Name),
		Email:          strings.TrimSpace(app.Email),
		Phone:          app.Phone,
		DateOfBirth:    dob,
		PAN:            app.PAN,
		Aadhar:         app.Aadhar,
		AccountType:    app.AccountType,
		OpeningBalance: app.OpeningBalance,
	}
	if err := s.requests.CreateAccountRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("save account request: %w", err)
	}

	s.log.Info().Int64("request_id", id).Str("account_type", app.AccountType).Msg("account request submitted")
	return req, nil
}

func (s *OnboardingService) ListAccountRequests(ctx context.Context) ([]*model.AccountRequest, error) {
	return s.requests.ListAccountRequests(ctx)
}

// ApproveAccountRequest claims the request by deleting it, then creates the
// customer and the first account. Of two concurrent approvals only the one
// whose delete succeeds goes on; the other gets ErrRequestNotFound.
func (s *OnboardingService) ApproveAccountRequest(ctx context.Context, requestID int64) (*AccountOpened, error) {
	req, err := s.requests.GetAccountRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	if err := s.requests.DeleteAccountRequest(ctx, requestID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}

	opened, err := s.openFor(ctx, req)
	if err != nil {
		s.restore(ctx, req, err)
		return nil, err
	}

	s.log.Info().Int64("request_id", requestID).Int64("customer_id", opened.CustomerID).Int64("account", opened.Account.AccountNumber).Msg("account request approved")

	sendBestEffort(ctx, s.notifier, s.log, notify.Message{
		To:      req.Email,
		Subject: "Account Creation Successful",
		Text: fmt.Sprintf("Dear %s,\n\nYour %s account has been created.\nCustomer ID: %d\nAccount number: %d\nRouting code: %s\n",
			req.Name, req.AccountType, opened.CustomerID, opened.Account.AccountNumber, opened.Account.RoutingCode),
	})

	return opened, nil
}

// restore puts a claimed request back after a failed approval so the admin
// can retry it.
func (s *OnboardingService) restore(ctx context.Context, req *model.AccountRequest, cause error) {
	if err := s.requests.CreateAccountRequest(ctx, req); err != nil {
		s.log.Error().Err(err).AnErr("cause", cause).Int64("request_id", req.RequestID).Msg("claimed account request could not be restored")
		return
	}
	s.log.Warn().Err(cause).Int64("request_id", req.RequestID).Msg("account approval failed, request restored")
}

func (s *OnboardingService) openFor(ctx context.Context, req *model.AccountRequest) (*AccountOpened, error) {
	customerID, err := s.counters.Next(ctx, model.CounterCustomer)
	if err != nil {
		return nil, err
	}

	customer := &model.Customer{
		CustomerID:  customerID,
		Name:        req.Name,
		Email:       req.Email,
		Phone:       req.Phone,
		DateOfBirth: req.DateOfBirth,
		PAN:         req.PAN,
		Aadhar:      req.Aadhar,
	}
	if err := s.customers.Create(ctx, customer); err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}

	acct, err := s.engine.OpenAccount(ctx, ledger.OpenAccountRequest{
		CustomerID:     customerID,
		Email:          req.Email,
		AccountType:    req.AccountType,
		OpeningBalance: req.OpeningBalance,
		TransferLimit:  s.defaultTransferLimit,
	})
	if err != nil {
		return nil, err
	}
	return &AccountOpened{CustomerID: customerID, Account: acct}, nil
}

func (s *OnboardingService) RejectAccountRequest(ctx context.Context, requestID int64) error {
	req, err := s.requests.GetAccountRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrRequestNotFound
		}
		return err
	}
	if err := s.requests.DeleteAccountRequest(ctx, requestID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrRequestNotFound
		}
		return err
	}

	s.log.Info().Int64("request_id", requestID).Msg("account request rejected")

	sendBestEffort(ctx, s.notifier, s.log, notify.Message{
		To:      req.Email,
		Subject: "Account Creation Request Rejected",
		Text:    fmt.Sprintf("Dear %s,\n\nWe are unable to open your account at this time.\n", req.Name),
	})
	return nil
}

type ProfileUpdate struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required,email"`
	Phone string `json:"phone"`
}

func (s *OnboardingService) Profile(ctx context.Context, customerID int64) (*model.Customer, error) {
	c, err := s.customers.Get(ctx, customerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}
	return c, nil
}

// UpdateProfile edits name, email and phone. A new email also becomes the
// address account notifications are sent to.
func (s *OnboardingService) UpdateProfile(ctx context.Context, customerID int64, upd *ProfileUpdate) (*model.Customer, error) {
	name, email := strings.TrimSpace(upd.Name), strings.TrimSpace(upd.Email)
	if name == "" || email == "" {
		return nil, fmt.Errorf("%w: name and email are required", ErrInvalidApplication)
	}

	c, err := s.Profile(ctx, customerID)
	if err != nil {
		return nil, err
	}
	emailChanged := c.Email != email
	c.Name, c.Email, c.Phone = name, email, upd.Phone
	if err := s.customers.UpdateProfile(ctx, c); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, fmt.Errorf("update customer: %w", err)
	}

	if emailChanged {
		if err := s.engine.SetCustomerEmail(ctx, customerID, email); err != nil && !errors.Is(err, ledger.ErrAccountNotFound) {
			return nil, fmt.Errorf("update notification address: %w", err)
		}
	}

	s.log.Info().Int64("customer_id", customerID).Bool("email_changed", emailChanged).Msg("profile updated")
	return c, nil
}
