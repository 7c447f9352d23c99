package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"bankledger/internal/infrastructure/lock"
	"bankledger/internal/ledger"
	"bankledger/internal/model"
	"bankledger/internal/repository/memory"
	"bankledger/internal/service"
	"bankledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type server struct {
	router  *gin.Engine
	auth    *Authenticator
	engine  *ledger.Engine
	mailbox *memory.Mailbox
}

func newServer(t *testing.T) *server {
	t.Helper()
	log := zerolog.Nop()
	mailbox := memory.NewMailbox()
	customers := memory.NewCustomerStore()
	requests := memory.NewRequestStore()

	engine := ledger.NewEngine(ledger.Stores{
		Accounts:  memory.NewAccountStore(),
		Mailbox:   mailbox,
		Counters:  memory.NewCounterStore(),
		Transfers: memory.NewTransferStore(),
		Journal:   memory.NewJournal(),
		Outbox:    memory.NewOutbox(),
		Locker:    lock.NewLocalLocker(),
	}, nil, ledger.Options{
		RoutingCode:        "bankX",
		MaxConflictRetries: 10,
		StoreRetries:       1,
		MailboxRetries:     1,
	}, log)

	onboarding := service.NewOnboardingService(engine, customers, requests, nil, service.OnboardingOptions{
		MinOpeningBalance:    100,
		DefaultTransferLimit: 10000,
	}, log)
	products, err := service.NewProductService(engine.Sequencer(), customers, requests, requests, nil,
		map[string]string{"personal": "10"}, map[string]string{"regular": "6"}, log)
	require.NoError(t, err)

	auth, err := NewAuthenticator("test-secret", "bankledger", time.Hour)
	require.NoError(t, err)

	h := NewHandler(engine, onboarding, products, service.NewStatementService(engine, log), log)
	return &server{
		router:  SetupRouter(h, auth, RouterOptions{MaxInFlight: 16}, log),
		auth:    auth,
		engine:  engine,
		mailbox: mailbox,
	}
}

func (s *server) token(t *testing.T, subject, role string) string {
	t.Helper()
	tok, err := s.auth.IssueToken(subject, role)
	require.NoError(t, err)
	return tok
}

func (s *server) customerToken(t *testing.T, id int64) string {
	return s.token(t, strconv.FormatInt(id, 10), RoleCustomer)
}

func (s *server) open(t *testing.T, customerID, balance int64) int64 {
	t.Helper()
	acct, err := s.engine.OpenAccount(context.Background(), ledger.OpenAccountRequest{
		CustomerID:     customerID,
		Email:          "c" + strconv.FormatInt(customerID, 10) + "@example.com",
		AccountType:    model.AccountTypeSavings,
		OpeningBalance: balance,
		TransferLimit:  10000,
	})
	require.NoError(t, err)
	return acct.AccountNumber
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (s *server) do(t *testing.T, method, path, token, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if w.Header().Get("Content-Type") != "application/pdf" && w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func TestAuth(t *testing.T) {
	s := newServer(t)

	t.Run("health needs no token", func(tt *testing.T) {
		w, _ := s.do(tt, http.MethodGet, "/health", "", "")
		assert.Equal(tt, http.StatusOK, w.Code)
	})

	t.Run("missing and forged tokens are rejected", func(tt *testing.T) {
		as := assert.New(tt)
		w, env := s.do(tt, http.MethodGet, "/api/v1/accounts", "", "")
		as.Equal(http.StatusUnauthorized, w.Code)
		as.Equal(response.CodeUnauthorized, env.Code)

		other, err := NewAuthenticator("other-secret", "bankledger", time.Hour)
		reqrd := require.New(tt)
		reqrd.NoError(err)
		forged, err := other.IssueToken("1", RoleCustomer)
		reqrd.NoError(err)
		w, _ = s.do(tt, http.MethodGet, "/api/v1/accounts", forged, "")
		as.Equal(http.StatusUnauthorized, w.Code)
	})

	t.Run("expired token is rejected", func(tt *testing.T) {
		expired, err := NewAuthenticator("test-secret", "bankledger", -time.Minute)
		require.NoError(tt, err)
		tok, err := expired.IssueToken("1", RoleCustomer)
		require.NoError(tt, err)
		w, _ := s.do(tt, http.MethodGet, "/api/v1/accounts", tok, "")
		assert.Equal(tt, http.StatusUnauthorized, w.Code)
	})

	t.Run("tokens are only issued for known roles and customer ids", func(tt *testing.T) {
		as := assert.New(tt)
		_, err := s.auth.IssueToken("42", "teller")
		as.Error(err)
		_, err = s.auth.IssueToken("ops", RoleCustomer)
		as.Error(err)

		tok, err := s.auth.IssueToken("ops", RoleAdmin)
		require.NoError(tt, err)
		w, _ := s.do(tt, http.MethodGet, "/api/v1/admin/transfers", tok, "")
		as.Equal(http.StatusOK, w.Code)
	})

	t.Run("customers cannot reach admin routes", func(tt *testing.T) {
		w, env := s.do(tt, http.MethodGet, "/api/v1/admin/transfers", s.customerToken(tt, 1), "")
		assert.Equal(tt, http.StatusForbidden, w.Code)
		assert.Equal(tt, response.CodeForbidden, env.Code)
	})

	t.Run("admin subject is not a customer", func(tt *testing.T) {
		w, _ := s.do(tt, http.MethodGet, "/api/v1/accounts", s.token(tt, "ops", RoleAdmin), "")
		assert.Equal(tt, http.StatusForbidden, w.Code)
	})
}

func TestCashAndTransfers(t *testing.T) {
	t.Run("deposit and withdraw report the new balance", func(tt *testing.T) {
		as := assert.New(tt)
		s := newServer(tt)
		number := s.open(tt, 1, 1000)
		tok := s.customerToken(tt, 1)
		base := "/api/v1/accounts/" + strconv.FormatInt(number, 10)

		_, env := s.do(tt, http.MethodPost, base+"/deposit", tok, `{"amount": 500}`)
		as.Equal(response.CodeSuccess, env.Code)
		as.JSONEq(`{"account_number": `+strconv.FormatInt(number, 10)+`, "balance": 1500}`, string(env.Data))

		_, env = s.do(tt, http.MethodPost, base+"/withdraw", tok, `{"amount": 2000}`)
		as.Equal(response.CodeInsufficientFunds, env.Code)

		_, env = s.do(tt, http.MethodPost, base+"/withdraw", tok, `{"amount": 12.5}`)
		as.Equal(response.CodeInvalidAmount, env.Code)

		_, env = s.do(tt, http.MethodPost, base+"/deposit", tok, `{"amount": 20000}`)
		as.Equal(response.CodeLimitExceeded, env.Code)
	})

	t.Run("same request id is applied once", func(tt *testing.T) {
		as := assert.New(tt)
		s := newServer(tt)
		number := s.open(tt, 1, 0)
		tok := s.customerToken(tt, 1)
		path := "/api/v1/accounts/" + strconv.FormatInt(number, 10) + "/deposit"

		s.do(tt, http.MethodPost, path, tok, `{"amount": 100, "request_id": "r-1"}`)
		_, env := s.do(tt, http.MethodPost, path, tok, `{"amount": 100, "request_id": "r-1"}`)
		as.Equal(response.CodeSuccess, env.Code)

		accounts, err := s.engine.Accounts(context.Background(), 1)
		require.NoError(tt, err)
		as.Equal(int64(100), accounts[0].Balance)
	})

	t.Run("request id reused for another operation is refused", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		s := newServer(tt)
		number := s.open(tt, 1, 1000)
		tok := s.customerToken(tt, 1)
		base := "/api/v1/accounts/" + strconv.FormatInt(number, 10)

		_, env := s.do(tt, http.MethodPost, base+"/deposit", tok, `{"amount": 500, "request_id": "r1"}`)
		reqrd.Equal(response.CodeSuccess, env.Code)

		_, env = s.do(tt, http.MethodPost, base+"/withdraw", tok, `{"amount": 300, "request_id": "r1"}`)
		as.Equal(response.CodeRequestIDReused, env.Code)

		_, env = s.do(tt, http.MethodPost, base+"/deposit", tok, `{"amount": 700, "request_id": "r1"}`)
		as.Equal(response.CodeRequestIDReused, env.Code)

		accounts, err := s.engine.Accounts(context.Background(), 1)
		reqrd.NoError(err)
		as.Equal(int64(1500), accounts[0].Balance)
	})

	t.Run("another customer's account is not found", func(tt *testing.T) {
		s := newServer(tt)
		number := s.open(tt, 1, 1000)
		s.open(tt, 2, 0)
		_, env := s.do(tt, http.MethodPost, "/api/v1/accounts/"+strconv.FormatInt(number, 10)+"/withdraw",
			s.customerToken(tt, 2), `{"amount": 10}`)
		assert.Equal(tt, response.CodeAccountNotFound, env.Code)
	})

	t.Run("intra-bank transfer completes and is visible to the sender", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		s := newServer(tt)
		from := s.open(tt, 1, 1000)
		to := s.open(tt, 2, 0)
		tok := s.customerToken(tt, 1)

		_, env := s.do(tt, http.MethodPost, "/api/v1/accounts/"+strconv.FormatInt(from, 10)+"/transfer", tok,
			`{"to_account": `+strconv.FormatInt(to, 10)+`, "amount": 400}`)
		reqrd.Equal(response.CodeSuccess, env.Code, env.Message)

		var res ledger.TransferResult
		reqrd.NoError(json.Unmarshal(env.Data, &res))
		as.Equal(model.TransferStatusCompleted, res.Status)
		as.Equal(int64(600), res.SenderBalance)

		_, env = s.do(tt, http.MethodGet, "/api/v1/transfers/"+res.TransferNo, tok, "")
		as.Equal(response.CodeSuccess, env.Code)

		_, env = s.do(tt, http.MethodGet, "/api/v1/transfers/"+res.TransferNo, s.customerToken(tt, 2), "")
		as.Equal(response.CodeTransferNotFound, env.Code)
	})

	t.Run("unreachable shared ledger leaves the transfer pending with data", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		s := newServer(tt)
		from := s.open(tt, 1, 1000)
		s.mailbox.SetAppendHook(func(model.PendingCredit) error { return errors.New("down") })

		_, env := s.do(tt, http.MethodPost, "/api/v1/accounts/"+strconv.FormatInt(from, 10)+"/transfer",
			s.customerToken(tt, 1), `{"to_account": 77, "to_routing_code": "bankY", "amount": 300}`)
		as.Equal(response.CodeTransferPendingRetry, env.Code)

		var res ledger.TransferResult
		reqrd.NoError(json.Unmarshal(env.Data, &res))
		as.Equal(model.TransferStatusPendingRetry, res.Status)

		admin := s.token(tt, "ops", RoleAdmin)
		_, env = s.do(tt, http.MethodGet, "/api/v1/admin/transfers?status=PENDING_RETRY", admin, "")
		as.Equal(response.CodeSuccess, env.Code)
		as.Contains(string(env.Data), res.TransferNo)

		s.mailbox.SetAppendHook(nil)
		_, env = s.do(tt, http.MethodPost, "/api/v1/admin/transfers/"+res.TransferNo+"/resume", admin, "")
		as.Equal(response.CodeSuccess, env.Code)
		as.Contains(string(env.Data), model.TransferStatusCompleted)

		_, env = s.do(tt, http.MethodGet, "/api/v1/admin/mailbox/bankY", admin, "")
		as.Equal(response.CodeSuccess, env.Code)
		as.Contains(string(env.Data), `"77"`)
	})

	t.Run("reconcile with nothing pending reports no incoming funds", func(tt *testing.T) {
		s := newServer(tt)
		number := s.open(tt, 1, 0)
		_, env := s.do(tt, http.MethodPost, "/api/v1/accounts/"+strconv.FormatInt(number, 10)+"/reconcile",
			s.customerToken(tt, 1), "")
		assert.Equal(tt, response.CodeNoIncomingFunds, env.Code)
	})

	t.Run("statement is served as pdf", func(tt *testing.T) {
		as := assert.New(tt)
		s := newServer(tt)
		number := s.open(tt, 1, 300)
		w, _ := s.do(tt, http.MethodGet, "/api/v1/accounts/"+strconv.FormatInt(number, 10)+"/statement",
			s.customerToken(tt, 1), "")
		as.Equal(http.StatusOK, w.Code)
		as.Equal("application/pdf", w.Header().Get("Content-Type"))
		as.True(bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")))
	})
}

func TestOnboardingFlow(t *testing.T) {
	as := assert.New(t)
	reqrd := require.New(t)
	s := newServer(t)
	admin := s.token(t, "ops", RoleAdmin)

	_, env := s.do(t, http.MethodPost, "/api/v1/account-requests", "", `{
		"name": "Ravi", "email": "ravi@example.com", "date_of_birth": "1985-02-03",
		"pan": "ABCDE1234F", "aadhar": "123456789012", "account_type": "Current", "opening_balance": 500}`)
	reqrd.Equal(response.CodeSuccess, env.Code, env.Message)

	_, env = s.do(t, http.MethodPost, "/api/v1/account-requests", "", `{
		"name": "Ravi", "email": "ravi@example.com", "date_of_birth": "1985-02-03",
		"pan": "BAD", "aadhar": "123456789012", "account_type": "Current", "opening_balance": 500}`)
	as.Equal(response.CodeInvalidApplication, env.Code)

	_, env = s.do(t, http.MethodPost, "/api/v1/admin/account-requests/1/approve", admin, "")
	reqrd.Equal(response.CodeSuccess, env.Code, env.Message)
	var opened service.AccountOpened
	reqrd.NoError(json.Unmarshal(env.Data, &opened))
	as.Equal(int64(1), opened.CustomerID)

	_, env = s.do(t, http.MethodGet, "/api/v1/accounts", s.customerToken(t, opened.CustomerID), "")
	as.Equal(response.CodeSuccess, env.Code)
	as.Contains(string(env.Data), `"balance":500`)

	_, env = s.do(t, http.MethodPut, "/api/v1/admin/customers/1/accounts/"+strconv.FormatInt(opened.Account.AccountNumber, 10)+"/limit",
		admin, `{"limit": 250}`)
	as.Equal(response.CodeSuccess, env.Code)
	as.Contains(string(env.Data), `"transfer_limit":250`)

	_, env = s.do(t, http.MethodPost, "/api/v1/admin/account-requests/1/approve", admin, "")
	as.Equal(response.CodeRequestNotFound, env.Code)

	_, env = s.do(t, http.MethodPost, "/api/v1/loan-requests", s.customerToken(t, 1), `{"type": "Personal", "principal": 100000, "years": 1}`)
	as.Equal(response.CodeSuccess, env.Code)
	as.Contains(string(env.Data), `"monthly_installment":8792`)

	me := s.customerToken(t, opened.CustomerID)
	_, env = s.do(t, http.MethodPut, "/api/v1/customers/me", me, `{"name": "Ravi K", "email": "not-an-email"}`)
	as.Equal(response.CodeParamError, env.Code)
	_, env = s.do(t, http.MethodPut, "/api/v1/customers/me", me, `{"name": "Ravi K", "email": "ravi.k@example.com", "phone": "9222222222"}`)
	reqrd.Equal(response.CodeSuccess, env.Code, env.Message)
	_, env = s.do(t, http.MethodGet, "/api/v1/customers/me", me, "")
	as.Contains(string(env.Data), `"email":"ravi.k@example.com"`)
	as.Contains(string(env.Data), `"name":"Ravi K"`)
}

func TestInFlightMiddleware(t *testing.T) {
	as := assert.New(t)
	gin.SetMode(gin.TestMode)

	entered := make(chan struct{})
	release := make(chan struct{})
	r := gin.New()
	r.Use(InFlightMiddleware(1))
	r.GET("/slow", func(c *gin.Context) {
		close(entered)
		<-release
		c.Status(http.StatusOK)
	})

	done := make(chan int)
	go func() {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/slow", nil))
		done <- w.Code
	}()
	<-entered

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/slow", nil))
	as.Equal(http.StatusTooManyRequests, w.Code)

	close(release)
	as.Equal(http.StatusOK, <-done)
}
