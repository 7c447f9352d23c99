package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"

	"bankledger/internal/ledger"
	"bankledger/internal/model"
	"bankledger/internal/service"
	"bankledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const defaultListLimit = 100

type Handler struct {
	engine     *ledger.Engine
	onboarding *service.OnboardingService
	products   *service.ProductService
	statements *service.StatementService
	log        zerolog.Logger
}

func NewHandler(engine *ledger.Engine, onboarding *service.OnboardingService, products *service.ProductService,
	statements *service.StatementService, log zerolog.Logger) *Handler {
	return &Handler{
		engine:     engine,
		onboarding: onboarding,
		products:   products,
		statements: statements,
		log:        log.With().Str("component", "http").Logger(),
	}
}

// parseAmount accepts only whole numbers.
func parseAmount(n json.Number) (int64, error) {
	v, err := strconv.ParseInt(n.String(), 10, 64)
	if err != nil {
		return 0, ledger.ErrInvalidAmount
	}
	return v, nil
}

func pathInt(c *gin.Context, name string) (int64, bool) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || v <= 0 {
		response.ParamError(c, name+" must be a positive integer")
		return 0, false
	}
	return v, true
}

// ============================================================
// accounts
// ============================================================

// GET /api/v1/accounts
func (h *Handler) ListAccounts(c *gin.Context) {
	accounts, err := h.engine.Accounts(c.Request.Context(), customerID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"customer_id": customerID(c), "accounts": accounts})
}

type CashRequest struct {
	Amount    json.Number `json:"amount" binding:"required"`
	RequestID string      `json:"request_id"`
}

// POST /api/v1/accounts/:number/deposit
func (h *Handler) Deposit(c *gin.Context) {
	h.cash(c, ledger.CashDeposit)
}

// POST /api/v1/accounts/:number/withdraw
func (h *Handler) Withdraw(c *gin.Context) {
	h.cash(c, ledger.CashWithdraw)
}

func (h *Handler) cash(c *gin.Context, kind ledger.CashKind) {
	number, ok := pathInt(c, "number")
	if !ok {
		return
	}
	var req CashRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		h.fail(c, err)
		return
	}
	balance, err := h.engine.ApplyCashOperation(c.Request.Context(), ledger.CashRequest{
		CustomerID:    customerID(c),
		AccountNumber: number,
		Kind:          kind,
		Amount:        amount,
		RequestID:     req.RequestID,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"account_number": number, "balance": balance})
}

type TransferRequest struct {
	ToAccount     int64       `json:"to_account" binding:"required"`
	ToRoutingCode string      `json:"to_routing_code"`
	Amount        json.Number `json:"amount" binding:"required"`
}

// POST /api/v1/accounts/:number/transfer
//
// PARTIAL and PENDING_RETRY outcomes carry the transfer in data so the
// caller can follow it up.
func (h *Handler) Transfer(c *gin.Context) {
	number, ok := pathInt(c, "number")
	if !ok {
		return
	}
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		h.fail(c, err)
		return
	}

	result, err := h.engine.Transfer(c.Request.Context(), ledger.TransferRequest{
		CustomerID:    customerID(c),
		FromAccount:   number,
		ToAccount:     req.ToAccount,
		ToRoutingCode: req.ToRoutingCode,
		Amount:        amount,
	})
	if err != nil {
		if result != nil && (errors.Is(err, ledger.ErrPartialTransferFailure) || errors.Is(err, ledger.ErrTransferPendingRetry)) {
			response.ErrorWithData(c, errorCode(err), err.Error(), result)
			return
		}
		h.fail(c, err)
		return
	}
	response.Success(c, result)
}

// POST /api/v1/accounts/:number/reconcile
func (h *Handler) Reconcile(c *gin.Context) {
	number, ok := pathInt(c, "number")
	if !ok {
		return
	}
	result, err := h.engine.ReconcileIncoming(c.Request.Context(), customerID(c), number)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, result)
}

// GET /api/v1/accounts/:number/incoming
func (h *Handler) Incoming(c *gin.Context) {
	number, ok := pathInt(c, "number")
	if !ok {
		return
	}
	credits, err := h.engine.IncomingCredits(c.Request.Context(), customerID(c), number)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"account_number": number, "credits": credits})
}

// GET /api/v1/accounts/:number/journal?limit=50
func (h *Handler) Journal(c *gin.Context) {
	number, ok := pathInt(c, "number")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultListLimit)))
	if limit <= 0 || limit > 1000 {
		limit = defaultListLimit
	}
	entries, err := h.engine.Journal(c.Request.Context(), customerID(c), number, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"account_number": number, "entries": entries})
}

// GET /api/v1/accounts/:number/statement
func (h *Handler) Statement(c *gin.Context) {
	number, ok := pathInt(c, "number")
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := h.statements.Write(c.Request.Context(), &buf, customerID(c), number); err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=statement-"+strconv.FormatInt(number, 10)+".pdf")
	c.Data(200, "application/pdf", buf.Bytes())
}

// GET /api/v1/transfers/:no
func (h *Handler) TransferStatus(c *gin.Context) {
	t, err := h.engine.TransferStatus(c.Request.Context(), c.Param("no"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if t.SenderCustomerID != customerID(c) {
		h.fail(c, ledger.ErrTransferNotFound)
		return
	}
	response.Success(c, t)
}

// ============================================================
// onboarding
// ============================================================

// POST /api/v1/account-requests
func (h *Handler) SubmitAccountRequest(c *gin.Context) {
	var req service.AccountApplication
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}
	created, err := h.onboarding.SubmitAccountRequest(c.Request.Context(), &req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"request_id": created.RequestID})
}

// GET /api/v1/customers/me
func (h *Handler) Profile(c *gin.Context) {
	profile, err := h.onboarding.Profile(c.Request.Context(), customerID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, profile)
}

// PUT /api/v1/customers/me
func (h *Handler) UpdateProfile(c *gin.Context) {
	var req service.ProfileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}
	profile, err := h.onboarding.UpdateProfile(c.Request.Context(), customerID(c), &req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, profile)
}

// ============================================================
// loans and fixed deposits
// ============================================================

// POST /api/v1/loan-requests
func (h *Handler) SubmitLoanRequest(c *gin.Context) {
	var req service.ProductApplication
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}
	created, err := h.products.SubmitLoanRequest(c.Request.Context(), customerID(c), &req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, created)
}

// GET /api/v1/loans
func (h *Handler) ListLoans(c *gin.Context) {
	loans, err := h.products.Loans(c.Request.Context(), customerID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"loans": loans})
}

// POST /api/v1/fd-requests
func (h *Handler) SubmitFDRequest(c *gin.Context) {
	var req service.ProductApplication
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}
	created, err := h.products.SubmitFDRequest(c.Request.Context(), customerID(c), &req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, created)
}

// GET /api/v1/fixed-deposits
func (h *Handler) ListFixedDeposits(c *gin.Context) {
	fds, err := h.products.FixedDeposits(c.Request.Context(), customerID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"fixed_deposits": fds})
}

// ============================================================
// admin
// ============================================================

// GET /api/v1/admin/account-requests
func (h *Handler) ListAccountRequests(c *gin.Context) {
	reqs, err := h.onboarding.ListAccountRequests(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"requests": reqs})
}

// POST /api/v1/admin/account-requests/:id/approve
func (h *Handler) ApproveAccountRequest(c *gin.Context) {
	id, ok := pathInt(c, "id")
	if !ok {
		return
	}
	opened, err := h.onboarding.ApproveAccountRequest(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, opened)
}

// POST /api/v1/admin/account-requests/:id/reject
func (h *Handler) RejectAccountRequest(c *gin.Context) {
	id, ok := pathInt(c, "id")
	if !ok {
		return
	}
	if err := h.onboarding.RejectAccountRequest(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"request_id": id})
}

// GET /api/v1/admin/loan-requests
func (h *Handler) ListLoanRequests(c *gin.Context) {
	reqs, err := h.products.ListLoanRequests(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"requests": reqs})
}

// POST /api/v1/admin/loan-requests/:id/approve
func (h *Handler) ApproveLoanRequest(c *gin.Context) {
	id, ok := pathInt(c, "id")
	if !ok {
		return
	}
	loan, err := h.products.ApproveLoanRequest(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, loan)
}

// POST /api/v1/admin/loan-requests/:id/reject
func (h *Handler) RejectLoanRequest(c *gin.Context) {
	id, ok := pathInt(c, "id")
	if !ok {
		return
	}
	if err := h.products.RejectLoanRequest(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"request_id": id})
}

// GET /api/v1/admin/fd-requests
func (h *Handler) ListFDRequests(c *gin.Context) {
	reqs, err := h.products.ListFDRequests(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"requests": reqs})
}

// POST /api/v1/admin/fd-requests/:id/approve
func (h *Handler) ApproveFDRequest(c *gin.Context) {
	id, ok := pathInt(c, "id")
	if !ok {
		return
	}
	fd, err := h.products.ApproveFDRequest(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, fd)
}

// POST /api/v1/admin/fd-requests/:id/reject
func (h *Handler) RejectFDRequest(c *gin.Context) {
	id, ok := pathInt(c, "id")
	if !ok {
		return
	}
	if err := h.products.RejectFDRequest(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"request_id": id})
}

// LimitRequest has no binding tag on Limit since zero is a valid limit.
type LimitRequest struct {
	Limit json.Number `json:"limit"`
}

// PUT /api/v1/admin/customers/:customer/accounts/:number/limit
func (h *Handler) SetTransferLimit(c *gin.Context) {
	customer, ok := pathInt(c, "customer")
	if !ok {
		return
	}
	number, ok := pathInt(c, "number")
	if !ok {
		return
	}
	var req LimitRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Limit == "" {
		response.ParamError(c, "limit is required")
		return
	}
	limit, err := strconv.ParseInt(req.Limit.String(), 10, 64)
	if err != nil {
		h.fail(c, ledger.ErrInvalidLimit)
		return
	}
	acct, err := h.engine.SetTransferLimit(c.Request.Context(), customer, number, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, acct)
}

// GET /api/v1/admin/transfers?status=PENDING_RETRY&limit=100
func (h *Handler) ListTransfers(c *gin.Context) {
	status := c.DefaultQuery("status", model.TransferStatusPendingRetry)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultListLimit)))
	if limit <= 0 {
		limit = defaultListLimit
	}
	if _, ok := model.ValidTransferTransitions[status]; !ok {
		response.ParamError(c, "unknown status "+status)
		return
	}
	transfers, err := h.engine.ListTransfers(c.Request.Context(), status, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"status": status, "transfers": transfers})
}

// POST /api/v1/admin/transfers/:no/resume
func (h *Handler) ResumeTransfer(c *gin.Context) {
	t, err := h.engine.Resume(c.Request.Context(), c.Param("no"))
	if err != nil {
		if t != nil {
			response.ErrorWithData(c, errorCode(err), err.Error(), t)
			return
		}
		h.fail(c, err)
		return
	}
	response.Success(c, t)
}

// GET /api/v1/admin/mailbox/:routing
func (h *Handler) MailboxSnapshot(c *gin.Context) {
	snap, err := h.engine.MailboxSnapshot(c.Request.Context(), c.Param("routing"))
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make(map[string][]model.PendingCredit, len(snap))
	for acct, credits := range snap {
		out[strconv.FormatInt(acct, 10)] = credits
	}
	response.Success(c, gin.H{"routing_code": c.Param("routing"), "accounts": out})
}
