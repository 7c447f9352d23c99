package handler

import (
	"errors"

	"bankledger/internal/ledger"
	"bankledger/internal/service"
	"bankledger/pkg/response"

	"github.com/gin-gonic/gin"
)

var errorCodes = []struct {
	err  error
	code int
}{
	{ledger.ErrInvalidAmount, response.CodeInvalidAmount},
	{ledger.ErrLimitExceeded, response.CodeLimitExceeded},
	{ledger.ErrInsufficientFunds, response.CodeInsufficientFunds},
	{ledger.ErrRecipientNotFound, response.CodeRecipientNotFound},
	{ledger.ErrAccountNotFound, response.CodeAccountNotFound},
	{ledger.ErrSameAccount, response.CodeSameAccount},
	{ledger.ErrSameBankRoute, response.CodeSameBankRoute},
	{ledger.ErrInvalidLimit, response.CodeInvalidLimit},
	{ledger.ErrRequestIDReused, response.CodeRequestIDReused},
	{ledger.ErrPartialTransferFailure, response.CodePartialTransfer},
	{ledger.ErrTransferPendingRetry, response.CodeTransferPendingRetry},
	{ledger.ErrNoIncomingFunds, response.CodeNoIncomingFunds},
	{ledger.ErrReconciliationConflict, response.CodeReconciliationConflict},
	{ledger.ErrStoreUnavailable, response.CodeStoreUnavailable},
	{ledger.ErrCounterRace, response.CodeCounterRace},
	{ledger.ErrTransferNotFound, response.CodeTransferNotFound},
	{service.ErrRequestNotFound, response.CodeRequestNotFound},
	{service.ErrInvalidApplication, response.CodeInvalidApplication},
	{service.ErrNotEligible, response.CodeNotEligible},
	{service.ErrCustomerNotFound, response.CodeAccountNotFound},
}

func errorCode(err error) int {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return response.CodeServerError
}

func (h *Handler) fail(c *gin.Context, err error) {
	code := errorCode(err)
	if code == response.CodeServerError || code == response.CodeStoreUnavailable {
		h.log.Error().Err(err).Str("path", c.FullPath()).Str("request_id", c.GetString("request_id")).Msg("request failed")
	}
	if code == response.CodeServerError {
		response.ServerError(c, "internal server error")
		return
	}
	response.BusinessError(c, code, err.Error())
}
