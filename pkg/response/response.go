package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Every response is HTTP 200 with a business code in the body, except
// authentication failures and overload.

const (
	CodeSuccess       = 0
	CodeParamError    = 400
	CodeUnauthorized  = 401
	CodeForbidden     = 403
	CodeNotFound      = 404
	CodeTooMany       = 429
	CodeServerError   = 500
	CodeUnavailable   = 503
	CodeBusinessError = 1000
)

const (
	CodeInvalidAmount          = 1001
	CodeLimitExceeded          = 1002
	CodeInsufficientFunds      = 1003
	CodeRecipientNotFound      = 1004
	CodeAccountNotFound        = 1005
	CodeSameAccount            = 1006
	CodeSameBankRoute          = 1007
	CodeInvalidLimit           = 1008
	CodeRequestIDReused        = 1009
	CodePartialTransfer        = 1101
	CodeTransferPendingRetry   = 1102
	CodeNoIncomingFunds        = 1103
	CodeReconciliationConflict = 1104
	CodeStoreUnavailable       = 1105
	CodeCounterRace            = 1106
	CodeTransferNotFound       = 1107
	CodeRequestNotFound        = 1201
	CodeInvalidApplication     = 1202
	CodeNotEligible            = 1203
)

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
	})
}

// ErrorWithData is used for outcomes that are not failures of the request
// itself, such as a transfer left pending, where the caller needs the data.
func ErrorWithData(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
		Data:    data,
	})
}

func ParamError(c *gin.Context, message string) {
	Error(c, CodeParamError, message)
}

func ServerError(c *gin.Context, message string) {
	Error(c, CodeServerError, message)
}

func BusinessError(c *gin.Context, code int, message string) {
	Error(c, code, message)
}

func Unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
		Code:    CodeUnauthorized,
		Message: message,
	})
}

func Forbidden(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusForbidden, Response{
		Code:    CodeForbidden,
		Message: message,
	})
}

func TooManyRequests(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, Response{
		Code:    CodeTooMany,
		Message: "too many requests in flight",
	})
}
