package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type RouterOptions struct {
	MaxInFlight int64
}

func SetupRouter(h *Handler, auth *Authenticator, opts RouterOptions, log zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(RecoveryMiddleware(log))
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware())
	r.Use(InFlightMiddleware(opts.MaxInFlight))

	api := r.Group("/api/v1")
	{
		api.POST("/account-requests", h.SubmitAccountRequest)

		customer := api.Group("", auth.Authenticate(), RequireRole(RoleCustomer))
		{
			customer.GET("/customers/me", h.Profile)
			customer.PUT("/customers/me", h.UpdateProfile)
			customer.GET("/accounts", h.ListAccounts)
			account := customer.Group("/accounts/:number")
			{
				account.POST("/deposit", h.Deposit)
				account.POST("/withdraw", h.Withdraw)
				account.POST("/transfer", h.Transfer)
				account.POST("/reconcile", h.Reconcile)
				account.GET("/incoming", h.Incoming)
				account.GET("/journal", h.Journal)
				account.GET("/statement", h.Statement)
			}
			customer.GET("/transfers/:no", h.TransferStatus)

			customer.POST("/loan-requests", h.SubmitLoanRequest)
			customer.GET("/loans", h.ListLoans)
			customer.POST("/fd-requests", h.SubmitFDRequest)
			customer.GET("/fixed-deposits", h.ListFixedDeposits)
		}

		admin := api.Group("/admin", auth.Authenticate(), RequireRole(RoleAdmin))
		{
			admin.GET("/account-requests", h.ListAccountRequests)
			admin.POST("/account-requests/:id/approve", h.ApproveAccountRequest)
			admin.POST("/account-requests/:id/reject", h.RejectAccountRequest)

			admin.GET("/loan-requests", h.ListLoanRequests)
			admin.POST("/loan-requests/:id/approve", h.ApproveLoanRequest)
			admin.POST("/loan-requests/:id/reject", h.RejectLoanRequest)

			admin.GET("/fd-requests", h.ListFDRequests)
			admin.POST("/fd-requests/:id/approve", h.ApproveFDRequest)
			admin.POST("/fd-requests/:id/reject", h.RejectFDRequest)

			admin.PUT("/customers/:customer/accounts/:number/limit", h.SetTransferLimit)
			admin.GET("/transfers", h.ListTransfers)
			admin.POST("/transfers/:no/resume", h.ResumeTransfer)
			admin.GET("/mailbox/:routing", h.MailboxSnapshot)
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}
