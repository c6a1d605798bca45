package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shared-event-wallet/internal/api/handler"
	"github.com/shared-event-wallet/internal/api/middleware"
)

// Handlers groups the HTTP handlers the router mounts
type Handlers struct {
	Events     *handler.EventHandler
	Wallets    *handler.WalletHandler
	Expenses   *handler.ExpenseHandler
	Settlement *handler.SettlementHandler
	Webhooks   *handler.WebhookHandler
}

// setupRouter configures API routes and middleware for the application
func setupRouter(logger *slog.Logger, r *gin.Engine, h Handlers) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CorrelationID())
	r.Use(middleware.Logger(logger))

	v1 := r.Group("/api/v1")
	v1.Use(middleware.CallerIdentity())
	{
		events := v1.Group("/events")
		{
			events.POST("", h.Events.Create)
			events.GET("", h.Events.ListMine)
			events.GET("/:id", h.Events.Get)
			events.POST("/:id/join", h.Events.Join)
			events.GET("/:id/authorization", h.Events.Authorization)

			categories := events.Group("/:id/categories")
			{
				categories.POST("", h.Events.CreateCategory)
				categories.GET("", h.Events.ListCategories)
				categories.POST("/:categoryId/join", h.Events.JoinCategory)
				categories.POST("/:categoryId/leave", h.Events.LeaveCategory)
				categories.POST("/:categoryId/close", h.Events.CloseCategory)
				categories.PATCH("/:categoryId/limits", h.Events.UpdateCategoryLimits)
			}

			events.GET("/:id/wallet", h.Wallets.GetWallet)
			events.GET("/:id/transactions", h.Wallets.ListTransactions)
			events.GET("/:id/summary", h.Wallets.Summary)
			events.POST("/:id/deposits", h.Wallets.Deposit)
			events.GET("/:id/ledger", h.Wallets.Ledger)
			events.GET("/:id/ledger/participants/:userId", h.Wallets.ParticipantLedger)

			expenses := events.Group("/:id/expenses")
			{
				expenses.POST("", h.Expenses.Propose)
				expenses.GET("", h.Expenses.List)
				expenses.GET("/summary", h.Expenses.Summary)
				expenses.GET("/:expenseId", h.Expenses.Get)
				expenses.POST("/:expenseId/approve", h.Expenses.Approve)
				expenses.POST("/:expenseId/reject", h.Expenses.Reject)
				expenses.POST("/:expenseId/dispute", h.Expenses.Dispute)
				expenses.PATCH("/:expenseId", h.Expenses.Edit)
				expenses.DELETE("/:expenseId", h.Expenses.Delete)
			}
			events.POST("/:id/receipts/extract", h.Expenses.ExtractReceipt)

			settlement := events.Group("/:id/settlement")
			{
				settlement.GET("/calculate", h.Settlement.Calculate)
				settlement.POST("/execute", h.Settlement.Execute)
				settlement.GET("/status", h.Settlement.Status)
				settlement.POST("/refunds", h.Settlement.ProcessAll)
				settlement.POST("/refunds/:userId", h.Settlement.ProcessRefund)
				settlement.POST("/complete", h.Settlement.Complete)
				settlement.GET("/categories/:categoryId", h.Settlement.CategoryPreview)
			}
		}
	}

	// Gateway callbacks authenticate by signature, not caller identity
	r.POST("/webhooks/payment-gateway", h.Webhooks.PaymentGateway)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
