// Package handlers exposes the ledger engine over JSON/HTTP.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/mmdatafocus/ledger_engine/middlewares"
	"github.com/mmdatafocus/ledger_engine/utils"
)

func init() {
	binding.Validator = utils.GinValidator{}
}

// RegisterRoutes mounts the api. Correlation and auth middleware must already
// be installed on r.
func RegisterRoutes(r *gin.Engine) {
	r.GET("/health", healthHandler())

	api := r.Group("/api", middlewares.RequireActor())
	api.POST("/workbenches", createWorkbenchHandler())
	api.GET("/workbenches", listWorkbenchesHandler())

	wb := api.Group("/workbenches/:workbenchId", middlewares.WorkbenchMiddleware(), middlewares.ReferenceTimeMiddleware())
	wb.GET("", getWorkbenchHandler())

	wb.GET("/accounts", listAccountsHandler())
	wb.POST("/accounts", createAccountHandler())
	wb.GET("/accounts/:id", getAccountHandler())
	wb.PUT("/accounts/:id", updateAccountHandler())

	wb.POST("/records", createRecordHandler())
	wb.GET("/records", listRecordsHandler())
	wb.GET("/records/:id", getRecordHandler())
	wb.POST("/records/:id/confirm", confirmRecordHandler())
	wb.POST("/records/:id/cancel", cancelRecordHandler())
	wb.POST("/records/:id/payment", updatePaymentHandler())
	wb.POST("/adjustments", pushAdjustmentHandler())

	wb.POST("/parties", createPartyHandler())
	wb.GET("/parties", listPartiesHandler())
	wb.POST("/parties/:id/deactivate", deactivatePartyHandler())
	wb.DELETE("/parties/:id", deletePartyHandler())

	wb.POST("/budgets", createBudgetHandler())
	wb.GET("/budgets", listBudgetsHandler())

	wb.GET("/snapshot", snapshotHandler())
	wb.GET("/metrics/:metric", metricsHandler())
	wb.GET("/exceptions", exceptionsHandler())
	wb.POST("/reconciliation", reconciliationHandler())
	wb.GET("/audit-logs", auditLogsHandler())

	ops := r.Group("/internal/ops", middlewares.RequireAdmin())
	ops.POST("/outbox/replay", outboxReplayHandler())

	r.NoRoute(customNotFoundHandler)
}

func healthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, utils.NewErrorResponse(utils.ErrorCodeNotFound, "route not found"))
}
