package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/ledger_engine/models"
	"github.com/mmdatafocus/ledger_engine/models/reports"
	"github.com/mmdatafocus/ledger_engine/utils"
)

func snapshotHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		snapshot, err := reports.GetFinancialSnapshot(c.Request.Context())
		if err != nil {
			abortWithError(c, "snapshotHandler", err)
			return
		}
		c.JSON(http.StatusOK, snapshot)
	}
}

// metricsHandler serves /metrics/{investor,budget,party,compliance}.
func metricsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		var out any
		var err error
		switch c.Param("metric") {
		case "investor":
			out, err = reports.GetInvestorMetrics(ctx)
		case "budget":
			out, err = reports.GetBudgetMetrics(ctx)
		case "party":
			out, err = reports.GetPartyMetrics(ctx)
		case "compliance":
			out, err = reports.GetComplianceMetrics(ctx)
		default:
			err = utils.NewNotFoundError("metric", c.Param("metric"))
		}
		if err != nil {
			abortWithError(c, "metricsHandler", err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

func exceptionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		exceptions, err := reports.GetExceptions(c.Request.Context())
		if err != nil {
			abortWithError(c, "exceptionsHandler", err)
			return
		}
		c.JSON(http.StatusOK, exceptions)
	}
}

// reconciliationHandler runs the checks and stores one row per mismatch.
func reconciliationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := models.RunReconciliationChecks(c.Request.Context())
		if err != nil {
			abortWithError(c, "reconciliationHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"clean": len(rows) == 0, "issues": rows})
	}
}

// auditLogsHandler filters by entity_type, entity_id and action, newest first.
func auditLogsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := models.AuditLogFilter{
			EntityType: strings.TrimSpace(c.Query("entity_type")),
			Action:     models.AuditAction(strings.TrimSpace(c.Query("action"))),
		}
		if v := c.Query("entity_id"); v != "" {
			id, err := strconv.Atoi(v)
			if err != nil {
				abortWithError(c, "auditLogsHandler", utils.NewValidationError("entity_id", "must be an integer"))
				return
			}
			filter.EntityId = id
		}
		if v := c.Query("limit"); v != "" {
			limit, err := strconv.Atoi(v)
			if err != nil {
				abortWithError(c, "auditLogsHandler", utils.NewValidationError("limit", "must be an integer"))
				return
			}
			filter.Limit = limit
		}
		logs, err := models.ListAuditLogs(c.Request.Context(), filter)
		if err != nil {
			abortWithError(c, "auditLogsHandler", err)
			return
		}
		c.JSON(http.StatusOK, logs)
	}
}
