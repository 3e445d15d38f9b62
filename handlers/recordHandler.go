package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/ledger_engine/models"
	"github.com/mmdatafocus/ledger_engine/workflow"
)

func createRecordHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewRecord
		if !bindJSON(c, &input) {
			return
		}
		record, err := models.CreateRecord(c.Request.Context(), &input)
		if err != nil {
			abortWithError(c, "createRecordHandler", err)
			return
		}
		c.JSON(http.StatusCreated, record)
	}
}

// listRecordsHandler accepts ?type= to filter by record type.
func listRecordsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		var records []*models.Record
		var err error
		if t := strings.TrimSpace(c.Query("type")); t != "" {
			records, err = models.ListRecordsByType(ctx, models.RecordType(t))
		} else {
			records, err = models.ListRecordsByWorkbench(ctx)
		}
		if err != nil {
			abortWithError(c, "listRecordsHandler", err)
			return
		}
		c.JSON(http.StatusOK, records)
	}
}

func getRecordHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		record, err := models.GetRecord(c.Request.Context(), id)
		if err != nil {
			abortWithError(c, "getRecordHandler", err)
			return
		}
		c.JSON(http.StatusOK, record)
	}
}

// confirmRecordHandler takes an optional body; an empty one confirms the draft as it stands.
func confirmRecordHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input workflow.RecordConfirmation
		if c.Request.ContentLength != 0 && !bindJSON(c, &input) {
			return
		}
		result, err := workflow.ConfirmRecord(c.Request.Context(), id, &input)
		if err != nil {
			abortWithError(c, "confirmRecordHandler", err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

type cancelRecordRequest struct {
	Reason string `json:"reason" binding:"required"`
}

func cancelRecordHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var req cancelRecordRequest
		if !bindJSON(c, &req) {
			return
		}
		record, err := workflow.CancelRecord(c.Request.Context(), id, req.Reason)
		if err != nil {
			abortWithError(c, "cancelRecordHandler", err)
			return
		}
		c.JSON(http.StatusOK, record)
	}
}

func updatePaymentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input workflow.PaymentUpdate
		if !bindJSON(c, &input) {
			return
		}
		record, err := workflow.UpdatePaymentStatus(c.Request.Context(), id, &input)
		if err != nil {
			abortWithError(c, "updatePaymentHandler", err)
			return
		}
		c.JSON(http.StatusOK, record)
	}
}

func pushAdjustmentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input workflow.NewAdjustment
		if !bindJSON(c, &input) {
			return
		}
		result, err := workflow.PushAdjustment(c.Request.Context(), &input)
		if err != nil {
			abortWithError(c, "pushAdjustmentHandler", err)
			return
		}
		c.JSON(http.StatusCreated, result)
	}
}
