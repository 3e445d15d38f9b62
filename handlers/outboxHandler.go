package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/ledger_engine/config"
	"github.com/mmdatafocus/ledger_engine/models"
	"github.com/mmdatafocus/ledger_engine/utils"
)

type outboxReplayRequest struct {
	WorkbenchId string `json:"workbench_id" binding:"required"`
	EventId     int    `json:"event_id" binding:"required,gt=0"`
}

// outboxReplayHandler puts a FAILED or DEAD event back in the dispatch queue.
func outboxReplayHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req outboxReplayRequest
		if !bindJSON(c, &req) {
			return
		}

		ctx := utils.SetIsAdminInContext(c.Request.Context(), true)
		db := config.GetDB()
		now := time.Now().UTC()
		res := db.WithContext(ctx).
			Model(&models.OutboxEvent{}).
			Where("id = ? AND workbench_id = ?", req.EventId, req.WorkbenchId).
			Where("publish_status IN ?", []string{models.OutboxPublishStatusFailed, models.OutboxPublishStatusDead}).
			Updates(map[string]interface{}{
				"publish_status":     models.OutboxPublishStatusFailed,
				"next_attempt_at":    &now,
				"locked_at":          nil,
				"locked_by":          nil,
				"last_publish_error": nil,
				"publish_attempts":   0,
			})
		if res.Error != nil {
			abortWithError(c, "outboxReplayHandler", res.Error)
			return
		}
		if res.RowsAffected == 0 {
			abortWithError(c, "outboxReplayHandler", utils.NewNotFoundError("replayable outbox event", req.EventId))
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"workbench_id":    req.WorkbenchId,
			"event_id":        req.EventId,
			"publish_status":  models.OutboxPublishStatusFailed,
			"next_attempt_at": now.Format(time.RFC3339Nano),
		})
	}
}
