package middlewares

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mmdatafocus/ledger_engine/config"
	"github.com/mmdatafocus/ledger_engine/models"
	"github.com/mmdatafocus/ledger_engine/utils"
	"github.com/sirupsen/logrus"
)

const CorrelationHeader = "x-correlation-id"

// CorrelationMiddleware keeps the caller's correlation id or mints one, and echoes it back.
func CorrelationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		cid := strings.TrimSpace(c.GetHeader(CorrelationHeader))
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Header(CorrelationHeader, cid)
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	}
}

// ReadinessMiddleware answers 503 until the database is connected. The
// listed paths are always served.
func ReadinessMiddleware(alwaysOpen ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, p := range alwaysOpen {
			if c.Request.URL.Path == p {
				c.Next()
				return
			}
		}
		if config.GetDB() == nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, utils.NewErrorResponse(utils.ErrorCodeUnavailable, "database not ready"))
			return
		}
		c.Next()
	}
}

// WorkbenchMiddleware scopes the request to the :workbenchId path parameter.
// The actor's token must list the workbench unless the actor is an admin.
func WorkbenchMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		workbenchId := strings.TrimSpace(c.Param("workbenchId"))
		if workbenchId == "" {
			c.AbortWithStatusJSON(http.StatusNotFound, utils.NewErrorResponse(utils.ErrorCodeNotFound, utils.ErrWorkbenchNotFound.Error()))
			return
		}
		if claim := CtxValue(c.Request.Context()); claim != nil && !claim.CanAccessWorkbench(workbenchId) {
			c.AbortWithStatusJSON(http.StatusForbidden, utils.NewErrorResponse(utils.ErrorCodeForbidden, "no access to workbench"))
			return
		}

		ctx := c.Request.Context()
		if _, err := models.GetWorkbench(ctx, workbenchId); err != nil {
			if errors.Is(err, utils.ErrWorkbenchNotFound) {
				c.AbortWithStatusJSON(http.StatusNotFound, utils.NewErrorResponse(utils.ErrorCodeNotFound, err.Error()))
				return
			}
			config.LogError(config.GetLogger(), "requestMiddleware.go", "WorkbenchMiddleware", "GetWorkbench", workbenchId, err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, utils.NewErrorResponse(utils.ErrorCodeInternal, "internal error"))
			return
		}
		c.Request = c.Request.WithContext(utils.SetWorkbenchIdInContext(ctx, workbenchId))
		c.Next()
	}
}

// ReferenceTimeMiddleware pins "today" from ?as_of= (RFC 3339 or YYYY-MM-DD).
func ReferenceTimeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.Query("as_of"))
		if raw == "" {
			c.Next()
			return
		}
		t, err := parseAsOf(raw)
		if err != nil {
			resp := utils.NewErrorResponse(utils.ErrorCodeValidation, "as_of must be RFC 3339 or YYYY-MM-DD")
			resp.Field = "as_of"
			c.AbortWithStatusJSON(http.StatusBadRequest, resp)
			return
		}
		c.Request = c.Request.WithContext(utils.SetReferenceTimeInContext(c.Request.Context(), t))
		c.Next()
	}
}

func parseAsOf(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}

// ErrorLogger logs only requests that collected gin errors.
func ErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
			logger.WithFields(logrus.Fields{
				"field":          "http",
				"method":         c.Request.Method,
				"path":           c.FullPath(),
				"status":         c.Writer.Status(),
				"correlation_id": cid,
			}).Error(c.Errors.String())
		}
	}
}
