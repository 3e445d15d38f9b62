package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/ledger_engine/config"
	"github.com/mmdatafocus/ledger_engine/utils"
)

// abortWithError maps service errors onto status codes. Anything that is
// not a domain error is logged and answered with an opaque 500.
func abortWithError(c *gin.Context, funcName string, err error) {
	var ve *utils.ValidationError
	var se *utils.StateError
	switch {
	case errors.As(err, &ve):
		resp := utils.NewErrorResponse(utils.ErrorCodeValidation, ve.Message)
		resp.Field = ve.Field
		c.AbortWithStatusJSON(http.StatusBadRequest, resp)
	case errors.Is(err, utils.ErrWorkbenchNotFound), errors.Is(err, utils.ErrorRecordNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, utils.NewErrorResponse(utils.ErrorCodeNotFound, err.Error()))
	case errors.As(err, &se),
		errors.Is(err, utils.ErrAlreadyConfirmed),
		errors.Is(err, utils.ErrAccountInUse),
		errors.Is(err, utils.ErrPartyInUse),
		errors.Is(err, utils.ErrConfirmationInProgress),
		errors.Is(err, utils.ErrImmutable):
		c.AbortWithStatusJSON(http.StatusConflict, utils.NewErrorResponse(utils.ErrorCodeConflict, err.Error()))
	default:
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		config.LogError(config.GetLogger(), "handlers", funcName, c.FullPath(), cid, err)
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, utils.NewErrorResponse(utils.ErrorCodeInternal, "internal error"))
	}
}

// bindJSON decodes the body. Validation failures come back as *utils.ValidationError
// through utils.GinValidator; anything else is a malformed body.
func bindJSON(c *gin.Context, dest any) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		var ve *utils.ValidationError
		if !errors.As(err, &ve) {
			ve = utils.NewValidationError("body", "malformed request body")
		}
		abortWithError(c, "bindJSON", ve)
		return false
	}
	return true
}

func pathId(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		abortWithError(c, "pathId", utils.NewValidationError(name, "must be a positive integer"))
		return 0, false
	}
	return id, true
}
