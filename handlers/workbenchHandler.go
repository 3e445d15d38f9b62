package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/ledger_engine/middlewares"
	"github.com/mmdatafocus/ledger_engine/models"
	"github.com/mmdatafocus/ledger_engine/utils"
)

// createWorkbenchHandler creates a workbench seeded with the default chart
// unless skip_defaults is set.
func createWorkbenchHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewWorkbench
		if !bindJSON(c, &input) {
			return
		}
		workbench, err := models.CreateWorkbench(c.Request.Context(), &input)
		if err != nil {
			abortWithError(c, "createWorkbenchHandler", err)
			return
		}
		c.JSON(http.StatusCreated, workbench)
	}
}

func listWorkbenchesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		workbenches, err := models.ListWorkbenches(ctx)
		if err != nil {
			abortWithError(c, "listWorkbenchesHandler", err)
			return
		}
		claim := middlewares.CtxValue(ctx)
		visible := make([]*models.Workbench, 0, len(workbenches))
		for _, w := range workbenches {
			if claim.CanAccessWorkbench(w.ID) {
				visible = append(visible, w)
			}
		}
		c.JSON(http.StatusOK, visible)
	}
}

func getWorkbenchHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		workbenchId, _ := utils.GetWorkbenchIdFromContext(ctx)
		workbench, err := models.GetWorkbench(ctx, workbenchId)
		if err != nil {
			abortWithError(c, "getWorkbenchHandler", err)
			return
		}
		c.JSON(http.StatusOK, workbench)
	}
}
