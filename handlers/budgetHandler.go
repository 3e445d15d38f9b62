package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/ledger_engine/models"
)

func createBudgetHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewBudget
		if !bindJSON(c, &input) {
			return
		}
		budget, err := models.CreateBudget(c.Request.Context(), &input)
		if err != nil {
			abortWithError(c, "createBudgetHandler", err)
			return
		}
		c.JSON(http.StatusCreated, budget)
	}
}

func listBudgetsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		budgets, err := models.ListBudgets(c.Request.Context())
		if err != nil {
			abortWithError(c, "listBudgetsHandler", err)
			return
		}
		c.JSON(http.StatusOK, budgets)
	}
}
