package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/ledger_engine/models"
)

func listAccountsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		accounts, err := models.ListAccounts(c.Request.Context())
		if err != nil {
			abortWithError(c, "listAccountsHandler", err)
			return
		}
		c.JSON(http.StatusOK, accounts)
	}
}

func getAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		account, err := models.GetAccount(c.Request.Context(), id)
		if err != nil {
			abortWithError(c, "getAccountHandler", err)
			return
		}
		c.JSON(http.StatusOK, account)
	}
}

func createAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewAccount
		if !bindJSON(c, &input) {
			return
		}
		account, err := models.CreateAccount(c.Request.Context(), &input)
		if err != nil {
			abortWithError(c, "createAccountHandler", err)
			return
		}
		c.JSON(http.StatusCreated, account)
	}
}

// updateAccountHandler is refused with 409 once ledger entries reference the account.
func updateAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input models.NewAccount
		if !bindJSON(c, &input) {
			return
		}
		account, err := models.UpdateAccount(c.Request.Context(), id, &input)
		if err != nil {
			abortWithError(c, "updateAccountHandler", err)
			return
		}
		c.JSON(http.StatusOK, account)
	}
}
