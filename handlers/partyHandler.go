package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/ledger_engine/models"
)

func createPartyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewParty
		if !bindJSON(c, &input) {
			return
		}
		party, err := models.CreateParty(c.Request.Context(), &input)
		if err != nil {
			abortWithError(c, "createPartyHandler", err)
			return
		}
		c.JSON(http.StatusCreated, party)
	}
}

func listPartiesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		includeInactive, _ := strconv.ParseBool(c.Query("include_inactive"))
		parties, err := models.ListParties(c.Request.Context(), includeInactive)
		if err != nil {
			abortWithError(c, "listPartiesHandler", err)
			return
		}
		c.JSON(http.StatusOK, parties)
	}
}

func deactivatePartyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		party, err := models.DeactivateParty(c.Request.Context(), id)
		if err != nil {
			abortWithError(c, "deactivatePartyHandler", err)
			return
		}
		c.JSON(http.StatusOK, party)
	}
}

// deletePartyHandler answers 409 while any record still references the party.
func deletePartyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		if err := models.DeleteParty(c.Request.Context(), id); err != nil {
			abortWithError(c, "deletePartyHandler", err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
