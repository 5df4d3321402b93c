package handlers

import (
	"net/http"

	"bitbucket.org/mmdatafocus/recon_backend/models"
	"github.com/gin-gonic/gin"
)

func ListEntriesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := models.Authorize(ctx, models.ActionReconcileView, models.PolicyLevelView); err != nil {
			respondError(c, err)
			return
		}
		accountId, err := pathId(c, "accountId")
		if err != nil {
			respondError(c, err)
			return
		}
		dateFrom, err := queryDate(c, "date_from")
		if err != nil {
			respondError(c, err)
			return
		}
		dateTo, err := queryDate(c, "date_to")
		if err != nil {
			respondError(c, err)
			return
		}

		entries, err := models.ListEntries(ctx, &models.EntryFilter{
			AccountId: accountId,
			EntryType: models.EntryType(c.Query("entry_type")),
			DateFrom:  dateFrom,
			DateTo:    dateTo,
			Unmatched: queryBool(c, "unmatched"),
			Limit:     queryInt(c, "limit", 50),
			Offset:    queryInt(c, "offset", 0),
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"entries": entries})
	}
}

func GetEntryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := models.Authorize(ctx, models.ActionReconcileView, models.PolicyLevelView); err != nil {
			respondError(c, err)
			return
		}
		id, err := pathId(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}
		entry, err := models.GetEntry(ctx, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"entry": entry})
	}
}

func CreateEntryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := models.Authorize(ctx, models.ActionEntryCreate, models.PolicyLevelEdit); err != nil {
			respondError(c, err)
			return
		}
		accountId, err := pathId(c, "accountId")
		if err != nil {
			respondError(c, err)
			return
		}

		var input models.NewEntry
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		if input.AccountId != accountId {
			respondError(c, models.ErrValidation("account_id does not match the route"))
			return
		}

		entry, err := models.CreateEntry(ctx, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"entry": entry})
	}
}
