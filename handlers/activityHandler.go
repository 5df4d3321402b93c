package handlers

import (
	"net/http"

	"bitbucket.org/mmdatafocus/recon_backend/models"
	"github.com/gin-gonic/gin"
)

func ListActivityHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := models.Authorize(ctx, models.ActionActivityView, models.PolicyLevelView); err != nil {
			respondError(c, err)
			return
		}

		var accountId *int
		if v := queryInt(c, "account_id", 0); v > 0 {
			accountId = &v
		}
		var eventType *string
		if v := c.Query("event_type"); v != "" {
			eventType = &v
		}

		activities, err := models.GetActivities(ctx, accountId, eventType, queryInt(c, "limit", 100))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"activities": activities})
	}
}
