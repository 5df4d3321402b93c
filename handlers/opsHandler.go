package handlers

import (
	"net/http"
	"time"

	"bitbucket.org/mmdatafocus/recon_backend/config"
	"bitbucket.org/mmdatafocus/recon_backend/models"
	"github.com/gin-gonic/gin"
)

type outboxReplayRequest struct {
	RecordId int `json:"record_id" binding:"required"`
}

// ReplayOutboxRecordHandler puts a DEAD outbox record back in the
// dispatcher's queue. Attempts reset so the backoff starts over.
func ReplayOutboxRecordHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireManagerRole(c) {
			return
		}
		var req outboxReplayRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
		businessId := c.Param("businessId")

		db := config.GetDB()
		now := time.Now().UTC()
		result := db.WithContext(c.Request.Context()).
			Model(&models.ReportingOutboxRecord{}).
			Where("id = ? AND business_id = ? AND publish_status = ?",
				req.RecordId, businessId, models.OutboxPublishStatusDead).
			Updates(map[string]interface{}{
				"publish_status":  models.OutboxPublishStatusPending,
				"attempts":        0,
				"next_attempt_at": &now,
				"last_error":      nil,
			})
		if result.Error != nil {
			respondError(c, result.Error)
			return
		}
		if result.RowsAffected == 0 {
			respondError(c, models.ErrNotFound("no replayable outbox record with that id"))
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"record_id":       req.RecordId,
			"publish_status":  models.OutboxPublishStatusPending,
			"next_attempt_at": now.Format(time.RFC3339Nano),
		})
	}
}
