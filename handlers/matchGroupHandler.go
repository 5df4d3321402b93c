package handlers

import (
	"net/http"

	"bitbucket.org/mmdatafocus/recon_backend/models"
	"github.com/gin-gonic/gin"
)

func ListMatchGroupsHandler() gin.HandlerFunc {
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

		filter := &models.MatchGroupFilter{
			AccountId: accountId,
			Limit:     queryInt(c, "limit", 20),
			Offset:    queryInt(c, "offset", 0),
		}
		switch c.DefaultQuery("status", "active") {
		case "active":
			filter.Status = models.MatchGroupStatusActive
		case "all":
		default:
			respondError(c, models.ErrValidation("status must be active or all"))
			return
		}

		groups, err := models.ListMatchGroups(ctx, filter)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"match_groups": groups})
	}
}

func GetMatchGroupHandler() gin.HandlerFunc {
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
		group, err := models.GetMatchGroup(ctx, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"match_group": group})
	}
}

func CreateMatchGroupHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := models.Authorize(ctx, models.ActionGroupCreate, models.PolicyLevelEdit); err != nil {
			respondError(c, err)
			return
		}
		accountId, err := pathId(c, "accountId")
		if err != nil {
			respondError(c, err)
			return
		}

		var input models.NewMatchGroup
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		input.AccountId = accountId

		group, err := models.CreateMatchGroup(ctx, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"match_group_id": group.ID, "match_group": group})
	}
}

type matchGroupBatchRequest struct {
	Items []*models.NewMatchGroup `json:"items" binding:"required"`
}

func CreateMatchGroupsBatchHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := models.Authorize(ctx, models.ActionGroupCreate, models.PolicyLevelEdit); err != nil {
			respondError(c, err)
			return
		}
		accountId, err := pathId(c, "accountId")
		if err != nil {
			respondError(c, err)
			return
		}

		var req matchGroupBatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
		for _, item := range req.Items {
			item.AccountId = accountId
		}

		var results []*models.MatchGroupBatchItemResult
		var summary *models.BatchSummary
		duplicate, err := runWithIdempotency(c, "match-groups-batch", func() error {
			var err error
			results, summary, err = models.CreateMatchGroupsBatch(ctx, req.Items)
			return err
		})
		if err != nil {
			respondError(c, err)
			return
		}
		if duplicate {
			c.JSON(http.StatusOK, gin.H{"duplicate": true})
			return
		}
		c.JSON(http.StatusOK, gin.H{"results": results, "summary": summary})
	}
}

type voidMatchGroupRequest struct {
	Reason string `json:"reason"`
}

func VoidMatchGroupHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := models.Authorize(ctx, models.ActionGroupVoid, models.PolicyLevelEdit); err != nil {
			respondError(c, err)
			return
		}
		id, err := pathId(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}

		var req voidMatchGroupRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				respondBindError(c, err)
				return
			}
		}

		group, err := models.VoidMatchGroup(ctx, id, req.Reason)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"match_group": group})
	}
}
