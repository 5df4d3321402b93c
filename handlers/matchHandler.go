package handlers

import (
	"net/http"

	"bitbucket.org/mmdatafocus/recon_backend/models"
	"github.com/gin-gonic/gin"
)

func ListMatchesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := models.Authorize(ctx, models.ActionReconcileView, models.PolicyLevelView); err != nil {
			respondError(c, err)
			return
		}
		bankTxnId := queryInt(c, "bank_transaction_id", 0)
		if bankTxnId <= 0 {
			respondError(c, models.ErrValidation("bank_transaction_id is required"))
			return
		}
		matches, err := models.GetBankMatches(ctx, bankTxnId, queryBool(c, "include_voided"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"matches": matches})
	}
}

func CreateMatchHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := models.Authorize(ctx, models.ActionMatchCreate, models.PolicyLevelEdit); err != nil {
			respondError(c, err)
			return
		}
		accountId, err := pathId(c, "accountId")
		if err != nil {
			respondError(c, err)
			return
		}

		var input models.NewBankMatch
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		input.AccountId = accountId

		match, err := models.CreateMatch(ctx, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"match_id": match.ID, "match": match})
	}
}

type matchBatchRequest struct {
	Items []*models.NewBankMatch `json:"items" binding:"required"`
}

func CreateMatchesBatchHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := models.Authorize(ctx, models.ActionMatchCreate, models.PolicyLevelEdit); err != nil {
			respondError(c, err)
			return
		}
		accountId, err := pathId(c, "accountId")
		if err != nil {
			respondError(c, err)
			return
		}

		var req matchBatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
		for _, item := range req.Items {
			item.AccountId = accountId
		}

		var results []*models.MatchBatchItemResult
		var summary *models.BatchSummary
		duplicate, err := runWithIdempotency(c, "matches-batch", func() error {
			var err error
			results, summary, err = models.CreateMatchesBatch(ctx, req.Items)
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
