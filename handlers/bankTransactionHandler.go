package handlers

import (
	"net/http"

	"bitbucket.org/mmdatafocus/recon_backend/models"
	"github.com/gin-gonic/gin"
)

func ListBankTransactionsHandler() gin.HandlerFunc {
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

		txns, err := models.ListBankTransactions(ctx, &models.BankTransactionFilter{
			AccountId: accountId,
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
		c.JSON(http.StatusOK, gin.H{"bank_transactions": txns})
	}
}

func CreateBankTransactionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := models.Authorize(ctx, models.ActionStatementImport, models.PolicyLevelEdit); err != nil {
			respondError(c, err)
			return
		}
		accountId, err := pathId(c, "accountId")
		if err != nil {
			respondError(c, err)
			return
		}

		var input models.NewBankTransaction
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		if input.AccountId != accountId {
			respondError(c, models.ErrValidation("account_id does not match the route"))
			return
		}

		txn, err := models.CreateBankTransaction(ctx, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"bank_transaction": txn})
	}
}

// UnmatchBankTransactionHandler voids every active legacy match on the bank
// transaction in one shot.
func UnmatchBankTransactionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := models.Authorize(ctx, models.ActionMatchVoid, models.PolicyLevelEdit); err != nil {
			respondError(c, err)
			return
		}
		id, err := pathId(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}
		count, err := models.UnmatchBankTransaction(ctx, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"voided_count": count})
	}
}

func CreateEntryFromBankHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := models.Authorize(ctx, models.ActionEntryCreateFromBank, models.PolicyLevelEdit); err != nil {
			respondError(c, err)
			return
		}
		id, err := pathId(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}

		var input models.NewEntryFromBankTxn
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&input); err != nil {
				respondBindError(c, err)
				return
			}
		}

		entry, matchId, err := models.CreateEntryFromBankTxn(ctx, id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"entry": entry, "match_id": matchId, "auto_matched": matchId != nil})
	}
}

func SuggestedMatchesHandler() gin.HandlerFunc {
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
		suggestions, err := models.SuggestMatches(ctx, id, queryInt(c, "limit", 5))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"suggestions": suggestions})
	}
}
