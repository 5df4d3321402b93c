package handlers

import (
	"net/http"

	"bitbucket.org/mmdatafocus/recon_backend/models"
	"github.com/gin-gonic/gin"
)

func GetBusinessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := models.Authorize(ctx, models.ActionReconcileView, models.PolicyLevelView); err != nil {
			respondError(c, err)
			return
		}
		business, err := models.GetBusiness(ctx)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"business": business})
	}
}

// UpdateClosedThroughHandler moves the business-wide period lock. Bookkeepers
// are denied by the default policy table; only owners and admins pass.
func UpdateClosedThroughHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := models.Authorize(ctx, models.ActionClosedThroughUpdate, models.PolicyLevelEdit); err != nil {
			respondError(c, err)
			return
		}

		var input models.NewClosedThrough
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}

		business, err := models.UpdateClosedThrough(ctx, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"business": business})
	}
}

func ListAccountsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := models.Authorize(ctx, models.ActionReconcileView, models.PolicyLevelView); err != nil {
			respondError(c, err)
			return
		}
		accounts, err := models.ListAccounts(ctx)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"accounts": accounts})
	}
}

func CreateAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireManagerRole(c) {
			return
		}
		var input models.NewAccount
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		account, err := models.CreateAccount(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"account": account})
	}
}
