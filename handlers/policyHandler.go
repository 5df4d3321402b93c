package handlers

import (
	"net/http"

	"bitbucket.org/mmdatafocus/recon_backend/models"
	"github.com/gin-gonic/gin"
)

func UpsertPolicyOverrideHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireManagerRole(c) {
			return
		}
		var input models.NewPolicyOverride
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		override, err := models.UpsertPolicyOverride(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"policy_override": override})
	}
}
