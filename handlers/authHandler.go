package handlers

import (
	"net/http"

	"bitbucket.org/mmdatafocus/recon_backend/models"
	"bitbucket.org/mmdatafocus/recon_backend/utils"
	"github.com/gin-gonic/gin"
)

func SignInHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.SignInInput
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		token, user, err := models.SignIn(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
	}
}

// requireManagerRole gates the internal admin surface on the caller's role.
// The policy table governs reconcile actions; user and policy management is
// owner/admin only and not overridable.
func requireManagerRole(c *gin.Context) bool {
	role, ok := utils.GetUserRoleFromContext(c.Request.Context())
	if !ok || (models.UserRole(role) != models.UserRoleOwner && models.UserRole(role) != models.UserRoleAdmin) {
		c.JSON(http.StatusForbidden, gin.H{
			"code":    models.CodePolicyDenied,
			"message": "owner or admin role required",
		})
		return false
	}
	return true
}

func CreateUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireManagerRole(c) {
			return
		}
		var input models.NewUser
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		businessId, _ := utils.GetBusinessIdFromContext(c.Request.Context())
		if input.BusinessId != businessId {
			respondError(c, models.ErrValidation("business_id does not match the session"))
			return
		}
		user, err := models.CreateUser(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"user": user})
	}
}
