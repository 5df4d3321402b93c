package middlewares

import (
	"net/http"
	"strings"

	"bitbucket.org/mmdatafocus/recon_backend/models"
	"bitbucket.org/mmdatafocus/recon_backend/utils"
	"github.com/gin-gonic/gin"
)

// AuthMiddleware validates the bearer token and loads the caller's identity
// into the request context. Handlers and models read business scope, user id
// and role from there; nothing downstream touches the token again.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.Request.Header.Get("Authorization")
		if raw == "" {
			raw = c.Request.Header.Get("token")
		}
		token := strings.TrimPrefix(raw, "Bearer ")
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"code": models.CodeUnauthorized, "error": "missing token"})
			c.Abort()
			return
		}

		parsed, err := utils.JwtValidate(token)
		if err != nil || !parsed.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"code": models.CodeUnauthorized, "error": "invalid token"})
			c.Abort()
			return
		}
		claims, ok := parsed.Claims.(*utils.JwtCustomClaim)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"code": models.CodeUnauthorized, "error": "invalid token"})
			c.Abort()
			return
		}

		ctx := c.Request.Context()
		user, err := models.GetUserById(ctx, claims.ID)
		if err != nil || (user.IsActive != nil && !*user.IsActive) {
			c.JSON(http.StatusUnauthorized, gin.H{"code": models.CodeUnauthorized, "error": "account is disabled"})
			c.Abort()
			return
		}

		// Role comes from the DB record, not the token, so demotions take
		// effect before the token expires.
		ctx = utils.SetTokenInContext(ctx, token)
		ctx = utils.SetBusinessIdInContext(ctx, user.BusinessId)
		ctx = utils.SetUserIdInContext(ctx, user.ID)
		ctx = utils.SetUsernameInContext(ctx, user.Username)
		ctx = utils.SetUserNameInContext(ctx, user.Name)
		ctx = utils.SetUserRoleInContext(ctx, string(user.Role))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
