package middlewares

import (
	"net/http"

	"bitbucket.org/mmdatafocus/recon_backend/models"
	"bitbucket.org/mmdatafocus/recon_backend/utils"
	"github.com/gin-gonic/gin"
)

// BusinessScopeMiddleware pins every /businesses/:businessId route to the
// caller's own tenant. The token decides the tenant; the path merely names
// it, and a mismatch is a policy denial, not a 404 probe signal.
func BusinessScopeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		pathBusinessId := c.Param("businessId")
		ctxBusinessId, ok := utils.GetBusinessIdFromContext(c.Request.Context())
		if !ok || ctxBusinessId == "" || pathBusinessId != ctxBusinessId {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code":    models.CodePolicyDenied,
				"message": "business scope mismatch",
			})
			return
		}
		c.Next()
	}
}
