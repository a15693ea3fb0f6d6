package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/fleet_backend/utils"
)

// AuthMiddleware validates the bearer token and stashes the authenticated
// subject in the request context. Requests without a token pass through;
// handlers that need an identity reject them.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := strings.TrimSpace(c.Request.Header.Get("Authorization"))
		if auth == "" {
			c.Next()
			return
		}

		const bearer = "bearer "
		if len(auth) <= len(bearer) || !strings.EqualFold(auth[:len(bearer)], bearer) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		token := strings.TrimSpace(auth[len(bearer):])

		validate, err := utils.JwtValidate(token)
		if err != nil || !validate.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		claim, _ := validate.Claims.(*utils.JwtCustomClaim)
		ctx := utils.SetTokenInContext(c.Request.Context(), token)
		if claim != nil {
			ctx = utils.SetUsernameInContext(ctx, claim.Username)
			ctx = utils.SetUserIdInContext(ctx, claim.ID)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
