package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vnkhanh/companion-tutor-backend/utils"
)

const (
	ContextUserID   = "user_id"
	ContextPlan     = "plan"
	ContextFeatures = "features"
)

func AuthMiddleware(verifier *utils.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")

		// Nếu không có, thử X-Auth-Token (cho iOS)
		if authHeader == "" {
			authHeader = c.GetHeader("X-Auth-Token")
		}
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing Authorization header", "code": "unauthorized"})
			return
		}

		tokenString, err := utils.BearerToken(authHeader)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid Authorization header", "code": "unauthorized"})
			return
		}

		claims, err := verifier.Verify(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error(), "code": "unauthorized"})
			return
		}

		// Lưu thông tin vào context để controller dùng
		c.Set(ContextUserID, claims.UserID())
		c.Set(ContextPlan, claims.Plan)
		c.Set(ContextFeatures, claims.Features)
		c.Next()
	}
}
