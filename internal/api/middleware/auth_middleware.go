package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"dashEditor/internal/auth"
)

const tokenIDKey = "tokenID"

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
}

// AuthMiddleware 校验访问令牌并将令牌 ID 注入上下文。
func AuthMiddleware(authService *auth.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortUnauthorized(c)
			return
		}

		parts := strings.Fields(header)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abortUnauthorized(c)
			return
		}

		rawToken := parts[1]
		if strings.TrimSpace(rawToken) == "" {
			abortUnauthorized(c)
			return
		}

		claims, err := authService.ValidateToken(rawToken)
		if err != nil {
			abortUnauthorized(c)
			return
		}

		c.Set(tokenIDKey, claims.ID)
		c.Next()
	}
}

// GetTokenID 返回当前请求使用的令牌 ID。
func GetTokenID(c *gin.Context) string {
	if value, ok := c.Get(tokenIDKey); ok {
		if id, ok := value.(string); ok {
			return id
		}
	}
	return ""
}
