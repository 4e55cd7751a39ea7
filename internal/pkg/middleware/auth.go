package middleware

import (
	"net/http"
	"strings"

	"campus_wall/pkg/response"
	"campus_wall/pkg/utils"

	"github.com/gin-gonic/gin"
)

// 上下文键
const (
	ContextUserID       = "userID"
	ContextSchoolDomain = "schoolDomain"
)

// AuthMiddleware JWT认证中间件，解析出的用户 ID 与学校域写入上下文
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Error(c, http.StatusUnauthorized, response.ErrTokenInvalid, "Authorization header is required")
			c.Abort()
			return
		}

		// 检查格式 "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Error(c, http.StatusUnauthorized, response.ErrTokenInvalid, "Invalid authorization header format")
			c.Abort()
			return
		}

		claims, err := utils.ParseToken(parts[1])
		if err != nil {
			response.Error(c, http.StatusUnauthorized, response.ErrTokenInvalid, "Invalid or expired token")
			c.Abort()
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextSchoolDomain, strings.ToLower(strings.TrimSpace(claims.SchoolDomain)))

		c.Next()
	}
}

// Identity 读取认证中间件写入的身份
func Identity(c *gin.Context) (userID, schoolDomain string, ok bool) {
	userID = c.GetString(ContextUserID)
	schoolDomain = c.GetString(ContextSchoolDomain)
	return userID, schoolDomain, userID != ""
}
