// Package middleware 提供了处理 HTTP 请求的中间件。
package middleware

import (
	"net/http"
	"strings"

	"sql-smart-go/internal/model"
	"sql-smart-go/pkg/log"
	"sql-smart-go/pkg/token"

	"github.com/gin-gonic/gin"
)

const (
	// ContextUserKey 是解析出的 *model.User 在 gin 上下文中的键
	ContextUserKey = "user"
	// ContextClaimsKey 是 token claims 在 gin 上下文中的键，仅在携带 token 时存在
	ContextClaimsKey = "claims"
)

// UserResolver 为每个请求解析调用者身份，并把 *model.User 存入 Gin 的上下文中。
// jwtManager 为 nil 时（未配置 jwt.secret）所有请求都解析为默认用户；
// 否则未携带 token 的请求解析为非管理员的匿名用户，携带了无效 token 则返回 401。
func UserResolver(jwtManager *token.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if jwtManager == nil {
			c.Set(ContextUserKey, model.DefaultUser())
			c.Next()
			return
		}

		tokenString, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "无效的授权头格式", "data": nil})
			return
		}
		if tokenString == "" {
			c.Set(ContextUserKey, model.AnonymousUser())
			c.Next()
			return
		}

		claims, err := jwtManager.VerifyToken(tokenString)
		if err != nil {
			log.Warnf("UserResolver: token 校验失败: %v", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "无效或已过期的 token", "data": nil})
			return
		}

		c.Set(ContextUserKey, claims.User())
		c.Set(ContextClaimsKey, claims)
		c.Next()
	}
}

// bearerToken 从 Authorization 头取 token；浏览器的 WebSocket 无法设置请求头，因此也接受 ?token= 查询参数。
// 第二个返回值为 false 表示授权头格式错误。
func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return c.Query("token"), true
	}
	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(authHeader, bearerPrefix)), true
}

// CurrentUser 返回 UserResolver 存入的用户，不存在时返回 nil。
func CurrentUser(c *gin.Context) *model.User {
	v, exists := c.Get(ContextUserKey)
	if !exists {
		return nil
	}
	user, _ := v.(*model.User)
	return user
}
