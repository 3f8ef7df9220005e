package middleware

import (
	"strings"

	"tryout_backend/internal/config"
	"tryout_backend/internal/model"
	"tryout_backend/internal/repository"
	"tryout_backend/internal/util"
	"tryout_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthMiddleware 校验 Authorization 头中的 JWT，并把 Claims 放进上下文
func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		claims, err := util.ParseJWT(tokenString, cfg.JWT.Secret)
		if err != nil {
			logger.Log.Debug("invalid token", zap.Error(err))
			util.Unauthorized(c)
			c.Abort()
			return
		}

		c.Set("user", claims)
		c.Next()
	}
}

// RoleMiddleware 限制路由只允许指定角色访问，admin 始终放行
func RoleMiddleware(roles ...model.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := util.GetUserFromContext(c)
		if claims == nil {
			util.Unauthorized(c)
			c.Abort()
			return
		}
		if claims.Role == model.Admin {
			c.Next()
			return
		}
		for _, role := range roles {
			if claims.Role == role {
				c.Next()
				return
			}
		}
		util.Forbidden(c)
		c.Abort()
	}
}

// ActivityMiddleware 异步刷新用户最近活跃时间
func ActivityMiddleware(userRepo *repository.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims := util.GetUserFromContext(c); claims != nil {
			go func(userID uint) {
				if err := userRepo.UpdateLastSeen(userID); err != nil {
					logger.Log.Debug("failed to update last seen", zap.Uint("user_id", userID), zap.Error(err))
				}
			}(claims.UserID)
		}
		c.Next()
	}
}
