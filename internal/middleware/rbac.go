package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/Aashu-1911/sutra-backend/internal/models"
	appErrors "github.com/Aashu-1911/sutra-backend/pkg/errors"
	"github.com/Aashu-1911/sutra-backend/pkg/response"
)

// RequireRoles admits requests whose claims carry one of roles. It must run after JWT.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		claims, ok := CurrentUser(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "role "+string(claims.Role)+" may not perform this action"))
			c.Abort()
			return
		}
		c.Next()
	}
}
