package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Aashu-1911/sutra-backend/internal/middleware"
)

// requester names the caller recorded on export jobs: the token's user ID, else its
// registered subject. Anonymous requests yield "".
func requester(c *gin.Context) string {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		return ""
	}
	if claims.UserID != "" {
		return claims.UserID
	}
	return claims.Subject
}
