package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/session-api/internal/middleware"
)

func principalFromContext(c *gin.Context) (middleware.Principal, bool) {
	value, exists := c.Get(middleware.ContextPrincipalKey)
	if !exists {
		return middleware.Principal{}, false
	}
	principal, ok := value.(middleware.Principal)
	if !ok {
		return middleware.Principal{}, false
	}
	return principal, true
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
