package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/batchcoord/internal/platform/ctxutil"
	"github.com/yungbote/batchcoord/internal/platform/logger"
	"github.com/yungbote/batchcoord/internal/services/registry"
)

// AuthMiddleware enforces §4.8/§6's bearer-token authentication: extracts
// the token, verifies it against either signing key via TokenIssuer.Verify,
// and attaches the resulting nodeId/role to the request context. It never
// reads the store — validation is stateless per §4.3.
type AuthMiddleware struct {
	log    *logger.Logger
	tokens *registry.TokenIssuer
}

func NewAuthMiddleware(log *logger.Logger, tokens *registry.TokenIssuer) *AuthMiddleware {
	return &AuthMiddleware{log: log.With("middleware", "AuthMiddleware"), tokens: tokens}
}

func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"message": "missing or invalid token", "code": "unauthorized"},
			})
			return
		}
		claims, err := am.tokens.Verify(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"message": "invalid or expired token", "code": "unauthorized"},
			})
			return
		}
		ctx := ctxutil.WithAuthData(c.Request.Context(), &ctxutil.AuthData{NodeID: claims.NodeID, Role: claims.Role})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireAdmin rejects any caller whose token role isn't "admin", satisfying
// §6's `/api/filelocks/reset (admin)` restriction. Must run after
// RequireAuth.
func (am *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		ad := ctxutil.GetAuthData(c.Request.Context())
		if ad == nil || ad.Role != registry.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": gin.H{"message": "admin role required", "code": "forbidden"},
			})
			return
		}
		c.Next()
	}
}

func extractToken(c *gin.Context) string {
	if qToken := c.Query("token"); qToken != "" {
		return qToken
	}
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return authHeader[7:]
	}
	return ""
}
