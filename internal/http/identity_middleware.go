package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"agrochat/internal/domain"
	"agrochat/internal/service"
)

const (
	authClaimsKey = "auth_claims"
	userIDKey     = "user_id"
)

// IdentityMiddleware resuelve la identidad de la petición: un bearer token
// válido fija el user id de sus claims; la ausencia de token o un token
// inválido degradan al centinela de invitado. Nunca aborta la petición.
func IdentityMiddleware(jwtSvc *service.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := domain.GuestUserID

		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if jwtSvc != nil && header != "" && strings.HasPrefix(strings.ToLower(header), "bearer ") {
			token := strings.TrimSpace(header[len("Bearer "):])
			if claims, err := jwtSvc.ParseAccessToken(token); err == nil {
				c.Set(authClaimsKey, claims)
				userID = claims.UserID
			}
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// JWTAuthMiddleware valida JWT access tokens y guarda claims en el contexto.
// A diferencia de IdentityMiddleware, rechaza peticiones sin token válido.
func JWTAuthMiddleware(jwtSvc *service.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if jwtSvc == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "jwt not configured"})
			c.Abort()
			return
		}

		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			c.Abort()
			return
		}

		token := strings.TrimSpace(header[len("Bearer "):])
		claims, err := jwtSvc.ParseAccessToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		c.Set(authClaimsKey, claims)
		c.Set(userIDKey, claims.UserID)
		c.Next()
	}
}

// GetAuthClaims obtiene claims de JWT desde el contexto.
func GetAuthClaims(c *gin.Context) (service.Claims, bool) {
	val, ok := c.Get(authClaimsKey)
	if !ok {
		return service.Claims{}, false
	}
	claims, ok := val.(service.Claims)
	return claims, ok
}

// RequestUserID devuelve el user id resuelto por IdentityMiddleware, con el
// centinela de invitado como valor por defecto.
func RequestUserID(c *gin.Context) string {
	val, ok := c.Get(userIDKey)
	if !ok {
		return domain.GuestUserID
	}
	userID, ok := val.(string)
	if !ok || userID == "" {
		return domain.GuestUserID
	}
	return userID
}
