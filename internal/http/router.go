package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"agrochat/internal/service"
)

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(
	logger *zap.Logger,
	jwtServ *service.JWTService,
	userH *UserHandler,
	historyH *HistoryHandler,
	assistantH *AssistantHandler,
) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging, recovery y JSON content-type.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), jsonContentTypeMiddleware())

	auth := r.Group("/auth")
	auth.POST("/oauth", userH.OAuthLogin)
	auth.POST("/refresh", userH.RefreshToken)
	auth.POST("/logout", userH.Logout)

	// El historial acepta identidad autenticada o invitado; la identidad se
	// resuelve por petición, nunca se rechaza por falta de token.
	api := r.Group("/api")
	api.Use(IdentityMiddleware(jwtServ))
	api.GET("/chat-history", historyH.GetHistory)
	api.POST("/chat-history", historyH.AppendMessage)
	api.DELETE("/chat-history", historyH.DeleteSession)
	api.POST("/weather-chat", assistantH.WeatherChat)
	api.POST("/diagnosis-chat", assistantH.DiagnosisChat)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
