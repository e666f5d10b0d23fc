package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"agrochat/internal/service"
)

// HistoryHandler mantiene dependencias para el endpoint de historial de chat.
type HistoryHandler struct {
	logger      *zap.Logger
	historyServ *service.HistoryService
}

// NewHistoryHandler crea una instancia de HistoryHandler con dependencias necesarias.
func NewHistoryHandler(logger *zap.Logger, historyServ *service.HistoryService) *HistoryHandler {
	return &HistoryHandler{
		logger:      logger,
		historyServ: historyServ,
	}
}

// GetHistory maneja GET /api/chat-history. Con list=true devuelve el resumen
// de sesiones del usuario; con type y sessionId devuelve los mensajes de esa
// sesión en orden cronológico.
func (h *HistoryHandler) GetHistory(c *gin.Context) {
	userID := RequestUserID(c)

	if c.Query("list") == "true" {
		sessions, err := h.historyServ.ListSessions(c.Request.Context(), userID)
		if err != nil {
			// Un fallo del store no rompe la pantalla de historial: el
			// cliente recibe una lista vacía.
			h.logger.Error("list sessions failed", zap.Error(err), zap.String("user_id", userID))
			c.JSON(http.StatusOK, gin.H{"sessions": []any{}})
			return
		}
		c.JSON(http.StatusOK, gin.H{"sessions": sessions})
		return
	}

	chatType := c.Query("type")
	sessionID := c.Query("sessionId")
	if chatType == "" || sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type and sessionId are required"})
		return
	}

	messages, err := h.historyServ.ListMessages(c.Request.Context(), userID, chatType, sessionID)
	if err != nil {
		if errors.Is(err, service.ErrHistoryInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		h.logger.Error("list messages failed", zap.Error(err), zap.String("session_id", sessionID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sessionId": sessionID,
		"chatType":  chatType,
		"messages":  messages,
		"total":     len(messages),
	})
}

// AppendMessage maneja POST /api/chat-history.
func (h *HistoryHandler) AppendMessage(c *gin.Context) {
	var req struct {
		ChatType    string          `json:"chatType" binding:"required"`
		SessionID   string          `json:"sessionId" binding:"required"`
		Role        string          `json:"role" binding:"required"`
		Content     string          `json:"content" binding:"required"`
		ContextData json.RawMessage `json:"contextData"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid append request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing required fields"})
		return
	}

	messageID, err := h.historyServ.Append(c.Request.Context(), service.AppendInput{
		UserID:      RequestUserID(c),
		ChatType:    req.ChatType,
		SessionID:   req.SessionID,
		Role:        req.Role,
		Content:     req.Content,
		ContextData: req.ContextData,
	})
	if err != nil {
		if errors.Is(err, service.ErrHistoryInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message"})
			return
		}
		h.logger.Error("append message failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not save message"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "messageId": messageID})
}

// DeleteSession maneja DELETE /api/chat-history. Borrar una sesión que no
// existe responde igual que borrar una existente.
func (h *HistoryHandler) DeleteSession(c *gin.Context) {
	chatType := c.Query("type")
	sessionID := c.Query("sessionId")
	if chatType == "" || sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type and sessionId are required"})
		return
	}

	if err := h.historyServ.DeleteSession(c.Request.Context(), RequestUserID(c), chatType, sessionID); err != nil {
		if errors.Is(err, service.ErrHistoryInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		h.logger.Error("delete session failed", zap.Error(err), zap.String("session_id", sessionID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
