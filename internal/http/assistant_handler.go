package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"agrochat/internal/service"
)

// AssistantHandler mantiene dependencias para los endpoints de chat con el
// asistente agrícola.
type AssistantHandler struct {
	logger        *zap.Logger
	assistantServ *service.AssistantService
}

// NewAssistantHandler crea una instancia de AssistantHandler con dependencias necesarias.
func NewAssistantHandler(logger *zap.Logger, assistantServ *service.AssistantService) *AssistantHandler {
	return &AssistantHandler{
		logger:        logger,
		assistantServ: assistantServ,
	}
}

// WeatherChat maneja POST /api/weather-chat.
func (h *AssistantHandler) WeatherChat(c *gin.Context) {
	var req struct {
		Message        string                  `json:"message" binding:"required"`
		WeatherContext *service.WeatherContext `json:"weatherContext"`
		History        []service.HistoryEntry  `json:"conversationHistory"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid weather chat request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}

	reply, err := h.assistantServ.WeatherReply(c.Request.Context(), req.Message, req.WeatherContext, req.History)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"response": reply})
}

// DiagnosisChat maneja POST /api/diagnosis-chat.
func (h *AssistantHandler) DiagnosisChat(c *gin.Context) {
	var req struct {
		Message          string                    `json:"message" binding:"required"`
		DiagnosisContext *service.DiagnosisContext `json:"diagnosisContext"`
		History          []service.HistoryEntry    `json:"conversationHistory"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid diagnosis chat request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}

	reply, err := h.assistantServ.DiagnosisReply(c.Request.Context(), req.Message, req.DiagnosisContext, req.History)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"response": reply})
}

func (h *AssistantHandler) respondError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrAssistantInvalidInput) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}
	// El fallo del proveedor LLM se expone tal cual: el cliente decide cómo
	// degradar la conversación.
	h.logger.Error("assistant reply failed", zap.Error(err))
	c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
}
