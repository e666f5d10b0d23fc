package domain

import (
	"encoding/json"
	"time"
)

// Roles permitidos para un mensaje de chat.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Tipos de chat que particionan las sesiones por área de la aplicación.
const (
	ChatTypeDiagnosis = "diagnosis"
	ChatTypeWeather   = "weather"
)

// GuestUserID es la identidad centinela para usuarios no autenticados.
const GuestUserID = "guest"

// ChatMessage es un mensaje persistido de una conversación.
// ContextData transporta un snapshot opaco (diagnóstico o clima) asociado
// al mensaje; este servicio nunca lo interpreta.
type ChatMessage struct {
	ID          string          `json:"id"`
	UserID      string          `json:"userId,omitempty"`
	ChatType    string          `json:"chatType,omitempty"`
	SessionID   string          `json:"sessionId,omitempty"`
	Role        string          `json:"role"`
	Content     string          `json:"content"`
	ContextData json.RawMessage `json:"contextData,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
}

// ValidRole indica si el rol pertenece al enum {user, assistant}.
func ValidRole(role string) bool {
	return role == RoleUser || role == RoleAssistant
}

// ValidChatType indica si el tipo pertenece al enum {diagnosis, weather}.
func ValidChatType(chatType string) bool {
	return chatType == ChatTypeDiagnosis || chatType == ChatTypeWeather
}
