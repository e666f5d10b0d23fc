package domain

import (
	"encoding/json"
	"time"
)

// ChatSession es el snapshot completo de una conversación, tal como se
// serializa en la caché local de invitados.
type ChatSession struct {
	ID          string          `json:"id"`
	ChatType    string          `json:"chatType,omitempty"`
	UserID      string          `json:"userId,omitempty"`
	Messages    []ChatMessage   `json:"messages"`
	ContextData json.RawMessage `json:"contextData,omitempty"`
	LastUpdated time.Time       `json:"lastUpdated"`
}

// titleMaxRunes acota el prefijo del primer mensaje usado como título.
const titleMaxRunes = 50

// TruncateTitle recorta el contenido a un prefijo acotado, en runas para no
// partir texto multibyte, y agrega un marcador de elipsis.
func TruncateTitle(content string) string {
	runes := []rune(content)
	if len(runes) <= titleMaxRunes {
		return content
	}
	return string(runes[:titleMaxRunes]) + "..."
}

// SessionSummary es una fila del listado de sesiones de un usuario.
// Title es el primer mensaje truncado a un prefijo acotado.
type SessionSummary struct {
	ID           string    `json:"id"`
	ChatType     string    `json:"chatType"`
	LastUpdated  time.Time `json:"lastUpdated"`
	MessageCount int       `json:"messageCount"`
	Title        string    `json:"title"`
}
