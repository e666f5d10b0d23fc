package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"agrochat/internal/domain"
	"agrochat/internal/repository"
)

// HistoryService encapsula la lógica para el historial de conversaciones.
// Normaliza entradas, asigna valores por defecto y delega en el repositorio.
type HistoryService struct {
	repo repository.MessageRepository
}

var (
	ErrHistoryServiceNotConfigured = errors.New("history service not configured")
	ErrHistoryInvalidInput         = errors.New("history invalid input")
)

func NewHistoryService(repo repository.MessageRepository) *HistoryService {
	return &HistoryService{repo: repo}
}

// AppendInput son los campos requeridos para persistir un mensaje.
type AppendInput struct {
	UserID      string
	ChatType    string
	SessionID   string
	Role        string
	Content     string
	ContextData json.RawMessage
}

// Append valida y persiste un mensaje, devolviendo el id generado.
// Content vacío tras el trim se rechaza: nunca se persiste un mensaje vacío.
func (s *HistoryService) Append(ctx context.Context, input AppendInput) (string, error) {
	if s == nil || s.repo == nil {
		return "", ErrHistoryServiceNotConfigured
	}

	input.UserID = strings.TrimSpace(input.UserID)
	input.ChatType = strings.TrimSpace(input.ChatType)
	input.SessionID = strings.TrimSpace(input.SessionID)
	input.Role = strings.TrimSpace(input.Role)
	input.Content = strings.TrimSpace(input.Content)

	if input.UserID == "" || input.ChatType == "" || input.SessionID == "" || input.Role == "" || input.Content == "" {
		return "", ErrHistoryInvalidInput
	}
	if !domain.ValidChatType(input.ChatType) || !domain.ValidRole(input.Role) {
		return "", ErrHistoryInvalidInput
	}

	now := time.Now().UTC()
	msg := domain.ChatMessage{
		ID:          domain.NewMessageID(now),
		UserID:      input.UserID,
		ChatType:    input.ChatType,
		SessionID:   input.SessionID,
		Role:        input.Role,
		Content:     input.Content,
		ContextData: input.ContextData,
		Timestamp:   now,
	}

	if err := s.repo.Append(ctx, msg); err != nil {
		return "", err
	}
	return msg.ID, nil
}

// ListSessions devuelve el resumen de sesiones del usuario, la más reciente
// primero.
func (s *HistoryService) ListSessions(ctx context.Context, userID string) ([]domain.SessionSummary, error) {
	if s == nil || s.repo == nil {
		return nil, ErrHistoryServiceNotConfigured
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return []domain.SessionSummary{}, nil
	}
	sessions, err := s.repo.ListSessions(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sessions == nil {
		sessions = []domain.SessionSummary{}
	}
	return sessions, nil
}

// ListMessages devuelve los mensajes de una sesión en orden cronológico.
func (s *HistoryService) ListMessages(ctx context.Context, userID, chatType, sessionID string) ([]domain.ChatMessage, error) {
	if s == nil || s.repo == nil {
		return nil, ErrHistoryServiceNotConfigured
	}
	userID = strings.TrimSpace(userID)
	chatType = strings.TrimSpace(chatType)
	sessionID = strings.TrimSpace(sessionID)
	if userID == "" || chatType == "" || sessionID == "" {
		return nil, ErrHistoryInvalidInput
	}
	messages, err := s.repo.ListMessages(ctx, userID, chatType, sessionID)
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []domain.ChatMessage{}
	}
	return messages, nil
}

// DeleteSession elimina una sesión completa. Es idempotente.
func (s *HistoryService) DeleteSession(ctx context.Context, userID, chatType, sessionID string) error {
	if s == nil || s.repo == nil {
		return ErrHistoryServiceNotConfigured
	}
	userID = strings.TrimSpace(userID)
	chatType = strings.TrimSpace(chatType)
	sessionID = strings.TrimSpace(sessionID)
	if userID == "" || chatType == "" || sessionID == "" {
		return ErrHistoryInvalidInput
	}
	return s.repo.DeleteSession(ctx, userID, chatType, sessionID)
}
