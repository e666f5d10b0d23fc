package service

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"testing"

	"agrochat/internal/domain"
)

type mockMessageRepo struct {
	appended []domain.ChatMessage
	sessions []domain.SessionSummary
	messages []domain.ChatMessage
	deleted  []string
	err      error
}

func (m *mockMessageRepo) Append(_ context.Context, msg domain.ChatMessage) error {
	if m.err != nil {
		return m.err
	}
	m.appended = append(m.appended, msg)
	return nil
}

func (m *mockMessageRepo) ListSessions(_ context.Context, _ string) ([]domain.SessionSummary, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.sessions, nil
}

func (m *mockMessageRepo) ListMessages(_ context.Context, _, _, _ string) ([]domain.ChatMessage, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.messages, nil
}

func (m *mockMessageRepo) DeleteSession(_ context.Context, userID, chatType, sessionID string) error {
	if m.err != nil {
		return m.err
	}
	m.deleted = append(m.deleted, userID+"|"+chatType+"|"+sessionID)
	return nil
}

func TestHistoryService_AppendGeneratesID(t *testing.T) {
	repo := &mockMessageRepo{}
	svc := NewHistoryService(repo)

	id, err := svc.Append(context.Background(), AppendInput{
		UserID:    "u1",
		ChatType:  domain.ChatTypeDiagnosis,
		SessionID: "diagnosis-1700000000000-abc123def",
		Role:      domain.RoleUser,
		Content:   "  mi cultivo tiene manchas  ",
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if id == "" {
		t.Fatalf("expected generated id")
	}

	parts := strings.SplitN(id, "-", 2)
	if len(parts) != 2 {
		t.Fatalf("expected <millis>-<suffix> id, got %q", id)
	}
	if _, err := strconv.ParseInt(parts[0], 10, 64); err != nil {
		t.Fatalf("expected millis prefix, got %q", id)
	}

	if len(repo.appended) != 1 {
		t.Fatalf("expected one appended message, got %d", len(repo.appended))
	}
	if repo.appended[0].Content != "mi cultivo tiene manchas" {
		t.Fatalf("expected trimmed content, got %q", repo.appended[0].Content)
	}
}

func TestHistoryService_AppendRejectsInvalidInput(t *testing.T) {
	repo := &mockMessageRepo{}
	svc := NewHistoryService(repo)

	cases := []AppendInput{
		{UserID: "u1", ChatType: domain.ChatTypeWeather, SessionID: "s1", Role: domain.RoleUser},
		{UserID: "u1", ChatType: domain.ChatTypeWeather, SessionID: "s1", Role: domain.RoleUser, Content: "   "},
		{UserID: "u1", ChatType: "pricing", SessionID: "s1", Role: domain.RoleUser, Content: "hola"},
		{UserID: "u1", ChatType: domain.ChatTypeWeather, SessionID: "s1", Role: "system", Content: "hola"},
		{UserID: "", ChatType: domain.ChatTypeWeather, SessionID: "s1", Role: domain.RoleUser, Content: "hola"},
		{UserID: "u1", ChatType: domain.ChatTypeWeather, SessionID: "", Role: domain.RoleUser, Content: "hola"},
	}
	for i, input := range cases {
		if _, err := svc.Append(context.Background(), input); !errors.Is(err, ErrHistoryInvalidInput) {
			t.Fatalf("case %d: expected ErrHistoryInvalidInput, got %v", i, err)
		}
	}
	if len(repo.appended) != 0 {
		t.Fatalf("expected no messages persisted, got %d", len(repo.appended))
	}
}

func TestHistoryService_AppendKeepsContextData(t *testing.T) {
	repo := &mockMessageRepo{}
	svc := NewHistoryService(repo)

	raw := json.RawMessage(`{"cropType":"maíz"}`)
	if _, err := svc.Append(context.Background(), AppendInput{
		UserID:      domain.GuestUserID,
		ChatType:    domain.ChatTypeDiagnosis,
		SessionID:   "s1",
		Role:        domain.RoleAssistant,
		Content:     "respuesta",
		ContextData: raw,
	}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if string(repo.appended[0].ContextData) != string(raw) {
		t.Fatalf("expected context data preserved, got %s", repo.appended[0].ContextData)
	}
}

func TestHistoryService_ListSessionsEmptyIsNotNil(t *testing.T) {
	repo := &mockMessageRepo{}
	svc := NewHistoryService(repo)

	sessions, err := svc.ListSessions(context.Background(), "u1")
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if sessions == nil || len(sessions) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", sessions)
	}
}

func TestHistoryService_ListMessagesRequiresAllFields(t *testing.T) {
	svc := NewHistoryService(&mockMessageRepo{})

	if _, err := svc.ListMessages(context.Background(), "u1", "", "s1"); !errors.Is(err, ErrHistoryInvalidInput) {
		t.Fatalf("expected ErrHistoryInvalidInput, got %v", err)
	}
	if _, err := svc.ListMessages(context.Background(), "u1", domain.ChatTypeWeather, ""); !errors.Is(err, ErrHistoryInvalidInput) {
		t.Fatalf("expected ErrHistoryInvalidInput, got %v", err)
	}
}

func TestHistoryService_DeleteSessionDelegates(t *testing.T) {
	repo := &mockMessageRepo{}
	svc := NewHistoryService(repo)

	if err := svc.DeleteSession(context.Background(), "u1", domain.ChatTypeWeather, "s1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(repo.deleted) != 1 || repo.deleted[0] != "u1|weather|s1" {
		t.Fatalf("unexpected delete call: %v", repo.deleted)
	}
}

func TestHistoryService_NotConfigured(t *testing.T) {
	var svc *HistoryService
	if _, err := svc.Append(context.Background(), AppendInput{}); !errors.Is(err, ErrHistoryServiceNotConfigured) {
		t.Fatalf("expected ErrHistoryServiceNotConfigured, got %v", err)
	}
}
