package chatctl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"agrochat/internal/domain"
)

// HistoryClient habla con el History Service HTTP. Cada Append es un POST
// individual; AppendRetry agrega los reintentos acotados con backoff que usa
// la ruta de persistencia autenticada.
type HistoryClient struct {
	baseURL     string
	accessToken string
	client      *http.Client

	// attempts y sleep existen para acotar y testear el retry loop.
	attempts int
	sleep    func(time.Duration)
}

func NewHistoryClient(baseURL, accessToken string, httpClient *http.Client) *HistoryClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &HistoryClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: accessToken,
		client:      httpClient,
		attempts:    3,
		sleep:       time.Sleep,
	}
}

// AppendRequest es el cuerpo de POST /api/chat-history.
type AppendRequest struct {
	ChatType    string          `json:"chatType"`
	SessionID   string          `json:"sessionId"`
	Role        string          `json:"role"`
	Content     string          `json:"content"`
	ContextData json.RawMessage `json:"contextData,omitempty"`
}

type appendResponse struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId"`
}

// Append persiste un mensaje en el servidor y devuelve el id generado.
func (c *HistoryClient) Append(ctx context.Context, req AppendRequest) (string, error) {
	var out appendResponse
	if err := c.do(ctx, http.MethodPost, "/api/chat-history", nil, req, &out); err != nil {
		return "", err
	}
	return out.MessageID, nil
}

// AppendRetry reintenta Append hasta agotar los intentos, esperando
// 1s × intento entre fallos. Devuelve el último error si todos fallan.
func (c *HistoryClient) AppendRetry(ctx context.Context, req AppendRequest) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		id, err := c.Append(ctx, req)
		if err == nil {
			return id, nil
		}
		lastErr = err
		if attempt < c.attempts {
			c.sleep(time.Duration(attempt) * time.Second)
		}
	}
	return "", lastErr
}

type messagesResponse struct {
	SessionID string               `json:"sessionId"`
	ChatType  string               `json:"chatType"`
	Messages  []domain.ChatMessage `json:"messages"`
	Total     int                  `json:"total"`
}

// ListMessages trae los mensajes de una sesión en orden cronológico.
func (c *HistoryClient) ListMessages(ctx context.Context, chatType, sessionID string) ([]domain.ChatMessage, error) {
	query := url.Values{"type": {chatType}, "sessionId": {sessionID}}
	var out messagesResponse
	if err := c.do(ctx, http.MethodGet, "/api/chat-history", query, nil, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

type sessionsResponse struct {
	Sessions []domain.SessionSummary `json:"sessions"`
}

// ListSessions trae el resumen de sesiones del usuario autenticado.
func (c *HistoryClient) ListSessions(ctx context.Context) ([]domain.SessionSummary, error) {
	query := url.Values{"list": {"true"}}
	var out sessionsResponse
	if err := c.do(ctx, http.MethodGet, "/api/chat-history", query, nil, &out); err != nil {
		return nil, err
	}
	return out.Sessions, nil
}

// DeleteSession elimina una sesión completa en el servidor.
func (c *HistoryClient) DeleteSession(ctx context.Context, chatType, sessionID string) error {
	query := url.Values{"type": {chatType}, "sessionId": {sessionID}}
	return c.do(ctx, http.MethodDelete, "/api/chat-history", query, nil, nil)
}

func (c *HistoryClient) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("history http error: status=%d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
