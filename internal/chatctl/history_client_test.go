package chatctl

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestHistoryClient_AppendSendsBearerAndBody(t *testing.T) {
	var gotAuth string
	var gotBody AppendRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/chat-history" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{"success": true, "messageId": "1700000000000-abc123def"})
	}))
	defer server.Close()

	client := NewHistoryClient(server.URL, "token-1", nil)
	id, err := client.Append(context.Background(), AppendRequest{
		ChatType:  "weather",
		SessionID: "weather-1700000000000-abc",
		Role:      "user",
		Content:   "¿Llueve hoy?",
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if id != "1700000000000-abc123def" {
		t.Fatalf("unexpected id %q", id)
	}
	if gotAuth != "Bearer token-1" {
		t.Fatalf("expected bearer header, got %q", gotAuth)
	}
	if gotBody.Content != "¿Llueve hoy?" || gotBody.ChatType != "weather" {
		t.Fatalf("unexpected body %+v", gotBody)
	}
}

func TestHistoryClient_AppendRetrySucceedsAfterFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"success": true, "messageId": "id-ok"})
	}))
	defer server.Close()

	client := NewHistoryClient(server.URL, "", nil)
	var slept []time.Duration
	client.sleep = func(d time.Duration) { slept = append(slept, d) }

	id, err := client.AppendRetry(context.Background(), AppendRequest{ChatType: "weather", SessionID: "s", Role: "user", Content: "x"})
	if err != nil {
		t.Fatalf("append retry: %v", err)
	}
	if id != "id-ok" {
		t.Fatalf("unexpected id %q", id)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
	// Backoff lineal: 1s tras el primer fallo, 2s tras el segundo.
	if len(slept) != 2 || slept[0] != time.Second || slept[1] != 2*time.Second {
		t.Fatalf("unexpected backoff %v", slept)
	}
}

func TestHistoryClient_AppendRetryExhaustsAttempts(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewHistoryClient(server.URL, "", nil)
	client.sleep = func(time.Duration) {}

	if _, err := client.AppendRetry(context.Background(), AppendRequest{ChatType: "weather", SessionID: "s", Role: "user", Content: "x"}); err == nil {
		t.Fatalf("expected error after exhausting attempts")
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestHistoryClient_ListMessages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("type") != "diagnosis" || r.URL.Query().Get("sessionId") != "s1" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"sessionId": "s1",
			"chatType":  "diagnosis",
			"messages": []map[string]any{
				{"id": "m1", "role": "user", "content": "hola"},
			},
			"total": 1,
		})
	}))
	defer server.Close()

	client := NewHistoryClient(server.URL, "", nil)
	messages, err := client.ListMessages(context.Background(), "diagnosis", "s1")
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(messages) != 1 || messages[0].Content != "hola" {
		t.Fatalf("unexpected messages %+v", messages)
	}
}

func TestHistoryClient_ListSessions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("list") != "true" {
			t.Errorf("expected list=true, got %s", r.URL.RawQuery)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"sessions": []map[string]any{
				{"id": "s1", "chatType": "weather", "messageCount": 4, "title": "¿Llueve hoy?"},
			},
		})
	}))
	defer server.Close()

	client := NewHistoryClient(server.URL, "", nil)
	sessions, err := client.ListSessions(context.Background())
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].Title != "¿Llueve hoy?" {
		t.Fatalf("unexpected sessions %+v", sessions)
	}
}

func TestHistoryClient_DeleteSession(t *testing.T) {
	var gotMethod, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotQuery = r.URL.RawQuery
		json.NewEncoder(w).Encode(map[string]any{"success": true})
	}))
	defer server.Close()

	client := NewHistoryClient(server.URL, "", nil)
	if err := client.DeleteSession(context.Background(), "weather", "s1"); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if gotMethod != http.MethodDelete {
		t.Fatalf("expected DELETE, got %s", gotMethod)
	}
	if gotQuery != "sessionId=s1&type=weather" {
		t.Fatalf("unexpected query %s", gotQuery)
	}
}
