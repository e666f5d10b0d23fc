package localcache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"agrochat/internal/domain"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "cache.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_SaveLoadRoundtrip(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	session := domain.ChatSession{
		ID:       "s1",
		ChatType: domain.ChatTypeDiagnosis,
		Messages: []domain.ChatMessage{
			{ID: "m1", Role: domain.RoleUser, Content: "mi tomate tiene manchas"},
			{ID: "m2", Role: domain.RoleAssistant, Content: "puede ser tizón"},
		},
		LastUpdated: time.Now().UTC(),
	}
	key := SessionKey(session.ChatType, session.ID)

	if err := store.Save(ctx, key, session); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := store.Load(ctx, key)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded == nil || len(loaded.Messages) != 2 {
		t.Fatalf("unexpected session %+v", loaded)
	}
	if loaded.Messages[1].Content != "puede ser tizón" {
		t.Fatalf("unexpected message %+v", loaded.Messages[1])
	}
}

func TestSQLiteStore_SaveOverwrites(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()
	key := "chat-weather-s1"

	if err := store.Save(ctx, key, domain.ChatSession{ID: "s1", Messages: []domain.ChatMessage{{ID: "m1", Content: "a"}}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Save(ctx, key, domain.ChatSession{ID: "s1", Messages: []domain.ChatMessage{{ID: "m1", Content: "a"}, {ID: "m2", Content: "b"}}}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	loaded, err := store.Load(ctx, key)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded == nil || len(loaded.Messages) != 2 {
		t.Fatalf("expected overwritten snapshot, got %+v", loaded)
	}
}

func TestSQLiteStore_LoadAbsentReturnsNil(t *testing.T) {
	store := newTestSQLiteStore(t)

	session, err := store.Load(context.Background(), "chat-weather-missing")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if session != nil {
		t.Fatalf("expected nil for absent key, got %+v", session)
	}
}

func TestSQLiteStore_CorruptedPayloadTreatedAsAbsent(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	if _, err := store.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?);`,
		"chat-weather-bad", "{not json", time.Now().UTC()); err != nil {
		t.Fatalf("seed corrupted row: %v", err)
	}

	session, err := store.Load(ctx, "chat-weather-bad")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if session != nil {
		t.Fatalf("expected corrupted payload treated as absent, got %+v", session)
	}
}

func TestSQLiteStore_KeysAndPurge(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	for _, key := range []string{"chat-diagnosis-s1", "chat-weather-s2", "profile"} {
		if err := store.Save(ctx, key, domain.ChatSession{ID: key}); err != nil {
			t.Fatalf("save %s: %v", key, err)
		}
	}

	keys, err := store.Keys(ctx, KeyPrefix)
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if len(keys) != 2 || keys[0] != "chat-diagnosis-s1" || keys[1] != "chat-weather-s2" {
		t.Fatalf("unexpected keys %v", keys)
	}

	if err := store.PurgeAll(ctx, KeyPrefix); err != nil {
		t.Fatalf("purge: %v", err)
	}
	keys, err = store.Keys(ctx, "")
	if err != nil {
		t.Fatalf("keys after purge: %v", err)
	}
	if len(keys) != 1 || keys[0] != "profile" {
		t.Fatalf("expected only non-chat keys, got %v", keys)
	}
}

func TestLikePattern_EscapesWildcards(t *testing.T) {
	if got := likePattern("chat_%"); got != `chat\_\%%` {
		t.Fatalf("unexpected pattern %q", got)
	}
}
