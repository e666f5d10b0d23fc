package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisRefreshKeyPrefix separa los jti de AgroChat de cualquier otra clave
// que comparta la instancia de redis.
const redisRefreshKeyPrefix = "agrochat:auth:refresh:"

// defaultStoreOpTimeout acota cada operación contra redis para que un redis
// caído no bloquee el flujo de login.
const defaultStoreOpTimeout = 500 * time.Millisecond

// RefreshTokenStore registra los jti de refresh tokens vigentes, junto al
// usuario que los emitió. Un jti ausente se considera revocado: tanto la
// rotación como el logout lo eliminan.
type RefreshTokenStore interface {
	Store(jti, userID string, ttl time.Duration) error
	Exists(jti string) (bool, error)
	Revoke(jti string) error
}

type refreshEntry struct {
	userID    string
	expiresAt time.Time
}

// memoryRefreshTokenStore es el driver por defecto cuando no hay redis
// configurado. Las entradas vencidas se podan perezosamente en cada Store.
type memoryRefreshTokenStore struct {
	mu      sync.Mutex
	entries map[string]refreshEntry
}

func NewMemoryRefreshTokenStore() RefreshTokenStore {
	return &memoryRefreshTokenStore{
		entries: make(map[string]refreshEntry),
	}
}

func (s *memoryRefreshTokenStore) Store(jti, userID string, ttl time.Duration) error {
	if strings.TrimSpace(jti) == "" {
		return nil
	}
	now := time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, entry := range s.entries {
		if now.After(entry.expiresAt) {
			delete(s.entries, key)
		}
	}
	s.entries[jti] = refreshEntry{userID: userID, expiresAt: now.Add(ttl)}
	return nil
}

func (s *memoryRefreshTokenStore) Exists(jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[jti]
	if !ok {
		return false, nil
	}
	if time.Now().UTC().After(entry.expiresAt) {
		delete(s.entries, jti)
		return false, nil
	}
	return true, nil
}

func (s *memoryRefreshTokenStore) Revoke(jti string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, jti)
	return nil
}

// redisRefreshTokenStore respalda los jti en redis, lo que permite revocar
// sesiones desde cualquier réplica del servicio.
type redisRefreshTokenStore struct {
	client    *redis.Client
	opTimeout time.Duration
}

// NewRedisRefreshTokenStore crea el driver redis. opTimeout acota cada
// operación; un valor no positivo usa el timeout por defecto.
func NewRedisRefreshTokenStore(client *redis.Client, opTimeout time.Duration) RefreshTokenStore {
	if client == nil {
		return nil
	}
	if opTimeout <= 0 {
		opTimeout = defaultStoreOpTimeout
	}
	return &redisRefreshTokenStore{
		client:    client,
		opTimeout: opTimeout,
	}
}

func (s *redisRefreshTokenStore) Store(jti, userID string, ttl time.Duration) error {
	if strings.TrimSpace(jti) == "" {
		return nil
	}
	ctx, cancel := s.opContext()
	defer cancel()
	return s.client.Set(ctx, redisRefreshKeyPrefix+jti, userID, ttl).Err()
}

func (s *redisRefreshTokenStore) Exists(jti string) (bool, error) {
	if strings.TrimSpace(jti) == "" {
		return false, nil
	}
	ctx, cancel := s.opContext()
	defer cancel()
	n, err := s.client.Exists(ctx, redisRefreshKeyPrefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *redisRefreshTokenStore) Revoke(jti string) error {
	if strings.TrimSpace(jti) == "" {
		return nil
	}
	ctx, cancel := s.opContext()
	defer cancel()
	return s.client.Del(ctx, redisRefreshKeyPrefix+jti).Err()
}

func (s *redisRefreshTokenStore) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.opTimeout)
}
