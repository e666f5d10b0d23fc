package chatctl

import (
	"context"
	"time"

	"go.uber.org/zap"

	"agrochat/internal/domain"
	"agrochat/internal/localcache"
)

// SessionBackend es la estrategia de almacenamiento de una sesión. Se elige
// una sola vez al instanciar el controlador, según la identidad vigente:
// el servidor es autoritativo para usuarios autenticados y la caché local
// para invitados.
type SessionBackend interface {
	// Persist garantiza entrega at-least-once del mensaje. session es el
	// snapshot completo en memoria, msg ya incluido.
	Persist(ctx context.Context, session domain.ChatSession, msg domain.ChatMessage) error

	// Hydrate devuelve el historial de la sesión, o vacío si no hay nada
	// recuperable. Nunca propaga un error de red al flujo de UI.
	Hydrate(ctx context.Context, chatType, sessionID string) ([]domain.ChatMessage, error)

	// Clear descarta el respaldo de la sesión cuando aplica.
	Clear(ctx context.Context, chatType, sessionID string) error
}

// localBackend respalda sesiones de invitado en la caché local con
// sobreescritura completa del snapshot.
type localBackend struct {
	logger *zap.Logger
	store  localcache.Store
}

func newLocalBackend(logger *zap.Logger, store localcache.Store) *localBackend {
	return &localBackend{logger: logger, store: store}
}

func (b *localBackend) Persist(ctx context.Context, session domain.ChatSession, _ domain.ChatMessage) error {
	key := localcache.SessionKey(session.ChatType, session.ID)
	if err := b.store.Save(ctx, key, session); err != nil {
		// Un fallo de la caché local no debe llegar a la UI.
		b.logger.Warn("local save failed", zap.String("key", key), zap.Error(err))
	}
	return nil
}

func (b *localBackend) Hydrate(ctx context.Context, chatType, sessionID string) ([]domain.ChatMessage, error) {
	session, err := b.store.Load(ctx, localcache.SessionKey(chatType, sessionID))
	if err != nil {
		b.logger.Warn("local load failed", zap.String("session_id", sessionID), zap.Error(err))
		return nil, nil
	}
	if session == nil {
		return nil, nil
	}
	return session.Messages, nil
}

func (b *localBackend) Clear(ctx context.Context, chatType, sessionID string) error {
	return b.store.Delete(ctx, localcache.SessionKey(chatType, sessionID))
}

// serverBackend respalda sesiones autenticadas en el History Service, con
// reintentos acotados y degradación a la caché local como durabilidad de
// último recurso.
type serverBackend struct {
	logger *zap.Logger
	client *HistoryClient
	store  localcache.Store
}

func newServerBackend(logger *zap.Logger, client *HistoryClient, store localcache.Store) *serverBackend {
	return &serverBackend{logger: logger, client: client, store: store}
}

func (b *serverBackend) Persist(ctx context.Context, session domain.ChatSession, msg domain.ChatMessage) error {
	_, err := b.client.AppendRetry(ctx, AppendRequest{
		ChatType:    session.ChatType,
		SessionID:   session.ID,
		Role:        msg.Role,
		Content:     msg.Content,
		ContextData: session.ContextData,
	})
	if err == nil {
		return nil
	}

	// Agotados los reintentos: el mensaje se encalla en la caché local en
	// lugar de perderse. SweepStranded lo devuelve al servidor más tarde.
	b.logger.Warn("server append failed, falling back to local cache",
		zap.String("session_id", session.ID), zap.Error(err))
	b.appendLocal(ctx, session, msg)
	return nil
}

func (b *serverBackend) appendLocal(ctx context.Context, session domain.ChatSession, msg domain.ChatMessage) {
	key := localcache.SessionKey(session.ChatType, session.ID)
	stored, err := b.store.Load(ctx, key)
	if err != nil || stored == nil {
		stored = &domain.ChatSession{
			ID:          session.ID,
			ChatType:    session.ChatType,
			ContextData: session.ContextData,
		}
	}
	stored.Messages = append(stored.Messages, msg)
	stored.LastUpdated = time.Now().UTC()
	if err := b.store.Save(ctx, key, *stored); err != nil {
		b.logger.Error("fallback local save failed", zap.String("key", key), zap.Error(err))
	}
}

func (b *serverBackend) Hydrate(ctx context.Context, chatType, sessionID string) ([]domain.ChatMessage, error) {
	messages, err := b.client.ListMessages(ctx, chatType, sessionID)
	if err == nil {
		return messages, nil
	}
	b.logger.Warn("server history fetch failed, trying local cache",
		zap.String("session_id", sessionID), zap.Error(err))

	session, lerr := b.store.Load(ctx, localcache.SessionKey(chatType, sessionID))
	if lerr != nil || session == nil {
		return nil, nil
	}
	return session.Messages, nil
}

// Clear es local-only para sesiones autenticadas: no hay purga del servidor
// desde el flujo de chat, una limitación deliberada. El borrado explícito de
// una sesión pasa por DeleteSession del controlador.
func (b *serverBackend) Clear(_ context.Context, _, _ string) error {
	return nil
}
