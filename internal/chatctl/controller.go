// Package chatctl implementa el controlador de chat persistente del lado
// cliente: mantiene el estado en memoria de la sesión activa, decide el
// backend de almacenamiento según la identidad, y garantiza entrega
// at-least-once con reintentos acotados y degradación a la caché local.
package chatctl

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"agrochat/internal/domain"
	"agrochat/internal/localcache"
)

var (
	ErrInvalidChatType  = errors.New("invalid chat type")
	ErrSendInProgress   = errors.New("send in progress")
	ErrNotAuthenticated = errors.New("not authenticated")
)

// Controller es el núcleo de reconciliación de una sesión de chat. Una
// instancia posee en exclusiva el estado en memoria de su sesión; dos
// instancias nunca coordinan sobre la misma sesión.
type Controller struct {
	logger   *zap.Logger
	chatType string
	client   *HistoryClient
	local    localcache.Store
	backend  SessionBackend

	// sending cierra la ventana de doble envío: un CAS síncrono tomado
	// antes de iniciar cualquier persistencia asíncrona. Un segundo envío
	// mientras hay uno en vuelo se descarta, no se encola.
	sending atomic.Bool

	mu          sync.Mutex
	sessionID   string
	messages    []domain.ChatMessage
	contextData json.RawMessage
}

// NewController crea el controlador eligiendo el backend una sola vez:
// servidor si hay un HistoryClient (identidad autenticada), caché local si
// no (invitado).
func NewController(logger *zap.Logger, chatType string, client *HistoryClient, local localcache.Store) (*Controller, error) {
	if !domain.ValidChatType(chatType) {
		return nil, ErrInvalidChatType
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Controller{
		logger:   logger,
		chatType: chatType,
		client:   client,
		local:    local,
	}
	if client != nil {
		c.backend = newServerBackend(logger, client, local)
	} else {
		c.backend = newLocalBackend(logger, local)
	}
	return c, nil
}

// Authenticated indica si el backend autoritativo es el servidor.
func (c *Controller) Authenticated() bool { return c.client != nil }

// SessionID devuelve el id de la sesión activa, vacío si no hay ninguna.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Messages devuelve una copia del estado en memoria.
func (c *Controller) Messages() []domain.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.ChatMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

// InitializeSession vacía el estado en memoria y fija la sesión activa,
// generando un id fresco si no se proporciona. No dispara la hidratación:
// esa es responsabilidad del observador del cambio de sesión (Hydrate).
func (c *Controller) InitializeSession(sessionID string) string {
	if strings.TrimSpace(sessionID) == "" {
		sessionID = domain.NewSessionID(c.chatType, time.Now().UTC())
	}
	c.mu.Lock()
	c.sessionID = sessionID
	c.messages = nil
	c.contextData = nil
	c.mu.Unlock()

	c.logger.Debug("session initialized", zap.String("session_id", sessionID))
	return sessionID
}

// Hydrate reemplaza el estado en memoria con el historial del backend
// autoritativo. Los fallos de lectura degradan a historial vacío; nunca se
// devuelve un error de red al flujo de UI.
func (c *Controller) Hydrate(ctx context.Context) error {
	sessionID := c.SessionID()
	if sessionID == "" {
		return nil
	}
	messages, err := c.backend.Hydrate(ctx, c.chatType, sessionID)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.messages = messages
	c.mu.Unlock()
	return nil
}

// AddMessage asigna id y timestamp del lado cliente, agrega el mensaje al
// estado en memoria (actualización optimista) y luego lo persiste en el
// backend elegido. Un contenido vacío tras el trim es un no-op registrado.
func (c *Controller) AddMessage(ctx context.Context, msg domain.ChatMessage, contextData json.RawMessage) error {
	if strings.TrimSpace(msg.Content) == "" {
		c.logger.Warn("empty message dropped", zap.String("role", msg.Role))
		return nil
	}
	if !c.sending.CompareAndSwap(false, true) {
		c.logger.Warn("send already in progress, dropping message")
		return ErrSendInProgress
	}
	defer c.sending.Store(false)

	now := time.Now().UTC()
	msg.ID = domain.NewMessageID(now)
	msg.Timestamp = now

	session := c.appendInMemory(contextData, msg)
	return c.backend.Persist(ctx, session, msg)
}

// AddMessages aplica el contrato de AddMessage a un lote. Los timestamps
// sintéticos (base + índice en milisegundos) preservan el orden relativo de
// mensajes generados en el mismo instante; la persistencia es secuencial en
// el orden del lote, nunca en paralelo.
func (c *Controller) AddMessages(ctx context.Context, batch []domain.ChatMessage, contextData json.RawMessage) error {
	if len(batch) == 0 {
		return nil
	}
	if !c.sending.CompareAndSwap(false, true) {
		c.logger.Warn("send already in progress, dropping batch")
		return ErrSendInProgress
	}
	defer c.sending.Store(false)

	base := time.Now().UTC()
	stamped := make([]domain.ChatMessage, 0, len(batch))
	for i, msg := range batch {
		if strings.TrimSpace(msg.Content) == "" {
			c.logger.Warn("empty message dropped from batch", zap.Int("index", i))
			continue
		}
		ts := base.Add(time.Duration(i) * time.Millisecond)
		msg.ID = domain.NewMessageID(ts)
		msg.Timestamp = ts
		stamped = append(stamped, msg)
	}
	if len(stamped) == 0 {
		return nil
	}

	session := c.appendInMemory(contextData, stamped...)
	for _, msg := range stamped {
		if err := c.backend.Persist(ctx, session, msg); err != nil {
			return err
		}
	}
	return nil
}

// ClearChat vacía el estado en memoria. Para invitados también elimina la
// entrada de la caché local; para sesiones autenticadas es local-only.
func (c *Controller) ClearChat(ctx context.Context) error {
	c.mu.Lock()
	sessionID := c.sessionID
	c.messages = nil
	c.contextData = nil
	c.mu.Unlock()

	if sessionID == "" {
		return nil
	}
	return c.backend.Clear(ctx, c.chatType, sessionID)
}

// MigrateLocalToServer reenvía al servidor cada mensaje cacheado localmente
// de la sesión activa y elimina la entrada local solo cuando todos
// persistieron. Se invoca en la transición invitado → autenticado con una
// sesión no vacía.
func (c *Controller) MigrateLocalToServer(ctx context.Context) error {
	if c.client == nil {
		return ErrNotAuthenticated
	}
	sessionID := c.SessionID()
	if sessionID == "" {
		return nil
	}
	key := localcache.SessionKey(c.chatType, sessionID)
	return c.replayAndDelete(ctx, key)
}

// SweepStranded reenvía al servidor todas las entradas chat- de la caché
// local, incluidas las escrituras encalladas por fallbacks previos, y borra
// cada entrada tras un replay completamente exitoso.
func (c *Controller) SweepStranded(ctx context.Context) error {
	if c.client == nil {
		return ErrNotAuthenticated
	}
	keys, err := c.local.Keys(ctx, localcache.KeyPrefix)
	if err != nil {
		return err
	}
	var firstErr error
	for _, key := range keys {
		if err := c.replayAndDelete(ctx, key); err != nil {
			c.logger.Warn("stranded replay failed", zap.String("key", key), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (c *Controller) replayAndDelete(ctx context.Context, key string) error {
	session, err := c.local.Load(ctx, key)
	if err != nil {
		return err
	}
	if session == nil || len(session.Messages) == 0 {
		return nil
	}

	chatType, sessionID := session.ChatType, session.ID
	if chatType == "" || sessionID == "" {
		chatType, sessionID = splitSessionKey(key)
	}

	for _, msg := range session.Messages {
		_, err := c.client.AppendRetry(ctx, AppendRequest{
			ChatType:    chatType,
			SessionID:   sessionID,
			Role:        msg.Role,
			Content:     msg.Content,
			ContextData: session.ContextData,
		})
		if err != nil {
			// La entrada local se conserva: un barrido posterior la retoma.
			return err
		}
	}
	return c.local.Delete(ctx, key)
}

// ListSessions devuelve el listado de sesiones para la pantalla de
// historial: servidor si hay identidad autenticada, con degradación al scan
// de la caché local si la red falla; solo caché local para invitados. Si
// ambos fallan el resultado es una lista vacía, no un error.
func (c *Controller) ListSessions(ctx context.Context) []domain.SessionSummary {
	if c.client != nil {
		sessions, err := c.client.ListSessions(ctx)
		if err == nil {
			return sessions
		}
		c.logger.Warn("server session list failed, scanning local cache", zap.Error(err))
	}
	return c.scanLocalSessions(ctx)
}

// DeleteSession borra una sesión completa del backend que la posee.
func (c *Controller) DeleteSession(ctx context.Context, chatType, sessionID string) error {
	if c.client != nil {
		return c.client.DeleteSession(ctx, chatType, sessionID)
	}
	return c.local.Delete(ctx, localcache.SessionKey(chatType, sessionID))
}

// PurgeGuestData elimina todas las entradas de sesión de invitado de la
// caché local. Se invoca al cerrar sesión.
func (c *Controller) PurgeGuestData(ctx context.Context) error {
	return c.local.PurgeAll(ctx, localcache.KeyPrefix)
}

func (c *Controller) appendInMemory(contextData json.RawMessage, msgs ...domain.ChatMessage) domain.ChatSession {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sessionID == "" {
		c.sessionID = domain.NewSessionID(c.chatType, time.Now().UTC())
		c.logger.Debug("session auto-initialized", zap.String("session_id", c.sessionID))
	}
	if contextData != nil {
		c.contextData = contextData
	}
	c.messages = append(c.messages, msgs...)

	snapshot := make([]domain.ChatMessage, len(c.messages))
	copy(snapshot, c.messages)
	return domain.ChatSession{
		ID:          c.sessionID,
		ChatType:    c.chatType,
		Messages:    snapshot,
		ContextData: c.contextData,
		LastUpdated: time.Now().UTC(),
	}
}

func (c *Controller) scanLocalSessions(ctx context.Context) []domain.SessionSummary {
	keys, err := c.local.Keys(ctx, localcache.KeyPrefix)
	if err != nil {
		c.logger.Warn("local session scan failed", zap.Error(err))
		return []domain.SessionSummary{}
	}

	summaries := make([]domain.SessionSummary, 0, len(keys))
	for _, key := range keys {
		session, err := c.local.Load(ctx, key)
		if err != nil || session == nil || len(session.Messages) == 0 {
			continue
		}
		chatType, sessionID := session.ChatType, session.ID
		if chatType == "" || sessionID == "" {
			chatType, sessionID = splitSessionKey(key)
		}
		summaries = append(summaries, domain.SessionSummary{
			ID:           sessionID,
			ChatType:     chatType,
			LastUpdated:  session.LastUpdated,
			MessageCount: len(session.Messages),
			Title:        domain.TruncateTitle(session.Messages[0].Content),
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].LastUpdated.After(summaries[j].LastUpdated)
	})
	return summaries
}

// splitSessionKey recupera (chatType, sessionId) de una clave
// chat-<chatType>-<sessionId>; el chatType nunca contiene guiones.
func splitSessionKey(key string) (string, string) {
	rest := strings.TrimPrefix(key, localcache.KeyPrefix)
	if i := strings.Index(rest, "-"); i > 0 {
		return rest[:i], rest[i+1:]
	}
	return "", rest
}
