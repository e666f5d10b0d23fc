// Package localcache es el análogo del almacenamiento local del navegador:
// un key-value durable por dispositivo que guarda snapshots completos de
// sesiones de invitado bajo claves chat-<chatType>-<sessionId>.
package localcache

import (
	"context"
	"fmt"

	"agrochat/internal/domain"
)

// KeyPrefix agrupa todas las entradas de sesiones de chat. Otras features
// usan claves propias (p. ej. farmLogEntries) que nunca llevan este prefijo.
const KeyPrefix = "chat-"

// SessionKey arma la clave de una sesión: chat-<chatType>-<sessionId>.
func SessionKey(chatType, sessionID string) string {
	return fmt.Sprintf("%s%s-%s", KeyPrefix, chatType, sessionID)
}

// Store es un almacén de snapshots de sesión. Save reemplaza el snapshot
// completo; no hay escrituras incrementales ni merge entre escritores
// concurrentes (last-writer-wins).
type Store interface {
	// Save serializa y sobreescribe la sesión completa bajo su clave.
	Save(ctx context.Context, key string, session domain.ChatSession) error

	// Load devuelve la sesión o nil si no existe. Un payload corrupto se
	// trata como ausente, nunca como error para el flujo que llama.
	Load(ctx context.Context, key string) (*domain.ChatSession, error)

	// Delete elimina la entrada. Borrar una clave inexistente no es error.
	Delete(ctx context.Context, key string) error

	// Keys lista las claves existentes con el prefijo dado.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// PurgeAll elimina todas las entradas con el prefijo dado (sign-out).
	PurgeAll(ctx context.Context, prefix string) error

	// Close libera recursos del almacén.
	Close() error
}
