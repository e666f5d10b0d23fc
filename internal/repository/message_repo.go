package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"agrochat/internal/domain"
)

// MessageRepository es el contrato de persistencia del historial de chat.
type MessageRepository interface {
	Append(ctx context.Context, message domain.ChatMessage) error
	ListSessions(ctx context.Context, userID string) ([]domain.SessionSummary, error)
	ListMessages(ctx context.Context, userID, chatType, sessionID string) ([]domain.ChatMessage, error)
	DeleteSession(ctx context.Context, userID, chatType, sessionID string) error
}

type PgMessageRepository struct {
	pool *pgxpool.Pool
}

func NewPgMessageRepository(pool *pgxpool.Pool) *PgMessageRepository {
	return &PgMessageRepository{pool: pool}
}

func (r *PgMessageRepository) Append(ctx context.Context, message domain.ChatMessage) error {
	const query = `
		INSERT INTO chat_messages (id, user_id, chat_type, session_id, role, content, context_data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	var contextData interface{}
	if len(message.ContextData) > 0 {
		contextData = []byte(message.ContextData)
	}

	_, err := r.pool.Exec(ctx, query,
		message.ID,
		message.UserID,
		message.ChatType,
		message.SessionID,
		message.Role,
		message.Content,
		contextData,
		message.Timestamp,
	)
	return err
}

func (r *PgMessageRepository) ListSessions(ctx context.Context, userID string) ([]domain.SessionSummary, error) {
	const query = `
		SELECT
			session_id,
			chat_type,
			MAX(created_at) AS last_updated,
			COUNT(*) AS message_count,
			(
				SELECT content
				FROM chat_messages cm2
				WHERE cm2.session_id = cm.session_id
					AND cm2.user_id = cm.user_id
				ORDER BY created_at ASC
				LIMIT 1
			) AS first_message
		FROM chat_messages cm
		WHERE user_id = $1
		GROUP BY session_id, chat_type, user_id
		ORDER BY last_updated DESC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []domain.SessionSummary
	for rows.Next() {
		var s domain.SessionSummary
		var count int64
		var firstMessage *string

		if err := rows.Scan(&s.ID, &s.ChatType, &s.LastUpdated, &count, &firstMessage); err != nil {
			return nil, err
		}
		s.MessageCount = int(count)
		if firstMessage != nil {
			s.Title = domain.TruncateTitle(*firstMessage)
		}
		sessions = append(sessions, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

func (r *PgMessageRepository) ListMessages(ctx context.Context, userID, chatType, sessionID string) ([]domain.ChatMessage, error) {
	const query = `
		SELECT id, role, content, context_data, created_at
		FROM chat_messages
		WHERE user_id = $1 AND chat_type = $2 AND session_id = $3
		ORDER BY created_at ASC
	`

	rows, err := r.pool.Query(ctx, query, userID, chatType, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.ChatMessage
	for rows.Next() {
		var msg domain.ChatMessage
		var contextData []byte

		if err := rows.Scan(&msg.ID, &msg.Role, &msg.Content, &contextData, &msg.Timestamp); err != nil {
			return nil, err
		}
		if len(contextData) > 0 {
			msg.ContextData = contextData
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return messages, nil
}

// DeleteSession elimina todos los mensajes de una sesión. Borrar una sesión
// inexistente no es un error.
func (r *PgMessageRepository) DeleteSession(ctx context.Context, userID, chatType, sessionID string) error {
	const query = `
		DELETE FROM chat_messages
		WHERE user_id = $1 AND chat_type = $2 AND session_id = $3
	`
	_, err := r.pool.Exec(ctx, query, userID, chatType, sessionID)
	return err
}
