package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"evolution_relay/internal/entities"

	"github.com/jackc/pgx/v5/pgxpool"
)

type MessageRepository struct {
	db *pgxpool.Pool
}

func NewMessageRepository(db *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create appends a message and touches the conversation so that it
// sorts as most recently updated.
func (r *MessageRepository) Create(ctx context.Context, m *entities.Message) (*entities.Message, error) {
	metadata, err := json.Marshal(m.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	out := *m
	err = tx.QueryRow(ctx, `
		INSERT INTO messages (conversation_id, content, sender_kind, sender_name, kind, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id::text, created_at
	`, m.ConversationID, m.Content, m.SenderKind, m.SenderName, m.Kind, metadata).Scan(&out.ID, &out.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	if _, err := tx.Exec(ctx, "UPDATE conversations SET updated_at=NOW() WHERE id=$1", m.ConversationID); err != nil {
		return nil, fmt.Errorf("touch conversation: %w", err)
	}
	return &out, tx.Commit(ctx)
}

func (r *MessageRepository) ListByConversation(ctx context.Context, conversationID string, limit int) ([]entities.Message, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id::text, conversation_id::text, content, sender_kind, COALESCE(sender_name, ''), kind, metadata, created_at
		FROM messages WHERE conversation_id=$1
		ORDER BY created_at ASC
		LIMIT $2
	`, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []entities.Message{}
	for rows.Next() {
		var m entities.Message
		var metadata []byte
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Content, &m.SenderKind, &m.SenderName, &m.Kind, &metadata, &m.CreatedAt); err != nil {
			return nil, err
		}
		if len(metadata) > 0 {
			_ = json.Unmarshal(metadata, &m.Metadata)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
