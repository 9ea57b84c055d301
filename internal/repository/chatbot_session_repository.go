package repository

import (
	"context"

	"evolution_relay/internal/entities"

	"github.com/jackc/pgx/v5/pgxpool"
)

type ChatbotSessionRepository struct {
	db *pgxpool.Pool
}

func NewChatbotSessionRepository(db *pgxpool.Pool) *ChatbotSessionRepository {
	return &ChatbotSessionRepository{db: db}
}

// HasActive reports whether the conversation has a running chatbot flow.
func (r *ChatbotSessionRepository) HasActive(ctx context.Context, conversationID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM chatbot_sessions WHERE conversation_id=$1 AND status=$2)",
		conversationID, entities.SessionActive).Scan(&exists)
	return exists, err
}
