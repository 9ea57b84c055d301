package repository

import (
	"context"
	"errors"
	"fmt"

	"evolution_relay/internal/entities"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ConversationRepository struct {
	db *pgxpool.Pool
}

func NewConversationRepository(db *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{db: db}
}

const conversationColumns = "id::text, contact_id::text, tenant_id::text, status, channel, priority, created_at, updated_at"

func scanConversation(row rowScanner) (*entities.Conversation, error) {
	var c entities.Conversation
	if err := row.Scan(&c.ID, &c.ContactID, &c.TenantID, &c.Status, &c.Channel, &c.Priority, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// LatestOpen returns the most recently updated open conversation of a contact.
func (r *ConversationRepository) LatestOpen(ctx context.Context, contactID string) (*entities.Conversation, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+conversationColumns+` FROM conversations
		WHERE contact_id=$1 AND status = ANY($2)
		ORDER BY updated_at DESC
		LIMIT 1
	`, contactID, entities.OpenStatuses)
	c, err := scanConversation(row)
	if err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

// Create opens a conversation. The partial unique index on open
// conversations makes a concurrent duplicate a no-op; created is false
// when another writer got there first and its row is returned instead.
func (r *ConversationRepository) Create(ctx context.Context, c *entities.Conversation) (*entities.Conversation, bool, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO conversations (contact_id, tenant_id, status, channel, priority)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (contact_id) WHERE status IN ('active', 'in_service') DO NOTHING
		RETURNING `+conversationColumns,
		c.ContactID, c.TenantID, c.Status, c.Channel, c.Priority)
	created, err := scanConversation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		existing, err := r.LatestOpen(ctx, c.ContactID)
		return existing, false, err
	}
	if err != nil {
		return nil, false, fmt.Errorf("insert conversation: %w", err)
	}
	return created, true, nil
}

func (r *ConversationRepository) Get(ctx context.Context, tenantID, id string) (*entities.Conversation, error) {
	row := r.db.QueryRow(ctx,
		"SELECT "+conversationColumns+" FROM conversations WHERE id=$1 AND tenant_id=$2", id, tenantID)
	c, err := scanConversation(row)
	if err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

// ListByTenant returns the tenant's conversations, newest first. An empty
// status lists every status.
func (r *ConversationRepository) ListByTenant(ctx context.Context, tenantID, status string, limit int) ([]entities.Conversation, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+conversationColumns+` FROM conversations
		WHERE tenant_id=$1 AND ($2 = '' OR status = $2)
		ORDER BY updated_at DESC
		LIMIT $3
	`, tenantID, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	conversations := []entities.Conversation{}
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, *c)
	}
	return conversations, rows.Err()
}

func (r *ConversationRepository) SetStatus(ctx context.Context, tenantID, id, status string) error {
	tag, err := r.db.Exec(ctx,
		"UPDATE conversations SET status=$1, updated_at=NOW() WHERE id=$2 AND tenant_id=$3",
		status, id, tenantID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return entities.ErrNotFound
	}
	return nil
}
