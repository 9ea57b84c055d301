package repository

import (
	"context"
	"encoding/json"

	"evolution_relay/internal/entities"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AuditRepository struct {
	db *pgxpool.Pool
}

func NewAuditRepository(db *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{db: db}
}

// Log inserts an audit row. A missing correlation id is generated.
func (r *AuditRepository) Log(ctx context.Context, e entities.AuditEntry) error {
	if e.CorrelationID == "" {
		e.CorrelationID = uuid.NewString()
	}
	metadata, err := json.Marshal(e.Metadata)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO audit_logs (source, level, message, correlation_id, metadata)
		VALUES ($1, $2, $3, $4, $5)
	`, e.Source, e.Level, e.Message, e.CorrelationID, metadata)
	return err
}
