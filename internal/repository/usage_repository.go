package repository

import (
	"context"

	"evolution_relay/internal/entities"

	"github.com/jackc/pgx/v5/pgxpool"
)

type UsageRepository struct {
	db *pgxpool.Pool
}

func NewUsageRepository(db *pgxpool.Pool) *UsageRepository {
	return &UsageRepository{db: db}
}

// IncrementSent counts an agent reply for today
func (r *UsageRepository) IncrementSent(ctx context.Context, tenantID string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO message_usage (tenant_id, date, messages_sent, messages_received)
		VALUES ($1, CURRENT_DATE, 1, 0)
		ON CONFLICT (tenant_id, date)
		DO UPDATE SET messages_sent = message_usage.messages_sent + 1
	`, tenantID)
	return err
}

// IncrementReceived counts an inbound customer message for today
func (r *UsageRepository) IncrementReceived(ctx context.Context, tenantID string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO message_usage (tenant_id, date, messages_sent, messages_received)
		VALUES ($1, CURRENT_DATE, 0, 1)
		ON CONFLICT (tenant_id, date)
		DO UPDATE SET messages_received = message_usage.messages_received + 1
	`, tenantID)
	return err
}

// GetUsageHistory returns the last N days of usage, oldest first
func (r *UsageRepository) GetUsageHistory(ctx context.Context, tenantID string, days int) ([]entities.DailyUsage, error) {
	rows, err := r.db.Query(ctx, `
		SELECT date, messages_sent, messages_received
		FROM message_usage
		WHERE tenant_id = $1 AND date >= CURRENT_DATE - $2::int
		ORDER BY date ASC
	`, tenantID, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	usage := []entities.DailyUsage{}
	for rows.Next() {
		var u entities.DailyUsage
		if err := rows.Scan(&u.Date, &u.MessagesSent, &u.MessagesReceived); err != nil {
			return nil, err
		}
		usage = append(usage, u)
	}
	return usage, rows.Err()
}
