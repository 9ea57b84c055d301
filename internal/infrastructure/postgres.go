package infrastructure

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type PostgresClient struct {
	Pool *pgxpool.Pool
}

func NewPostgresClient(ctx context.Context, connString string) (*PostgresClient, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	// Pool configuration
	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	client := &PostgresClient{Pool: pool}

	if err := client.Migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return client, nil
}

var schema = []struct {
	name string
	ddl  string
}{
	{"tenants", `
		CREATE TABLE IF NOT EXISTS tenants (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			name VARCHAR(255) NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`},
	{"instances", `
		CREATE TABLE IF NOT EXISTS instances (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			instance_name VARCHAR(128) UNIQUE NOT NULL,
			tenant_id UUID REFERENCES tenants(id),
			is_active BOOLEAN NOT NULL DEFAULT true,
			status VARCHAR(32),
			connection_state VARCHAR(32),
			qr_code TEXT,
			profile_name VARCHAR(255),
			profile_picture_url TEXT,
			last_connected_at TIMESTAMPTZ,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`},
	{"users", `
		CREATE TABLE IF NOT EXISTS users (
			id SERIAL PRIMARY KEY,
			username VARCHAR(50) UNIQUE NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			role VARCHAR(20) NOT NULL DEFAULT 'agent',
			tenant_id UUID NOT NULL REFERENCES tenants(id),
			is_active BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`},
	{"contacts", `
		CREATE TABLE IF NOT EXISTS contacts (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			phone VARCHAR(32) UNIQUE NOT NULL,
			name VARCHAR(255) NOT NULL,
			tenant_id UUID NOT NULL REFERENCES tenants(id),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`},
	{"conversations", `
		CREATE TABLE IF NOT EXISTS conversations (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			contact_id UUID NOT NULL REFERENCES contacts(id),
			tenant_id UUID NOT NULL REFERENCES tenants(id),
			status VARCHAR(20) NOT NULL DEFAULT 'active',
			channel VARCHAR(20) NOT NULL DEFAULT 'whatsapp',
			priority VARCHAR(20) NOT NULL DEFAULT 'normal',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`},
	// At most one open conversation per contact.
	{"conversations_one_open", `
		CREATE UNIQUE INDEX IF NOT EXISTS conversations_one_open
		ON conversations (contact_id) WHERE status IN ('active', 'in_service');`},
	{"messages", `
		CREATE TABLE IF NOT EXISTS messages (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			conversation_id UUID NOT NULL REFERENCES conversations(id),
			content TEXT NOT NULL DEFAULT '',
			sender_kind VARCHAR(16) NOT NULL,
			sender_name VARCHAR(255),
			kind VARCHAR(20) NOT NULL DEFAULT 'text',
			metadata JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`},
	{"messages_conversation_idx", `
		CREATE INDEX IF NOT EXISTS messages_conversation_idx ON messages (conversation_id, created_at);`},
	{"chatbot_sessions", `
		CREATE TABLE IF NOT EXISTS chatbot_sessions (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			conversation_id UUID NOT NULL REFERENCES conversations(id),
			status VARCHAR(16) NOT NULL DEFAULT 'active',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`},
	{"audit_logs", `
		CREATE TABLE IF NOT EXISTS audit_logs (
			id BIGSERIAL PRIMARY KEY,
			source VARCHAR(64) NOT NULL,
			level VARCHAR(16) NOT NULL,
			message TEXT NOT NULL,
			correlation_id UUID NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`},
	{"message_usage", `
		CREATE TABLE IF NOT EXISTS message_usage (
			tenant_id UUID NOT NULL REFERENCES tenants(id),
			date DATE NOT NULL,
			messages_sent INT NOT NULL DEFAULT 0,
			messages_received INT NOT NULL DEFAULT 0,
			PRIMARY KEY (tenant_id, date)
		);`},
}

func (p *PostgresClient) Migrate(ctx context.Context) error {
	for _, s := range schema {
		if _, err := p.Pool.Exec(ctx, s.ddl); err != nil {
			return fmt.Errorf("create %s: %w", s.name, err)
		}
	}
	zap.L().Info("database schema ready", zap.Int("objects", len(schema)))
	return nil
}

func (p *PostgresClient) Close() {
	p.Pool.Close()
}
