package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

type TenantRepository struct {
	db *pgxpool.Pool
}

func NewTenantRepository(db *pgxpool.Pool) *TenantRepository {
	return &TenantRepository{db: db}
}

// FirstActive returns the oldest active tenant.
func (r *TenantRepository) FirstActive(ctx context.Context) (string, error) {
	var id string
	err := r.db.QueryRow(ctx,
		"SELECT id::text FROM tenants WHERE is_active=true ORDER BY created_at ASC LIMIT 1").Scan(&id)
	if err != nil {
		return "", notFound(err)
	}
	return id, nil
}
