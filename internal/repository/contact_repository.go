package repository

import (
	"context"
	"errors"
	"fmt"

	"evolution_relay/internal/entities"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ContactRepository struct {
	db *pgxpool.Pool
}

func NewContactRepository(db *pgxpool.Pool) *ContactRepository {
	return &ContactRepository{db: db}
}

func (r *ContactRepository) GetByPhone(ctx context.Context, phone string) (*entities.Contact, error) {
	var c entities.Contact
	err := r.db.QueryRow(ctx,
		"SELECT id::text, phone, name, tenant_id::text, created_at FROM contacts WHERE phone=$1",
		phone).Scan(&c.ID, &c.Phone, &c.Name, &c.TenantID, &c.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// Create inserts the contact unless the phone is already registered, in
// which case the existing row is returned.
func (r *ContactRepository) Create(ctx context.Context, c *entities.Contact) (*entities.Contact, error) {
	out := *c
	err := r.db.QueryRow(ctx, `
		INSERT INTO contacts (phone, name, tenant_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (phone) DO NOTHING
		RETURNING id::text, created_at
	`, c.Phone, c.Name, c.TenantID).Scan(&out.ID, &out.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return r.GetByPhone(ctx, c.Phone)
	}
	if err != nil {
		return nil, fmt.Errorf("insert contact: %w", err)
	}
	return &out, nil
}

func (r *ContactRepository) Get(ctx context.Context, id string) (*entities.Contact, error) {
	var c entities.Contact
	err := r.db.QueryRow(ctx,
		"SELECT id::text, phone, name, tenant_id::text, created_at FROM contacts WHERE id=$1",
		id).Scan(&c.ID, &c.Phone, &c.Name, &c.TenantID, &c.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}
