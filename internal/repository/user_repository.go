package repository

import (
	"context"
	"errors"

	"evolution_relay/internal/entities"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *entities.User) error {
	_, err := r.db.Exec(ctx,
		"INSERT INTO users (username, password_hash, role, tenant_id) VALUES ($1, $2, $3, $4)",
		user.Username, user.PasswordHash, user.Role, user.TenantID)
	return err
}

// GetByUsername returns nil, nil when no such user exists.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*entities.User, error) {
	var user entities.User
	err := r.db.QueryRow(ctx,
		"SELECT id, username, password_hash, role, tenant_id::text, is_active FROM users WHERE username = $1",
		username).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Role, &user.TenantID, &user.IsActive)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}
