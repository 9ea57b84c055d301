package repository

import (
	"errors"

	"evolution_relay/internal/entities"

	"github.com/jackc/pgx/v5"
)

// notFound maps pgx.ErrNoRows to entities.ErrNotFound so callers never
// depend on the driver.
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return entities.ErrNotFound
	}
	return err
}
