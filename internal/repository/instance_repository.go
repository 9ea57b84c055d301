package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"evolution_relay/internal/entities"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type InstanceRepository struct {
	db *pgxpool.Pool
}

func NewInstanceRepository(db *pgxpool.Pool) *InstanceRepository {
	return &InstanceRepository{db: db}
}

const instanceColumns = `id::text, instance_name, COALESCE(tenant_id::text, ''), is_active, COALESCE(status, ''),
	COALESCE(connection_state, ''), COALESCE(qr_code, ''), COALESCE(profile_name, ''),
	COALESCE(profile_picture_url, ''), last_connected_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInstance(row rowScanner) (*entities.Instance, error) {
	var i entities.Instance
	err := row.Scan(&i.ID, &i.Name, &i.TenantID, &i.IsActive, &i.Status, &i.ConnectionState,
		&i.QRCode, &i.ProfileName, &i.ProfilePictureURL, &i.LastConnectedAt)
	if err != nil {
		return nil, err
	}
	return &i, nil
}

// ApplyUpdate writes the non-nil fields of u to the instance row.
func (r *InstanceRepository) ApplyUpdate(ctx context.Context, name string, u entities.InstanceUpdate) error {
	if u.IsEmpty() {
		return nil
	}

	var sets []string
	var args []interface{}
	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s=$%d", column, len(args)))
	}

	if u.Status != nil {
		add("status", *u.Status)
	}
	if u.ConnectionState != nil {
		add("connection_state", *u.ConnectionState)
	}
	if u.ClearQRCode {
		sets = append(sets, "qr_code=NULL")
	} else if u.QRCode != nil {
		add("qr_code", *u.QRCode)
	}
	if u.LastConnectedAt != nil {
		add("last_connected_at", *u.LastConnectedAt)
	}
	if u.ProfileName != nil {
		add("profile_name", *u.ProfileName)
	}
	if u.ProfilePictureURL != nil {
		add("profile_picture_url", *u.ProfilePictureURL)
	}
	sets = append(sets, "updated_at=NOW()")
	args = append(args, name)

	query := fmt.Sprintf("UPDATE instances SET %s WHERE instance_name=$%d", strings.Join(sets, ", "), len(args))
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update instance %s: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return entities.ErrNotFound
	}
	return nil
}

// TenantForInstance returns the tenant owning an active instance.
func (r *InstanceRepository) TenantForInstance(ctx context.Context, name string) (string, error) {
	var tenantID string
	err := r.db.QueryRow(ctx,
		"SELECT tenant_id::text FROM instances WHERE instance_name=$1 AND is_active=true AND tenant_id IS NOT NULL",
		name).Scan(&tenantID)
	if err != nil {
		return "", notFound(err)
	}
	return tenantID, nil
}

func (r *InstanceRepository) GetByName(ctx context.Context, name string) (*entities.Instance, error) {
	row := r.db.QueryRow(ctx, "SELECT "+instanceColumns+" FROM instances WHERE instance_name=$1", name)
	i, err := scanInstance(row)
	if err != nil {
		return nil, notFound(err)
	}
	return i, nil
}

func (r *InstanceRepository) ListByTenant(ctx context.Context, tenantID string) ([]entities.Instance, error) {
	rows, err := r.db.Query(ctx,
		"SELECT "+instanceColumns+" FROM instances WHERE tenant_id=$1 ORDER BY instance_name", tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	instances := []entities.Instance{}
	for rows.Next() {
		i, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		instances = append(instances, *i)
	}
	return instances, rows.Err()
}

// Create registers a tenant-owned instance. A taken name yields
// entities.ErrAlreadyExists.
func (r *InstanceRepository) Create(ctx context.Context, inst *entities.Instance) (*entities.Instance, error) {
	var status, state *string
	if inst.Status != "" {
		status = &inst.Status
	}
	if inst.ConnectionState != "" {
		state = &inst.ConnectionState
	}
	row := r.db.QueryRow(ctx, `
		INSERT INTO instances (instance_name, tenant_id, is_active, status, connection_state)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (instance_name) DO NOTHING
		RETURNING `+instanceColumns,
		inst.Name, inst.TenantID, inst.IsActive, status, state)
	out, err := scanInstance(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, entities.ErrAlreadyExists
	}
	if err != nil {
		return nil, fmt.Errorf("insert instance %s: %w", inst.Name, err)
	}
	return out, nil
}

func (r *InstanceRepository) Delete(ctx context.Context, name string) error {
	tag, err := r.db.Exec(ctx, "DELETE FROM instances WHERE instance_name=$1", name)
	if err != nil {
		return fmt.Errorf("delete instance %s: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return entities.ErrNotFound
	}
	return nil
}
