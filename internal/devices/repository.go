package devices

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/weighline/weighline/internal/platform/httpx"
)

// Repository persists the device registry.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns all devices ordered by id.
func (r *Repository) List(ctx context.Context) ([]Device, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, address, COALESCE(kind, '') FROM devices ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	devices := []Device{}
	for rows.Next() {
		var device Device
		if err := rows.Scan(&device.ID, &device.Name, &device.Address, &device.Kind); err != nil {
			return nil, err
		}
		devices = append(devices, device)
	}
	return devices, rows.Err()
}

// Create inserts a device and returns it with the assigned id.
func (r *Repository) Create(ctx context.Context, input Input) (Device, error) {
	var device Device
	err := r.pool.QueryRow(ctx, `INSERT INTO devices (name, address, kind) VALUES ($1, $2, $3) RETURNING id, name, address, COALESCE(kind, '')`,
		input.Name, input.Address, input.Kind).
		Scan(&device.ID, &device.Name, &device.Address, &device.Kind)
	if err != nil {
		return Device{}, err
	}
	return device, nil
}

// Update rewrites a device row.
func (r *Repository) Update(ctx context.Context, id int64, input Input) (Device, error) {
	var device Device
	err := r.pool.QueryRow(ctx, `UPDATE devices SET name = $2, address = $3, kind = $4 WHERE id = $1 RETURNING id, name, address, COALESCE(kind, '')`,
		id, input.Name, input.Address, input.Kind).
		Scan(&device.ID, &device.Name, &device.Address, &device.Kind)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Device{}, httpx.ErrNotFound
		}
		return Device{}, err
	}
	return device, nil
}

// Delete removes a device row.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM devices WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}
