package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository looks badges up in admin_users and operators.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// FindAdmin returns the admin account for a badge, or ErrUnknownBadge.
func (r *Repository) FindAdmin(ctx context.Context, badgeID string) (Account, error) {
	var (
		account Account
		isAdmin bool
	)
	err := r.pool.QueryRow(ctx, `SELECT id, name, is_admin FROM admin_users WHERE id = $1`, badgeID).
		Scan(&account.ID, &account.Name, &isAdmin)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrUnknownBadge
		}
		return Account{}, err
	}
	account.Role = RoleUser
	if isAdmin {
		account.Role = RoleAdmin
	}
	return account, nil
}

// FindOperator returns the operator account for a badge, or ErrUnknownBadge.
func (r *Repository) FindOperator(ctx context.Context, badgeID string) (Account, error) {
	var account Account
	err := r.pool.QueryRow(ctx, `SELECT id, name FROM operators WHERE id = $1`, badgeID).
		Scan(&account.ID, &account.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrUnknownBadge
		}
		return Account{}, err
	}
	account.Role = RoleUser
	return account, nil
}

// ListOperators dumps the operator table ordered by id.
func (r *Repository) ListOperators(ctx context.Context) ([]Operator, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name FROM operators ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	operators := []Operator{}
	for rows.Next() {
		var op Operator
		if err := rows.Scan(&op.ID, &op.Name); err != nil {
			return nil, err
		}
		operators = append(operators, op)
	}
	return operators, rows.Err()
}
