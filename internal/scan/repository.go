package scan

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/weighline/weighline/internal/platform/db"
	"github.com/weighline/weighline/internal/weighing"
)

// Repository assembles the scan view. Every query for one scan runs inside
// the same read-only repeatable-read transaction, so a weigh committing midway
// through cannot produce a half-updated view.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Resolve loads the full view for one package code.
func (r *Repository) Resolve(ctx context.Context, code string) (View, error) {
	var view View
	err := db.WithReadTx(ctx, r.pool, func(tx pgx.Tx) error {
		orderRef, err := r.loadPackage(ctx, tx, code, &view)
		if err != nil {
			return err
		}
		if err := r.loadOrder(ctx, tx, orderRef, &view); err != nil {
			return err
		}
		return r.loadSiblings(ctx, tx, orderRef, code, &view)
	})
	if err != nil {
		return View{}, err
	}
	return view, nil
}

func (r *Repository) loadPackage(ctx context.Context, tx pgx.Tx, code string, view *View) (string, error) {
	var (
		orderRef  string
		weighTime *time.Time
	)
	err := tx.QueryRow(ctx, `SELECT code, order_ref, batch_no, nominal_qty, COALESCE(last_intake_qty, 0),
	last_weigh_time, remaining_qty, empty_state
FROM packages WHERE code = $1`, code).
		Scan(&view.Package.Code, &orderRef, &view.Package.BatchNo, &view.Package.NominalQty,
			&view.Package.LastIntakeQty, &weighTime, &view.Package.RemainingQty, &view.Package.State)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrPackageNotFound
		}
		return "", err
	}
	view.Package.LastWeighTime = weighTime
	view.Package.StateLabel = weighing.EmptyState(view.Package.State).Label()
	return orderRef, nil
}

func (r *Repository) loadOrder(ctx context.Context, tx pgx.Tx, orderRef string, view *View) error {
	return tx.QueryRow(ctx, `SELECT o.ref, o.formula_name, COALESCE(o.memo, ''),
	COALESCE(op.name, ''), o.target_total_qty,
	COALESCE(SUM(e.weight) FILTER (WHERE e.kind = 'intake' AND NOT e.superseded), 0),
	COALESCE(SUM(e.weight) FILTER (WHERE e.kind = 'outtake' AND NOT e.superseded), 0),
	COUNT(DISTINCT p.code),
	COUNT(DISTINCT p.code) FILTER (WHERE p.empty_state <> -1)
FROM production_orders o
LEFT JOIN operators op ON op.id = o.planner_id
LEFT JOIN packages p ON p.order_ref = o.ref
LEFT JOIN weigh_events e ON e.package_code = p.code
WHERE o.ref = $1
GROUP BY o.ref, o.formula_name, o.memo, op.name, o.target_total_qty`, orderRef).
		Scan(&view.Order.Ref, &view.Order.FormulaName, &view.Order.Memo,
			&view.Order.PlannerName, &view.Order.TargetTotalQty,
			&view.Order.TotalIntakeWeighed, &view.Order.TotalOuttakeWeighed,
			&view.Order.PackageCount, &view.Order.WeighedCount)
}

func (r *Repository) loadSiblings(ctx context.Context, tx pgx.Tx, orderRef, code string, view *View) error {
	rows, err := tx.Query(ctx, `SELECT code, batch_no, nominal_qty, remaining_qty, empty_state
FROM packages
WHERE order_ref = $1 AND code <> $2
ORDER BY batch_no ASC, code ASC`, orderRef, code)
	if err != nil {
		return err
	}
	defer rows.Close()
	view.Siblings = []SiblingView{}
	for rows.Next() {
		var sibling SiblingView
		if err := rows.Scan(&sibling.Code, &sibling.BatchNo, &sibling.NominalQty, &sibling.RemainingQty, &sibling.State); err != nil {
			return err
		}
		sibling.StateLabel = weighing.EmptyState(sibling.State).Label()
		view.Siblings = append(view.Siblings, sibling)
	}
	return rows.Err()
}
