package rollup

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/weighline/weighline/internal/weighing"
)

// Repository reads rollup aggregates from PostgreSQL. All queries are
// read-only and lean on the derived package columns maintained by the ledger.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// OrderRollup aggregates one order across its packages and active events.
func (r *Repository) OrderRollup(ctx context.Context, orderRef string) (OrderRollup, error) {
	var rollup OrderRollup
	err := r.pool.QueryRow(ctx, `SELECT o.ref, o.formula_name, COALESCE(o.memo, ''), o.target_total_qty,
	COALESCE(SUM(e.weight) FILTER (WHERE e.kind = 'intake' AND NOT e.superseded), 0),
	COALESCE(SUM(e.weight) FILTER (WHERE e.kind = 'outtake' AND NOT e.superseded), 0),
	COUNT(DISTINCT p.code),
	COUNT(DISTINCT p.code) FILTER (WHERE p.empty_state = -1),
	COUNT(DISTINCT p.code) FILTER (WHERE p.empty_state = 0)
FROM production_orders o
LEFT JOIN packages p ON p.order_ref = o.ref
LEFT JOIN weigh_events e ON e.package_code = p.code
WHERE o.ref = $1
GROUP BY o.ref, o.formula_name, o.memo, o.target_total_qty`, orderRef).
		Scan(&rollup.OrderRef, &rollup.FormulaName, &rollup.Memo, &rollup.TargetTotalQty,
			&rollup.TotalIntakeWeighed, &rollup.TotalOuttakeWeighed,
			&rollup.PackageCount, &rollup.NotYetIntakenCount, &rollup.HasStockCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return OrderRollup{}, ErrOrderNotFound
		}
		return OrderRollup{}, err
	}
	return rollup, nil
}

// ListUnfinished returns orders that still have a package short of fully
// exported, awaiting intake or holding stock, newest order first.
func (r *Repository) ListUnfinished(ctx context.Context) ([]UnfinishedOrder, error) {
	rows, err := r.pool.Query(ctx, `SELECT o.ref, o.formula_name, COALESCE(o.memo, ''), o.target_total_qty,
	COUNT(p.code),
	COUNT(p.code) FILTER (WHERE p.empty_state = -1),
	COUNT(p.code) FILTER (WHERE p.empty_state = 0)
FROM production_orders o
JOIN packages p ON p.order_ref = o.ref
GROUP BY o.ref, o.formula_name, o.memo, o.target_total_qty
HAVING COUNT(p.code) FILTER (WHERE p.empty_state = -1) > 0
	OR COUNT(p.code) FILTER (WHERE p.empty_state = 0) > 0
ORDER BY o.ref DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	orders := []UnfinishedOrder{}
	for rows.Next() {
		var order UnfinishedOrder
		if err := rows.Scan(&order.OrderRef, &order.FormulaName, &order.Memo, &order.TargetTotalQty,
			&order.PackageCount, &order.NotYetIntakenCount, &order.HasStockCount); err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

// UnfinishedPackages lists the still-open packages of one order: not yet
// intaken plus intaken-with-stock, fully exported ones excluded.
func (r *Repository) UnfinishedPackages(ctx context.Context, orderRef string) ([]UnfinishedPackage, error) {
	if err := r.ensureOrder(ctx, orderRef); err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, `SELECT code, batch_no, nominal_qty, COALESCE(last_intake_qty, 0),
	remaining_qty, last_weigh_time, empty_state
FROM packages
WHERE order_ref = $1 AND empty_state IN (-1, 0)
ORDER BY batch_no ASC, code ASC`, orderRef)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	packages := []UnfinishedPackage{}
	for rows.Next() {
		var (
			pkg       UnfinishedPackage
			weighTime *time.Time
		)
		if err := rows.Scan(&pkg.Code, &pkg.BatchNo, &pkg.NominalQty, &pkg.LastIntakeQty,
			&pkg.RemainingQty, &weighTime, &pkg.State); err != nil {
			return nil, err
		}
		pkg.LastWeighTime = weighTime
		pkg.StateLabel = weighing.EmptyState(pkg.State).Label()
		packages = append(packages, pkg)
	}
	return packages, rows.Err()
}

// WarehouseStock groups weighed stock per order, newest order first. Orders
// whose packages are all empty or unweighed drop out of the listing. Packages
// never intaken contribute zero to every sum.
func (r *Repository) WarehouseStock(ctx context.Context) ([]WarehouseStock, error) {
	rows, err := r.pool.Query(ctx, `SELECT o.ref, o.formula_name,
	COUNT(p.code) FILTER (WHERE p.remaining_qty > 0),
	COALESCE(SUM(COALESCE(p.last_intake_qty, 0)), 0),
	COALESCE(SUM(COALESCE(p.last_intake_qty, 0) - p.remaining_qty), 0),
	COALESCE(SUM(p.remaining_qty), 0)
FROM production_orders o
JOIN packages p ON p.order_ref = o.ref
GROUP BY o.ref, o.formula_name
HAVING COALESCE(SUM(p.remaining_qty), 0) > 0
ORDER BY o.ref DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	stock := []WarehouseStock{}
	for rows.Next() {
		var row WarehouseStock
		if err := rows.Scan(&row.OrderRef, &row.FormulaName, &row.PackageCount,
			&row.TotalIntake, &row.TotalOuttake, &row.TotalRemaining); err != nil {
			return nil, err
		}
		stock = append(stock, row)
	}
	return stock, rows.Err()
}

// WarehousePackages lists every package of one order, fully exported ones
// included. The loss column carries the residual written off when a package
// closed inside the export tolerance.
func (r *Repository) WarehousePackages(ctx context.Context, orderRef string) ([]WarehousePackage, error) {
	if err := r.ensureOrder(ctx, orderRef); err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, `SELECT code, batch_no, nominal_qty, COALESCE(last_intake_qty, 0),
	remaining_qty,
	CASE WHEN empty_state = 1 THEN remaining_qty ELSE 0 END,
	last_weigh_time, empty_state
FROM packages
WHERE order_ref = $1
ORDER BY batch_no ASC, code ASC`, orderRef)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	packages := []WarehousePackage{}
	for rows.Next() {
		var (
			pkg       WarehousePackage
			weighTime *time.Time
		)
		if err := rows.Scan(&pkg.Code, &pkg.BatchNo, &pkg.NominalQty, &pkg.LastIntakeQty,
			&pkg.RemainingQty, &pkg.LossQty, &weighTime, &pkg.State); err != nil {
			return nil, err
		}
		pkg.LastWeighTime = weighTime
		pkg.StateLabel = weighing.EmptyState(pkg.State).Label()
		packages = append(packages, pkg)
	}
	return packages, rows.Err()
}

func (r *Repository) ensureOrder(ctx context.Context, orderRef string) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM production_orders WHERE ref = $1)`, orderRef).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrOrderNotFound
	}
	return nil
}
