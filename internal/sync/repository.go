package sync

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PackageRow is one package in the offline dump, denormalised with its order
// header so the terminal needs no joins locally.
type PackageRow struct {
	Code            string     `json:"code"`
	BatchNo         int        `json:"batchNo"`
	NominalQty      float64    `json:"nominalQty"`
	RemainingQty    float64    `json:"remainingQty"`
	State           int        `json:"state"`
	LastWeighTime   *time.Time `json:"lastWeighTime,omitempty"`
	OrderRef        string     `json:"orderRef"`
	FormulaName     string     `json:"formulaName"`
	Memo            string     `json:"memo"`
	PlannerName     string     `json:"plannerName"`
	IntakeWeighed   float64    `json:"intakeWeighed"`
	OuttakeExported float64    `json:"outtakeExported"`
}

// Repository reads the bulk dump for handheld terminals.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// UnweighedDump returns every package belonging to an order that still has a
// package short of fully exported. Terminals refresh their offline copy from
// this in one request.
func (r *Repository) UnweighedDump(ctx context.Context) ([]PackageRow, error) {
	rows, err := r.pool.Query(ctx, `SELECT p.code, p.batch_no, p.nominal_qty, p.remaining_qty, p.empty_state,
	p.last_weigh_time, o.ref, o.formula_name, COALESCE(o.memo, ''), COALESCE(op.name, ''),
	COALESCE(SUM(e.weight) FILTER (WHERE e.kind = 'intake' AND NOT e.superseded), 0),
	COALESCE(SUM(e.weight) FILTER (WHERE e.kind = 'outtake' AND NOT e.superseded), 0)
FROM packages p
JOIN production_orders o ON o.ref = p.order_ref
LEFT JOIN operators op ON op.id = o.planner_id
LEFT JOIN weigh_events e ON e.package_code = p.code
WHERE o.ref IN (
	SELECT DISTINCT order_ref FROM packages WHERE empty_state <> 1
)
GROUP BY p.code, p.batch_no, p.nominal_qty, p.remaining_qty, p.empty_state,
	p.last_weigh_time, o.ref, o.formula_name, o.memo, op.name
ORDER BY o.ref DESC, p.batch_no ASC, p.code ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	packages := []PackageRow{}
	for rows.Next() {
		var (
			row       PackageRow
			weighTime *time.Time
		)
		if err := rows.Scan(&row.Code, &row.BatchNo, &row.NominalQty, &row.RemainingQty, &row.State,
			&weighTime, &row.OrderRef, &row.FormulaName, &row.Memo, &row.PlannerName,
			&row.IntakeWeighed, &row.OuttakeExported); err != nil {
			return nil, err
		}
		row.LastWeighTime = weighTime
		packages = append(packages, row)
	}
	return packages, rows.Err()
}
