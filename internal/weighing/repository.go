package weighing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists the weigh ledger in PostgreSQL. Derived balance columns
// on packages are recomputed inside the same transaction as every ledger
// mutation; nothing else writes them.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// WithPackageTx executes the callback inside a repeatable-read transaction.
// The callback is expected to take the package row lock first via
// GetPackageForUpdate; the lock is held until commit.
func (r *Repository) WithPackageTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("weighing repository not initialised")
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return translateStoreErr(err)
	}
	wrapper := &txRepository{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return translateStoreErr(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return translateStoreErr(err)
	}
	return nil
}

// OrderSummary reads the order rollup outside any write transaction.
func (r *Repository) OrderSummary(ctx context.Context, orderRef string) (OrderSummary, error) {
	if r == nil {
		return OrderSummary{}, errors.New("weighing repository not initialised")
	}
	var summary OrderSummary
	err := r.pool.QueryRow(ctx, `SELECT o.ref, o.formula_name, COALESCE(o.memo, ''), o.target_total_qty,
	COALESCE(SUM(e.weight) FILTER (WHERE e.kind = 'intake' AND NOT e.superseded), 0),
	COALESCE(SUM(e.weight) FILTER (WHERE e.kind = 'outtake' AND NOT e.superseded), 0)
FROM production_orders o
LEFT JOIN packages p ON p.order_ref = o.ref
LEFT JOIN weigh_events e ON e.package_code = p.code
WHERE o.ref = $1
GROUP BY o.ref, o.formula_name, o.memo, o.target_total_qty`, orderRef).
		Scan(&summary.OrderRef, &summary.FormulaName, &summary.Memo, &summary.TargetTotalQty,
			&summary.TotalIntakeWeighed, &summary.TotalOuttakeWeighed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return OrderSummary{}, ErrOrderNotFound
		}
		return OrderSummary{}, translateStoreErr(err)
	}
	return summary, nil
}

func (r *txRepository) GetPackageForUpdate(ctx context.Context, code string) (Package, error) {
	var (
		pkg       Package
		weighTime *time.Time
		state     int
	)
	err := r.tx.QueryRow(ctx, `SELECT code, order_ref, batch_no, nominal_qty, COALESCE(planner_id, ''),
	COALESCE(last_intake_qty, 0), last_weigh_time, remaining_qty, empty_state
FROM packages WHERE code = $1 FOR UPDATE`, code).
		Scan(&pkg.Code, &pkg.OrderRef, &pkg.BatchNo, &pkg.NominalQty, &pkg.PlannerID,
			&pkg.LastIntakeQty, &weighTime, &pkg.RemainingQty, &state)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Package{}, ErrPackageNotFound
		}
		return Package{}, err
	}
	if weighTime != nil {
		pkg.LastWeighTime = *weighTime
	}
	pkg.EmptyState = EmptyState(state)
	return pkg, nil
}

func (r *txRepository) ActiveEvents(ctx context.Context, code string) ([]WeighEvent, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, ref, package_code, kind, superseded, weight, weighed_at, operator_id, COALESCE(device_id, '')
FROM weigh_events
WHERE package_code = $1 AND NOT superseded
ORDER BY id ASC`, code)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	events := []WeighEvent{}
	for rows.Next() {
		var evt WeighEvent
		if err := rows.Scan(&evt.ID, &evt.Ref, &evt.PackageCode, &evt.Kind, &evt.Superseded, &evt.Weight, &evt.WeighedAt, &evt.OperatorID, &evt.DeviceID); err != nil {
			return nil, err
		}
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func (r *txRepository) InsertEvent(ctx context.Context, evt WeighEvent) (WeighEvent, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO weigh_events (ref, package_code, kind, superseded, weight, weighed_at, operator_id, device_id)
VALUES ($1, $2, $3, FALSE, $4, $5, $6, $7) RETURNING id`,
		evt.Ref, evt.PackageCode, string(evt.Kind), evt.Weight, evt.WeighedAt, evt.OperatorID, nullString(evt.DeviceID)).
		Scan(&evt.ID)
	if err != nil {
		return WeighEvent{}, err
	}
	return evt, nil
}

func (r *txRepository) SupersedeAllEvents(ctx context.Context, code string) (int64, error) {
	tag, err := r.tx.Exec(ctx, `UPDATE weigh_events SET superseded = TRUE WHERE package_code = $1 AND NOT superseded`, code)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *txRepository) SupersedeEvent(ctx context.Context, id int64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE weigh_events SET superseded = TRUE WHERE id = $1 AND NOT superseded`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNothingToCorrect
	}
	return nil
}

func (r *txRepository) UpdateIntakeMirror(ctx context.Context, pkg Package, evt WeighEvent) error {
	_, err := r.tx.Exec(ctx, `UPDATE packages SET last_intake_qty = $2, last_weigh_time = $3 WHERE code = $1`,
		pkg.Code, evt.Weight, evt.WeighedAt)
	return err
}

// RefreshDerived recomputes remaining_qty and empty_state from the active
// ledger rows. The balance is clamped at zero: an outtake inside the export
// tolerance may overshoot by less than a gram.
func (r *txRepository) RefreshDerived(ctx context.Context, code string) (float64, EmptyState, error) {
	var (
		remaining float64
		state     int
	)
	err := r.tx.QueryRow(ctx, `UPDATE packages p SET
	remaining_qty = GREATEST(s.balance, 0),
	empty_state = CASE
		WHEN s.intake_count = 0 THEN -1
		WHEN s.balance > $2 THEN 0
		ELSE 1
	END
FROM (
	SELECT
		COALESCE(SUM(weight) FILTER (WHERE kind = 'intake'), 0)
		- COALESCE(SUM(weight) FILTER (WHERE kind = 'outtake'), 0) AS balance,
		COUNT(*) FILTER (WHERE kind = 'intake') AS intake_count
	FROM weigh_events
	WHERE package_code = $1 AND NOT superseded
) s
WHERE p.code = $1
RETURNING p.remaining_qty, p.empty_state`, code, ExportTolerance).
		Scan(&remaining, &state)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, StateNotYetIntaken, ErrPackageNotFound
		}
		return 0, StateNotYetIntaken, err
	}
	return remaining, EmptyState(state), nil
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// translateStoreErr maps serialization conflicts, deadlocks and timeouts to
// ErrTransient so callers know a retry from the top is safe. Domain errors
// pass through untouched.
func translateStoreErr(err error) error {
	if err == nil {
		return nil
	}
	if isDomainErr(err) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03":
			return fmt.Errorf("%w: %s", ErrTransient, pgErr.Code)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	return err
}

func isDomainErr(err error) bool {
	for _, domain := range []error{
		ErrPackageNotFound, ErrOrderNotFound, ErrAlreadyIntaken, ErrNotYetIntaken,
		ErrOverExport, ErrNothingToCorrect, ErrInvalidInput,
	} {
		if errors.Is(err, domain) {
			return true
		}
	}
	return false
}
