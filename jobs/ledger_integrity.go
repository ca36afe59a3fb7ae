package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/weighline/weighline/internal/jobs"
)

// LedgerIntegrityJob scans the weigh ledger for rows that violate the balance
// invariants. The engine prevents these by construction; the scan exists to
// catch manual database edits and bugs before operators do.
type LedgerIntegrityJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewLedgerIntegrityJob wires dependencies for the integrity handler.
func NewLedgerIntegrityJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *LedgerIntegrityJob {
	return &LedgerIntegrityJob{Pool: pool, Logger: logger, Metrics: metrics}
}

type integrityCheck struct {
	name  string
	query string
}

var integrityChecks = []integrityCheck{
	{
		name: "duplicate_active_intake",
		query: `SELECT package_code FROM weigh_events
WHERE kind = 'intake' AND NOT superseded
GROUP BY package_code HAVING COUNT(*) > 1`,
	},
	{
		name: "over_export",
		query: `SELECT package_code FROM weigh_events
WHERE NOT superseded
GROUP BY package_code
HAVING COALESCE(SUM(weight) FILTER (WHERE kind = 'outtake'), 0)
	> COALESCE(SUM(weight) FILTER (WHERE kind = 'intake'), 0) + 0.001`,
	},
	{
		name: "stale_derived_balance",
		query: `SELECT p.code FROM packages p
LEFT JOIN weigh_events e ON e.package_code = p.code AND NOT e.superseded
GROUP BY p.code, p.remaining_qty
HAVING ABS(p.remaining_qty - GREATEST(
	COALESCE(SUM(e.weight) FILTER (WHERE e.kind = 'intake'), 0)
	- COALESCE(SUM(e.weight) FILTER (WHERE e.kind = 'outtake'), 0), 0)) > 0.001`,
	},
}

// Handle processes ledger integrity tasks.
func (j *LedgerIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("ledger integrity: handler not configured")
	}
	var payload ScheduledPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskLedgerIntegrity)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	start := time.Now()
	total := 0
	for _, check := range integrityChecks {
		codes, err := j.runCheck(ctx, check.query)
		if err != nil {
			resultErr = err
			logger.Error("integrity check failed", slog.String("check", check.name), slog.Any("error", err))
			return resultErr
		}
		if len(codes) > 0 {
			j.metrics().AddViolations(check.name, len(codes))
			logger.Warn("ledger invariant violated",
				slog.String("check", check.name),
				slog.Int("packages", len(codes)),
				slog.Any("codes", codes))
			total += len(codes)
		}
	}

	logger.Info("completed ledger integrity scan",
		slog.Int("violations", total),
		slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (j *LedgerIntegrityJob) runCheck(ctx context.Context, query string) ([]string, error) {
	rows, err := j.Pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	codes := []string{}
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

func (j *LedgerIntegrityJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLedgerIntegrity))
	}
	return slog.Default().With(slog.String("job", TaskLedgerIntegrity))
}

func (j *LedgerIntegrityJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
