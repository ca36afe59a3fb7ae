package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	jobmetrics "github.com/weighline/weighline/internal/jobs"
	"github.com/weighline/weighline/internal/rollup"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// WarehouseWarmupJob pre-populates the rollup caches so dashboards and
// terminals hit warm keys through the shift.
type WarehouseWarmupJob struct {
	Rollups *rollup.Service
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewWarehouseWarmupJob wires dependencies for the warmup handler.
func NewWarehouseWarmupJob(rollups *rollup.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *WarehouseWarmupJob {
	return &WarehouseWarmupJob{Rollups: rollups, Logger: logger, Metrics: metrics}
}

// Handle processes warehouse warmup tasks.
func (j *WarehouseWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Rollups == nil {
		return errors.New("warehouse warmup: handler not configured")
	}
	var payload ScheduledPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskWarehouseWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	start := time.Now()
	warmCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	group, groupCtx := errgroup.WithContext(warmCtx)
	group.Go(func() error {
		_, err := j.Rollups.UnfinishedSummary(groupCtx)
		return err
	})
	group.Go(func() error {
		_, err := j.Rollups.WarehouseSummary(groupCtx)
		return err
	})
	if err := group.Wait(); err != nil {
		resultErr = err
		logger.Error("warehouse warmup failed", slog.Any("error", err))
		return resultErr
	}

	// Warm the per-order detail keys for whatever the summary listed.
	stock, err := j.Rollups.WarehouseSummary(warmCtx)
	if err != nil {
		resultErr = err
		return resultErr
	}
	for _, row := range stock {
		if _, err := j.Rollups.WarehouseDetails(warmCtx, row.OrderRef); err != nil {
			resultErr = err
			logger.Error("warm order details", slog.String("order_ref", row.OrderRef), slog.Any("error", err))
			return resultErr
		}
	}

	logger.Info("completed warehouse warmup",
		slog.Int("orders", len(stock)),
		slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (j *WarehouseWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskWarehouseWarmup))
	}
	return slog.Default().With(slog.String("job", TaskWarehouseWarmup))
}

func (j *WarehouseWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
