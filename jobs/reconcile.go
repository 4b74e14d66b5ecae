package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/caravel-erp/caravel/internal/jobs"
)

// BalanceReconciler refreshes cached party balances against the journal.
type BalanceReconciler interface {
	ReconcileBalances(ctx context.Context) (checked, drifted int, err error)
}

const reconcileLockKey = "jobs:reconcile"

// ReconcileJob recomputes every active party balance from the journal and
// rewrites the cached column where it drifted.
type ReconcileJob struct {
	Parties BalanceReconciler
	Lock    Locker
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewReconcileJob wires dependencies for the reconcile handler.
func NewReconcileJob(parties BalanceReconciler, lock Locker, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReconcileJob {
	return &ReconcileJob{Parties: parties, Lock: lock, Logger: logger, Metrics: metrics}
}

// Handle processes party balance reconciliation tasks.
func (j *ReconcileJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("reconcile: handler not configured")
	}
	var payload ReconcilePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	if j.Lock != nil {
		ok, err := j.Lock.TryLock(ctx, reconcileLockKey, 10*time.Minute)
		if err != nil {
			return err
		}
		if !ok {
			j.logger().Info("reconciliation already running")
			return nil
		}
		defer func() {
			_ = j.Lock.Unlock(ctx, reconcileLockKey)
		}()
	}

	tracker := j.metrics().Track(TaskPartyReconcile)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	checked, drifted, err := j.Parties.ReconcileBalances(ctx)
	if err != nil {
		resultErr = err
		j.logger().Error("reconcile balances", slog.Any("error", err))
		return resultErr
	}

	logger := j.logger().With(slog.Int("checked", checked), slog.Int("drifted", drifted))
	if drifted > 0 {
		logger.Warn("cached balances corrected")
	} else {
		logger.Info("cached balances verified")
	}
	return resultErr
}

func (j *ReconcileJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskPartyReconcile))
	}
	return slog.Default().With(slog.String("job", TaskPartyReconcile))
}

func (j *ReconcileJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return jobmetrics.NewMetrics(nil)
}
