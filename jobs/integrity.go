package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/caravel-erp/caravel/internal/jobs"
	"github.com/caravel-erp/caravel/internal/ledger/reports"
)

// TrialBalanceSource produces trial balances at a cut-off.
type TrialBalanceSource interface {
	TrialBalance(ctx context.Context, asOf time.Time) (reports.TrialBalance, error)
}

// Locker provides mutual exclusion for job runs across worker instances.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

const integrityLockKey = "jobs:integrity"

// IntegrityJob checks that trial balance debits equal credits at a cut-off.
// Drift means a posting bypassed the journal engine and must be audited; the
// job reports it through logs and metrics rather than failing the task.
type IntegrityJob struct {
	Reports TrialBalanceSource
	Lock    Locker
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewIntegrityJob wires dependencies for the integrity handler.
func NewIntegrityJob(reportsSvc TrialBalanceSource, lock Locker, logger *slog.Logger, metrics *jobmetrics.Metrics) *IntegrityJob {
	return &IntegrityJob{
		Reports: reportsSvc,
		Lock:    lock,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes trial balance check tasks.
func (j *IntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("integrity: handler not configured")
	}
	var payload IntegrityPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	asOf := payload.AsOf
	if asOf.IsZero() {
		asOf = j.now()
	}

	if j.Lock != nil {
		ok, err := j.Lock.TryLock(ctx, integrityLockKey, 5*time.Minute)
		if err != nil {
			return err
		}
		if !ok {
			j.logger().Info("integrity check already running")
			return nil
		}
		defer func() {
			_ = j.Lock.Unlock(ctx, integrityLockKey)
		}()
	}

	tracker := j.metrics().Track(TaskLedgerIntegrity)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	tb, err := j.Reports.TrialBalance(ctx, asOf)
	if err != nil {
		resultErr = err
		j.logger().Error("build trial balance", slog.Any("error", err))
		return resultErr
	}
	if !tb.Balanced {
		j.metrics().AddIntegrityDrift()
		j.logger().Error("trial balance out of balance",
			slog.Time("as_of", asOf),
			slog.Int64("total_debit", tb.TotalDebit),
			slog.Int64("total_credit", tb.TotalCredit))
		return resultErr
	}

	j.logger().Info("trial balance verified",
		slog.Time("as_of", asOf),
		slog.Int("accounts", len(tb.Rows)))
	return resultErr
}

func (j *IntegrityJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLedgerIntegrity))
	}
	return slog.Default().With(slog.String("job", TaskLedgerIntegrity))
}

func (j *IntegrityJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return jobmetrics.NewMetrics(nil)
}

func (j *IntegrityJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
