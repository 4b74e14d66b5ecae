package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/caravel-erp/caravel/internal/jobs"
	"github.com/caravel-erp/caravel/internal/ledger/accounts"
	"github.com/caravel-erp/caravel/internal/ledger/reports"
)

// ReportSource compiles the statements the warmup pre-builds.
type ReportSource interface {
	TrialBalance(ctx context.Context, asOf time.Time) (reports.TrialBalance, error)
	CashBook(ctx context.Context, from, to time.Time) (reports.CashBook, error)
	ProfitAndLoss(ctx context.Context, from, to time.Time) (reports.ProfitAndLoss, error)
	Aging(ctx context.Context, partyType accounts.PartyType) (reports.Aging, error)
}

// WarmupJob pre-populates report caches so the first console request of the
// day does not pay the recompute cost.
type WarmupJob struct {
	Reports ReportSource
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewWarmupJob wires dependencies for the warmup handler.
func NewWarmupJob(reportsSvc ReportSource, logger *slog.Logger, metrics *jobmetrics.Metrics) *WarmupJob {
	return &WarmupJob{
		Reports: reportsSvc,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes report warmup tasks.
func (j *WarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("warmup: handler not configured")
	}
	var payload WarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	months := payload.Months
	if months <= 0 {
		months = 3
	}

	tracker := j.metrics().Track(TaskReportWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	now := j.now()
	logger := j.logger()
	logger.Info("starting report warmup", slog.Int("months", months))

	if err := j.warm(ctx, now, months); err != nil {
		resultErr = err
		logger.Error("warm reports", slog.Any("error", err))
		return resultErr
	}

	logger.Info("completed report warmup", slog.Duration("duration", time.Since(now)))
	return resultErr
}

func (j *WarmupJob) warm(ctx context.Context, now time.Time, months int) error {
	// Bound each statement so a slow query cannot wedge the worker.
	warmCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := j.Reports.TrialBalance(warmCtx, now); err != nil {
		return err
	}

	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	if _, err := j.Reports.CashBook(warmCtx, monthStart, now); err != nil {
		return err
	}

	for i := 0; i < months; i++ {
		from := monthStart.AddDate(0, -i, 0)
		to := from.AddDate(0, 1, 0).Add(-time.Nanosecond)
		if to.After(now) {
			to = now
		}
		if _, err := j.Reports.ProfitAndLoss(warmCtx, from, to); err != nil {
			return err
		}
	}

	for _, partyType := range []accounts.PartyType{accounts.PartyCustomer, accounts.PartyVendor} {
		if _, err := j.Reports.Aging(warmCtx, partyType); err != nil {
			return err
		}
	}
	return nil
}

func (j *WarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskReportWarmup))
	}
	return slog.Default().With(slog.String("job", TaskReportWarmup))
}

func (j *WarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return jobmetrics.NewMetrics(nil)
}

func (j *WarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
