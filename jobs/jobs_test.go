package jobs

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/caravel-erp/caravel/internal/jobs"
	"github.com/caravel-erp/caravel/internal/ledger/accounts"
	"github.com/caravel-erp/caravel/internal/ledger/reports"
)

type stubTrialBalanceSource struct {
	tb    reports.TrialBalance
	err   error
	calls int
}

func (s *stubTrialBalanceSource) TrialBalance(ctx context.Context, asOf time.Time) (reports.TrialBalance, error) {
	s.calls++
	return s.tb, s.err
}

type stubLocker struct {
	available bool
	locked    []string
	unlocked  []string
}

func (s *stubLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if !s.available {
		return false, nil
	}
	s.locked = append(s.locked, key)
	return true, nil
}

func (s *stubLocker) Unlock(ctx context.Context, key string) error {
	s.unlocked = append(s.unlocked, key)
	return nil
}

func gatherCounter(t *testing.T, registry *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := registry.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		var total float64
		for _, metric := range family.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
		return total
	}
	return 0
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestIntegrityJobRecordsDrift(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(registry)
	source := &stubTrialBalanceSource{tb: reports.TrialBalance{
		TotalDebit:  17_000_00,
		TotalCredit: 16_500_00,
		Balanced:    false,
	}}
	lock := &stubLocker{available: true}
	job := NewIntegrityJob(source, lock, testLogger(), metrics)

	task, err := NewIntegrityTask(time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 1, source.calls)
	require.Equal(t, []string{"jobs:integrity"}, lock.locked)
	require.Equal(t, []string{"jobs:integrity"}, lock.unlocked)
	require.Equal(t, float64(1), gatherCounter(t, registry, "caravel_ledger_integrity_failures_total"))
}

func TestIntegrityJobBalancedLeavesCounterAtZero(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(registry)
	source := &stubTrialBalanceSource{tb: reports.TrialBalance{
		TotalDebit:  17_000_00,
		TotalCredit: 17_000_00,
		Balanced:    true,
	}}
	job := NewIntegrityJob(source, nil, testLogger(), metrics)

	task, err := NewIntegrityTask(time.Time{})
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, float64(0), gatherCounter(t, registry, "caravel_ledger_integrity_failures_total"))
}

func TestIntegrityJobSkipsWhenLockHeld(t *testing.T) {
	source := &stubTrialBalanceSource{}
	lock := &stubLocker{available: false}
	job := NewIntegrityJob(source, lock, testLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewIntegrityTask(time.Now())
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Zero(t, source.calls)
}

func TestIntegrityJobRejectsMalformedPayload(t *testing.T) {
	job := NewIntegrityJob(&stubTrialBalanceSource{}, nil, testLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()))

	err := job.Handle(context.Background(), asynq.NewTask(TaskLedgerIntegrity, []byte("{not json")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

type stubReconciler struct {
	checked int
	drifted int
	err     error
	calls   int
}

func (s *stubReconciler) ReconcileBalances(ctx context.Context) (int, int, error) {
	s.calls++
	return s.checked, s.drifted, s.err
}

func TestReconcileJobRunsReconciliation(t *testing.T) {
	registry := prometheus.NewRegistry()
	reconciler := &stubReconciler{checked: 5, drifted: 2}
	lock := &stubLocker{available: true}
	job := NewReconcileJob(reconciler, lock, testLogger(), jobmetrics.NewMetrics(registry))

	task, err := NewReconcileTask(time.Now())
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 1, reconciler.calls)
	require.Equal(t, []string{"jobs:reconcile"}, lock.unlocked)
}

func TestReconcileJobPropagatesFailure(t *testing.T) {
	reconciler := &stubReconciler{err: errors.New("db down")}
	job := NewReconcileJob(reconciler, nil, testLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewReconcileTask(time.Now())
	require.NoError(t, err)

	require.EqualError(t, job.Handle(context.Background(), task), "db down")
}

type stubReportSource struct {
	trialBalances int
	cashBooks     int
	profits       int
	agings        []accounts.PartyType
}

func (s *stubReportSource) TrialBalance(ctx context.Context, asOf time.Time) (reports.TrialBalance, error) {
	s.trialBalances++
	return reports.TrialBalance{Balanced: true}, nil
}

func (s *stubReportSource) CashBook(ctx context.Context, from, to time.Time) (reports.CashBook, error) {
	s.cashBooks++
	return reports.CashBook{}, nil
}

func (s *stubReportSource) ProfitAndLoss(ctx context.Context, from, to time.Time) (reports.ProfitAndLoss, error) {
	s.profits++
	return reports.ProfitAndLoss{}, nil
}

func (s *stubReportSource) Aging(ctx context.Context, partyType accounts.PartyType) (reports.Aging, error) {
	s.agings = append(s.agings, partyType)
	return reports.Aging{}, nil
}

func TestWarmupJobBuildsEveryStatement(t *testing.T) {
	source := &stubReportSource{}
	job := NewWarmupJob(source, testLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()))
	job.clock = func() time.Time {
		return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	}

	task, err := NewWarmupTask(2)
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 1, source.trialBalances)
	require.Equal(t, 1, source.cashBooks)
	require.Equal(t, 2, source.profits)
	require.Equal(t, []accounts.PartyType{accounts.PartyCustomer, accounts.PartyVendor}, source.agings)
}

func TestWarmupJobDefaultsMonths(t *testing.T) {
	source := &stubReportSource{}
	job := NewWarmupJob(source, testLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewWarmupTask(0)
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 3, source.profits)
}
