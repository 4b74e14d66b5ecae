package reports

import (
	"context"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/caravel-erp/caravel/internal/ledger"
	"github.com/caravel-erp/caravel/internal/ledger/accounts"
	"github.com/caravel-erp/caravel/internal/ledger/cache"
)

type stubReportRepo struct {
	balanceRows []AccountBalanceRow
	cashRows    []CashMovementRow
	cashOpening ledger.Amount
	profitRows  []ProfitRow
	partyRows   []PartyBalanceRow

	balanceCalls int
	profitCalls  int
	partyCalls   int
}

func (s *stubReportRepo) AccountBalances(ctx context.Context, asOf time.Time) ([]AccountBalanceRow, error) {
	s.balanceCalls++
	return s.balanceRows, nil
}

func (s *stubReportRepo) CashOpening(ctx context.Context, before time.Time) (ledger.Amount, error) {
	return s.cashOpening, nil
}

func (s *stubReportRepo) CashMovements(ctx context.Context, from, to time.Time) ([]CashMovementRow, error) {
	return s.cashRows, nil
}

func (s *stubReportRepo) ProfitRows(ctx context.Context, from, to time.Time) ([]ProfitRow, error) {
	s.profitCalls++
	return s.profitRows, nil
}

func (s *stubReportRepo) PartyBalances(ctx context.Context, partyType accounts.PartyType, asOf time.Time) ([]PartyBalanceRow, error) {
	s.partyCalls++
	return s.partyRows, nil
}

func newTestService(t *testing.T, repo RepositoryPort) (*Service, *cache.Cache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	c := cache.New(client, time.Minute)
	svc := NewService(repo, c, slog.Default()).WithNow(func() time.Time {
		return time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)
	})
	return svc, c
}

func TestTrialBalanceCachedUntilBump(t *testing.T) {
	repo := &stubReportRepo{
		balanceRows: []AccountBalanceRow{
			{AccountID: 1, Code: "1000", Name: "Cash on Hand", Type: ledger.AccountTypeAsset, Debit: 5000},
			{AccountID: 2, Code: "3000", Name: "Opening Balance Equity", Type: ledger.AccountTypeEquity, Credit: 5000},
		},
	}
	svc, c := newTestService(t, repo)
	ctx := context.Background()

	tb, err := svc.TrialBalance(ctx, time.Time{})
	require.NoError(t, err)
	require.Equal(t, tb.TotalDebit, tb.TotalCredit)
	require.Equal(t, ledger.Amount(5000), tb.TotalDebit)
	require.Equal(t, 1, repo.balanceCalls)

	_, err = svc.TrialBalance(ctx, time.Time{})
	require.NoError(t, err)
	require.Equal(t, 1, repo.balanceCalls, "second read served from cache")

	require.NoError(t, c.Bump(ctx))
	_, err = svc.TrialBalance(ctx, time.Time{})
	require.NoError(t, err)
	require.Equal(t, 2, repo.balanceCalls, "bump forces recompute")
}

func TestCashBookUsesOpeningFromRepo(t *testing.T) {
	repo := &stubReportRepo{
		cashOpening: 10000,
		cashRows: []CashMovementRow{
			{EntryID: 4, EntryDate: time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), Description: "Receipt", AccountCode: "1000", Debit: 4000},
		},
	}
	svc, _ := newTestService(t, repo)

	book, err := svc.CashBook(context.Background(), time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, ledger.Amount(10000), book.OpeningBalance)
	require.Equal(t, ledger.Amount(14000), book.ClosingBalance)
}

func TestCashBookRejectsInvertedRange(t *testing.T) {
	svc, _ := newTestService(t, &stubReportRepo{})
	_, err := svc.CashBook(context.Background(), time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	require.ErrorIs(t, err, ErrInvalidRange)
}

func TestRecalculateIsIdempotent(t *testing.T) {
	repo := &stubReportRepo{
		profitRows: []ProfitRow{
			{Kind: accounts.KindSalesRevenue, Code: "4000", Name: "Sales Revenue", Credit: 100000},
			{Kind: accounts.KindCOGS, Code: "5000", Name: "Cost of Goods Sold", Debit: 60000},
			{Kind: accounts.KindExpense, Code: "6-RENT", Name: "Rent", Debit: 25000},
		},
	}
	svc, _ := newTestService(t, repo)
	ctx := context.Background()
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)

	first, err := svc.Recalculate(ctx, from, to)
	require.NoError(t, err)
	second, err := svc.Recalculate(ctx, from, to)
	require.NoError(t, err)

	require.Equal(t, first, second, "same range, same figures")
	require.Equal(t, ledger.Amount(15000), first.NetProfit)
	require.True(t, first.IsProfit)
	require.Equal(t, 2, repo.profitCalls, "each recalculation recomputes from postings")
}

func TestAgingRejectsUnknownPartyType(t *testing.T) {
	svc, _ := newTestService(t, &stubReportRepo{})
	_, err := svc.Aging(context.Background(), accounts.PartyType("staff"))
	require.ErrorIs(t, err, ErrUnknownPartyType)
}

func TestAgingComputesDaysFromNow(t *testing.T) {
	repo := &stubReportRepo{
		partyRows: []PartyBalanceRow{
			{PartyID: 1, PartyName: "Acme", AccountCode: "AR-1", Balance: 60000, CreditLimit: 50000, LastActivity: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)},
		},
	}
	svc, _ := newTestService(t, repo)

	report, err := svc.Aging(context.Background(), accounts.PartyCustomer)
	require.NoError(t, err)
	require.Len(t, report.Lines, 1)
	require.True(t, report.Lines[0].OverLimit)
	require.Equal(t, 29, report.Lines[0].DaysSinceActive)
}
