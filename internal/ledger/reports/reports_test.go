package reports

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/caravel-erp/caravel/internal/ledger"
	"github.com/caravel-erp/caravel/internal/ledger/accounts"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestBuildTrialBalanceFootsAfterSale(t *testing.T) {
	// Sale entry: AR 10,000 / Revenue 10,000 plus COGS 7,000 / Inventory 7,000.
	rows := []AccountBalanceRow{
		{AccountID: 1, Code: "1200", Name: "Inventory", Type: ledger.AccountTypeAsset, Debit: 0, Credit: 7000},
		{AccountID: 2, Code: "4000", Name: "Sales Revenue", Type: ledger.AccountTypeRevenue, Debit: 0, Credit: 10000},
		{AccountID: 3, Code: "5000", Name: "Cost of Goods Sold", Type: ledger.AccountTypeExpense, Debit: 7000, Credit: 0},
		{AccountID: 4, Code: "AR-1", Name: "Acme Traders", Type: ledger.AccountTypeAsset, Debit: 10000, Credit: 0},
	}
	tb := BuildTrialBalance(date(2025, 3, 31), rows)

	require.Equal(t, ledger.Amount(17000), tb.TotalDebit)
	require.Equal(t, ledger.Amount(17000), tb.TotalCredit)
	require.True(t, tb.Balanced)

	require.Len(t, tb.Rows, 4)
	require.Equal(t, "1200", tb.Rows[0].Code, "rows ordered by code")
	require.Equal(t, ledger.Amount(7000), tb.Rows[0].Credit, "inventory credit balance lands on credit column")
	require.Zero(t, tb.Rows[0].Debit)
	require.Equal(t, ledger.Amount(10000), tb.Rows[3].Debit, "receivable balance on debit column")
}

func TestBuildTrialBalanceEmptyIsBalanced(t *testing.T) {
	tb := BuildTrialBalance(date(2025, 1, 1), nil)
	require.Zero(t, tb.TotalDebit)
	require.Zero(t, tb.TotalCredit)
	require.True(t, tb.Balanced)
	require.Empty(t, tb.Rows)
}

func TestBuildCashBookClosingLaw(t *testing.T) {
	rows := []CashMovementRow{
		{EntryID: 10, EntryDate: date(2025, 2, 3), Description: "Receipt from Acme", AccountCode: "1000", Debit: 4000},
		{EntryID: 11, EntryDate: date(2025, 2, 5), Description: "Rent paid", AccountCode: "1010", Credit: 1500},
		{EntryID: 12, EntryDate: date(2025, 2, 9), Description: "Cash sale", AccountCode: "1000", Debit: 2500},
	}
	book := BuildCashBook(date(2025, 2, 1), date(2025, 2, 28), 10000, rows)

	require.Equal(t, ledger.Amount(6500), book.TotalCashIn)
	require.Equal(t, ledger.Amount(1500), book.TotalCashOut)
	require.Equal(t, book.OpeningBalance+book.TotalCashIn-book.TotalCashOut, book.ClosingBalance)
	require.Equal(t, ledger.Amount(15000), book.ClosingBalance)

	require.Equal(t, ledger.Amount(14000), book.Lines[0].RunningBalance)
	require.Equal(t, ledger.Amount(12500), book.Lines[1].RunningBalance)
	require.Equal(t, ledger.Amount(15000), book.Lines[2].RunningBalance)
}

func TestBuildCashBookEmptyRange(t *testing.T) {
	book := BuildCashBook(date(2025, 2, 1), date(2025, 2, 28), 8200, nil)
	require.Equal(t, book.OpeningBalance, book.ClosingBalance)
	require.Empty(t, book.Lines)
}

func TestBuildProfitAndLossDerivationLaw(t *testing.T) {
	rows := []ProfitRow{
		{Kind: accounts.KindSalesRevenue, Code: "4000", Name: "Sales Revenue", Credit: 105000},
		{Kind: accounts.KindSalesReturns, Code: "4100", Name: "Sales Returns", Debit: 5000},
		{Kind: accounts.KindCOGS, Code: "5000", Name: "Cost of Goods Sold", Debit: 60000},
		{Kind: accounts.KindExpense, Code: "6-RENT", Name: "Rent", Debit: 18000},
		{Kind: accounts.KindExpense, Code: "6-UTIL", Name: "Utilities", Debit: 7000},
	}
	pl := BuildProfitAndLoss(date(2025, 1, 1), date(2025, 12, 31), rows)

	require.Equal(t, ledger.Amount(100000), pl.NetSales)
	require.Equal(t, ledger.Amount(60000), pl.COGS)
	require.Equal(t, ledger.Amount(40000), pl.GrossProfit)
	require.Equal(t, int64(4000), pl.GrossMarginBP, "40% gross margin")
	require.Equal(t, ledger.Amount(25000), pl.OperatingExpenseTotal)
	require.Equal(t, ledger.Amount(15000), pl.NetProfit)
	require.Equal(t, int64(1500), pl.NetMarginBP, "15% net margin")
	require.True(t, pl.IsProfit)
	require.Equal(t, pl.GrossProfit-pl.OperatingExpenseTotal, pl.NetProfit)
	require.InDelta(t, 40.0, pl.GrossMarginPercent(), 0.0001)
	require.InDelta(t, 15.0, pl.NetMarginPercent(), 0.0001)
}

func TestBuildProfitAndLossLoss(t *testing.T) {
	rows := []ProfitRow{
		{Kind: accounts.KindSalesRevenue, Code: "4000", Name: "Sales Revenue", Credit: 20000},
		{Kind: accounts.KindCOGS, Code: "5000", Name: "Cost of Goods Sold", Debit: 15000},
		{Kind: accounts.KindStockAdjustment, Code: "5900", Name: "Inventory Adjustment", Debit: 3000},
		{Kind: accounts.KindExpense, Code: "6-RENT", Name: "Rent", Debit: 9000},
	}
	pl := BuildProfitAndLoss(date(2025, 1, 1), date(2025, 1, 31), rows)

	require.Equal(t, ledger.Amount(12000), pl.OperatingExpenseTotal, "adjustment counts as operating expense")
	require.Equal(t, ledger.Amount(-7000), pl.NetProfit)
	require.False(t, pl.IsProfit)
}

func TestBuildProfitAndLossZeroSalesNoDivide(t *testing.T) {
	rows := []ProfitRow{
		{Kind: accounts.KindExpense, Code: "6-RENT", Name: "Rent", Debit: 5000},
	}
	pl := BuildProfitAndLoss(date(2025, 1, 1), date(2025, 1, 31), rows)
	require.Zero(t, pl.NetSales)
	require.Zero(t, pl.GrossMarginBP)
	require.Zero(t, pl.NetMarginBP)
	require.Equal(t, ledger.Amount(-5000), pl.NetProfit)
}

func TestBuildAgingFlagsOverLimit(t *testing.T) {
	asOf := date(2025, 6, 30)
	rows := []PartyBalanceRow{
		{PartyID: 1, PartyName: "Acme Traders", AccountCode: "AR-1", Balance: 60000, CreditLimit: 50000, LastActivity: date(2025, 6, 1)},
		{PartyID: 2, PartyName: "Borealis Ltd", AccountCode: "AR-2", Balance: 20000, CreditLimit: 50000, LastActivity: date(2025, 6, 20)},
		{PartyID: 3, PartyName: "Settled Stores", AccountCode: "AR-3", Balance: 0, LastActivity: date(2025, 5, 2)},
	}
	report := BuildAging(accounts.PartyCustomer, asOf, rows)

	require.Len(t, report.Lines, 2, "zero balances dropped")
	require.Equal(t, ledger.Amount(80000), report.Total)

	// Stalest first.
	require.Equal(t, int64(1), report.Lines[0].PartyID)
	require.True(t, report.Lines[0].OverLimit, "60,000 over a 50,000 limit")
	require.Equal(t, 29, report.Lines[0].DaysSinceActive)
	require.False(t, report.Lines[1].OverLimit)
}

func TestBuildAgingNoLimitNeverFlagged(t *testing.T) {
	report := BuildAging(accounts.PartyVendor, date(2025, 6, 30), []PartyBalanceRow{
		{PartyID: 9, PartyName: "Open Vendor", AccountCode: "AP-9", Balance: 999999, CreditLimit: 0},
	})
	require.Len(t, report.Lines, 1)
	require.False(t, report.Lines[0].OverLimit)
}
