package reports

import (
	"sort"
	"time"

	"github.com/caravel-erp/caravel/internal/ledger"
	"github.com/caravel-erp/caravel/internal/ledger/accounts"
)

// ProfitRow is one revenue, COGS or expense account with its period totals.
type ProfitRow struct {
	Kind   accounts.Kind
	Code   string
	Name   string
	Debit  ledger.Amount
	Credit ledger.Amount
}

// ExpenseLine is one operating expense category in the statement.
type ExpenseLine struct {
	Code   string        `json:"code"`
	Name   string        `json:"name"`
	Amount ledger.Amount `json:"amount"`
}

// ProfitAndLoss is the compiled income statement for a range. Margins are
// carried in basis points so the engine stays on integer arithmetic; the
// presentation layer divides by 100 for percent display.
type ProfitAndLoss struct {
	From                  time.Time     `json:"from"`
	To                    time.Time     `json:"to"`
	GrossSales            ledger.Amount `json:"grossSales"`
	SalesReturns          ledger.Amount `json:"salesReturns"`
	NetSales              ledger.Amount `json:"netSales"`
	COGS                  ledger.Amount `json:"cogs"`
	GrossProfit           ledger.Amount `json:"grossProfit"`
	GrossMarginBP         int64         `json:"grossMarginBp"`
	OperatingExpenses     []ExpenseLine `json:"operatingExpenses"`
	OperatingExpenseTotal ledger.Amount `json:"operatingExpenseTotal"`
	NetProfit             ledger.Amount `json:"netProfit"`
	NetMarginBP           int64         `json:"netMarginBp"`
	IsProfit              bool          `json:"isProfit"`
}

// GrossMarginPercent returns the gross margin for display.
func (p ProfitAndLoss) GrossMarginPercent() float64 { return float64(p.GrossMarginBP) / 100 }

// NetMarginPercent returns the net margin for display.
func (p ProfitAndLoss) NetMarginPercent() float64 { return float64(p.NetMarginBP) / 100 }

// BuildProfitAndLoss aggregates revenue, cost and expense rows into the
// income statement. Returns reduce gross sales; stock adjustments are carried
// inside operating expenses alongside the named expense categories.
func BuildProfitAndLoss(from, to time.Time, rows []ProfitRow) ProfitAndLoss {
	pl := ProfitAndLoss{From: from, To: to, OperatingExpenses: make([]ExpenseLine, 0)}
	for _, row := range rows {
		switch row.Kind {
		case accounts.KindSalesRevenue:
			pl.GrossSales += row.Credit - row.Debit
		case accounts.KindSalesReturns:
			pl.SalesReturns += row.Debit - row.Credit
		case accounts.KindCOGS:
			pl.COGS += row.Debit - row.Credit
		case accounts.KindExpense, accounts.KindStockAdjustment:
			amount := row.Debit - row.Credit
			pl.OperatingExpenses = append(pl.OperatingExpenses, ExpenseLine{
				Code:   row.Code,
				Name:   row.Name,
				Amount: amount,
			})
			pl.OperatingExpenseTotal += amount
		}
	}
	sort.Slice(pl.OperatingExpenses, func(i, j int) bool {
		return pl.OperatingExpenses[i].Code < pl.OperatingExpenses[j].Code
	})

	pl.NetSales = pl.GrossSales - pl.SalesReturns
	pl.GrossProfit = pl.NetSales - pl.COGS
	pl.NetProfit = pl.GrossProfit - pl.OperatingExpenseTotal
	pl.GrossMarginBP = marginBasisPoints(pl.GrossProfit, pl.NetSales)
	pl.NetMarginBP = marginBasisPoints(pl.NetProfit, pl.NetSales)
	pl.IsProfit = pl.NetProfit >= 0
	return pl
}

// marginBasisPoints computes part/whole in basis points, zero when the whole
// is zero so an empty period never divides by zero.
func marginBasisPoints(part, whole ledger.Amount) int64 {
	if whole == 0 {
		return 0
	}
	return part * 10000 / whole
}
