package reports

import (
	"sort"
	"time"

	"github.com/caravel-erp/caravel/internal/ledger"
)

// AccountBalanceRow models one active account with its aggregated debit and
// credit totals through the report cut-off.
type AccountBalanceRow struct {
	AccountID int64
	Code      string
	Name      string
	Type      ledger.AccountType
	Debit     ledger.Amount
	Credit    ledger.Amount
}

// TrialBalanceRow places an account's net balance on the column matching its
// normal side. The opposite column is always zero.
type TrialBalanceRow struct {
	AccountID int64              `json:"accountId"`
	Code      string             `json:"code"`
	Name      string             `json:"name"`
	Type      ledger.AccountType `json:"type"`
	Debit     ledger.Amount      `json:"debit"`
	Credit    ledger.Amount      `json:"credit"`
}

// TrialBalance is the compiled statement. TotalDebit == TotalCredit holds for
// any cut-off because every posted entry balances individually.
type TrialBalance struct {
	AsOf        time.Time         `json:"asOf"`
	Rows        []TrialBalanceRow `json:"rows"`
	TotalDebit  ledger.Amount     `json:"totalDebit"`
	TotalCredit ledger.Amount     `json:"totalCredit"`
	Balanced    bool              `json:"balanced"`
}

// BuildTrialBalance compiles account balances into trial balance rows ordered
// by account code. A net balance lands on the account's normal side; a
// contra balance (net opposite its normal side) lands on the other column so
// the report still foots.
func BuildTrialBalance(asOf time.Time, accounts []AccountBalanceRow) TrialBalance {
	result := TrialBalance{AsOf: asOf, Rows: make([]TrialBalanceRow, 0, len(accounts))}
	for _, acc := range accounts {
		row := TrialBalanceRow{
			AccountID: acc.AccountID,
			Code:      acc.Code,
			Name:      acc.Name,
			Type:      acc.Type,
		}
		net := acc.Debit - acc.Credit
		if net >= 0 {
			row.Debit = net
		} else {
			row.Credit = -net
		}
		result.Rows = append(result.Rows, row)
		result.TotalDebit += row.Debit
		result.TotalCredit += row.Credit
	}
	sort.Slice(result.Rows, func(i, j int) bool {
		return result.Rows[i].Code < result.Rows[j].Code
	})
	result.Balanced = result.TotalDebit == result.TotalCredit
	return result
}
