package reports

import (
	"sort"
	"time"

	"github.com/caravel-erp/caravel/internal/ledger"
	"github.com/caravel-erp/caravel/internal/ledger/accounts"
)

// PartyBalanceRow is one party account with its outstanding balance on the
// account's normal side, the date of its most recent posting and the party's
// configured credit limit (zero when none).
type PartyBalanceRow struct {
	PartyID      int64
	PartyName    string
	AccountCode  string
	Balance      ledger.Amount
	LastActivity time.Time
	CreditLimit  ledger.Amount
}

// AgingLine is one outstanding party in the aging report.
type AgingLine struct {
	PartyID          int64         `json:"partyId"`
	PartyName        string        `json:"partyName"`
	AccountCode      string        `json:"accountCode"`
	Balance          ledger.Amount `json:"balance"`
	LastActivityDate time.Time     `json:"lastActivityDate"`
	DaysSinceActive  int           `json:"daysSinceActive"`
	CreditLimit      ledger.Amount `json:"creditLimit,omitempty"`
	OverLimit        bool          `json:"overLimit"`
}

// Aging lists outstanding receivable or payable balances per party.
type Aging struct {
	PartyType accounts.PartyType `json:"partyType"`
	AsOf      time.Time          `json:"asOf"`
	Lines     []AgingLine        `json:"lines"`
	Total     ledger.Amount      `json:"total"`
}

// BuildAging compiles outstanding party balances ordered by recency, stalest
// first. Parties with a zero balance are dropped. Over-limit is flagged only
// when a positive credit limit is configured and the balance exceeds it.
func BuildAging(partyType accounts.PartyType, asOf time.Time, rows []PartyBalanceRow) Aging {
	report := Aging{PartyType: partyType, AsOf: asOf, Lines: make([]AgingLine, 0, len(rows))}
	for _, row := range rows {
		if row.Balance == 0 {
			continue
		}
		line := AgingLine{
			PartyID:          row.PartyID,
			PartyName:        row.PartyName,
			AccountCode:      row.AccountCode,
			Balance:          row.Balance,
			LastActivityDate: row.LastActivity,
			CreditLimit:      row.CreditLimit,
		}
		if !row.LastActivity.IsZero() && asOf.After(row.LastActivity) {
			line.DaysSinceActive = int(asOf.Sub(row.LastActivity).Hours() / 24)
		}
		if row.CreditLimit > 0 && row.Balance > row.CreditLimit {
			line.OverLimit = true
		}
		report.Lines = append(report.Lines, line)
		report.Total += line.Balance
	}
	sort.Slice(report.Lines, func(i, j int) bool {
		if report.Lines[i].DaysSinceActive != report.Lines[j].DaysSinceActive {
			return report.Lines[i].DaysSinceActive > report.Lines[j].DaysSinceActive
		}
		return report.Lines[i].PartyID < report.Lines[j].PartyID
	})
	return report
}
