package reports

import (
	"time"

	"github.com/caravel-erp/caravel/internal/ledger"
)

// CashMovementRow is one journal line against a cash or bank account inside
// the report range, already ordered by (entry_date, entry_id).
type CashMovementRow struct {
	EntryID     int64
	EntryDate   time.Time
	Description string
	AccountCode string
	Debit       ledger.Amount
	Credit      ledger.Amount
}

// CashBookLine is one movement with its running cash position.
type CashBookLine struct {
	EntryID        int64         `json:"entryId"`
	Date           time.Time     `json:"date"`
	Description    string        `json:"description"`
	AccountCode    string        `json:"accountCode"`
	CashIn         ledger.Amount `json:"cashIn"`
	CashOut        ledger.Amount `json:"cashOut"`
	RunningBalance ledger.Amount `json:"runningBalance"`
}

// CashBook is the combined cash and bank movement statement for a range.
// ClosingBalance always equals OpeningBalance + TotalCashIn - TotalCashOut.
type CashBook struct {
	From           time.Time      `json:"from"`
	To             time.Time      `json:"to"`
	OpeningBalance ledger.Amount  `json:"openingBalance"`
	Lines          []CashBookLine `json:"lines"`
	TotalCashIn    ledger.Amount  `json:"totalCashIn"`
	TotalCashOut   ledger.Amount  `json:"totalCashOut"`
	ClosingBalance ledger.Amount  `json:"closingBalance"`
}

// BuildCashBook folds cash movements into a running statement. Cash and bank
// accounts are debit-normal, so debits are receipts and credits payments.
func BuildCashBook(from, to time.Time, opening ledger.Amount, rows []CashMovementRow) CashBook {
	book := CashBook{
		From:           from,
		To:             to,
		OpeningBalance: opening,
		Lines:          make([]CashBookLine, 0, len(rows)),
	}
	running := opening
	for _, row := range rows {
		running += row.Debit - row.Credit
		book.Lines = append(book.Lines, CashBookLine{
			EntryID:        row.EntryID,
			Date:           row.EntryDate,
			Description:    row.Description,
			AccountCode:    row.AccountCode,
			CashIn:         row.Debit,
			CashOut:        row.Credit,
			RunningBalance: running,
		})
		book.TotalCashIn += row.Debit
		book.TotalCashOut += row.Credit
	}
	book.ClosingBalance = running
	return book
}
