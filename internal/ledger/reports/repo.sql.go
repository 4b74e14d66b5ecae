package reports

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/caravel-erp/caravel/internal/ledger"
	"github.com/caravel-erp/caravel/internal/ledger/accounts"
)

// Repository runs the aggregate statement queries against postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// AccountBalances sums every active account's postings through the cut-off.
func (r *Repository) AccountBalances(ctx context.Context, asOf time.Time) ([]AccountBalanceRow, error) {
	rows, err := r.pool.Query(ctx, `
SELECT a.id, a.code, a.name, a.type,
       COALESCE(SUM(l.debit), 0), COALESCE(SUM(l.credit), 0)
FROM accounts a
LEFT JOIN (journal_lines l
           JOIN journal_entries e ON e.id = l.entry_id AND e.entry_date <= $1)
       ON l.account_id = a.id
WHERE a.is_active
GROUP BY a.id, a.code, a.name, a.type
ORDER BY a.code`, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []AccountBalanceRow
	for rows.Next() {
		var row AccountBalanceRow
		if err := rows.Scan(&row.AccountID, &row.Code, &row.Name, &row.Type, &row.Debit, &row.Credit); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// CashOpening sums cash and bank postings dated strictly before the range.
func (r *Repository) CashOpening(ctx context.Context, before time.Time) (ledger.Amount, error) {
	if before.IsZero() {
		return 0, nil
	}
	var opening int64
	err := r.pool.QueryRow(ctx, `
SELECT COALESCE(SUM(l.debit - l.credit), 0)
FROM journal_lines l
JOIN journal_entries e ON e.id = l.entry_id
JOIN accounts a ON a.id = l.account_id
WHERE a.kind IN ($1, $2) AND e.entry_date < $3`,
		accounts.KindCash, accounts.KindBank, before).Scan(&opening)
	return opening, err
}

// CashMovements loads cash and bank lines inside the range in posting order.
func (r *Repository) CashMovements(ctx context.Context, from, to time.Time) ([]CashMovementRow, error) {
	query := `
SELECT e.id, e.entry_date, e.description, a.code, l.debit, l.credit
FROM journal_lines l
JOIN journal_entries e ON e.id = l.entry_id
JOIN accounts a ON a.id = l.account_id
WHERE a.kind IN ($1, $2) AND e.entry_date <= $3`
	args := []any{accounts.KindCash, accounts.KindBank, to}
	if !from.IsZero() {
		query += ` AND e.entry_date >= $4`
		args = append(args, from)
	}
	query += ` ORDER BY e.entry_date ASC, e.id ASC, l.id ASC`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []CashMovementRow
	for rows.Next() {
		var row CashMovementRow
		if err := rows.Scan(&row.EntryID, &row.EntryDate, &row.Description, &row.AccountCode, &row.Debit, &row.Credit); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// ProfitRows sums revenue, return, COGS, expense and adjustment postings
// inside the range, one row per account.
func (r *Repository) ProfitRows(ctx context.Context, from, to time.Time) ([]ProfitRow, error) {
	query := `
SELECT a.kind, a.code, a.name,
       COALESCE(SUM(l.debit), 0), COALESCE(SUM(l.credit), 0)
FROM journal_lines l
JOIN journal_entries e ON e.id = l.entry_id
JOIN accounts a ON a.id = l.account_id
WHERE a.kind IN ($1, $2, $3, $4, $5) AND e.entry_date <= $6`
	args := []any{
		accounts.KindSalesRevenue, accounts.KindSalesReturns, accounts.KindCOGS,
		accounts.KindExpense, accounts.KindStockAdjustment, to,
	}
	if !from.IsZero() {
		query += ` AND e.entry_date >= $7`
		args = append(args, from)
	}
	query += ` GROUP BY a.kind, a.code, a.name ORDER BY a.code`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []ProfitRow
	for rows.Next() {
		var row ProfitRow
		if err := rows.Scan(&row.Kind, &row.Code, &row.Name, &row.Debit, &row.Credit); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// PartyBalances sums postings per party account through the cut-off,
// resolving the party master for names and credit limits. Balances come back
// on the account's normal side: debit-normal for receivables, credit-normal
// for payables.
func (r *Repository) PartyBalances(ctx context.Context, partyType accounts.PartyType, asOf time.Time) ([]PartyBalanceRow, error) {
	kind := accounts.KindCustomerReceivable
	sign := int64(1)
	if partyType == accounts.PartyVendor {
		kind = accounts.KindVendorPayable
		sign = -1
	}
	rows, err := r.pool.Query(ctx, `
SELECT p.id, p.name, a.code, p.credit_limit,
       COALESCE(SUM(l.debit - l.credit), 0),
       COALESCE(MAX(e.entry_date), 'epoch'::timestamptz)
FROM accounts a
JOIN parties p ON p.id = a.party_id
LEFT JOIN (journal_lines l
           JOIN journal_entries e ON e.id = l.entry_id AND e.entry_date <= $2)
       ON l.account_id = a.id
WHERE a.kind = $1 AND a.is_active
GROUP BY p.id, p.name, a.code, p.credit_limit
ORDER BY p.id`, kind, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []PartyBalanceRow
	for rows.Next() {
		var row PartyBalanceRow
		var net int64
		if err := rows.Scan(&row.PartyID, &row.PartyName, &row.AccountCode, &row.CreditLimit, &net, &row.LastActivity); err != nil {
			return nil, err
		}
		row.Balance = sign * net
		if row.LastActivity.Unix() <= 0 {
			row.LastActivity = time.Time{}
		}
		result = append(result, row)
	}
	return result, rows.Err()
}
