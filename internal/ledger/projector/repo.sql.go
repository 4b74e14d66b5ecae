package projector

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/caravel-erp/caravel/internal/ledger"
	"github.com/caravel-erp/caravel/internal/ledger/accounts"
)

// Repository reads posting data for the projector.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetAccount loads the account row backing a projection.
func (r *Repository) GetAccount(ctx context.Context, accountID int64) (accounts.Account, error) {
	var a accounts.Account
	err := r.pool.QueryRow(ctx, `SELECT id, code, name, kind, type, party_id, is_active, created_at, updated_at
FROM accounts WHERE id=$1`, accountID).
		Scan(&a.ID, &a.Code, &a.Name, &a.Kind, &a.Type, &a.PartyID, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return accounts.Account{}, ledger.ErrInvalidAccount
		}
		return accounts.Account{}, err
	}
	return a, nil
}

// SumsBefore aggregates debit/credit strictly before the cutoff date.
func (r *Repository) SumsBefore(ctx context.Context, accountID int64, before time.Time) (ledger.Amount, ledger.Amount, error) {
	var debit, credit ledger.Amount
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(l.debit),0), COALESCE(SUM(l.credit),0)
FROM journal_lines l
JOIN journal_entries e ON e.id = l.entry_id
WHERE l.account_id = $1 AND e.entry_date < $2`, accountID, before).Scan(&debit, &credit)
	return debit, credit, err
}

// SumsAll aggregates debit/credit over the account's whole history.
func (r *Repository) SumsAll(ctx context.Context, accountID int64) (ledger.Amount, ledger.Amount, error) {
	var debit, credit ledger.Amount
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(l.debit),0), COALESCE(SUM(l.credit),0)
FROM journal_lines l WHERE l.account_id = $1`, accountID).Scan(&debit, &credit)
	return debit, credit, err
}

// Postings lists posting rows for one account ordered by (entry_date,
// entry_id, line id). A zero from/to bound is open-ended.
func (r *Repository) Postings(ctx context.Context, accountID int64, from, to time.Time) ([]PostingRow, error) {
	query := `SELECT e.id, e.entry_date, e.source_type, e.description, l.debit, l.credit
FROM journal_lines l
JOIN journal_entries e ON e.id = l.entry_id
WHERE l.account_id = $1`
	args := []any{accountID}
	if !from.IsZero() {
		args = append(args, from)
		query += ` AND e.entry_date >= $2`
	}
	if !to.IsZero() {
		args = append(args, to)
		if len(args) == 3 {
			query += ` AND e.entry_date <= $3`
		} else {
			query += ` AND e.entry_date <= $2`
		}
	}
	query += ` ORDER BY e.entry_date ASC, e.id ASC, l.id ASC`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PostingRow
	for rows.Next() {
		var row PostingRow
		if err := rows.Scan(&row.EntryID, &row.EntryDate, &row.SourceType, &row.Description, &row.Debit, &row.Credit); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
