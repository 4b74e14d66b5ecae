package accounts

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists the chart of accounts.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const accountColumns = `id, code, name, kind, type, party_id, is_active, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Code, &a.Name, &a.Kind, &a.Type, &a.PartyID, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}

// GetFixed resolves a seeded singleton account by kind.
func (r *Repository) GetFixed(ctx context.Context, kind Kind) (Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE kind=$1 AND party_id IS NULL LIMIT 1`, kind)
	return scanAccount(row)
}

// GetByCode resolves an account by its unique code.
func (r *Repository) GetByCode(ctx context.Context, code string) (Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE code=$1`, code)
	return scanAccount(row)
}

// GetByID resolves an account by id.
func (r *Repository) GetByID(ctx context.Context, id int64) (Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1`, id)
	return scanAccount(row)
}

// Insert creates an account. Concurrent mints of the same code race safely:
// the loser reads back the winner's row.
func (r *Repository) Insert(ctx context.Context, account Account) (Account, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO accounts (code, name, kind, type, party_id, is_active)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (code) DO NOTHING
RETURNING `+accountColumns, account.Code, account.Name, account.Kind, account.Type, account.PartyID, account.IsActive)
	inserted, err := scanAccount(row)
	if err == nil {
		return inserted, nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return Account{}, err
	}
	return r.GetByCode(ctx, account.Code)
}

// List returns accounts ordered by code.
func (r *Repository) List(ctx context.Context, activeOnly bool) ([]Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY code`
	if activeOnly {
		query = `SELECT ` + accountColumns + ` FROM accounts WHERE is_active ORDER BY code`
	}
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acc)
	}
	return accounts, rows.Err()
}

// Deactivate marks an account inactive.
func (r *Repository) Deactivate(ctx context.Context, id int64) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE accounts SET is_active=FALSE, updated_at=NOW() WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// HasPostings reports whether any journal line references the account.
func (r *Repository) HasPostings(ctx context.Context, id int64) (bool, error) {
	var posted bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM journal_lines WHERE account_id=$1)`, id).Scan(&posted)
	if err != nil {
		return false, err
	}
	return posted, nil
}

// SeedFixedChart inserts the fixed singleton accounts if absent.
func (r *Repository) SeedFixedChart(ctx context.Context) error {
	for kind, spec := range fixedChart {
		_, err := r.pool.Exec(ctx, `INSERT INTO accounts (code, name, kind, type, is_active)
VALUES ($1,$2,$3,$4,TRUE) ON CONFLICT (code) DO NOTHING`, spec.Code, spec.Name, kind, spec.Type)
		if err != nil {
			return err
		}
	}
	return nil
}
