package party

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/caravel-erp/caravel/internal/ledger"
	"github.com/caravel-erp/caravel/internal/ledger/accounts"
)

// ListFilters scopes party listings.
type ListFilters struct {
	Type       accounts.PartyType
	Search     string
	ActiveOnly bool
}

// Repository is the persistence port for the party master.
type Repository interface {
	List(ctx context.Context, filters ListFilters) ([]Party, error)
	Get(ctx context.Context, id int64) (Party, error)
	Create(ctx context.Context, p Party) (Party, error)
	Update(ctx context.Context, id int64, p Party) error
	Deactivate(ctx context.Context, id int64) error
	UpdateCachedBalance(ctx context.Context, id int64, balance ledger.Amount, syncedAt time.Time) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository builds the postgres-backed repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const partyColumns = `id, party_type, name, phone, address, credit_limit, is_active, cached_balance, balance_synced_at, created_at, updated_at`

func scanParty(row pgx.Row) (Party, error) {
	var p Party
	err := row.Scan(&p.ID, &p.Type, &p.Name, &p.Phone, &p.Address, &p.CreditLimit, &p.IsActive,
		&p.CachedBalance, &p.BalanceSyncedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Party{}, ErrNotFound
		}
		return Party{}, err
	}
	return p, nil
}

func (r *repository) List(ctx context.Context, filters ListFilters) ([]Party, error) {
	query := `SELECT ` + partyColumns + ` FROM parties WHERE 1=1`
	args := []interface{}{}
	argCount := 0

	if filters.Type != "" {
		argCount++
		query += ` AND party_type = $` + strconv.Itoa(argCount)
		args = append(args, filters.Type)
	}
	if filters.Search != "" {
		argCount++
		query += ` AND name ILIKE $` + strconv.Itoa(argCount)
		args = append(args, "%"+filters.Search+"%")
	}
	if filters.ActiveOnly {
		query += ` AND is_active`
	}
	query += ` ORDER BY name ASC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var parties []Party
	for rows.Next() {
		p, err := scanParty(rows)
		if err != nil {
			return nil, err
		}
		parties = append(parties, p)
	}
	return parties, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Party, error) {
	return scanParty(r.db.QueryRow(ctx, `SELECT `+partyColumns+` FROM parties WHERE id = $1`, id))
}

func (r *repository) Create(ctx context.Context, p Party) (Party, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO parties (party_type, name, phone, address, credit_limit, is_active)
VALUES ($1, $2, $3, $4, $5, TRUE)
RETURNING `+partyColumns, p.Type, p.Name, p.Phone, p.Address, p.CreditLimit)
	return scanParty(row)
}

func (r *repository) Update(ctx context.Context, id int64, p Party) error {
	tag, err := r.db.Exec(ctx, `UPDATE parties SET name = $1, phone = $2, address = $3, credit_limit = $4, updated_at = NOW()
WHERE id = $5`, p.Name, p.Phone, p.Address, p.CreditLimit, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) Deactivate(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE parties SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) UpdateCachedBalance(ctx context.Context, id int64, balance ledger.Amount, syncedAt time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE parties SET cached_balance = $1, balance_synced_at = $2 WHERE id = $3`, balance, syncedAt, id)
	return err
}
