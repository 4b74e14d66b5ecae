package journal

import (
	"context"
	"errors"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/caravel-erp/caravel/internal/ledger"
)

// Repository persists journal entries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes fn within a repeatable-read transaction. The transaction is
// the unit of isolation for a posting: all lines commit together or not at all.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("journal repository not initialised")
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepository{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

const entryColumns = `id, entry_date, source_type, source_ref, description, reversal_of, posted_at, created_at`

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.EntryDate, &e.SourceType, &e.SourceRef, &e.Description, &e.ReversalOf, &e.PostedAt, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ledger.ErrEntryNotFound
		}
		return Entry{}, err
	}
	return e, nil
}

func (r *txRepository) AccountActive(ctx context.Context, accountID int64) (bool, error) {
	var active bool
	err := r.tx.QueryRow(ctx, `SELECT is_active FROM accounts WHERE id=$1`, accountID).Scan(&active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return active, nil
}

func (r *txRepository) InsertEntry(ctx context.Context, in PostingInput, reversalOf *int64) (Entry, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO journal_entries (entry_date, source_type, source_ref, description, reversal_of)
VALUES ($1,$2,$3,$4,$5) RETURNING `+entryColumns,
		in.EntryDate, in.SourceType, in.SourceRef, in.Description, reversalOf)
	return scanEntry(row)
}

func (r *txRepository) InsertLines(ctx context.Context, entryID int64, lines []LineInput) error {
	for _, line := range lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO journal_lines (entry_id, account_id, debit, credit)
VALUES ($1,$2,$3,$4)`, entryID, line.AccountID, line.Debit, line.Credit); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) LinkSource(ctx context.Context, sourceType SourceType, ref uuid.UUID, entryID int64) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO journal_sources (source_type, source_ref, entry_id) VALUES ($1,$2,$3)`, sourceType, ref, entryID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.ConstraintName == "uq_journal_sources" {
			return ledger.ErrSourceAlreadyLinked
		}
		return err
	}
	return nil
}

func (r *txRepository) GetEntryWithLines(ctx context.Context, entryID int64) (Entry, []Line, error) {
	entry, err := scanEntry(r.tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE id=$1`, entryID))
	if err != nil {
		return Entry{}, nil, err
	}
	rows, err := r.tx.Query(ctx, `SELECT id, entry_id, account_id, debit, credit FROM journal_lines WHERE entry_id=$1 ORDER BY id ASC`, entryID)
	if err != nil {
		return Entry{}, nil, err
	}
	defer rows.Close()
	var lines []Line
	for rows.Next() {
		var line Line
		if err := rows.Scan(&line.ID, &line.EntryID, &line.AccountID, &line.Debit, &line.Credit); err != nil {
			return Entry{}, nil, err
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return Entry{}, nil, err
	}
	return entry, lines, nil
}

func (r *txRepository) InsertReversalLink(ctx context.Context, originalID, reversalID int64) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO journal_reversals (original_id, reversal_id) VALUES ($1,$2)`, originalID, reversalID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.ConstraintName == "uq_journal_reversals" {
			return ledger.ErrAlreadyReversed
		}
		return err
	}
	return nil
}

// List returns entries matching the filter, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM journal_entries WHERE 1=1`
	args := []any{}
	idx := 1
	if !filter.From.IsZero() {
		query += ` AND entry_date >= $` + itoa(idx)
		args = append(args, filter.From)
		idx++
	}
	if !filter.To.IsZero() {
		query += ` AND entry_date <= $` + itoa(idx)
		args = append(args, filter.To)
		idx++
	}
	if filter.SourceType != "" {
		query += ` AND source_type = $` + itoa(idx)
		args = append(args, filter.SourceType)
		idx++
	}
	query += ` ORDER BY entry_date DESC, id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT $` + itoa(idx)
		args = append(args, filter.Limit)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// GetEntry loads one entry with its lines outside a transaction.
func (r *Repository) GetEntry(ctx context.Context, id int64) (Entry, error) {
	entry, err := scanEntry(r.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE id=$1`, id))
	if err != nil {
		return Entry{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, entry_id, account_id, debit, credit FROM journal_lines WHERE entry_id=$1 ORDER BY id ASC`, id)
	if err != nil {
		return Entry{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line Line
		if err := rows.Scan(&line.ID, &line.EntryID, &line.AccountID, &line.Debit, &line.Credit); err != nil {
			return Entry{}, err
		}
		entry.Lines = append(entry.Lines, line)
	}
	return entry, rows.Err()
}

func itoa(i int) string {
	return strconv.Itoa(i)
}
