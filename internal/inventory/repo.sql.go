package inventory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists stock balances and movements.
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

// WithTx runs fn inside a transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	if err := fn(ctx, &txRepository{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func (r *txRepository) GetBalanceForUpdate(ctx context.Context, productID int64) (Balance, error) {
	var b Balance
	err := r.tx.QueryRow(ctx, `SELECT product_id, qty, total_cost, updated_at
FROM inventory_balances WHERE product_id = $1 FOR UPDATE`, productID).
		Scan(&b.ProductID, &b.Qty, &b.TotalCost, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Balance{}, ErrBalanceNotFound
		}
		return Balance{}, err
	}
	return b, nil
}

func (r *txRepository) UpsertBalance(ctx context.Context, balance Balance) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO inventory_balances (product_id, qty, total_cost, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (product_id) DO UPDATE SET qty = EXCLUDED.qty, total_cost = EXCLUDED.total_cost, updated_at = EXCLUDED.updated_at`,
		balance.ProductID, balance.Qty, balance.TotalCost, balance.UpdatedAt)
	return err
}

func (r *txRepository) InsertMovement(ctx context.Context, movement Movement) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO inventory_movements (product_id, movement_type, qty_delta, cost_delta, ref_id, note, posted_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		movement.ProductID, movement.Type, movement.QtyDelta, movement.CostDelta, movement.RefID, movement.Note, movement.PostedAt)
	return err
}

// GetBalance reads a stock position outside a transaction.
func (r *Repository) GetBalance(ctx context.Context, productID int64) (Balance, error) {
	var b Balance
	err := r.pool.QueryRow(ctx, `SELECT product_id, qty, total_cost, updated_at
FROM inventory_balances WHERE product_id = $1`, productID).
		Scan(&b.ProductID, &b.Qty, &b.TotalCost, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Balance{}, ErrBalanceNotFound
		}
		return Balance{}, err
	}
	return b, nil
}

// StockCard lists movements for a product, newest first.
func (r *Repository) StockCard(ctx context.Context, productID int64, limit int) ([]Movement, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, movement_type, qty_delta, cost_delta, ref_id, note, posted_at
FROM inventory_movements WHERE product_id = $1 ORDER BY posted_at DESC, id DESC LIMIT $2`, productID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var movements []Movement
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.Type, &m.QtyDelta, &m.CostDelta, &m.RefID, &m.Note, &m.PostedAt); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}
