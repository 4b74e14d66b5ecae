package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/caravel-erp/caravel/internal/ledger"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetBalance(ctx context.Context, productID int64) (Balance, error)
	StockCard(ctx context.Context, productID int64, limit int) ([]Movement, error)
}

// TxRepository is the transactional slice of the repository. The balance row
// is read under a row lock so concurrent movements on one product serialize.
type TxRepository interface {
	GetBalanceForUpdate(ctx context.Context, productID int64) (Balance, error)
	UpsertBalance(ctx context.Context, balance Balance) error
	InsertMovement(ctx context.Context, movement Movement) error
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	AllowNegativeStock bool
}

// Service maintains stock positions and answers cost-basis questions.
type Service struct {
	repo     RepositoryPort
	allowNeg bool
	now      func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, cfg ServiceConfig) *Service {
	return &Service{repo: repo, allowNeg: cfg.AllowNegativeStock, now: func() time.Time { return time.Now().UTC() }}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// RecordReceipt adds purchased stock at the given unit cost and returns the
// total cost added, which the purchase posting source debits to inventory.
func (s *Service) RecordReceipt(ctx context.Context, productID, qty int64, unitCost ledger.Amount, refID string) (ledger.Amount, error) {
	if qty <= 0 {
		return 0, ErrInvalidQuantity
	}
	if unitCost < 0 {
		return 0, ErrInvalidUnitCost
	}
	costDelta := qty * unitCost
	err := s.move(ctx, Movement{
		ProductID: productID,
		Type:      MovementReceipt,
		QtyDelta:  qty,
		CostDelta: costDelta,
		RefID:     refID,
	})
	if err != nil {
		return 0, err
	}
	return costDelta, nil
}

// ConsumeForSale removes sold stock at the moving-average cost and returns
// the exact cost basis for the COGS line.
func (s *Service) ConsumeForSale(ctx context.Context, productID, qty int64, refID string) (ledger.Amount, error) {
	if qty <= 0 {
		return 0, ErrInvalidQuantity
	}
	var costBasis ledger.Amount
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		balance, err := s.lockBalance(ctx, tx, productID)
		if err != nil {
			return err
		}
		if !s.allowNeg && qty > balance.Qty {
			return ErrNegativeStock
		}
		costBasis = consumptionCost(balance, qty)
		balance.Qty -= qty
		balance.TotalCost -= costBasis
		if balance.Qty <= 0 {
			// An emptied (or negative) position carries no cost.
			balance.TotalCost = 0
		}
		balance.UpdatedAt = s.now()
		if err := tx.UpsertBalance(ctx, balance); err != nil {
			return err
		}
		return tx.InsertMovement(ctx, Movement{
			ProductID: productID,
			Type:      MovementConsumption,
			QtyDelta:  -qty,
			CostDelta: -costBasis,
			RefID:     refID,
			PostedAt:  s.now(),
		})
	})
	if err != nil {
		return 0, err
	}
	return costBasis, nil
}

// Adjust applies a manual stock correction. Positive deltas need a unit
// cost; negative deltas consume at the moving average. The returned cost
// delta is what the adjustment posting source books against the inventory
// account (positive: inventory gained value).
func (s *Service) Adjust(ctx context.Context, productID, qtyDelta int64, unitCost ledger.Amount, refID, note string) (ledger.Amount, error) {
	if qtyDelta == 0 {
		return 0, ErrInvalidQuantity
	}
	if qtyDelta > 0 && unitCost < 0 {
		return 0, ErrInvalidUnitCost
	}
	var costDelta ledger.Amount
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		balance, err := s.lockBalance(ctx, tx, productID)
		if err != nil {
			return err
		}
		if qtyDelta > 0 {
			costDelta = qtyDelta * unitCost
		} else {
			if !s.allowNeg && -qtyDelta > balance.Qty {
				return ErrNegativeStock
			}
			costDelta = -consumptionCost(balance, -qtyDelta)
		}
		balance.Qty += qtyDelta
		balance.TotalCost += costDelta
		if balance.Qty <= 0 {
			balance.TotalCost = 0
		}
		balance.UpdatedAt = s.now()
		if err := tx.UpsertBalance(ctx, balance); err != nil {
			return err
		}
		return tx.InsertMovement(ctx, Movement{
			ProductID: productID,
			Type:      MovementAdjustment,
			QtyDelta:  qtyDelta,
			CostDelta: costDelta,
			RefID:     refID,
			Note:      note,
			PostedAt:  s.now(),
		})
	})
	if err != nil {
		return 0, err
	}
	return costDelta, nil
}

// OnHand returns the current stock position for a product.
func (s *Service) OnHand(ctx context.Context, productID int64) (Balance, error) {
	balance, err := s.repo.GetBalance(ctx, productID)
	if errors.Is(err, ErrBalanceNotFound) {
		return Balance{ProductID: productID}, nil
	}
	return balance, err
}

// StockCard lists recent movements for a product, newest first.
func (s *Service) StockCard(ctx context.Context, productID int64, limit int) ([]Movement, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.repo.StockCard(ctx, productID, limit)
}

func (s *Service) move(ctx context.Context, movement Movement) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		balance, err := s.lockBalance(ctx, tx, movement.ProductID)
		if err != nil {
			return err
		}
		balance.Qty += movement.QtyDelta
		balance.TotalCost += movement.CostDelta
		balance.UpdatedAt = s.now()
		if err := tx.UpsertBalance(ctx, balance); err != nil {
			return err
		}
		movement.PostedAt = s.now()
		return tx.InsertMovement(ctx, movement)
	})
}

func (s *Service) lockBalance(ctx context.Context, tx TxRepository, productID int64) (Balance, error) {
	balance, err := tx.GetBalanceForUpdate(ctx, productID)
	if err != nil {
		if errors.Is(err, ErrBalanceNotFound) {
			return Balance{ProductID: productID}, nil
		}
		return Balance{}, err
	}
	return balance, nil
}

// consumptionCost prices an outbound quantity against the position's exact
// total cost, proportionally, rounding half up. Taking the whole position
// takes the whole cost.
func consumptionCost(balance Balance, qty int64) ledger.Amount {
	if balance.Qty <= 0 || balance.TotalCost <= 0 {
		return 0
	}
	if qty >= balance.Qty {
		return balance.TotalCost
	}
	return (balance.TotalCost*qty + balance.Qty/2) / balance.Qty
}
