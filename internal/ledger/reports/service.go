// Package reports compiles the financial statements served to the console:
// trial balance, cash book, profit and loss, and receivable/payable aging.
// Statements are derived read models over posted journal lines. They are
// recomputed from durable postings at a fixed cut-off and cached under the
// ledger cache version, so any posting or reversal orphans stale copies.
package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/caravel-erp/caravel/internal/ledger"
	"github.com/caravel-erp/caravel/internal/ledger/accounts"
	"github.com/caravel-erp/caravel/internal/ledger/cache"
)

// Sentinel errors surfaced to the HTTP layer.
var (
	ErrInvalidRange     = errors.New("reports: invalid date range")
	ErrUnknownPartyType = errors.New("reports: unknown party type")
)

// RepositoryPort exposes the aggregate queries the compiler reads. Every
// query runs over posted journal lines at the given cut-off; the repository
// never mutates ledger state.
type RepositoryPort interface {
	AccountBalances(ctx context.Context, asOf time.Time) ([]AccountBalanceRow, error)
	CashOpening(ctx context.Context, before time.Time) (ledger.Amount, error)
	CashMovements(ctx context.Context, from, to time.Time) ([]CashMovementRow, error)
	ProfitRows(ctx context.Context, from, to time.Time) ([]ProfitRow, error)
	PartyBalances(ctx context.Context, partyType accounts.PartyType, asOf time.Time) ([]PartyBalanceRow, error)
}

// Service compiles statements, memoising results in the versioned cache and
// collapsing concurrent identical builds through singleflight.
type Service struct {
	repo   RepositoryPort
	cache  *cache.Cache
	logger *slog.Logger
	group  singleflight.Group
	now    func() time.Time
}

// NewService wires the statement compiler.
func NewService(repo RepositoryPort, c *cache.Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: c, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// TrialBalance compiles every active account's balance as of the cut-off.
// A zero asOf means "now".
func (s *Service) TrialBalance(ctx context.Context, asOf time.Time) (TrialBalance, error) {
	if asOf.IsZero() {
		asOf = s.now()
	}
	asOf = day(asOf)
	var report TrialBalance
	err := s.fetch(ctx, &report, func(ctx context.Context) (interface{}, error) {
		rows, err := s.repo.AccountBalances(ctx, asOf)
		if err != nil {
			return nil, err
		}
		tb := BuildTrialBalance(asOf, rows)
		if !tb.Balanced {
			// Debits diverging from credits means a corrupted journal, not
			// an empty one. Surface it loudly and still return the report so
			// the caller can show the difference.
			s.logger.Error("trial balance out of balance",
				slog.Time("as_of", asOf),
				slog.Int64("total_debit", tb.TotalDebit),
				slog.Int64("total_credit", tb.TotalCredit))
		}
		return tb, nil
	}, "tb", asOf.Format("2006-01-02"))
	return report, err
}

// CashBook compiles the combined cash and bank movement statement.
func (s *Service) CashBook(ctx context.Context, from, to time.Time) (CashBook, error) {
	from, to, err := s.normalizeRange(from, to)
	if err != nil {
		return CashBook{}, err
	}
	var book CashBook
	err = s.fetch(ctx, &book, func(ctx context.Context) (interface{}, error) {
		opening, err := s.repo.CashOpening(ctx, from)
		if err != nil {
			return nil, err
		}
		rows, err := s.repo.CashMovements(ctx, from, to)
		if err != nil {
			return nil, err
		}
		return BuildCashBook(from, to, opening, rows), nil
	}, "cashbook", from.Format("2006-01-02"), to.Format("2006-01-02"))
	return book, err
}

// ProfitAndLoss compiles the income statement for the range.
func (s *Service) ProfitAndLoss(ctx context.Context, from, to time.Time) (ProfitAndLoss, error) {
	from, to, err := s.normalizeRange(from, to)
	if err != nil {
		return ProfitAndLoss{}, err
	}
	var pl ProfitAndLoss
	err = s.fetch(ctx, &pl, func(ctx context.Context) (interface{}, error) {
		rows, err := s.repo.ProfitRows(ctx, from, to)
		if err != nil {
			return nil, err
		}
		return BuildProfitAndLoss(from, to, rows), nil
	}, "pl", from.Format("2006-01-02"), to.Format("2006-01-02"))
	return pl, err
}

// Aging compiles outstanding balances for customers (receivables) or vendors
// (payables) as of now.
func (s *Service) Aging(ctx context.Context, partyType accounts.PartyType) (Aging, error) {
	if partyType != accounts.PartyCustomer && partyType != accounts.PartyVendor {
		return Aging{}, fmt.Errorf("%w: %q", ErrUnknownPartyType, partyType)
	}
	asOf := day(s.now())
	var report Aging
	err := s.fetch(ctx, &report, func(ctx context.Context) (interface{}, error) {
		rows, err := s.repo.PartyBalances(ctx, partyType, asOf)
		if err != nil {
			return nil, err
		}
		return BuildAging(partyType, asOf, rows), nil
	}, "aging", string(partyType), asOf.Format("2006-01-02"))
	return report, err
}

// Recalculate rebuilds the cached profit figures for the range from the
// posted journal lines. It bumps the cache version so every derived
// statement is re-derived on next read, then compiles the range fresh.
// Posted entries are never touched, so repeated runs over the same range
// always land on the same answer.
func (s *Service) Recalculate(ctx context.Context, from, to time.Time) (ProfitAndLoss, error) {
	from, to, err := s.normalizeRange(from, to)
	if err != nil {
		return ProfitAndLoss{}, err
	}
	if err := s.cache.Bump(ctx); err != nil {
		return ProfitAndLoss{}, err
	}
	pl, err := s.ProfitAndLoss(ctx, from, to)
	if err != nil {
		return ProfitAndLoss{}, err
	}
	s.logger.Info("profit figures recalculated",
		slog.Time("from", from),
		slog.Time("to", to),
		slog.Int64("net_profit", pl.NetProfit))
	return pl, nil
}

// fetch serves a report from cache, collapsing concurrent identical builds.
func (s *Service) fetch(ctx context.Context, dest interface{}, loader func(context.Context) (interface{}, error), keyParts ...string) error {
	parts := append([]string{"ledger", "reports"}, keyParts...)
	key, err := s.cache.BuildKey(ctx, parts...)
	if err != nil {
		return err
	}
	resultChan := s.group.DoChan(key, func() (interface{}, error) {
		var raw json.RawMessage
		if err := s.cache.FetchJSON(ctx, key, &raw, loader); err != nil {
			return nil, err
		}
		return raw, nil
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return res.Err
		}
		return json.Unmarshal(res.Val.(json.RawMessage), dest)
	}
}

func (s *Service) normalizeRange(from, to time.Time) (time.Time, time.Time, error) {
	if to.IsZero() {
		to = s.now()
	}
	from, to = day(from), day(to)
	if !from.IsZero() && from.After(to) {
		return time.Time{}, time.Time{}, ErrInvalidRange
	}
	return from, to, nil
}

func day(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC().Truncate(24 * time.Hour)
}
