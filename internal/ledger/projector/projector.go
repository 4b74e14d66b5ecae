// Package projector derives per-account posting sequences with running
// balances from the durable journal. Balances are recomputed from postings on
// every read, so they are linearizable with respect to commits by
// construction; the redis report cache is purely an optimization layered on
// top and is invalidated on every posting.
package projector

import (
	"context"
	"errors"
	"time"

	"github.com/caravel-erp/caravel/internal/ledger"
	"github.com/caravel-erp/caravel/internal/ledger/accounts"
	"github.com/caravel-erp/caravel/internal/ledger/journal"
)

// PostingRow is one journal line hit on an account, in ledger order.
type PostingRow struct {
	EntryID     int64
	EntryDate   time.Time
	SourceType  journal.SourceType
	Description string
	Debit       ledger.Amount
	Credit      ledger.Amount
}

// Posting is the projected effect of one row on the account balance.
type Posting struct {
	EntryID        int64
	EntryDate      time.Time
	SourceType     journal.SourceType
	Description    string
	Debit          ledger.Amount
	Credit         ledger.Amount
	Delta          ledger.Amount
	RunningBalance ledger.Amount
}

// AccountLedger is the projected ledger view over a date range.
type AccountLedger struct {
	Account        accounts.Account
	From           time.Time
	To             time.Time
	OpeningBalance ledger.Amount
	Postings       []Posting
	ClosingBalance ledger.Amount
}

// RepositoryPort abstracts the posting queries the projector needs. Rows must
// be ordered by (entry_date, entry_id): entry id is the tie-break so running
// balances are deterministic and reproducible for audit.
type RepositoryPort interface {
	GetAccount(ctx context.Context, accountID int64) (accounts.Account, error)
	SumsBefore(ctx context.Context, accountID int64, before time.Time) (debit, credit ledger.Amount, err error)
	SumsAll(ctx context.Context, accountID int64) (debit, credit ledger.Amount, err error)
	Postings(ctx context.Context, accountID int64, from, to time.Time) ([]PostingRow, error)
}

// Service projects account ledgers and balances.
type Service struct {
	repo RepositoryPort
}

// NewService constructs the projector.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Ledger returns the account's postings between from and to inclusive, each
// annotated with the running balance immediately after applying it. The
// opening balance is the balance as of the instant before from.
func (s *Service) Ledger(ctx context.Context, accountID int64, from, to time.Time) (AccountLedger, error) {
	if accountID == 0 {
		return AccountLedger{}, errors.New("projector: account id required")
	}
	if !to.IsZero() && !from.IsZero() && to.Before(from) {
		return AccountLedger{}, errors.New("projector: range end before start")
	}
	account, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return AccountLedger{}, err
	}
	var opening ledger.Amount
	if !from.IsZero() {
		debit, credit, err := s.repo.SumsBefore(ctx, accountID, from)
		if err != nil {
			return AccountLedger{}, err
		}
		opening = ledger.SignedDelta(account.Type, debit, credit)
	}
	rows, err := s.repo.Postings(ctx, accountID, from, to)
	if err != nil {
		return AccountLedger{}, err
	}
	result := AccountLedger{
		Account:        account,
		From:           from,
		To:             to,
		OpeningBalance: opening,
		ClosingBalance: opening,
	}
	running := opening
	for _, row := range rows {
		delta := ledger.SignedDelta(account.Type, row.Debit, row.Credit)
		running += delta
		result.Postings = append(result.Postings, Posting{
			EntryID:        row.EntryID,
			EntryDate:      row.EntryDate,
			SourceType:     row.SourceType,
			Description:    row.Description,
			Debit:          row.Debit,
			Credit:         row.Credit,
			Delta:          delta,
			RunningBalance: running,
		})
	}
	result.ClosingBalance = running
	return result, nil
}

// CurrentBalance returns the account balance as of now, equal to the running
// balance of the last posting, or zero when no postings exist.
func (s *Service) CurrentBalance(ctx context.Context, accountID int64) (ledger.Amount, error) {
	if accountID == 0 {
		return 0, errors.New("projector: account id required")
	}
	account, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return 0, err
	}
	debit, credit, err := s.repo.SumsAll(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return ledger.SignedDelta(account.Type, debit, credit), nil
}
