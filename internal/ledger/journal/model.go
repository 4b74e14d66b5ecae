// Package journal implements the posting engine: validation and atomic commit
// of balanced multi-line journal entries, and reversal of committed entries.
// This is the only write path into ledger state.
package journal

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/caravel-erp/caravel/internal/ledger"
)

// SourceType enumerates the business events that generate journal entries.
type SourceType string

const (
	SourceSale       SourceType = "SALE"
	SourcePurchase   SourceType = "PURCHASE"
	SourceReceipt    SourceType = "RECEIPT"
	SourcePayment    SourceType = "PAYMENT"
	SourceExpense    SourceType = "EXPENSE"
	SourceAdjustment SourceType = "ADJUSTMENT"
	SourceOpening    SourceType = "OPENING"
	SourceReversal   SourceType = "REVERSAL"
)

// Entry captures a committed journal entry. Entries are immutable once
// posted; corrections happen through reversing entries.
type Entry struct {
	ID          int64
	EntryDate   time.Time
	SourceType  SourceType
	SourceRef   uuid.UUID
	Description string
	ReversalOf  *int64
	PostedAt    time.Time
	CreatedAt   time.Time
	Lines       []Line
}

// Line stores the debit or credit amount for one account. Exactly one side
// is non-zero.
type Line struct {
	ID        int64
	EntryID   int64
	AccountID int64
	Debit     ledger.Amount
	Credit    ledger.Amount
}

// LineInput describes a journal line in a posting request.
type LineInput struct {
	AccountID int64
	Debit     ledger.Amount
	Credit    ledger.Amount
}

// PostingInput groups the fields required to post an entry.
type PostingInput struct {
	EntryDate   time.Time
	SourceType  SourceType
	SourceRef   uuid.UUID
	Description string
	Lines       []LineInput
}

// ReverseInput wraps parameters for reversing a committed entry.
type ReverseInput struct {
	EntryID     int64
	Description string
}

// Validate checks the structural invariants of a posting request: at least
// two lines, each line one-sided and non-negative, and exact debit/credit
// equality in minor units.
func (in PostingInput) Validate() error {
	if in.EntryDate.IsZero() {
		return errors.New("journal: entry date required")
	}
	if in.SourceType == "" {
		return errors.New("journal: source type required")
	}
	if in.SourceRef == uuid.Nil {
		return errors.New("journal: source ref required")
	}
	if len(in.Lines) < 2 {
		return ledger.ErrEmptyEntry
	}
	var debit, credit ledger.Amount
	for idx, line := range in.Lines {
		if line.AccountID == 0 {
			return fmt.Errorf("journal: line %d missing account", idx)
		}
		if line.Debit < 0 || line.Credit < 0 {
			return fmt.Errorf("journal: line %d negative amount", idx)
		}
		if line.Debit > 0 && line.Credit > 0 {
			return fmt.Errorf("journal: line %d cannot be both debit and credit", idx)
		}
		if line.Debit == 0 && line.Credit == 0 {
			return fmt.Errorf("journal: line %d has no amount", idx)
		}
		debit += line.Debit
		credit += line.Credit
	}
	if debit != credit {
		return fmt.Errorf("%w: debit %d credit %d", ledger.ErrUnbalancedEntry, debit, credit)
	}
	return nil
}

// TouchedAccounts returns the distinct account ids referenced by the input.
func (in PostingInput) TouchedAccounts() []int64 {
	seen := make(map[int64]struct{}, len(in.Lines))
	ids := make([]int64, 0, len(in.Lines))
	for _, line := range in.Lines {
		if _, ok := seen[line.AccountID]; ok {
			continue
		}
		seen[line.AccountID] = struct{}{}
		ids = append(ids, line.AccountID)
	}
	return ids
}
