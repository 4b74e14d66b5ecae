package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/caravel-erp/caravel/internal/ledger"
	"github.com/caravel-erp/caravel/internal/shared"
)

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	List(ctx context.Context, filter ListFilter) ([]Entry, error)
	GetEntry(ctx context.Context, id int64) (Entry, error)
}

// TxRepository exposes the operations available inside a posting transaction.
type TxRepository interface {
	AccountActive(ctx context.Context, accountID int64) (bool, error)
	InsertEntry(ctx context.Context, in PostingInput, reversalOf *int64) (Entry, error)
	InsertLines(ctx context.Context, entryID int64, lines []LineInput) error
	LinkSource(ctx context.Context, sourceType SourceType, ref uuid.UUID, entryID int64) error
	GetEntryWithLines(ctx context.Context, entryID int64) (Entry, []Line, error)
	InsertReversalLink(ctx context.Context, originalID, reversalID int64) error
}

// ListFilter narrows journal listing.
type ListFilter struct {
	From       time.Time
	To         time.Time
	SourceType SourceType
	Limit      int
}

// AuditPort records ledger events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// CachePort invalidates derived report and balance caches after a commit.
type CachePort interface {
	Bump(ctx context.Context) error
}

// Service coordinates posting and reversing journal entries.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	cache CachePort
	now   func() time.Time
}

// NewService constructs the posting engine.
func NewService(repo RepositoryPort, audit AuditPort, cache CachePort) *Service {
	return &Service{repo: repo, audit: audit, cache: cache, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Post validates and atomically commits a new journal entry. Either every
// line is durably recorded or none is. The source reference is linked inside
// the same transaction so a retried business event fails fast with
// ErrSourceAlreadyLinked instead of double-posting.
func (s *Service) Post(ctx context.Context, input PostingInput) (Entry, error) {
	if err := input.Validate(); err != nil {
		return Entry{}, err
	}
	var entry Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, accountID := range input.TouchedAccounts() {
			active, err := tx.AccountActive(ctx, accountID)
			if err != nil {
				return err
			}
			if !active {
				return fmt.Errorf("%w: account %d", ledger.ErrInvalidAccount, accountID)
			}
		}
		inserted, err := tx.InsertEntry(ctx, input, nil)
		if err != nil {
			return err
		}
		if err := tx.InsertLines(ctx, inserted.ID, input.Lines); err != nil {
			return err
		}
		if err := tx.LinkSource(ctx, input.SourceType, input.SourceRef, inserted.ID); err != nil {
			return err
		}
		inserted.Lines = toLines(inserted.ID, input.Lines)
		entry = inserted
		return nil
	})
	if err != nil {
		return Entry{}, err
	}
	s.afterCommit(ctx, "journal.post", entry, map[string]any{
		"source_type": string(input.SourceType),
		"source_ref":  input.SourceRef.String(),
	})
	return entry, nil
}

// Reverse creates a new entry with every line's sides swapped, dated at the
// current business date and linked to the original. The original entry is
// untouched; a second reversal of the same entry fails with
// ErrAlreadyReversed.
func (s *Service) Reverse(ctx context.Context, input ReverseInput) (Entry, error) {
	if input.EntryID == 0 {
		return Entry{}, errors.New("journal: entry id required")
	}
	var reversal Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		original, lines, err := tx.GetEntryWithLines(ctx, input.EntryID)
		if err != nil {
			return err
		}
		posting := PostingInput{
			// Statement cut-offs filter entry_date at day granularity, so the
			// reversal carries the business date, not the wall clock. A
			// same-day report must already see the reversal.
			EntryDate:   businessDate(s.now()),
			SourceType:  SourceReversal,
			SourceRef:   uuid.New(),
			Description: defaultReversalDescription(input.Description, original.ID),
			Lines:       swapSides(lines),
		}
		originalID := original.ID
		inserted, err := tx.InsertEntry(ctx, posting, &originalID)
		if err != nil {
			return err
		}
		if err := tx.InsertReversalLink(ctx, original.ID, inserted.ID); err != nil {
			return err
		}
		if err := tx.InsertLines(ctx, inserted.ID, posting.Lines); err != nil {
			return err
		}
		if err := tx.LinkSource(ctx, posting.SourceType, posting.SourceRef, inserted.ID); err != nil {
			return err
		}
		inserted.Lines = toLines(inserted.ID, posting.Lines)
		inserted.ReversalOf = &originalID
		reversal = inserted
		return nil
	})
	if err != nil {
		return Entry{}, err
	}
	s.afterCommit(ctx, "journal.reverse", reversal, map[string]any{
		"original_id": input.EntryID,
	})
	return reversal, nil
}

// List returns committed entries matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Entry, error) {
	return s.repo.List(ctx, filter)
}

// Get returns one committed entry with its lines.
func (s *Service) Get(ctx context.Context, id int64) (Entry, error) {
	return s.repo.GetEntry(ctx, id)
}

func (s *Service) afterCommit(ctx context.Context, action string, entry Entry, meta map[string]any) {
	if s.cache != nil {
		_ = s.cache.Bump(ctx)
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Action:   action,
			Entity:   "journal_entry",
			EntityID: fmt.Sprintf("%d", entry.ID),
			Meta:     meta,
			At:       s.now(),
		})
	}
}

func swapSides(lines []Line) []LineInput {
	out := make([]LineInput, 0, len(lines))
	for _, line := range lines {
		out = append(out, LineInput{
			AccountID: line.AccountID,
			Debit:     line.Credit,
			Credit:    line.Debit,
		})
	}
	return out
}

func toLines(entryID int64, lines []LineInput) []Line {
	out := make([]Line, 0, len(lines))
	for _, line := range lines {
		out = append(out, Line{
			EntryID:   entryID,
			AccountID: line.AccountID,
			Debit:     line.Debit,
			Credit:    line.Credit,
		})
	}
	return out
}

func businessDate(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}

func defaultReversalDescription(desc string, entryID int64) string {
	if desc != "" {
		return desc
	}
	return fmt.Sprintf("Reversal of entry %d", entryID)
}
