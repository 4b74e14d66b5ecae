package party

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/caravel-erp/caravel/internal/ledger"
	"github.com/caravel-erp/caravel/internal/ledger/accounts"
)

// AccountResolver mints or resolves the ledger sub-account for a party.
type AccountResolver interface {
	GetOrCreate(ctx context.Context, kind accounts.Kind, partyID int64) (accounts.Account, error)
}

// BalanceReader recomputes an account's running balance from postings.
type BalanceReader interface {
	CurrentBalance(ctx context.Context, accountID int64) (ledger.Amount, error)
}

// Service manages the party master and its derived balance cache.
type Service struct {
	repo      Repository
	registry  AccountResolver
	projector BalanceReader
	logger    *slog.Logger
	now       func() time.Time
}

// NewService wires the party master.
func NewService(repo Repository, registry AccountResolver, projector BalanceReader, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		registry:  registry,
		projector: projector,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateInput carries a new party.
type CreateInput struct {
	Type        accounts.PartyType
	Name        string
	Phone       string
	Address     string
	CreditLimit ledger.Amount
}

// Create registers a party and mints its ledger sub-account so the first
// posting against it never races account creation.
func (s *Service) Create(ctx context.Context, in CreateInput) (Party, error) {
	if in.Type != accounts.PartyCustomer && in.Type != accounts.PartyVendor {
		return Party{}, ErrInvalidType
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return Party{}, errInvalid("name is required")
	}
	if in.CreditLimit < 0 {
		return Party{}, errInvalid("credit limit cannot be negative")
	}

	created, err := s.repo.Create(ctx, Party{
		Type:        in.Type,
		Name:        in.Name,
		Phone:       in.Phone,
		Address:     in.Address,
		CreditLimit: in.CreditLimit,
	})
	if err != nil {
		return Party{}, err
	}

	kind, err := created.AccountKind()
	if err != nil {
		return Party{}, err
	}
	if _, err := s.registry.GetOrCreate(ctx, kind, created.ID); err != nil {
		return Party{}, err
	}
	s.logger.Info("party created",
		slog.Int64("party_id", created.ID),
		slog.String("type", string(created.Type)))
	return created, nil
}

// Update edits party master fields. The ledger sub-account is untouched.
func (s *Service) Update(ctx context.Context, id int64, in CreateInput) error {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if in.Name = strings.TrimSpace(in.Name); in.Name == "" {
		return errInvalid("name is required")
	}
	if in.CreditLimit < 0 {
		return errInvalid("credit limit cannot be negative")
	}
	current.Name = in.Name
	current.Phone = in.Phone
	current.Address = in.Address
	current.CreditLimit = in.CreditLimit
	return s.repo.Update(ctx, id, current)
}

// Get loads one party.
func (s *Service) Get(ctx context.Context, id int64) (Party, error) {
	return s.repo.Get(ctx, id)
}

// List returns parties matching the filters.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]Party, error) {
	return s.repo.List(ctx, filters)
}

// Deactivate retires a party. Its account and postings remain for reporting.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	return s.repo.Deactivate(ctx, id)
}

// CurrentBalance recomputes the party's outstanding balance from its
// postings and refreshes the cached column on the way out. The recompute is
// the answer; the cache write is best-effort.
func (s *Service) CurrentBalance(ctx context.Context, id int64) (ledger.Amount, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	kind, err := p.AccountKind()
	if err != nil {
		return 0, err
	}
	account, err := s.registry.GetOrCreate(ctx, kind, p.ID)
	if err != nil {
		return 0, err
	}
	balance, err := s.projector.CurrentBalance(ctx, account.ID)
	if err != nil {
		return 0, err
	}
	if err := s.repo.UpdateCachedBalance(ctx, p.ID, balance, s.now()); err != nil {
		s.logger.Warn("balance cache refresh failed",
			slog.Int64("party_id", p.ID),
			slog.String("error", err.Error()))
	}
	return balance, nil
}

// ReconcileBalances recomputes every active party's balance cache from
// postings and reports how many had drifted. Run periodically; drift here
// means a cache refresh was lost, never that the ledger is wrong.
func (s *Service) ReconcileBalances(ctx context.Context) (checked, drifted int, err error) {
	parties, err := s.repo.List(ctx, ListFilters{ActiveOnly: true})
	if err != nil {
		return 0, 0, err
	}
	syncedAt := s.now()
	for _, p := range parties {
		kind, err := p.AccountKind()
		if err != nil {
			return checked, drifted, err
		}
		account, err := s.registry.GetOrCreate(ctx, kind, p.ID)
		if err != nil {
			return checked, drifted, err
		}
		balance, err := s.projector.CurrentBalance(ctx, account.ID)
		if err != nil {
			return checked, drifted, err
		}
		checked++
		if balance != p.CachedBalance {
			drifted++
			s.logger.Warn("party balance cache drifted",
				slog.Int64("party_id", p.ID),
				slog.Int64("cached", p.CachedBalance),
				slog.Int64("actual", balance))
		}
		if err := s.repo.UpdateCachedBalance(ctx, p.ID, balance, syncedAt); err != nil {
			return checked, drifted, err
		}
	}
	return checked, drifted, nil
}

type validationError string

func (e validationError) Error() string { return "party: " + string(e) }

func errInvalid(msg string) error { return validationError(msg) }
