package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/caravel-erp/caravel/internal/ledger"
)

// RepositoryPort abstracts registry persistence.
type RepositoryPort interface {
	GetFixed(ctx context.Context, kind Kind) (Account, error)
	GetByCode(ctx context.Context, code string) (Account, error)
	GetByID(ctx context.Context, id int64) (Account, error)
	Insert(ctx context.Context, account Account) (Account, error)
	List(ctx context.Context, activeOnly bool) ([]Account, error)
	Deactivate(ctx context.Context, id int64) error
	HasPostings(ctx context.Context, id int64) (bool, error)
}

// ErrAccountNotFound indicates a registry miss.
var ErrAccountNotFound = errors.New("accounts: account not found")

// ErrAccountInUse indicates the account carries posted journal lines and
// cannot be deactivated.
var ErrAccountInUse = errors.New("accounts: account has posted journal lines")

// Service resolves and mints ledger accounts.
type Service struct {
	repo RepositoryPort
}

// NewService constructs the registry service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// GetOrCreate resolves the account for a kind. Party-scoped kinds mint the
// sub-account on first use with a deterministic code; fixed kinds resolve the
// seeded singleton. Expense kinds must be registered first via
// RegisterExpenseCategory.
func (s *Service) GetOrCreate(ctx context.Context, kind Kind, partyID int64) (Account, error) {
	switch kind {
	case KindCustomerReceivable, KindVendorPayable:
		if partyID == 0 {
			return Account{}, errors.New("accounts: party id required")
		}
		return s.partyAccount(ctx, kind, partyID)
	case KindExpense:
		return Account{}, errors.New("accounts: expense kind requires a category, use ExpenseCategory")
	}
	acc, err := s.repo.GetFixed(ctx, kind)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return Account{}, ledger.ErrUnknownAccountKind
		}
		return Account{}, err
	}
	return acc, nil
}

// ExpenseCategory resolves a registered expense category account. A category
// that was never registered fails with ErrUnknownAccountKind.
func (s *Service) ExpenseCategory(ctx context.Context, category string) (Account, error) {
	category = normalizeCategory(category)
	if category == "" {
		return Account{}, errors.New("accounts: category required")
	}
	acc, err := s.repo.GetByCode(ctx, ExpenseCategoryCode(category))
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return Account{}, fmt.Errorf("%w: expense category %q", ledger.ErrUnknownAccountKind, category)
		}
		return Account{}, err
	}
	return acc, nil
}

// RegisterExpenseCategory creates the account backing an expense category.
// Registering an existing category returns the existing account.
func (s *Service) RegisterExpenseCategory(ctx context.Context, category, displayName string) (Account, error) {
	category = normalizeCategory(category)
	if category == "" {
		return Account{}, errors.New("accounts: category required")
	}
	if displayName == "" {
		displayName = category
	}
	return s.repo.Insert(ctx, Account{
		Code:     ExpenseCategoryCode(category),
		Name:     displayName,
		Kind:     KindExpense,
		Type:     ledger.AccountTypeExpense,
		IsActive: true,
	})
}

// Get resolves an account by id.
func (s *Service) Get(ctx context.Context, id int64) (Account, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns chart of accounts entries ordered by code.
func (s *Service) List(ctx context.Context, activeOnly bool) ([]Account, error) {
	return s.repo.List(ctx, activeOnly)
}

// Deactivate retires an account that was never posted to. An account with
// journal lines fails with ErrAccountInUse: statement queries only aggregate
// active accounts, so hiding a posted account would leave the trial balance
// unequal.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	posted, err := s.repo.HasPostings(ctx, id)
	if err != nil {
		return err
	}
	if posted {
		return fmt.Errorf("%w: account %d", ErrAccountInUse, id)
	}
	return s.repo.Deactivate(ctx, id)
}

func (s *Service) partyAccount(ctx context.Context, kind Kind, partyID int64) (Account, error) {
	code, err := PartyAccountCode(kind, partyID)
	if err != nil {
		return Account{}, err
	}
	acc, err := s.repo.GetByCode(ctx, code)
	if err == nil {
		return acc, nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return Account{}, err
	}
	accType, err := KindType(kind)
	if err != nil {
		return Account{}, err
	}
	name := fmt.Sprintf("Receivable %d", partyID)
	if kind == KindVendorPayable {
		name = fmt.Sprintf("Payable %d", partyID)
	}
	pid := partyID
	return s.repo.Insert(ctx, Account{
		Code:     code,
		Name:     name,
		Kind:     kind,
		Type:     accType,
		PartyID:  &pid,
		IsActive: true,
	})
}

func normalizeCategory(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}
