package party

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/caravel-erp/caravel/internal/ledger"
	"github.com/caravel-erp/caravel/internal/ledger/accounts"
)

type memoryPartyRepo struct {
	nextID  int64
	parties map[int64]Party
}

func newMemoryPartyRepo() *memoryPartyRepo {
	return &memoryPartyRepo{nextID: 1, parties: map[int64]Party{}}
}

func (m *memoryPartyRepo) List(_ context.Context, filters ListFilters) ([]Party, error) {
	var out []Party
	for _, p := range m.parties {
		if filters.Type != "" && p.Type != filters.Type {
			continue
		}
		if filters.ActiveOnly && !p.IsActive {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *memoryPartyRepo) Get(_ context.Context, id int64) (Party, error) {
	p, ok := m.parties[id]
	if !ok {
		return Party{}, ErrNotFound
	}
	return p, nil
}

func (m *memoryPartyRepo) Create(_ context.Context, p Party) (Party, error) {
	p.ID = m.nextID
	m.nextID++
	p.IsActive = true
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	m.parties[p.ID] = p
	return p, nil
}

func (m *memoryPartyRepo) Update(_ context.Context, id int64, p Party) error {
	if _, ok := m.parties[id]; !ok {
		return ErrNotFound
	}
	p.ID = id
	m.parties[id] = p
	return nil
}

func (m *memoryPartyRepo) Deactivate(_ context.Context, id int64) error {
	p, ok := m.parties[id]
	if !ok {
		return ErrNotFound
	}
	p.IsActive = false
	m.parties[id] = p
	return nil
}

func (m *memoryPartyRepo) UpdateCachedBalance(_ context.Context, id int64, balance ledger.Amount, syncedAt time.Time) error {
	p, ok := m.parties[id]
	if !ok {
		return ErrNotFound
	}
	p.CachedBalance = balance
	p.BalanceSyncedAt = syncedAt
	m.parties[id] = p
	return nil
}

type stubRegistry struct {
	minted map[int64]accounts.Account
	nextID int64
}

func newStubRegistry() *stubRegistry {
	return &stubRegistry{minted: map[int64]accounts.Account{}, nextID: 100}
}

func (s *stubRegistry) GetOrCreate(_ context.Context, kind accounts.Kind, partyID int64) (accounts.Account, error) {
	if acc, ok := s.minted[partyID]; ok {
		return acc, nil
	}
	s.nextID++
	acc := accounts.Account{ID: s.nextID, Kind: kind, PartyID: &partyID, IsActive: true}
	s.minted[partyID] = acc
	return acc, nil
}

type stubProjector struct {
	balances map[int64]ledger.Amount
}

func (s *stubProjector) CurrentBalance(_ context.Context, accountID int64) (ledger.Amount, error) {
	return s.balances[accountID], nil
}

func TestCreateMintsLedgerAccount(t *testing.T) {
	repo := newMemoryPartyRepo()
	registry := newStubRegistry()
	svc := NewService(repo, registry, &stubProjector{balances: map[int64]ledger.Amount{}}, nil)

	created, err := svc.Create(context.Background(), CreateInput{
		Type:        accounts.PartyCustomer,
		Name:        "Acme Traders",
		CreditLimit: 50000,
	})
	require.NoError(t, err)
	require.True(t, created.IsActive)

	acc, ok := registry.minted[created.ID]
	require.True(t, ok, "ledger sub-account minted on create")
	require.Equal(t, accounts.KindCustomerReceivable, acc.Kind)
}

func TestCreateRejectsBadInput(t *testing.T) {
	svc := NewService(newMemoryPartyRepo(), newStubRegistry(), &stubProjector{}, nil)

	_, err := svc.Create(context.Background(), CreateInput{Type: "STAFF", Name: "X"})
	require.ErrorIs(t, err, ErrInvalidType)

	_, err = svc.Create(context.Background(), CreateInput{Type: accounts.PartyVendor, Name: "   "})
	require.Error(t, err)

	_, err = svc.Create(context.Background(), CreateInput{Type: accounts.PartyVendor, Name: "Ok", CreditLimit: -1})
	require.Error(t, err)
}

func TestCurrentBalanceRefreshesCache(t *testing.T) {
	repo := newMemoryPartyRepo()
	registry := newStubRegistry()
	projector := &stubProjector{balances: map[int64]ledger.Amount{}}
	now := time.Date(2025, 6, 30, 10, 0, 0, 0, time.UTC)
	svc := NewService(repo, registry, projector, nil).WithNow(func() time.Time { return now })

	created, err := svc.Create(context.Background(), CreateInput{Type: accounts.PartyCustomer, Name: "Acme"})
	require.NoError(t, err)
	projector.balances[registry.minted[created.ID].ID] = 60000

	balance, err := svc.CurrentBalance(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, ledger.Amount(60000), balance)

	stored, err := repo.Get(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, ledger.Amount(60000), stored.CachedBalance)
	require.Equal(t, now, stored.BalanceSyncedAt)
}

func TestReconcileBalancesReportsDrift(t *testing.T) {
	repo := newMemoryPartyRepo()
	registry := newStubRegistry()
	projector := &stubProjector{balances: map[int64]ledger.Amount{}}
	svc := NewService(repo, registry, projector, nil)

	a, err := svc.Create(context.Background(), CreateInput{Type: accounts.PartyCustomer, Name: "Aligned"})
	require.NoError(t, err)
	b, err := svc.Create(context.Background(), CreateInput{Type: accounts.PartyVendor, Name: "Drifted"})
	require.NoError(t, err)

	projector.balances[registry.minted[a.ID].ID] = 0
	projector.balances[registry.minted[b.ID].ID] = 12500

	checked, drifted, err := svc.ReconcileBalances(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, checked)
	require.Equal(t, 1, drifted)

	stored, err := repo.Get(context.Background(), b.ID)
	require.NoError(t, err)
	require.Equal(t, ledger.Amount(12500), stored.CachedBalance)

	// A second run sees no drift.
	_, drifted, err = svc.ReconcileBalances(context.Background())
	require.NoError(t, err)
	require.Zero(t, drifted)
}
