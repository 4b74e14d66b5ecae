package integration

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/caravel-erp/caravel/internal/ledger"
	"github.com/caravel-erp/caravel/internal/ledger/accounts"
	"github.com/caravel-erp/caravel/internal/ledger/journal"
)

type stubLedger struct {
	posted    []journal.PostingInput
	linked    map[string]bool
	failWith  error
	nextEntry int64
}

func newStubLedger() *stubLedger {
	return &stubLedger{linked: map[string]bool{}, nextEntry: 1}
}

func (s *stubLedger) Post(_ context.Context, input journal.PostingInput) (journal.Entry, error) {
	if s.failWith != nil {
		return journal.Entry{}, s.failWith
	}
	if err := input.Validate(); err != nil {
		return journal.Entry{}, err
	}
	key := string(input.SourceType) + ":" + input.SourceRef.String()
	if s.linked[key] {
		return journal.Entry{}, ledger.ErrSourceAlreadyLinked
	}
	s.linked[key] = true
	s.posted = append(s.posted, input)
	entry := journal.Entry{ID: s.nextEntry, SourceType: input.SourceType, SourceRef: input.SourceRef}
	s.nextEntry++
	return entry, nil
}

type stubAccounts struct {
	nextID  int64
	fixed   map[accounts.Kind]int64
	parties map[string]int64
}

func newStubAccounts() *stubAccounts {
	return &stubAccounts{nextID: 1, fixed: map[accounts.Kind]int64{}, parties: map[string]int64{}}
}

func (s *stubAccounts) GetOrCreate(_ context.Context, kind accounts.Kind, partyID int64) (accounts.Account, error) {
	if kind == accounts.KindCustomerReceivable || kind == accounts.KindVendorPayable {
		key := string(kind) + ":" + strconv.FormatInt(partyID, 10)
		id, ok := s.parties[key]
		if !ok {
			id = s.alloc()
			s.parties[key] = id
		}
		return accounts.Account{ID: id, Kind: kind, PartyID: &partyID, IsActive: true}, nil
	}
	id, ok := s.fixed[kind]
	if !ok {
		id = s.alloc()
		s.fixed[kind] = id
	}
	return accounts.Account{ID: id, Kind: kind, IsActive: true}, nil
}

func (s *stubAccounts) ExpenseCategory(_ context.Context, category string) (accounts.Account, error) {
	if category == "RENT" {
		return accounts.Account{ID: 99, Kind: accounts.KindExpense, Code: "6-RENT", IsActive: true}, nil
	}
	return accounts.Account{}, ledger.ErrUnknownAccountKind
}

func (s *stubAccounts) alloc() int64 {
	id := s.nextID
	s.nextID++
	return id
}

type stubCoster struct {
	saleCost    ledger.Amount
	adjustCost  ledger.Amount
	consumed    []string
	receipts    []string
	adjustments []string
}

func (s *stubCoster) RecordReceipt(_ context.Context, productID, qty int64, unitCost ledger.Amount, refID string) (ledger.Amount, error) {
	s.receipts = append(s.receipts, refID)
	return qty * unitCost, nil
}

func (s *stubCoster) ConsumeForSale(_ context.Context, productID, qty int64, refID string) (ledger.Amount, error) {
	s.consumed = append(s.consumed, refID)
	return s.saleCost, nil
}

func (s *stubCoster) Adjust(_ context.Context, productID, qtyDelta int64, unitCost ledger.Amount, refID, note string) (ledger.Amount, error) {
	s.adjustments = append(s.adjustments, refID)
	return s.adjustCost, nil
}

func newTestHooks() (*Hooks, *stubLedger, *stubCoster) {
	led := newStubLedger()
	coster := &stubCoster{}
	return NewHooks(led, newStubAccounts(), coster), led, coster
}

func lineTotals(t *testing.T, input journal.PostingInput) (debit, credit ledger.Amount) {
	t.Helper()
	for _, line := range input.Lines {
		debit += line.Debit
		credit += line.Credit
	}
	return debit, credit
}

func TestSalePostsBalancedEntryWithCOGS(t *testing.T) {
	hooks, led, coster := newTestHooks()
	coster.saleCost = 7000

	evt := SaleInvoicePostedEvent{
		SaleID:     41,
		CustomerID: 9,
		InvoicedAt: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		Total:      10000,
		Items:      []SaleItem{{ProductID: 3, Qty: 2}},
	}
	require.NoError(t, hooks.HandleSaleInvoicePosted(context.Background(), evt))

	require.Len(t, led.posted, 1)
	input := led.posted[0]
	require.Equal(t, journal.SourceSale, input.SourceType)
	require.Len(t, input.Lines, 4)
	debit, credit := lineTotals(t, input)
	require.Equal(t, ledger.Amount(17000), debit)
	require.Equal(t, debit, credit)
	require.Len(t, coster.consumed, 1)
}

func TestSaleReplayIsIdempotent(t *testing.T) {
	hooks, led, coster := newTestHooks()
	coster.saleCost = 0

	evt := SaleInvoicePostedEvent{
		SaleID:     42,
		CustomerID: 9,
		InvoicedAt: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		Total:      5000,
	}
	require.NoError(t, hooks.HandleSaleInvoicePosted(context.Background(), evt))
	require.NoError(t, hooks.HandleSaleInvoicePosted(context.Background(), evt), "replay reports success")
	require.Len(t, led.posted, 1, "only one entry posted")
}

func TestSaleWithoutStockPostsTwoLines(t *testing.T) {
	hooks, led, coster := newTestHooks()
	coster.saleCost = 0

	evt := SaleInvoicePostedEvent{
		SaleID:     43,
		CustomerID: 2,
		InvoicedAt: time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC),
		Total:      2500,
	}
	require.NoError(t, hooks.HandleSaleInvoicePosted(context.Background(), evt))
	require.Len(t, led.posted[0].Lines, 2, "no COGS lines without cost basis")
}

func TestPurchaseReceivedBooksInventory(t *testing.T) {
	hooks, led, coster := newTestHooks()

	evt := PurchaseReceivedEvent{
		PurchaseID: 7,
		VendorID:   4,
		ReceivedAt: time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC),
		Items: []PurchaseItem{
			{ProductID: 1, Qty: 10, UnitCost: 100},
			{ProductID: 2, Qty: 5, UnitCost: 200},
		},
	}
	require.NoError(t, hooks.HandlePurchaseReceived(context.Background(), evt))

	require.Len(t, led.posted, 1)
	debit, credit := lineTotals(t, led.posted[0])
	require.Equal(t, ledger.Amount(2000), debit)
	require.Equal(t, debit, credit)
	require.Len(t, coster.receipts, 2)
}

func TestReceiptAndPaymentMoveMoney(t *testing.T) {
	hooks, led, _ := newTestHooks()
	ctx := context.Background()

	require.NoError(t, hooks.HandleReceiptRecorded(ctx, ReceiptRecordedEvent{
		ReceiptID:  11,
		CustomerID: 9,
		ReceivedAt: time.Date(2025, 3, 13, 0, 0, 0, 0, time.UTC),
		Amount:     4000,
		Method:     MethodCash,
	}))
	require.NoError(t, hooks.HandlePaymentMade(ctx, PaymentMadeEvent{
		PaymentID: 12,
		VendorID:  4,
		PaidAt:    time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
		Amount:    1500,
		Method:    MethodBank,
	}))

	require.Len(t, led.posted, 2)
	require.Equal(t, journal.SourceReceipt, led.posted[0].SourceType)
	require.Equal(t, journal.SourcePayment, led.posted[1].SourceType)
	for _, input := range led.posted {
		debit, credit := lineTotals(t, input)
		require.Equal(t, debit, credit)
		require.Len(t, input.Lines, 2)
	}
}

func TestExpenseUnknownCategoryFails(t *testing.T) {
	hooks, led, _ := newTestHooks()

	err := hooks.HandleExpenseLogged(context.Background(), ExpenseLoggedEvent{
		ExpenseID:  5,
		Category:   "TRAVEL",
		IncurredAt: time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC),
		Amount:     900,
		Method:     MethodCash,
	})
	require.ErrorIs(t, err, ledger.ErrUnknownAccountKind)
	require.Empty(t, led.posted, "nothing posted for unknown category")
}

func TestExpenseLoggedPostsCategoryDebit(t *testing.T) {
	hooks, led, _ := newTestHooks()

	require.NoError(t, hooks.HandleExpenseLogged(context.Background(), ExpenseLoggedEvent{
		ExpenseID:  6,
		Category:   "RENT",
		IncurredAt: time.Date(2025, 3, 16, 0, 0, 0, 0, time.UTC),
		Amount:     18000,
		Method:     MethodBank,
	}))
	require.Len(t, led.posted, 1)
	require.Equal(t, int64(99), led.posted[0].Lines[0].AccountID)
	require.Equal(t, ledger.Amount(18000), led.posted[0].Lines[0].Debit)
}

func TestStockAdjustmentShrinkagePostsExpense(t *testing.T) {
	hooks, led, coster := newTestHooks()
	coster.adjustCost = -240

	require.NoError(t, hooks.HandleStockAdjusted(context.Background(), StockAdjustedEvent{
		AdjustmentID: 21,
		ProductID:    5,
		QtyDelta:     -2,
		AdjustedAt:   time.Date(2025, 3, 17, 0, 0, 0, 0, time.UTC),
		Note:         "damaged in storage",
	}))
	require.Len(t, led.posted, 1)
	input := led.posted[0]
	require.Equal(t, ledger.Amount(240), input.Lines[0].Debit, "adjustment expense debited")
	require.Equal(t, ledger.Amount(240), input.Lines[1].Credit, "inventory credited")
}

func TestStockAdjustmentZeroCostPostsNothing(t *testing.T) {
	hooks, led, coster := newTestHooks()
	coster.adjustCost = 0

	require.NoError(t, hooks.HandleStockAdjusted(context.Background(), StockAdjustedEvent{
		AdjustmentID: 22,
		ProductID:    5,
		QtyDelta:     1,
		UnitCost:     0,
		AdjustedAt:   time.Date(2025, 3, 18, 0, 0, 0, 0, time.UTC),
	}))
	require.Empty(t, led.posted)
}

func TestOpeningBalancesPostAgainstEquity(t *testing.T) {
	hooks, led, _ := newTestHooks()

	require.NoError(t, hooks.HandleOpeningBalances(context.Background(), OpeningBalancesEvent{
		AsOf:      time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Cash:      50000,
		Bank:      200000,
		Inventory: 75000,
	}))
	require.Len(t, led.posted, 1)
	debit, credit := lineTotals(t, led.posted[0])
	require.Equal(t, ledger.Amount(325000), debit)
	require.Equal(t, debit, credit)
	require.Equal(t, journal.SourceOpening, led.posted[0].SourceType)
}
