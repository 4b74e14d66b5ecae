// Package integration wires business events from the operational modules
// into the journal engine. Each hook builds exactly one balanced entry with
// a source reference derived deterministically from the event identity, so a
// retried event either posts once or is recognised as already posted.
package integration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/caravel-erp/caravel/internal/ledger"
	"github.com/caravel-erp/caravel/internal/ledger/accounts"
	"github.com/caravel-erp/caravel/internal/ledger/journal"
)

// Ledger exposes journal posting as required by the hooks.
type Ledger interface {
	Post(ctx context.Context, input journal.PostingInput) (journal.Entry, error)
}

// AccountRegistry resolves chart accounts for the hooks.
type AccountRegistry interface {
	GetOrCreate(ctx context.Context, kind accounts.Kind, partyID int64) (accounts.Account, error)
	ExpenseCategory(ctx context.Context, category string) (accounts.Account, error)
}

// Coster answers inventory cost-basis questions for sale and adjustment
// events.
type Coster interface {
	RecordReceipt(ctx context.Context, productID, qty int64, unitCost ledger.Amount, refID string) (ledger.Amount, error)
	ConsumeForSale(ctx context.Context, productID, qty int64, refID string) (ledger.Amount, error)
	Adjust(ctx context.Context, productID, qtyDelta int64, unitCost ledger.Amount, refID, note string) (ledger.Amount, error)
}

// PaymentMethod selects the cash or bank account for money movements.
type PaymentMethod string

const (
	MethodCash PaymentMethod = "CASH"
	MethodBank PaymentMethod = "BANK"
)

// Hooks is the set of posting sources.
type Hooks struct {
	ledger   Ledger
	registry AccountRegistry
	coster   Coster
}

// NewHooks constructs the posting sources.
func NewHooks(ledger Ledger, registry AccountRegistry, coster Coster) *Hooks {
	return &Hooks{ledger: ledger, registry: registry, coster: coster}
}

// sourceRef derives the stable reference for an event. Identical events map
// to identical refs, which the journal's source link rejects on replay.
func sourceRef(sourceType journal.SourceType, id int64) uuid.UUID {
	return uuid.NewSHA1(uuid.Nil, []byte(fmt.Sprintf("%s:%d", sourceType, id)))
}

// post submits the entry, treating an already-linked source as success.
func (h *Hooks) post(ctx context.Context, input journal.PostingInput) error {
	_, err := h.ledger.Post(ctx, input)
	if errors.Is(err, ledger.ErrSourceAlreadyLinked) {
		return nil
	}
	return err
}

func (h *Hooks) fixed(ctx context.Context, kind accounts.Kind) (int64, error) {
	acc, err := h.registry.GetOrCreate(ctx, kind, 0)
	if err != nil {
		return 0, err
	}
	return acc.ID, nil
}

func (h *Hooks) partyAccount(ctx context.Context, kind accounts.Kind, partyID int64) (int64, error) {
	acc, err := h.registry.GetOrCreate(ctx, kind, partyID)
	if err != nil {
		return 0, err
	}
	return acc.ID, nil
}

func (h *Hooks) moneyAccount(ctx context.Context, method PaymentMethod) (int64, error) {
	kind := accounts.KindCash
	if method == MethodBank {
		kind = accounts.KindBank
	}
	return h.fixed(ctx, kind)
}

// SaleItem is one invoiced product line.
type SaleItem struct {
	ProductID int64
	Qty       int64
}

// SaleInvoicePostedEvent fires when a sale invoice becomes final.
type SaleInvoicePostedEvent struct {
	SaleID     int64
	CustomerID int64
	InvoicedAt time.Time
	Total      ledger.Amount
	Items      []SaleItem
}

// HandleSaleInvoicePosted books the revenue side (receivable against sales)
// and the cost side (COGS against inventory at the moving-average basis) of
// a sale in one balanced entry.
func (h *Hooks) HandleSaleInvoicePosted(ctx context.Context, evt SaleInvoicePostedEvent) error {
	if evt.InvoicedAt.IsZero() {
		return errors.New("integration: sale invoice date required")
	}
	if evt.Total <= 0 {
		return errors.New("integration: sale total must be positive")
	}
	ref := sourceRef(journal.SourceSale, evt.SaleID)

	receivable, err := h.partyAccount(ctx, accounts.KindCustomerReceivable, evt.CustomerID)
	if err != nil {
		return err
	}
	revenue, err := h.fixed(ctx, accounts.KindSalesRevenue)
	if err != nil {
		return err
	}

	var costBasis ledger.Amount
	for _, item := range evt.Items {
		cost, err := h.coster.ConsumeForSale(ctx, item.ProductID, item.Qty, ref.String())
		if err != nil {
			return fmt.Errorf("integration: sale %d cost basis: %w", evt.SaleID, err)
		}
		costBasis += cost
	}

	lines := []journal.LineInput{
		{AccountID: receivable, Debit: evt.Total},
		{AccountID: revenue, Credit: evt.Total},
	}
	if costBasis > 0 {
		cogs, err := h.fixed(ctx, accounts.KindCOGS)
		if err != nil {
			return err
		}
		inventoryAcc, err := h.fixed(ctx, accounts.KindInventory)
		if err != nil {
			return err
		}
		lines = append(lines,
			journal.LineInput{AccountID: cogs, Debit: costBasis},
			journal.LineInput{AccountID: inventoryAcc, Credit: costBasis},
		)
	}
	return h.post(ctx, journal.PostingInput{
		EntryDate:   evt.InvoicedAt,
		SourceType:  journal.SourceSale,
		SourceRef:   ref,
		Description: fmt.Sprintf("Sale invoice %d", evt.SaleID),
		Lines:       lines,
	})
}

// PurchaseItem is one received product line.
type PurchaseItem struct {
	ProductID int64
	Qty       int64
	UnitCost  ledger.Amount
}

// PurchaseReceivedEvent fires when purchased goods arrive.
type PurchaseReceivedEvent struct {
	PurchaseID int64
	VendorID   int64
	ReceivedAt time.Time
	Items      []PurchaseItem
}

// HandlePurchaseReceived books received stock into inventory against the
// vendor payable and records the receipt with the coster.
func (h *Hooks) HandlePurchaseReceived(ctx context.Context, evt PurchaseReceivedEvent) error {
	if evt.ReceivedAt.IsZero() {
		return errors.New("integration: purchase received date required")
	}
	if len(evt.Items) == 0 {
		return errors.New("integration: purchase has no items")
	}
	ref := sourceRef(journal.SourcePurchase, evt.PurchaseID)

	var total ledger.Amount
	for _, item := range evt.Items {
		cost, err := h.coster.RecordReceipt(ctx, item.ProductID, item.Qty, item.UnitCost, ref.String())
		if err != nil {
			return fmt.Errorf("integration: purchase %d receipt: %w", evt.PurchaseID, err)
		}
		total += cost
	}
	if total == 0 {
		return nil
	}

	inventoryAcc, err := h.fixed(ctx, accounts.KindInventory)
	if err != nil {
		return err
	}
	payable, err := h.partyAccount(ctx, accounts.KindVendorPayable, evt.VendorID)
	if err != nil {
		return err
	}
	return h.post(ctx, journal.PostingInput{
		EntryDate:   evt.ReceivedAt,
		SourceType:  journal.SourcePurchase,
		SourceRef:   ref,
		Description: fmt.Sprintf("Purchase %d received", evt.PurchaseID),
		Lines: []journal.LineInput{
			{AccountID: inventoryAcc, Debit: total},
			{AccountID: payable, Credit: total},
		},
	})
}

// ReceiptRecordedEvent fires when a customer pays.
type ReceiptRecordedEvent struct {
	ReceiptID  int64
	CustomerID int64
	ReceivedAt time.Time
	Amount     ledger.Amount
	Method     PaymentMethod
}

// HandleReceiptRecorded books money in against the customer's receivable.
func (h *Hooks) HandleReceiptRecorded(ctx context.Context, evt ReceiptRecordedEvent) error {
	if evt.ReceivedAt.IsZero() {
		return errors.New("integration: receipt date required")
	}
	if evt.Amount <= 0 {
		return errors.New("integration: receipt amount must be positive")
	}
	money, err := h.moneyAccount(ctx, evt.Method)
	if err != nil {
		return err
	}
	receivable, err := h.partyAccount(ctx, accounts.KindCustomerReceivable, evt.CustomerID)
	if err != nil {
		return err
	}
	return h.post(ctx, journal.PostingInput{
		EntryDate:   evt.ReceivedAt,
		SourceType:  journal.SourceReceipt,
		SourceRef:   sourceRef(journal.SourceReceipt, evt.ReceiptID),
		Description: fmt.Sprintf("Receipt %d", evt.ReceiptID),
		Lines: []journal.LineInput{
			{AccountID: money, Debit: evt.Amount},
			{AccountID: receivable, Credit: evt.Amount},
		},
	})
}

// PaymentMadeEvent fires when a vendor is paid.
type PaymentMadeEvent struct {
	PaymentID int64
	VendorID  int64
	PaidAt    time.Time
	Amount    ledger.Amount
	Method    PaymentMethod
}

// HandlePaymentMade books money out against the vendor's payable.
func (h *Hooks) HandlePaymentMade(ctx context.Context, evt PaymentMadeEvent) error {
	if evt.PaidAt.IsZero() {
		return errors.New("integration: payment date required")
	}
	if evt.Amount <= 0 {
		return errors.New("integration: payment amount must be positive")
	}
	payable, err := h.partyAccount(ctx, accounts.KindVendorPayable, evt.VendorID)
	if err != nil {
		return err
	}
	money, err := h.moneyAccount(ctx, evt.Method)
	if err != nil {
		return err
	}
	return h.post(ctx, journal.PostingInput{
		EntryDate:   evt.PaidAt,
		SourceType:  journal.SourcePayment,
		SourceRef:   sourceRef(journal.SourcePayment, evt.PaymentID),
		Description: fmt.Sprintf("Payment %d", evt.PaymentID),
		Lines: []journal.LineInput{
			{AccountID: payable, Debit: evt.Amount},
			{AccountID: money, Credit: evt.Amount},
		},
	})
}

// ExpenseLoggedEvent fires when an operating expense is recorded.
type ExpenseLoggedEvent struct {
	ExpenseID  int64
	Category   string
	IncurredAt time.Time
	Amount     ledger.Amount
	Method     PaymentMethod
	Note       string
}

// HandleExpenseLogged books an expense against its category account. An
// unregistered category surfaces ErrUnknownAccountKind to the caller.
func (h *Hooks) HandleExpenseLogged(ctx context.Context, evt ExpenseLoggedEvent) error {
	if evt.IncurredAt.IsZero() {
		return errors.New("integration: expense date required")
	}
	if evt.Amount <= 0 {
		return errors.New("integration: expense amount must be positive")
	}
	category, err := h.registry.ExpenseCategory(ctx, evt.Category)
	if err != nil {
		return err
	}
	money, err := h.moneyAccount(ctx, evt.Method)
	if err != nil {
		return err
	}
	description := fmt.Sprintf("Expense %d (%s)", evt.ExpenseID, evt.Category)
	if evt.Note != "" {
		description = evt.Note
	}
	return h.post(ctx, journal.PostingInput{
		EntryDate:   evt.IncurredAt,
		SourceType:  journal.SourceExpense,
		SourceRef:   sourceRef(journal.SourceExpense, evt.ExpenseID),
		Description: description,
		Lines: []journal.LineInput{
			{AccountID: category.ID, Debit: evt.Amount},
			{AccountID: money, Credit: evt.Amount},
		},
	})
}

// StockAdjustedEvent fires on a manual inventory count correction.
type StockAdjustedEvent struct {
	AdjustmentID int64
	ProductID    int64
	QtyDelta     int64
	UnitCost     ledger.Amount
	AdjustedAt   time.Time
	Note         string
}

// HandleStockAdjusted applies the stock correction and books the cost delta
// between inventory and the adjustment expense account. A zero cost delta
// moves no money and posts nothing.
func (h *Hooks) HandleStockAdjusted(ctx context.Context, evt StockAdjustedEvent) error {
	if evt.AdjustedAt.IsZero() {
		return errors.New("integration: adjustment date required")
	}
	ref := sourceRef(journal.SourceAdjustment, evt.AdjustmentID)
	costDelta, err := h.coster.Adjust(ctx, evt.ProductID, evt.QtyDelta, evt.UnitCost, ref.String(), evt.Note)
	if err != nil {
		return fmt.Errorf("integration: adjustment %d: %w", evt.AdjustmentID, err)
	}
	if costDelta == 0 {
		return nil
	}

	inventoryAcc, err := h.fixed(ctx, accounts.KindInventory)
	if err != nil {
		return err
	}
	adjustment, err := h.fixed(ctx, accounts.KindStockAdjustment)
	if err != nil {
		return err
	}
	lines := []journal.LineInput{
		{AccountID: inventoryAcc, Debit: costDelta},
		{AccountID: adjustment, Credit: costDelta},
	}
	if costDelta < 0 {
		lines = []journal.LineInput{
			{AccountID: adjustment, Debit: -costDelta},
			{AccountID: inventoryAcc, Credit: -costDelta},
		}
	}
	description := fmt.Sprintf("Stock adjustment %d", evt.AdjustmentID)
	if evt.Note != "" {
		description = evt.Note
	}
	return h.post(ctx, journal.PostingInput{
		EntryDate:   evt.AdjustedAt,
		SourceType:  journal.SourceAdjustment,
		SourceRef:   ref,
		Description: description,
		Lines:       lines,
	})
}

// OpeningBalancesEvent seeds the books when the console goes live.
type OpeningBalancesEvent struct {
	AsOf      time.Time
	Cash      ledger.Amount
	Bank      ledger.Amount
	Inventory ledger.Amount
}

// HandleOpeningBalances posts the go-live balances against opening equity.
func (h *Hooks) HandleOpeningBalances(ctx context.Context, evt OpeningBalancesEvent) error {
	if evt.AsOf.IsZero() {
		return errors.New("integration: opening date required")
	}
	if evt.Cash < 0 || evt.Bank < 0 || evt.Inventory < 0 {
		return errors.New("integration: opening balances cannot be negative")
	}
	total := evt.Cash + evt.Bank + evt.Inventory
	if total == 0 {
		return nil
	}
	equity, err := h.fixed(ctx, accounts.KindOpeningEquity)
	if err != nil {
		return err
	}
	var lines []journal.LineInput
	appendDebit := func(kind accounts.Kind, amount ledger.Amount) error {
		if amount == 0 {
			return nil
		}
		id, err := h.fixed(ctx, kind)
		if err != nil {
			return err
		}
		lines = append(lines, journal.LineInput{AccountID: id, Debit: amount})
		return nil
	}
	if err := appendDebit(accounts.KindCash, evt.Cash); err != nil {
		return err
	}
	if err := appendDebit(accounts.KindBank, evt.Bank); err != nil {
		return err
	}
	if err := appendDebit(accounts.KindInventory, evt.Inventory); err != nil {
		return err
	}
	lines = append(lines, journal.LineInput{AccountID: equity, Credit: total})
	return h.post(ctx, journal.PostingInput{
		EntryDate:   evt.AsOf,
		SourceType:  journal.SourceOpening,
		SourceRef:   sourceRef(journal.SourceOpening, evt.AsOf.Unix()),
		Description: "Opening balances",
		Lines:       lines,
	})
}
