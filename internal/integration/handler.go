package integration

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/caravel-erp/caravel/internal/inventory"
	"github.com/caravel-erp/caravel/internal/ledger"
	"github.com/caravel-erp/caravel/internal/ledger/journal"
	"github.com/caravel-erp/caravel/internal/platform/httpx"
)

// PostingObserver counts successful postings per source type.
type PostingObserver interface {
	ObservePosting(source string)
}

// Handler receives posting source events over HTTP and forwards them to the
// hooks. Events are idempotent, so callers may safely retry.
type Handler struct {
	logger    *slog.Logger
	hooks     *Hooks
	validator *validator.Validate
	observer  PostingObserver
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, hooks *Hooks, observer PostingObserver) *Handler {
	return &Handler{logger: logger, hooks: hooks, validator: validator.New(), observer: observer}
}

// MountRoutes registers the posting source routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/sale-invoices", h.handleSaleInvoice)
	r.Post("/purchases", h.handlePurchase)
	r.Post("/receipts", h.handleReceipt)
	r.Post("/payments", h.handlePayment)
	r.Post("/expenses", h.handleExpense)
	r.Post("/stock-adjustments", h.handleStockAdjustment)
	r.Post("/opening-balances", h.handleOpeningBalances)
}

// SaleItemForm is one invoiced product line.
type SaleItemForm struct {
	ProductID int64 `json:"productId" validate:"required,gt=0"`
	Qty       int64 `json:"qty" validate:"required,gt=0"`
}

// SaleInvoiceForm is the sale invoice posted payload, amounts in minor units.
type SaleInvoiceForm struct {
	SaleID     int64          `json:"saleId" validate:"required,gt=0"`
	CustomerID int64          `json:"customerId" validate:"required,gt=0"`
	InvoicedAt string         `json:"invoicedAt" validate:"required,datetime=2006-01-02"`
	Total      int64          `json:"total" validate:"required,gt=0"`
	Items      []SaleItemForm `json:"items" validate:"dive"`
}

func (h *Handler) handleSaleInvoice(w http.ResponseWriter, r *http.Request) {
	var form SaleInvoiceForm
	if !h.decode(w, r, &form) {
		return
	}
	evt := SaleInvoicePostedEvent{
		SaleID:     form.SaleID,
		CustomerID: form.CustomerID,
		InvoicedAt: mustDate(form.InvoicedAt),
		Total:      ledger.Amount(form.Total),
	}
	for _, item := range form.Items {
		evt.Items = append(evt.Items, SaleItem{ProductID: item.ProductID, Qty: item.Qty})
	}
	h.respond(w, journal.SourceSale, h.hooks.HandleSaleInvoicePosted(r.Context(), evt))
}

// PurchaseItemForm is one received product line.
type PurchaseItemForm struct {
	ProductID int64 `json:"productId" validate:"required,gt=0"`
	Qty       int64 `json:"qty" validate:"required,gt=0"`
	UnitCost  int64 `json:"unitCost" validate:"gte=0"`
}

// PurchaseForm is the purchase received payload.
type PurchaseForm struct {
	PurchaseID int64              `json:"purchaseId" validate:"required,gt=0"`
	VendorID   int64              `json:"vendorId" validate:"required,gt=0"`
	ReceivedAt string             `json:"receivedAt" validate:"required,datetime=2006-01-02"`
	Items      []PurchaseItemForm `json:"items" validate:"required,min=1,dive"`
}

func (h *Handler) handlePurchase(w http.ResponseWriter, r *http.Request) {
	var form PurchaseForm
	if !h.decode(w, r, &form) {
		return
	}
	evt := PurchaseReceivedEvent{
		PurchaseID: form.PurchaseID,
		VendorID:   form.VendorID,
		ReceivedAt: mustDate(form.ReceivedAt),
	}
	for _, item := range form.Items {
		evt.Items = append(evt.Items, PurchaseItem{
			ProductID: item.ProductID,
			Qty:       item.Qty,
			UnitCost:  ledger.Amount(item.UnitCost),
		})
	}
	h.respond(w, journal.SourcePurchase, h.hooks.HandlePurchaseReceived(r.Context(), evt))
}

// ReceiptForm is the customer receipt payload.
type ReceiptForm struct {
	ReceiptID  int64  `json:"receiptId" validate:"required,gt=0"`
	CustomerID int64  `json:"customerId" validate:"required,gt=0"`
	ReceivedAt string `json:"receivedAt" validate:"required,datetime=2006-01-02"`
	Amount     int64  `json:"amount" validate:"required,gt=0"`
	Method     string `json:"method" validate:"required,oneof=CASH BANK"`
}

func (h *Handler) handleReceipt(w http.ResponseWriter, r *http.Request) {
	var form ReceiptForm
	if !h.decode(w, r, &form) {
		return
	}
	err := h.hooks.HandleReceiptRecorded(r.Context(), ReceiptRecordedEvent{
		ReceiptID:  form.ReceiptID,
		CustomerID: form.CustomerID,
		ReceivedAt: mustDate(form.ReceivedAt),
		Amount:     ledger.Amount(form.Amount),
		Method:     PaymentMethod(form.Method),
	})
	h.respond(w, journal.SourceReceipt, err)
}

// PaymentForm is the vendor payment payload.
type PaymentForm struct {
	PaymentID int64  `json:"paymentId" validate:"required,gt=0"`
	VendorID  int64  `json:"vendorId" validate:"required,gt=0"`
	PaidAt    string `json:"paidAt" validate:"required,datetime=2006-01-02"`
	Amount    int64  `json:"amount" validate:"required,gt=0"`
	Method    string `json:"method" validate:"required,oneof=CASH BANK"`
}

func (h *Handler) handlePayment(w http.ResponseWriter, r *http.Request) {
	var form PaymentForm
	if !h.decode(w, r, &form) {
		return
	}
	err := h.hooks.HandlePaymentMade(r.Context(), PaymentMadeEvent{
		PaymentID: form.PaymentID,
		VendorID:  form.VendorID,
		PaidAt:    mustDate(form.PaidAt),
		Amount:    ledger.Amount(form.Amount),
		Method:    PaymentMethod(form.Method),
	})
	h.respond(w, journal.SourcePayment, err)
}

// ExpenseForm is the operating expense payload.
type ExpenseForm struct {
	ExpenseID  int64  `json:"expenseId" validate:"required,gt=0"`
	Category   string `json:"category" validate:"required,uppercase,max=40"`
	IncurredAt string `json:"incurredAt" validate:"required,datetime=2006-01-02"`
	Amount     int64  `json:"amount" validate:"required,gt=0"`
	Method     string `json:"method" validate:"required,oneof=CASH BANK"`
	Note       string `json:"note" validate:"max=250"`
}

func (h *Handler) handleExpense(w http.ResponseWriter, r *http.Request) {
	var form ExpenseForm
	if !h.decode(w, r, &form) {
		return
	}
	err := h.hooks.HandleExpenseLogged(r.Context(), ExpenseLoggedEvent{
		ExpenseID:  form.ExpenseID,
		Category:   form.Category,
		IncurredAt: mustDate(form.IncurredAt),
		Amount:     ledger.Amount(form.Amount),
		Method:     PaymentMethod(form.Method),
		Note:       form.Note,
	})
	h.respond(w, journal.SourceExpense, err)
}

// StockAdjustmentForm is the manual stock correction payload.
type StockAdjustmentForm struct {
	AdjustmentID int64  `json:"adjustmentId" validate:"required,gt=0"`
	ProductID    int64  `json:"productId" validate:"required,gt=0"`
	QtyDelta     int64  `json:"qtyDelta" validate:"required"`
	UnitCost     int64  `json:"unitCost" validate:"gte=0"`
	AdjustedAt   string `json:"adjustedAt" validate:"required,datetime=2006-01-02"`
	Note         string `json:"note" validate:"max=250"`
}

func (h *Handler) handleStockAdjustment(w http.ResponseWriter, r *http.Request) {
	var form StockAdjustmentForm
	if !h.decode(w, r, &form) {
		return
	}
	err := h.hooks.HandleStockAdjusted(r.Context(), StockAdjustedEvent{
		AdjustmentID: form.AdjustmentID,
		ProductID:    form.ProductID,
		QtyDelta:     form.QtyDelta,
		UnitCost:     ledger.Amount(form.UnitCost),
		AdjustedAt:   mustDate(form.AdjustedAt),
		Note:         form.Note,
	})
	h.respond(w, journal.SourceAdjustment, err)
}

// OpeningBalancesForm seeds the books at go-live.
type OpeningBalancesForm struct {
	AsOf      string `json:"asOf" validate:"required,datetime=2006-01-02"`
	Cash      int64  `json:"cash" validate:"gte=0"`
	Bank      int64  `json:"bank" validate:"gte=0"`
	Inventory int64  `json:"inventory" validate:"gte=0"`
}

func (h *Handler) handleOpeningBalances(w http.ResponseWriter, r *http.Request) {
	var form OpeningBalancesForm
	if !h.decode(w, r, &form) {
		return
	}
	err := h.hooks.HandleOpeningBalances(r.Context(), OpeningBalancesEvent{
		AsOf:      mustDate(form.AsOf),
		Cash:      ledger.Amount(form.Cash),
		Bank:      ledger.Amount(form.Bank),
		Inventory: ledger.Amount(form.Inventory),
	})
	h.respond(w, journal.SourceOpening, err)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, form interface{}) bool {
	if err := httpx.DecodeJSON(r, form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "request body must be valid JSON")
		return false
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) respond(w http.ResponseWriter, source journal.SourceType, err error) {
	if err != nil {
		h.respondError(w, err)
		return
	}
	if h.observer != nil {
		h.observer.ObservePosting(string(source))
	}
	httpx.JSON(w, http.StatusAccepted, map[string]string{"status": "posted"})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrUnknownAccountKind),
		errors.Is(err, inventory.ErrNegativeStock),
		errors.Is(err, inventory.ErrInvalidQuantity),
		errors.Is(err, inventory.ErrInvalidUnitCost):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Posting Rejected", err.Error())
	default:
		h.logger.Error("posting source failed", slog.String("error", err.Error()))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// mustDate parses dates already validated by the datetime tag.
func mustDate(raw string) time.Time {
	t, _ := time.Parse("2006-01-02", raw)
	return t
}
