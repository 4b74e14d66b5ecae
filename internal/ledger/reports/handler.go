package reports

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/caravel-erp/caravel/internal/ledger/accounts"
	"github.com/caravel-erp/caravel/internal/platform/httpx"
)

// Handler serves the statement endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers statement routes; the caller picks the prefix.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/trial-balance", h.handleTrialBalance)
	r.Get("/trial-balance.csv", h.handleTrialBalanceCSV)
	r.Get("/cash-book", h.handleCashBook)
	r.Get("/cash-book.csv", h.handleCashBookCSV)
	r.Get("/profit-loss", h.handleProfitAndLoss)
	r.Get("/aging/{partyType}", h.handleAging)
	r.Post("/recalculate", h.handleRecalculate)
}

func (h *Handler) handleTrialBalance(w http.ResponseWriter, r *http.Request) {
	asOf, ok := queryDate(w, r, "asOf")
	if !ok {
		return
	}
	report, err := h.service.TrialBalance(r.Context(), asOf)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) handleTrialBalanceCSV(w http.ResponseWriter, r *http.Request) {
	asOf, ok := queryDate(w, r, "asOf")
	if !ok {
		return
	}
	report, err := h.service.TrialBalance(r.Context(), asOf)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename="+CSVFilename("trial-balance", report.AsOf.Format("2006-01-02")))
	if err := WriteTrialBalanceCSV(w, report); err != nil {
		h.logger.Error("trial balance csv write failed", slog.String("error", err.Error()))
	}
}

func (h *Handler) handleCashBook(w http.ResponseWriter, r *http.Request) {
	from, to, ok := queryRange(w, r)
	if !ok {
		return
	}
	book, err := h.service.CashBook(r.Context(), from, to)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, book)
}

func (h *Handler) handleCashBookCSV(w http.ResponseWriter, r *http.Request) {
	from, to, ok := queryRange(w, r)
	if !ok {
		return
	}
	book, err := h.service.CashBook(r.Context(), from, to)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename="+CSVFilename("cash-book", book.To.Format("2006-01-02")))
	if err := WriteCashBookCSV(w, book); err != nil {
		h.logger.Error("cash book csv write failed", slog.String("error", err.Error()))
	}
}

func (h *Handler) handleProfitAndLoss(w http.ResponseWriter, r *http.Request) {
	from, to, ok := queryRange(w, r)
	if !ok {
		return
	}
	pl, err := h.service.ProfitAndLoss(r.Context(), from, to)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, pl)
}

func (h *Handler) handleAging(w http.ResponseWriter, r *http.Request) {
	partyType := accounts.PartyType(chi.URLParam(r, "partyType"))
	report, err := h.service.Aging(r.Context(), partyType)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	from, to, ok := queryRange(w, r)
	if !ok {
		return
	}
	pl, err := h.service.Recalculate(r.Context(), from, to)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, pl)
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidRange):
		httpx.Problem(w, http.StatusBadRequest, "Invalid Range", err.Error())
	case errors.Is(err, ErrUnknownPartyType):
		httpx.Problem(w, http.StatusBadRequest, "Unknown Party Type", err.Error())
	default:
		h.logger.Error("report request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// queryDate parses a yyyy-mm-dd query parameter; missing means zero time.
func queryDate(w http.ResponseWriter, r *http.Request, name string) (time.Time, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, true
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Date", name+" must be yyyy-mm-dd")
		return time.Time{}, false
	}
	return t, true
}

func queryRange(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	from, ok := queryDate(w, r, "from")
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	to, ok := queryDate(w, r, "to")
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}
