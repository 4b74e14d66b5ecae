package journal

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/caravel-erp/caravel/internal/ledger"
	"github.com/caravel-erp/caravel/internal/platform/httpx"
)

// Handler serves the journal engine endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers journal routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Post("/", h.handlePost)
	r.Get("/{id}", h.handleGet)
	r.Post("/{id}/reverse", h.handleReverse)
}

// LineForm is one journal line in the posting payload, minor units.
type LineForm struct {
	AccountID int64 `json:"accountId" validate:"required,gt=0"`
	Debit     int64 `json:"debit" validate:"gte=0"`
	Credit    int64 `json:"credit" validate:"gte=0"`
}

// PostForm is the manual posting payload.
type PostForm struct {
	EntryDate   string     `json:"entryDate" validate:"required,datetime=2006-01-02"`
	SourceType  string     `json:"sourceType" validate:"required"`
	SourceRef   string     `json:"sourceRef" validate:"required,uuid"`
	Description string     `json:"description" validate:"max=250"`
	Lines       []LineForm `json:"lines" validate:"required,min=2,dive"`
}

func (h *Handler) handlePost(w http.ResponseWriter, r *http.Request) {
	var form PostForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	entryDate, _ := time.Parse("2006-01-02", form.EntryDate)
	sourceRef, _ := uuid.Parse(form.SourceRef)

	input := PostingInput{
		EntryDate:   entryDate,
		SourceType:  SourceType(form.SourceType),
		SourceRef:   sourceRef,
		Description: form.Description,
	}
	for _, line := range form.Lines {
		input.Lines = append(input.Lines, LineInput{
			AccountID: line.AccountID,
			Debit:     ledger.Amount(line.Debit),
			Credit:    ledger.Amount(line.Credit),
		})
	}
	entry, err := h.service.Post(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) handleReverse(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "id must be a positive integer")
		return
	}
	var body struct {
		Description string `json:"description"`
	}
	// Body is optional for reversals.
	_ = httpx.DecodeJSON(r, &body)

	entry, err := h.service.Reverse(r.Context(), ReverseInput{EntryID: id, Description: body.Description})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "id must be a positive integer")
		return
	}
	entry, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{SourceType: SourceType(r.URL.Query().Get("sourceType"))}
	if raw := r.URL.Query().Get("from"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Date", "from must be yyyy-mm-dd")
			return
		}
		filter.From = t
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Date", "to must be yyyy-mm-dd")
			return
		}
		filter.To = t
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Limit", "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}
	entries, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrUnbalancedEntry),
		errors.Is(err, ledger.ErrEmptyEntry),
		errors.Is(err, ledger.ErrInvalidAccount):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Posting Rejected", err.Error())
	case errors.Is(err, ledger.ErrEntryNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ledger.ErrAlreadyReversed):
		httpx.Problem(w, http.StatusConflict, "Already Reversed", err.Error())
	case errors.Is(err, ledger.ErrSourceAlreadyLinked):
		httpx.Problem(w, http.StatusConflict, "Duplicate Source", err.Error())
	default:
		h.logger.Error("journal request failed", slog.String("error", err.Error()))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
