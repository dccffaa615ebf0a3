// Package http exposes settlement batches and receipts over HTTP.
package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	ledgerhttp "github.com/odyssey-erp/obligations/internal/ledger/http"
	"github.com/odyssey-erp/obligations/internal/platform/httpx"
	"github.com/odyssey-erp/obligations/internal/receipt"
	"github.com/odyssey-erp/obligations/internal/settlement"
)

// Settler runs settlement batches.
type Settler interface {
	Settle(ctx context.Context, req settlement.Request) (settlement.Result, error)
}

// ReceiptFinder looks archived receipts up.
type ReceiptFinder interface {
	Find(ctx context.Context, txID, clientID string) (settlement.Summary, error)
}

// Handler serves the settlement endpoints.
type Handler struct {
	logger    *slog.Logger
	settler   Settler
	receipts  ReceiptFinder
	validator *validator.Validate
	rateLimit func(http.Handler) http.Handler
	now       func() time.Time
}

// NewHandler constructs a settlement handler. ratePerMinute bounds batch
// submissions per client IP.
func NewHandler(logger *slog.Logger, settler Settler, receipts ReceiptFinder, ratePerMinute int) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if ratePerMinute <= 0 {
		ratePerMinute = 30
	}
	return &Handler{
		logger:    logger,
		settler:   settler,
		receipts:  receipts,
		validator: validator.New(),
		rateLimit: httprate.Limit(ratePerMinute, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)),
		now:       time.Now,
	}
}

// MountRoutes registers settlement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rateLimit)
		r.Post("/settlements", h.HandleSettle)
	})
	r.Get("/settlements/{txID}/receipt.pdf", h.HandleReceipt)
}

type settleRequest struct {
	AsOf string   `json:"as_of" validate:"omitempty,datetime=2006-01-02"`
	Type string   `json:"type" validate:"omitempty,oneof=all todos mensual semestral renta dev"`
	Keys []string `json:"keys" validate:"required,min=1,max=1000,dive,required"`
}

// HandleSettle commits a batch and answers with every receipt.
func (h *Handler) HandleSettle(w http.ResponseWriter, r *http.Request) {
	var body settleRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(body); err != nil {
		httpx.RespondError(w, validationError(err))
		return
	}
	asOf, err := ledgerhttp.ParseAsOf(body.AsOf, h.now)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	filter, err := ledgerhttp.ParseFilter(body.Type)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	res, err := h.settler.Settle(r.Context(), settlement.Request{AsOf: asOf, Filter: filter, Keys: body.Keys})
	switch {
	case errors.Is(err, settlement.ErrEmptySelection):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	case errors.Is(err, settlement.ErrNothingSettled):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrUnprocessable, err))
		return
	case err != nil:
		h.logger.Error("settle batch", slog.Int("keys", len(body.Keys)), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, res)
}

// HandleReceipt renders an archived receipt as PDF.
func (h *Handler) HandleReceipt(w http.ResponseWriter, r *http.Request) {
	txID := chi.URLParam(r, "txID")
	clientID := strings.TrimSpace(r.URL.Query().Get("client_id"))
	summary, err := h.receipts.Find(r.Context(), txID, clientID)
	if errors.Is(err, receipt.ErrNotFound) {
		httpx.RespondError(w, fmt.Errorf("receipt %s: %w", txID, httpx.ErrNotFound))
		return
	}
	if err != nil {
		h.logger.Error("load receipt", slog.String("tx_id", txID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	body, err := receipt.BuildPDF(summary)
	if err != nil {
		h.logger.Error("render receipt", slog.String("tx_id", txID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.Attachment(w, "application/pdf", fmt.Sprintf("%s-%s.pdf", txID, summary.ClientID), body)
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", httpx.ErrValidation, strings.Join(fields, "; "))
}
