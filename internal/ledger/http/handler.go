// Package http exposes ledger views over HTTP.
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

	"github.com/odyssey-erp/obligations/internal/clients"
	"github.com/odyssey-erp/obligations/internal/ledger"
	"github.com/odyssey-erp/obligations/internal/ledger/export"
	"github.com/odyssey-erp/obligations/internal/obligations"
	"github.com/odyssey-erp/obligations/internal/platform/httpx"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// LedgerService is the read side consumed by the handler.
type LedgerService interface {
	Ledger(ctx context.Context, asOf time.Time, filter obligations.Filter) (ledger.Result, error)
	ClientStatus(ctx context.Context, clientID string, asOf time.Time) (obligations.Card, error)
}

// Handler serves ledger and client status endpoints.
type Handler struct {
	logger  *slog.Logger
	service LedgerService
	now     func() time.Time
}

// NewHandler constructs a ledger handler.
func NewHandler(logger *slog.Logger, service LedgerService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, now: time.Now}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/ledger", h.HandleLedger)
	r.Get("/ledger/export.xlsx", h.HandleExport)
	r.Get("/clients/{id}/status", h.HandleClientStatus)
}

type ledgerResponse struct {
	ledger.Result
	Totals ledger.Totals `json:"totals"`
}

// HandleLedger returns the three buckets as JSON.
func (h *Handler) HandleLedger(w http.ResponseWriter, r *http.Request) {
	res, ok := h.load(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, ledgerResponse{Result: res, Totals: res.Totals()})
}

// HandleExport streams the ledger as an XLSX workbook.
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	res, ok := h.load(w, r)
	if !ok {
		return
	}
	body, err := export.BuildXLSX(res)
	if err != nil {
		h.logger.Error("ledger export", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	name := fmt.Sprintf("ledger-%s-%s.xlsx", res.AsOf.Format("2006-01-02"), res.Filter)
	httpx.Attachment(w, xlsxContentType, name, body)
}

// HandleClientStatus returns the card indicator of one client.
func (h *Handler) HandleClientStatus(w http.ResponseWriter, r *http.Request) {
	asOf, err := ParseAsOf(r.URL.Query().Get("as_of"), h.now)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id := chi.URLParam(r, "id")
	card, err := h.service.ClientStatus(r.Context(), id, asOf)
	if errors.Is(err, clients.ErrNotFound) {
		httpx.RespondError(w, fmt.Errorf("client %s: %w", id, httpx.ErrNotFound))
		return
	}
	if err != nil {
		h.logger.Error("client status", slog.String("client_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, card)
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) (ledger.Result, bool) {
	q := r.URL.Query()
	asOf, err := ParseAsOf(q.Get("as_of"), h.now)
	if err != nil {
		httpx.RespondError(w, err)
		return ledger.Result{}, false
	}
	filter, err := ParseFilter(q.Get("type"))
	if err != nil {
		httpx.RespondError(w, err)
		return ledger.Result{}, false
	}
	res, err := h.service.Ledger(r.Context(), asOf, filter)
	if err != nil {
		h.logger.Error("ledger pass", slog.String("filter", filter.String()), slog.Any("error", err))
		httpx.RespondError(w, err)
		return ledger.Result{}, false
	}
	return res, true
}

// ParseAsOf reads a YYYY-MM-DD reference date, defaulting to today.
func ParseAsOf(raw string, now func() time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return obligations.Day(now()), nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: as_of must be YYYY-MM-DD", httpx.ErrValidation)
	}
	return t, nil
}

// ParseFilter reads an obligation type filter.
func ParseFilter(raw string) (obligations.Filter, error) {
	t, ok := obligations.ParseType(raw)
	if !ok {
		return "", fmt.Errorf("%w: unknown obligation type %q", httpx.ErrValidation, raw)
	}
	return obligations.Filter(t), nil
}
