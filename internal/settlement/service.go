package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/odyssey-erp/obligations/internal/clients"
	"github.com/odyssey-erp/obligations/internal/ledger"
	"github.com/odyssey-erp/obligations/internal/obligations"
)

// Ledger supplies the lines an operator selects from.
type Ledger interface {
	Ledger(ctx context.Context, asOf time.Time, filter obligations.Filter) (ledger.Result, error)
	Invalidate(ctx context.Context) error
}

// Archiver persists receipts after a batch commits.
type Archiver interface {
	Save(ctx context.Context, txID string, receipts []Summary) error
}

// Request selects ledger lines from the view identified by AsOf and Filter.
type Request struct {
	AsOf   time.Time
	Filter obligations.Filter
	Keys   []string
}

// Config carries optional collaborators of Service.
type Config struct {
	Archive    Archiver
	Logger     *slog.Logger
	Registerer prometheus.Registerer
	Now        func() time.Time
	NewTxID    func() string
}

// Service runs settlement batches against the shared store.
type Service struct {
	store   clients.Store
	ledger  Ledger
	archive Archiver
	logger  *slog.Logger
	now     func() time.Time
	newTxID func() string

	batches *prometheus.CounterVec
	amount  prometheus.Counter
}

// NewService constructs a settlement service.
func NewService(store clients.Store, ledgerSvc Ledger, cfg Config) *Service {
	svc := &Service{
		store:   store,
		ledger:  ledgerSvc,
		archive: cfg.Archive,
		logger:  cfg.Logger,
		now:     cfg.Now,
		newTxID: cfg.NewTxID,
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	if svc.newTxID == nil {
		svc.newTxID = NewTransactionID
	}
	if cfg.Registerer != nil {
		svc.batches = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "obligations_settlement_batches_total",
			Help: "Settlement batches by outcome.",
		}, []string{"outcome"})
		svc.amount = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "obligations_settlement_amount_total",
			Help: "Total amount settled.",
		})
		cfg.Registerer.MustRegister(svc.batches, svc.amount)
	}
	return svc
}

// Settle resolves the selection against the requested ledger view and
// commits every resolvable line in one store update.
func (s *Service) Settle(ctx context.Context, req Request) (Result, error) {
	if len(req.Keys) == 0 {
		s.record("empty", Result{})
		return Result{}, ErrEmptySelection
	}
	view, err := s.ledger.Ledger(ctx, req.AsOf, req.Filter)
	if err != nil {
		s.record("error", Result{})
		return Result{}, fmt.Errorf("settlement: load ledger: %w", err)
	}
	items := view.Items()
	now := s.now()
	txID := s.newTxID()

	var res Result
	err = s.store.Update(ctx, func(prev []clients.Client) ([]clients.Client, error) {
		out, err := Settle(prev, req.Keys, items, now, txID)
		if err != nil {
			return nil, err
		}
		res = out
		return out.Clients, nil
	})
	if err != nil {
		if errors.Is(err, ErrNothingSettled) {
			s.record("unresolved", Result{})
			s.logger.Debug("settlement resolved no keys", slog.Int("keys", len(req.Keys)))
			return Result{}, err
		}
		s.record("error", Result{})
		return Result{}, fmt.Errorf("settlement: commit: %w", err)
	}
	s.record("settled", res)

	if dropped := len(req.Keys) - len(res.Periods); dropped > 0 {
		s.logger.Debug("settlement skipped unresolved keys", slog.String("tx_id", txID), slog.Int("dropped", dropped))
	}
	if err := s.ledger.Invalidate(ctx); err != nil {
		s.logger.Warn("ledger invalidate after settlement", slog.String("tx_id", txID), slog.Any("error", err))
	}
	if s.archive != nil {
		if err := s.archive.Save(ctx, txID, res.Receipts); err != nil {
			s.logger.Error("archive receipts", slog.String("tx_id", txID), slog.Any("error", err))
		}
	}
	s.logger.Info("settlement committed",
		slog.String("tx_id", txID),
		slog.Int("periods", len(res.Periods)),
		slog.Int("clients", len(res.Receipts)),
		slog.String("total", res.TotalPaid.StringFixed(2)),
	)
	return res, nil
}

func (s *Service) record(outcome string, res Result) {
	if s.batches == nil {
		return
	}
	s.batches.WithLabelValues(outcome).Inc()
	if outcome == "settled" {
		s.amount.Add(res.TotalPaid.InexactFloat64())
	}
}
