package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	jobmetrics "github.com/odyssey-erp/obligations/internal/jobs"
	"github.com/odyssey-erp/obligations/internal/obligations"
)

// OverdueScanJob reconciles the portfolio and reports receivable lines past
// their deadline.
type OverdueScanJob struct {
	Ledger  LedgerReader
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// OverdueSummary aggregates the overdue lines of one obligation type.
type OverdueSummary struct {
	Type   obligations.Type
	Lines  int
	Amount decimal.Decimal
	// Clients lists distinct client ids, most overdue first.
	Clients []string
}

// NewOverdueScanJob initialises the overdue scan handler.
func NewOverdueScanJob(reader LedgerReader, logger *slog.Logger, metrics *jobmetrics.Metrics) *OverdueScanJob {
	return &OverdueScanJob{
		Ledger:  reader,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes TaskOverdueScan tasks.
func (j *OverdueScanJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Ledger == nil {
		return errors.New("overdue scan: handler not configured")
	}
	var payload OverdueScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("overdue scan: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	asOf, err := parseAsOf(payload.AsOf, j.now())
	if err != nil {
		return fmt.Errorf("overdue scan: as_of: %v: %w", err, asynq.SkipRetry)
	}

	tracker := j.Metrics.Track(TaskOverdueScan)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("as_of", asOf.Format("2006-01-02")))
	summaries, err := j.Scan(ctx, asOf, payload.MinDays)
	if err != nil {
		logger.Error("scan failed", slog.Any("error", err))
		return err
	}
	for _, s := range summaries {
		j.Metrics.SetOverdue(string(s.Type), s.Lines, s.Amount)
		if s.Lines == 0 {
			continue
		}
		logger.Warn("overdue obligations",
			slog.String("type", string(s.Type)),
			slog.Int("lines", s.Lines),
			slog.String("amount", s.Amount.StringFixed(2)),
			slog.Any("clients", s.Clients),
		)
	}
	logger.Info("completed overdue scan")
	return nil
}

// Scan returns one summary per obligation type, in obligations.Types order.
func (j *OverdueScanJob) Scan(ctx context.Context, asOf time.Time, minDays int) ([]OverdueSummary, error) {
	res, err := j.Ledger.Ledger(ctx, asOf, "")
	if err != nil {
		return nil, err
	}
	if minDays < 1 {
		minDays = 1
	}
	byType := make(map[obligations.Type]*OverdueSummary, len(obligations.Types))
	out := make([]OverdueSummary, len(obligations.Types))
	for i, t := range obligations.Types {
		out[i] = OverdueSummary{Type: t, Amount: decimal.Zero}
		byType[t] = &out[i]
	}
	seen := make(map[obligations.Type]map[string]int)
	for _, it := range res.Receivable {
		if it.DaysDiff == nil || *it.DaysDiff < minDays {
			continue
		}
		s, ok := byType[it.ObligationType]
		if !ok {
			continue
		}
		s.Lines++
		s.Amount = s.Amount.Add(it.Amount)
		if seen[it.ObligationType] == nil {
			seen[it.ObligationType] = make(map[string]int)
		}
		if days, ok := seen[it.ObligationType][it.ClientID]; !ok || *it.DaysDiff > days {
			seen[it.ObligationType][it.ClientID] = *it.DaysDiff
		}
	}
	for i := range out {
		days := seen[out[i].Type]
		for id := range days {
			out[i].Clients = append(out[i].Clients, id)
		}
		sort.Slice(out[i].Clients, func(a, b int) bool {
			ca, cb := out[i].Clients[a], out[i].Clients[b]
			if days[ca] != days[cb] {
				return days[ca] > days[cb]
			}
			return ca < cb
		})
	}
	return out, nil
}

func (j *OverdueScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskOverdueScan))
	}
	return slog.Default().With(slog.String("job", TaskOverdueScan))
}

func (j *OverdueScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
