package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/obligations/internal/jobs"
	"github.com/odyssey-erp/obligations/internal/ledger"
	"github.com/odyssey-erp/obligations/internal/obligations"
)

// LedgerReader is the ledger read side used by jobs.
type LedgerReader interface {
	Ledger(ctx context.Context, asOf time.Time, filter obligations.Filter) (ledger.Result, error)
}

// LedgerWarmupJob pre-populates the ledger cache for the unfiltered view and
// every obligation type.
type LedgerWarmupJob struct {
	Ledger  LedgerReader
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewLedgerWarmupJob wires dependencies for the warmup handler.
func NewLedgerWarmupJob(reader LedgerReader, logger *slog.Logger, metrics *jobmetrics.Metrics) *LedgerWarmupJob {
	return &LedgerWarmupJob{
		Ledger:  reader,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes TaskLedgerWarmup tasks.
func (j *LedgerWarmupJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Ledger == nil {
		return errors.New("ledger warmup: handler not configured")
	}
	var payload LedgerWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("ledger warmup: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	start := j.now()
	asOf, err := parseAsOf(payload.AsOf, start)
	if err != nil {
		return fmt.Errorf("ledger warmup: as_of: %v: %w", err, asynq.SkipRetry)
	}
	filters, err := warmupFilters(payload.Types)
	if err != nil {
		return fmt.Errorf("ledger warmup: %v: %w", err, asynq.SkipRetry)
	}

	tracker := j.Metrics.Track(TaskLedgerWarmup)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("as_of", asOf.Format("2006-01-02")))
	logger.Info("starting ledger warmup", slog.Int("filters", len(filters)))
	for _, f := range filters {
		res, err := j.Ledger.Ledger(ctx, asOf, f)
		if err != nil {
			logger.Error("warm ledger", slog.String("filter", f.String()), slog.Any("error", err))
			return err
		}
		logger.Debug("warmed ledger", slog.String("filter", f.String()), slog.Int("items", len(res.Items())))
	}
	logger.Info("completed ledger warmup", slog.Duration("duration", time.Since(start)))
	return nil
}

func warmupFilters(types []string) ([]obligations.Filter, error) {
	if len(types) == 0 {
		out := []obligations.Filter{""}
		for _, t := range obligations.Types {
			out = append(out, obligations.Filter(t))
		}
		return out, nil
	}
	out := make([]obligations.Filter, 0, len(types))
	for _, raw := range types {
		t, ok := obligations.ParseType(raw)
		if !ok {
			return nil, fmt.Errorf("unknown obligation type %q", raw)
		}
		out = append(out, obligations.Filter(t))
	}
	return out, nil
}

func (j *LedgerWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLedgerWarmup))
	}
	return slog.Default().With(slog.String("job", TaskLedgerWarmup))
}

func (j *LedgerWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
