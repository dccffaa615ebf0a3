package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/obligations/internal/clients"
	"github.com/odyssey-erp/obligations/internal/obligations"
	"github.com/odyssey-erp/obligations/internal/platform/cache"
)

// ServiceConfig carries the optional collaborators of Service.
type ServiceConfig struct {
	Cache   *cache.Versioned
	Logger  *slog.Logger
	Metrics *Metrics
	// FeeVersion identifies the fee table in cache keys. Change it whenever
	// fees change without a restart.
	FeeVersion string
}

// Service serves reconciled ledgers for the current store contents,
// memoising passes in Redis.
type Service struct {
	store   clients.Store
	engine  *Engine
	cache   *cache.Versioned
	logger  *slog.Logger
	metrics *Metrics
	feeVer  string
	group   singleflight.Group
}

// NewService builds a Service.
func NewService(store clients.Store, engine *Engine, cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:   store,
		engine:  engine,
		cache:   cfg.Cache,
		logger:  logger,
		metrics: cfg.Metrics,
		feeVer:  cfg.FeeVersion,
	}
}

// Ledger reconciles the current portfolio as of the calendar day of asOf.
func (s *Service) Ledger(ctx context.Context, asOf time.Time, filter obligations.Filter) (Result, error) {
	asOf = obligations.Day(asOf)
	list, err := s.store.Snapshot(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("ledger: snapshot: %w", err)
	}
	fp, err := Fingerprint(list, s.feeVer)
	if err != nil {
		return Result{}, err
	}

	compute := func(context.Context) (any, error) {
		started := time.Now()
		res := s.engine.Reconcile(list, asOf, filter)
		s.metrics.observePass(filter.String(), started, res)
		return res, nil
	}

	day := asOf.Format("2006-01-02")
	key, err := s.cache.BuildKey(ctx, day, filter.String(), fp)
	if err != nil {
		s.logger.Warn("ledger cache key", slog.Any("error", err))
		key = "nocache:" + day + ":" + filter.String() + ":" + fp
	}

	val, err, _ := s.group.Do(key, func() (any, error) {
		var res Result
		hit, err := s.cache.FetchJSON(ctx, key, &res, compute)
		if err != nil {
			s.logger.Warn("ledger cache fetch", slog.String("key", key), slog.Any("error", err))
			v, _ := compute(ctx)
			return v.(Result), nil
		}
		s.metrics.observeLookup(hit)
		return res, nil
	})
	if err != nil {
		return Result{}, err
	}
	return val.(Result), nil
}

// ClientStatus returns the card indicator of one client.
func (s *Service) ClientStatus(ctx context.Context, clientID string, asOf time.Time) (obligations.Card, error) {
	list, err := s.store.Snapshot(ctx)
	if err != nil {
		return obligations.Card{}, fmt.Errorf("ledger: snapshot: %w", err)
	}
	c, ok := clients.Find(list, clientID)
	if !ok {
		return obligations.Card{}, clients.ErrNotFound
	}
	return s.engine.Card(c, obligations.Day(asOf)), nil
}

// Invalidate drops every memoised pass.
func (s *Service) Invalidate(ctx context.Context) error {
	if err := s.cache.Bump(ctx); err != nil {
		return fmt.Errorf("ledger: invalidate: %w", err)
	}
	return nil
}

// Fingerprint hashes the canonical JSON of the inputs so cache keys change
// whenever the portfolio or fee table does.
func Fingerprint(parts ...any) (string, error) {
	h := sha256.New()
	enc := json.NewEncoder(h)
	for _, p := range parts {
		if err := enc.Encode(p); err != nil {
			return "", fmt.Errorf("ledger: fingerprint: %w", err)
		}
	}
	return hex.EncodeToString(h.Sum(nil))[:16], nil
}
