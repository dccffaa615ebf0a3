package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/obligations/internal/clients"
	"github.com/odyssey-erp/obligations/internal/fees"
	"github.com/odyssey-erp/obligations/internal/ledger"
	"github.com/odyssey-erp/obligations/internal/obligations"
	"github.com/odyssey-erp/obligations/internal/platform/cache"
	"github.com/odyssey-erp/obligations/internal/platform/db"
)

// CoreParams groups the infrastructure shared by the server and the worker.
type CoreParams struct {
	Config     *Config
	Logger     *slog.Logger
	Redis      *redis.Client
	Registerer prometheus.Registerer
}

// Core is the reconciliation stack built from configuration.
type Core struct {
	Store  clients.Store
	Fees   fees.Table
	Cache  *cache.Versioned
	Ledger *ledger.Service

	closers []func()
}

// NewCore opens the portfolio store, loads the fee table and builds the
// cached ledger service. Redis may be nil, in which case passes are never
// memoised.
func NewCore(ctx context.Context, params CoreParams) (*Core, error) {
	cfg := params.Config
	if cfg == nil {
		return nil, fmt.Errorf("app: core requires config")
	}
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}

	core := &Core{}
	store, err := core.openStore(ctx, cfg, logger)
	if err != nil {
		core.Close()
		return nil, err
	}
	core.Store = store

	table, err := loadFees(cfg)
	if err != nil {
		core.Close()
		return nil, err
	}
	core.Fees = table
	feeVersion, err := ledger.Fingerprint(table)
	if err != nil {
		core.Close()
		return nil, err
	}

	core.Cache = cache.NewVersioned(params.Redis, "ledger", cfg.LedgerCacheTTL)
	engine := ledger.NewEngine(obligations.NewSRICalendar(), table)
	core.Ledger = ledger.NewService(store, engine, ledger.ServiceConfig{
		Cache:      core.Cache,
		Logger:     logger,
		Metrics:    ledger.NewMetrics(params.Registerer),
		FeeVersion: feeVersion,
	})
	logger.Info("core ready",
		slog.String("store", cfg.StoreDriver),
		slog.String("fee_version", feeVersion),
		slog.Bool("cache", core.Cache.Enabled()),
	)
	return core, nil
}

// Close releases the store connections.
func (c *Core) Close() {
	if c == nil {
		return
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

func (c *Core) openStore(ctx context.Context, cfg *Config, logger *slog.Logger) (clients.Store, error) {
	if cfg.StoreDriver == StoreDriverMemory {
		var seed []clients.Client
		if cfg.SeedFile != "" {
			loaded, err := clients.LoadSeed(cfg.SeedFile)
			if err != nil {
				return nil, err
			}
			seed = loaded
		}
		logger.Info("memory store", slog.Int("clients", len(seed)))
		return clients.NewMemoryStore(seed), nil
	}

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, pool.Close)
	if err := db.EnsureSchema(ctx, pool); err != nil {
		return nil, err
	}
	return clients.NewPostgresStore(pool), nil
}

func loadFees(cfg *Config) (fees.Table, error) {
	if cfg.FeesFile == "" {
		return fees.Table{Default: cfg.FeeDefault}, nil
	}
	return fees.Load(cfg.FeesFile, cfg.FeeDefault)
}
