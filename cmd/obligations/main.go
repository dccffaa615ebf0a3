package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path"
	"syscall"
	"time"

	"github.com/google/subcommands"
	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/obligations/internal/app"
	ledgerhttp "github.com/odyssey-erp/obligations/internal/ledger/http"
	"github.com/odyssey-erp/obligations/internal/observability"
	"github.com/odyssey-erp/obligations/internal/platform/cache"
	"github.com/odyssey-erp/obligations/internal/receipt"
	"github.com/odyssey-erp/obligations/internal/settlement"
	settlementhttp "github.com/odyssey-erp/obligations/internal/settlement/http"
	"github.com/odyssey-erp/obligations/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	commander.Register(&serveCmd{cfg: cfg, logger: logger, stop: stop}, "")
	commander.Register(&overdueCmd{cfg: cfg, logger: logger}, "")
	commander.Register(&triggerCmd{cfg: cfg}, "jobs")
	commander.Register(&inspectCmd{cfg: cfg}, "jobs")
	flag.Parse()

	code := commander.Execute(ctx)
	stop()
	os.Exit(int(code))
}

func serve(ctx context.Context, stop context.CancelFunc, cfg *app.Config, logger *slog.Logger) error {
	// Without Redis the ledger is recomputed on every request and receipts
	// are not archived.
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, caching disabled", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()
	core, err := app.NewCore(ctx, app.CoreParams{
		Config:     cfg,
		Logger:     logger,
		Redis:      redisClient,
		Registerer: metrics.Registerer(),
	})
	if err != nil {
		return err
	}
	defer core.Close()

	if err := core.Cache.ListenForInvalidation(ctx); err != nil {
		logger.Warn("ledger cache invalidation listener", slog.Any("error", err))
	}

	archive := receipt.NewArchive(redisClient, cfg.ReceiptTTL)
	settler := settlement.NewService(core.Store, core.Ledger, settlement.Config{
		Archive:    archive,
		Logger:     logger,
		Registerer: metrics.Registerer(),
	})

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:  logger,
		Config:  cfg,
		Metrics: metrics,
		Handlers: []app.RouteMounter{
			ledgerhttp.NewHandler(logger, core.Ledger),
			settlementhttp.NewHandler(logger, settler, archive, cfg.SettleRateLimit),
		},
		Jobs: jobs.NewHandler(inspector, jobClient, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down", slog.Int64("ledger_cache_version", core.Cache.Observed()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	return nil
}
