package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-books/cmd/odyssey/cli"
	"github.com/odyssey-erp/odyssey-books/internal/app"
	"github.com/odyssey-erp/odyssey-books/internal/observability"
	"github.com/odyssey-erp/odyssey-books/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-books/internal/platform/db"
	"github.com/odyssey-erp/odyssey-books/jobs"
)

const usage = `usage: odyssey [command]

commands:
  serve              run the ops HTTP server (default)
  migrate            apply pending schema migrations
  reconcile [-json]  run the cash and inventory checks once
  verify-accounts    check the well-known ledger accounts
  jobs trigger NAME  enqueue a background job
  jobs stats         show the default queue state
`

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

	args := os.Args[1:]
	command := "serve"
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	switch command {
	case "serve":
		err = serve(ctx, cfg, logger)
	case "migrate":
		err = withPool(ctx, cfg, func(pool *pgxpool.Pool) error {
			return db.Migrate(ctx, pool, logger)
		})
	case "reconcile", "verify-accounts":
		os.Exit(runOps(ctx, cfg, logger, command, args))
	case "jobs":
		err = runJobs(ctx, cfg, args)
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error(command, slog.Any("error", err))
		os.Exit(1)
	}
}

func withPool(ctx context.Context, cfg *app.Config, fn func(*pgxpool.Pool) error) error {
	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(pool)
}

func connectRedis(ctx context.Context, cfg *app.Config, logger *slog.Logger) *redis.Client {
	client, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Warn("redis unavailable, payment lock disabled", slog.Any("error", err))
		return nil
	}
	return client
}

func serve(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	return withPool(ctx, cfg, func(pool *pgxpool.Pool) error {
		if cfg.MigrateOnStart {
			if err := db.Migrate(ctx, pool, logger); err != nil {
				return err
			}
		}

		redisClient := connectRedis(ctx, cfg, logger)
		if redisClient != nil {
			defer func() {
				if err := redisClient.Close(); err != nil {
					logger.Warn("redis close", slog.Any("error", err))
				}
			}()
		}

		core := app.NewCore(pool, redisClient, cfg, logger)
		if cfg.VerifyAccountsBoot {
			if err := core.Ledger.VerifyWellKnown(ctx); err != nil {
				return err
			}
		}

		metrics := observability.NewMetrics()
		inspector := asynq.NewInspector(cache.Options{Addr: cfg.RedisAddr}.AsynqOpt())
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		jobHandler := jobs.NewHandler(inspector, core.ReconcileJob(logger, metrics.Jobs()), logger)

		router := app.NewRouter(app.RouterParams{
			Logger:     logger,
			Config:     cfg,
			Database:   pool,
			JobHandler: jobHandler,
			Metrics:    metrics,
		})

		server := &http.Server{
			Addr:         cfg.AppAddr,
			Handler:      router,
			ReadTimeout:  cfg.AppReadTimeout,
			WriteTimeout: cfg.AppWriteTimeout,
		}

		group, gctx := errgroup.WithContext(ctx)
		group.Go(func() error {
			logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		group.Go(func() error {
			<-gctx.Done()
			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
		return group.Wait()
	})
}

func runOps(ctx context.Context, cfg *app.Config, logger *slog.Logger, command string, args []string) int {
	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	jsonOutput := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		return 1
	}
	defer pool.Close()

	core := app.NewCore(pool, nil, cfg, logger)
	ops := cli.NewOpsCLI(core.ReconcileJob(logger, nil), core.Ledger)
	out := cli.Output{JSONOutput: *jsonOutput}
	if command == "verify-accounts" {
		return ops.VerifyAccountsCommand(ctx, out)
	}
	return ops.ReconcileCommand(ctx, out)
}

func runJobs(ctx context.Context, cfg *app.Config, args []string) error {
	helper, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer func() { _ = helper.Close() }()

	switch {
	case len(args) == 2 && args[0] == "trigger":
		info, err := helper.Trigger(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("enqueued %s (%s) on %s\n", info.Type, info.ID, info.Queue)
		return nil
	case len(args) == 1 && args[0] == "stats":
		stats, err := helper.InspectQueue(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%s: pending=%d active=%d scheduled=%d retry=%d\n", stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
		return nil
	default:
		fmt.Fprint(os.Stderr, usage)
		return errors.New("jobs: expected 'trigger NAME' or 'stats'")
	}
}
