package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"slot-settlement/config"
	"slot-settlement/internal/handlers"
	"slot-settlement/internal/ledger"
	"slot-settlement/internal/notify"
	"slot-settlement/internal/services"
	_ "slot-settlement/migrations"
	"slot-settlement/monitoring"
	"slot-settlement/security"
	"slot-settlement/utils"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/redis/go-redis/v9"
)

func Start() error {
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}

	app := pocketbase.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis backs the redis ledger, the rate limiter and the refund queue
	// scrape. Other ledgers run without it when it is unreachable.
	redisClient, err := utils.NewRedisClient(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB, cfg.RedisPoolSize)
	if err != nil {
		if cfg.LedgerBackend == config.LedgerRedis {
			return err
		}
		slog.Warn("redis unavailable, rate limiting disabled", "error", err)
		redisClient = nil
	}
	if redisClient != nil && cfg.LedgerBackend != config.LedgerRedis {
		defer redisClient.Close()
	}

	store, err := openLedger(ctx, cfg, redisClient)
	if err != nil {
		return err
	}
	defer store.Close()

	monitor := monitoring.NewMonitor(redisClient)
	engine := services.NewEngine(store,
		services.WithLogger(slog.Default()),
		services.WithMetrics(monitor),
	)

	engine.AddObserver(notify.NewProjectionWriter(app))
	if cfg.PubNubPublishKey != "" {
		pn := notify.NewPubNubPublisher(cfg.PubNubPublishKey, cfg.PubNubSubscribeKey, cfg.PubNubSecretKey)
		engine.AddObserver(notify.NewSlotNotifier(pn))
	}
	if cfg.AMQPURL != "" {
		relay, err := notify.DialRelay(cfg.AMQPURL, cfg.AMQPQueue)
		if err != nil {
			return err
		}
		defer relay.Close()
		engine.AddObserver(relay)
	}

	if cfg.BootstrapPath != "" {
		if err := applyBootstrap(ctx, engine, cfg.BootstrapPath); err != nil {
			return err
		}
	}

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: cfg.Environment == "development",
	})

	app.RootCmd.AddCommand(
		newDrainRefundsCmd(engine),
		newReleaseHoldsCmd(app, engine),
		newCommitmentCmd(),
	)

	// Setup graceful shutdown
	go handleShutdown(cancel)

	if cfg.EnableMetrics {
		go monitor.Run(ctx)
		go serveMetrics(ctx, cfg.MetricsPort, monitor)
	}

	var limiter *security.RateLimiter
	if redisClient != nil {
		limiter = security.NewRateLimiter(redisClient, cfg.RateLimit, cfg.RateLimitWindow)
	}

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		api := e.Router.Group("/api/v1")

		ix := api.Group("/ix")
		if limiter != nil {
			ix.BindFunc(limiter.InstructionRateLimit())
		}
		handlers.NewAdminHandler(engine).Register(ix)
		handlers.NewSlotHandler(engine).Register(ix)
		handlers.NewPaymentHandler(engine).Register(ix)
		handlers.NewAuctionHandler(engine).Register(ix)

		handlers.NewQueryHandler(app, engine).Register(api)

		// Health check
		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := healthCheck(e.Request.Context(), store, redisClient); err != nil {
				return e.JSON(http.StatusServiceUnavailable, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(http.StatusOK, map[string]string{"status": "healthy"})
		})

		go releaseHoldsLoop(ctx, app, engine, cfg.HoldReleaseInterval)

		slog.Info("Server routes registered", "ledger", cfg.LedgerBackend)
		return e.Next()
	})

	// Start server
	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
	return nil
}

func openLedger(ctx context.Context, cfg *config.Config, redisClient *redis.Client) (ledger.Store, error) {
	switch cfg.LedgerBackend {
	case config.LedgerMemory:
		slog.Warn("memory ledger selected, state is lost on restart")
		return ledger.NewMemoryStore(), nil
	case config.LedgerRedis:
		return ledger.NewRedisStore(redisClient), nil
	case config.LedgerPostgres:
		pg, err := ledger.NewPostgresStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			_ = pg.Close()
			return nil, err
		}
		return pg, nil
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.LedgerBackend)
	}
}

func healthCheck(ctx context.Context, store ledger.Store, redisClient *redis.Client) error {
	if redisClient != nil {
		if err := utils.RedisHealthCheck(redisClient); err != nil {
			return err
		}
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return store.Execute(ctx, func(tx *ledger.Tx) error {
		_, err := tx.Exists(ledger.PlatformKey)
		return err
	})
}

func serveMetrics(ctx context.Context, port string, monitor *monitoring.Monitor) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", monitor.Handler())
	srv := &http.Server{Addr: ":" + port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("metrics server listening", "port", port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("metrics server stopped", "error", err)
	}
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	slog.Info("Shutdown signal received, cleaning up...")
	cancel()
}
