package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/redis/go-redis/v9"

	"shuttle-ticket/config"
	"shuttle-ticket/internal/broadcast"
	"shuttle-ticket/internal/handlers"
	"shuttle-ticket/internal/ledger"
	"shuttle-ticket/internal/logger"
	"shuttle-ticket/internal/services"
	"shuttle-ticket/internal/token"
	"shuttle-ticket/monitoring"
	"shuttle-ticket/security"
	"shuttle-ticket/utils"
)

const metricsInterval = 30 * time.Second

// deps holds everything the server and the CLI commands share.
type deps struct {
	cfg      *config.Config
	log      *logger.ZapLogger
	store    *ledger.Store
	redis    *redis.Client
	monitor  *monitoring.Monitor
	notifier *services.Notifier
	boarding *services.BoardingService
	location *services.LocationService
	reaper   *services.Reaper
}

func Start() error {
	app := pocketbase.New()

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	log := logger.NewLogger(cfg.LogLevel)
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d, err := newDeps(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer d.close()

	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: cfg.Environment == "development",
	})
	app.RootCmd.AddCommand(newReapCmd(d), newSeedCmd(d))

	go handleShutdown(cancel, log)

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		d.routes().Register(e.Router)

		go d.monitor.Run(ctx, metricsInterval)
		if cfg.EnableMetrics {
			go serveMetrics(ctx, cfg.MetricsPort, log)
		}
		if cfg.ReaperInterval > 0 {
			go d.reaper.Run(ctx, cfg.ReaperInterval)
		}

		log.Info("server routes registered", "ledger_driver", d.store.Driver())
		return e.Next()
	})

	app.OnTerminate().BindFunc(func(e *core.TerminateEvent) error {
		cancel()
		d.notifier.Close()
		return e.Next()
	})

	return app.Start()
}

func newDeps(ctx context.Context, cfg *config.Config, log *logger.ZapLogger) (*deps, error) {
	store, err := ledger.Open(cfg.LedgerDriver, cfg.LedgerDSN)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, err
	}

	// Redis backs rate limiting and the sequence folio strategy. Without it
	// scans are not limited.
	redisClient, err := utils.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		if cfg.FolioStrategy == services.FolioStrategySequence {
			store.Close()
			return nil, err
		}
		log.Warn("redis unavailable, continuing without it", "error", err)
		redisClient = nil
	}

	var cmdable redis.Cmdable
	if redisClient != nil {
		cmdable = redisClient
	}

	folios, err := services.NewFolioGenerator(cfg.FolioStrategy, cfg.FolioPrefix, cmdable)
	if err != nil {
		store.Close()
		return nil, err
	}

	issuer, err := token.NewIssuer([]byte(cfg.QRSecretKey), cfg.BoardingTokenTTL)
	if err != nil {
		store.Close()
		return nil, err
	}

	zone, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", cfg.TimeZone, err)
	}

	var publisher broadcast.Publisher = broadcast.NopPublisher{}
	if cfg.PubNubPublishKey != "" {
		publisher = broadcast.NewPubNubPublisher(broadcast.Config{
			PublishKey:   cfg.PubNubPublishKey,
			SubscribeKey: cfg.PubNubSubscribeKey,
			SecretKey:    cfg.PubNubSecretKey,
			UserID:       cfg.PubNubUserID,
		})
	} else {
		log.Warn("PUBNUB_PUBLISH_KEY not set, trip events will not be broadcast")
	}

	monitor := monitoring.NewMonitor(store, log)
	notifier := services.NewNotifier(publisher, cfg.BroadcastTimeout, log, monitor)

	return &deps{
		cfg:      cfg,
		log:      log,
		store:    store,
		redis:    redisClient,
		monitor:  monitor,
		notifier: notifier,
		boarding: services.NewBoardingService(store, issuer, folios, notifier, monitor, log, services.BoardingOptions{
			FolioAttempts: cfg.FolioMaxAttempts,
			TimeZone:      zone,
		}),
		location: services.NewLocationService(store, notifier, monitor, log),
		reaper:   services.NewReaper(store, monitor, log),
	}, nil
}

func (d *deps) routes() handlers.Routes {
	var cmdable redis.Cmdable
	if d.redis != nil {
		cmdable = d.redis
	}

	return handlers.Routes{
		Tickets: handlers.NewTicketHandler(d.boarding, d.log),
		Trips:   handlers.NewTripHandler(d.boarding, d.location, d.log),
		Health:  handlers.NewHealthHandler(cmdable, d.store),
		Limiter: security.NewRateLimiter(cmdable, d.cfg.ScanRateLimit, d.monitor, d.log),
	}
}

func (d *deps) close() {
	d.notifier.Close()
	if d.redis != nil {
		d.redis.Close()
	}
	if err := d.store.Close(); err != nil {
		d.log.Error("failed to close ledger", "error", err)
	}
}

func serveMetrics(ctx context.Context, port string, log logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", monitoring.Handler())

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info("metrics server listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("metrics server stopped", "error", err)
	}
}

// handleShutdown cancels background work on SIGINT or SIGTERM.
func handleShutdown(cancel context.CancelFunc, log logger.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Info("shutdown signal received, cleaning up")
	cancel()
}
