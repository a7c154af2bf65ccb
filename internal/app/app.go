package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/railmeter/railmeter/internal/arbiter"
	"github.com/railmeter/railmeter/internal/config"
	"github.com/railmeter/railmeter/internal/epoch"
	"github.com/railmeter/railmeter/internal/httpserver"
	"github.com/railmeter/railmeter/internal/httpserver/deps"
	"github.com/railmeter/railmeter/internal/lifecycle"
	"github.com/railmeter/railmeter/internal/listener"
	"github.com/railmeter/railmeter/internal/logger"
	"github.com/railmeter/railmeter/internal/payments"
	"github.com/railmeter/railmeter/internal/redis"
	"github.com/railmeter/railmeter/internal/scheduler"
	"github.com/railmeter/railmeter/internal/sources/billingparams"
	redisstore "github.com/railmeter/railmeter/internal/store/redis"
	"github.com/railmeter/railmeter/internal/uptime"
	"github.com/railmeter/railmeter/internal/version"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	redisClient *goredis.Client
	snapshotter *scheduler.Snapshotter
	epochTicker *scheduler.EpochTicker
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	// Initialize Redis early - fail fast if unavailable
	loggerClient.Infof("Connecting to Redis at %s", cfg.RedisAddr)
	redisClient, err := redis.New(redis.ConnectOptions{
		Addr:           cfg.RedisAddr,
		User:           cfg.RedisUser,
		Password:       cfg.RedisPassword,
		RedisDB:        cfg.RedisDB,
		DialTimeout:    cfg.RedisDT,
		ReadTimeout:    cfg.RedisRT,
		WriteTimeout:   cfg.RedisWT,
		PoolSize:       cfg.RedisPoolSize,
		ConnectTimeout: cfg.RedisConnectTimeout,
		RetryInterval:  cfg.RedisRetryInterval,
		MaxWait:        cfg.RedisMaxWait,
		PingTimeout:    cfg.RedisPingTimeout,
		WarnThreshold:  cfg.RedisWarnThreshold,
	}, loggerClient)
	if err != nil {
		loggerClient.Errorf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	loggerClient.Info("Redis initialized successfully")

	// Billing parameters from yaml
	paramsConfig, err := billingparams.NewLoader(cfg.ParamsFile).Load()
	if err != nil {
		loggerClient.Errorf("Failed to load billing parameters: %v", err)
		os.Exit(1)
	}
	settings, err := billingparams.NewMapper().Map(paramsConfig)
	if err != nil {
		loggerClient.Errorf("Invalid billing parameters: %v", err)
		os.Exit(1)
	}
	loggerClient.Info("billing parameters loaded",
		logger.String("token", settings.Params.Token),
		logger.String("owner", string(settings.Owner)))

	// Core state
	clock := epoch.NewClock(0)
	uptimeLedger := uptime.NewLedger()

	listeners := listener.Multi{
		listener.NewLogListener(loggerClient),
		listener.NewStreamListener(redisClient, cfg.EventStream),
	}

	paymentsLedger := payments.NewLedger(clock, settings.PlatformFeeBps, settings.FeeAccount, loggerClient)
	manager := lifecycle.NewManager(
		clock,
		uptimeLedger,
		paymentsLedger,
		listeners,
		settings.Owner,
		settings.Monitor,
		settings.Params,
		loggerClient,
	)

	// The owner address doubles as the arbiter on every rail the manager
	// operates; settlements consult service uptime through it.
	uptimeArbiter := arbiter.New(manager, uptimeLedger, loggerClient)
	paymentsLedger.RegisterArbiter(settings.Owner, uptimeArbiter)

	// Restore persisted state, or bootstrap on a fresh start
	store := redisstore.NewStore(redisClient)
	syncer := scheduler.NewRestoreSyncer(store, clock, uptimeLedger, manager, paymentsLedger, loggerClient)
	restored, err := syncer.Sync(context.Background())
	if err != nil {
		loggerClient.Errorf("Failed to restore state: %v", err)
		os.Exit(1)
	}
	if !restored && settings.OperatorDeposit.Sign() > 0 {
		if err := paymentsLedger.Deposit(settings.Params.Token, settings.Owner, settings.OperatorDeposit); err != nil {
			loggerClient.Errorf("Failed to bootstrap operator deposit: %v", err)
			os.Exit(1)
		}
		loggerClient.Info("operator deposit bootstrapped",
			logger.String("amount", settings.OperatorDeposit.String()))
	}

	// Background work
	snapshotTrigger := make(chan struct{}, 1)
	snapshotter := scheduler.NewSnapshotter(
		clock,
		uptimeLedger,
		manager,
		paymentsLedger,
		store,
		loggerClient,
		cfg.SnapshotInterval,
		snapshotTrigger,
	)
	epochTicker := scheduler.NewEpochTicker(clock, loggerClient, cfg.EpochInterval)

	// Dependencies passed to routes (extend as needed).
	d := deps.Deps{
		Logger:          loggerClient,
		StartTime:       time.Now(),
		Version:         version.Version,
		Commit:          version.Commit,
		BuildDate:       version.BuildDate,
		GoVersion:       version.GoVersion,
		OwnerToken:      cfg.OwnerToken,
		Owner:           settings.Owner,
		TrustProxy:      cfg.TrustProxy,
		Clock:           clock,
		Manager:         manager,
		Payments:        paymentsLedger,
		Uptime:          uptimeLedger,
		RedisClient:     redisClient,
		SnapshotTrigger: snapshotTrigger,
	}

	server := httpserver.New(cfg, loggerClient, d)

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		server:      server,
		redisClient: redisClient,
		snapshotter: snapshotter,
		epochTicker: epochTicker,
	}
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting Railmeter v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("Railmeter %s (commit=%s, built=%s, go=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.epochTicker.Start(ctx)
	if a.cfg.EpochInterval > 0 {
		a.logger.Info("epoch ticker started",
			logger.Duration("interval", a.cfg.EpochInterval))
	}

	a.snapshotter.Start(ctx)
	a.logger.Info("state snapshotter started",
		logger.Duration("interval", a.cfg.SnapshotInterval))

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		return err
	}

	a.epochTicker.Stop()
	a.snapshotter.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	// Final snapshot so a clean shutdown never loses state.
	if err := a.snapshotter.Flush(shutdownCtx); err != nil {
		a.logger.Warnf("failed to flush final snapshot: %v", err)
	} else {
		a.logger.Info("✅ Final state snapshot saved")
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warnf("failed to close redis: %v", err)
		} else {
			a.logger.Info("✅ Redis closed cleanly")
		}
	}

	a.logger.Info("✅ Railmeter stopped cleanly")
	return nil
}
