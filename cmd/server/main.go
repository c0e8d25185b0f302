// Package main is the entry point for the evetabi prediction-market hub's
// public API server. It wires together every manager — Market, Position,
// Order Book, LP, Resolution, Oracle/Game Controller — alongside the
// WebSocket fan-out hub and the auto-play scheduler, and starts the HTTP
// server.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/evetabi/prediction/internal/api"
	"github.com/evetabi/prediction/internal/config"
	"github.com/evetabi/prediction/internal/events"
	"github.com/evetabi/prediction/internal/migrate"
	"github.com/evetabi/prediction/internal/repository"
	"github.com/evetabi/prediction/internal/scheduler"
	"github.com/evetabi/prediction/internal/service"
	"github.com/evetabi/prediction/internal/settlement"
	"github.com/evetabi/prediction/internal/ws"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
)

func main() {
	// ── 1. Config + logger ────────────────────────────────────────────────────
	cfg := config.MustLoad()

	var logHandler slog.Handler
	if cfg.IsProd() {
		logHandler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		logHandler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	logger.Info("starting evetabi prediction-market hub", "env", cfg.Server.Env, "port", cfg.Server.Port)

	// ── 2. Database ───────────────────────────────────────────────────────────
	db, err := sqlx.Connect("postgres", cfg.DB.DSN)
	if err != nil {
		logger.Error("database connection failed", "err", err)
		os.Exit(1)
	}
	db.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	db.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)

	if err = db.Ping(); err != nil {
		logger.Error("database ping failed", "err", err)
		os.Exit(1)
	}
	logger.Info("database connected")

	// ── 3. Migrations ─────────────────────────────────────────────────────────
	if err = migrate.Run(cfg.DB.DSN, cfg.DB.MigrationsDir, logger); err != nil {
		logger.Error("migrations failed", "err", err)
		os.Exit(1)
	}

	// ── 4. Repositories ───────────────────────────────────────────────────────
	sportRepo := repository.NewSportRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	gameRepo := repository.NewGameRepository(db)
	marketRepo := repository.NewMarketRepository(db)
	positionRepo := repository.NewPositionRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	lpRepo := repository.NewLPRepository(db)
	operatorRepo := repository.NewOperatorRepository(db)
	_ = sportRepo // exposed to the backoffice package, not the public API

	// ── 5. Settlement-service client (§4.6) ───────────────────────────────────
	settlementClient, err := settlement.NewClient(
		cfg.Settlement.ClearnodeURL,
		cfg.Settlement.MMPrivateKey,
		cfg.Settlement.ApplicationName,
		cfg.Settlement.RPCTimeout,
		logger,
	)
	if err != nil {
		logger.Error("settlement client init failed", "err", err)
		os.Exit(1)
	}

	// ── 5b. Kafka producer (§11.2) ─────────────────────────────────────────────
	kafkaProducer := events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Enabled, logger)

	// ── 6. Services (order matters: later services depend on earlier ones) ───
	positionSvc := service.NewPositionService(db, positionRepo)
	marketSvc := service.NewMarketService(db, marketRepo, gameRepo, categoryRepo, positionRepo, cfg)
	orderbookSvc := service.NewOrderBookService(db, orderRepo, marketRepo, categoryRepo)
	lpSvc := service.NewLPService(db, lpRepo, marketRepo, positionRepo)
	resolutionSvc := service.NewResolutionService(db, marketRepo, positionSvc, orderbookSvc, settlementClient, cfg, logger)
	oracleSvc := service.NewOracleService(gameRepo, categoryRepo, marketSvc, resolutionSvc)
	authSvc := service.NewAuthService(operatorRepo, cfg)
	stateSyncSvc := service.NewStateSyncService(marketSvc, positionSvc, categoryRepo)

	// ── 7. WebSocket Hub ───────────────────────────────────────────────────────
	var allowedOrigins []string
	if ori := os.Getenv("WS_ALLOWED_ORIGINS"); ori != "" {
		for _, o := range strings.Split(ori, ",") {
			allowedOrigins = append(allowedOrigins, strings.TrimSpace(o))
		}
	}
	hub := ws.NewHub(allowedOrigins)
	hub.SetStateProvider(stateSyncSvc)

	// Wire circular dependencies via narrow interfaces (§5).
	marketSvc.SetPoolValueSource(lpSvc)
	marketSvc.SetBroadcaster(hub)
	lpSvc.SetBalanceSource(settlementClient)
	lpSvc.SetBroadcaster(hub)
	orderbookSvc.SetBroadcaster(hub)
	resolutionSvc.SetBroadcaster(hub)
	resolutionSvc.SetPoolStatsSource(lpSvc)
	resolutionSvc.SetEventPublisher(kafkaProducer)
	oracleSvc.SetBroadcaster(hub)

	// ── 8. Root context + signal handling ─────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 9. Start WS Hub ────────────────────────────────────────────────────────
	go hub.Run()
	logger.Info("websocket hub started")

	// ── 10. Scheduler (demo/testing auto-play, §4.10) ─────────────────────────
	sched := scheduler.NewScheduler(oracleSvc, marketSvc, categoryRepo, hub, cfg, logger)
	sched.Start(ctx)

	// ── 11. HTTP Router ────────────────────────────────────────────────────────
	router := api.SetupRouter(api.RouterDeps{
		DB:           db,
		AuthSvc:      authSvc,
		MarketSvc:    marketSvc,
		PositionSvc:  positionSvc,
		OrderBookSvc: orderbookSvc,
		LPSvc:        lpSvc,
		OracleSvc:    oracleSvc,
		CategoryRepo: categoryRepo,
		Settlement:   settlementClient,
		Scheduler:    sched,
		Hub:          hub,
		Cfg:          cfg,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// ── 12. Start server ───────────────────────────────────────────────────────
	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
			stop() // trigger graceful shutdown
		}
	}()

	// ── 13. Graceful shutdown ──────────────────────────────────────────────────
	<-ctx.Done()
	logger.Info("shutdown signal received, draining connections…")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sched.Stop()
	if err = srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "err", err)
	}

	if err = kafkaProducer.Close(); err != nil {
		logger.Error("kafka producer close error", "err", err)
	}

	db.Close()
	logger.Info("server stopped cleanly")
}
