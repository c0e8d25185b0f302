// Package main is the entry point for the evetabi back-office admin server.
// Runs on its own port and exposes admin-only endpoints protected by RBAC
// and an IP allowlist (§9).
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/evetabi/prediction/internal/backoffice"
	"github.com/evetabi/prediction/internal/config"
	"github.com/evetabi/prediction/internal/events"
	"github.com/evetabi/prediction/internal/repository"
	"github.com/evetabi/prediction/internal/service"
	"github.com/evetabi/prediction/internal/settlement"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

func main() {
	// ── Logger ────────────────────────────────────────────────────────────────
	cfg := config.MustLoad()

	var logHandler slog.Handler
	if cfg.IsProd() {
		logHandler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		logHandler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	logger.Info("starting evetabi backoffice server",
		"env", cfg.Server.Env, "port", cfg.Server.BackofficePort)

	// ── Database ──────────────────────────────────────────────────────────────
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

	// ── Repositories ──────────────────────────────────────────────────────────
	categoryRepo := repository.NewCategoryRepository(db)
	gameRepo := repository.NewGameRepository(db)
	marketRepo := repository.NewMarketRepository(db)
	positionRepo := repository.NewPositionRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	lpRepo := repository.NewLPRepository(db)
	operatorRepo := repository.NewOperatorRepository(db)

	// ── Settlement-service client (§4.6) ──────────────────────────────────────
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

	// ── Kafka producer (§11.2) ────────────────────────────────────────────────
	kafkaProducer := events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Enabled, logger)

	// ── Services ──────────────────────────────────────────────────────────────
	positionSvc := service.NewPositionService(db, positionRepo)
	marketSvc := service.NewMarketService(db, marketRepo, gameRepo, categoryRepo, positionRepo, cfg)
	orderbookSvc := service.NewOrderBookService(db, orderRepo, marketRepo, categoryRepo)
	lpSvc := service.NewLPService(db, lpRepo, marketRepo, positionRepo)
	resolutionSvc := service.NewResolutionService(db, marketRepo, positionSvc, orderbookSvc, settlementClient, cfg, logger)
	oracleSvc := service.NewOracleService(gameRepo, categoryRepo, marketSvc, resolutionSvc)
	authSvc := service.NewAuthService(operatorRepo, cfg)

	marketSvc.SetPoolValueSource(lpSvc)
	lpSvc.SetBalanceSource(settlementClient)
	resolutionSvc.SetEventPublisher(kafkaProducer)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Router ────────────────────────────────────────────────────────────────
	router := backoffice.SetupBackofficeRouter(backoffice.BackofficeDeps{
		AuthSvc:      authSvc,
		MarketSvc:    marketSvc,
		LPSvc:        lpSvc,
		OracleSvc:    oracleSvc,
		OperatorRepo: operatorRepo,
		CategoryRepo: categoryRepo,
		PositionRepo: positionRepo,
		LPRepo:       lpRepo,
		Settlement:   settlementClient,
		Hub:          nil, // backoffice does not directly serve WS
		Cfg:          cfg,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.BackofficePort,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// ── Start ─────────────────────────────────────────────────────────────────
	go func() {
		logger.Info("backoffice http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("backoffice server error", "err", err)
			stop()
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err = srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("backoffice shutdown error", "err", err)
	}

	if err = kafkaProducer.Close(); err != nil {
		logger.Error("kafka producer close error", "err", err)
	}

	db.Close()
	logger.Info("backoffice server stopped cleanly")
}
