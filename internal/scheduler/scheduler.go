// Package scheduler runs the hub's auto-play background goroutines: cycling
// markets open/closed/resolved for active games on a fixed cadence, for demo
// and testing deployments that have no external oracle feeding
// /api/oracle/* calls directly.
package scheduler

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/evetabi/prediction/internal/config"
	"github.com/evetabi/prediction/internal/domain"
	"github.com/evetabi/prediction/internal/repository"
	"github.com/evetabi/prediction/internal/service"
	"log/slog"
)

// ──────────────────────────────────────────────────────────────────────────────
// Scheduler
// ──────────────────────────────────────────────────────────────────────────────

// Scheduler drives three cancellable loops on top of OracleService and
// ResolutionService: marketCreationLoop opens a fresh market for every
// active (game, category) pair missing one, resolutionLoop closes markets
// past their closing time and resolves CLOSED ones with a randomly chosen
// outcome (demo/testing only — a real deployment feeds outcomes through
// /api/oracle/outcome instead), and oddsBroadcastLoop periodically re-pushes
// ODDS_UPDATE for every open market as a heartbeat. All three are stoppable
// via Stop, which POST /api/admin/reset calls before truncating state.
type Scheduler struct {
	oracleSvc    *service.OracleService
	marketSvc    *service.MarketService
	categoryRepo *repository.CategoryRepository
	broadcaster  service.Broadcaster
	cfg          *config.Config
	logger       *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewScheduler creates a Scheduler.
func NewScheduler(
	oracleSvc *service.OracleService,
	marketSvc *service.MarketService,
	categoryRepo *repository.CategoryRepository,
	broadcaster service.Broadcaster,
	cfg *config.Config,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		oracleSvc:    oracleSvc,
		marketSvc:    marketSvc,
		categoryRepo: categoryRepo,
		broadcaster:  broadcaster,
		cfg:          cfg,
		logger:       logger.With("component", "scheduler"),
	}
}

// Start launches the three background goroutines. It returns immediately;
// all loops run until ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	go s.marketCreationLoop(loopCtx)
	go s.resolutionLoop(loopCtx)
	go s.oddsBroadcastLoop(loopCtx)
	s.logger.Info("scheduler started")
}

// Stop cancels every running loop. Safe to call even if Start was never
// called. POST /api/admin/reset calls this before truncating tables so the
// loops don't race the reset, then calls Start again to resume.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// marketCreationLoop
// ──────────────────────────────────────────────────────────────────────────────

// marketCreationLoop opens a market for every active game's every category
// that doesn't already have a non-resolved one.
func (s *Scheduler) marketCreationLoop(ctx context.Context) {
	defer s.recoverAndLog("marketCreationLoop")

	ticker := time.NewTicker(s.cfg.Scheduler.MarketCreationInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("marketCreationLoop: shutting down")
			return
		case <-ticker.C:
			s.createMissingMarkets(ctx)
		}
	}
}

func (s *Scheduler) createMissingMarkets(ctx context.Context) {
	active, err := s.oracleSvc.IsGameActive(ctx)
	if err != nil {
		s.logger.Error("marketCreationLoop: check kill-switch", "err", err)
		return
	}
	if !active {
		return
	}

	games, err := s.oracleSvc.ListActiveGames(ctx)
	if err != nil {
		s.logger.Error("marketCreationLoop: list active games", "err", err)
		return
	}

	for _, g := range games {
		categories, err := s.categoryRepo.ListBySport(ctx, g.SportID)
		if err != nil {
			s.logger.Error("marketCreationLoop: list categories", "game_id", g.ID, "err", err)
			continue
		}
		for _, c := range categories {
			if _, err := s.marketSvc.GetCurrentMarket(ctx, g.ID, c.ID); err == nil {
				continue // already has a live market
			} else if !domain.IsNotFound(err) {
				s.logger.Error("marketCreationLoop: lookup current market", "game_id", g.ID, "category_id", c.ID, "err", err)
				continue
			}

			m, err := s.oracleSvc.OpenMarket(ctx, g.ID, c.ID)
			if err != nil {
				s.logger.Error("marketCreationLoop: open market", "game_id", g.ID, "category_id", c.ID, "err", err)
				continue
			}
			s.logger.Info("market opened", "market_id", m.ID, "game_id", g.ID, "category_id", c.ID)
		}
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// resolutionLoop
// ──────────────────────────────────────────────────────────────────────────────

// resolutionLoop closes OPEN markets past their closing time, then resolves
// CLOSED markets with a randomly chosen winning outcome (demo/testing mode:
// a production deployment wired to a real oracle resolves through
// /api/oracle/outcome instead, and this loop becomes a no-op once every
// market is resolved by that path before its closing time elapses).
func (s *Scheduler) resolutionLoop(ctx context.Context) {
	defer s.recoverAndLog("resolutionLoop")

	ticker := time.NewTicker(s.cfg.Scheduler.ResolutionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("resolutionLoop: shutting down")
			return
		case <-ticker.C:
			s.closeExpiredMarkets(ctx)
			s.resolveClosedMarkets(ctx)
		}
	}
}

func (s *Scheduler) closeExpiredMarkets(ctx context.Context) {
	markets, err := s.oracleSvc.ListExpiredOpenMarkets(ctx)
	if err != nil {
		s.logger.Error("resolutionLoop: list expired open markets", "err", err)
		return
	}
	for _, m := range markets {
		if _, err := s.marketSvc.CloseMarket(ctx, m.ID); err != nil {
			s.logger.Error("resolutionLoop: close market", "market_id", m.ID, "err", err)
			continue
		}
		s.logger.Info("market closed", "market_id", m.ID)
	}
}

func (s *Scheduler) resolveClosedMarkets(ctx context.Context) {
	markets, _, err := s.marketSvc.ListMarkets(ctx, 100, 0, string(domain.MarketClosed))
	if err != nil {
		s.logger.Error("resolutionLoop: list closed markets", "err", err)
		return
	}
	for _, m := range markets {
		outcome := rand.Intn(m.OutcomeCount())
		if _, _, err := s.oracleSvc.DetermineOutcome(ctx, m.GameID, m.CategoryID, outcome); err != nil {
			s.logger.Error("resolutionLoop: resolve market", "market_id", m.ID, "err", err)
			continue
		}
		s.logger.Info("market resolved", "market_id", m.ID, "outcome", outcome)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// oddsBroadcastLoop
// ──────────────────────────────────────────────────────────────────────────────

// oddsBroadcastLoop re-pushes ODDS_UPDATE for every open market on a short
// tick, so a client that missed a per-bet broadcast still converges.
func (s *Scheduler) oddsBroadcastLoop(ctx context.Context) {
	defer s.recoverAndLog("oddsBroadcastLoop")

	ticker := time.NewTicker(s.cfg.Scheduler.OddsBroadcastInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("oddsBroadcastLoop: shutting down")
			return
		case <-ticker.C:
			s.broadcastOpenMarkets(ctx)
		}
	}
}

func (s *Scheduler) broadcastOpenMarkets(ctx context.Context) {
	markets, _, err := s.marketSvc.ListMarkets(ctx, 200, 0, string(domain.MarketOpen))
	if err != nil {
		s.logger.Error("oddsBroadcastLoop: list open markets", "err", err)
		return
	}
	for _, m := range markets {
		category, err := s.categoryRepo.GetByID(ctx, m.CategoryID)
		if err != nil {
			s.logger.Error("oddsBroadcastLoop: load category", "market_id", m.ID, "err", err)
			continue
		}
		summary, err := s.marketSvc.GetSummary(ctx, m.ID, []string(category.Outcomes))
		if err != nil {
			s.logger.Error("oddsBroadcastLoop: build summary", "market_id", m.ID, "err", err)
			continue
		}
		if s.broadcaster != nil {
			s.broadcaster.BroadcastMarketSummary(summary)
		}
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Panic recovery
// ──────────────────────────────────────────────────────────────────────────────

// recoverAndLog is deferred inside each goroutine to catch unexpected
// panics, log them, and allow the scheduler to continue running.
func (s *Scheduler) recoverAndLog(loop string) {
	if r := recover(); r != nil {
		s.logger.Error("PANIC recovered in scheduler loop", "loop", loop, "panic", r)
	}
}
