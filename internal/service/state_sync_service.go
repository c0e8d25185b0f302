package service

import (
	"context"
	"fmt"

	"github.com/evetabi/prediction/internal/domain"
	"github.com/evetabi/prediction/internal/repository"
)

// StateSyncService adapts MarketService/PositionService/CategoryRepository
// into ws.StateProvider, the data source for the STATE_SYNC message pushed
// to every socket right after connect (§4.8, §6). Kept as its own tiny
// service rather than a method on MarketService so the ws package's
// dependency stays a single narrow interface, not the whole MarketService.
type StateSyncService struct {
	marketSvc    *MarketService
	positionSvc  *PositionService
	categoryRepo *repository.CategoryRepository
}

// NewStateSyncService creates a StateSyncService.
func NewStateSyncService(marketSvc *MarketService, positionSvc *PositionService, categoryRepo *repository.CategoryRepository) *StateSyncService {
	return &StateSyncService{marketSvc: marketSvc, positionSvc: positionSvc, categoryRepo: categoryRepo}
}

// CurrentMarkets satisfies ws.StateProvider: every OPEN market's summary.
func (s *StateSyncService) CurrentMarkets(ctx context.Context) ([]domain.MarketSummary, error) {
	markets, _, err := s.marketSvc.ListMarkets(ctx, 200, 0, string(domain.MarketOpen))
	if err != nil {
		return nil, fmt.Errorf("state_sync_service.CurrentMarkets: %w", err)
	}

	summaries := make([]domain.MarketSummary, 0, len(markets))
	for _, m := range markets {
		category, err := s.categoryRepo.GetByID(ctx, m.CategoryID)
		if err != nil {
			continue // category lookup failure shouldn't block the rest of the snapshot
		}
		summary, err := s.marketSvc.GetSummary(ctx, m.ID, []string(category.Outcomes))
		if err != nil {
			continue
		}
		summaries = append(summaries, *summary)
	}
	return summaries, nil
}

// PositionsByAddress satisfies ws.StateProvider: one address's position history.
func (s *StateSyncService) PositionsByAddress(ctx context.Context, address string) ([]domain.Position, error) {
	positions, err := s.positionSvc.GetPositionsByAddress(ctx, address, 200, 0)
	if err != nil {
		return nil, fmt.Errorf("state_sync_service.PositionsByAddress: %w", err)
	}
	out := make([]domain.Position, 0, len(positions))
	for _, p := range positions {
		out = append(out, *p)
	}
	return out, nil
}
