package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/evetabi/prediction/internal/domain"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// GameRepository handles database operations for Games and the singleton
// GameState kill-switch row.
type GameRepository struct {
	db *sqlx.DB
}

// NewGameRepository creates a new GameRepository.
func NewGameRepository(db *sqlx.DB) *GameRepository {
	return &GameRepository{db: db}
}

// Create inserts a new game row.
func (r *GameRepository) Create(ctx context.Context, g *domain.Game) error {
	query := `
		INSERT INTO games (id, sport_id, home_team_id, away_team_id, status, created_at)
		VALUES (:id, :sport_id, :home_team_id, :away_team_id, :status, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, g); err != nil {
		return fmt.Errorf("game_repo.Create: %w", err)
	}
	return nil
}

// GetByID fetches a game by its primary key.
func (r *GameRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Game, error) {
	var g domain.Game
	err := r.db.GetContext(ctx, &g, `SELECT * FROM games WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrGameNotFound
		}
		return nil, fmt.Errorf("game_repo.GetByID: %w", err)
	}
	return &g, nil
}

// ListActive returns every ACTIVE game, the Oracle/Game Controller's
// candidate set for new market creation.
func (r *GameRepository) ListActive(ctx context.Context) ([]*domain.Game, error) {
	var games []*domain.Game
	if err := r.db.SelectContext(ctx, &games, `SELECT * FROM games WHERE status = 'ACTIVE' ORDER BY created_at ASC`); err != nil {
		return nil, fmt.Errorf("game_repo.ListActive: %w", err)
	}
	return games, nil
}

// UpdateStatus transitions a game's status.
func (r *GameRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.GameStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE games SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("game_repo.UpdateStatus: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrGameNotFound
	}
	return nil
}

// GetGameState reads the singleton admin kill-switch row.
func (r *GameRepository) GetGameState(ctx context.Context) (*domain.GameState, error) {
	var s domain.GameState
	if err := r.db.GetContext(ctx, &s, `SELECT active FROM game_state WHERE id = 1`); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &domain.GameState{Active: false}, nil
		}
		return nil, fmt.Errorf("game_repo.GetGameState: %w", err)
	}
	return &s, nil
}

// SetGameState writes the singleton admin kill-switch row.
func (r *GameRepository) SetGameState(ctx context.Context, active bool) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO game_state (id, active) VALUES (1, $1)
		 ON CONFLICT (id) DO UPDATE SET active = EXCLUDED.active`,
		active)
	if err != nil {
		return fmt.Errorf("game_repo.SetGameState: %w", err)
	}
	return nil
}
