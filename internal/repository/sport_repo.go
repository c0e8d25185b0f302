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

// SportRepository handles database operations for Sports and Teams.
type SportRepository struct {
	db *sqlx.DB
}

// NewSportRepository creates a new SportRepository.
func NewSportRepository(db *sqlx.DB) *SportRepository {
	return &SportRepository{db: db}
}

// List returns every sport.
func (r *SportRepository) List(ctx context.Context) ([]*domain.Sport, error) {
	var sports []*domain.Sport
	if err := r.db.SelectContext(ctx, &sports, `SELECT * FROM sports ORDER BY name ASC`); err != nil {
		return nil, fmt.Errorf("sport_repo.List: %w", err)
	}
	return sports, nil
}

// GetByID fetches a sport by its primary key.
func (r *SportRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Sport, error) {
	var s domain.Sport
	if err := r.db.GetContext(ctx, &s, `SELECT * FROM sports WHERE id = $1`, id); err != nil {
		return nil, fmt.Errorf("sport_repo.GetByID: %w", err)
	}
	return &s, nil
}

// GetTeamByID fetches a team by its primary key.
func (r *SportRepository) GetTeamByID(ctx context.Context, id uuid.UUID) (*domain.Team, error) {
	var t domain.Team
	err := r.db.GetContext(ctx, &t, `SELECT * FROM teams WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrGameNotFound
		}
		return nil, fmt.Errorf("sport_repo.GetTeamByID: %w", err)
	}
	return &t, nil
}

// ListTeamsBySport returns every team belonging to a sport.
func (r *SportRepository) ListTeamsBySport(ctx context.Context, sportID uuid.UUID) ([]*domain.Team, error) {
	var teams []*domain.Team
	if err := r.db.SelectContext(ctx, &teams, `SELECT * FROM teams WHERE sport_id = $1 ORDER BY short_code ASC`, sportID); err != nil {
		return nil, fmt.Errorf("sport_repo.ListTeamsBySport: %w", err)
	}
	return teams, nil
}
