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

// CategoryRepository handles database operations for market Categories.
type CategoryRepository struct {
	db *sqlx.DB
}

// NewCategoryRepository creates a new CategoryRepository.
func NewCategoryRepository(db *sqlx.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// GetByID fetches a category by its primary key.
func (r *CategoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	var c domain.Category
	err := r.db.GetContext(ctx, &c, `SELECT * FROM categories WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCategoryNotFound
		}
		return nil, fmt.Errorf("category_repo.GetByID: %w", err)
	}
	return &c, nil
}

// ListBySport returns every category defined for a sport.
func (r *CategoryRepository) ListBySport(ctx context.Context, sportID uuid.UUID) ([]*domain.Category, error) {
	var cats []*domain.Category
	if err := r.db.SelectContext(ctx, &cats, `SELECT * FROM categories WHERE sport_id = $1 ORDER BY description ASC`, sportID); err != nil {
		return nil, fmt.Errorf("category_repo.ListBySport: %w", err)
	}
	return cats, nil
}

// Create inserts a new category.
func (r *CategoryRepository) Create(ctx context.Context, c *domain.Category) error {
	query := `
		INSERT INTO categories (id, sport_id, outcomes, description)
		VALUES (:id, :sport_id, :outcomes, :description)`
	if _, err := r.db.NamedExecContext(ctx, query, c); err != nil {
		return fmt.Errorf("category_repo.Create: %w", err)
	}
	return nil
}
