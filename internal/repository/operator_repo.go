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

// OperatorRepository handles database operations for backoffice staff
// accounts (§1: the only account concept in this hub, since end users are
// identified purely by settlement-service address).
type OperatorRepository struct {
	db *sqlx.DB
}

// NewOperatorRepository creates a new OperatorRepository.
func NewOperatorRepository(db *sqlx.DB) *OperatorRepository {
	return &OperatorRepository{db: db}
}

// Create inserts a new operator account.
func (r *OperatorRepository) Create(ctx context.Context, o *domain.Operator) error {
	query := `
		INSERT INTO operators (id, email, password_hash, role, is_active, created_at)
		VALUES (:id, :email, :password_hash, :role, :is_active, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, o); err != nil {
		return fmt.Errorf("operator_repo.Create: %w", err)
	}
	return nil
}

// GetByEmail fetches an operator by login email.
func (r *OperatorRepository) GetByEmail(ctx context.Context, email string) (*domain.Operator, error) {
	var o domain.Operator
	err := r.db.GetContext(ctx, &o, `SELECT * FROM operators WHERE email = $1`, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOperatorNotFound
		}
		return nil, fmt.Errorf("operator_repo.GetByEmail: %w", err)
	}
	return &o, nil
}

// GetByID fetches an operator by primary key.
func (r *OperatorRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Operator, error) {
	var o domain.Operator
	err := r.db.GetContext(ctx, &o, `SELECT * FROM operators WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOperatorNotFound
		}
		return nil, fmt.Errorf("operator_repo.GetByID: %w", err)
	}
	return &o, nil
}

// List returns every backoffice operator account, newest first.
func (r *OperatorRepository) List(ctx context.Context) ([]*domain.Operator, error) {
	var ops []*domain.Operator
	if err := r.db.SelectContext(ctx, &ops, `SELECT * FROM operators ORDER BY created_at DESC`); err != nil {
		return nil, fmt.Errorf("operator_repo.List: %w", err)
	}
	return ops, nil
}

// SetActive flips an operator account's enabled flag.
func (r *OperatorRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE operators SET is_active = $1 WHERE id = $2`, active, id)
	if err != nil {
		return fmt.Errorf("operator_repo.SetActive: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrOperatorNotFound
	}
	return nil
}

// SetRole changes an operator's assigned role.
func (r *OperatorRepository) SetRole(ctx context.Context, id uuid.UUID, role domain.OperatorRole) error {
	res, err := r.db.ExecContext(ctx, `UPDATE operators SET role = $1 WHERE id = $2`, role, id)
	if err != nil {
		return fmt.Errorf("operator_repo.SetRole: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrOperatorNotFound
	}
	return nil
}
