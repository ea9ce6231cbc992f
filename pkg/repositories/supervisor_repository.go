package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/openfield-hq/openfield-engine/pkg/apperrors"
	"github.com/openfield-hq/openfield-engine/pkg/database"
	"github.com/openfield-hq/openfield-engine/pkg/models"
)

// SupervisorRepository defines the interface for supervisor data access.
type SupervisorRepository interface {
	Get(ctx context.Context, id int64) (*models.Supervisor, error)
	GetByAccessKey(ctx context.Context, accessKey string) (*models.Supervisor, error)
}

// supervisorRepository implements SupervisorRepository using PostgreSQL.
type supervisorRepository struct {
	q database.Querier
}

// NewSupervisorRepository creates a new supervisor repository.
func NewSupervisorRepository(q database.Querier) SupervisorRepository {
	return &supervisorRepository{q: q}
}

var _ SupervisorRepository = (*supervisorRepository)(nil)

func (r *supervisorRepository) Get(ctx context.Context, id int64) (*models.Supervisor, error) {
	query := `
		SELECT id, full_name, COALESCE(email, ''), access_key, status, created_at
		FROM supervisors
		WHERE id = $1`

	var s models.Supervisor
	err := r.q.QueryRow(ctx, query, id).
		Scan(&s.ID, &s.FullName, &s.Email, &s.AccessKey, &s.Status, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get supervisor: %w", err)
	}
	return &s, nil
}

// GetByAccessKey resolves the acting supervisor from an opaque credential.
// Disabled supervisors resolve as not found.
func (r *supervisorRepository) GetByAccessKey(ctx context.Context, accessKey string) (*models.Supervisor, error) {
	query := `
		SELECT id, full_name, COALESCE(email, ''), access_key, status, created_at
		FROM supervisors
		WHERE access_key = $1 AND status = $2`

	var s models.Supervisor
	err := r.q.QueryRow(ctx, query, accessKey, models.SupervisorStatusActive).
		Scan(&s.ID, &s.FullName, &s.Email, &s.AccessKey, &s.Status, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get supervisor by access key: %w", err)
	}
	return &s, nil
}
