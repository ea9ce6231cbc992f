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

// EnumeratorRepository defines the interface for enumerator data access.
type EnumeratorRepository interface {
	Create(ctx context.Context, enumerator *models.Enumerator) error
	Get(ctx context.Context, id int64) (*models.Enumerator, error)
	GetByCode(ctx context.Context, projectID int64, code string) (*models.Enumerator, error)
	ListByProject(ctx context.Context, projectID int64) ([]models.Enumerator, error)
	SetStatus(ctx context.Context, id int64, status string) error
}

// enumeratorRepository implements EnumeratorRepository using PostgreSQL.
type enumeratorRepository struct {
	q database.Querier
}

// NewEnumeratorRepository creates a new enumerator repository.
func NewEnumeratorRepository(q database.Querier) EnumeratorRepository {
	return &enumeratorRepository{q: q}
}

var _ EnumeratorRepository = (*enumeratorRepository)(nil)

const enumeratorColumns = `id, project_id, name, COALESCE(code, ''),
	COALESCE(phone, ''), COALESCE(email, ''), status, created_at`

func scanEnumerator(row pgx.Row) (*models.Enumerator, error) {
	var e models.Enumerator
	err := row.Scan(&e.ID, &e.ProjectID, &e.Name, &e.Code, &e.Phone, &e.Email, &e.Status, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *enumeratorRepository) Create(ctx context.Context, enumerator *models.Enumerator) error {
	if enumerator.Status == "" {
		enumerator.Status = models.EnumeratorStatusActive
	}

	query := `
		INSERT INTO enumerators (project_id, name, code, phone, email, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := r.q.QueryRow(ctx, query,
		enumerator.ProjectID,
		enumerator.Name,
		enumerator.Code,
		enumerator.Phone,
		enumerator.Email,
		enumerator.Status,
	).Scan(&enumerator.ID, &enumerator.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create enumerator: %w", err)
	}
	return nil
}

func (r *enumeratorRepository) Get(ctx context.Context, id int64) (*models.Enumerator, error) {
	query := `SELECT ` + enumeratorColumns + ` FROM enumerators WHERE id = $1`

	enumerator, err := scanEnumerator(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get enumerator: %w", err)
	}
	return enumerator, nil
}

// GetByCode resolves an enumerator by its human code label within a project,
// case-insensitively.
func (r *enumeratorRepository) GetByCode(ctx context.Context, projectID int64, code string) (*models.Enumerator, error) {
	query := `SELECT ` + enumeratorColumns + `
		FROM enumerators
		WHERE project_id = $1 AND lower(code) = lower($2)
		ORDER BY id DESC
		LIMIT 1`

	enumerator, err := scanEnumerator(r.q.QueryRow(ctx, query, projectID, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get enumerator by code: %w", err)
	}
	return enumerator, nil
}

func (r *enumeratorRepository) ListByProject(ctx context.Context, projectID int64) ([]models.Enumerator, error) {
	query := `SELECT ` + enumeratorColumns + ` FROM enumerators WHERE project_id = $1 ORDER BY id`

	rows, err := r.q.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list enumerators: %w", err)
	}
	defer rows.Close()

	var enumerators []models.Enumerator
	for rows.Next() {
		e, err := scanEnumerator(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan enumerator: %w", err)
		}
		enumerators = append(enumerators, *e)
	}
	return enumerators, rows.Err()
}

func (r *enumeratorRepository) SetStatus(ctx context.Context, id int64, status string) error {
	tag, err := r.q.Exec(ctx, `UPDATE enumerators SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("failed to set enumerator status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
