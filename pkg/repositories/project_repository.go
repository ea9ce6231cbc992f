package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/openfield-hq/openfield-engine/pkg/apperrors"
	"github.com/openfield-hq/openfield-engine/pkg/database"
	"github.com/openfield-hq/openfield-engine/pkg/models"
)

// ProjectRepository defines the interface for project data access.
type ProjectRepository interface {
	Create(ctx context.Context, project *models.Project) error
	Get(ctx context.Context, id int64) (*models.Project, error)
	GetByTag(ctx context.Context, tag string) (*models.Project, error)
	List(ctx context.Context) ([]models.Project, error)
	Update(ctx context.Context, project *models.Project) error
	SoftDelete(ctx context.Context, id int64) error
}

// projectRepository implements ProjectRepository using PostgreSQL.
type projectRepository struct {
	q database.Querier
}

// NewProjectRepository creates a new project repository.
func NewProjectRepository(q database.Querier) ProjectRepository {
	return &projectRepository{q: q}
}

var _ ProjectRepository = (*projectRepository)(nil)

const projectColumns = `id, name, COALESCE(description, ''), project_tag, status,
	assignment_mode, allow_unlisted_facilities, coverage_scheme_id,
	created_at, updated_at, deleted_at`

func scanProject(row pgx.Row) (*models.Project, error) {
	var p models.Project
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.ProjectTag, &p.Status,
		&p.AssignmentMode, &p.AllowUnlistedFacilities, &p.CoverageSchemeID,
		&p.CreatedAt, &p.UpdatedAt, &p.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *projectRepository) Create(ctx context.Context, project *models.Project) error {
	if project.Status == "" {
		project.Status = models.ProjectStatusDraft
	}
	if project.AssignmentMode == "" {
		project.AssignmentMode = models.AssignmentModeOptional
	}

	query := `
		INSERT INTO projects (name, description, project_tag, status, assignment_mode,
			allow_unlisted_facilities, coverage_scheme_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	err := r.q.QueryRow(ctx, query,
		project.Name,
		project.Description,
		project.ProjectTag,
		project.Status,
		project.AssignmentMode,
		project.AllowUnlistedFacilities,
		project.CoverageSchemeID,
	).Scan(&project.ID, &project.CreatedAt, &project.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

func (r *projectRepository) Get(ctx context.Context, id int64) (*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1 AND deleted_at IS NULL`

	project, err := scanProject(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return project, nil
}

func (r *projectRepository) GetByTag(ctx context.Context, tag string) (*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE project_tag = $1 AND deleted_at IS NULL`

	project, err := scanProject(r.q.QueryRow(ctx, query, tag))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get project by tag: %w", err)
	}
	return project, nil
}

func (r *projectRepository) List(ctx context.Context) ([]models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE deleted_at IS NULL ORDER BY id`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

func (r *projectRepository) Update(ctx context.Context, project *models.Project) error {
	project.UpdatedAt = time.Now()

	query := `
		UPDATE projects
		SET name = $2, description = $3, status = $4, assignment_mode = $5,
			allow_unlisted_facilities = $6, coverage_scheme_id = $7, updated_at = $8
		WHERE id = $1 AND deleted_at IS NULL`

	tag, err := r.q.Exec(ctx, query,
		project.ID,
		project.Name,
		project.Description,
		project.Status,
		project.AssignmentMode,
		project.AllowUnlistedFacilities,
		project.CoverageSchemeID,
		project.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *projectRepository) SoftDelete(ctx context.Context, id int64) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE projects SET deleted_at = now(), updated_at = now() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
