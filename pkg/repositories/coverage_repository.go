package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/openfield-hq/openfield-engine/pkg/apperrors"
	"github.com/openfield-hq/openfield-engine/pkg/database"
	"github.com/openfield-hq/openfield-engine/pkg/models"
)

// CoverageRepository defines the interface for coverage scheme and node data access.
type CoverageRepository interface {
	CreateScheme(ctx context.Context, scheme *models.CoverageScheme) error
	GetScheme(ctx context.Context, id int64) (*models.CoverageScheme, error)
	ListSchemes(ctx context.Context) ([]models.CoverageScheme, error)
	CreateNode(ctx context.Context, node *models.CoverageNode) error
	GetNode(ctx context.Context, id int64) (*models.CoverageNode, error)
	ListNodes(ctx context.Context, schemeID int64) ([]models.CoverageNode, error)
	UpdateNode(ctx context.Context, node *models.CoverageNode) error
	ReindexSubtree(ctx context.Context, rootID int64, rootLevel int) error
	DeleteNode(ctx context.Context, id int64) error
	HasChildren(ctx context.Context, id int64) (bool, error)
	CountReferences(ctx context.Context, id int64) (int, error)
}

// coverageRepository implements CoverageRepository using PostgreSQL.
type coverageRepository struct {
	q database.Querier
}

// NewCoverageRepository creates a new coverage repository.
func NewCoverageRepository(q database.Querier) CoverageRepository {
	return &coverageRepository{q: q}
}

var _ CoverageRepository = (*coverageRepository)(nil)

// Create inserts a new scheme and fills in its generated id.
func (r *coverageRepository) CreateScheme(ctx context.Context, scheme *models.CoverageScheme) error {
	query := `
		INSERT INTO coverage_schemes (name, description)
		VALUES ($1, $2)
		RETURNING id, created_at`

	err := r.q.QueryRow(ctx, query, scheme.Name, scheme.Description).
		Scan(&scheme.ID, &scheme.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create coverage scheme: %w", err)
	}
	return nil
}

func (r *coverageRepository) GetScheme(ctx context.Context, id int64) (*models.CoverageScheme, error) {
	query := `
		SELECT id, name, COALESCE(description, ''), created_at
		FROM coverage_schemes
		WHERE id = $1`

	var scheme models.CoverageScheme
	err := r.q.QueryRow(ctx, query, id).
		Scan(&scheme.ID, &scheme.Name, &scheme.Description, &scheme.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get coverage scheme: %w", err)
	}
	return &scheme, nil
}

func (r *coverageRepository) ListSchemes(ctx context.Context) ([]models.CoverageScheme, error) {
	query := `
		SELECT id, name, COALESCE(description, ''), created_at
		FROM coverage_schemes
		ORDER BY id`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list coverage schemes: %w", err)
	}
	defer rows.Close()

	var schemes []models.CoverageScheme
	for rows.Next() {
		var s models.CoverageScheme
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan coverage scheme: %w", err)
		}
		schemes = append(schemes, s)
	}
	return schemes, rows.Err()
}

// CreateNode inserts a node. A duplicate (scheme, parent, name) sibling
// surfaces as ErrConflict.
func (r *coverageRepository) CreateNode(ctx context.Context, node *models.CoverageNode) error {
	query := `
		INSERT INTO coverage_nodes (scheme_id, parent_id, name, level_index)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := r.q.QueryRow(ctx, query, node.SchemeID, node.ParentID, node.Name, node.LevelIndex).
		Scan(&node.ID, &node.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to create coverage node: %w", err)
	}
	return nil
}

func (r *coverageRepository) GetNode(ctx context.Context, id int64) (*models.CoverageNode, error) {
	query := `
		SELECT id, scheme_id, parent_id, name, level_index, created_at
		FROM coverage_nodes
		WHERE id = $1`

	var node models.CoverageNode
	err := r.q.QueryRow(ctx, query, id).
		Scan(&node.ID, &node.SchemeID, &node.ParentID, &node.Name, &node.LevelIndex, &node.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get coverage node: %w", err)
	}
	return &node, nil
}

// ListNodes returns a scheme's nodes breadth-first: level, then insertion order.
func (r *coverageRepository) ListNodes(ctx context.Context, schemeID int64) ([]models.CoverageNode, error) {
	query := `
		SELECT id, scheme_id, parent_id, name, level_index, created_at
		FROM coverage_nodes
		WHERE scheme_id = $1
		ORDER BY level_index, id`

	rows, err := r.q.Query(ctx, query, schemeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list coverage nodes: %w", err)
	}
	defer rows.Close()

	var nodes []models.CoverageNode
	for rows.Next() {
		var n models.CoverageNode
		if err := rows.Scan(&n.ID, &n.SchemeID, &n.ParentID, &n.Name, &n.LevelIndex, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan coverage node: %w", err)
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

func (r *coverageRepository) UpdateNode(ctx context.Context, node *models.CoverageNode) error {
	query := `
		UPDATE coverage_nodes
		SET name = $2, parent_id = $3, level_index = $4
		WHERE id = $1`

	tag, err := r.q.Exec(ctx, query, node.ID, node.Name, node.ParentID, node.LevelIndex)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to update coverage node: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// ReindexSubtree rewrites level_index for a node and all its descendants,
// anchoring the root at rootLevel. Used after a reparent.
func (r *coverageRepository) ReindexSubtree(ctx context.Context, rootID int64, rootLevel int) error {
	query := `
		WITH RECURSIVE subtree AS (
			SELECT id, 0 AS depth FROM coverage_nodes WHERE id = $1
			UNION ALL
			SELECT c.id, s.depth + 1
			FROM coverage_nodes c
			JOIN subtree s ON c.parent_id = s.id
		)
		UPDATE coverage_nodes n
		SET level_index = $2 + s.depth
		FROM subtree s
		WHERE n.id = s.id`

	if _, err := r.q.Exec(ctx, query, rootID, rootLevel); err != nil {
		return fmt.Errorf("failed to reindex coverage subtree: %w", err)
	}
	return nil
}

func (r *coverageRepository) DeleteNode(ctx context.Context, id int64) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM coverage_nodes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete coverage node: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *coverageRepository) HasChildren(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM coverage_nodes WHERE parent_id = $1)`, id).
		Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check coverage node children: %w", err)
	}
	return exists, nil
}

// CountReferences counts assignments and submissions still pointing at a node.
func (r *coverageRepository) CountReferences(ctx context.Context, id int64) (int, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM assignments WHERE coverage_node_id = $1) +
			(SELECT COUNT(*) FROM assignment_coverage_nodes WHERE coverage_node_id = $1) +
			(SELECT COUNT(*) FROM submissions WHERE coverage_node_id = $1 AND deleted_at IS NULL)`

	var count int
	if err := r.q.QueryRow(ctx, query, id).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count coverage node references: %w", err)
	}
	return count, nil
}

// isUniqueViolation reports whether err is a Postgres unique constraint error.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
