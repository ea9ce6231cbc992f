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

// AssignmentRepository defines the interface for assignment data access,
// including the per-assignment facility progress ledger.
type AssignmentRepository interface {
	Create(ctx context.Context, assignment *models.Assignment) error
	Get(ctx context.Context, id int64) (*models.Assignment, error)
	GetByCodeFull(ctx context.Context, codeFull string) (*models.Assignment, error)
	ListByProject(ctx context.Context, projectID int64) ([]models.Assignment, error)
	FindOpenForEnumerator(ctx context.Context, enumeratorID int64, templateID *int64) (*models.Assignment, error)
	NextSerial(ctx context.Context, projectID int64) (int, error)
	SetActive(ctx context.Context, id int64, active bool) error

	AddFacilities(ctx context.Context, assignmentID int64, facilityIDs []int64) error
	ListFacilities(ctx context.Context, assignmentID int64) ([]models.AssignmentFacility, error)
	HasFacility(ctx context.Context, assignmentID, facilityID int64) (bool, error)
	CountFacilities(ctx context.Context, assignmentID int64) (int, error)
	MarkFacilityDone(ctx context.Context, assignmentID, facilityID, surveyID int64) error
	RevertFacilityIfMatches(ctx context.Context, assignmentID, facilityID, surveyID int64) error
	Progress(ctx context.Context, assignmentID int64) (*models.AssignmentProgress, error)

	AddCoverageNodes(ctx context.Context, assignmentID int64, nodeIDs []int64) error
	ListCoverageNodeIDs(ctx context.Context, assignmentID int64) ([]int64, error)
}

// assignmentRepository implements AssignmentRepository using PostgreSQL.
type assignmentRepository struct {
	q database.Querier
}

// NewAssignmentRepository creates a new assignment repository.
func NewAssignmentRepository(q database.Querier) AssignmentRepository {
	return &assignmentRepository{q: q}
}

var _ AssignmentRepository = (*assignmentRepository)(nil)

const assignmentColumns = `id, project_id, enumerator_id, supervisor_id, template_id,
	coverage_node_id, target_facilities_count, code_serial, code_full, is_active, created_at`

func scanAssignment(row pgx.Row) (*models.Assignment, error) {
	var a models.Assignment
	err := row.Scan(
		&a.ID, &a.ProjectID, &a.EnumeratorID, &a.SupervisorID, &a.TemplateID,
		&a.CoverageNodeID, &a.TargetFacilitiesCount, &a.CodeSerial, &a.CodeFull,
		&a.IsActive, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Create inserts an assignment with its pre-computed serial and code.
// A serial collision from a concurrent create surfaces as ErrConflict so the
// caller can pick the next serial and retry.
func (r *assignmentRepository) Create(ctx context.Context, assignment *models.Assignment) error {
	query := `
		INSERT INTO assignments (project_id, enumerator_id, supervisor_id, template_id,
			coverage_node_id, target_facilities_count, code_serial, code_full, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`

	err := r.q.QueryRow(ctx, query,
		assignment.ProjectID,
		assignment.EnumeratorID,
		assignment.SupervisorID,
		assignment.TemplateID,
		assignment.CoverageNodeID,
		assignment.TargetFacilitiesCount,
		assignment.CodeSerial,
		assignment.CodeFull,
		assignment.IsActive,
	).Scan(&assignment.ID, &assignment.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to create assignment: %w", err)
	}
	return nil
}

func (r *assignmentRepository) Get(ctx context.Context, id int64) (*models.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments WHERE id = $1`

	assignment, err := scanAssignment(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	return assignment, nil
}

func (r *assignmentRepository) GetByCodeFull(ctx context.Context, codeFull string) (*models.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments WHERE code_full = $1`

	assignment, err := scanAssignment(r.q.QueryRow(ctx, query, codeFull))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get assignment by code: %w", err)
	}
	return assignment, nil
}

func (r *assignmentRepository) ListByProject(ctx context.Context, projectID int64) ([]models.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments WHERE project_id = $1 ORDER BY id`

	rows, err := r.q.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	var assignments []models.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		assignments = append(assignments, *a)
	}
	return assignments, rows.Err()
}

// FindOpenForEnumerator picks the most relevant active assignment for an
// enumerator: exact template match first, then template-agnostic assignments,
// newest within each group.
func (r *assignmentRepository) FindOpenForEnumerator(ctx context.Context, enumeratorID int64, templateID *int64) (*models.Assignment, error) {
	query := `SELECT ` + assignmentColumns + `
		FROM assignments
		WHERE enumerator_id = $1 AND is_active
		ORDER BY
			CASE
				WHEN $2::bigint IS NOT NULL AND template_id = $2 THEN 0
				WHEN template_id IS NULL THEN 1
				ELSE 2
			END,
			id DESC
		LIMIT 1`

	assignment, err := scanAssignment(r.q.QueryRow(ctx, query, enumeratorID, templateID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find open assignment: %w", err)
	}
	return assignment, nil
}

// NextSerial returns the next free per-project code serial.
func (r *assignmentRepository) NextSerial(ctx context.Context, projectID int64) (int, error) {
	var serial int
	err := r.q.QueryRow(ctx,
		`SELECT COALESCE(MAX(code_serial), 0) + 1 FROM assignments WHERE project_id = $1`,
		projectID).Scan(&serial)
	if err != nil {
		return 0, fmt.Errorf("failed to compute next assignment serial: %w", err)
	}
	return serial, nil
}

func (r *assignmentRepository) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.q.Exec(ctx, `UPDATE assignments SET is_active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("failed to set assignment active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// AddFacilities appends facilities to an assignment's ledger. Re-adding an
// already-present facility is a no-op.
func (r *assignmentRepository) AddFacilities(ctx context.Context, assignmentID int64, facilityIDs []int64) error {
	query := `
		INSERT INTO assignment_facilities (assignment_id, facility_id, status)
		SELECT $1, unnest($2::bigint[]), $3
		ON CONFLICT (assignment_id, facility_id) DO NOTHING`

	if _, err := r.q.Exec(ctx, query, assignmentID, facilityIDs, models.FacilityStatusPending); err != nil {
		return fmt.Errorf("failed to add assignment facilities: %w", err)
	}
	return nil
}

func (r *assignmentRepository) ListFacilities(ctx context.Context, assignmentID int64) ([]models.AssignmentFacility, error) {
	query := `
		SELECT af.id, af.assignment_id, af.facility_id, f.name, af.status, af.done_survey_id, af.created_at
		FROM assignment_facilities af
		JOIN facilities f ON f.id = af.facility_id
		WHERE af.assignment_id = $1
		ORDER BY lower(f.name)`

	rows, err := r.q.Query(ctx, query, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignment facilities: %w", err)
	}
	defer rows.Close()

	var facilities []models.AssignmentFacility
	for rows.Next() {
		var af models.AssignmentFacility
		if err := rows.Scan(&af.ID, &af.AssignmentID, &af.FacilityID, &af.FacilityName,
			&af.Status, &af.DoneSurveyID, &af.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan assignment facility: %w", err)
		}
		facilities = append(facilities, af)
	}
	return facilities, rows.Err()
}

func (r *assignmentRepository) HasFacility(ctx context.Context, assignmentID, facilityID int64) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM assignment_facilities WHERE assignment_id = $1 AND facility_id = $2)`,
		assignmentID, facilityID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check assignment facility: %w", err)
	}
	return exists, nil
}

func (r *assignmentRepository) CountFacilities(ctx context.Context, assignmentID int64) (int, error) {
	var count int
	err := r.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM assignment_facilities WHERE assignment_id = $1`, assignmentID).
		Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count assignment facilities: %w", err)
	}
	return count, nil
}

// MarkFacilityDone records which submission completed a facility. A missing
// (assignment, facility) pair is a silent no-op: intake with unlisted
// facilities allowed may reference facilities never added to the ledger.
func (r *assignmentRepository) MarkFacilityDone(ctx context.Context, assignmentID, facilityID, surveyID int64) error {
	query := `
		UPDATE assignment_facilities
		SET status = $3, done_survey_id = $4
		WHERE assignment_id = $1 AND facility_id = $2`

	if _, err := r.q.Exec(ctx, query, assignmentID, facilityID, models.FacilityStatusDone, surveyID); err != nil {
		return fmt.Errorf("failed to mark assignment facility done: %w", err)
	}
	return nil
}

// RevertFacilityIfMatches sets a facility back to pending only while its
// done_survey_id still points at the given submission. A facility claimed by
// a different, newer submission is left untouched.
func (r *assignmentRepository) RevertFacilityIfMatches(ctx context.Context, assignmentID, facilityID, surveyID int64) error {
	query := `
		UPDATE assignment_facilities
		SET status = $4, done_survey_id = NULL
		WHERE assignment_id = $1 AND facility_id = $2 AND done_survey_id = $3`

	if _, err := r.q.Exec(ctx, query, assignmentID, facilityID, surveyID, models.FacilityStatusPending); err != nil {
		return fmt.Errorf("failed to revert assignment facility: %w", err)
	}
	return nil
}

// Progress computes completion counters. Target falls back to the ledger size
// when no explicit target is set.
func (r *assignmentRepository) Progress(ctx context.Context, assignmentID int64) (*models.AssignmentProgress, error) {
	query := `
		SELECT
			COUNT(af.id) FILTER (WHERE af.status = $2),
			COUNT(af.id),
			COALESCE(a.target_facilities_count, COUNT(af.id))
		FROM assignments a
		LEFT JOIN assignment_facilities af ON af.assignment_id = a.id
		WHERE a.id = $1
		GROUP BY a.id, a.target_facilities_count`

	var p models.AssignmentProgress
	err := r.q.QueryRow(ctx, query, assignmentID, models.FacilityStatusDone).
		Scan(&p.Completed, &p.Total, &p.Target)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to compute assignment progress: %w", err)
	}
	return &p, nil
}

// AddCoverageNodes attaches extra coverage nodes to an assignment, ignoring
// nodes already attached.
func (r *assignmentRepository) AddCoverageNodes(ctx context.Context, assignmentID int64, nodeIDs []int64) error {
	query := `
		INSERT INTO assignment_coverage_nodes (assignment_id, coverage_node_id)
		SELECT $1, unnest($2::bigint[])
		ON CONFLICT (assignment_id, coverage_node_id) DO NOTHING`

	if _, err := r.q.Exec(ctx, query, assignmentID, nodeIDs); err != nil {
		return fmt.Errorf("failed to add assignment coverage nodes: %w", err)
	}
	return nil
}

func (r *assignmentRepository) ListCoverageNodeIDs(ctx context.Context, assignmentID int64) ([]int64, error) {
	rows, err := r.q.Query(ctx,
		`SELECT coverage_node_id FROM assignment_coverage_nodes WHERE assignment_id = $1 ORDER BY id`,
		assignmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignment coverage nodes: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan assignment coverage node: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
