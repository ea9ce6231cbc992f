package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/openfield-hq/openfield-engine/pkg/apperrors"
	"github.com/openfield-hq/openfield-engine/pkg/database"
	"github.com/openfield-hq/openfield-engine/pkg/models"
)

// SubmissionRepository defines the interface for submission and answer data access.
type SubmissionRepository interface {
	Create(ctx context.Context, submission *models.Submission) error
	Get(ctx context.Context, id int64) (*models.Submission, error)
	GetByClientUUID(ctx context.Context, clientUUID uuid.UUID) (*models.Submission, error)
	Update(ctx context.Context, submission *models.Submission) error
	ReplaceAnswers(ctx context.Context, submissionID int64, answers []models.Answer) error
	ListAnswers(ctx context.Context, submissionID int64) ([]models.Answer, error)
	ExistsForFacilityDay(ctx context.Context, facilityID int64, enumeratorName string, day time.Time, excludeID int64) (bool, error)
	SetReviewStatus(ctx context.Context, id int64, status string, reason *string, reviewedBy *int64) error
	SoftDelete(ctx context.Context, id int64) error
}

// submissionRepository implements SubmissionRepository using PostgreSQL.
type submissionRepository struct {
	q database.Querier
}

// NewSubmissionRepository creates a new submission repository.
func NewSubmissionRepository(q database.Querier) SubmissionRepository {
	return &submissionRepository{q: q}
}

var _ SubmissionRepository = (*submissionRepository)(nil)

const submissionColumns = `id, project_id, template_id, assignment_id, enumerator_id,
	COALESCE(enumerator_name, ''), facility_id, coverage_node_id, status, review_status,
	review_reason, reviewed_by, reviewed_at, client_uuid,
	gps_lat, gps_lng, gps_accuracy, gps_captured_at, gps_missing, duplicate, qa_flags,
	consent_answer, consent_signature, attestation_confirmed, sync_source,
	created_at, completed_at, updated_at, deleted_at`

func scanSubmission(row pgx.Row) (*models.Submission, error) {
	var s models.Submission
	var lat, lng, accuracy *float64
	var capturedAt *time.Time
	var flags []string

	err := row.Scan(
		&s.ID, &s.ProjectID, &s.TemplateID, &s.AssignmentID, &s.EnumeratorID,
		&s.EnumeratorName, &s.FacilityID, &s.CoverageNodeID, &s.Status, &s.ReviewStatus,
		&s.ReviewReason, &s.ReviewedBy, &s.ReviewedAt, &s.ClientUUID,
		&lat, &lng, &accuracy, &capturedAt, &s.GPSMissing, &s.Duplicate, &flags,
		&s.ConsentAnswer, &s.ConsentSignature, &s.AttestationConfirmed, &s.SyncSource,
		&s.CreatedAt, &s.CompletedAt, &s.UpdatedAt, &s.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	if lat != nil && lng != nil {
		s.GPS = &models.GPSFix{Lat: *lat, Lng: *lng, Accuracy: accuracy, CapturedAt: capturedAt}
	}
	s.QAFlags = models.FlagsFromStrings(flags)
	return &s, nil
}

func gpsColumns(gps *models.GPSFix) (lat, lng, accuracy *float64, capturedAt *time.Time) {
	if gps == nil {
		return nil, nil, nil, nil
	}
	return &gps.Lat, &gps.Lng, gps.Accuracy, gps.CapturedAt
}

// Create inserts a submission. A concurrent replay of the same client_uuid
// loses the race on the partial unique index and surfaces as ErrConflict.
func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	lat, lng, accuracy, capturedAt := gpsColumns(submission.GPS)

	query := `
		INSERT INTO submissions (project_id, template_id, assignment_id, enumerator_id,
			enumerator_name, facility_id, coverage_node_id, status, review_status, client_uuid,
			gps_lat, gps_lng, gps_accuracy, gps_captured_at, gps_missing, duplicate, qa_flags,
			consent_answer, consent_signature, attestation_confirmed, sync_source, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
		RETURNING id, created_at, updated_at`

	err := r.q.QueryRow(ctx, query,
		submission.ProjectID,
		submission.TemplateID,
		submission.AssignmentID,
		submission.EnumeratorID,
		submission.EnumeratorName,
		submission.FacilityID,
		submission.CoverageNodeID,
		submission.Status,
		submission.ReviewStatus,
		submission.ClientUUID,
		lat, lng, accuracy, capturedAt,
		submission.GPSMissing,
		submission.Duplicate,
		models.FlagStrings(submission.QAFlags),
		submission.ConsentAnswer,
		submission.ConsentSignature,
		submission.AttestationConfirmed,
		submission.SyncSource,
		submission.CompletedAt,
	).Scan(&submission.ID, &submission.CreatedAt, &submission.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to create submission: %w", err)
	}
	return nil
}

func (r *submissionRepository) Get(ctx context.Context, id int64) (*models.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE id = $1 AND deleted_at IS NULL`

	submission, err := scanSubmission(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return submission, nil
}

func (r *submissionRepository) GetByClientUUID(ctx context.Context, clientUUID uuid.UUID) (*models.Submission, error) {
	query := `SELECT ` + submissionColumns + `
		FROM submissions
		WHERE client_uuid = $1 AND deleted_at IS NULL`

	submission, err := scanSubmission(r.q.QueryRow(ctx, query, clientUUID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get submission by client uuid: %w", err)
	}
	return submission, nil
}

func (r *submissionRepository) Update(ctx context.Context, submission *models.Submission) error {
	submission.UpdatedAt = time.Now()
	lat, lng, accuracy, capturedAt := gpsColumns(submission.GPS)

	query := `
		UPDATE submissions
		SET template_id = $2, assignment_id = $3, enumerator_id = $4, enumerator_name = $5,
			facility_id = $6, coverage_node_id = $7, status = $8,
			gps_lat = $9, gps_lng = $10, gps_accuracy = $11, gps_captured_at = $12,
			gps_missing = $13, duplicate = $14, qa_flags = $15,
			consent_answer = $16, consent_signature = $17, attestation_confirmed = $18,
			sync_source = $19, completed_at = $20, updated_at = $21
		WHERE id = $1 AND deleted_at IS NULL`

	tag, err := r.q.Exec(ctx, query,
		submission.ID,
		submission.TemplateID,
		submission.AssignmentID,
		submission.EnumeratorID,
		submission.EnumeratorName,
		submission.FacilityID,
		submission.CoverageNodeID,
		submission.Status,
		lat, lng, accuracy, capturedAt,
		submission.GPSMissing,
		submission.Duplicate,
		models.FlagStrings(submission.QAFlags),
		submission.ConsentAnswer,
		submission.ConsentSignature,
		submission.AttestationConfirmed,
		submission.SyncSource,
		submission.CompletedAt,
		submission.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update submission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// ReplaceAnswers deletes a submission's answers and reinserts the new set.
// Edits are a full replace, never a merge.
func (r *submissionRepository) ReplaceAnswers(ctx context.Context, submissionID int64, answers []models.Answer) error {
	if _, err := r.q.Exec(ctx,
		`DELETE FROM submission_answers WHERE submission_id = $1`, submissionID); err != nil {
		return fmt.Errorf("failed to delete submission answers: %w", err)
	}

	for i := range answers {
		a := &answers[i]
		a.SubmissionID = submissionID
		err := r.q.QueryRow(ctx, `
			INSERT INTO submission_answers (submission_id, question_id, question_text,
				answer_text, source, confidence)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id`,
			submissionID, a.QuestionID, a.QuestionText, a.AnswerText, a.Source, a.Confidence,
		).Scan(&a.ID)
		if err != nil {
			return fmt.Errorf("failed to insert submission answer: %w", err)
		}
	}
	return nil
}

func (r *submissionRepository) ListAnswers(ctx context.Context, submissionID int64) ([]models.Answer, error) {
	query := `
		SELECT id, submission_id, question_id, question_text, answer_text, source, confidence
		FROM submission_answers
		WHERE submission_id = $1
		ORDER BY id`

	rows, err := r.q.Query(ctx, query, submissionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list submission answers: %w", err)
	}
	defer rows.Close()

	var answers []models.Answer
	for rows.Next() {
		var a models.Answer
		if err := rows.Scan(&a.ID, &a.SubmissionID, &a.QuestionID, &a.QuestionText,
			&a.AnswerText, &a.Source, &a.Confidence); err != nil {
			return nil, fmt.Errorf("failed to scan submission answer: %w", err)
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// ExistsForFacilityDay reports whether another live submission exists for the
// same facility and enumerator name on the same calendar day. Feeds the
// duplicate heuristic; never blocks intake.
func (r *submissionRepository) ExistsForFacilityDay(ctx context.Context, facilityID int64, enumeratorName string, day time.Time, excludeID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM submissions
			WHERE facility_id = $1
			  AND lower(COALESCE(enumerator_name, '')) = lower($2)
			  AND created_at::date = $3::date
			  AND deleted_at IS NULL
			  AND id <> $4
		)`

	var exists bool
	err := r.q.QueryRow(ctx, query, facilityID, enumeratorName, day, excludeID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check duplicate submission: %w", err)
	}
	return exists, nil
}

func (r *submissionRepository) SetReviewStatus(ctx context.Context, id int64, status string, reason *string, reviewedBy *int64) error {
	query := `
		UPDATE submissions
		SET review_status = $2, review_reason = $3, reviewed_by = $4, reviewed_at = now(),
			updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL`

	tag, err := r.q.Exec(ctx, query, id, status, reason, reviewedBy)
	if err != nil {
		return fmt.Errorf("failed to set submission review status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *submissionRepository) SoftDelete(ctx context.Context, id int64) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE submissions SET deleted_at = now(), updated_at = now() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("failed to delete submission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
