package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openfield-hq/openfield-engine/pkg/apperrors"
	"github.com/openfield-hq/openfield-engine/pkg/codes"
	"github.com/openfield-hq/openfield-engine/pkg/database"
	"github.com/openfield-hq/openfield-engine/pkg/models"
	"github.com/openfield-hq/openfield-engine/pkg/repositories"
)

// SubmitInput is the full intake payload for creating or editing a submission.
type SubmitInput struct {
	ProjectID      int64
	TemplateID     int64
	AssignmentCode string
	AssignmentID   *int64
	EnumeratorName string
	FacilityID     *int64
	FacilityName   string
	CoverageNodeID *int64
	ClientUUID     *uuid.UUID
	Answers        []AnswerInput
	GPS            *models.GPSFix
	Consent        *ConsentInput
	Attestation    *bool
	SyncSource     *string
}

// SubmissionService is the intake and reconciliation state machine. A
// submission passes validation as an all-or-nothing batch, is persisted
// together with its answers, and its facility-completion effects are applied
// in the same transaction.
type SubmissionService interface {
	Submit(ctx context.Context, input SubmitInput) (*models.Submission, error)
	Edit(ctx context.Context, id int64, input SubmitInput) (*models.Submission, error)
	Get(ctx context.Context, id int64) (*models.Submission, error)
	GetAnswers(ctx context.Context, id int64) ([]models.Answer, error)
	Delete(ctx context.Context, id int64) error
}

// submissionTxRepos are the repositories rebuilt against the intake
// transaction for the persist-and-reconcile step.
type submissionTxRepos struct {
	Submissions repositories.SubmissionRepository
	Assignments repositories.AssignmentRepository
}

type submissionService struct {
	tx          database.TxRunner
	submissions repositories.SubmissionRepository
	assignments repositories.AssignmentRepository
	projects    repositories.ProjectRepository
	templates   repositories.TemplateRepository
	enumerators repositories.EnumeratorRepository
	facilities  repositories.FacilityRepository
	audit       AuditService
	codeKey     string
	maxAnswers  int
	logger      *zap.Logger
	txRepos     func(q database.Querier) submissionTxRepos
	now         func() time.Time
}

// NewSubmissionService creates a new SubmissionService.
func NewSubmissionService(
	tx database.TxRunner,
	submissions repositories.SubmissionRepository,
	assignments repositories.AssignmentRepository,
	projects repositories.ProjectRepository,
	templates repositories.TemplateRepository,
	enumerators repositories.EnumeratorRepository,
	facilities repositories.FacilityRepository,
	audit AuditService,
	codeKey string,
	maxAnswers int,
	logger *zap.Logger,
) SubmissionService {
	return &submissionService{
		tx:          tx,
		submissions: submissions,
		assignments: assignments,
		projects:    projects,
		templates:   templates,
		enumerators: enumerators,
		facilities:  facilities,
		audit:       audit,
		codeKey:     codeKey,
		maxAnswers:  maxAnswers,
		logger:      logger.Named("submission-service"),
		txRepos: func(q database.Querier) submissionTxRepos {
			return submissionTxRepos{
				Submissions: repositories.NewSubmissionRepository(q),
				Assignments: repositories.NewAssignmentRepository(q),
			}
		},
		now: time.Now,
	}
}

var _ SubmissionService = (*submissionService)(nil)

// Submit creates a submission. Replays of the same client_uuid return the
// original row without re-validating or touching facility state.
func (s *submissionService) Submit(ctx context.Context, input SubmitInput) (*models.Submission, error) {
	if input.ClientUUID != nil {
		existing, err := s.submissions.GetByClientUUID(ctx, *input.ClientUUID)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
	}
	return s.submit(ctx, input, nil)
}

// Edit replaces a submission's mutable fields and its full answer set,
// re-running the same validation path. The template must allow edits.
func (s *submissionService) Edit(ctx context.Context, id int64, input SubmitInput) (*models.Submission, error) {
	existing, err := s.submissions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.submit(ctx, input, existing)
}

func (s *submissionService) Get(ctx context.Context, id int64) (*models.Submission, error) {
	return s.submissions.Get(ctx, id)
}

func (s *submissionService) GetAnswers(ctx context.Context, id int64) ([]models.Answer, error) {
	if _, err := s.submissions.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.submissions.ListAnswers(ctx, id)
}

// Delete retracts a submission. Its facility claim is released in the same
// transaction so the assignment ledger reopens the slot, and the row itself
// is only hidden, never destroyed.
func (s *submissionService) Delete(ctx context.Context, id int64) error {
	submission, err := s.submissions.Get(ctx, id)
	if err != nil {
		return err
	}

	err = s.tx.WithinTx(ctx, func(q database.Querier) error {
		txr := s.txRepos(q)
		if submission.AssignmentID != nil {
			if err := txr.Assignments.RevertFacilityIfMatches(ctx, *submission.AssignmentID, submission.FacilityID, submission.ID); err != nil {
				return err
			}
		}
		return txr.Submissions.SoftDelete(ctx, submission.ID)
	})
	if err != nil {
		return err
	}

	s.audit.Record(ctx, models.AuditSubmissionDeleted, "submission", submission.ID, map[string]any{
		"project_id":  submission.ProjectID,
		"facility_id": submission.FacilityID,
	})
	s.logger.Info("Deleted submission", zap.Int64("submission_id", submission.ID))
	return nil
}

// submit runs the shared intake pipeline. existing is nil on create.
// Nothing is written until every recoverable check has passed; persistence
// and facility reconciliation then run inside one transaction.
func (s *submissionService) submit(ctx context.Context, input SubmitInput, existing *models.Submission) (*models.Submission, error) {
	project, err := s.projects.Get(ctx, input.ProjectID)
	if err != nil {
		return nil, err
	}
	template, err := s.templates.Get(ctx, input.TemplateID)
	if err != nil {
		return nil, err
	}
	if template.ProjectID != nil && *template.ProjectID != input.ProjectID {
		return nil, apperrors.NewValidation("template_id", apperrors.CodeInvalidInput, "template belongs to a different project")
	}
	if existing != nil && !template.AllowEditResponse {
		return nil, apperrors.ErrEditNotAllowed
	}
	if s.maxAnswers > 0 && len(input.Answers) > s.maxAnswers {
		return nil, apperrors.NewValidation("answers", apperrors.CodeInvalidInput, "too many answers in one submission")
	}

	assignment, enumerator, err := s.resolveAssignment(ctx, &input, template)
	if err != nil {
		return nil, err
	}

	if assignment == nil && template.EffectiveAssignmentMode(project) != models.AssignmentModeOptional {
		return nil, apperrors.ErrAssignmentRequired
	}

	facilityID, unlistedUsed, err := s.resolveFacility(ctx, &input, project, assignment)
	if err != nil {
		return nil, err
	}

	questions, err := s.templates.ListQuestions(ctx, input.TemplateID)
	if err != nil {
		return nil, err
	}
	if verr := validateAnswers(template, questions, input.Answers, input.Consent, input.Attestation); verr != nil {
		return nil, verr
	}

	enumeratorName := strings.TrimSpace(input.EnumeratorName)
	if enumeratorName == "" && enumerator != nil {
		enumeratorName = enumerator.Name
	}

	// Heuristics never block intake; a failed lookup just leaves the flag off.
	excludeID := int64(0)
	if existing != nil {
		excludeID = existing.ID
	}
	duplicate, err := s.submissions.ExistsForFacilityDay(ctx, facilityID, enumeratorName, s.now(), excludeID)
	if err != nil {
		s.logger.Warn("Duplicate check failed", zap.Error(err))
		duplicate = false
	}
	gpsMissing := template.EnableGPS && input.GPS == nil

	submission := s.buildSubmission(input, existing, template, assignment, enumerator, enumeratorName, facilityID, duplicate, gpsMissing, unlistedUsed)

	answers := buildAnswers(input.Answers, questions)

	err = s.tx.WithinTx(ctx, func(q database.Querier) error {
		txr := s.txRepos(q)

		if existing == nil {
			if err := txr.Submissions.Create(ctx, submission); err != nil {
				return err
			}
		} else {
			if err := txr.Submissions.Update(ctx, submission); err != nil {
				return err
			}
		}
		if err := txr.Submissions.ReplaceAnswers(ctx, submission.ID, answers); err != nil {
			return err
		}
		return s.reconcileFacility(ctx, txr, submission, existing)
	})
	if err != nil {
		// A concurrent replay of the same client_uuid lost the insert race;
		// the winner's row is the result.
		if existing == nil && input.ClientUUID != nil && errors.Is(err, apperrors.ErrConflict) {
			if winner, readErr := s.submissions.GetByClientUUID(ctx, *input.ClientUUID); readErr == nil {
				return winner, nil
			}
		}
		return nil, err
	}

	action := models.AuditSubmissionCreated
	if existing != nil {
		action = models.AuditSubmissionEdited
	}
	s.audit.Record(ctx, action, "submission", submission.ID, map[string]any{
		"project_id":  submission.ProjectID,
		"facility_id": submission.FacilityID,
		"duplicate":   submission.Duplicate,
	})
	s.logger.Info("Persisted submission",
		zap.Int64("submission_id", submission.ID),
		zap.Bool("edit", existing != nil))
	return submission, nil
}

// resolveAssignment resolves the optional assignment reference from an id or
// an access code and verifies it is usable for this submission.
func (s *submissionService) resolveAssignment(ctx context.Context, input *SubmitInput, template *models.Template) (*models.Assignment, *models.Enumerator, error) {
	var assignment *models.Assignment

	code := strings.TrimSpace(input.AssignmentCode)
	switch {
	case code != "":
		parsed, err := codes.Parse(code)
		if err != nil {
			// Bare enumerator label fallback.
			enumerator, err := s.enumerators.GetByCode(ctx, input.ProjectID, code)
			if err != nil {
				return nil, nil, err
			}
			if !enumerator.IsActive() {
				return nil, nil, apperrors.ErrEnumeratorInactive
			}
			assignment, err = s.assignments.FindOpenForEnumerator(ctx, enumerator.ID, &input.TemplateID)
			if err != nil {
				return nil, nil, err
			}
		} else {
			assignment, err = s.assignments.GetByCodeFull(ctx, strings.ToUpper(code))
			if err != nil {
				return nil, nil, err
			}
			if !codes.Verify(s.codeKey, parsed, assignment.ProjectID, assignment.EnumeratorID) {
				return nil, nil, apperrors.ErrNotFound
			}
		}
	case input.AssignmentID != nil:
		var err error
		assignment, err = s.assignments.Get(ctx, *input.AssignmentID)
		if err != nil {
			return nil, nil, err
		}
	default:
		return nil, nil, nil
	}

	enumerator, err := s.enumerators.Get(ctx, assignment.EnumeratorID)
	if err != nil {
		return nil, nil, err
	}
	if !enumerator.IsActive() {
		return nil, nil, apperrors.ErrEnumeratorInactive
	}
	if !assignment.IsActive {
		return nil, nil, apperrors.ErrAssignmentInactive
	}
	if assignment.ProjectID != input.ProjectID {
		return nil, nil, apperrors.ErrAssignmentMismatch
	}
	if assignment.TemplateID != nil && *assignment.TemplateID != template.ID {
		return nil, nil, apperrors.ErrAssignmentMismatch
	}
	return assignment, enumerator, nil
}

// resolveFacility applies the facility policy: a non-empty assignment ledger
// restricts submissions to listed facilities; an empty ledger admits outside
// facilities only when the project allows them.
func (s *submissionService) resolveFacility(ctx context.Context, input *SubmitInput, project *models.Project, assignment *models.Assignment) (facilityID int64, unlistedUsed bool, err error) {
	resolveByInput := func() (int64, error) {
		if input.FacilityID != nil {
			facility, err := s.facilities.Get(ctx, *input.FacilityID)
			if err != nil {
				return 0, err
			}
			return facility.ID, nil
		}
		facility, err := s.facilities.GetOrCreateByName(ctx, input.FacilityName)
		if err != nil {
			return 0, err
		}
		return facility.ID, nil
	}

	if assignment == nil {
		id, err := resolveByInput()
		return id, false, err
	}

	listed, err := s.assignments.CountFacilities(ctx, assignment.ID)
	if err != nil {
		return 0, false, err
	}

	if listed == 0 {
		if !project.AllowUnlistedFacilities {
			return 0, false, apperrors.ErrFacilityListRequired
		}
		id, err := resolveByInput()
		return id, true, err
	}

	id, err := resolveByInput()
	if err != nil {
		return 0, false, err
	}
	onList, err := s.assignments.HasFacility(ctx, assignment.ID, id)
	if err != nil {
		return 0, false, err
	}
	if !onList {
		return 0, false, apperrors.ErrFacilityNotAssigned
	}
	return id, false, nil
}

func (s *submissionService) buildSubmission(
	input SubmitInput,
	existing *models.Submission,
	template *models.Template,
	assignment *models.Assignment,
	enumerator *models.Enumerator,
	enumeratorName string,
	facilityID int64,
	duplicate, gpsMissing, unlistedUsed bool,
) *models.Submission {
	now := s.now()

	submission := &models.Submission{
		ProjectID:      input.ProjectID,
		TemplateID:     template.ID,
		FacilityID:     facilityID,
		CoverageNodeID: input.CoverageNodeID,
		EnumeratorName: enumeratorName,
		Status:         models.SubmissionStatusCompleted,
		ReviewStatus:   models.ReviewStatusPending,
		ClientUUID:     input.ClientUUID,
		GPS:            input.GPS,
		GPSMissing:     gpsMissing,
		Duplicate:      duplicate,
		SyncSource:     input.SyncSource,
		CompletedAt:    &now,
	}
	if existing != nil {
		submission.ID = existing.ID
		submission.ReviewStatus = existing.ReviewStatus
		submission.ClientUUID = existing.ClientUUID
		submission.CreatedAt = existing.CreatedAt
	}
	if assignment != nil {
		submission.AssignmentID = &assignment.ID
		if submission.CoverageNodeID == nil {
			submission.CoverageNodeID = assignment.CoverageNodeID
		}
	}
	if enumerator != nil {
		submission.EnumeratorID = &enumerator.ID
	}
	if input.Consent != nil {
		answer := input.Consent.Answer
		submission.ConsentAnswer = &answer
		if input.Consent.Signature != "" {
			signature := input.Consent.Signature
			submission.ConsentSignature = &signature
		}
	}
	submission.AttestationConfirmed = input.Attestation

	var flags []models.QAFlag
	if duplicate {
		flags = append(flags, models.FlagDuplicateFacilityDay)
	}
	if gpsMissing {
		flags = append(flags, models.FlagGPSMissing)
	}
	if unlistedUsed {
		flags = append(flags, models.FlagUnlistedFacilityUsed)
	}
	submission.QAFlags = flags

	return submission
}

// reconcileFacility propagates completion state into the assignment ledger.
// On edit, the previously claimed facility is released first, but only while
// it still points at this submission.
func (s *submissionService) reconcileFacility(ctx context.Context, txr submissionTxRepos, submission, previous *models.Submission) error {
	if previous != nil && previous.AssignmentID != nil {
		facilityChanged := previous.FacilityID != submission.FacilityID
		assignmentChanged := submission.AssignmentID == nil || *previous.AssignmentID != *submission.AssignmentID
		if facilityChanged || assignmentChanged {
			if err := txr.Assignments.RevertFacilityIfMatches(ctx, *previous.AssignmentID, previous.FacilityID, submission.ID); err != nil {
				return err
			}
		}
	}
	if submission.AssignmentID != nil {
		return txr.Assignments.MarkFacilityDone(ctx, *submission.AssignmentID, submission.FacilityID, submission.ID)
	}
	return nil
}

// buildAnswers converts intake answers to rows, resolving question text from
// the template where the client only sent an id.
func buildAnswers(inputs []AnswerInput, questions []models.TemplateQuestion) []models.Answer {
	textByID := make(map[int64]string, len(questions))
	for _, q := range questions {
		textByID[q.ID] = q.QuestionText
	}

	answers := make([]models.Answer, 0, len(inputs))
	for i := range inputs {
		in := &inputs[i]
		value := in.effectiveValue()
		if value == "" && in.QuestionID == nil {
			continue
		}

		answer := models.Answer{
			QuestionID:   in.QuestionID,
			QuestionText: in.QuestionText,
			Source:       in.Source,
			Confidence:   in.Confidence,
		}
		if answer.QuestionText == "" && in.QuestionID != nil {
			answer.QuestionText = textByID[*in.QuestionID]
		}
		if value != "" {
			answer.AnswerText = &value
		}
		answers = append(answers, answer)
	}
	return answers
}
