package services

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/openfield-hq/openfield-engine/pkg/apperrors"
	"github.com/openfield-hq/openfield-engine/pkg/codes"
	"github.com/openfield-hq/openfield-engine/pkg/database"
	"github.com/openfield-hq/openfield-engine/pkg/models"
	"github.com/openfield-hq/openfield-engine/pkg/repositories"
)

// createCodeRetries bounds retries when two creates race for the same
// per-project serial.
const createCodeRetries = 3

// CreateAssignmentInput describes a new enumerator assignment.
type CreateAssignmentInput struct {
	ProjectID             int64
	EnumeratorID          int64
	SupervisorID          *int64
	TemplateID            *int64
	CoverageNodeID        *int64
	ExtraCoverageNodeIDs  []int64
	TargetFacilitiesCount *int
	FacilityIDs           []int64
	FacilityNames         []string
}

// ResolvedAssignment is the payload returned to a field device that resolved
// its access code: identity, scope, the facility checklist and progress.
type ResolvedAssignment struct {
	Enumerator           *models.Enumerator          `json:"enumerator"`
	Assignment           *models.Assignment          `json:"assignment"`
	Project              *models.Project             `json:"project"`
	CoverageLabel        string                      `json:"coverage_label,omitempty"`
	ExtraCoverageNodeIDs []int64                     `json:"extra_coverage_node_ids,omitempty"`
	Facilities           []models.AssignmentFacility `json:"facilities"`
	Progress             *models.AssignmentProgress  `json:"progress"`
}

// AssignmentService manages enumerator assignments and their access codes.
type AssignmentService interface {
	CreateAssignment(ctx context.Context, input CreateAssignmentInput) (*models.Assignment, error)
	ResolveCode(ctx context.Context, code string, projectID *int64, templateID *int64) (*ResolvedAssignment, error)
	ListByProject(ctx context.Context, projectID int64) ([]models.Assignment, error)
	AddFacilities(ctx context.Context, assignmentID int64, facilityIDs []int64, facilityNames []string) error
	ListFacilities(ctx context.Context, assignmentID int64) ([]models.AssignmentFacility, error)
	Progress(ctx context.Context, assignmentID int64) (*models.AssignmentProgress, error)
	SetActive(ctx context.Context, assignmentID int64, active bool) error
}

// assignmentTxRepos are the repositories rebuilt against a transaction for
// the create path.
type assignmentTxRepos struct {
	Assignments repositories.AssignmentRepository
	Facilities  repositories.FacilityRepository
}

type assignmentService struct {
	tx          database.TxRunner
	assignments repositories.AssignmentRepository
	projects    repositories.ProjectRepository
	enumerators repositories.EnumeratorRepository
	facilities  repositories.FacilityRepository
	templates   repositories.TemplateRepository
	coverage    repositories.CoverageRepository
	audit       AuditService
	codeKey     string
	logger      *zap.Logger
	txRepos     func(q database.Querier) assignmentTxRepos
}

// NewAssignmentService creates a new AssignmentService. codeKey signs the
// checksum segment of issued access codes.
func NewAssignmentService(
	tx database.TxRunner,
	assignments repositories.AssignmentRepository,
	projects repositories.ProjectRepository,
	enumerators repositories.EnumeratorRepository,
	facilities repositories.FacilityRepository,
	templates repositories.TemplateRepository,
	coverage repositories.CoverageRepository,
	audit AuditService,
	codeKey string,
	logger *zap.Logger,
) AssignmentService {
	return &assignmentService{
		tx:          tx,
		assignments: assignments,
		projects:    projects,
		enumerators: enumerators,
		facilities:  facilities,
		templates:   templates,
		coverage:    coverage,
		audit:       audit,
		codeKey:     codeKey,
		logger:      logger.Named("assignment-service"),
		txRepos: func(q database.Querier) assignmentTxRepos {
			return assignmentTxRepos{
				Assignments: repositories.NewAssignmentRepository(q),
				Facilities:  repositories.NewFacilityRepository(q),
			}
		},
	}
}

var _ AssignmentService = (*assignmentService)(nil)

// CreateAssignment validates the scope, issues a stable access code and
// seeds the facility ledger, all in one transaction.
func (s *assignmentService) CreateAssignment(ctx context.Context, input CreateAssignmentInput) (*models.Assignment, error) {
	project, err := s.projects.Get(ctx, input.ProjectID)
	if err != nil {
		return nil, err
	}

	enumerator, err := s.enumerators.Get(ctx, input.EnumeratorID)
	if err != nil {
		return nil, err
	}
	if !enumerator.IsActive() {
		return nil, apperrors.ErrEnumeratorInactive
	}
	if enumerator.ProjectID != nil && *enumerator.ProjectID != input.ProjectID {
		return nil, apperrors.NewValidation("enumerator_id", apperrors.CodeInvalidInput, "enumerator belongs to a different project")
	}

	if input.TemplateID != nil {
		template, err := s.templates.Get(ctx, *input.TemplateID)
		if err != nil {
			return nil, err
		}
		if template.ProjectID != nil && *template.ProjectID != input.ProjectID {
			return nil, apperrors.NewValidation("template_id", apperrors.CodeInvalidInput, "template belongs to a different project")
		}
	}

	for _, nodeID := range input.ExtraCoverageNodeIDs {
		if _, err := s.coverage.GetNode(ctx, nodeID); err != nil {
			return nil, err
		}
	}
	if input.CoverageNodeID != nil {
		if _, err := s.coverage.GetNode(ctx, *input.CoverageNodeID); err != nil {
			return nil, err
		}
	}

	var assignment *models.Assignment
	err = s.tx.WithinTx(ctx, func(q database.Querier) error {
		txr := s.txRepos(q)

		facilityIDs := append([]int64{}, input.FacilityIDs...)
		for _, id := range input.FacilityIDs {
			if _, err := txr.Facilities.Get(ctx, id); err != nil {
				return err
			}
		}
		for _, name := range input.FacilityNames {
			facility, err := txr.Facilities.GetOrCreateByName(ctx, name)
			if err != nil {
				return err
			}
			facilityIDs = append(facilityIDs, facility.ID)
		}

		for attempt := 0; ; attempt++ {
			serial, err := txr.Assignments.NextSerial(ctx, input.ProjectID)
			if err != nil {
				return err
			}
			assignment = &models.Assignment{
				ProjectID:             input.ProjectID,
				EnumeratorID:          input.EnumeratorID,
				SupervisorID:          input.SupervisorID,
				TemplateID:            input.TemplateID,
				CoverageNodeID:        input.CoverageNodeID,
				TargetFacilitiesCount: input.TargetFacilitiesCount,
				CodeSerial:            serial,
				CodeFull:              codes.Generate(s.codeKey, project.ProjectTag, project.ID, enumerator.ID, serial),
				IsActive:              true,
			}
			err = txr.Assignments.Create(ctx, assignment)
			if err == nil {
				break
			}
			if errors.Is(err, apperrors.ErrConflict) && attempt < createCodeRetries {
				continue
			}
			return err
		}

		if len(facilityIDs) > 0 {
			if err := txr.Assignments.AddFacilities(ctx, assignment.ID, facilityIDs); err != nil {
				return err
			}
		}
		if len(input.ExtraCoverageNodeIDs) > 0 {
			if err := txr.Assignments.AddCoverageNodes(ctx, assignment.ID, input.ExtraCoverageNodeIDs); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, models.AuditAssignmentCreated, "assignment", assignment.ID, map[string]any{
		"code_full":     assignment.CodeFull,
		"project_id":    assignment.ProjectID,
		"enumerator_id": assignment.EnumeratorID,
	})
	s.logger.Info("Created assignment",
		zap.Int64("assignment_id", assignment.ID),
		zap.String("code", assignment.CodeFull))
	return assignment, nil
}

// ResolveCode resolves a full access code, or falls back to a bare enumerator
// label scoped to a project. Inactive enumerators and assignments are
// distinguishable from unknown codes.
func (s *assignmentService) ResolveCode(ctx context.Context, code string, projectID *int64, templateID *int64) (*ResolvedAssignment, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperrors.NewValidation("code", apperrors.CodeInvalidInput, "code must not be empty")
	}

	var (
		assignment *models.Assignment
		enumerator *models.Enumerator
		project    *models.Project
	)

	if parsed, err := codes.Parse(code); err == nil {
		assignment, err = s.assignments.GetByCodeFull(ctx, strings.ToUpper(code))
		if err != nil {
			return nil, err
		}
		project, err = s.projects.Get(ctx, assignment.ProjectID)
		if err != nil {
			return nil, err
		}
		// A code that decodes to an existing row but fails its checksum is
		// treated as unknown, not as a hint about what exists.
		if !codes.Verify(s.codeKey, parsed, assignment.ProjectID, assignment.EnumeratorID) {
			return nil, apperrors.ErrNotFound
		}
		enumerator, err = s.enumerators.Get(ctx, assignment.EnumeratorID)
		if err != nil {
			return nil, err
		}
	} else {
		if projectID == nil {
			return nil, apperrors.NewValidation("project_id", apperrors.CodeInvalidInput, "project_id is required for bare enumerator codes")
		}
		var err error
		enumerator, err = s.enumerators.GetByCode(ctx, *projectID, code)
		if err != nil {
			return nil, err
		}
		if !enumerator.IsActive() {
			return nil, apperrors.ErrEnumeratorInactive
		}
		assignment, err = s.assignments.FindOpenForEnumerator(ctx, enumerator.ID, templateID)
		if err != nil {
			return nil, err
		}
		project, err = s.projects.Get(ctx, assignment.ProjectID)
		if err != nil {
			return nil, err
		}
	}

	if !enumerator.IsActive() {
		return nil, apperrors.ErrEnumeratorInactive
	}
	if !assignment.IsActive {
		return nil, apperrors.ErrAssignmentInactive
	}
	if templateID != nil && assignment.TemplateID != nil && *assignment.TemplateID != *templateID {
		return nil, apperrors.ErrAssignmentMismatch
	}

	resolved := &ResolvedAssignment{
		Enumerator: enumerator,
		Assignment: assignment,
		Project:    project,
	}
	if assignment.CoverageNodeID != nil {
		node, err := s.coverage.GetNode(ctx, *assignment.CoverageNodeID)
		if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
		if node != nil {
			resolved.CoverageLabel = node.Name
		}
	}

	extraNodes, err := s.assignments.ListCoverageNodeIDs(ctx, assignment.ID)
	if err != nil {
		return nil, err
	}
	resolved.ExtraCoverageNodeIDs = extraNodes

	facilities, err := s.assignments.ListFacilities(ctx, assignment.ID)
	if err != nil {
		return nil, err
	}
	resolved.Facilities = facilities

	progress, err := s.assignments.Progress(ctx, assignment.ID)
	if err != nil {
		return nil, err
	}
	resolved.Progress = progress

	return resolved, nil
}

func (s *assignmentService) ListByProject(ctx context.Context, projectID int64) ([]models.Assignment, error) {
	return s.assignments.ListByProject(ctx, projectID)
}

// AddFacilities extends an assignment's ledger, creating named facilities in
// the shared directory as needed. Idempotent.
func (s *assignmentService) AddFacilities(ctx context.Context, assignmentID int64, facilityIDs []int64, facilityNames []string) error {
	if _, err := s.assignments.Get(ctx, assignmentID); err != nil {
		return err
	}

	ids := append([]int64{}, facilityIDs...)
	for _, name := range facilityNames {
		facility, err := s.facilities.GetOrCreateByName(ctx, name)
		if err != nil {
			return err
		}
		ids = append(ids, facility.ID)
	}
	if len(ids) == 0 {
		return nil
	}

	if err := s.assignments.AddFacilities(ctx, assignmentID, ids); err != nil {
		return err
	}
	s.audit.Record(ctx, models.AuditAssignmentChanged, "assignment", assignmentID, map[string]any{
		"facilities_added": len(ids),
	})
	return nil
}

func (s *assignmentService) ListFacilities(ctx context.Context, assignmentID int64) ([]models.AssignmentFacility, error) {
	return s.assignments.ListFacilities(ctx, assignmentID)
}

func (s *assignmentService) Progress(ctx context.Context, assignmentID int64) (*models.AssignmentProgress, error) {
	return s.assignments.Progress(ctx, assignmentID)
}

func (s *assignmentService) SetActive(ctx context.Context, assignmentID int64, active bool) error {
	if err := s.assignments.SetActive(ctx, assignmentID, active); err != nil {
		return err
	}
	s.audit.Record(ctx, models.AuditAssignmentChanged, "assignment", assignmentID, map[string]any{
		"is_active": active,
	})
	return nil
}
