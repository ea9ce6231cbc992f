package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/openfield-hq/openfield-engine/pkg/apperrors"
	"github.com/openfield-hq/openfield-engine/pkg/codes"
	"github.com/openfield-hq/openfield-engine/pkg/models"
	"github.com/openfield-hq/openfield-engine/pkg/repositories"
)

// CreateProjectInput describes a new field operation.
type CreateProjectInput struct {
	Name                    string
	Description             string
	AssignmentMode          string
	AllowUnlistedFacilities bool
	CoverageSchemeID        *int64
}

// CreateEnumeratorInput describes a new field worker.
type CreateEnumeratorInput struct {
	ProjectID int64
	Name      string
	Code      string
	Phone     string
	Email     string
}

// DirectoryService manages the registry entities around intake: projects,
// enumerators and the shared facility directory.
type DirectoryService interface {
	CreateProject(ctx context.Context, input CreateProjectInput) (*models.Project, error)
	GetProject(ctx context.Context, id int64) (*models.Project, error)
	ListProjects(ctx context.Context) ([]models.Project, error)
	DeleteProject(ctx context.Context, id int64) error

	CreateEnumerator(ctx context.Context, input CreateEnumeratorInput) (*models.Enumerator, error)
	ListEnumerators(ctx context.Context, projectID int64) ([]models.Enumerator, error)
	ArchiveEnumerator(ctx context.Context, id int64) error

	GetOrCreateFacility(ctx context.Context, name string) (*models.Facility, error)
	ListFacilities(ctx context.Context) ([]models.Facility, error)
}

type directoryService struct {
	projects    repositories.ProjectRepository
	enumerators repositories.EnumeratorRepository
	facilities  repositories.FacilityRepository
	logger      *zap.Logger
}

// NewDirectoryService creates a new DirectoryService.
func NewDirectoryService(
	projects repositories.ProjectRepository,
	enumerators repositories.EnumeratorRepository,
	facilities repositories.FacilityRepository,
	logger *zap.Logger,
) DirectoryService {
	return &directoryService{
		projects:    projects,
		enumerators: enumerators,
		facilities:  facilities,
		logger:      logger.Named("directory-service"),
	}
}

var _ DirectoryService = (*directoryService)(nil)

func (s *directoryService) CreateProject(ctx context.Context, input CreateProjectInput) (*models.Project, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewValidation("name", apperrors.CodeInvalidInput, "project name must not be empty")
	}
	mode := input.AssignmentMode
	if mode == "" {
		mode = models.AssignmentModeOptional
	}
	switch mode {
	case models.AssignmentModeOptional, models.AssignmentModeRequiredPerProject, models.AssignmentModeRequiredPerTemplate:
	default:
		return nil, apperrors.NewValidation("assignment_mode", apperrors.CodeInvalidInput, "unknown assignment mode")
	}

	project := &models.Project{
		Name:                    name,
		Description:             input.Description,
		ProjectTag:              codes.ProjectTag(name),
		Status:                  models.ProjectStatusActive,
		AssignmentMode:          mode,
		AllowUnlistedFacilities: input.AllowUnlistedFacilities,
		CoverageSchemeID:        input.CoverageSchemeID,
	}
	if err := s.projects.Create(ctx, project); err != nil {
		return nil, err
	}
	s.logger.Info("Created project",
		zap.Int64("project_id", project.ID),
		zap.String("project_tag", project.ProjectTag))
	return project, nil
}

func (s *directoryService) GetProject(ctx context.Context, id int64) (*models.Project, error) {
	return s.projects.Get(ctx, id)
}

func (s *directoryService) ListProjects(ctx context.Context) ([]models.Project, error) {
	return s.projects.List(ctx)
}

// DeleteProject retires a project. The row is kept for attribution of
// existing submissions; it only disappears from listings and resolution.
func (s *directoryService) DeleteProject(ctx context.Context, id int64) error {
	if _, err := s.projects.Get(ctx, id); err != nil {
		return err
	}
	if err := s.projects.SoftDelete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Deleted project", zap.Int64("project_id", id))
	return nil
}

func (s *directoryService) CreateEnumerator(ctx context.Context, input CreateEnumeratorInput) (*models.Enumerator, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewValidation("name", apperrors.CodeInvalidInput, "enumerator name must not be empty")
	}
	code := strings.ToUpper(strings.TrimSpace(input.Code))
	// An enumerator label shaped like a full access code would shadow the
	// checksum path during code resolution.
	if codes.IsFullCode(code) {
		return nil, apperrors.NewValidation("code", apperrors.CodeInvalidInput, "enumerator code must not have the shape of an assignment access code")
	}
	if _, err := s.projects.Get(ctx, input.ProjectID); err != nil {
		return nil, err
	}

	enumerator := &models.Enumerator{
		ProjectID: &input.ProjectID,
		Name:      name,
		Code:      code,
		Phone:     input.Phone,
		Email:     input.Email,
		Status:    models.EnumeratorStatusActive,
	}
	if err := s.enumerators.Create(ctx, enumerator); err != nil {
		return nil, err
	}
	return enumerator, nil
}

func (s *directoryService) ListEnumerators(ctx context.Context, projectID int64) ([]models.Enumerator, error) {
	return s.enumerators.ListByProject(ctx, projectID)
}

// ArchiveEnumerator makes an enumerator unresolvable for new submissions.
// Historical submissions keep their attribution.
func (s *directoryService) ArchiveEnumerator(ctx context.Context, id int64) error {
	if _, err := s.enumerators.Get(ctx, id); err != nil {
		return err
	}
	return s.enumerators.SetStatus(ctx, id, models.EnumeratorStatusArchived)
}

func (s *directoryService) GetOrCreateFacility(ctx context.Context, name string) (*models.Facility, error) {
	return s.facilities.GetOrCreateByName(ctx, name)
}

func (s *directoryService) ListFacilities(ctx context.Context) ([]models.Facility, error) {
	return s.facilities.List(ctx)
}
