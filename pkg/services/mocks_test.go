package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/openfield-hq/openfield-engine/pkg/database"
	"github.com/openfield-hq/openfield-engine/pkg/models"
	"github.com/openfield-hq/openfield-engine/pkg/repositories"
)

// Hand-written mocks. Each embeds its interface so unstubbed calls panic,
// which surfaces unexpected repository traffic in a failing test.

type mockTxRunner struct{}

func (mockTxRunner) WithinTx(ctx context.Context, fn func(q database.Querier) error) error {
	return fn(nil)
}

type mockAudit struct {
	events []string
}

func (m *mockAudit) Record(ctx context.Context, action, entityType string, entityID int64, metadata map[string]any) {
	m.events = append(m.events, action)
}

func (m *mockAudit) GetByEntity(ctx context.Context, entityType string, entityID int64) ([]models.AuditEvent, error) {
	return nil, nil
}

type mockProjectRepo struct {
	repositories.ProjectRepository
	getFn        func(ctx context.Context, id int64) (*models.Project, error)
	createFn     func(ctx context.Context, project *models.Project) error
	getByTagFn   func(ctx context.Context, tag string) (*models.Project, error)
	softDeleteFn func(ctx context.Context, id int64) error
}

func (m *mockProjectRepo) Get(ctx context.Context, id int64) (*models.Project, error) {
	return m.getFn(ctx, id)
}

func (m *mockProjectRepo) Create(ctx context.Context, project *models.Project) error {
	return m.createFn(ctx, project)
}

func (m *mockProjectRepo) GetByTag(ctx context.Context, tag string) (*models.Project, error) {
	return m.getByTagFn(ctx, tag)
}

func (m *mockProjectRepo) SoftDelete(ctx context.Context, id int64) error {
	return m.softDeleteFn(ctx, id)
}

type mockTemplateRepo struct {
	repositories.TemplateRepository
	getFn           func(ctx context.Context, id int64) (*models.Template, error)
	listQuestionsFn func(ctx context.Context, templateID int64) ([]models.TemplateQuestion, error)
}

func (m *mockTemplateRepo) Get(ctx context.Context, id int64) (*models.Template, error) {
	return m.getFn(ctx, id)
}

func (m *mockTemplateRepo) ListQuestions(ctx context.Context, templateID int64) ([]models.TemplateQuestion, error) {
	return m.listQuestionsFn(ctx, templateID)
}

type mockEnumeratorRepo struct {
	repositories.EnumeratorRepository
	getFn       func(ctx context.Context, id int64) (*models.Enumerator, error)
	getByCodeFn func(ctx context.Context, projectID int64, code string) (*models.Enumerator, error)
	createFn    func(ctx context.Context, enumerator *models.Enumerator) error
}

func (m *mockEnumeratorRepo) Create(ctx context.Context, enumerator *models.Enumerator) error {
	return m.createFn(ctx, enumerator)
}

func (m *mockEnumeratorRepo) Get(ctx context.Context, id int64) (*models.Enumerator, error) {
	return m.getFn(ctx, id)
}

func (m *mockEnumeratorRepo) GetByCode(ctx context.Context, projectID int64, code string) (*models.Enumerator, error) {
	return m.getByCodeFn(ctx, projectID, code)
}

type mockFacilityRepo struct {
	repositories.FacilityRepository
	getFn             func(ctx context.Context, id int64) (*models.Facility, error)
	getOrCreateByName func(ctx context.Context, name string) (*models.Facility, error)
}

func (m *mockFacilityRepo) Get(ctx context.Context, id int64) (*models.Facility, error) {
	return m.getFn(ctx, id)
}

func (m *mockFacilityRepo) GetOrCreateByName(ctx context.Context, name string) (*models.Facility, error) {
	return m.getOrCreateByName(ctx, name)
}

type mockAssignmentRepo struct {
	repositories.AssignmentRepository
	getFn                   func(ctx context.Context, id int64) (*models.Assignment, error)
	getByCodeFullFn         func(ctx context.Context, codeFull string) (*models.Assignment, error)
	findOpenFn              func(ctx context.Context, enumeratorID int64, templateID *int64) (*models.Assignment, error)
	countFacilitiesFn       func(ctx context.Context, assignmentID int64) (int, error)
	hasFacilityFn           func(ctx context.Context, assignmentID, facilityID int64) (bool, error)
	markFacilityDoneFn      func(ctx context.Context, assignmentID, facilityID, surveyID int64) error
	revertFacilityFn        func(ctx context.Context, assignmentID, facilityID, surveyID int64) error
	createFn                func(ctx context.Context, assignment *models.Assignment) error
	nextSerialFn            func(ctx context.Context, projectID int64) (int, error)
	addFacilitiesFn         func(ctx context.Context, assignmentID int64, facilityIDs []int64) error
	addCoverageNodesFn      func(ctx context.Context, assignmentID int64, nodeIDs []int64) error
	listFacilitiesFn        func(ctx context.Context, assignmentID int64) ([]models.AssignmentFacility, error)
	listCoverageNodeIDsFn   func(ctx context.Context, assignmentID int64) ([]int64, error)
	progressFn              func(ctx context.Context, assignmentID int64) (*models.AssignmentProgress, error)
}

func (m *mockAssignmentRepo) Get(ctx context.Context, id int64) (*models.Assignment, error) {
	return m.getFn(ctx, id)
}

func (m *mockAssignmentRepo) GetByCodeFull(ctx context.Context, codeFull string) (*models.Assignment, error) {
	return m.getByCodeFullFn(ctx, codeFull)
}

func (m *mockAssignmentRepo) FindOpenForEnumerator(ctx context.Context, enumeratorID int64, templateID *int64) (*models.Assignment, error) {
	return m.findOpenFn(ctx, enumeratorID, templateID)
}

func (m *mockAssignmentRepo) CountFacilities(ctx context.Context, assignmentID int64) (int, error) {
	return m.countFacilitiesFn(ctx, assignmentID)
}

func (m *mockAssignmentRepo) HasFacility(ctx context.Context, assignmentID, facilityID int64) (bool, error) {
	return m.hasFacilityFn(ctx, assignmentID, facilityID)
}

func (m *mockAssignmentRepo) MarkFacilityDone(ctx context.Context, assignmentID, facilityID, surveyID int64) error {
	return m.markFacilityDoneFn(ctx, assignmentID, facilityID, surveyID)
}

func (m *mockAssignmentRepo) RevertFacilityIfMatches(ctx context.Context, assignmentID, facilityID, surveyID int64) error {
	return m.revertFacilityFn(ctx, assignmentID, facilityID, surveyID)
}

func (m *mockAssignmentRepo) Create(ctx context.Context, assignment *models.Assignment) error {
	return m.createFn(ctx, assignment)
}

func (m *mockAssignmentRepo) NextSerial(ctx context.Context, projectID int64) (int, error) {
	return m.nextSerialFn(ctx, projectID)
}

func (m *mockAssignmentRepo) AddFacilities(ctx context.Context, assignmentID int64, facilityIDs []int64) error {
	return m.addFacilitiesFn(ctx, assignmentID, facilityIDs)
}

func (m *mockAssignmentRepo) AddCoverageNodes(ctx context.Context, assignmentID int64, nodeIDs []int64) error {
	return m.addCoverageNodesFn(ctx, assignmentID, nodeIDs)
}

func (m *mockAssignmentRepo) ListFacilities(ctx context.Context, assignmentID int64) ([]models.AssignmentFacility, error) {
	return m.listFacilitiesFn(ctx, assignmentID)
}

func (m *mockAssignmentRepo) ListCoverageNodeIDs(ctx context.Context, assignmentID int64) ([]int64, error) {
	return m.listCoverageNodeIDsFn(ctx, assignmentID)
}

func (m *mockAssignmentRepo) Progress(ctx context.Context, assignmentID int64) (*models.AssignmentProgress, error) {
	return m.progressFn(ctx, assignmentID)
}

type mockSubmissionRepo struct {
	repositories.SubmissionRepository
	createFn            func(ctx context.Context, submission *models.Submission) error
	getFn               func(ctx context.Context, id int64) (*models.Submission, error)
	getByClientUUIDFn   func(ctx context.Context, clientUUID uuid.UUID) (*models.Submission, error)
	updateFn            func(ctx context.Context, submission *models.Submission) error
	replaceAnswersFn    func(ctx context.Context, submissionID int64, answers []models.Answer) error
	existsFacilityDayFn func(ctx context.Context, facilityID int64, enumeratorName string, day time.Time, excludeID int64) (bool, error)
	softDeleteFn        func(ctx context.Context, id int64) error
}

func (m *mockSubmissionRepo) Create(ctx context.Context, submission *models.Submission) error {
	return m.createFn(ctx, submission)
}

func (m *mockSubmissionRepo) Get(ctx context.Context, id int64) (*models.Submission, error) {
	return m.getFn(ctx, id)
}

func (m *mockSubmissionRepo) GetByClientUUID(ctx context.Context, clientUUID uuid.UUID) (*models.Submission, error) {
	return m.getByClientUUIDFn(ctx, clientUUID)
}

func (m *mockSubmissionRepo) Update(ctx context.Context, submission *models.Submission) error {
	return m.updateFn(ctx, submission)
}

func (m *mockSubmissionRepo) ReplaceAnswers(ctx context.Context, submissionID int64, answers []models.Answer) error {
	return m.replaceAnswersFn(ctx, submissionID, answers)
}

func (m *mockSubmissionRepo) ExistsForFacilityDay(ctx context.Context, facilityID int64, enumeratorName string, day time.Time, excludeID int64) (bool, error) {
	return m.existsFacilityDayFn(ctx, facilityID, enumeratorName, day, excludeID)
}

func (m *mockSubmissionRepo) SoftDelete(ctx context.Context, id int64) error {
	return m.softDeleteFn(ctx, id)
}

type mockCoverageRepo struct {
	repositories.CoverageRepository
	createSchemeFn    func(ctx context.Context, scheme *models.CoverageScheme) error
	getSchemeFn       func(ctx context.Context, id int64) (*models.CoverageScheme, error)
	createNodeFn      func(ctx context.Context, node *models.CoverageNode) error
	getNodeFn         func(ctx context.Context, id int64) (*models.CoverageNode, error)
	updateNodeFn      func(ctx context.Context, node *models.CoverageNode) error
	reindexSubtreeFn  func(ctx context.Context, rootID int64, rootLevel int) error
	deleteNodeFn      func(ctx context.Context, id int64) error
	hasChildrenFn     func(ctx context.Context, id int64) (bool, error)
	countReferencesFn func(ctx context.Context, id int64) (int, error)
}

func (m *mockCoverageRepo) CreateScheme(ctx context.Context, scheme *models.CoverageScheme) error {
	return m.createSchemeFn(ctx, scheme)
}

func (m *mockCoverageRepo) GetScheme(ctx context.Context, id int64) (*models.CoverageScheme, error) {
	return m.getSchemeFn(ctx, id)
}

func (m *mockCoverageRepo) CreateNode(ctx context.Context, node *models.CoverageNode) error {
	return m.createNodeFn(ctx, node)
}

func (m *mockCoverageRepo) GetNode(ctx context.Context, id int64) (*models.CoverageNode, error) {
	return m.getNodeFn(ctx, id)
}

func (m *mockCoverageRepo) UpdateNode(ctx context.Context, node *models.CoverageNode) error {
	return m.updateNodeFn(ctx, node)
}

func (m *mockCoverageRepo) ReindexSubtree(ctx context.Context, rootID int64, rootLevel int) error {
	return m.reindexSubtreeFn(ctx, rootID, rootLevel)
}

func (m *mockCoverageRepo) DeleteNode(ctx context.Context, id int64) error {
	return m.deleteNodeFn(ctx, id)
}

func (m *mockCoverageRepo) HasChildren(ctx context.Context, id int64) (bool, error) {
	return m.hasChildrenFn(ctx, id)
}

func (m *mockCoverageRepo) CountReferences(ctx context.Context, id int64) (int, error) {
	return m.countReferencesFn(ctx, id)
}
