package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/openfield-hq/openfield-engine/pkg/middleware"
	"github.com/openfield-hq/openfield-engine/pkg/services"
)

type createAssignmentRequest struct {
	ProjectID             int64    `json:"project_id"`
	EnumeratorID          int64    `json:"enumerator_id"`
	SupervisorID          *int64   `json:"supervisor_id,omitempty"`
	TemplateID            *int64   `json:"template_id,omitempty"`
	CoverageNodeID        *int64   `json:"coverage_node_id,omitempty"`
	ExtraCoverageNodeIDs  []int64  `json:"extra_coverage_node_ids,omitempty"`
	TargetFacilitiesCount *int     `json:"target_facilities_count,omitempty"`
	FacilityIDs           []int64  `json:"facility_ids,omitempty"`
	FacilityNames         []string `json:"facility_names,omitempty"`
}

type addFacilitiesRequest struct {
	FacilityIDs   []int64  `json:"facility_ids,omitempty"`
	FacilityNames []string `json:"facility_names,omitempty"`
}

// AssignmentsHandler handles assignment registry HTTP requests.
type AssignmentsHandler struct {
	assignmentService services.AssignmentService
	logger            *zap.Logger
}

// NewAssignmentsHandler creates a new assignments handler.
func NewAssignmentsHandler(assignmentService services.AssignmentService, logger *zap.Logger) *AssignmentsHandler {
	return &AssignmentsHandler{
		assignmentService: assignmentService,
		logger:            logger,
	}
}

// RegisterRoutes registers the assignments handler's routes on the given mux.
func (h *AssignmentsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/assignments/resolve", h.Resolve)
	mux.HandleFunc("POST /api/assignments", middleware.RequireSupervisor(h.Create))
	mux.HandleFunc("GET /api/projects/{id}/assignments", middleware.RequireSupervisor(h.ListByProject))
	mux.HandleFunc("GET /api/assignments/{id}/facilities", h.ListFacilities)
	mux.HandleFunc("POST /api/assignments/{id}/facilities", middleware.RequireSupervisor(h.AddFacilities))
	mux.HandleFunc("GET /api/assignments/{id}/progress", h.Progress)
	mux.HandleFunc("POST /api/assignments/{id}/deactivate", middleware.RequireSupervisor(h.Deactivate))
	mux.HandleFunc("POST /api/assignments/{id}/activate", middleware.RequireSupervisor(h.Activate))
}

// Resolve handles GET /api/assignments/resolve?code=...&project_id=...&template_id=...
// This is the endpoint a field device calls to discover its assignment and
// facility checklist without prior login.
func (h *AssignmentsHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")

	var projectID, templateID *int64
	if raw := r.URL.Query().Get("project_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			h.writeError(ErrorResponse(w, http.StatusBadRequest, "invalid_project_id", "project_id must be an integer"))
			return
		}
		projectID = &parsed
	}
	if raw := r.URL.Query().Get("template_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			h.writeError(ErrorResponse(w, http.StatusBadRequest, "invalid_template_id", "template_id must be an integer"))
			return
		}
		templateID = &parsed
	}

	resolved, err := h.assignmentService.ResolveCode(r.Context(), code, projectID, templateID)
	if err != nil {
		h.writeError(WriteDomainError(w, err))
		return
	}
	h.writeError(WriteJSON(w, http.StatusOK, resolved))
}

// Create handles POST /api/assignments.
func (h *AssignmentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAssignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ErrorResponse(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON"))
		return
	}

	assignment, err := h.assignmentService.CreateAssignment(r.Context(), services.CreateAssignmentInput{
		ProjectID:             req.ProjectID,
		EnumeratorID:          req.EnumeratorID,
		SupervisorID:          req.SupervisorID,
		TemplateID:            req.TemplateID,
		CoverageNodeID:        req.CoverageNodeID,
		ExtraCoverageNodeIDs:  req.ExtraCoverageNodeIDs,
		TargetFacilitiesCount: req.TargetFacilitiesCount,
		FacilityIDs:           req.FacilityIDs,
		FacilityNames:         req.FacilityNames,
	})
	if err != nil {
		h.writeError(WriteDomainError(w, err))
		return
	}
	h.writeError(WriteJSON(w, http.StatusCreated, assignment))
}

// ListByProject handles GET /api/projects/{id}/assignments.
func (h *AssignmentsHandler) ListByProject(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	assignments, err := h.assignmentService.ListByProject(r.Context(), id)
	if err != nil {
		h.writeError(WriteDomainError(w, err))
		return
	}
	h.writeError(WriteJSON(w, http.StatusOK, map[string]any{"assignments": assignments}))
}

// ListFacilities handles GET /api/assignments/{id}/facilities.
func (h *AssignmentsHandler) ListFacilities(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	facilities, err := h.assignmentService.ListFacilities(r.Context(), id)
	if err != nil {
		h.writeError(WriteDomainError(w, err))
		return
	}
	h.writeError(WriteJSON(w, http.StatusOK, map[string]any{"facilities": facilities}))
}

// AddFacilities handles POST /api/assignments/{id}/facilities.
func (h *AssignmentsHandler) AddFacilities(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req addFacilitiesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ErrorResponse(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON"))
		return
	}

	if err := h.assignmentService.AddFacilities(r.Context(), id, req.FacilityIDs, req.FacilityNames); err != nil {
		h.writeError(WriteDomainError(w, err))
		return
	}

	facilities, err := h.assignmentService.ListFacilities(r.Context(), id)
	if err != nil {
		h.writeError(WriteDomainError(w, err))
		return
	}
	h.writeError(WriteJSON(w, http.StatusOK, map[string]any{"facilities": facilities}))
}

// Progress handles GET /api/assignments/{id}/progress.
func (h *AssignmentsHandler) Progress(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	progress, err := h.assignmentService.Progress(r.Context(), id)
	if err != nil {
		h.writeError(WriteDomainError(w, err))
		return
	}
	h.writeError(WriteJSON(w, http.StatusOK, progress))
}

// Deactivate handles POST /api/assignments/{id}/deactivate.
func (h *AssignmentsHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

// Activate handles POST /api/assignments/{id}/activate.
func (h *AssignmentsHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *AssignmentsHandler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.assignmentService.SetActive(r.Context(), id, active); err != nil {
		h.writeError(WriteDomainError(w, err))
		return
	}
	h.writeError(WriteJSON(w, http.StatusOK, map[string]bool{"is_active": active}))
}

func (h *AssignmentsHandler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(ErrorResponse(w, http.StatusBadRequest, "invalid_id", "id must be a positive integer"))
		return 0, false
	}
	return id, true
}

func (h *AssignmentsHandler) writeError(err error) {
	if err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
