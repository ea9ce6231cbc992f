package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/openfield-hq/openfield-engine/pkg/middleware"
	"github.com/openfield-hq/openfield-engine/pkg/services"
)

type createProjectRequest struct {
	Name                    string `json:"name"`
	Description             string `json:"description,omitempty"`
	AssignmentMode          string `json:"assignment_mode,omitempty"`
	AllowUnlistedFacilities bool   `json:"allow_unlisted_facilities,omitempty"`
	CoverageSchemeID        *int64 `json:"coverage_scheme_id,omitempty"`
}

type createEnumeratorRequest struct {
	ProjectID int64  `json:"project_id"`
	Name      string `json:"name"`
	Code      string `json:"code"`
	Phone     string `json:"phone,omitempty"`
	Email     string `json:"email,omitempty"`
}

type facilityRequest struct {
	Name string `json:"name"`
}

// DirectoryHandler handles project, enumerator and facility directory requests.
type DirectoryHandler struct {
	directoryService services.DirectoryService
	logger           *zap.Logger
}

// NewDirectoryHandler creates a new directory handler.
func NewDirectoryHandler(directoryService services.DirectoryService, logger *zap.Logger) *DirectoryHandler {
	return &DirectoryHandler{
		directoryService: directoryService,
		logger:           logger,
	}
}

// RegisterRoutes registers the directory handler's routes on the given mux.
func (h *DirectoryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/projects", middleware.RequireSupervisor(h.CreateProject))
	mux.HandleFunc("GET /api/projects", h.ListProjects)
	mux.HandleFunc("GET /api/projects/{id}", h.GetProject)
	mux.HandleFunc("DELETE /api/projects/{id}", middleware.RequireSupervisor(h.DeleteProject))

	mux.HandleFunc("POST /api/enumerators", middleware.RequireSupervisor(h.CreateEnumerator))
	mux.HandleFunc("GET /api/projects/{id}/enumerators", middleware.RequireSupervisor(h.ListEnumerators))
	mux.HandleFunc("POST /api/enumerators/{id}/archive", middleware.RequireSupervisor(h.ArchiveEnumerator))

	mux.HandleFunc("POST /api/facilities", h.GetOrCreateFacility)
	mux.HandleFunc("GET /api/facilities", h.ListFacilities)
}

// CreateProject handles POST /api/projects.
func (h *DirectoryHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ErrorResponse(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON"))
		return
	}

	project, err := h.directoryService.CreateProject(r.Context(), services.CreateProjectInput{
		Name:                    req.Name,
		Description:             req.Description,
		AssignmentMode:          req.AssignmentMode,
		AllowUnlistedFacilities: req.AllowUnlistedFacilities,
		CoverageSchemeID:        req.CoverageSchemeID,
	})
	if err != nil {
		h.writeError(WriteDomainError(w, err))
		return
	}
	h.writeError(WriteJSON(w, http.StatusCreated, project))
}

// GetProject handles GET /api/projects/{id}.
func (h *DirectoryHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	project, err := h.directoryService.GetProject(r.Context(), id)
	if err != nil {
		h.writeError(WriteDomainError(w, err))
		return
	}
	h.writeError(WriteJSON(w, http.StatusOK, project))
}

// DeleteProject handles DELETE /api/projects/{id}.
func (h *DirectoryHandler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.directoryService.DeleteProject(r.Context(), id); err != nil {
		h.writeError(WriteDomainError(w, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListProjects handles GET /api/projects.
func (h *DirectoryHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.directoryService.ListProjects(r.Context())
	if err != nil {
		h.writeError(WriteDomainError(w, err))
		return
	}
	h.writeError(WriteJSON(w, http.StatusOK, map[string]any{"projects": projects}))
}

// CreateEnumerator handles POST /api/enumerators.
func (h *DirectoryHandler) CreateEnumerator(w http.ResponseWriter, r *http.Request) {
	var req createEnumeratorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ErrorResponse(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON"))
		return
	}

	enumerator, err := h.directoryService.CreateEnumerator(r.Context(), services.CreateEnumeratorInput{
		ProjectID: req.ProjectID,
		Name:      req.Name,
		Code:      req.Code,
		Phone:     req.Phone,
		Email:     req.Email,
	})
	if err != nil {
		h.writeError(WriteDomainError(w, err))
		return
	}
	h.writeError(WriteJSON(w, http.StatusCreated, enumerator))
}

// ListEnumerators handles GET /api/projects/{id}/enumerators.
func (h *DirectoryHandler) ListEnumerators(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	enumerators, err := h.directoryService.ListEnumerators(r.Context(), projectID)
	if err != nil {
		h.writeError(WriteDomainError(w, err))
		return
	}
	h.writeError(WriteJSON(w, http.StatusOK, map[string]any{"enumerators": enumerators}))
}

// ArchiveEnumerator handles POST /api/enumerators/{id}/archive.
func (h *DirectoryHandler) ArchiveEnumerator(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.directoryService.ArchiveEnumerator(r.Context(), id); err != nil {
		h.writeError(WriteDomainError(w, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetOrCreateFacility handles POST /api/facilities. Creation is idempotent on
// the case-insensitive name, so devices can post their local directory freely.
func (h *DirectoryHandler) GetOrCreateFacility(w http.ResponseWriter, r *http.Request) {
	var req facilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ErrorResponse(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON"))
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		h.writeError(ErrorResponse(w, http.StatusBadRequest, "invalid_name", "name must not be empty"))
		return
	}

	facility, err := h.directoryService.GetOrCreateFacility(r.Context(), req.Name)
	if err != nil {
		h.writeError(WriteDomainError(w, err))
		return
	}
	h.writeError(WriteJSON(w, http.StatusOK, facility))
}

// ListFacilities handles GET /api/facilities.
func (h *DirectoryHandler) ListFacilities(w http.ResponseWriter, r *http.Request) {
	facilities, err := h.directoryService.ListFacilities(r.Context())
	if err != nil {
		h.writeError(WriteDomainError(w, err))
		return
	}
	h.writeError(WriteJSON(w, http.StatusOK, map[string]any{"facilities": facilities}))
}

func (h *DirectoryHandler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(ErrorResponse(w, http.StatusBadRequest, "invalid_id", "id must be a positive integer"))
		return 0, false
	}
	return id, true
}

func (h *DirectoryHandler) writeError(err error) {
	if err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
