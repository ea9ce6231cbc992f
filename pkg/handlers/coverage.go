package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/openfield-hq/openfield-engine/pkg/middleware"
	"github.com/openfield-hq/openfield-engine/pkg/services"
)

type createSchemeRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type createNodeRequest struct {
	Name     string `json:"name"`
	ParentID *int64 `json:"parent_id,omitempty"`
}

type updateNodeRequest struct {
	Name     *string `json:"name,omitempty"`
	ParentID *int64  `json:"parent_id"`
	Reparent bool    `json:"reparent,omitempty"`
}

// CoverageHandler handles coverage scheme and node HTTP requests.
type CoverageHandler struct {
	coverageService services.CoverageService
	logger          *zap.Logger
}

// NewCoverageHandler creates a new coverage handler.
func NewCoverageHandler(coverageService services.CoverageService, logger *zap.Logger) *CoverageHandler {
	return &CoverageHandler{
		coverageService: coverageService,
		logger:          logger,
	}
}

// RegisterRoutes registers the coverage handler's routes on the given mux.
func (h *CoverageHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/coverage/schemes", middleware.RequireSupervisor(h.CreateScheme))
	mux.HandleFunc("GET /api/coverage/schemes", h.ListSchemes)
	mux.HandleFunc("POST /api/coverage/schemes/{id}/nodes", middleware.RequireSupervisor(h.CreateNode))
	mux.HandleFunc("GET /api/coverage/schemes/{id}/nodes", h.ListNodes)
	mux.HandleFunc("PUT /api/coverage/nodes/{id}", middleware.RequireSupervisor(h.UpdateNode))
	mux.HandleFunc("DELETE /api/coverage/nodes/{id}", middleware.RequireSupervisor(h.DeleteNode))
}

// CreateScheme handles POST /api/coverage/schemes.
func (h *CoverageHandler) CreateScheme(w http.ResponseWriter, r *http.Request) {
	var req createSchemeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ErrorResponse(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON"))
		return
	}

	scheme, err := h.coverageService.CreateScheme(r.Context(), req.Name, req.Description)
	if err != nil {
		h.writeError(WriteDomainError(w, err))
		return
	}
	h.writeError(WriteJSON(w, http.StatusCreated, scheme))
}

// ListSchemes handles GET /api/coverage/schemes.
func (h *CoverageHandler) ListSchemes(w http.ResponseWriter, r *http.Request) {
	schemes, err := h.coverageService.ListSchemes(r.Context())
	if err != nil {
		h.writeError(WriteDomainError(w, err))
		return
	}
	h.writeError(WriteJSON(w, http.StatusOK, map[string]any{"schemes": schemes}))
}

// CreateNode handles POST /api/coverage/schemes/{id}/nodes.
func (h *CoverageHandler) CreateNode(w http.ResponseWriter, r *http.Request) {
	schemeID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req createNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ErrorResponse(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON"))
		return
	}

	node, err := h.coverageService.CreateNode(r.Context(), schemeID, req.Name, req.ParentID)
	if err != nil {
		h.writeError(WriteDomainError(w, err))
		return
	}
	h.writeError(WriteJSON(w, http.StatusCreated, node))
}

// ListNodes handles GET /api/coverage/schemes/{id}/nodes.
func (h *CoverageHandler) ListNodes(w http.ResponseWriter, r *http.Request) {
	schemeID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	nodes, err := h.coverageService.ListNodes(r.Context(), schemeID)
	if err != nil {
		h.writeError(WriteDomainError(w, err))
		return
	}
	h.writeError(WriteJSON(w, http.StatusOK, map[string]any{"nodes": nodes}))
}

// UpdateNode handles PUT /api/coverage/nodes/{id}. A rename and a reparent can
// be combined in one call; reparenting to the root is expressed with
// reparent=true and a null parent_id.
func (h *CoverageHandler) UpdateNode(w http.ResponseWriter, r *http.Request) {
	nodeID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req updateNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ErrorResponse(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON"))
		return
	}

	node, err := h.coverageService.UpdateNode(r.Context(), nodeID, services.UpdateNodeInput{
		Name:     req.Name,
		ParentID: req.ParentID,
		Reparent: req.Reparent,
	})
	if err != nil {
		h.writeError(WriteDomainError(w, err))
		return
	}
	h.writeError(WriteJSON(w, http.StatusOK, node))
}

// DeleteNode handles DELETE /api/coverage/nodes/{id}.
func (h *CoverageHandler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	nodeID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.coverageService.DeleteNode(r.Context(), nodeID); err != nil {
		h.writeError(WriteDomainError(w, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CoverageHandler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(ErrorResponse(w, http.StatusBadRequest, "invalid_id", "id must be a positive integer"))
		return 0, false
	}
	return id, true
}

func (h *CoverageHandler) writeError(err error) {
	if err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
