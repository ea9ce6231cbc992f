package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openfield-hq/openfield-engine/pkg/middleware"
	"github.com/openfield-hq/openfield-engine/pkg/models"
	"github.com/openfield-hq/openfield-engine/pkg/services"
)

// submitRequest is the intake payload for create and edit.
type submitRequest struct {
	ProjectID      int64                  `json:"project_id"`
	TemplateID     int64                  `json:"template_id"`
	AssignmentCode string                 `json:"assignment_code,omitempty"`
	AssignmentID   *int64                 `json:"assignment_id,omitempty"`
	EnumeratorName string                 `json:"enumerator_name,omitempty"`
	FacilityID     *int64                 `json:"facility_id,omitempty"`
	FacilityName   string                 `json:"facility_name,omitempty"`
	CoverageNodeID *int64                 `json:"coverage_node_id,omitempty"`
	ClientUUID     *string                `json:"client_uuid,omitempty"`
	Answers        []services.AnswerInput `json:"answers"`
	GPS            *models.GPSFix         `json:"gps,omitempty"`
	Consent        *services.ConsentInput `json:"consent,omitempty"`
	Attestation    *bool                  `json:"attestation_confirmed,omitempty"`
	SyncSource     *string                `json:"sync_source,omitempty"`
}

type reviewRequest struct {
	Status string  `json:"status"`
	Reason *string `json:"reason,omitempty"`
}

// SubmissionsHandler handles submission intake, QA and review HTTP requests.
type SubmissionsHandler struct {
	submissionService services.SubmissionService
	qaService         services.QAService
	auditService      services.AuditService
	logger            *zap.Logger
}

// NewSubmissionsHandler creates a new submissions handler.
func NewSubmissionsHandler(submissionService services.SubmissionService, qaService services.QAService, auditService services.AuditService, logger *zap.Logger) *SubmissionsHandler {
	return &SubmissionsHandler{
		submissionService: submissionService,
		qaService:         qaService,
		auditService:      auditService,
		logger:            logger,
	}
}

// RegisterRoutes registers the submissions handler's routes on the given mux.
func (h *SubmissionsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/submissions", h.Create)
	mux.HandleFunc("PUT /api/submissions/{id}", h.Edit)
	mux.HandleFunc("GET /api/submissions/{id}", h.Get)
	mux.HandleFunc("DELETE /api/submissions/{id}", middleware.RequireSupervisor(h.Delete))
	mux.HandleFunc("GET /api/submissions/{id}/answers", h.GetAnswers)
	mux.HandleFunc("GET /api/submissions/{id}/qa", h.GetQA)
	mux.HandleFunc("GET /api/submissions/{id}/audit", middleware.RequireSupervisor(h.GetAudit))
	mux.HandleFunc("POST /api/submissions/{id}/review", middleware.RequireSupervisor(h.Review))
}

func (h *SubmissionsHandler) decodeSubmit(w http.ResponseWriter, r *http.Request) (*services.SubmitInput, bool) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ErrorResponse(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON"))
		return nil, false
	}

	input := &services.SubmitInput{
		ProjectID:      req.ProjectID,
		TemplateID:     req.TemplateID,
		AssignmentCode: req.AssignmentCode,
		AssignmentID:   req.AssignmentID,
		EnumeratorName: req.EnumeratorName,
		FacilityID:     req.FacilityID,
		FacilityName:   req.FacilityName,
		CoverageNodeID: req.CoverageNodeID,
		Answers:        req.Answers,
		GPS:            req.GPS,
		Consent:        req.Consent,
		Attestation:    req.Attestation,
		SyncSource:     req.SyncSource,
	}
	if req.ClientUUID != nil && *req.ClientUUID != "" {
		parsed, err := uuid.Parse(*req.ClientUUID)
		if err != nil {
			h.writeError(ErrorResponse(w, http.StatusBadRequest, "invalid_client_uuid", "client_uuid must be a valid UUID"))
			return nil, false
		}
		input.ClientUUID = &parsed
	}
	return input, true
}

// Create handles POST /api/submissions.
func (h *SubmissionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decodeSubmit(w, r)
	if !ok {
		return
	}

	submission, err := h.submissionService.Submit(r.Context(), *input)
	if err != nil {
		h.writeError(WriteDomainError(w, err))
		return
	}
	h.writeError(WriteJSON(w, http.StatusCreated, submission))
}

// Edit handles PUT /api/submissions/{id}.
func (h *SubmissionsHandler) Edit(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	input, ok := h.decodeSubmit(w, r)
	if !ok {
		return
	}

	submission, err := h.submissionService.Edit(r.Context(), id, *input)
	if err != nil {
		h.writeError(WriteDomainError(w, err))
		return
	}
	h.writeError(WriteJSON(w, http.StatusOK, submission))
}

// Get handles GET /api/submissions/{id}.
func (h *SubmissionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	submission, err := h.submissionService.Get(r.Context(), id)
	if err != nil {
		h.writeError(WriteDomainError(w, err))
		return
	}
	h.writeError(WriteJSON(w, http.StatusOK, submission))
}

// Delete handles DELETE /api/submissions/{id}.
func (h *SubmissionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.submissionService.Delete(r.Context(), id); err != nil {
		h.writeError(WriteDomainError(w, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetAudit handles GET /api/submissions/{id}/audit.
func (h *SubmissionsHandler) GetAudit(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	events, err := h.auditService.GetByEntity(r.Context(), "submission", id)
	if err != nil {
		h.writeError(WriteDomainError(w, err))
		return
	}
	h.writeError(WriteJSON(w, http.StatusOK, map[string]any{"events": events}))
}

// GetAnswers handles GET /api/submissions/{id}/answers.
func (h *SubmissionsHandler) GetAnswers(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	answers, err := h.submissionService.GetAnswers(r.Context(), id)
	if err != nil {
		h.writeError(WriteDomainError(w, err))
		return
	}
	h.writeError(WriteJSON(w, http.StatusOK, map[string]any{"answers": answers}))
}

// GetQA handles GET /api/submissions/{id}/qa.
func (h *SubmissionsHandler) GetQA(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	record, err := h.qaService.GetRecord(r.Context(), id)
	if err != nil {
		h.writeError(WriteDomainError(w, err))
		return
	}
	h.writeError(WriteJSON(w, http.StatusOK, record))
}

// Review handles POST /api/submissions/{id}/review.
func (h *SubmissionsHandler) Review(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ErrorResponse(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON"))
		return
	}

	if err := h.qaService.SetReviewStatus(r.Context(), id, req.Status, req.Reason); err != nil {
		h.writeError(WriteDomainError(w, err))
		return
	}
	h.writeError(WriteJSON(w, http.StatusOK, map[string]string{"status": req.Status}))
}

func (h *SubmissionsHandler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(ErrorResponse(w, http.StatusBadRequest, "invalid_id", "id must be a positive integer"))
		return 0, false
	}
	return id, true
}

func (h *SubmissionsHandler) writeError(err error) {
	if err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
