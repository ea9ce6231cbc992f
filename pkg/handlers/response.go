package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/openfield-hq/openfield-engine/pkg/apperrors"
)

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// validationResponse is the wire shape for batched validation failures.
type validationResponse struct {
	Error      string                `json:"error"`
	Message    string                `json:"message"`
	Violations []apperrors.Violation `json:"violations"`
}

// WriteDomainError maps a service error to its HTTP representation.
// Validation failures carry the full violations batch; policy and state
// errors get distinguishable error codes so callers can render each case.
func WriteDomainError(w http.ResponseWriter, err error) error {
	var verr *apperrors.ValidationError
	if errors.As(err, &verr) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		return json.NewEncoder(w).Encode(validationResponse{
			Error:      "validation_failed",
			Message:    "one or more fields failed validation",
			Violations: verr.Violations,
		})
	}

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return ErrorResponse(w, http.StatusNotFound, "not_found", "the requested resource does not exist")
	case errors.Is(err, apperrors.ErrEnumeratorInactive):
		return ErrorResponse(w, http.StatusConflict, "enumerator_inactive", err.Error())
	case errors.Is(err, apperrors.ErrAssignmentInactive):
		return ErrorResponse(w, http.StatusConflict, "assignment_inactive", err.Error())
	case errors.Is(err, apperrors.ErrAssignmentRequired):
		return ErrorResponse(w, http.StatusConflict, "assignment_required", err.Error())
	case errors.Is(err, apperrors.ErrAssignmentMismatch):
		return ErrorResponse(w, http.StatusConflict, "assignment_mismatch", err.Error())
	case errors.Is(err, apperrors.ErrFacilityNotAssigned):
		return ErrorResponse(w, http.StatusConflict, "facility_not_assigned", err.Error())
	case errors.Is(err, apperrors.ErrFacilityListRequired):
		return ErrorResponse(w, http.StatusConflict, "facility_list_required", err.Error())
	case errors.Is(err, apperrors.ErrEditNotAllowed):
		return ErrorResponse(w, http.StatusConflict, "edit_not_allowed", err.Error())
	case errors.Is(err, apperrors.ErrHasChildren):
		return ErrorResponse(w, http.StatusConflict, "has_children", err.Error())
	case errors.Is(err, apperrors.ErrReferenced):
		return ErrorResponse(w, http.StatusConflict, "referenced", err.Error())
	case errors.Is(err, apperrors.ErrConflict):
		return ErrorResponse(w, http.StatusConflict, "conflict", "a conflicting write won; retrying with the same input is safe")
	default:
		return ErrorResponse(w, http.StatusInternalServerError, "system_error", "an internal error occurred")
	}
}
