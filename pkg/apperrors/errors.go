package apperrors

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrEnumeratorInactive   = errors.New("enumerator is inactive")
	ErrAssignmentInactive   = errors.New("assignment is inactive")
	ErrAssignmentRequired   = errors.New("an assignment code is required")
	ErrAssignmentMismatch   = errors.New("assignment template does not match submission template")
	ErrFacilityNotAssigned  = errors.New("facility is not on the assignment facility list")
	ErrFacilityListRequired = errors.New("facility must come from the assignment facility list")
	ErrEditNotAllowed       = errors.New("template does not allow editing responses")
	ErrHasChildren          = errors.New("node has children")
	ErrReferenced           = errors.New("node is still referenced")
)
