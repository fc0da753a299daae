// Package services provides the business logic layer between the HTTP
// handlers and the dataset store. Services validate input, orchestrate store
// calls, run fits, publish change events and keep the result cache coherent.
package services

import "net/http"

// Error codes returned to API clients
const (
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeInvalidName      = "INVALID_NAME"
	CodeInvalidPoint     = "INVALID_POINT"
	CodeDatasetNotFound  = "DATASET_NOT_FOUND"
	CodeDatasetExists    = "DATASET_EXISTS"
	CodePointNotFound    = "POINT_NOT_FOUND"
	CodeNotEnoughData    = "NOT_ENOUGH_DATA"
	CodeInvalidSample    = "INVALID_SAMPLE"
	CodeDegenerateFit    = "DEGENERATE_FIT"
	CodeTooManySamples   = "TOO_MANY_SAMPLES"
	CodeInvalidModel     = "INVALID_MODEL"
	CodeInvalidFormat    = "INVALID_FORMAT"
	CodeImportFailed     = "IMPORT_FAILED"
	CodeTimeout          = "TIMEOUT"
	CodeInternal         = "INTERNAL_ERROR"
	CodeStoreUnavailable = "STORE_UNAVAILABLE"
	CodeRouteNotFound    = "NOT_FOUND"
)

var codeStatus = map[string]int{
	CodeInvalidRequest:   http.StatusBadRequest,
	CodeInvalidName:      http.StatusBadRequest,
	CodeInvalidPoint:     http.StatusBadRequest,
	CodeDatasetNotFound:  http.StatusNotFound,
	CodeDatasetExists:    http.StatusConflict,
	CodePointNotFound:    http.StatusNotFound,
	CodeNotEnoughData:    http.StatusBadRequest,
	CodeInvalidSample:    http.StatusUnprocessableEntity,
	CodeDegenerateFit:    http.StatusUnprocessableEntity,
	CodeTooManySamples:   http.StatusRequestEntityTooLarge,
	CodeInvalidModel:     http.StatusBadRequest,
	CodeInvalidFormat:    http.StatusBadRequest,
	CodeImportFailed:     http.StatusBadRequest,
	CodeTimeout:          http.StatusGatewayTimeout,
	CodeInternal:         http.StatusInternalServerError,
	CodeStoreUnavailable: http.StatusServiceUnavailable,
	CodeRouteNotFound:    http.StatusNotFound,
}

// ServiceError represents a service layer error
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}

// HTTPStatus maps the error code to a response status. Unknown codes are
// treated as internal errors.
func (e *ServiceError) HTTPStatus() int {
	if status, ok := codeStatus[e.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// NewServiceError creates a new ServiceError
func NewServiceError(code, message string) *ServiceError {
	return &ServiceError{
		Code:    code,
		Message: message,
	}
}

// NewServiceErrorWithDetails creates a new ServiceError with details
func NewServiceErrorWithDetails(code, message string, details map[string]interface{}) *ServiceError {
	return &ServiceError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// internalError hides err from the client; callers log it
func internalError(message string) *ServiceError {
	return NewServiceError(CodeInternal, message)
}
