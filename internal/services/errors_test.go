package services

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
)

func TestServiceError_Error(t *testing.T) {
	err := &ServiceError{
		Code:    CodeDatasetNotFound,
		Message: "Dataset not found",
	}

	if err.Error() != "Dataset not found" {
		t.Errorf("Expected 'Dataset not found', got '%s'", err.Error())
	}
}

func TestNewServiceErrorWithDetails(t *testing.T) {
	details := map[string]interface{}{
		"dataset": "calibration",
		"points":  1,
	}

	err := NewServiceErrorWithDetails(CodeNotEnoughData, "Not enough data points to calculate regression", details)

	if err.Code != CodeNotEnoughData {
		t.Errorf("Expected code %s, got '%s'", CodeNotEnoughData, err.Code)
	}
	if err.Details["dataset"] != "calibration" {
		t.Errorf("Expected dataset detail, got %v", err.Details)
	}
}

func TestServiceError_HTTPStatus(t *testing.T) {
	tests := []struct {
		code   string
		status int
	}{
		{CodeInvalidName, http.StatusBadRequest},
		{CodeInvalidPoint, http.StatusBadRequest},
		{CodeDatasetNotFound, http.StatusNotFound},
		{CodePointNotFound, http.StatusNotFound},
		{CodeDatasetExists, http.StatusConflict},
		{CodeNotEnoughData, http.StatusBadRequest},
		{CodeInvalidSample, http.StatusUnprocessableEntity},
		{CodeDegenerateFit, http.StatusUnprocessableEntity},
		{CodeTooManySamples, http.StatusRequestEntityTooLarge},
		{CodeInvalidModel, http.StatusBadRequest},
		{CodeTimeout, http.StatusGatewayTimeout},
		{CodeStoreUnavailable, http.StatusServiceUnavailable},
		{"SOMETHING_ELSE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := NewServiceError(tt.code, "x").HTTPStatus(); got != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, got)
			}
		})
	}
}

func TestServiceError_JSONMarshal(t *testing.T) {
	err := NewServiceError(CodeDatasetExists, "Dataset with this name already exists")

	data, marshalErr := json.Marshal(err)
	if marshalErr != nil {
		t.Fatalf("Failed to marshal: %v", marshalErr)
	}

	jsonStr := string(data)
	if !strings.Contains(jsonStr, `"code":"DATASET_EXISTS"`) {
		t.Errorf("JSON should contain code, got %s", jsonStr)
	}
	if strings.Contains(jsonStr, "details") {
		t.Errorf("JSON should omit empty details, got %s", jsonStr)
	}
}

func TestServiceError_As(t *testing.T) {
	var err error = NewServiceError(CodePointNotFound, "Point not found in this dataset")

	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatal("Expected errors.As to find *ServiceError")
	}
	if svcErr.HTTPStatus() != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", svcErr.HTTPStatus())
	}
}
