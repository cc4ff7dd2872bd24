package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToAPIErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", NewValidationError("bad input"), http.StatusBadRequest, "VALIDATION_FAILED"},
		{"not found suffix", NewNotFoundError(ErrCodeBrandNotFound, "b-1"), http.StatusNotFound, "BRAND_NOT_FOUND"},
		{"stale version", NewBusinessRuleError("conflict", "stale"), http.StatusConflict, "BUSINESS_RULE_VIOLATION"},
		{"llm timeout", NewLLMTimeoutError(), http.StatusGatewayTimeout, "LLM_TIMEOUT"},
		{"llm synthesis", NewLLMSynthesisFailedError(fmt.Errorf("status 502")), http.StatusBadGateway, "LLM_SYNTHESIS_FAILED"},
		{"unknown error", fmt.Errorf("plain"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiErr := ToAPIError(tt.err)
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.code, apiErr.Code)
		})
	}
}

func TestToAPIErrorUnwrapsWrappedStandardError(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", NewForbiddenError("role admin required"))

	apiErr := ToAPIError(wrapped)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, "FORBIDDEN", apiErr.Code)
}

func TestToAPIErrorHidesInternalDetails(t *testing.T) {
	apiErr := ToAPIError(NewQueryExecutionFailedError("load_brand", fmt.Errorf("dsn=postgres://secret")))
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Empty(t, apiErr.Details)
}
