package errors

import (
	stderrors "errors"
	"net/http"
	"time"
)

// ==========================
// HTTP Error Integration
// ==========================

// APIError is the wire shape every failed request is converted to at the
// route boundary.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return e.Code + ": " + e.Message
}

// statusMapping maps internal error codes to HTTP status codes. Codes absent
// from this table fall through to the suffix rules in StatusForCode.
var statusMapping = map[ErrorCode]int{
	ErrCodeValidationFailed:      http.StatusBadRequest,
	ErrCodeUnknownSection:        http.StatusBadRequest,
	ErrCodeUnauthorized:          http.StatusUnauthorized,
	ErrCodeAccessCodeInvalid:     http.StatusUnauthorized,
	ErrCodeForbidden:             http.StatusForbidden,
	ErrCodeOwnerNotRemovable:     http.StatusForbidden,
	ErrCodeInviteAlreadyUsed:     http.StatusConflict,
	ErrCodeBusinessRuleViolation: http.StatusConflict,
	ErrCodeInviteExpired:         http.StatusGone,
	ErrCodeAccessCodeExhausted:   http.StatusGone,
	ErrCodeRateLimited:           http.StatusTooManyRequests,

	ErrCodeIntegrationNotConnected: http.StatusPreconditionFailed,
	ErrCodeOAuthExchangeFailed:     http.StatusBadGateway,
	ErrCodeUpstreamAPIFailed:       http.StatusBadGateway,
	ErrCodeLLMTimeout:              http.StatusGatewayTimeout,
	ErrCodeLLMSynthesisFailed:      http.StatusBadGateway,
	ErrCodeLLMResponseInvalid:      http.StatusBadGateway,
	ErrCodeExtractionFailed:        http.StatusBadGateway,
	ErrCodeClassificationEmpty:     http.StatusBadGateway,
	ErrCodeEmailSendFailed:         http.StatusBadGateway,
}

// StatusForCode resolves the HTTP status for an internal error code.
func StatusForCode(code ErrorCode) int {
	if status, ok := statusMapping[code]; ok {
		return status
	}
	codeStr := string(code)
	if len(codeStr) > 10 && codeStr[len(codeStr)-10:] == "_NOT_FOUND" {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// ToAPIError converts any error into the APIError sent to clients. Internal
// details of 5xx failures are not echoed back.
func ToAPIError(err error) *APIError {
	var stdErr *StandardError
	if !stderrors.As(err, &stdErr) {
		return &APIError{
			Status:  http.StatusInternalServerError,
			Code:    "INTERNAL_ERROR",
			Message: "An unexpected error occurred",
		}
	}

	status := StatusForCode(stdErr.Code)
	apiErr := &APIError{
		Status:  status,
		Code:    string(stdErr.Code),
		Message: stdErr.Message,
	}
	if status < http.StatusInternalServerError {
		apiErr.Details = stdErr.Details
	}
	return apiErr
}

// ConvertToStandardError wraps arbitrary errors so the boundary always deals
// with the structured form.
func ConvertToStandardError(err error, fallbackCode ErrorCode, fallbackMessage string) *StandardError {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return &StandardError{
		Code:      fallbackCode,
		Message:   fallbackMessage,
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}
