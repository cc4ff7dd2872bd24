// Package errors provides standardized error handling for the Context Memo API.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeUnauthorized     ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden        ErrorCode = "FORBIDDEN"
	ErrCodeRateLimited      ErrorCode = "RATE_LIMITED"

	ErrCodeBrandNotFound      ErrorCode = "BRAND_NOT_FOUND"
	ErrCodePersonaNotFound    ErrorCode = "PERSONA_NOT_FOUND"
	ErrCodeCompetitorNotFound ErrorCode = "COMPETITOR_NOT_FOUND"
	ErrCodeMemoNotFound       ErrorCode = "MEMO_NOT_FOUND"
	ErrCodeOrgNotFound        ErrorCode = "ORG_NOT_FOUND"
	ErrCodeMemberNotFound     ErrorCode = "MEMBER_NOT_FOUND"
	ErrCodeInviteNotFound     ErrorCode = "INVITE_NOT_FOUND"
	ErrCodeUnknownSection     ErrorCode = "UNKNOWN_SECTION"

	ErrCodeInviteExpired       ErrorCode = "INVITE_EXPIRED"
	ErrCodeInviteAlreadyUsed   ErrorCode = "INVITE_ALREADY_USED"
	ErrCodeOwnerNotRemovable   ErrorCode = "OWNER_NOT_REMOVABLE"
	ErrCodeAccessCodeInvalid   ErrorCode = "ACCESS_CODE_INVALID"
	ErrCodeAccessCodeExhausted ErrorCode = "ACCESS_CODE_EXHAUSTED"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeDatabaseInsertFailed     ErrorCode = "DATABASE_INSERT_FAILED"

	ErrCodeSearchQueryFailed ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeIndexingFailed    ErrorCode = "INDEXING_FAILED"

	ErrCodeEmailSendFailed    ErrorCode = "EMAIL_SEND_FAILED"
	ErrCodeAuditPublishFailed ErrorCode = "AUDIT_PUBLISH_FAILED"

	ErrCodeIntegrationNotConnected ErrorCode = "INTEGRATION_NOT_CONNECTED"
	ErrCodeOAuthExchangeFailed     ErrorCode = "OAUTH_EXCHANGE_FAILED"
	ErrCodeUpstreamAPIFailed       ErrorCode = "UPSTREAM_API_FAILED"

	ErrCodeExportFailed ErrorCode = "EXPORT_FAILED"
	ErrCodeDeleteFailed ErrorCode = "DELETE_FAILED"

	ErrCodeBusinessRuleViolation ErrorCode = "BUSINESS_RULE_VIOLATION"

	ErrCodeLLMTimeout          ErrorCode = "LLM_TIMEOUT"
	ErrCodeLLMSynthesisFailed  ErrorCode = "LLM_SYNTHESIS_FAILED"
	ErrCodeLLMResponseInvalid  ErrorCode = "LLM_RESPONSE_INVALID"
	ErrCodeExtractionFailed    ErrorCode = "EXTRACTION_FAILED"
	ErrCodeClassificationEmpty ErrorCode = "CLASSIFICATION_EMPTY"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewValidationError creates a non-retryable request validation error.
func NewValidationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Request validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUnauthorizedError creates a non-retryable authentication error.
func NewUnauthorizedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnauthorized,
		Message:   "Authentication required",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewForbiddenError creates a non-retryable authorization error.
func NewForbiddenError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeForbidden,
		Message:   "Insufficient permissions",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRateLimitedError creates a non-retryable throttling error.
func NewRateLimitedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRateLimited,
		Message:   "Too many requests",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotFoundError creates a non-retryable not-found error for the given code.
func NewNotFoundError(code ErrorCode, id string) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   "Resource not found",
		Details:   fmt.Sprintf("id: %s", id),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInviteExpiredError creates a non-retryable invite error.
func NewInviteExpiredError(inviteID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInviteExpired,
		Message:   "Invite has expired",
		Details:   fmt.Sprintf("inviteId: %s", inviteID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInviteAlreadyUsedError creates a non-retryable invite error.
func NewInviteAlreadyUsedError(inviteID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInviteAlreadyUsed,
		Message:   "Invite has already been accepted",
		Details:   fmt.Sprintf("inviteId: %s", inviteID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseInsertFailedError creates a retryable database insert error.
func NewDatabaseInsertFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseInsertFailed,
		Message:   "Database insert operation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSearchQueryFailedError creates a retryable search query error.
func NewSearchQueryFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchQueryFailed,
		Message:   "Memo search query error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewIndexingFailedError creates a retryable indexing error.
func NewIndexingFailedError(memoID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeIndexingFailed,
		Message:   "Memo indexing failed",
		Details:   fmt.Sprintf("memoId: %s, error: %s", memoID, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewEmailSendFailedError creates a retryable email delivery error.
func NewEmailSendFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeEmailSendFailed,
		Message:   "Email delivery failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewIntegrationNotConnectedError creates a non-retryable integration error.
func NewIntegrationNotConnectedError(provider string) *StandardError {
	return &StandardError{
		Code:      ErrCodeIntegrationNotConnected,
		Message:   "Integration is not connected",
		Details:   fmt.Sprintf("provider: %s", provider),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewOAuthExchangeFailedError creates a retryable OAuth exchange error.
func NewOAuthExchangeFailedError(provider string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeOAuthExchangeFailed,
		Message:   "OAuth token exchange failed",
		Details:   fmt.Sprintf("provider: %s, error: %s", provider, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewUpstreamAPIFailedError creates a retryable upstream integration error.
func NewUpstreamAPIFailedError(provider string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeUpstreamAPIFailed,
		Message:   fmt.Sprintf("Upstream API '%s' error", provider),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewExportFailedError creates a retryable export error naming the failing table.
func NewExportFailedError(table string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeExportFailed,
		Message:   "Privacy export failed",
		Details:   fmt.Sprintf("table: %s, error: %s", table, err.Error()),
		Retryable: true,
		Metadata:  map[string]interface{}{"table": table},
		Timestamp: time.Now().UTC(),
	}
}

// NewDeleteFailedError creates a retryable delete error naming the failing table.
func NewDeleteFailedError(table string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDeleteFailed,
		Message:   "Privacy delete failed",
		Details:   fmt.Sprintf("table: %s, error: %s", table, err.Error()),
		Retryable: true,
		Metadata:  map[string]interface{}{"table": table},
		Timestamp: time.Now().UTC(),
	}
}

// NewLLMTimeoutError creates a retryable LLM timeout error.
func NewLLMTimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodeLLMTimeout,
		Message:   "LLM completion timeout",
		Details:   "LLM call exceeded the configured deadline",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewLLMSynthesisFailedError creates a retryable LLM API error.
func NewLLMSynthesisFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeLLMSynthesisFailed,
		Message:   "LLM completion API error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewLLMResponseInvalidError creates a non-retryable parse error for a completion.
func NewLLMResponseInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeLLMResponseInvalid,
		Message:   "LLM returned an unparseable response",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewBusinessRuleError creates a generic non-retryable business error.
func NewBusinessRuleError(message, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeBusinessRuleViolation,
		Message:   message,
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// IsRetryable checks whether an error carries a retryable classification.
func IsRetryable(err error) bool {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Retryable
	}
	return false
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "INVITE") || strings.Contains(codeStr, "MEMBER") || strings.Contains(codeStr, "ORG"):
		return "ORGANIZATION"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "SEARCH") || strings.Contains(codeStr, "INDEX"):
		return "SEARCH"
	case strings.Contains(codeStr, "LLM") || strings.Contains(codeStr, "EXTRACTION") || strings.Contains(codeStr, "CLASSIFICATION"):
		return "AI"
	case strings.Contains(codeStr, "EXPORT") || strings.Contains(codeStr, "DELETE") || strings.Contains(codeStr, "AUDIT"):
		return "PRIVACY"
	case strings.Contains(codeStr, "OAUTH") || strings.Contains(codeStr, "UPSTREAM") || strings.Contains(codeStr, "INTEGRATION"):
		return "INTEGRATION"
	case strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "SECTION"):
		return "VALIDATION"
	default:
		return "GENERAL"
	}
}
