// Package errors defines the coded domain errors shared by every layer.
//
// Each error carries a machine-readable code and the HTTP status the REST layer
// answers with. Callers usually import it as apperrors:
//
//	import apperrors "github.com/smallnest/agentscaffold/errors"
//
//	if agent == nil {
//		return apperrors.AgentNotFound(id)
//	}
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes
const (
	CodeAgentNotFound      = "AGENT_NOT_FOUND"
	CodeSessionNotFound    = "SESSION_NOT_FOUND"
	CodeToolNotFound       = "TOOL_NOT_FOUND"
	CodeInvalidAgentConfig = "INVALID_AGENT_CONFIG"
	CodeAgentAlreadyExists = "AGENT_ALREADY_EXISTS"
	CodeAgentInactive      = "AGENT_INACTIVE"
	CodeSessionExpired     = "SESSION_EXPIRED"
	CodeToolExecution      = "TOOL_EXECUTION_FAILED"
	CodeLLMProvider        = "LLM_PROVIDER_ERROR"
	CodeAgentExecution     = "AGENT_EXECUTION_FAILED"
	CodeValidation         = "VALIDATION_FAILED"
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeInternal           = "INTERNAL_ERROR"
)

// Error is a domain error with a code, an HTTP status and an optional cause.
type Error struct {
	Code    string
	Message string
	Status  int
	Details map[string]any
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithDetails returns a copy of the error with key set in its details.
func (e *Error) WithDetails(key string, value any) *Error {
	cp := *e
	cp.Details = make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

// New creates a new Error
func New(code, message string, status int, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Status:  status,
		Cause:   cause,
	}
}

func AgentNotFound(id string) *Error {
	return New(CodeAgentNotFound, fmt.Sprintf("agent %s not found", id), http.StatusNotFound, nil).
		WithDetails("agentId", id)
}

func SessionNotFound(id string) *Error {
	return New(CodeSessionNotFound, fmt.Sprintf("session %s not found", id), http.StatusNotFound, nil).
		WithDetails("sessionId", id)
}

func ToolNotFound(name string) *Error {
	return New(CodeToolNotFound, fmt.Sprintf("tool %s not found", name), http.StatusNotFound, nil).
		WithDetails("tool", name)
}

// InvalidAgentConfig reports every failing field of an agent configuration.
func InvalidAgentConfig(message string, fields map[string]string) *Error {
	err := New(CodeInvalidAgentConfig, message, http.StatusBadRequest, nil)
	if len(fields) > 0 {
		err = err.WithDetails("fields", fields)
	}
	return err
}

func AgentAlreadyExists(name string) *Error {
	return New(CodeAgentAlreadyExists, fmt.Sprintf("agent with name %q already exists", name), http.StatusConflict, nil).
		WithDetails("name", name)
}

func AgentInactive(id string) *Error {
	return New(CodeAgentInactive, fmt.Sprintf("agent %s is not active", id), http.StatusConflict, nil).
		WithDetails("agentId", id)
}

func SessionExpired(id string) *Error {
	return New(CodeSessionExpired, fmt.Sprintf("session %s has expired", id), http.StatusGone, nil).
		WithDetails("sessionId", id)
}

func ToolExecution(name string, cause error) *Error {
	return New(CodeToolExecution, fmt.Sprintf("tool %s failed", name), http.StatusUnprocessableEntity, cause).
		WithDetails("tool", name)
}

func LLMProvider(provider, message string, cause error) *Error {
	return New(CodeLLMProvider, message, http.StatusBadGateway, cause).
		WithDetails("provider", provider)
}

func AgentExecution(agentID string, cause error) *Error {
	return New(CodeAgentExecution, fmt.Sprintf("agent %s execution failed", agentID), http.StatusInternalServerError, cause).
		WithDetails("agentId", agentID)
}

// Validation reports request-level field errors.
func Validation(fields map[string]string) *Error {
	return New(CodeValidation, "request validation failed", http.StatusBadRequest, nil).
		WithDetails("fields", fields)
}

func InvalidRequest(message string, cause error) *Error {
	return New(CodeInvalidRequest, message, http.StatusBadRequest, cause)
}

func Internal(cause error) *Error {
	return New(CodeInternal, "internal server error", http.StatusInternalServerError, cause)
}

// As finds the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err's chain contains an *Error with the given code.
func HasCode(err error, code string) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}

// HTTPStatus returns the status for err, 500 when it is not a domain error.
func HTTPStatus(err error) int {
	if appErr, ok := As(err); ok && appErr.Status != 0 {
		return appErr.Status
	}
	return http.StatusInternalServerError
}
