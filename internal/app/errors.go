package app

import (
	"fmt"
	"net/http"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	// Fields maps field names to validation messages.
	Fields map[string]string
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
	}
}

func validationError(fields map[string]string) *DomainError {
	return &DomainError{
		Status:  http.StatusBadRequest,
		Code:    "VALIDATION_ERROR",
		Message: "Submitted data failed validation.",
		Fields:  fields,
	}
}

func notFoundError(message string) *DomainError {
	return domainError(http.StatusNotFound, "NOT_FOUND", message)
}

func conflictError(message string) *DomainError {
	return domainError(http.StatusConflict, "CONFLICT", message)
}

// lockConflictError names the current holder so clients can show who is
// drawing. It maps to 423 Locked.
func lockConflictError(holderName string) *DomainError {
	return domainError(http.StatusLocked, "BOARD_LOCKED", "Board is locked for editing by "+holderName)
}

func notEditorError() *DomainError {
	return domainError(http.StatusUnauthorized, "UNAUTHORIZED", "You are not an Editor of this Board.")
}

func notOwnerError() *DomainError {
	return domainError(http.StatusUnauthorized, "UNAUTHORIZED", "You are not the Owner of this Board.")
}
