package app

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"nexacrm/api/internal/auth"
	"nexacrm/api/internal/authpw"
	"nexacrm/api/internal/blob"
	"nexacrm/api/internal/enrich"
	"nexacrm/api/internal/export"
	"nexacrm/api/internal/rbac"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func validationError(message string) *DomainError {
	return domainError(http.StatusBadRequest, "VALIDATION_ERROR", message, nil)
}

func forbiddenError(message string) *DomainError {
	return domainError(http.StatusForbidden, "FORBIDDEN", message, nil)
}

func notFoundError(message string) *DomainError {
	return domainError(http.StatusNotFound, "NOT_FOUND", message, nil)
}

func conflictError(message string) *DomainError {
	return domainError(http.StatusBadRequest, "CONFLICT", message, nil)
}

func configError(message string) *DomainError {
	return domainError(http.StatusBadRequest, "CONFIG_ERROR", message, nil)
}

func extractionError(message string) *DomainError {
	return domainError(http.StatusBadRequest, "EXTRACTION_FAILED", message, nil)
}

func throttledError() *DomainError {
	return domainError(http.StatusTooManyRequests, "TOO_MANY_ATTEMPTS", "Too many failed sign-in attempts, try again later", nil)
}

// mapError turns any service error into a response triple. Unknown errors
// become a sanitized 500; the caller logs the original.
func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	switch {
	case errors.Is(err, sql.ErrNoRows), errors.Is(err, blob.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken):
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	case errors.Is(err, authpw.ErrMissingFields), errors.Is(err, authpw.ErrPasswordTooShort):
		return http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil
	case errors.Is(err, authpw.ErrEmailTaken):
		return http.StatusBadRequest, "CONFLICT", "Email already registered", nil
	case errors.Is(err, authpw.ErrInvalidCredentials):
		return http.StatusBadRequest, "INVALID_CREDENTIALS", "Invalid email or password", nil
	case errors.Is(err, authpw.ErrWrongPassword):
		return http.StatusBadRequest, "INVALID_CREDENTIALS", err.Error(), nil
	case errors.Is(err, rbac.ErrOwnerProtected), errors.Is(err, rbac.ErrSelfDelete), errors.Is(err, rbac.ErrSelfDemotion):
		return http.StatusForbidden, "FORBIDDEN", err.Error(), nil
	case errors.Is(err, enrich.ErrPlacesDenied):
		return http.StatusBadRequest, "CONFIG_ERROR", err.Error(), nil
	case errors.Is(err, export.ErrPDFDependencyMissing):
		return http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "PDF export is not available on this server", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}

func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
