package apperrors

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by repositories and services
var (
	// ErrUserNotFound is returned when a user lookup finds no matching document
	ErrUserNotFound = NewNotFoundError("user", "")

	// ErrPostNotFound is returned when a post lookup finds no matching document
	ErrPostNotFound = NewNotFoundError("post", "")

	// ErrEmailTaken is returned when signup or update hits the unique email index
	ErrEmailTaken = errors.New("email already registered")

	// ErrSelfFollow is returned when a user tries to follow themselves
	ErrSelfFollow = &ConflictError{Message: "you can't follow yourself"}

	// ErrInvalidCredentials is returned by login for an unknown email or bad password
	ErrInvalidCredentials = &AuthError{Message: "incorrect email or password"}

	// ErrToggleContended is returned when a membership toggle keeps losing to
	// concurrent toggles on the same document
	ErrToggleContended = errors.New("toggle contended, retry")
)

// ValidationError represents a missing or malformed input field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("validation error (%s): %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// NotFoundError represents a referenced user or post that does not exist
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// Is lets errors.Is match any NotFoundError for the same resource, so the
// sentinels above compare equal to errors carrying a concrete id.
func (e *NotFoundError) Is(target error) bool {
	t, ok := target.(*NotFoundError)
	if !ok {
		return false
	}
	return t.Resource == e.Resource && (t.ID == "" || t.ID == e.ID)
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// ConflictError is an operation that is invalid for the current relationship
// state, e.g. self-follow. It maps to 400, not 409.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// AuthError covers missing, invalid or expired credentials
type AuthError struct {
	Message string
	// Invalid is set when a token was presented but could not be verified
	Invalid bool
}

func (e *AuthError) Error() string {
	return e.Message
}

// ForbiddenError is returned when the caller is authenticated but does not own
// the resource it is trying to change
type ForbiddenError struct {
	Message string
}

func (e *ForbiddenError) Error() string {
	return e.Message
}

// ExternalServiceError wraps failures from the media host or chat provider
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

// NewExternalServiceError wraps err as a failure of the named service
func NewExternalServiceError(service string, err error) error {
	return &ExternalServiceError{Service: service, Err: err}
}

// IsValidationError checks if err is a validation error
func IsValidationError(err error) bool {
	var valErr *ValidationError
	return errors.As(err, &valErr)
}

// IsNotFound checks if err is a not found error
func IsNotFound(err error) bool {
	var notFoundErr *NotFoundError
	return errors.As(err, &notFoundErr)
}

// IsConflict checks if err is a relationship conflict
func IsConflict(err error) bool {
	var conflictErr *ConflictError
	return errors.As(err, &conflictErr)
}

// IsAuthError checks if err is an authentication error
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// IsForbidden checks if err is an ownership violation
func IsForbidden(err error) bool {
	var forbiddenErr *ForbiddenError
	return errors.As(err, &forbiddenErr)
}

// IsExternalServiceError checks if err came from the media host or chat provider
func IsExternalServiceError(err error) bool {
	var extErr *ExternalServiceError
	return errors.As(err, &extErr)
}
