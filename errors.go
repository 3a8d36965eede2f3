package users

import (
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	// TextCodeDuplicateEmail flags a primary email uniqueness violation
	TextCodeDuplicateEmail = "USER_DUPLICATE_EMAIL"
	// TextCodeDuplicateIdentity flags an (id_type, id_number) uniqueness violation
	TextCodeDuplicateIdentity = "USER_DUPLICATE_IDENTITY"
	// TextCodeProhibitedFields flags a self-update touching restricted fields
	TextCodeProhibitedFields = "USER_PROHIBITED_FIELDS"
	// TextCodeImmutableFields flags an admin update touching immutable fields
	TextCodeImmutableFields = "USER_IMMUTABLE_FIELDS"
	// TextCodeNoUpdatableFields flags an update payload with nothing to apply
	TextCodeNoUpdatableFields = "USER_NO_UPDATABLE_FIELDS"
	// TextCodePermissionDenied flags an actor whose role cannot run the operation
	TextCodePermissionDenied = "USER_PERMISSION_DENIED"
	// TextCodeUserNotFound flags a missing target record
	TextCodeUserNotFound = "USER_NOT_FOUND"
	// TextCodeInvalidCredentials flags a failed login
	TextCodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	// TextCodeAccountSuspended flags a login blocked by suspension
	TextCodeAccountSuspended = "AUTH_ACCOUNT_SUSPENDED"
	// TextCodeTokenExpired flags an expired JWT
	TextCodeTokenExpired = "AUTH_TOKEN_EXPIRED"
	// TextCodeTokenMalformed flags an unparsable JWT
	TextCodeTokenMalformed = "AUTH_TOKEN_MALFORMED"
)

// ErrDuplicateEmail is returned when the primary email is already registered.
var ErrDuplicateEmail = errors.New("email already in use", errors.CategoryValidation).
	WithTextCode(TextCodeDuplicateEmail).
	WithCode(errors.CodeBadRequest)

// ErrDuplicateIdentity is returned when the identity document pair is taken.
var ErrDuplicateIdentity = errors.New("identity document already registered", errors.CategoryValidation).
	WithTextCode(TextCodeDuplicateIdentity).
	WithCode(errors.CodeBadRequest)

// ErrProhibitedFields is returned when a self-update touches restricted
// fields. The offending field names travel in the metadata under "fields".
var ErrProhibitedFields = errors.New("fields cannot be updated by their owner", errors.CategoryValidation).
	WithTextCode(TextCodeProhibitedFields).
	WithCode(errors.CodeBadRequest)

// ErrImmutableFields is returned when an admin update touches id/created_at.
var ErrImmutableFields = errors.New("fields are immutable", errors.CategoryValidation).
	WithTextCode(TextCodeImmutableFields).
	WithCode(errors.CodeBadRequest)

// ErrNoUpdatableFields is returned when an update payload applies nothing.
var ErrNoUpdatableFields = errors.New("no valid fields to update", errors.CategoryValidation).
	WithTextCode(TextCodeNoUpdatableFields).
	WithCode(errors.CodeBadRequest)

// ErrPermissionDenied is returned when the actor's role cannot run an operation.
var ErrPermissionDenied = errors.New("permission denied", errors.CategoryAuth).
	WithTextCode(TextCodePermissionDenied).
	WithCode(errors.CodeForbidden)

// ErrUserNotFound is returned when the target user does not exist.
var ErrUserNotFound = errors.New("user not found", errors.CategoryNotFound).
	WithTextCode(TextCodeUserNotFound).
	WithCode(errors.CodeNotFound)

// ErrInvalidCredentials is returned on login failure. Unknown email and wrong
// password produce this same error so callers cannot tell them apart.
var ErrInvalidCredentials = errors.New("invalid credentials", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(errors.CodeUnauthorized)

// ErrAccountSuspended is returned when a suspended user presents valid credentials.
var ErrAccountSuspended = errors.New("account suspended", errors.CategoryAuth).
	WithTextCode(TextCodeAccountSuspended).
	WithCode(errors.CodeForbidden)

// ErrTokenExpired is returned for expired tokens.
var ErrTokenExpired = errors.New("token is expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed is returned for tokens that cannot be parsed or verified.
var ErrTokenMalformed = errors.New("token is malformed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// ErrNoEmptyString is the error we return when hashing an empty password
var ErrNoEmptyString = errors.New("password must not be empty", errors.CategoryValidation).
	WithCode(errors.CodeBadRequest)

// ErrMismatchedHashAndPassword is the credential verification failure
var ErrMismatchedHashAndPassword = errors.New("credentials do not match", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized)

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}

// TranslateUniqueViolation converts storage-level unique constraint failures
// into the domain errors callers are allowed to see. Anything else passes
// through untouched so internal failures keep their context.
func TranslateUniqueViolation(err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") &&
		!strings.Contains(msg, "duplicate key value") {
		return err
	}

	if strings.Contains(msg, "email") {
		return ErrDuplicateEmail
	}

	if strings.Contains(msg, "id_number") || strings.Contains(msg, "id_type") ||
		strings.Contains(msg, "usr_identity") {
		return ErrDuplicateIdentity
	}

	return errors.Wrap(err, errors.CategoryConflict, "uniqueness violation")
}
