package insurai

import (
	"errors"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeMissingCredential    = "MISSING_CREDENTIAL"
	TextCodeMalformedCredential  = "MALFORMED_CREDENTIAL"
	TextCodeInvalidToken         = "INVALID_TOKEN"
	TextCodeInsufficientRole     = "INSUFFICIENT_ROLE"
	TextCodeInvalidCredentials   = "INVALID_CREDENTIALS"
	TextCodeNotFound             = "NOT_FOUND"
	TextCodeValidation           = "VALIDATION_FAILED"
	TextCodeInvalidTransition    = "INVALID_CLAIM_TRANSITION"
	TextCodeQueryAlreadyAnswered = "QUERY_ALREADY_ANSWERED"
	TextCodeDuplicateAccount     = "DUPLICATE_ACCOUNT"
	TextCodeSideEffect           = "SIDE_EFFECT_FAILED"
	TextCodeStorageUnavailable   = "STORAGE_UNAVAILABLE"
	TextCodeResetTokenUsed       = "RESET_TOKEN_USED"
	TextCodeResetTokenExpired    = "RESET_TOKEN_EXPIRED"
)

// ErrMissingCredential is returned when the Authorization header is absent
// or does not carry the expected scheme.
var ErrMissingCredential = goerrors.New("missing or malformed authorization header", goerrors.CategoryAuth).
	WithTextCode(TextCodeMissingCredential).
	WithCode(goerrors.CodeForbidden)

// ErrMalformedCredential is returned by the gate when the token fails verification.
var ErrMalformedCredential = goerrors.New("invalid or expired token", goerrors.CategoryAuth).
	WithTextCode(TextCodeMalformedCredential).
	WithCode(goerrors.CodeForbidden)

// ErrInvalidToken is returned by the token validator.
var ErrInvalidToken = goerrors.New("token is invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidToken).
	WithCode(goerrors.CodeForbidden)

// ErrInsufficientRole is returned when a valid token carries a different role.
var ErrInsufficientRole = goerrors.New("access denied", goerrors.CategoryAuthz).
	WithTextCode(TextCodeInsufficientRole).
	WithCode(goerrors.CodeForbidden)

// ErrInvalidCredentials is returned on a failed login.
var ErrInvalidCredentials = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeForbidden)

var ErrNotFound = goerrors.New("resource not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeNotFound).
	WithCode(goerrors.CodeNotFound)

var ErrValidation = goerrors.New("invalid input", goerrors.CategoryValidation).
	WithTextCode(TextCodeValidation).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidTransition is returned when a claim is not in the state the
// requested transition starts from.
var ErrInvalidTransition = goerrors.New("invalid claim state transition", goerrors.CategoryConflict).
	WithTextCode(TextCodeInvalidTransition).
	WithCode(goerrors.CodeConflict)

var ErrQueryAlreadyAnswered = goerrors.New("query already answered", goerrors.CategoryConflict).
	WithTextCode(TextCodeQueryAlreadyAnswered).
	WithCode(goerrors.CodeConflict)

var ErrDuplicateAccount = goerrors.New("account already exists", goerrors.CategoryConflict).
	WithTextCode(TextCodeDuplicateAccount).
	WithCode(goerrors.CodeConflict)

// ErrResetTokenUsed is returned when a password reset token was already
// redeemed.
var ErrResetTokenUsed = goerrors.New("password reset token already used", goerrors.CategoryConflict).
	WithTextCode(TextCodeResetTokenUsed).
	WithCode(goerrors.CodeConflict)

var ErrResetTokenExpired = goerrors.New("password reset token expired", goerrors.CategoryValidation).
	WithTextCode(TextCodeResetTokenExpired).
	WithCode(goerrors.CodeBadRequest)

// ErrSideEffect wraps failures of post-commit hooks. It is only ever reported
// to the operational error handler.
var ErrSideEffect = goerrors.New("post-commit side effect failed", goerrors.CategoryExternal).
	WithTextCode(TextCodeSideEffect)

var ErrStorageUnavailable = goerrors.New("storage unavailable", goerrors.CategoryInternal).
	WithTextCode(TextCodeStorageUnavailable).
	WithCode(goerrors.CodeInternal)

// newError clones a sentinel so callers can attach metadata without
// mutating the package level value.
func newError(sentinel *goerrors.Error, metadata map[string]any) *goerrors.Error {
	err := sentinel.Clone()
	err.Metadata = nil
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// wrapError clones a sentinel and keeps source as the underlying cause.
func wrapError(sentinel *goerrors.Error, source error, metadata map[string]any) *goerrors.Error {
	err := newError(sentinel, metadata)
	err.Source = source
	return err
}

func notFound(entity string, id any) *goerrors.Error {
	err := newError(ErrNotFound, map[string]any{"entity": entity, "id": id})
	err.Message = entity + " not found"
	return err
}

func validationError(msg string, fields ...goerrors.FieldError) *goerrors.Error {
	err := newError(ErrValidation, nil)
	if msg != "" {
		err.Message = msg
	}
	err.ValidationErrors = fields
	return err
}

// fromValidation converts ozzo validation output into a validation error.
func fromValidation(err error, msg string) error {
	if err == nil {
		return nil
	}
	verr := goerrors.FromOzzoValidation(err, msg)
	verr.TextCode = TextCodeValidation
	verr.Code = goerrors.CodeBadRequest
	return verr
}

func storageError(err error, op string) error {
	if err == nil {
		return nil
	}
	var rich *goerrors.Error
	if errors.As(err, &rich) {
		return err
	}
	return wrapError(ErrStorageUnavailable, err, map[string]any{"operation": op})
}

// HasTextCode reports whether err carries the given text code.
func HasTextCode(err error, code string) bool {
	var rich *goerrors.Error
	if !errors.As(err, &rich) {
		return false
	}
	return rich.TextCode == code
}

func IsNotFound(err error) bool {
	return HasTextCode(err, TextCodeNotFound)
}

func IsInvalidTransition(err error) bool {
	return HasTextCode(err, TextCodeInvalidTransition)
}

func IsValidationError(err error) bool {
	return goerrors.IsValidation(err)
}

// IsAuthFailure reports authentication and authorization failures alike.
func IsAuthFailure(err error) bool {
	return goerrors.IsCategory(err, goerrors.CategoryAuth) || goerrors.IsCategory(err, goerrors.CategoryAuthz)
}

// HTTPStatus resolves the response status for err. Errors without a code
// are reported as 500.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var rich *goerrors.Error
	if errors.As(err, &rich) && rich.Code != 0 {
		return rich.Code
	}
	if IsAuthFailure(err) {
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}
