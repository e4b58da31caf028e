package session

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Text codes for the session error taxonomy. HTTP layers map on these, never
// on message text.
const (
	TextCodeTokenInvalid         = "AUTH_TOKEN_INVALID"
	TextCodeTokenMissing         = "AUTH_TOKEN_MISSING"
	TextCodeTokenExpired         = "AUTH_TOKEN_EXPIRED"
	TextCodeTokenVersionMismatch = "AUTH_TOKEN_VERSION_MISMATCH"
	TextCodeStatusForbidden      = "STATUS_VALIDATION_FAILURE"
	TextCodeRoleForbidden        = "ROLE_VALIDATION_FAILURE"

	TextCodeTokenNotFound     = "TOKEN_NOT_FOUND"
	TextCodeTokenTypeMismatch = "TOKEN_TYPE_MISMATCH"
	TextCodeTokenAlreadyUsed  = "TOKEN_ALREADY_USED"
	TextCodeTokenDeprecated   = "TOKEN_DEPRECATED"
	TextCodeSingleUseExpired  = "TOKEN_EXPIRED"

	TextCodeRefreshInvalid = "REFRESH_TOKEN_INVALID"
	TextCodeRefreshExpired = "REFRESH_TOKEN_EXPIRED"
	TextCodeRefreshRevoked = "REFRESH_TOKEN_REVOKED"
	TextCodeRefreshMissing = "REFRESH_TOKEN_MISSING"
)

// Access token and middleware failures. Signature, shape, and parse failures
// collapse into ErrUnauthorized so callers cannot probe which check failed.
var (
	ErrUnauthorized = goerrors.New("invalid authentication token", goerrors.CategoryAuth).
			WithTextCode(TextCodeTokenInvalid).
			WithCode(goerrors.CodeUnauthorized)

	ErrNoToken = goerrors.New("no authentication token provided", goerrors.CategoryAuth).
			WithTextCode(TextCodeTokenMissing).
			WithCode(goerrors.CodeUnauthorized)

	ErrTokenExpired = goerrors.New("authentication token has expired", goerrors.CategoryAuth).
			WithTextCode(TextCodeTokenExpired).
			WithCode(goerrors.CodeUnauthorized)

	ErrTokenVersionMismatch = goerrors.New("token version mismatch", goerrors.CategoryAuth).
				WithTextCode(TextCodeTokenVersionMismatch).
				WithCode(goerrors.CodeUnauthorized)

	ErrStatusForbidden = goerrors.New("status validation failure", goerrors.CategoryAuthz).
				WithTextCode(TextCodeStatusForbidden).
				WithCode(goerrors.CodeForbidden)

	ErrRoleForbidden = goerrors.New("role validation failure", goerrors.CategoryAuthz).
				WithTextCode(TextCodeRoleForbidden).
				WithCode(goerrors.CodeForbidden)
)

// Single-use token state violations. These are lower sensitivity and UX
// facing, so each state gets its own code.
var (
	ErrTokenNotFound = goerrors.New("token not found", goerrors.CategoryNotFound).
				WithTextCode(TextCodeTokenNotFound).
				WithCode(goerrors.CodeNotFound)

	ErrTokenTypeMismatch = goerrors.New("token type mismatch", goerrors.CategoryValidation).
				WithTextCode(TextCodeTokenTypeMismatch).
				WithCode(goerrors.CodeBadRequest)

	ErrTokenAlreadyUsed = goerrors.New("token has already been used", goerrors.CategoryConflict).
				WithTextCode(TextCodeTokenAlreadyUsed).
				WithCode(goerrors.CodeConflict)

	ErrTokenDeprecated = goerrors.New("token has been superseded", goerrors.CategoryConflict).
				WithTextCode(TextCodeTokenDeprecated).
				WithCode(goerrors.CodeConflict)

	ErrSingleUseExpired = goerrors.New("token has expired", goerrors.CategoryValidation).
				WithTextCode(TextCodeSingleUseExpired).
				WithCode(goerrors.CodeBadRequest)
)

// Refresh token failures.
var (
	ErrInvalidRefreshToken = goerrors.New("invalid refresh token", goerrors.CategoryAuth).
				WithTextCode(TextCodeRefreshInvalid).
				WithCode(goerrors.CodeUnauthorized)

	ErrRefreshTokenExpired = goerrors.New("refresh token has expired", goerrors.CategoryAuth).
				WithTextCode(TextCodeRefreshExpired).
				WithCode(goerrors.CodeUnauthorized)

	ErrRefreshTokenRevoked = goerrors.New("refresh token has been revoked", goerrors.CategoryAuth).
				WithTextCode(TextCodeRefreshRevoked).
				WithCode(goerrors.CodeUnauthorized)

	ErrMissingRefreshToken = goerrors.New("no refresh token provided", goerrors.CategoryAuth).
				WithTextCode(TextCodeRefreshMissing).
				WithCode(goerrors.CodeUnauthorized)
)

// Credential verification failures.
var (
	ErrIdentityNotFound = goerrors.New("identity not found", goerrors.CategoryAuth).
				WithTextCode("IDENTITY_NOT_FOUND").
				WithCode(goerrors.CodeUnauthorized)

	ErrMismatchedHashAndPassword = goerrors.New("invalid credentials", goerrors.CategoryAuth).
					WithTextCode("INVALID_CREDENTIALS").
					WithCode(goerrors.CodeUnauthorized)

	ErrTooManyLoginAttempts = goerrors.New("too many login attempts", goerrors.CategoryAuth).
				WithTextCode("TOO_MANY_LOGIN_ATTEMPTS").
				WithCode(goerrors.CodeUnauthorized)

	ErrNoEmptyString = goerrors.New("value must not be empty", goerrors.CategoryBadInput).
				WithCode(goerrors.CodeBadRequest)

	ErrUserSuspended = goerrors.New("user account is suspended", goerrors.CategoryAuth).
				WithTextCode("USER_SUSPENDED").
				WithCode(goerrors.CodeUnauthorized)

	ErrUserArchived = goerrors.New("user account is archived", goerrors.CategoryAuth).
			WithTextCode("USER_ARCHIVED").
			WithCode(goerrors.CodeUnauthorized)
)

// AsUnauthorized collapses any non-taxonomy error into ErrUnauthorized,
// preserving the original as the wrapped cause. Typed session errors pass
// through untouched.
func AsUnauthorized(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}

	return goerrors.Wrap(err, goerrors.CategoryAuth, "invalid authentication token").
		WithTextCode(TextCodeTokenInvalid).
		WithCode(goerrors.CodeUnauthorized)
}

// ErrorTextCode extracts the taxonomy text code, or "" for untyped errors.
func ErrorTextCode(err error) string {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode
	}
	return ""
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if ErrorTextCode(err) == TextCodeTokenExpired {
		return true
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
