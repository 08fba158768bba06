package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorType represents the class of an error
type ErrorType string

const (
	// ErrTypeConnection represents transport failures reaching the provider
	ErrTypeConnection ErrorType = "connection"
	// ErrTypeValidation represents malformed input
	ErrTypeValidation ErrorType = "validation"
	// ErrTypeConfig represents missing or invalid configuration
	ErrTypeConfig ErrorType = "config"
	// ErrTypeAuth represents authenticity failures
	ErrTypeAuth ErrorType = "authentication"
	// ErrTypeUpstream represents a non-2xx or unusable provider response
	ErrTypeUpstream ErrorType = "upstream"
	// ErrTypeInternal represents internal system errors
	ErrTypeInternal ErrorType = "internal"
	// ErrTypeTimeout represents an upstream call that hit its deadline
	ErrTypeTimeout ErrorType = "timeout"
)

// Failure codes shared by the key, token, credential, verifier and encryption paths.
const (
	CodeFetchFailed              = "FETCH_FAILED"
	CodeKeyParseFailed           = "KEY_PARSE_FAILED"
	CodeMissingCredential        = "MISSING_CREDENTIAL"
	CodeTokenResponseMalformed   = "TOKEN_RESPONSE_MALFORMED"
	CodeTokenFetchFailed         = "TOKEN_FETCH_FAILED"
	CodeSignatureMissing         = "SIGNATURE_MISSING"
	CodeSignatureMalformed       = "SIGNATURE_MALFORMED"
	CodeTimestampSkewExceeded    = "TIMESTAMP_SKEW_EXCEEDED"
	CodeCertificateUnavailable   = "CERTIFICATE_UNAVAILABLE"
	CodeSignatureInvalid         = "SIGNATURE_INVALID"
	CodeVerifyException          = "VERIFY_EXCEPTION"
	CodeEncryptionKeyUnavailable = "ENCRYPTION_KEY_UNAVAILABLE"
	CodeUpstreamTimeout          = "UPSTREAM_TIMEOUT"
	CodeUpstreamStatus           = "UPSTREAM_STATUS"
)

// AppError represents a structured application error
type AppError struct {
	Type    ErrorType              `json:"type"`
	Message string                 `json:"message"`
	Code    string                 `json:"code,omitempty"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	parts := []string{string(e.Type), e.Message}

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("code=%s", e.Code))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause=%v", e.Cause))
	}

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		contextParts := make([]string, 0, len(keys))
		for _, k := range keys {
			contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, fmt.Sprintf("context={%s}", strings.Join(contextParts, ", ")))
	}

	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithCode adds an error code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// Status returns the upstream HTTP status recorded on the error, or 0
func (e *AppError) Status() int {
	if status, ok := e.Context["status"].(int); ok {
		return status
	}
	return 0
}

// ConnectionError creates a new connection error
func ConnectionError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeConnection,
		Message: msg,
		Cause:   cause,
	}
}

// ValidationError creates a new validation error
func ValidationError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeValidation,
		Message: msg,
	}
}

// ConfigError creates a new configuration error
func ConfigError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeConfig,
		Message: msg,
	}
}

// AuthError creates a new authentication error
func AuthError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeAuth,
		Message: msg,
	}
}

// InternalError creates a new internal error
func InternalError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeInternal,
		Message: msg,
		Cause:   cause,
	}
}

// TimeoutError creates a new timeout error
func TimeoutError(operation string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeTimeout,
		Message: fmt.Sprintf("timeout during %s", operation),
		Code:    CodeUpstreamTimeout,
		Cause:   cause,
	}
}

// FetchFailed reports a non-2xx response from a key material endpoint
func FetchFailed(resource string, status int) *AppError {
	return (&AppError{
		Type:    ErrTypeUpstream,
		Message: fmt.Sprintf("fetching %s returned status %d", resource, status),
		Code:    CodeFetchFailed,
	}).WithContext("status", status)
}

// KeyParseFailed reports key material that no decoder in the chain accepted
func KeyParseFailed(kind string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeUpstream,
		Message: fmt.Sprintf("unable to parse %s", kind),
		Code:    CodeKeyParseFailed,
		Cause:   cause,
	}
}

// MissingCredential reports a credential that is not configured for an environment
func MissingCredential(kind, environment string) *AppError {
	return (&AppError{
		Type:    ErrTypeConfig,
		Message: fmt.Sprintf("%s is not configured for %s", kind, environment),
		Code:    CodeMissingCredential,
	}).WithContext("credential", kind)
}

// TokenFetchFailed reports a non-2xx response from the token endpoint
func TokenFetchFailed(status int) *AppError {
	return (&AppError{
		Type:    ErrTypeUpstream,
		Message: fmt.Sprintf("token endpoint returned status %d", status),
		Code:    CodeTokenFetchFailed,
	}).WithContext("status", status)
}

// TokenResponseMalformed reports a token response with no usable access token
func TokenResponseMalformed(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeUpstream,
		Message: msg,
		Code:    CodeTokenResponseMalformed,
		Cause:   cause,
	}
}

// UpstreamStatus reports a non-2xx answer to a general provider call
func UpstreamStatus(method, path string, status int) *AppError {
	return (&AppError{
		Type:    ErrTypeUpstream,
		Message: fmt.Sprintf("%s %s returned status %d", method, path, status),
		Code:    CodeUpstreamStatus,
	}).WithContext("status", status)
}

// EncryptionKeyUnavailable wraps a key fetch or parse failure on the encryption path
func EncryptionKeyUnavailable(cause error) *AppError {
	return &AppError{
		Type:    ErrTypeUpstream,
		Message: "encryption public key unavailable",
		Code:    CodeEncryptionKeyUnavailable,
		Cause:   cause,
	}
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return false
	}
	return appErr.Type == errType
}

// HasCode reports whether err, or any AppError it wraps, carries code
func HasCode(err error, code string) bool {
	for err != nil {
		var appErr *AppError
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Cause
	}
	return false
}

// GetType returns the error type if it's an AppError, otherwise returns ErrTypeInternal
func GetType(err error) ErrorType {
	if err == nil {
		return ""
	}

	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return ErrTypeInternal
	}

	return appErr.Type
}
