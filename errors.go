package wcx

import (
	"errors"

	"github.com/pthm/wcx/lib/encoding"
)

// Sentinel errors for registry and binding operations.
var (
	ErrNotFound            = errors.New("wcx: web component not found")
	ErrInvalidTag          = errors.New("wcx: invalid custom element tag")
	ErrInvalidPropertyName = errors.New("wcx: invalid property name")
	ErrDuplicateProperty   = errors.New("wcx: duplicate property")
	ErrDuplicateTag        = errors.New("wcx: duplicate tag")
	ErrUnknownProperty     = errors.New("wcx: unknown property")
	ErrTypeMismatch        = errors.New("wcx: property type mismatch")
	ErrAmbiguousRoute      = errors.New("wcx: ambiguous route")
	ErrDuplicateAppShell   = errors.New("wcx: more than one app shell configurator")
	ErrAlreadyInitialized  = errors.New("wcx: already initialized")
	ErrDecryptFailed       = errors.New("wcx: token decryption failed")
	ErrSignatureInvalid    = errors.New("wcx: token signature verification failed")
	ErrInvalidFormat       = errors.New("wcx: invalid token format")
)

// IsNotFound checks if err is a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsTokenError checks if err is a token decryption, signature or format error.
func IsTokenError(err error) bool {
	return errors.Is(err, ErrDecryptFailed) ||
		errors.Is(err, ErrSignatureInvalid) ||
		errors.Is(err, ErrInvalidFormat)
}

// IsValidationError checks if err was raised while validating an exporter
// declaration (tag, property name or duplicate registration).
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidTag) ||
		errors.Is(err, ErrInvalidPropertyName) ||
		errors.Is(err, ErrDuplicateProperty) ||
		errors.Is(err, ErrDuplicateTag)
}

// wrapEncodingError maps encoding package errors onto wcx sentinel errors.
func wrapEncodingError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, encoding.ErrInvalidFormat) {
		return ErrInvalidFormat
	}
	if errors.Is(err, encoding.ErrSignatureInvalid) {
		return ErrSignatureInvalid
	}
	if errors.Is(err, encoding.ErrDecryptFailed) {
		return ErrDecryptFailed
	}
	return err
}
