package wcx

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/pthm/wcx/lib/encoding"
)

var sentinels = []error{
	ErrNotFound,
	ErrInvalidTag,
	ErrInvalidPropertyName,
	ErrDuplicateProperty,
	ErrDuplicateTag,
	ErrUnknownProperty,
	ErrTypeMismatch,
	ErrAmbiguousRoute,
	ErrDuplicateAppShell,
	ErrAlreadyInitialized,
	ErrDecryptFailed,
	ErrSignatureInvalid,
	ErrInvalidFormat,
}

func TestSentinelErrors(t *testing.T) {
	// Verify sentinel errors are distinct
	for i, err1 := range sentinels {
		for j, err2 := range sentinels {
			if i != j && errors.Is(err1, err2) {
				t.Errorf("Sentinel errors should be distinct: %v and %v", err1, err2)
			}
		}
	}
}

func TestErrorMessages(t *testing.T) {
	for _, err := range sentinels {
		if !strings.HasPrefix(err.Error(), "wcx: ") {
			t.Errorf("Error %q should start with 'wcx: '", err.Error())
		}
	}
}

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		expect bool
	}{
		{"nil error", nil, false},
		{"ErrNotFound", ErrNotFound, true},
		{"wrapped ErrNotFound", fmt.Errorf("wrapped: %w", ErrNotFound), true},
		{"other error", errors.New("other error"), false},
		{"ErrDecryptFailed", ErrDecryptFailed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsNotFound(tt.err)
			if result != tt.expect {
				t.Errorf("IsNotFound(%v) = %v, want %v", tt.err, result, tt.expect)
			}
		})
	}
}

func TestIsTokenError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		expect bool
	}{
		{"nil error", nil, false},
		{"ErrDecryptFailed", ErrDecryptFailed, true},
		{"ErrSignatureInvalid", ErrSignatureInvalid, true},
		{"ErrInvalidFormat", ErrInvalidFormat, true},
		{"wrapped ErrSignatureInvalid", fmt.Errorf("wrapped: %w", ErrSignatureInvalid), true},
		{"ErrNotFound", ErrNotFound, false},
		{"other error", errors.New("other error"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsTokenError(tt.err)
			if result != tt.expect {
				t.Errorf("IsTokenError(%v) = %v, want %v", tt.err, result, tt.expect)
			}
		})
	}
}

func TestIsValidationError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		expect bool
	}{
		{"ErrInvalidTag", ErrInvalidTag, true},
		{"ErrInvalidPropertyName", ErrInvalidPropertyName, true},
		{"ErrDuplicateProperty", fmt.Errorf("x: %w", ErrDuplicateProperty), true},
		{"ErrDuplicateTag", ErrDuplicateTag, true},
		{"ErrTypeMismatch", ErrTypeMismatch, false},
		{"nil error", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidationError(tt.err); got != tt.expect {
				t.Errorf("IsValidationError(%v) = %v, want %v", tt.err, got, tt.expect)
			}
		})
	}
}

func TestWrapEncodingError(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		expectWrapped error
		isTokenError  bool
	}{
		{"nil error", nil, nil, false},
		{"encoding.ErrInvalidFormat", encoding.ErrInvalidFormat, ErrInvalidFormat, true},
		{"encoding.ErrSignatureInvalid", encoding.ErrSignatureInvalid, ErrSignatureInvalid, true},
		{"encoding.ErrDecryptFailed", encoding.ErrDecryptFailed, ErrDecryptFailed, true},
		{"other error passthrough", errors.New("other"), nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := wrapEncodingError(tt.err)

			if tt.expectWrapped != nil && !errors.Is(result, tt.expectWrapped) {
				t.Errorf("wrapEncodingError(%v) = %v, want %v", tt.err, result, tt.expectWrapped)
			}
			if tt.isTokenError != IsTokenError(result) {
				t.Errorf("IsTokenError(wrapEncodingError(%v)) = %v", tt.err, !tt.isTokenError)
			}
			if tt.err == nil && result != nil {
				t.Errorf("wrapEncodingError(nil) = %v", result)
			}
		})
	}
}
