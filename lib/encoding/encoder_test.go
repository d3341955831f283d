package encoding

import (
	"errors"
	"strings"
	"testing"

	"github.com/vmihailenco/msgpack/v5"
)

type testState struct {
	Tag   string                        `msgpack:"t"`
	Props map[string]msgpack.RawMessage `msgpack:"p"`
}

func newTestState(t *testing.T) testState {
	t.Helper()
	name, err := MarshalValue("Ada")
	if err != nil {
		t.Fatalf("MarshalValue failed: %v", err)
	}
	age, err := MarshalValue(36)
	if err != nil {
		t.Fatalf("MarshalValue failed: %v", err)
	}
	return testState{
		Tag:   "user-box",
		Props: map[string]msgpack.RawMessage{"name": name, "age": age},
	}
}

func TestNewEncoder(t *testing.T) {
	if _, err := NewEncoder([]byte("short")); err != nil {
		t.Fatalf("NewEncoder with short key failed: %v", err)
	}
	if _, err := NewEncoder([]byte("this-is-a-32-byte-key-for-aes!!!")); err != nil {
		t.Fatalf("NewEncoder with 32-byte key failed: %v", err)
	}
}

func TestRoundTrip(t *testing.T) {
	for _, sensitive := range []bool{false, true} {
		name := "signed"
		if sensitive {
			name = "encrypted"
		}
		t.Run(name, func(t *testing.T) {
			enc, err := NewEncoder([]byte("test-key"))
			if err != nil {
				t.Fatalf("NewEncoder failed: %v", err)
			}

			original := newTestState(t)
			token, err := enc.Seal(original, sensitive)
			if err != nil {
				t.Fatalf("Seal failed: %v", err)
			}
			if sensitive == strings.Contains(token, ".") {
				t.Errorf("token %q has unexpected shape for sensitive=%v", token, sensitive)
			}

			var decoded testState
			if err := enc.Open(token, sensitive, &decoded); err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			if decoded.Tag != original.Tag {
				t.Errorf("Tag = %q, want %q", decoded.Tag, original.Tag)
			}

			var age int
			if err := UnmarshalValue(decoded.Props["age"], &age); err != nil {
				t.Fatalf("UnmarshalValue failed: %v", err)
			}
			if age != 36 {
				t.Errorf("age = %d, want 36", age)
			}
		})
	}
}

func TestOpenRejectsTampering(t *testing.T) {
	enc, _ := NewEncoder([]byte("test-key"))
	other, _ := NewEncoder([]byte("other-key"))

	signed, err := enc.Seal(newTestState(t), false)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	encrypted, err := enc.Seal(newTestState(t), true)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	forged, err := enc.Seal(testState{Tag: "evil-box"}, false)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	body, _, _ := strings.Cut(forged, ".")
	_, sig, _ := strings.Cut(signed, ".")

	tests := []struct {
		name      string
		enc       *Encoder
		token     string
		sensitive bool
		want      error
	}{
		{"missing signature", enc, "abc", false, ErrInvalidFormat},
		{"bad base64", enc, "!!!.???", false, ErrInvalidFormat},
		{"wrong key signed", other, signed, false, ErrSignatureInvalid},
		{"swapped payload", enc, body + "." + sig, false, ErrSignatureInvalid},
		{"wrong key encrypted", other, encrypted, true, ErrDecryptFailed},
		{"short ciphertext", enc, "AAAA", true, ErrInvalidFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out testState
			err := tt.enc.Open(tt.token, tt.sensitive, &out)
			if !errors.Is(err, tt.want) {
				t.Errorf("Open() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestIsNil(t *testing.T) {
	encodedNil, _ := MarshalValue(nil)
	encodedZero, _ := MarshalValue(0)

	tests := []struct {
		name string
		raw  []byte
		want bool
	}{
		{"empty", nil, true},
		{"msgpack nil", encodedNil, true},
		{"zero int", encodedZero, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNil(tt.raw); got != tt.want {
				t.Errorf("IsNil(%v) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}
