package wcx

import (
	"fmt"
	"reflect"
	"regexp"
	"sync"

	"github.com/pthm/wcx/lib/encoding"
)

var propertyNamePattern = regexp.MustCompile(`^[a-z][a-z0-9]*(-[a-z0-9]+)*$`)

// PropertyData is the immutable descriptor of one exported property.
type PropertyData struct {
	Name     string
	Type     reflect.Type
	ReadOnly bool
	Default  any
}

// ValidatePropertyName reports whether name is a usable property name:
// lowercase words joined by single dashes. Any upper-case letter is rejected.
func ValidatePropertyName(name string) error {
	if !propertyNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q must be lowercase words separated by dashes", ErrInvalidPropertyName, name)
	}
	return nil
}

// PropertyBinding[T] pairs a PropertyData with the live value of one
// component instance and an optional change listener.
//
// The rules for an incoming update are:
//   - a read-only binding ignores the update
//   - a non-nil value that is not assignable to T fails with ErrTypeMismatch
//   - nil is replaced by the declared default
//   - the listener only fires when the stored value actually changes
type PropertyBinding[T any] struct {
	mu       sync.Mutex
	data     PropertyData
	def      T
	value    T
	listener func(T)
}

// NewPropertyBinding creates a binding holding the default value. A Default
// that is not a T is ignored and the zero value is used instead.
func NewPropertyBinding[T any](data PropertyData, listener func(T)) *PropertyBinding[T] {
	def, _ := data.Default.(T)
	return &PropertyBinding[T]{
		data:     data,
		def:      def,
		value:    def,
		listener: listener,
	}
}

// Data returns the property descriptor.
func (b *PropertyBinding[T]) Data() PropertyData {
	return b.data
}

// Value returns the current value.
func (b *PropertyBinding[T]) Value() T {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.value
}

// UpdateValue applies an untyped update. It returns whether the stored value
// changed (and therefore whether the listener ran).
func (b *PropertyBinding[T]) UpdateValue(v any) (bool, error) {
	if b.data.ReadOnly {
		return false, nil
	}
	if isNilValue(v) {
		return b.apply(b.def, true), nil
	}
	typed, ok := v.(T)
	if !ok {
		return false, fmt.Errorf("%w: property %q expects %s, got %T",
			ErrTypeMismatch, b.data.Name, b.data.Type, v)
	}
	return b.apply(typed, true), nil
}

// Set applies a typed update with the same read-only and change rules as
// UpdateValue.
func (b *PropertyBinding[T]) Set(v T) bool {
	if b.data.ReadOnly {
		return false
	}
	return b.apply(v, true)
}

// UpdateRaw decodes a msgpack-encoded value into T and applies it. An
// encoded nil resets the property to its default.
func (b *PropertyBinding[T]) UpdateRaw(raw []byte) (bool, error) {
	if b.data.ReadOnly {
		return false, nil
	}
	if encoding.IsNil(raw) {
		return b.apply(b.def, true), nil
	}
	var v T
	if err := encoding.UnmarshalValue(raw, &v); err != nil {
		return false, fmt.Errorf("%w: property %q expects %s: %v",
			ErrTypeMismatch, b.data.Name, b.data.Type, err)
	}
	return b.apply(v, true), nil
}

// Encode returns the current value in wire form.
func (b *PropertyBinding[T]) Encode() ([]byte, error) {
	return encoding.MarshalValue(b.Value())
}

// store replaces the value without consulting ReadOnly and without firing
// the listener. Used for server-originated updates.
func (b *PropertyBinding[T]) store(v any) (bool, error) {
	var typed T
	if isNilValue(v) {
		typed = b.def
	} else {
		var ok bool
		typed, ok = v.(T)
		if !ok {
			return false, fmt.Errorf("%w: property %q expects %s, got %T",
				ErrTypeMismatch, b.data.Name, b.data.Type, v)
		}
	}
	return b.apply(typed, false), nil
}

func (b *PropertyBinding[T]) storeRaw(raw []byte) (bool, error) {
	if encoding.IsNil(raw) {
		return b.apply(b.def, false), nil
	}
	var v T
	if err := encoding.UnmarshalValue(raw, &v); err != nil {
		return false, fmt.Errorf("%w: property %q expects %s: %v",
			ErrTypeMismatch, b.data.Name, b.data.Type, err)
	}
	return b.apply(v, false), nil
}

func (b *PropertyBinding[T]) apply(v T, notify bool) bool {
	b.mu.Lock()
	if reflect.DeepEqual(b.value, v) {
		b.mu.Unlock()
		return false
	}
	b.value = v
	listener := b.listener
	b.mu.Unlock()

	if notify && listener != nil {
		listener(v)
	}
	return true
}

// propertyBinding is the type-erased view WebComponentBinding dispatches to.
type propertyBinding interface {
	Data() PropertyData
	UpdateValue(v any) (bool, error)
	UpdateRaw(raw []byte) (bool, error)
	Encode() ([]byte, error)
	current() any
	store(v any) (bool, error)
	storeRaw(raw []byte) (bool, error)
}

func (b *PropertyBinding[T]) current() any {
	return b.Value()
}
