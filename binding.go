package wcx

import (
	"context"
	"fmt"
	"reflect"

	"github.com/pthm/wcx/lib/encoding"
)

// Sink receives server-originated changes of a bound instance, typically a
// Session forwarding them to the browser.
type Sink interface {
	PropertyChanged(id, name string, value []byte) error
	Event(id, name string, detail []byte) error
}

type discardSink struct{}

func (discardSink) PropertyChanged(string, string, []byte) error { return nil }
func (discardSink) Event(string, string, []byte) error           { return nil }

// Binding is the type-erased view of a WebComponentBinding.
type Binding interface {
	ID() string
	Tag() string
	Component() any
	PropertyType(name string) (reflect.Type, bool)
	Property(name string) (any, bool)
	UpdateProperty(name string, v any) (bool, error)
	UpdatePropertyRaw(name string, raw []byte) (bool, error)
	Snapshot() map[string]any
	EncodedSnapshot() (map[string][]byte, error)
	Close(ctx context.Context) error
}

// WebComponentBinding[C] owns one component instance and the bindings of
// all its properties.
type WebComponentBinding[C any] struct {
	id        string
	tag       string
	component *C
	props     map[string]propertyBinding
	order     []string
	sink      Sink
}

// ID returns the instance id.
func (b *WebComponentBinding[C]) ID() string { return b.id }

// Tag returns the custom element name.
func (b *WebComponentBinding[C]) Tag() string { return b.tag }

// Component returns the *C instance as any.
func (b *WebComponentBinding[C]) Component() any { return b.component }

// Typed returns the component instance.
func (b *WebComponentBinding[C]) Typed() *C { return b.component }

// PropertyType returns the declared type of a property.
func (b *WebComponentBinding[C]) PropertyType(name string) (reflect.Type, bool) {
	pb, ok := b.props[name]
	if !ok {
		return nil, false
	}
	return pb.Data().Type, true
}

// Property returns the current value of a property.
func (b *WebComponentBinding[C]) Property(name string) (any, bool) {
	pb, ok := b.props[name]
	if !ok {
		return nil, false
	}
	return pb.current(), true
}

// UpdateProperty dispatches an untyped update to the named property.
func (b *WebComponentBinding[C]) UpdateProperty(name string, v any) (bool, error) {
	pb, err := b.lookup(name)
	if err != nil {
		return false, err
	}
	return pb.UpdateValue(v)
}

// UpdatePropertyRaw dispatches a wire-encoded update to the named property.
func (b *WebComponentBinding[C]) UpdatePropertyRaw(name string, raw []byte) (bool, error) {
	pb, err := b.lookup(name)
	if err != nil {
		return false, err
	}
	return pb.UpdateRaw(raw)
}

// Snapshot returns all current property values.
func (b *WebComponentBinding[C]) Snapshot() map[string]any {
	out := make(map[string]any, len(b.props))
	for name, pb := range b.props {
		out[name] = pb.current()
	}
	return out
}

// EncodedSnapshot returns all current values in wire form.
func (b *WebComponentBinding[C]) EncodedSnapshot() (map[string][]byte, error) {
	out := make(map[string][]byte, len(b.props))
	for _, name := range b.order {
		raw, err := b.props[name].Encode()
		if err != nil {
			return nil, fmt.Errorf("wcx: encode %q: %w", name, err)
		}
		out[name] = raw
	}
	return out, nil
}

// Close notifies a Detacher component that its instance is gone.
func (b *WebComponentBinding[C]) Close(ctx context.Context) error {
	if d, ok := any(b.component).(Detacher); ok {
		return d.Detach(ctx)
	}
	return nil
}

func (b *WebComponentBinding[C]) lookup(name string) (propertyBinding, error) {
	pb, ok := b.props[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q on <%s>", ErrUnknownProperty, name, b.tag)
	}
	return pb, nil
}

// Instance[C] is the handle given to instance configurators. It lets server
// code push property values and events to the browser.
type Instance[C any] struct {
	binding *WebComponentBinding[C]
}

// ID returns the instance id.
func (i *Instance[C]) ID() string { return i.binding.id }

// Component returns the component instance.
func (i *Instance[C]) Component() *C { return i.binding.component }

// Property returns the current value of a property.
func (i *Instance[C]) Property(name string) (any, bool) {
	return i.binding.Property(name)
}

// SetProperty stores v and pushes it to the client. The property's change
// listener is not invoked and read-only properties may be set.
func (i *Instance[C]) SetProperty(name string, v any) error {
	pb, err := i.binding.lookup(name)
	if err != nil {
		return err
	}
	changed, err := pb.store(v)
	if err != nil || !changed {
		return err
	}
	raw, err := pb.Encode()
	if err != nil {
		return err
	}
	return i.binding.sink.PropertyChanged(i.binding.id, name, raw)
}

// FireEvent dispatches a custom DOM event with the given detail on the
// client-side element.
func (i *Instance[C]) FireEvent(name string, detail any) error {
	raw, err := encoding.MarshalValue(detail)
	if err != nil {
		return err
	}
	return i.binding.sink.Event(i.binding.id, name, raw)
}
