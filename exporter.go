package wcx

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"slices"
)

var tagPattern = regexp.MustCompile(`^[a-z][a-z0-9]*(-[a-z0-9]+)+$`)

// Exporter[C] declares how Go component type C is exposed as a custom
// element: the tag, the typed property set and an optional per-instance
// configurator.
//
// Example:
//
//	func NewUserBoxExporter() (*wcx.Exporter[UserBox], error) {
//	    e, err := wcx.NewExporter("user-box", NewUserBox)
//	    if err != nil {
//	        return nil, err
//	    }
//	    name, err := wcx.AddProperty(e, "name", "anonymous")
//	    if err != nil {
//	        return nil, err
//	    }
//	    name.OnChange((*UserBox).SetName)
//	    return e, nil
//	}
//
// An exporter is a mutable builder. Configuration() freezes it into the
// immutable descriptor the registry stores.
type Exporter[C any] struct {
	tag       string
	factory   func() *C
	props     []propertyDecl[C]
	configure func(ctx context.Context, inst *Instance[C]) error
	template  string
	sensitive bool
}

// NewExporter creates an exporter for tag. factory may be nil, in which case
// instances are created with new(C).
func NewExporter[C any](tag string, factory func() *C) (*Exporter[C], error) {
	if err := ValidateTag(tag); err != nil {
		return nil, err
	}
	if factory == nil {
		factory = func() *C { return new(C) }
	}
	return &Exporter[C]{tag: tag, factory: factory}, nil
}

// ValidateTag reports whether tag is a valid custom element name.
func ValidateTag(tag string) error {
	if !tagPattern.MatchString(tag) {
		return fmt.Errorf("%w: %q must be lowercase and contain a dash", ErrInvalidTag, tag)
	}
	return nil
}

// Tag returns the custom element name.
func (e *Exporter[C]) Tag() string {
	return e.tag
}

// Sensitive marks instance tokens of this component as encrypted rather
// than signed.
func (e *Exporter[C]) Sensitive() *Exporter[C] {
	e.sensitive = true
	return e
}

// Template declares the HTML import holding a <dom-module id="tag"> whose
// template is rendered as the element's light DOM.
func (e *Exporter[C]) Template(importPath string) *Exporter[C] {
	e.template = importPath
	return e
}

// ConfigureInstance registers a callback invoked once for every created
// instance, after its initial property values have been applied.
func (e *Exporter[C]) ConfigureInstance(fn func(ctx context.Context, inst *Instance[C]) error) *Exporter[C] {
	e.configure = fn
	return e
}

// PropertyConfig[C, T] is the handle returned by AddProperty.
type PropertyConfig[C, T any] struct {
	data     PropertyData
	onChange func(*C, T)
}

// AddProperty declares a property of type T on e with default value def.
// The name must be lowercase-with-dashes and unique within the exporter.
func AddProperty[C, T any](e *Exporter[C], name string, def T) (*PropertyConfig[C, T], error) {
	if err := ValidatePropertyName(name); err != nil {
		return nil, err
	}
	for _, p := range e.props {
		if p.propertyData().Name == name {
			return nil, fmt.Errorf("%w: %q on <%s>", ErrDuplicateProperty, name, e.tag)
		}
	}

	var defAny any
	if !isNilValue(def) {
		defAny = def
	}
	pc := &PropertyConfig[C, T]{
		data: PropertyData{
			Name:    name,
			Type:    reflect.TypeFor[T](),
			Default: defAny,
		},
	}
	e.props = append(e.props, pc)
	return pc, nil
}

// OnChange sets the typed update function called when a client changes the
// property value.
func (p *PropertyConfig[C, T]) OnChange(fn func(*C, T)) *PropertyConfig[C, T] {
	p.onChange = fn
	return p
}

// ReadOnly makes the property immune to client updates.
func (p *PropertyConfig[C, T]) ReadOnly() *PropertyConfig[C, T] {
	p.data.ReadOnly = true
	return p
}

// Name returns the property name.
func (p *PropertyConfig[C, T]) Name() string {
	return p.data.Name
}

type propertyDecl[C any] interface {
	propertyData() PropertyData
	bind(c *C) propertyBinding
	freeze() propertyDecl[C]
}

func (p *PropertyConfig[C, T]) propertyData() PropertyData {
	return p.data
}

func (p *PropertyConfig[C, T]) bind(c *C) propertyBinding {
	var listener func(T)
	if p.onChange != nil {
		fn := p.onChange
		listener = func(v T) { fn(c, v) }
	}
	return NewPropertyBinding(p.data, listener)
}

func (p *PropertyConfig[C, T]) freeze() propertyDecl[C] {
	cp := *p
	return &cp
}

// Configurer is anything that can produce a Configuration; *Exporter[C]
// implements it.
type Configurer interface {
	Configuration() Configuration
}

// Configuration is the immutable descriptor of one exported component.
type Configuration interface {
	Tag() string
	ComponentType() reflect.Type
	Properties() []PropertyData
	PropertyData(name string) (PropertyData, bool)
	TemplatePath() string
	Sensitive() bool

	// Bind instantiates the component and its property bindings. initial
	// holds wire-encoded starting values keyed by property name.
	Bind(ctx context.Context, id string, sink Sink, initial map[string][]byte) (Binding, error)
}

// Configuration freezes the exporter.
func (e *Exporter[C]) Configuration() Configuration {
	props := make([]propertyDecl[C], len(e.props))
	for i, p := range e.props {
		props[i] = p.freeze()
	}
	return &configuration[C]{
		tag:       e.tag,
		factory:   e.factory,
		props:     props,
		configure: e.configure,
		template:  e.template,
		sensitive: e.sensitive,
	}
}

type configuration[C any] struct {
	tag       string
	factory   func() *C
	props     []propertyDecl[C]
	configure func(ctx context.Context, inst *Instance[C]) error
	template  string
	sensitive bool
}

func (c *configuration[C]) Tag() string                 { return c.tag }
func (c *configuration[C]) ComponentType() reflect.Type { return reflect.TypeFor[C]() }
func (c *configuration[C]) TemplatePath() string        { return c.template }
func (c *configuration[C]) Sensitive() bool             { return c.sensitive }

func (c *configuration[C]) Properties() []PropertyData {
	out := make([]PropertyData, len(c.props))
	for i, p := range c.props {
		out[i] = p.propertyData()
	}
	return out
}

func (c *configuration[C]) PropertyData(name string) (PropertyData, bool) {
	i := slices.IndexFunc(c.props, func(p propertyDecl[C]) bool {
		return p.propertyData().Name == name
	})
	if i < 0 {
		return PropertyData{}, false
	}
	return c.props[i].propertyData(), true
}

func (c *configuration[C]) Bind(ctx context.Context, id string, sink Sink, initial map[string][]byte) (Binding, error) {
	if sink == nil {
		sink = discardSink{}
	}
	component := c.factory()
	b := &WebComponentBinding[C]{
		id:        id,
		tag:       c.tag,
		component: component,
		props:     make(map[string]propertyBinding, len(c.props)),
		sink:      sink,
	}
	for _, p := range c.props {
		name := p.propertyData().Name
		b.props[name] = p.bind(component)
		b.order = append(b.order, name)
	}

	for name, raw := range initial {
		pb, ok := b.props[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q on <%s>", ErrUnknownProperty, name, c.tag)
		}
		var err error
		if pb.Data().ReadOnly {
			_, err = pb.storeRaw(raw)
		} else {
			_, err = pb.UpdateRaw(raw)
		}
		if err != nil {
			return nil, err
		}
	}

	if c.configure != nil {
		if err := c.configure(ctx, &Instance[C]{binding: b}); err != nil {
			return nil, fmt.Errorf("wcx: configure <%s>: %w", c.tag, err)
		}
	}
	if a, ok := any(component).(Attacher); ok {
		if err := a.Attach(ctx); err != nil {
			return nil, fmt.Errorf("wcx: attach <%s>: %w", c.tag, err)
		}
	}
	return b, nil
}

func isNilValue(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
