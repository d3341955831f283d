// Package wcx exports Go component types as browser custom elements whose
// properties stay synchronised with the server over a websocket session.
//
// # Exporters
//
// An exporter names the custom element, the Go type backing it and the
// typed properties it exposes:
//
//	func NewUserBoxExporter() (*wcx.Exporter[UserBox], error) {
//	    e, err := wcx.NewExporter[UserBox]("user-box", nil)
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
// Tags must contain a dash and property names are lowercase words joined
// by dashes; both are checked when declared. Change listeners are plain
// typed functions, so a client update reaches the component without
// reflection.
//
// # Property Rules
//
// A client update to a property is ignored when the property is read-only,
// fails with ErrTypeMismatch when the value does not decode into the
// declared type, resets to the default when nil, and only runs the
// listener when the stored value changes.
//
// # Registry
//
// A Registry is an explicit value, one per application context. It holds
// an immutable snapshot of configurations committed with SetConfigurations:
//
//	reg := wcx.NewRegistry(key)
//	cfgs, err := wcx.Collect(userBoxExporter, myComponentExporter)
//	...
//	reg.SetConfigurations(cfgs)
//
// Under the default SetOnce policy exactly one commit succeeds, even when
// racing; LastWriteWins accepts every commit for applications that
// reinitialise the same context.
//
// # Sessions and Security
//
// Embed renders an element carrying an instance token: the tag and initial
// property values as msgpack, HMAC-signed, or AES-GCM encrypted for
// exporters marked Sensitive. The browser opens Handler's websocket
// endpoint and attaches elements with their tokens; the server answers with
// the bound property values and afterwards pushes changes and events.
//
// # Manifests
//
// Run 'wcx generate' to scan packages for directives:
//
//	//wcx:export    on func() (*wcx.Exporter[T], error)
//	//wcx:route /p  on func() http.Handler
//	//wcx:appshell  on func(*wcx.AppShell)
//
// Each package gets a wcx_manifest_gen.go with a Manifest function, and
// Boot assembles the manifests at startup. There is no runtime scanning.
package wcx
