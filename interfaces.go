package wcx

import "context"

// Attacher is implemented by components that need to run code once their
// instance is bound to a session, after the exporter's instance
// configurator has run.
//
// Example:
//
//	func (b *UserBox) Attach(ctx context.Context) error {
//	    b.user = b.store.Load(ctx, b.userID)
//	    return nil
//	}
//
// Returning an error aborts the attach; the client receives an error frame.
type Attacher interface {
	Attach(ctx context.Context) error
}

// Detacher is implemented by components that hold resources tied to the
// session. Detach is called when the client detaches the element or the
// session ends.
type Detacher interface {
	Detach(ctx context.Context) error
}
