package wcx

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/pthm/wcx/lib/encoding"
)

// FrameRecorder is an in-memory FrameWriter for tests.
type FrameRecorder struct {
	mu     sync.Mutex
	frames []Frame

	// Err, when set, is returned by every WriteFrame call.
	Err error
}

// WriteFrame implements FrameWriter.
func (r *FrameRecorder) WriteFrame(f Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.frames = append(r.frames, f)
	return nil
}

// Frames returns a copy of the recorded frames.
func (r *FrameRecorder) Frames() []Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Frame(nil), r.frames...)
}

// Ops returns the op of every recorded frame.
func (r *FrameRecorder) Ops() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ops := make([]string, len(r.frames))
	for i, f := range r.frames {
		ops[i] = f.Op
	}
	return ops
}

// Reset discards the recorded frames.
func (r *FrameRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = nil
}

func (r *FrameRecorder) byRef(ref string) (Frame, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.frames) - 1; i >= 0; i-- {
		if r.frames[i].Ref == ref {
			return r.frames[i], true
		}
	}
	return Frame{}, false
}

// TestSession drives a Session without a websocket, the way a browser
// would.
//
//	ts := wcx.NewTestSession(reg)
//	id, err := ts.Attach(ctx, "user-box", map[string]any{"name": "Ada"})
//	err = ts.Update(ctx, id, "name", "Grace")
//	var name string
//	ok, err := ts.LastChange(id, "name", &name)
type TestSession struct {
	*Session
	Recorder *FrameRecorder

	mu   sync.Mutex
	refs int
}

// NewTestSession opens a session on reg that records its frames.
func NewTestSession(reg *Registry) *TestSession {
	rec := &FrameRecorder{}
	return &TestSession{Session: reg.NewSession(rec), Recorder: rec}
}

func (ts *TestSession) nextRef() string {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.refs++
	return "t" + strconv.Itoa(ts.refs)
}

// Attach embeds tag with props, attaches it as a client would and returns
// the instance id. An error frame from the session is returned as an error.
func (ts *TestSession) Attach(ctx context.Context, tag string, props map[string]any) (string, error) {
	f := Frame{Op: OpAttach, Ref: ts.nextRef(), Tag: tag}
	if cfg, ok := ts.reg.Configuration(tag); ok && props != nil {
		token, err := sealToken(ts.reg.encoder, cfg, props)
		if err != nil {
			return "", err
		}
		f.Token = token
	}

	reply, err := ts.roundTrip(ctx, f)
	if err != nil {
		return "", err
	}
	if reply.Op != OpAttached {
		return "", fmt.Errorf("wcx: attach <%s>: unexpected %q frame", tag, reply.Op)
	}
	return reply.ID, nil
}

// Update sends a client-side property change.
func (ts *TestSession) Update(ctx context.Context, id, prop string, v any) error {
	raw, err := encoding.MarshalValue(v)
	if err != nil {
		return err
	}
	_, err = ts.roundTrip(ctx, Frame{Op: OpUpdate, Ref: ts.nextRef(), ID: id, Prop: prop, Value: raw})
	return err
}

// Detach removes an instance.
func (ts *TestSession) Detach(ctx context.Context, id string) error {
	_, err := ts.roundTrip(ctx, Frame{Op: OpDetach, Ref: ts.nextRef(), ID: id})
	return err
}

// LastChange decodes the most recent server push of prop on instance id
// into dst. It reports false when nothing was pushed.
func (ts *TestSession) LastChange(id, prop string, dst any) (bool, error) {
	frames := ts.Recorder.Frames()
	for i := len(frames) - 1; i >= 0; i-- {
		f := frames[i]
		if f.Op == OpChanged && f.ID == id && f.Prop == prop {
			return true, encoding.UnmarshalValue(f.Value, dst)
		}
	}
	return false, nil
}

// Events returns the events fired on instance id, in order.
func (ts *TestSession) Events(id string) []Frame {
	var out []Frame
	for _, f := range ts.Recorder.Frames() {
		if f.Op == OpEvent && f.ID == id {
			out = append(out, f)
		}
	}
	return out
}

func (ts *TestSession) roundTrip(ctx context.Context, f Frame) (Frame, error) {
	if err := ts.Handle(ctx, f); err != nil {
		return Frame{}, err
	}
	reply, ok := ts.Recorder.byRef(f.Ref)
	if !ok {
		// detach answers nothing on success
		return Frame{}, nil
	}
	if reply.Op == OpError {
		return reply, errors.New(reply.Err)
	}
	return reply, nil
}
