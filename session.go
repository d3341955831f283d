package wcx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

// Frame operations.
const (
	// client -> server
	OpAttach = "attach"
	OpUpdate = "update"
	OpDetach = "detach"

	// server -> client
	OpAttached = "attached"
	OpAck      = "ack"
	OpChanged  = "changed"
	OpEvent    = "event"
	OpError    = "error"
)

// Frame is one msgpack-encoded websocket message.
type Frame struct {
	Op    string                        `msgpack:"op"`
	Ref   string                        `msgpack:"ref,omitempty"`
	ID    string                        `msgpack:"id,omitempty"`
	Tag   string                        `msgpack:"tag,omitempty"`
	Token string                        `msgpack:"tok,omitempty"`
	Prop  string                        `msgpack:"prop,omitempty"`
	Value msgpack.RawMessage            `msgpack:"val,omitempty"`
	Props map[string]msgpack.RawMessage `msgpack:"props,omitempty"`
	Err   string                        `msgpack:"err,omitempty"`
}

// FrameWriter delivers frames to the client. Implementations must be safe
// for concurrent use.
type FrameWriter interface {
	WriteFrame(Frame) error
}

// Session holds the bindings of one synchronised client. Bindings live as
// long as the session.
type Session struct {
	reg    *Registry
	id     string
	out    FrameWriter
	logger *zap.Logger

	mu       sync.Mutex
	bindings map[string]Binding
	closed   bool
}

// NewSession creates a session writing to out.
func (reg *Registry) NewSession(out FrameWriter) *Session {
	id := uuid.NewString()
	reg.metrics.SessionOpened()
	return &Session{
		reg:      reg,
		id:       id,
		out:      out,
		logger:   reg.logger.With(zap.String("session", id)),
		bindings: make(map[string]Binding),
	}
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Binding returns the binding of an attached instance.
func (s *Session) Binding(id string) (Binding, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bindings[id]
	return b, ok
}

// Len returns the number of attached instances.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bindings)
}

// Handle processes one client frame. Failures are reported to the client as
// error frames; the returned error is only non-nil when writing to the
// client failed.
func (s *Session) Handle(ctx context.Context, f Frame) error {
	var err error
	switch f.Op {
	case OpAttach:
		err = s.attach(ctx, f)
	case OpUpdate:
		err = s.update(f)
	case OpDetach:
		err = s.detach(ctx, f)
	default:
		err = fmt.Errorf("%w: unknown op %q", ErrInvalidFormat, f.Op)
	}
	if err == nil {
		return nil
	}
	s.logger.Debug("frame rejected", zap.String("op", f.Op), zap.String("id", f.ID), zap.Error(err))
	return s.out.WriteFrame(Frame{Op: OpError, Ref: f.Ref, ID: f.ID, Err: err.Error()})
}

func (s *Session) attach(ctx context.Context, f Frame) error {
	cfg, ok := s.reg.Configuration(f.Tag)
	if !ok {
		return fmt.Errorf("%w: <%s>", ErrNotFound, f.Tag)
	}

	var initial map[string][]byte
	if f.Token != "" {
		tok, err := openToken(s.reg.encoder, cfg, f.Token)
		if err != nil {
			return err
		}
		if tok.Tag != f.Tag {
			return fmt.Errorf("%w: token issued for <%s>", ErrInvalidFormat, tok.Tag)
		}
		initial = tok.initial()
	}

	id := uuid.NewString()
	b, err := cfg.Bind(ctx, id, s, initial)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = b.Close(ctx)
		return errors.New("wcx: session closed")
	}
	s.bindings[id] = b
	s.mu.Unlock()

	snap, err := b.EncodedSnapshot()
	if err != nil {
		return err
	}
	props := make(map[string]msgpack.RawMessage, len(snap))
	for k, v := range snap {
		props[k] = v
	}
	s.logger.Debug("instance attached", zap.String("tag", f.Tag), zap.String("id", id))
	return s.out.WriteFrame(Frame{Op: OpAttached, Ref: f.Ref, ID: id, Tag: f.Tag, Props: props})
}

func (s *Session) update(f Frame) error {
	b, ok := s.Binding(f.ID)
	if !ok {
		return fmt.Errorf("%w: instance %q", ErrNotFound, f.ID)
	}

	changed, err := b.UpdatePropertyRaw(f.Prop, f.Value)
	switch {
	case errors.Is(err, ErrUnknownProperty):
		s.reg.metrics.PropertyUpdate(b.Tag(), "unknown")
	case errors.Is(err, ErrTypeMismatch):
		s.reg.metrics.PropertyUpdate(b.Tag(), "mismatch")
	case changed:
		s.reg.metrics.PropertyUpdate(b.Tag(), "changed")
	default:
		s.reg.metrics.PropertyUpdate(b.Tag(), "unchanged")
	}
	if err != nil {
		return err
	}
	if f.Ref != "" {
		return s.out.WriteFrame(Frame{Op: OpAck, Ref: f.Ref, ID: f.ID})
	}
	return nil
}

func (s *Session) detach(ctx context.Context, f Frame) error {
	s.mu.Lock()
	b, ok := s.bindings[f.ID]
	delete(s.bindings, f.ID)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: instance %q", ErrNotFound, f.ID)
	}
	return b.Close(ctx)
}

// PropertyChanged implements Sink.
func (s *Session) PropertyChanged(id, name string, value []byte) error {
	return s.out.WriteFrame(Frame{Op: OpChanged, ID: id, Prop: name, Value: value})
}

// Event implements Sink.
func (s *Session) Event(id, name string, detail []byte) error {
	return s.out.WriteFrame(Frame{Op: OpEvent, ID: id, Prop: name, Value: detail})
}

// Close discards every binding of the session.
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	bindings := s.bindings
	s.bindings = make(map[string]Binding)
	s.mu.Unlock()

	for id, b := range bindings {
		if err := b.Close(ctx); err != nil {
			s.logger.Warn("detach failed", zap.String("id", id), zap.Error(err))
		}
	}
	s.reg.metrics.SessionClosed()
}

const (
	maxFrameSize = 1 << 20
	writeTimeout = 10 * time.Second
)

type wsWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsWriter) WriteFrame(f Frame) error {
	data, err := msgpack.Marshal(&f)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return w.conn.WriteMessage(websocket.BinaryMessage, data)
}

func (reg *Registry) serveSession(w http.ResponseWriter, r *http.Request) {
	if !reg.Initialized() {
		reg.OnError(w, r, fmt.Errorf("%w: no configurations committed", ErrNotFound))
		return
	}

	conn, err := reg.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		reg.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxFrameSize)

	ctx := r.Context()
	out := &wsWriter{conn: conn}
	sess := reg.NewSession(out)
	defer sess.Close(context.WithoutCancel(ctx))

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				sess.logger.Debug("session read ended", zap.Error(err))
			}
			return
		}
		if kind != websocket.BinaryMessage {
			continue
		}

		var f Frame
		if err := msgpack.Unmarshal(data, &f); err != nil {
			if werr := out.WriteFrame(Frame{Op: OpError, Err: ErrInvalidFormat.Error()}); werr != nil {
				return
			}
			continue
		}
		if err := sess.Handle(ctx, f); err != nil {
			sess.logger.Debug("session write failed", zap.Error(err))
			return
		}
	}
}
