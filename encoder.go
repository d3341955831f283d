package wcx

import (
	"github.com/vmihailenco/msgpack/v5"

	"github.com/pthm/wcx/lib/encoding"
)

// Encoder is an alias for encoding.Encoder for convenience.
type Encoder = encoding.Encoder

// NewEncoder creates a new encoder with the given key.
func NewEncoder(key []byte) (*Encoder, error) {
	return encoding.NewEncoder(key)
}

// instanceToken is the payload carried by data-wcx-token: the tag and the
// server-chosen initial property values.
type instanceToken struct {
	Tag   string                        `msgpack:"t"`
	Props map[string]msgpack.RawMessage `msgpack:"p,omitempty"`
}

func (t instanceToken) initial() map[string][]byte {
	if len(t.Props) == 0 {
		return nil
	}
	out := make(map[string][]byte, len(t.Props))
	for k, v := range t.Props {
		out[k] = v
	}
	return out
}

func sealToken(enc *Encoder, cfg Configuration, props map[string]any) (string, error) {
	tok := instanceToken{Tag: cfg.Tag()}
	if len(props) > 0 {
		tok.Props = make(map[string]msgpack.RawMessage, len(props))
		for name, v := range props {
			raw, err := encoding.MarshalValue(v)
			if err != nil {
				return "", err
			}
			tok.Props[name] = raw
		}
	}
	return enc.Seal(tok, cfg.Sensitive())
}

func openToken(enc *Encoder, cfg Configuration, token string) (instanceToken, error) {
	var tok instanceToken
	if err := enc.Open(token, cfg.Sensitive(), &tok); err != nil {
		return tok, wrapEncodingError(err)
	}
	return tok, nil
}
