package proto

import (
	"bytes"
	"fmt"
)

// Frame formats an envelope as the bus wire format: the routing tag,
// a single space, then the JSON-encoded envelope.
func Frame(e Envelope) ([]byte, error) {
	body, err := e.Marshal()
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(e.Address.Tag())+1+len(body))
	out = append(out, e.Address.Tag()...)
	out = append(out, ' ')
	out = append(out, body...)
	return out, nil
}

// ParseFrame splits a raw frame on the first space into its routing tag
// and JSON body, then decodes the body into an Envelope. Malformed frames
// (no space, bad JSON, unknown discriminator) return an error; callers on
// the hot path are expected to log-and-drop rather than propagate it.
func ParseFrame(raw []byte) (tag string, e Envelope, err error) {
	idx := bytes.IndexByte(raw, ' ')
	if idx < 0 {
		return "", Envelope{}, fmt.Errorf("proto: malformed frame, no tag separator: %q", raw)
	}
	tag = string(raw[:idx])
	e, err = Decode(raw[idx+1:])
	if err != nil {
		return tag, Envelope{}, err
	}
	return tag, e, nil
}
