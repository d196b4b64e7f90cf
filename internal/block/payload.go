package block

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

var null = []byte("null")

// Payload is a loosely typed extrinsic sub-payload (a guarantee, an assurance or
// the disputes record). It is kept as canonical JSON and only converted to a
// strict shape by whoever consumes it, see Decode.
type Payload struct {
	raw []byte
}

// NewPayload builds a payload from any JSON-marshalable value
func NewPayload(v any) (Payload, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return Payload{}, err
	}
	return ParsePayload(b)
}

// ParsePayload canonicalises raw JSON into a payload
func ParsePayload(raw []byte) (Payload, error) {
	canonical, err := canonicalJSON(raw)
	if err != nil {
		return Payload{}, err
	}
	if bytes.Equal(canonical, null) {
		return Payload{}, nil
	}
	return Payload{raw: canonical}, nil
}

// IsAbsent reports whether the payload is missing or JSON null
func (p Payload) IsAbsent() bool {
	return len(p.raw) == 0
}

// Raw returns the canonical JSON of the payload, "null" when absent
func (p Payload) Raw() json.RawMessage {
	if p.IsAbsent() {
		return json.RawMessage(null)
	}
	return json.RawMessage(p.raw)
}

// Decode reads the payload into a strict structure
func (p Payload) Decode(v any) error {
	return json.Unmarshal(p.Raw(), v)
}

func (p Payload) MarshalJSON() ([]byte, error) {
	return p.Raw(), nil
}

func (p *Payload) UnmarshalJSON(data []byte) error {
	parsed, err := ParsePayload(data)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// canonicalJSON re-encodes a JSON document compactly with object keys sorted.
// Numbers keep their literal form so large integers survive unchanged.
func canonicalJSON(raw []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after JSON value")
	}

	return marshalJSON(v)
}

// marshalJSON encodes v compactly without HTML escaping. U+2028 and U+2029,
// which encoding/json always escapes, are written as raw UTF-8 like any other
// character.
func marshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return unescapeLineSeparators(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}

// unescapeLineSeparators rewrites \u2028 and \u2029 escapes in encoder output.
// Any other escape sequence is copied unchanged, so an escaped backslash
// followed by the text u2028 is left alone.
func unescapeLineSeparators(b []byte) []byte {
	if !bytes.Contains(b, []byte(`\u202`)) {
		return b
	}
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		if b[i] != '\\' || i+1 >= len(b) {
			out = append(out, b[i])
			continue
		}
		if b[i+1] == 'u' && i+5 < len(b) {
			switch string(b[i+2 : i+6]) {
			case "2028":
				out = append(out, "\u2028"...)
				i += 5
				continue
			case "2029":
				out = append(out, "\u2029"...)
				i += 5
				continue
			}
		}
		out = append(out, b[i], b[i+1])
		i++
	}
	return out
}
