package block

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Block is the top-level structure for JAM blocks
type Block struct {
	Header    Header    `json:"header"`
	Extrinsic Extrinsic `json:"extrinsic"`
}

// UnmarshalJSON rejects unknown top-level fields and requires both the header
// and the extrinsic to be present.
func (b *Block) UnmarshalJSON(data []byte) error {
	o, err := decodeObject(data, "header", "extrinsic")
	if err != nil {
		return err
	}

	var unknown []string
	for k := range o {
		if k != "header" && k != "extrinsic" {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("unknown field(s) %s, expected `header` and `extrinsic`", strings.Join(unknown, ", "))
	}

	var out Block
	if err := errors.Join(
		o.field("header", &out.Header),
		o.field("extrinsic", &out.Extrinsic),
	); err != nil {
		return err
	}
	*b = out
	return nil
}

// Decode reads exactly one block from r in the JSON wire format
func Decode(r io.Reader) (Block, error) {
	dec := json.NewDecoder(bufio.NewReader(r))

	var b Block
	if err := dec.Decode(&b); err != nil {
		return Block{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Block{}, fmt.Errorf("%w: trailing data after block", ErrDecode)
	}
	return b, nil
}

// BlockFromBytes decodes a block from its JSON wire form
func BlockFromBytes(data []byte) (Block, error) {
	return Decode(bytes.NewReader(data))
}

// Bytes returns the JSON wire form of the block
func (b Block) Bytes() ([]byte, error) {
	return marshalJSON(b)
}
