package block

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// object is a decoded JSON object whose members are looked up by their exact
// key. encoding/json folds key case when filling structs, the wire format
// does not.
type object map[string]json.RawMessage

// decodeObject splits data into its members and checks that every required
// key is present and not null. Keys not asked for later are ignored.
func decodeObject(data []byte, required ...string) (object, error) {
	var o object
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, err
	}
	if o == nil {
		return nil, errors.New("expected object, got null")
	}
	for _, k := range required {
		raw, ok := o[k]
		if !ok {
			return nil, fmt.Errorf("missing field `%s`", k)
		}
		if bytes.Equal(raw, null) {
			return nil, fmt.Errorf("field `%s` must not be null", k)
		}
	}
	return o, nil
}

// has reports whether key is present, null included
func (o object) has(key string) bool {
	_, ok := o[key]
	return ok
}

// field decodes the member named key into v, leaving v untouched when absent
func (o object) field(key string, v any) error {
	raw, ok := o[key]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("field `%s`: %w", key, err)
	}
	return nil
}
