package block

import "errors"

// ServiceId identifies the service requesting a preimage
type ServiceId uint32

// Preimage is a blob submitted for lookup availability
type Preimage struct {
	Requester ServiceId `json:"requester"`
	Blob      Bytes     `json:"blob"`
}

func (p *Preimage) UnmarshalJSON(data []byte) error {
	o, err := decodeObject(data, "requester", "blob")
	if err != nil {
		return err
	}
	var out Preimage
	if err := errors.Join(o.field("requester", &out.Requester), o.field("blob", &out.Blob)); err != nil {
		return err
	}
	*p = out
	return nil
}
