package jobs

import (
	"fmt"

	"github.com/go-faster/jx"
)

// MarshalPayload encodes p as the JSON stored in update_user_jobs.payload.
func MarshalPayload(p Payload) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	var e jx.Encoder
	e.ObjStart()
	if p.UserID != nil {
		e.FieldStart("user_id")
		e.Int64(*p.UserID)
	}
	if p.UserName != nil {
		e.FieldStart("user_name")
		e.Str(*p.UserName)
	}
	e.FieldStart("token_user_id")
	e.Int64(p.TokenUserID)
	e.ObjEnd()

	return e.Bytes(), nil
}

// UnmarshalPayload decodes a stored payload. Unknown fields are ignored,
// nulls are treated as absent.
func UnmarshalPayload(data []byte) (Payload, error) {
	var p Payload

	d := jx.DecodeBytes(data)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if d.Next() == jx.Null {
			return d.Null()
		}
		switch key {
		case "user_id":
			v, err := d.Int64()
			if err != nil {
				return err
			}
			p.UserID = &v
		case "user_name":
			v, err := d.Str()
			if err != nil {
				return err
			}
			p.UserName = &v
		case "token_user_id":
			v, err := d.Int64()
			if err != nil {
				return err
			}
			p.TokenUserID = v
		default:
			return d.Skip()
		}
		return nil
	})
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	if err := p.Validate(); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	return p, nil
}
