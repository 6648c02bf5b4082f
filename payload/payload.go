package payload

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/pkg/errors"
)

const (
	EmptyBodyError    = "empty response body"
	TrailingDataError = "unexpected data after top-level JSON value"
)

// Payload is an upstream response body kept verbatim alongside its decoded form.
// It is never modified after Parse.
type Payload struct {
	raw   json.RawMessage
	value interface{}
}

// Parse decodes body, keeping numbers as json.Number so nothing is lost when
// the payload is written back out.
func Parse(body []byte) (Payload, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return Payload{}, errors.New(EmptyBodyError)
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value interface{}
	if err := decoder.Decode(&value); err != nil {
		return Payload{}, err
	}
	if _, err := decoder.Token(); err != io.EOF {
		return Payload{}, errors.New(TrailingDataError)
	}

	raw := make(json.RawMessage, len(trimmed))
	copy(raw, trimmed)
	return Payload{raw: raw, value: value}, nil
}

func (p Payload) Value() interface{} {
	return p.value
}

func (p Payload) Bytes() []byte {
	return p.raw
}

func (p Payload) MarshalJSON() ([]byte, error) {
	if len(p.raw) == 0 {
		return []byte("null"), nil
	}
	return p.raw, nil
}

func (p *Payload) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
