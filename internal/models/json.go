package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

// ErrTrailingData is returned when a body holds more than one JSON value.
var ErrTrailingData = errors.New("unexpected data after JSON value")

// DecodeJSON reads exactly one JSON value from r into v. Numbers are kept as
// json.Number so model_data integers survive beyond float64 precision.
func DecodeJSON(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	if err := dec.Decode(v); err != nil {
		return err
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return ErrTrailingData
	}

	return nil
}

// UnmarshalJSON is DecodeJSON over a byte slice.
func UnmarshalJSON(data []byte, v any) error {
	return DecodeJSON(bytes.NewReader(data), v)
}
