// Package codec encodes layer payloads.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	ContentType() string
}

// ErrTrailingContent is returned when a body holds more than one value.
var ErrTrailingContent = errors.New("json trailing content")

type jsonStrict struct{}

// JSONStrict rejects unknown fields and trailing data, and never escapes HTML.
var JSONStrict Codec = jsonStrict{}

func (jsonStrict) Marshal(v any) ([]byte, error) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func (jsonStrict) Unmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("json decode: %w", err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return ErrTrailingContent
	}
	return nil
}

func (jsonStrict) ContentType() string { return "application/json" }

// Decode reads at most limit bytes from r into v.
func Decode(c Codec, r io.Reader, limit int64, v any) error {
	b, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return err
	}
	if int64(len(b)) > limit {
		return fmt.Errorf("body exceeds %d bytes", limit)
	}
	return c.Unmarshal(b, v)
}

// Write marshals v and writes it with status and the codec's content type.
func Write(w http.ResponseWriter, c Codec, status int, v any) error {
	b, err := c.Marshal(v)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", c.ContentType())
	w.WriteHeader(status)
	_, err = w.Write(b)
	return err
}
