// Package validate checks request bodies against JSON Schemas before they are decoded.
package validate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const maxBodyBytes = 1 << 20

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid request")

// Schema is a compiled request schema.
type Schema struct {
	name   string
	schema *gojsonschema.Schema
}

// MustCompile compiles src and panics if it is not a valid schema.
func MustCompile(name, src string) *Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("compile schema %s: %v", name, err))
	}
	return &Schema{name: name, schema: s}
}

// Decode reads r, validates it and unmarshals it into v.
func (s *Schema) Decode(r io.Reader, v any) error {
	body, err := io.ReadAll(io.LimitReader(r, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrInvalid, err)
	}
	if err := s.Validate(body); err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// Validate checks a raw JSON document against the schema.
func (s *Schema) Validate(body []byte) error {
	if len(strings.TrimSpace(string(body))) == 0 {
		return fmt.Errorf("%w: empty body", ErrInvalid)
	}
	result, err := s.schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		// Not parseable as JSON.
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
}

// Message returns the caller-facing part of a validation error.
func Message(err error) string {
	return strings.TrimPrefix(err.Error(), ErrInvalid.Error()+": ")
}
