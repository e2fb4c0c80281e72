package protocol

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"path"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

const schemaBase = "https://voxelshelter.ai/schemas/"

// inbound maps client message types to their schema file.
var inbound = map[string]string{
	TypeHello:   "hello.schema.json",
	TypeBuild:   "build.schema.json",
	TypePlan:    "plan.schema.json",
	TypeControl: "control.schema.json",
}

// Validator checks inbound client messages against the embedded schemas.
type Validator struct {
	byType map[string]*jsonschema.Schema
}

func NewValidator() (*Validator, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		b, err := schemaFS.ReadFile(path.Join("schemas", e.Name()))
		if err != nil {
			return nil, err
		}
		if err := c.AddResource(schemaBase+e.Name(), bytes.NewReader(b)); err != nil {
			return nil, fmt.Errorf("schema %s: %w", e.Name(), err)
		}
	}
	v := &Validator{byType: map[string]*jsonschema.Schema{}}
	for typ, name := range inbound {
		s, err := c.Compile(schemaBase + name)
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", name, err)
		}
		v.byType[typ] = s
	}
	return v, nil
}

// ValidationError carries the wire code for a rejected message.
type ValidationError struct {
	Code string
	Err  error
}

func (e *ValidationError) Error() string { return e.Code + ": " + e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

// Validate decodes raw, checks it against the schema for its type and the
// protocol version, and returns its base header.
func (v *Validator) Validate(raw []byte) (BaseMessage, error) {
	base, err := DecodeBase(raw)
	if err != nil {
		return base, &ValidationError{Code: ErrProtoBadRequest, Err: err}
	}
	s, ok := v.byType[base.Type]
	if !ok {
		return base, &ValidationError{Code: ErrProtoBadRequest, Err: fmt.Errorf("unexpected message type %q", base.Type)}
	}
	var doc any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return base, &ValidationError{Code: ErrProtoBadRequest, Err: err}
	}
	if err := s.Validate(doc); err != nil {
		return base, &ValidationError{Code: ErrProtoBadRequest, Err: err}
	}
	if base.ProtocolVersion != Version {
		return base, &ValidationError{Code: ErrProtoVersion, Err: fmt.Errorf("protocol_version %q, server speaks %q", base.ProtocolVersion, Version)}
	}
	return base, nil
}
