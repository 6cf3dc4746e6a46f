package bridge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

const messageSchemaID = "https://github.com/ormasoftchile/padawan/schemas/message-v0.json"

// MessageSchema produces the JSON Schema (Draft 2020-12) of a wire message
// from the Message struct.
func MessageSchema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	r.DoNotReference = false
	r.AllowAdditionalProperties = true

	s := r.Reflect(&Message{})
	s.ID = messageSchemaID
	s.Title = "padawan test-mode message v0"
	s.Description = "Request and response frames exchanged over the test-mode pipes"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal message schema: %w", err)
	}
	return data, nil
}

var (
	compileOnce    sync.Once
	compiledSchema *sjsonschema.Schema
	compileErr     error
)

func messageValidator() (*sjsonschema.Schema, error) {
	compileOnce.Do(func() {
		data, err := MessageSchema()
		if err != nil {
			compileErr = err
			return
		}
		doc, err := sjsonschema.UnmarshalJSON(bytes.NewReader(data))
		if err != nil {
			compileErr = fmt.Errorf("unmarshal message schema: %w", err)
			return
		}
		c := sjsonschema.NewCompiler()
		if err := c.AddResource(messageSchemaID, doc); err != nil {
			compileErr = fmt.Errorf("add message schema: %w", err)
			return
		}
		compiledSchema, compileErr = c.Compile(messageSchemaID)
	})
	return compiledSchema, compileErr
}

// ValidateFrame checks a JSON payload against the message schema.
func ValidateFrame(payload []byte) error {
	sch, err := messageValidator()
	if err != nil {
		return err
	}
	doc, err := sjsonschema.UnmarshalJSON(bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := sch.Validate(doc); err != nil {
		if ve, ok := err.(*sjsonschema.ValidationError); ok {
			return fmt.Errorf("schema: %s", strings.Join(leafMessages(ve), "; "))
		}
		return fmt.Errorf("schema: %w", err)
	}
	return nil
}

// leafMessages flattens a validation error tree into its leaf causes.
func leafMessages(ve *sjsonschema.ValidationError) []string {
	if len(ve.Causes) == 0 {
		loc := "/" + strings.Join(ve.InstanceLocation, "/")
		return []string{fmt.Sprintf("%s: %v", loc, ve.ErrorKind)}
	}
	var out []string
	for _, c := range ve.Causes {
		out = append(out, leafMessages(c)...)
	}
	return out
}
