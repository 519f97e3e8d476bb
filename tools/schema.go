package tools

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// JSONSchema is a Schema backed by github.com/santhosh-tekuri/jsonschema/v6.
// It compiles its document once at construction time and validates decoded
// JSON values (maps, slices, scalars) against it on every SafeParse call.
type JSONSchema struct {
	doc      map[string]any
	compiled *jsonschema.Schema
}

// NewJSONSchema compiles doc (a JSON-Schema document as a map[string]any)
// into a reusable Schema. doc must decode
// to a JSON object; callers typically build it with a struct tagged for
// encoding/json and MarshalSchema, or hand-author a map[string]any literal.
func NewJSONSchema(doc map[string]any) (*JSONSchema, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("tools: marshal schema document: %w", err)
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("tools: decode schema document: %w", err)
	}

	c := jsonschema.NewCompiler()
	const resourceName = "schema.json"
	if err := c.AddResource(resourceName, decoded); err != nil {
		return nil, fmt.Errorf("tools: add schema resource: %w", err)
	}
	compiled, err := c.Compile(resourceName)
	if err != nil {
		return nil, fmt.Errorf("tools: compile schema: %w", err)
	}
	return &JSONSchema{doc: doc, compiled: compiled}, nil
}

// MustJSONSchema panics if doc fails to compile. Intended for package-level
// schema declarations in tool constructors that must fail fast on a bad
// schema rather than surface the error at registration time.
func MustJSONSchema(doc map[string]any) *JSONSchema {
	s, err := NewJSONSchema(doc)
	if err != nil {
		panic(err)
	}
	return s
}

// SafeParse validates value against the compiled schema. value is typically
// the result of json.Unmarshal into an any (so maps, not structs).
func (s *JSONSchema) SafeParse(value any) (any, bool, error) {
	if err := s.compiled.Validate(value); err != nil {
		ve := &ValidationError{Message: err.Error()}
		if verr, ok := err.(*jsonschema.ValidationError); ok {
			for _, cause := range verr.Causes {
				ve.Issues = append(ve.Issues, FieldIssue{
					Field:      joinPath(cause.InstanceLocation),
					Constraint: cause.Error(),
				})
			}
		}
		return nil, false, ve
	}
	return value, true, nil
}

// JSONSchema returns the schema document as originally supplied.
func (s *JSONSchema) JSONSchema() map[string]any {
	return s.doc
}

func joinPath(segments []string) string {
	if len(segments) == 0 {
		return "$"
	}
	out := ""
	for _, seg := range segments {
		out += "/" + seg
	}
	return out
}
