// Package schema reads the JSON Schema a tool advertises for its input.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
)

// ErrMissingParams is returned by CheckRequired.
var ErrMissingParams = errors.New("missing required parameters")

// Param describes one top-level input property.
type Param struct {
	Name        string `json:"name"`
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
	Default     any    `json:"default,omitempty"`
	Enum        []any  `json:"enum,omitempty"`
}

// Parse decodes raw. An empty schema yields nil without error.
func Parse(raw json.RawMessage) (*jsonschema.Schema, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var s jsonschema.Schema
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode input schema: %w", err)
	}
	return &s, nil
}

// Params lists the top-level properties of raw in declaration order.
func Params(raw json.RawMessage) ([]Param, error) {
	s, err := Parse(raw)
	if err != nil || s == nil || s.Properties == nil {
		return nil, err
	}

	required := make(map[string]bool, len(s.Required))
	for _, name := range s.Required {
		required[name] = true
	}

	var out []Param
	for pair := s.Properties.Oldest(); pair != nil; pair = pair.Next() {
		p := Param{Name: pair.Key, Required: required[pair.Key]}
		if prop := pair.Value; prop != nil {
			p.Type = typeOf(prop)
			p.Description = prop.Description
			p.Default = prop.Default
			p.Enum = prop.Enum
		}
		out = append(out, p)
	}
	return out, nil
}

// typeOf resolves nullable anyOf wrappers to the non-null type.
func typeOf(s *jsonschema.Schema) string {
	if s.Type != "" {
		return s.Type
	}
	for _, sub := range s.AnyOf {
		if sub.Type != "" && sub.Type != "null" {
			return sub.Type
		}
	}
	return ""
}

// CheckRequired verifies that params carries every property raw marks as
// required. A schema that cannot be decoded is not enforced.
func CheckRequired(raw json.RawMessage, params map[string]any) error {
	s, err := Parse(raw)
	if err != nil || s == nil {
		return nil
	}

	var missing []string
	for _, name := range s.Required {
		if _, ok := params[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingParams, strings.Join(missing, ", "))
	}
	return nil
}

// Skeleton returns a parameter object with every property set to its
// default, or to the zero value of its type.
func Skeleton(raw json.RawMessage) map[string]any {
	params, err := Params(raw)
	if err != nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(params))
	for _, p := range params {
		out[p.Name] = zeroValue(p)
	}
	return out
}

func zeroValue(p Param) any {
	if p.Default != nil {
		return p.Default
	}
	if len(p.Enum) > 0 {
		return p.Enum[0]
	}
	switch p.Type {
	case "string":
		return ""
	case "integer", "number":
		return 0
	case "boolean":
		return false
	case "array":
		return []any{}
	case "object":
		return map[string]any{}
	default:
		return nil
	}
}

// Reflect generates the input schema for the Go type T.
func Reflect[T any]() (json.RawMessage, error) {
	r := &jsonschema.Reflector{
		Anonymous:      true,
		DoNotReference: true,
		ExpandedStruct: true,
	}
	var zero T
	s := r.Reflect(&zero)
	s.Version = ""
	return json.Marshal(s)
}
