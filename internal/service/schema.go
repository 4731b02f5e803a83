package service

import (
	"fmt"
	"math"
)

// Parameter type tags used in the method catalog.
const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeArray   = "array"
)

// Param describes one method parameter. The same declaration drives
// validation, extraction and the discoverable catalog, so the two can
// never drift apart.
type Param struct {
	Name     string      `json:"name"`
	Type     string      `json:"type"`
	Required bool        `json:"required"`
	Default  interface{} `json:"default,omitempty"`

	// aliases are alternate parameter names accepted on input,
	// checked after Name in declared order. They are not advertised.
	aliases []string
}

// MethodInfo is one entry of the method catalog.
type MethodInfo struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Params      []Param `json:"params"`
}

// ValidationError reports a required parameter that is absent or of the
// wrong type. It is raised before any remote call is attempted.
type ValidationError struct {
	Param string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required parameter: %s", e.Param)
}

// lookup finds a parameter value by name or, failing that, by its
// aliases in declared order. First match wins.
func (p *Param) lookup(params map[string]interface{}) (interface{}, bool) {
	if v, ok := params[p.Name]; ok {
		return v, true
	}
	for _, alias := range p.aliases {
		if v, ok := params[alias]; ok {
			return v, true
		}
	}
	return nil, false
}

// extractParams validates the loose parameter bag against a method's
// schema and returns the typed arguments, keyed by canonical name.
//
// Policy: strings are read verbatim; a required string that is absent or
// not a string is a validation error. Integers accept only an integral
// JSON number and otherwise fall back to the declared default. Arrays
// keep their string elements and are never required.
func extractParams(schema []Param, params map[string]interface{}) (map[string]interface{}, error) {
	args := make(map[string]interface{}, len(schema))

	for i := range schema {
		p := &schema[i]
		value, present := p.lookup(params)

		switch p.Type {
		case TypeString:
			if s, ok := value.(string); present && ok {
				args[p.Name] = s
				continue
			}
			if p.Required {
				return nil, &ValidationError{Param: p.Name}
			}
			if s, ok := p.Default.(string); ok {
				args[p.Name] = s
			}

		case TypeInteger:
			// JSON numbers arrive as float64; accept only integral ones.
			if f, ok := value.(float64); present && ok && f == math.Trunc(f) {
				args[p.Name] = int(f)
				continue
			}
			if d, ok := p.Default.(int); ok {
				args[p.Name] = d
			}

		case TypeArray:
			if items, ok := value.([]interface{}); present && ok {
				values := make([]string, 0, len(items))
				for _, item := range items {
					if s, ok := item.(string); ok {
						values = append(values, s)
					}
				}
				args[p.Name] = values
			}
			// An absent array stays unset; the client applies the
			// advertised default when building the request.
		}
	}

	return args, nil
}

// Typed readers over extracted arguments. Extraction guarantees the
// stored types, so the assertions cannot surprise.

func argString(args map[string]interface{}, name string) string {
	s, _ := args[name].(string)
	return s
}

func argInt(args map[string]interface{}, name string) int {
	n, _ := args[name].(int)
	return n
}

func argStrings(args map[string]interface{}, name string) []string {
	values, _ := args[name].([]string)
	return values
}
