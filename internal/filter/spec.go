package filter

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/populationgenomics/metamist-sub002/internal/apierror"
)

// ParseSpec decodes a JSON filter object into a Model, keeping key order.
// A field value may be a scalar (eq), a list (in), a comparator object or null (absent).
func ParseSpec(data []byte, opts *ParseOptions) (*Model, error) {
	var metaFields, nestedFields map[string]bool
	if opts != nil {
		metaFields = toSet(opts.MetaFields)
		nestedFields = toSet(opts.NestedFields)
	}

	b := NewBuilder()
	err := decodeObject(data, func(name string, raw json.RawMessage) error {
		switch {
		case nestedFields[name]:
			if isJSONNull(raw) {
				return nil
			}
			nested, err := ParseSpec(raw, opts)
			if err != nil {
				return err
			}
			b.Nested(name, nested)
		case metaFields[name]:
			if isJSONNull(raw) {
				return nil
			}
			return decodeObject(raw, func(key string, raw json.RawMessage) error {
				comp, err := parseRawComparator(raw)
				if err != nil {
					return err
				}
				b.Meta(name, key, comp)
				return nil
			})
		default:
			comp, err := parseRawComparator(raw)
			if err != nil {
				return err
			}
			b.Field(name, comp)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return b.Build()
}

// decodeObject walks the members of a JSON object in document order.
func decodeObject(data []byte, fn func(key string, raw json.RawMessage) error) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return apierror.NewInvalidFilter("invalid filter JSON: %v", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return apierror.NewInvalidFilter("filter must be a JSON object")
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return apierror.NewInvalidFilter("invalid filter JSON: %v", err)
		}
		key, ok := tok.(string)
		if !ok {
			return apierror.NewInvalidFilter("invalid filter key %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return apierror.NewInvalidFilter("invalid filter value for %q: %v", key, err)
		}
		if err := fn(key, raw); err != nil {
			return err
		}
	}

	if _, err := dec.Token(); err != nil {
		return apierror.NewInvalidFilter("invalid filter JSON: %v", err)
	}
	return nil
}

func isJSONNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

// parseRawComparator decodes a field value. null, and an object whose comparisons are
// all null, yield nil.
func parseRawComparator(raw json.RawMessage) (*Comparator, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, apierror.NewInvalidFilter("invalid filter value: %v", err)
	}

	obj, ok := v.(map[string]interface{})
	if !ok {
		return Normalize(v)
	}

	comp := &Comparator{}
	nulls := 0
	for key, operand := range obj {
		op := ResolveOperator(key)
		if op == "" {
			return nil, apierror.NewInvalidFilter("unknown comparison %q", key)
		}
		if operand == nil {
			nulls++
			continue
		}
		if err := comp.set(op, operand); err != nil {
			return nil, err
		}
	}
	if len(obj) > 0 && nulls == len(obj) {
		return nil, nil
	}
	if err := comp.Validate(); err != nil {
		return nil, fmt.Errorf("comparator %s: %w", raw, err)
	}
	return comp, nil
}
