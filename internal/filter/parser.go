package filter

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

const (
	defaultMaxFilters  = 20
	defaultMaxInValues = 100
	defaultMaxCharLen  = 1000
)

type queryField struct {
	name string
	key  string
	comp *Comparator
}

// ParseFromQuery parses field_op=value URL query parameters into a Model.
// Keys of a meta field are written as <field>.<key>_<op>.
// Returns errors for invalid params rather than silently dropping them.
func ParseFromQuery(queryParams url.Values, opts *ParseOptions) *ParseResult {
	maxFilters := defaultMaxFilters
	maxInValues := defaultMaxInValues
	maxCharLen := defaultMaxCharLen
	var metaFields map[string]bool
	if opts != nil {
		if opts.MaxFilters > 0 {
			maxFilters = opts.MaxFilters
		}
		if opts.MaxInValues > 0 {
			maxInValues = opts.MaxInValues
		}
		if opts.MaxCharLen > 0 {
			maxCharLen = opts.MaxCharLen
		}
		metaFields = toSet(opts.MetaFields)
	}

	result := &ParseResult{Errors: make([]ParseError, 0)}

	keys := make([]string, 0, len(queryParams))
	for key := range queryParams {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var fields []*queryField
	index := make(map[string]*queryField)
	filterCount := 0
	for _, key := range keys {
		values := queryParams[key]
		if len(values) == 0 {
			continue
		}

		if isReservedParam(key) {
			continue
		}

		// Parse field_operator format
		sep := strings.LastIndex(key, "_")
		if sep <= 0 {
			continue
		}
		operator := ResolveOperator(key[sep+1:])
		if operator == "" {
			// Not a recognized operator suffix, could be a regular query param.
			continue
		}
		field := key[:sep]

		name, metaKey := field, ""
		if dot := strings.Index(field, "."); dot > 0 {
			name, metaKey = field[:dot], field[dot+1:]
			if !metaFields[name] {
				result.Errors = append(result.Errors, ParseError{
					Param:   key,
					Message: fmt.Sprintf("field %q does not accept keys", name),
				})
				continue
			}
		}

		if filterCount >= maxFilters {
			result.Errors = append(result.Errors, ParseError{
				Param:   key,
				Message: fmt.Sprintf("exceeded maximum number of filters (%d)", maxFilters),
			})
			continue
		}

		value := values[0]
		if len(value) > maxCharLen {
			result.Errors = append(result.Errors, ParseError{
				Param:   key,
				Message: fmt.Sprintf("value exceeds maximum length (%d chars)", maxCharLen),
			})
			continue
		}

		var raw interface{}
		switch operator {
		case OpIn, OpNotIn:
			inValues := strings.Split(value, ",")
			if len(inValues) > maxInValues {
				result.Errors = append(result.Errors, ParseError{
					Param:   key,
					Message: fmt.Sprintf("%s operator exceeds maximum values (%d)", operator, maxInValues),
				})
				continue
			}
			list := make([]Value, len(inValues))
			for i, v := range inValues {
				list[i] = parseValue(strings.TrimSpace(v))
			}
			raw = list
		default:
			raw = parseValue(value)
		}

		qf, ok := index[field]
		if !ok {
			qf = &queryField{name: name, key: metaKey, comp: &Comparator{}}
			index[field] = qf
			fields = append(fields, qf)
		}
		if err := qf.comp.set(operator, raw); err != nil {
			result.Errors = append(result.Errors, ParseError{Param: key, Message: err.Error()})
			continue
		}
		filterCount++
	}

	b := NewBuilder()
	for _, qf := range fields {
		if qf.comp.IsEmpty() {
			continue
		}
		if qf.key != "" {
			b.Meta(qf.name, qf.key, qf.comp)
		} else {
			b.Field(qf.name, qf.comp)
		}
	}
	m, err := b.Build()
	if err != nil {
		result.Errors = append(result.Errors, ParseError{Message: err.Error()})
		m, _ = NewBuilder().Build()
	}
	result.Model = m

	return result
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
