package filter

import (
	"fmt"

	"cloud.google.com/go/bigquery"
)

// bigQueryTimestampLayout is how scalar timestamps are bound; the predicate wraps them in TIMESTAMP().
const bigQueryTimestampLayout = "2006-01-02 15:04:05"

// BigQuery renders @name parameters for the warehouse.
type BigQuery struct{}

func (BigQuery) Name() string {
	return "bigquery"
}

func (BigQuery) Placeholder(name string, v Value) string {
	if v.Kind() == KindTimestamp {
		return fmt.Sprintf("TIMESTAMP(@%s)", name)
	}
	return "@" + name
}

func (BigQuery) InList(column, name string, negate bool) string {
	if negate {
		return fmt.Sprintf("%s NOT IN UNNEST(@%s)", column, name)
	}
	return fmt.Sprintf("%s IN UNNEST(@%s)", column, name)
}

func (BigQuery) Extract(column, key string) string {
	return fmt.Sprintf(`JSON_VALUE(%s, '$."%s"')`, column, key)
}

func (BigQuery) Bind(name string, v Value) Binding {
	switch v.Kind() {
	case KindTimestamp:
		return Binding{Name: name, Value: String(v.Time().UTC().Format(bigQueryTimestampLayout)), Type: TypeString}
	case KindArray:
		return Binding{Name: name, Value: v, Type: TypeArray, ElemType: paramTypeOf(v.Elem())}
	default:
		return Binding{Name: name, Value: v, Type: paramTypeOf(v.Kind())}
	}
}

// QueryParameters converts bindings into typed BigQuery query parameters.
func QueryParameters(bindings []Binding) []bigquery.QueryParameter {
	params := make([]bigquery.QueryParameter, 0, len(bindings))
	for _, b := range bindings {
		params = append(params, bigquery.QueryParameter{
			Name:  b.Name,
			Value: parameterValue(b),
		})
	}
	return params
}

func parameterValue(b Binding) *bigquery.QueryParameterValue {
	if b.Type != TypeArray {
		return &bigquery.QueryParameterValue{
			Type:  bigquery.StandardSQLDataType{TypeKind: string(b.Type)},
			Value: b.Value.Interface(),
		}
	}

	elemType := b.ElemType
	if elemType == "" {
		elemType = TypeString
	}
	elems := b.Value.Elems()
	values := make([]bigquery.QueryParameterValue, len(elems))
	for i, e := range elems {
		values[i] = bigquery.QueryParameterValue{
			Type:  bigquery.StandardSQLDataType{TypeKind: string(elemType)},
			Value: e.Interface(),
		}
	}
	return &bigquery.QueryParameterValue{
		Type: bigquery.StandardSQLDataType{
			TypeKind:         string(TypeArray),
			ArrayElementType: &bigquery.StandardSQLDataType{TypeKind: string(elemType)},
		},
		ArrayValue: values,
	}
}
