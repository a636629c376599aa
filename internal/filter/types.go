package filter

// Operator names a comparison inside a Comparator.
type Operator string

const (
	OpEqual              Operator = "eq"
	OpIn                 Operator = "in"
	OpNotIn              Operator = "nin"
	OpGreaterThan        Operator = "gt"
	OpGreaterThanOrEqual Operator = "gte"
	OpLessThan           Operator = "lt"
	OpLessThanOrEqual    Operator = "lte"
)

// operatorOrder is the order conditions are emitted for a single field.
var operatorOrder = []Operator{
	OpEqual,
	OpIn,
	OpNotIn,
	OpGreaterThan,
	OpGreaterThanOrEqual,
	OpLessThan,
	OpLessThanOrEqual,
}

// FiltersOp combines the fields of a Model.
type FiltersOp string

const (
	And FiltersOp = "AND"
	Or  FiltersOp = "OR"
)

// ParamType is the declared type of a bound parameter.
type ParamType string

const (
	TypeString    ParamType = "STRING"
	TypeInt64     ParamType = "INT64"
	TypeFloat64   ParamType = "FLOAT64"
	TypeBool      ParamType = "BOOL"
	TypeTimestamp ParamType = "TIMESTAMP"
	TypeArray     ParamType = "ARRAY"
)

// Binding is a named parameter produced while compiling a predicate.
type Binding struct {
	Name     string
	Value    Value
	Type     ParamType
	ElemType ParamType
}

// SortOrder represents the sort direction.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

type ParseOptions struct {
	MaxFilters  int // default 20
	MaxInValues int // default 100
	MaxCharLen  int // default 1000

	// MetaFields are fields whose value is a key to comparator mapping.
	MetaFields []string
	// NestedFields are fields whose value is itself a filter model.
	NestedFields []string
}

type ParseError struct {
	Param   string
	Message string
}

type ParseResult struct {
	Model  *Model
	Errors []ParseError
}

func paramTypeOf(k Kind) ParamType {
	switch k {
	case KindInt:
		return TypeInt64
	case KindFloat:
		return TypeFloat64
	case KindBool:
		return TypeBool
	case KindTimestamp:
		return TypeTimestamp
	case KindArray:
		return TypeArray
	default:
		return TypeString
	}
}
