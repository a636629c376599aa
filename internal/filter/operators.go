package filter

import "strings"

func ResolveOperator(s string) Operator {
	switch strings.ToLower(s) {
	case "eq", "equals":
		return OpEqual
	case "in", "oneof":
		return OpIn
	case "nin", "notin", "notoneof":
		return OpNotIn
	case "gt", "greaterthan":
		return OpGreaterThan
	case "gte", "gteq", "greaterorequal":
		return OpGreaterThanOrEqual
	case "lt", "lessthan":
		return OpLessThan
	case "lte", "lteq", "lessorequal":
		return OpLessThanOrEqual
	default:
		return ""
	}
}

// symbol returns the SQL comparison for scalar operators.
func (o Operator) symbol() string {
	switch o {
	case OpEqual:
		return "="
	case OpGreaterThan:
		return ">"
	case OpGreaterThanOrEqual:
		return ">="
	case OpLessThan:
		return "<"
	case OpLessThanOrEqual:
		return "<="
	default:
		return ""
	}
}
