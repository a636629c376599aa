package filter

import "fmt"

// Dialect renders the target-specific pieces of a predicate.
type Dialect interface {
	Name() string
	// Placeholder renders a reference to the scalar parameter name holding v.
	Placeholder(name string, v Value) string
	// InList renders membership of column in the array parameter name.
	InList(column, name string, negate bool) string
	// Extract renders a read of key from a key/value column.
	Extract(column, key string) string
	// Bind converts a value into the binding the dialect sends for it.
	Bind(name string, v Value) Binding
}

// Flavor selects the positional placeholder style used by Rebind.
type Flavor string

const (
	Postgres Flavor = "postgres"
	MySQL    Flavor = "mysql"
)

// Relational renders named :placeholders. Run Rebind before sending the text to a driver.
type Relational struct {
	Flavor Flavor
}

func (d Relational) Name() string {
	return string(d.Flavor)
}

func (d Relational) Placeholder(name string, _ Value) string {
	return ":" + name
}

func (d Relational) InList(column, name string, negate bool) string {
	if negate {
		return fmt.Sprintf("%s NOT IN (:%s)", column, name)
	}
	return fmt.Sprintf("%s IN (:%s)", column, name)
}

func (d Relational) Extract(column, key string) string {
	if d.Flavor == MySQL {
		return fmt.Sprintf(`JSON_VALUE(%s, '$."%s"')`, column, key)
	}
	return fmt.Sprintf("%s->>'%s'", column, key)
}

func (d Relational) Bind(name string, v Value) Binding {
	b := Binding{Name: name, Value: v, Type: paramTypeOf(v.Kind())}
	if v.Kind() == KindArray {
		b.ElemType = paramTypeOf(v.Elem())
	}
	return b
}
