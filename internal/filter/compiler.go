package filter

import (
	"fmt"
	"strconv"
	"strings"
)

// Compiler turns filter models into predicate text for one query. It keeps a single
// placeholder registry so every parameter of the query gets a distinct name.
// A Compiler is not safe for concurrent use.
type Compiler struct {
	dialect  Dialect
	columns  map[string]string
	used     map[string]int
	bindings []Binding
}

type Option func(*Compiler)

// WithColumns maps field paths (dotted for nested fields) to physical columns.
func WithColumns(overrides map[string]string) Option {
	return func(c *Compiler) {
		for field, column := range overrides {
			c.columns[field] = column
		}
	}
}

func NewCompiler(d Dialect, opts ...Option) *Compiler {
	c := &Compiler{
		dialect: d,
		columns: make(map[string]string),
		used:    make(map[string]int),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Compiler) Dialect() Dialect {
	return c.dialect
}

// Bindings returns the parameters registered so far in registration order.
func (c *Compiler) Bindings() []Binding {
	out := make([]Binding, len(c.bindings))
	copy(out, c.bindings)
	return out
}

// Param registers an ad-hoc parameter and returns its placeholder.
func (c *Compiler) Param(name string, v Value) string {
	name = c.reserve(sanitizeParamName(name))
	c.bindings = append(c.bindings, c.dialect.Bind(name, v))
	return c.dialect.Placeholder(name, v)
}

// Between renders column BETWEEN lo AND hi.
func (c *Compiler) Between(column string, lo, hi Value) (string, error) {
	if err := validateColumn(column, column); err != nil {
		return "", err
	}
	base := strings.ToLower(strings.TrimLeft(sanitizeParamName(column), "_"))
	return fmt.Sprintf("%s BETWEEN %s AND %s", column, c.Param(base+"_start", lo), c.Param(base+"_end", hi)), nil
}

// Where compiles m into a predicate. An empty model yields "".
func (c *Compiler) Where(m *Model) (string, error) {
	return c.where(m, "", "")
}

func (c *Compiler) where(m *Model, fieldPrefix, paramPrefix string) (string, error) {
	if m.Len() == 0 {
		return "", nil
	}

	op := m.Op()
	parts := make([]string, 0, m.Len())
	for _, e := range m.Entries() {
		path := fieldPrefix + e.Name
		param := paramPrefix + e.Name

		var conds []string
		switch {
		case e.Nested != nil:
			nested, err := c.where(e.Nested, path+".", param+"_")
			if err != nil {
				return "", err
			}
			if nested == "" {
				continue
			}
			if e.Nested.Len() > 1 {
				nested = "(" + nested + ")"
			}
			conds = []string{nested}

		case e.Meta != nil:
			column, err := c.column(path)
			if err != nil {
				return "", err
			}
			for _, me := range e.Meta {
				if err := validateMetaKey(me.Key); err != nil {
					return "", err
				}
				expr := c.dialect.Extract(column, me.Key)
				keyConds, err := c.comparator(expr, param+"_"+me.Key, me.Comparator)
				if err != nil {
					return "", err
				}
				conds = append(conds, keyConds...)
			}

		default:
			column, err := c.column(path)
			if err != nil {
				return "", err
			}
			conds, err = c.comparator(column, param, e.Comparator)
			if err != nil {
				return "", err
			}
		}

		part := strings.Join(conds, " AND ")
		if op == Or && len(conds) > 1 {
			part = "(" + part + ")"
		}
		parts = append(parts, part)
	}

	return strings.Join(parts, " "+string(op)+" "), nil
}

func (c *Compiler) column(path string) (string, error) {
	column, ok := c.columns[path]
	if !ok {
		column = path
	}
	if err := validateColumn(path, column); err != nil {
		return "", err
	}
	return column, nil
}

func (c *Compiler) comparator(column, base string, comp *Comparator) ([]string, error) {
	if err := comp.Validate(); err != nil {
		return nil, err
	}

	var conds []string
	for _, op := range operatorOrder {
		switch op {
		case OpIn:
			if comp.In == nil {
				continue
			}
			if len(comp.In) == 1 {
				conds = append(conds, c.scalar(column, base, OpEqual, comp.In[0]))
				continue
			}
			cond, err := c.list(column, base, OpIn, comp.In)
			if err != nil {
				return nil, err
			}
			conds = append(conds, cond)
		case OpNotIn:
			if comp.Nin == nil {
				continue
			}
			cond, err := c.list(column, base, OpNotIn, comp.Nin)
			if err != nil {
				return nil, err
			}
			conds = append(conds, cond)
		default:
			if v := comp.scalar(op); v != nil {
				conds = append(conds, c.scalar(column, base, op, *v))
			}
		}
	}
	return conds, nil
}

func (c *Compiler) scalar(column, base string, op Operator, v Value) string {
	return fmt.Sprintf("%s %s %s", column, op.symbol(), c.Param(base+"_"+string(op), v))
}

func (c *Compiler) list(column, base string, op Operator, values []Value) (string, error) {
	arr, err := ArrayOf(values)
	if err != nil {
		return "", err
	}
	name := c.reserve(sanitizeParamName(base + "_" + string(op)))
	c.bindings = append(c.bindings, c.dialect.Bind(name, arr))
	return c.dialect.InList(column, name, op == OpNotIn), nil
}

// reserve returns name, or name_2, name_3 ... when it is taken.
func (c *Compiler) reserve(name string) string {
	n := c.used[name]
	c.used[name] = n + 1
	if n == 0 {
		return name
	}
	for {
		n++
		candidate := name + "_" + strconv.Itoa(n)
		if c.used[candidate] == 0 {
			c.used[candidate] = 1
			c.used[name] = n
			return candidate
		}
	}
}

// Compiled is the output of a one-shot compilation.
type Compiled struct {
	Predicate string
	Bindings  []Binding
}

// Compile compiles m with a fresh Compiler.
func Compile(m *Model, d Dialect, opts ...Option) (*Compiled, error) {
	c := NewCompiler(d, opts...)
	predicate, err := c.Where(m)
	if err != nil {
		return nil, err
	}
	return &Compiled{Predicate: predicate, Bindings: c.Bindings()}, nil
}
