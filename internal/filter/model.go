package filter

import (
	"encoding/json"
	"reflect"
	"strings"

	"github.com/populationgenomics/metamist-sub002/internal/apierror"
)

// Comparator holds the comparisons applied to one field. All present comparisons must hold.
type Comparator struct {
	Eq  *Value
	In  []Value
	Nin []Value
	Gt  *Value
	Gte *Value
	Lt  *Value
	Lte *Value
}

// EqualTo returns a comparator matching v exactly.
func EqualTo(v Value) *Comparator {
	return &Comparator{Eq: &v}
}

// OneOf returns a comparator matching any of values.
func OneOf(values ...Value) *Comparator {
	return &Comparator{In: values}
}

// Range returns a comparator matching lo <= x <= hi.
func Range(lo, hi Value) *Comparator {
	return &Comparator{Gte: &lo, Lte: &hi}
}

// IsEmpty reports whether no comparison is present.
func (c *Comparator) IsEmpty() bool {
	return c == nil || (c.Eq == nil && c.In == nil && c.Nin == nil &&
		c.Gt == nil && c.Gte == nil && c.Lt == nil && c.Lte == nil)
}

// Validate rejects empty comparators and empty lists.
func (c *Comparator) Validate() error {
	if c.IsEmpty() {
		return apierror.NewInvalidFilter("comparator has no comparison")
	}
	if c.In != nil && len(c.In) == 0 {
		return apierror.NewInvalidFilter("in requires at least one value")
	}
	if c.Nin != nil && len(c.Nin) == 0 {
		return apierror.NewInvalidFilter("nin requires at least one value")
	}
	for _, v := range c.scalars() {
		if v != nil && (!v.IsValid() || v.Kind() == KindArray) {
			return apierror.NewInvalidFilter("comparison operand must be a scalar value")
		}
	}
	for _, list := range [][]Value{c.In, c.Nin} {
		for _, v := range list {
			if !v.IsValid() || v.Kind() == KindArray {
				return apierror.NewInvalidFilter("list elements must be scalar values")
			}
		}
	}
	return nil
}

func (c *Comparator) scalars() []*Value {
	return []*Value{c.Eq, c.Gt, c.Gte, c.Lt, c.Lte}
}

// set assigns a single operator, used by the parsers.
func (c *Comparator) set(op Operator, raw interface{}) error {
	switch op {
	case OpIn, OpNotIn:
		values, err := listValues(raw)
		if err != nil {
			return err
		}
		if op == OpIn {
			c.In = values
		} else {
			c.Nin = values
		}
		return nil
	}

	v, err := NewValue(raw)
	if err != nil {
		return err
	}
	if v.Kind() == KindArray {
		return apierror.NewInvalidFilter("%s requires a scalar value", op)
	}
	switch op {
	case OpEqual:
		c.Eq = &v
	case OpGreaterThan:
		c.Gt = &v
	case OpGreaterThanOrEqual:
		c.Gte = &v
	case OpLessThan:
		c.Lt = &v
	case OpLessThanOrEqual:
		c.Lte = &v
	default:
		return apierror.NewInvalidFilter("unknown comparison %q", op)
	}
	return nil
}

// UnmarshalJSON accepts {"eq": ..., "in": [...], ...}.
func (c *Comparator) UnmarshalJSON(data []byte) error {
	comp, err := parseRawComparator(data)
	if err != nil {
		return err
	}
	if comp == nil {
		*c = Comparator{}
		return nil
	}
	*c = *comp
	return nil
}

// Normalize converts a caller-supplied filter value into a Comparator. A nil raw value
// means the field is absent and yields (nil, nil). Lists become in, scalars become eq.
func Normalize(raw interface{}) (*Comparator, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case *Comparator:
		if v == nil {
			return nil, nil
		}
		return v, v.Validate()
	case Comparator:
		return &v, v.Validate()
	case Value:
		if v.Kind() == KindArray {
			c := &Comparator{In: v.Elems()}
			return c, c.Validate()
		}
		c := &Comparator{Eq: &v}
		return c, c.Validate()
	}

	rv := reflect.ValueOf(raw)
	if rv.Kind() == reflect.Ptr && rv.IsNil() {
		return nil, nil
	}
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		if rv.Len() == 1 && isNilValue(rv.Index(0)) {
			return nil, apierror.NewInvalidFilter("a list holding only null is not a filter; pass the value itself")
		}
		values, err := listValues(raw)
		if err != nil {
			return nil, err
		}
		return &Comparator{In: values}, nil
	}

	v, err := NewValue(raw)
	if err != nil {
		return nil, err
	}
	return &Comparator{Eq: &v}, nil
}

func listValues(raw interface{}) ([]Value, error) {
	if v, ok := raw.(Value); ok && v.Kind() == KindArray {
		if v.Len() == 0 {
			return nil, apierror.NewInvalidFilter("list filter must hold at least one value")
		}
		return v.Elems(), nil
	}

	rv := reflect.ValueOf(raw)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, apierror.NewInvalidFilter("expected a list, got %T", raw)
	}
	if rv.Len() == 0 {
		return nil, apierror.NewInvalidFilter("list filter must hold at least one value")
	}

	values := make([]Value, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		if isNilValue(rv.Index(i)) {
			return nil, apierror.NewInvalidFilter("list filter must not contain null")
		}
		v, err := NewValue(rv.Index(i).Interface())
		if err != nil {
			return nil, err
		}
		if v.Kind() == KindArray {
			return nil, apierror.NewInvalidFilter("nested lists are not supported")
		}
		values[i] = v
	}
	return values, nil
}

func isNilValue(rv reflect.Value) bool {
	switch rv.Kind() {
	case reflect.Interface, reflect.Ptr, reflect.Map, reflect.Slice:
		return rv.IsNil()
	}
	return false
}

// MetaEntry is one key of a structured (key/value) field.
type MetaEntry struct {
	Key        string
	Comparator *Comparator
}

// Entry is one field of a Model. Exactly one of Comparator, Meta and Nested is set.
type Entry struct {
	Name       string
	Comparator *Comparator
	Meta       []MetaEntry
	Nested     *Model
}

// Model is an immutable, ordered set of field filters combined with a single operator.
type Model struct {
	op      FiltersOp
	entries []Entry
}

func (m *Model) Op() FiltersOp {
	if m == nil || m.op == "" {
		return And
	}
	return m.op
}

func (m *Model) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Entries returns the fields in declaration order.
func (m *Model) Entries() []Entry {
	if m == nil {
		return nil
	}
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Get returns the entry for name.
func (m *Model) Get(name string) (Entry, bool) {
	if m == nil {
		return Entry{}, false
	}
	for _, e := range m.entries {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// Fields returns the field names in declaration order.
func (m *Model) Fields() []string {
	if m == nil {
		return nil
	}
	names := make([]string, len(m.entries))
	for i, e := range m.entries {
		names[i] = e.Name
	}
	return names
}

// WithOp returns a copy of m combined with op.
func (m *Model) WithOp(op FiltersOp) (*Model, error) {
	if err := validateOp(op); err != nil {
		return nil, err
	}
	out := &Model{op: op}
	if m != nil {
		out.entries = m.Entries()
	}
	return out, nil
}

// MarshalJSON renders the model for logging.
func (m *Model) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, m.Len())
	for _, e := range m.Entries() {
		switch {
		case e.Nested != nil:
			out[e.Name] = e.Nested
		case e.Meta != nil:
			meta := make(map[string]interface{}, len(e.Meta))
			for _, me := range e.Meta {
				meta[me.Key] = me.Comparator.describe()
			}
			out[e.Name] = meta
		default:
			out[e.Name] = e.Comparator.describe()
		}
	}
	return json.Marshal(out)
}

func (c *Comparator) describe() map[string]interface{} {
	out := make(map[string]interface{})
	for _, op := range operatorOrder {
		switch op {
		case OpIn:
			if c.In != nil {
				out[string(op)] = valuesInterface(c.In)
			}
		case OpNotIn:
			if c.Nin != nil {
				out[string(op)] = valuesInterface(c.Nin)
			}
		default:
			if v := c.scalar(op); v != nil {
				out[string(op)] = v.Interface()
			}
		}
	}
	return out
}

func (c *Comparator) scalar(op Operator) *Value {
	switch op {
	case OpEqual:
		return c.Eq
	case OpGreaterThan:
		return c.Gt
	case OpGreaterThanOrEqual:
		return c.Gte
	case OpLessThan:
		return c.Lt
	case OpLessThanOrEqual:
		return c.Lte
	}
	return nil
}

func valuesInterface(values []Value) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v.Interface()
	}
	return out
}

// Builder assembles a Model. The first error is kept and returned from Build.
type Builder struct {
	op      FiltersOp
	entries []Entry
	index   map[string]int
	err     error
}

func NewBuilder() *Builder {
	return &Builder{op: And, index: make(map[string]int)}
}

func (b *Builder) Op(op FiltersOp) *Builder {
	if b.err == nil {
		b.err = validateOp(op)
	}
	b.op = op
	return b
}

// Field adds a plain field. A nil raw value leaves the field absent.
func (b *Builder) Field(name string, raw interface{}) *Builder {
	if b.err != nil {
		return b
	}
	comp, err := Normalize(raw)
	if err != nil {
		b.err = err
		return b
	}
	if comp == nil {
		return b
	}
	b.add(Entry{Name: name, Comparator: comp})
	return b
}

// Meta adds one key of a structured field. Repeated calls accumulate keys in order.
func (b *Builder) Meta(name, key string, raw interface{}) *Builder {
	if b.err != nil {
		return b
	}
	if err := validateMetaKey(key); err != nil {
		b.err = err
		return b
	}
	comp, err := Normalize(raw)
	if err != nil {
		b.err = err
		return b
	}
	if comp == nil {
		return b
	}

	if i, ok := b.index[name]; ok {
		e := &b.entries[i]
		if e.Meta == nil {
			b.err = apierror.NewInvalidFilter("field %q is not a key/value field", name)
			return b
		}
		for _, me := range e.Meta {
			if me.Key == key {
				b.err = apierror.NewInvalidFilter("duplicate key %q for field %q", key, name)
				return b
			}
		}
		e.Meta = append(e.Meta, MetaEntry{Key: key, Comparator: comp})
		return b
	}
	b.add(Entry{Name: name, Meta: []MetaEntry{{Key: key, Comparator: comp}}})
	return b
}

// Nested adds a field whose value is another model. A nil or empty model is skipped.
func (b *Builder) Nested(name string, m *Model) *Builder {
	if b.err != nil || m.Len() == 0 {
		return b
	}
	b.add(Entry{Name: name, Nested: m})
	return b
}

func (b *Builder) add(e Entry) {
	if err := validateFieldName(e.Name); err != nil {
		b.err = err
		return
	}
	if _, ok := b.index[e.Name]; ok {
		b.err = apierror.NewInvalidFilter("duplicate filter field %q", e.Name)
		return
	}
	b.index[e.Name] = len(b.entries)
	b.entries = append(b.entries, e)
}

func (b *Builder) Build() (*Model, error) {
	if b.err != nil {
		return nil, b.err
	}
	entries := make([]Entry, len(b.entries))
	copy(entries, b.entries)
	return &Model{op: b.op, entries: entries}, nil
}

func validateOp(op FiltersOp) error {
	if op != And && op != Or {
		return apierror.NewInvalidFilter("unknown filters operator %q", op)
	}
	return nil
}

// ParseFiltersOp reads "and" or "or" in any case. Empty means And.
func ParseFiltersOp(s string) (FiltersOp, error) {
	if s == "" {
		return And, nil
	}
	op := FiltersOp(strings.ToUpper(strings.TrimSpace(s)))
	if err := validateOp(op); err != nil {
		return "", err
	}
	return op, nil
}
