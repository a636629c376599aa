package filter

import (
	"strconv"
	"strings"

	"github.com/populationgenomics/metamist-sub002/internal/apierror"
)

// Rebind rewrites :name placeholders into the driver's positional form and returns the
// matching argument list. Array bindings expand into one placeholder per element.
// Text inside single or double quotes and :: casts are left alone.
func Rebind(flavor Flavor, query string, bindings []Binding) (string, []interface{}, error) {
	byName := make(map[string]Binding, len(bindings))
	for _, b := range bindings {
		byName[b.Name] = b
	}

	var (
		out   strings.Builder
		args  []interface{}
		quote byte
	)
	out.Grow(len(query))

	next := func(v Value) {
		args = append(args, v.Interface())
		if flavor == MySQL {
			out.WriteByte('?')
			return
		}
		out.WriteByte('$')
		out.WriteString(strconv.Itoa(len(args)))
	}

	for i := 0; i < len(query); i++ {
		ch := query[i]

		if quote != 0 {
			out.WriteByte(ch)
			if ch == quote {
				quote = 0
			}
			continue
		}

		switch {
		case ch == '\'' || ch == '"':
			quote = ch
			out.WriteByte(ch)
		case ch == ':' && i+1 < len(query) && query[i+1] == ':':
			out.WriteString("::")
			i++
		case ch == ':' && i+1 < len(query) && isIdentStart(query[i+1]):
			j := i + 1
			for j < len(query) && isIdentChar(query[j]) {
				j++
			}
			name := query[i+1 : j]
			b, ok := byName[name]
			if !ok {
				return "", nil, apierror.NewInternal("no binding for placeholder :%s", name)
			}
			if b.Value.Kind() == KindArray {
				for k, e := range b.Value.Elems() {
					if k > 0 {
						out.WriteString(", ")
					}
					next(e)
				}
			} else {
				next(b.Value)
			}
			i = j - 1
		default:
			out.WriteByte(ch)
		}
	}

	return out.String(), args, nil
}

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentChar(ch byte) bool {
	return isIdentStart(ch) || (ch >= '0' && ch <= '9')
}
