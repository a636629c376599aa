package filter

import (
	"regexp"
	"strings"

	"github.com/populationgenomics/metamist-sub002/internal/apierror"
)

var (
	fieldNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	columnRegex    = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)
	paramNameRegex = regexp.MustCompile(`[^A-Za-z0-9_]+`)
)

func validateFieldName(name string) error {
	if !fieldNameRegex.MatchString(name) {
		return apierror.NewInvalidFilter("invalid filter field name %q", name)
	}
	return nil
}

// validateMetaKey rejects keys that could escape the quoted JSON path.
func validateMetaKey(key string) error {
	if key == "" {
		return apierror.NewInvalidFilter("key/value filter key must not be empty")
	}
	if strings.ContainsAny(key, "'\"`\\") {
		return apierror.NewInvalidFilter("key/value filter key %q must not contain quotes or backslashes", key)
	}
	return nil
}

// validateColumn checks a column reference resolved from a field name or override.
// A bad column is a programming error, not a caller error.
func validateColumn(field, column string) error {
	if !columnRegex.MatchString(column) {
		return apierror.NewInternal("invalid column %q for filter field %q", column, field)
	}
	return nil
}

// sanitizeParamName folds a path into a valid placeholder name.
func sanitizeParamName(s string) string {
	s = paramNameRegex.ReplaceAllString(s, "_")
	if s == "" || (s[0] >= '0' && s[0] <= '9') {
		s = "p_" + s
	}
	return s
}

// Validate checks every top-level field of m against allowed.
func Validate(m *Model, allowed map[string]bool) error {
	for _, name := range m.Fields() {
		if !allowed[name] {
			return apierror.NewDisallowedField("filtering on %q is not allowed", name)
		}
	}
	return nil
}

// ValidateSortField validates that the sort field is allowed.
func ValidateSortField(sortBy string, allowed map[string]bool) error {
	if sortBy == "" {
		return nil
	}
	if !allowed[sortBy] {
		return apierror.NewDisallowedField("cannot sort by %q", sortBy)
	}
	return nil
}

// ParseSortOrder returns desc for anything other than asc.
func ParseSortOrder(s string) SortOrder {
	if SortOrder(strings.ToLower(s)) == SortAsc {
		return SortAsc
	}
	return SortDesc
}
