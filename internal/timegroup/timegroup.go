// Package timegroup plans how cost rows are bucketed by time in warehouse queries.
package timegroup

import (
	"fmt"
	"strings"

	"github.com/populationgenomics/metamist-sub002/internal/apierror"
)

type Granularity string

const (
	Day          Granularity = "day"
	Week         Granularity = "week"
	Month        Granularity = "month"
	InvoiceMonth Granularity = "invoice_month"
)

// Parse reads a granularity. Empty means no time grouping.
func Parse(s string) (Granularity, error) {
	g := Granularity(strings.ToLower(strings.TrimSpace(s)))
	if g == "invoicemonth" {
		g = InvoiceMonth
	}
	switch g {
	case "", Day, Week, Month, InvoiceMonth:
		return g, nil
	}
	return "", apierror.NewInvalidParameter("unknown time period %q", s)
}

func (g Granularity) layout() string {
	switch g {
	case Week:
		return "%Y%W"
	case Month, InvoiceMonth:
		return "%Y%m"
	default:
		return "%Y-%m-%d"
	}
}

// Plan holds the fragments spliced into a grouped query. Each non-empty fragment ends
// with ", " so it can be prefixed onto the rest of a column list. The zero Plan is a no-op.
type Plan struct {
	// Field is the SELECT expression producing the "day" bucket.
	Field string
	// Formula re-parses the bucket into a DATE in the outer query.
	Formula string
	// GroupBy is the bucket's GROUP BY entry.
	GroupBy string
}

func (p Plan) IsZero() bool {
	return p.Field == ""
}

// Build returns the plan for g over timeColumn. Invoice months are read from
// invoiceMonthColumn instead.
func Build(g Granularity, timeColumn, invoiceMonthColumn string) Plan {
	if g == "" {
		return Plan{}
	}

	layout := g.layout()
	field := fmt.Sprintf(`FORMAT_DATE("%s", %s) as day, `, layout, timeColumn)
	if g == InvoiceMonth {
		field = invoiceMonthColumn + " as day, "
	}
	return Plan{
		Field:   field,
		Formula: fmt.Sprintf(`PARSE_DATE("%s", day) as day, `, layout),
		GroupBy: "day, ",
	}
}
