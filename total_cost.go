package billing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/populationgenomics/metamist-sub002/internal/apierror"
	"github.com/populationgenomics/metamist-sub002/internal/filter"
	"github.com/populationgenomics/metamist-sub002/internal/timegroup"
	"github.com/populationgenomics/metamist-sub002/model"
)

// GetTotalCost returns cost grouped by q.Fields over [q.StartDate, q.EndDate]. Each row maps
// column names to values, with "cost" holding the (summed) cost.
func (b *Billing) GetTotalCost(ctx context.Context, q model.TotalCostQuery) ([]map[string]interface{}, error) {
	ctx, span := tracer.Start(ctx, "Computing total cost")
	defer span.End()

	query, c, err := b.buildTotalCost(q)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	conn := b.warehouse.Connect()
	rows, err := b.query(ctx, conn, query, c)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	out := make([]map[string]interface{}, 0, len(rows))
	for _, row := range rows {
		rec := make(map[string]interface{}, len(row))
		for k, v := range row {
			rec[k] = plainValue(v)
		}
		out = append(out, rec)
	}
	span.AddEvent("Total cost rows read", trace.WithAttributes(attribute.Int("row.count", len(out))))

	logrus.WithFields(logrus.Fields{
		"fields":     q.Fields,
		"rows":       len(out),
		"connection": conn.ID(),
		"query_cost": conn.Cost(),
	}).Debug("total cost computed")
	return out, nil
}

// buildTotalCost validates q and compiles it. Nothing is sent to the warehouse.
func (b *Billing) buildTotalCost(q model.TotalCostQuery) (string, *filter.Compiler, error) {
	if err := q.ValidateTotalCostQuery(); err != nil {
		return "", nil, err
	}

	backend, err := b.SelectBackend(q.Source, q.Fields, q.Filters.Fields())
	if err != nil {
		return "", nil, err
	}

	timeColumn := backend.TimeColumn
	if q.TimeColumn != "" {
		if !backend.AllowsTimeColumn(string(q.TimeColumn)) {
			return "", nil, apierror.NewDisallowedField("cannot use %q as time column on the %s source", q.TimeColumn, backend.Source)
		}
		timeColumn = string(q.TimeColumn)
	}

	granularity, err := timegroup.Parse(q.TimePeriods)
	if err != nil {
		return "", nil, err
	}
	plan := timegroup.Build(granularity, timeColumn, backend.Column(model.ColumnInvoiceMonth))

	filtersOp, err := filter.ParseFiltersOp(q.FiltersOp)
	if err != nil {
		return "", nil, err
	}
	userFilters, err := q.Filters.WithOp(filtersOp)
	if err != nil {
		return "", nil, err
	}

	fields := make([]model.BillingColumn, 0, len(q.Fields))
	for _, f := range q.Fields {
		// The time bucket already provides "day".
		if !plan.IsZero() && f == model.ColumnDay {
			continue
		}
		fields = append(fields, f)
	}

	orderBy, err := orderByClause(q.OrderBy, fields, !plan.IsZero())
	if err != nil {
		return "", nil, err
	}

	c := backend.Compiler()
	start, end := q.Start(), q.End()

	window, err := backend.Policy.Window(start, end).Predicate(c)
	if err != nil {
		return "", nil, err
	}

	dateRange, err := filter.NewBuilder().
		Field(timeColumn, filter.Range(filter.Timestamp(start), filter.Timestamp(endOfDay(end)))).
		Build()
	if err != nil {
		return "", nil, err
	}
	rangePredicate, err := c.Where(dateRange)
	if err != nil {
		return "", nil, err
	}

	where := []string{window, rangePredicate}
	userPredicate, err := c.Where(userFilters)
	if err != nil {
		return "", nil, err
	}
	if userPredicate != "" {
		where = append(where, "("+userPredicate+")")
	}

	selects := make([]string, len(fields))
	names := make([]string, len(fields))
	for i, f := range fields {
		selects[i] = backend.SelectExpr(f)
		names[i] = string(f)
	}

	var inner string
	if q.Grouped() {
		inner = fmt.Sprintf("SELECT %s%sSUM(cost) AS cost\n    FROM `%s`\n    WHERE %s",
			plan.Field, columnList(selects), backend.Table, strings.Join(where, " AND "))
		if groupBy := strings.TrimSuffix(plan.GroupBy+columnList(names), ", "); groupBy != "" {
			inner += "\n    GROUP BY " + groupBy
		}
	} else {
		inner = fmt.Sprintf("SELECT %s%scost\n    FROM `%s`\n    WHERE %s",
			plan.Field, columnList(selects), backend.Table, strings.Join(where, " AND "))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "WITH t AS (\n    %s\n)\nSELECT %s%scost FROM t", inner, plan.Formula, columnList(names))
	if orderBy != "" {
		sb.WriteString("\nORDER BY " + orderBy)
	}
	if q.Limit != nil {
		sb.WriteString("\nLIMIT " + c.Param("limit", filter.Int(int64(*q.Limit))))
		if q.Offset != nil {
			sb.WriteString(" OFFSET " + c.Param("offset", filter.Int(int64(*q.Offset))))
		}
	}

	return sb.String(), c, nil
}

// columnList renders cols as a prefix of a longer column list: "a, b, ".
func columnList(cols []string) string {
	if len(cols) == 0 {
		return ""
	}
	return strings.Join(cols, ", ") + ", "
}

func orderByClause(order model.OrderBy, fields []model.BillingColumn, timeGrouped bool) (string, error) {
	if len(order) == 0 {
		return "", nil
	}
	allowed := map[string]bool{string(model.ColumnCost): true}
	for _, f := range fields {
		allowed[string(f)] = true
	}
	if timeGrouped {
		allowed[string(model.ColumnDay)] = true
	}

	parts := make([]string, 0, len(order))
	for _, o := range order {
		if err := filter.ValidateSortField(string(o.Field), allowed); err != nil {
			return "", err
		}
		dir := "ASC"
		if o.Descending {
			dir = "DESC"
		}
		parts = append(parts, string(o.Field)+" "+dir)
	}
	return strings.Join(parts, ", "), nil
}

func endOfDay(t time.Time) time.Time {
	return t.AddDate(0, 0, 1).Add(-time.Second)
}
