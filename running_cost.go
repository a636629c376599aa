/*
Copyright 2024 The Metamist Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package billing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/sirupsen/logrus"
	"github.com/wacul/ptr"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/populationgenomics/metamist-sub002/internal/apierror"
	"github.com/populationgenomics/metamist-sub002/internal/filter"
	"github.com/populationgenomics/metamist-sub002/internal/partition"
	"github.com/populationgenomics/metamist-sub002/internal/warehouse"
	"github.com/populationgenomics/metamist-sub002/model"
)

// minMonthlyCost drops (field, category) pairs whose monthly total is noise.
const minMonthlyCost = 0.1

// monthState tells whether an invoice month is still accruing cost.
type monthState int

const (
	historicalMonth monthState = iota
	currentMonth
)

func (s monthState) String() string {
	if s == currentMonth {
		return "current"
	}
	return "historical"
}

// invoiceMonthState compares the last calendar day of the month starting at start with today.
func invoiceMonthState(start, today time.Time) monthState {
	lastDay := start.AddDate(0, 1, -1)
	if lastDay.Before(today) {
		return historicalMonth
	}
	return currentMonth
}

// GetRunningCost summarizes the cost of one invoice month grouped by q.Field. The first
// record is the synthetic total. For the current month each record also carries the cost
// of the last fully loaded day; for past months daily figures are null.
func (b *Billing) GetRunningCost(ctx context.Context, q model.RunningCostQuery) ([]model.BillingCostBudgetRecord, error) {
	ctx, span := tracer.Start(ctx, "Computing running cost")
	defer span.End()

	if err := q.ValidateRunningCostQuery(); err != nil {
		span.RecordError(err)
		return nil, err
	}
	switch q.Source {
	case "", model.SourceAggregate, model.SourceExtended:
	default:
		return nil, apierror.NewInvalidParameter("running cost is not available for the %s source", q.Source)
	}

	backend, err := b.SelectBackend(q.Source, []model.BillingColumn{q.Field}, nil)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	start, _ := model.ParseInvoiceMonth(q.InvoiceMonth)
	end := start.AddDate(0, 1, -1)
	state := invoiceMonthState(start, b.today())
	span.SetAttributes(
		attribute.String("billing.field", string(q.Field)),
		attribute.String("billing.invoice_month", q.InvoiceMonth),
		attribute.String("billing.month_state", state.String()),
	)

	// Loaded before the first warehouse query.
	classes, err := b.costCategoryGroups(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	conn := b.warehouse.Connect()

	var lastLoaded *time.Time
	if state == currentMonth {
		lastLoaded, err = b.lastLoadedDay(ctx, conn, backend, start, end)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
	}

	rows, err := b.runningCostRows(ctx, conn, backend, q, start, end, lastLoaded)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.AddEvent("Running cost rows read", trace.WithAttributes(attribute.Int("row.count", len(rows))))

	r := newRollup(q.Field.TotalLabel(), classes)
	for _, row := range rows {
		if state == currentMonth && row.DailyCost == nil {
			row.DailyCost = ptr.Float64(0)
		}
		r.add(row)
	}
	records := r.records(state == currentMonth)

	if state == currentMonth && q.Field == model.ColumnGcpProject {
		if err := b.attachBudgets(ctx, records[1:]); err != nil {
			span.RecordError(err)
			return nil, err
		}
	}
	if lastLoaded != nil {
		day := lastLoaded.Format(model.DateLayout)
		for i := range records {
			records[i].LastLoadedDay = ptr.String(day)
		}
	}

	logrus.WithFields(logrus.Fields{
		"field":         q.Field,
		"invoice_month": q.InvoiceMonth,
		"state":         state.String(),
		"records":       len(records),
		"connection":    conn.ID(),
		"query_cost":    conn.Cost(),
	}).Debug("running cost computed")

	return records, nil
}

// lastLoadedDay returns the last fully loaded day of the month, or nil when the month has no rows yet.
func (b *Billing) lastLoadedDay(ctx context.Context, conn warehouse.Runner, backend *Backend, start, end time.Time) (*time.Time, error) {
	c := backend.Compiler()
	window, err := backend.Policy.Window(start, end).Predicate(c)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s AS last_loaded_day FROM `%s` WHERE %s",
		partition.LastLoadedDayExpr(backend.TimeColumn), backend.Table, window)

	rows, err := b.query(ctx, conn, query, c)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	day, ok := rows[0]["last_loaded_day"].(time.Time)
	if !ok {
		return nil, nil
	}
	day = day.UTC()
	return &day, nil
}

func (b *Billing) runningCostRows(ctx context.Context, conn warehouse.Runner, backend *Backend, q model.RunningCostQuery, start, end time.Time, lastLoaded *time.Time) ([]model.CostRow, error) {
	c := backend.Compiler()
	window, err := backend.Policy.Window(start, end).Predicate(c)
	if err != nil {
		return nil, err
	}
	invoiceMonth := c.Param("invoice_month", filter.String(q.InvoiceMonth))
	field := backend.Column(q.Field)
	minCost := c.Param("min_cost", filter.Float(minMonthlyCost))

	monthly := fmt.Sprintf(`SELECT COALESCE(%s, '') AS field, cost_category, SUM(cost) AS cost
    FROM `+"`%s`"+`
    WHERE %s AND %s = %s
    GROUP BY field, cost_category
    HAVING SUM(cost) > %s`,
		field, backend.Table, window, backend.Column(model.ColumnInvoiceMonth), invoiceMonth, minCost)

	var query string
	if lastLoaded == nil {
		query = fmt.Sprintf(`WITH t AS (
    %s
)
SELECT field, cost_category, cost AS monthly_cost, NULL AS daily_cost
FROM t
ORDER BY field, cost_category`, monthly)
	} else {
		day := c.Param("last_loaded_day", filter.Timestamp(*lastLoaded))
		daily := fmt.Sprintf(`SELECT COALESCE(%s, '') AS field, cost_category, SUM(cost) AS cost
    FROM `+"`%s`"+`
    WHERE %s AND %s = %s AND %s = %s
    GROUP BY field, cost_category`,
			field, backend.Table, window, backend.Column(model.ColumnInvoiceMonth), invoiceMonth, backend.TimeColumn, day)

		query = fmt.Sprintf(`WITH t AS (
    %s
), d AS (
    %s
)
SELECT t.field, t.cost_category, t.cost AS monthly_cost, d.cost AS daily_cost
FROM t
LEFT JOIN d ON t.field = d.field AND t.cost_category = d.cost_category
ORDER BY t.field, t.cost_category`, monthly, daily)
	}

	rows, err := b.query(ctx, conn, query, c)
	if err != nil {
		return nil, err
	}

	out := make([]model.CostRow, 0, len(rows))
	for _, row := range rows {
		monthlyCost, _ := floatValue(row["monthly_cost"])
		cr := model.CostRow{
			Field:        stringValue(row["field"]),
			CostCategory: stringValue(row["cost_category"]),
			MonthlyCost:  monthlyCost,
		}
		if daily, ok := floatValue(row["daily_cost"]); ok {
			cr.DailyCost = ptr.Float64(daily)
		}
		out = append(out, cr)
	}
	return out, nil
}

// attachBudgets sets budget and budget_spent on project records that have a budget.
func (b *Billing) attachBudgets(ctx context.Context, records []model.BillingCostBudgetRecord) error {
	if b.datasource == nil || len(records) == 0 {
		return nil
	}
	projects := make([]string, 0, len(records))
	for _, rec := range records {
		if rec.Field != "" {
			projects = append(projects, rec.Field)
		}
	}
	if len(projects) == 0 {
		return nil
	}

	budgets, err := b.datasource.GetBudgets(ctx, projects)
	if err != nil {
		return err
	}
	for i := range records {
		budget, ok := budgets[records[i].Field]
		if !ok {
			continue
		}
		amount := budget.Budget.InexactFloat64()
		records[i].Budget = ptr.Float64(amount)
		if amount > 0 {
			records[i].BudgetSpent = ptr.Float64(100 * records[i].TotalMonthly / amount)
		}
	}
	return nil
}

func (b *Billing) costCategoryGroups(ctx context.Context) (map[string]model.CostGroup, error) {
	if b.datasource == nil {
		return nil, nil
	}
	return b.datasource.CostCategoryGroups(ctx)
}

// query runs a compiled query on conn and drains the result.
func (b *Billing) query(ctx context.Context, conn warehouse.Runner, query string, c *filter.Compiler) ([]map[string]bigquery.Value, error) {
	logrus.WithFields(logrus.Fields{
		"connection": conn.ID(),
		"query":      strings.Join(strings.Fields(query), " "),
	}).Debug("running billing query")

	it, err := conn.Run(ctx, query, filter.QueryParameters(c.Bindings()))
	if err != nil {
		return nil, err
	}
	return warehouse.ReadRows(it)
}
