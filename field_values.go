package billing

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/populationgenomics/metamist-sub002/internal/apierror"
	"github.com/populationgenomics/metamist-sub002/model"
)

const (
	// fieldValueDays is how far back distinct field values are collected.
	fieldValueDays = 90
	// invoiceMonthDays is how far back invoice months are offered.
	invoiceMonthDays = 365
)

// valueColumns read a displayable value out of structured columns.
var valueColumns = map[model.BillingColumn]string{
	model.ColumnSku: "sku.description",
}

// GetFieldValues lists the distinct values field took over the last 90 days.
func (b *Billing) GetFieldValues(ctx context.Context, field model.BillingColumn, source model.BillingSource) ([]string, error) {
	if field == model.ColumnLabels || field == model.ColumnCost || field == model.ColumnDay {
		return nil, apierror.NewDisallowedField("cannot list values of %q", field)
	}
	if _, err := b.SelectBackend(source, []model.BillingColumn{field}, nil); err != nil {
		return nil, err
	}

	key := fieldValuesKey(source, field)
	if b.values == nil {
		return b.loadFieldValues(ctx, key)
	}
	return b.values.Get(ctx, key)
}

// GetFilterOptions collects the values of every filterable column and the invoice months
// with data. Each column is read concurrently on its own warehouse connection.
func (b *Billing) GetFilterOptions(ctx context.Context) (*model.FilterOptions, error) {
	ctx, span := tracer.Start(ctx, "Collecting filter options")
	defer span.End()

	columns := model.FilterOptionColumns()
	values := make([][]string, len(columns))

	g, gctx := errgroup.WithContext(ctx)
	for i, col := range columns {
		g.Go(func() error {
			v, err := b.GetFieldValues(gctx, col, "")
			if err != nil {
				return fmt.Errorf("collecting %s values: %w", col, err)
			}
			values[i] = v
			return nil
		})
	}

	var invoiceMonths []string
	g.Go(func() error {
		v, err := b.GetFieldValues(gctx, model.ColumnInvoiceMonth, "")
		if err != nil {
			return fmt.Errorf("collecting invoice months: %w", err)
		}
		invoiceMonths = v
		return nil
	})

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	options := &model.FilterOptions{
		Values:        make(map[model.BillingColumn][]string, len(columns)),
		InvoiceMonths: invoiceMonths,
	}
	for i, col := range columns {
		options.Values[col] = values[i]
	}
	return options, nil
}

func fieldValuesKey(source model.BillingSource, field model.BillingColumn) string {
	return string(source) + "|" + string(field)
}

// loadFieldValues queries the warehouse for the values cached under key.
func (b *Billing) loadFieldValues(ctx context.Context, key string) ([]string, error) {
	source, field, ok := strings.Cut(key, "|")
	if !ok {
		return nil, apierror.NewInternal("malformed field values key %q", key)
	}
	col := model.BillingColumn(field)

	backend, err := b.SelectBackend(model.BillingSource(source), []model.BillingColumn{col}, nil)
	if err != nil {
		return nil, err
	}

	days, order := fieldValueDays, "ASC"
	if col == model.ColumnInvoiceMonth {
		days, order = invoiceMonthDays, "DESC"
	}

	column := backend.Column(col)
	if vc, ok := valueColumns[col]; ok {
		column = vc
	}

	today := b.today()
	c := backend.Compiler()
	window, err := backend.Policy.Window(today.AddDate(0, 0, -days), today).Predicate(c)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT DISTINCT %s AS value\nFROM `%s`\nWHERE %s AND %s IS NOT NULL\nORDER BY value %s",
		column, backend.Table, window, column, order)

	rows, err := b.query(ctx, b.warehouse.Connect(), query, c)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, stringValue(row["value"]))
	}
	return out, nil
}

// InvalidateFieldValues drops cached values of field so the next read goes to the warehouse.
func (b *Billing) InvalidateFieldValues(ctx context.Context, field model.BillingColumn, source model.BillingSource) error {
	if b.values == nil {
		return nil
	}
	return b.values.Invalidate(ctx, fieldValuesKey(source, field))
}

