package billing

import (
	"github.com/populationgenomics/metamist-sub002/config"
	"github.com/populationgenomics/metamist-sub002/internal/apierror"
	"github.com/populationgenomics/metamist-sub002/internal/filter"
	"github.com/populationgenomics/metamist-sub002/internal/partition"
	"github.com/populationgenomics/metamist-sub002/model"
)

// Backend is one physical cost table together with the rules for querying it.
type Backend struct {
	Source     model.BillingSource
	Table      string
	TimeColumn string
	Policy     partition.Policy

	fields      map[model.BillingColumn]bool
	timeColumns map[string]bool
	overrides   map[string]string
}

// AllowsTimeColumn reports whether the date range and time grouping may use col.
func (b *Backend) AllowsTimeColumn(col string) bool {
	return b.timeColumns[col]
}

// Allows reports whether col can be selected, grouped or filtered on.
func (b *Backend) Allows(col model.BillingColumn) bool {
	return b.fields[col]
}

// Column is the physical expression of col.
func (b *Backend) Column(col model.BillingColumn) string {
	if o, ok := b.overrides[string(col)]; ok {
		return o
	}
	return string(col)
}

// SelectExpr selects col under its logical name.
func (b *Backend) SelectExpr(col model.BillingColumn) string {
	if o, ok := b.overrides[string(col)]; ok {
		return o + " AS " + string(col)
	}
	return string(col)
}

// Compiler starts a BigQuery compiler session that knows this table's column overrides.
func (b *Backend) Compiler() *filter.Compiler {
	return filter.NewCompiler(filter.BigQuery{}, filter.WithColumns(b.overrides))
}

func columnSet(groups ...[]model.BillingColumn) map[model.BillingColumn]bool {
	set := make(map[model.BillingColumn]bool)
	for _, g := range groups {
		for _, c := range g {
			set[c] = true
		}
	}
	return set
}

// rawExportOverrides locate logical columns inside a GCP billing export row.
var rawExportOverrides = map[string]string{
	string(model.ColumnGcpProject):   "project.id",
	string(model.ColumnCostCategory): "service.description",
	string(model.ColumnInvoiceMonth): "invoice.month",
}

// aggregateTimeColumns are carried by the aggregate views; the exports have no "day".
var (
	aggregateTimeColumns = map[string]bool{
		partition.DayColumn:            true,
		partition.UsageStartTimeColumn: true,
		partition.UsageEndTimeColumn:   true,
	}
	rawExportTimeColumns = map[string]bool{
		partition.UsageStartTimeColumn: true,
		partition.UsageEndTimeColumn:   true,
	}
)

var rawExportColumns = []model.BillingColumn{
	model.ColumnGcpProject,
	model.ColumnCostCategory,
	model.ColumnSku,
	model.ColumnInvoiceMonth,
	model.ColumnCurrency,
}

func aggregateBackend(tables config.BillingTables) *Backend {
	return &Backend{
		Source:     model.SourceAggregate,
		Table:      tables.Aggregate,
		TimeColumn: partition.DayColumn,
		Policy:     partition.Day(),
		fields:      columnSet(model.StandardColumns(), []model.BillingColumn{model.ColumnLabels}),
		timeColumns: aggregateTimeColumns,
	}
}

func extendedBackend(tables config.BillingTables) *Backend {
	return &Backend{
		Source:     model.SourceExtended,
		Table:      tables.Extended,
		TimeColumn: partition.DayColumn,
		Policy:     partition.Day(),
		fields:      columnSet(model.StandardColumns(), model.ExtendedColumns(), []model.BillingColumn{model.ColumnLabels}),
		timeColumns: aggregateTimeColumns,
	}
}

func gcpBillingBackend(tables config.BillingTables) *Backend {
	return &Backend{
		Source:     model.SourceGcpBilling,
		Table:      tables.GcpBilling,
		TimeColumn: partition.UsageEndTimeColumn,
		Policy:     partition.UsageEndTime(),
		fields:      columnSet(rawExportColumns),
		timeColumns: rawExportTimeColumns,
		overrides:   rawExportOverrides,
	}
}

func rawBackend(tables config.BillingTables) *Backend {
	return &Backend{
		Source:     model.SourceRaw,
		Table:      tables.Raw,
		TimeColumn: partition.UsageEndTimeColumn,
		Policy:     partition.IngestionTime(),
		fields:      columnSet(rawExportColumns),
		timeColumns: rawExportTimeColumns,
		overrides:   rawExportOverrides,
	}
}

// SelectBackend picks the table serving a query over fields with filters on filterFields.
// Without an explicit source, any extended column switches the aggregate view to the
// extended one. Every requested column must be available on the chosen backend.
func SelectBackend(tables config.BillingTables, source model.BillingSource, fields []model.BillingColumn, filterFields []string) (*Backend, error) {
	var backend *Backend
	switch source {
	case "", model.SourceAggregate:
		backend = aggregateBackend(tables)
		if needsExtended(fields, filterFields) {
			backend = extendedBackend(tables)
		}
	case model.SourceExtended:
		backend = extendedBackend(tables)
	case model.SourceGcpBilling:
		backend = gcpBillingBackend(tables)
	case model.SourceRaw:
		backend = rawBackend(tables)
	default:
		return nil, apierror.NewInvalidParameter("unknown billing source %q", source)
	}

	for _, f := range fields {
		if !backend.Allows(f) {
			return nil, apierror.NewDisallowedField("field %q is not available on the %s source", f, backend.Source)
		}
	}
	for _, f := range filterFields {
		if !backend.Allows(model.BillingColumn(f)) {
			return nil, apierror.NewDisallowedField("filtering on %q is not available on the %s source", f, backend.Source)
		}
	}
	return backend, nil
}

func needsExtended(fields []model.BillingColumn, filterFields []string) bool {
	for _, f := range fields {
		if f.IsExtended() {
			return true
		}
	}
	for _, f := range filterFields {
		if model.BillingColumn(f).IsExtended() {
			return true
		}
	}
	return false
}
