package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/populationgenomics/metamist-sub002/internal/apierror"
	"github.com/populationgenomics/metamist-sub002/internal/partition"
	"github.com/populationgenomics/metamist-sub002/model"
)

func TestSelectBackend(t *testing.T) {
	tests := []struct {
		name         string
		source       model.BillingSource
		fields       []model.BillingColumn
		filterFields []string
		wantSource   model.BillingSource
		wantTable    string
		wantColumn   string
	}{
		{
			name:       "standard fields read the aggregate view",
			fields:     []model.BillingColumn{model.ColumnTopic, model.ColumnDay},
			wantSource: model.SourceAggregate,
			wantTable:  testTables.Aggregate,
			wantColumn: partition.DayColumn,
		},
		{
			name:       "extended field switches view",
			fields:     []model.BillingColumn{model.ColumnTopic, model.ColumnWdlTaskName},
			wantSource: model.SourceExtended,
			wantTable:  testTables.Extended,
			wantColumn: partition.DayColumn,
		},
		{
			name:         "extended filter switches view",
			fields:       []model.BillingColumn{model.ColumnTopic},
			filterFields: []string{"dataset"},
			wantSource:   model.SourceExtended,
			wantTable:    testTables.Extended,
			wantColumn:   partition.DayColumn,
		},
		{
			name:       "gcp billing export",
			source:     model.SourceGcpBilling,
			fields:     []model.BillingColumn{model.ColumnGcpProject},
			wantSource: model.SourceGcpBilling,
			wantTable:  testTables.GcpBilling,
			wantColumn: partition.UsageEndTimeColumn,
		},
		{
			name:       "raw export",
			source:     model.SourceRaw,
			fields:     []model.BillingColumn{model.ColumnCostCategory},
			wantSource: model.SourceRaw,
			wantTable:  testTables.Raw,
			wantColumn: partition.UsageEndTimeColumn,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend, err := SelectBackend(testTables, tt.source, tt.fields, tt.filterFields)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSource, backend.Source)
			assert.Equal(t, tt.wantTable, backend.Table)
			assert.Equal(t, tt.wantColumn, backend.TimeColumn)
		})
	}
}

func TestSelectBackend_Errors(t *testing.T) {
	_, err := SelectBackend(testTables, model.SourceGcpBilling, []model.BillingColumn{model.ColumnDataset}, nil)
	assert.True(t, apierror.IsCode(err, apierror.ErrDisallowedField))

	_, err = SelectBackend(testTables, model.SourceRaw, []model.BillingColumn{model.ColumnGcpProject}, []string{"topic"})
	assert.True(t, apierror.IsCode(err, apierror.ErrDisallowedField))

	_, err = SelectBackend(testTables, "warehouse", []model.BillingColumn{model.ColumnTopic}, nil)
	assert.True(t, apierror.IsCode(err, apierror.ErrInvalidParameter))
}

func TestBackendColumns(t *testing.T) {
	raw, err := SelectBackend(testTables, model.SourceRaw, []model.BillingColumn{model.ColumnGcpProject}, nil)
	require.NoError(t, err)
	assert.Equal(t, "project.id", raw.Column(model.ColumnGcpProject))
	assert.Equal(t, "project.id AS gcp_project", raw.SelectExpr(model.ColumnGcpProject))
	assert.Equal(t, "currency", raw.SelectExpr(model.ColumnCurrency))
	assert.Equal(t, partition.IngestionTimeColumn, raw.Policy.Column())

	agg, err := SelectBackend(testTables, "", []model.BillingColumn{model.ColumnGcpProject}, nil)
	require.NoError(t, err)
	assert.Equal(t, "gcp_project", agg.Column(model.ColumnGcpProject))
}
