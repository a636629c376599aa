package model

import (
	"encoding/json"
	"testing"

	"github.com/populationgenomics/metamist-sub002/internal/apierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBillingColumnTotalLabel(t *testing.T) {
	tests := map[BillingColumn]string{
		ColumnTopic:                   "All Topics",
		ColumnGcpProject:              "All GCP Projects",
		ColumnComputeCategory:         "All Compute Categories",
		ColumnWdlTaskName:             "All WDL Task Names",
		ColumnCromwellSubWorkflowName: "All Cromwell Sub Workflow Names",
		ColumnCromwellWorkflowID:      "All Cromwell Workflow IDs",
		ColumnNamespace:               "All Namespaces",
	}
	for column, label := range tests {
		assert.Equal(t, label, column.TotalLabel(), column)
	}
}

func TestBillingColumnIsExtended(t *testing.T) {
	assert.True(t, ColumnWdlTaskName.IsExtended())
	assert.False(t, ColumnTopic.IsExtended())
	assert.True(t, ColumnNamespace.IsRunningCostColumn())
	assert.False(t, ColumnSku.IsRunningCostColumn())
}

func TestParseInvoiceMonth(t *testing.T) {
	_, err := ParseInvoiceMonth("202401")
	assert.NoError(t, err)

	for _, bad := range []string{"2024", "202413", "202400", "2024-1", "abcdef", "2024011"} {
		_, err := ParseInvoiceMonth(bad)
		assert.True(t, apierror.IsCode(err, apierror.ErrInvalidParameter), bad)
	}
}

func TestValidateRunningCostQuery(t *testing.T) {
	q := &RunningCostQuery{Field: ColumnTopic, InvoiceMonth: "202403"}
	assert.NoError(t, q.ValidateRunningCostQuery())

	q = &RunningCostQuery{Field: ColumnTopic}
	assert.True(t, apierror.IsCode(q.ValidateRunningCostQuery(), apierror.ErrMissingParameter))

	q = &RunningCostQuery{Field: ColumnTopic, InvoiceMonth: "202413"}
	assert.True(t, apierror.IsCode(q.ValidateRunningCostQuery(), apierror.ErrInvalidParameter))

	q = &RunningCostQuery{Field: ColumnSku, InvoiceMonth: "202403"}
	assert.True(t, apierror.IsCode(q.ValidateRunningCostQuery(), apierror.ErrDisallowedField))
}

func TestValidateTotalCostQuery(t *testing.T) {
	valid := func() *TotalCostQuery {
		return &TotalCostQuery{
			Fields:    []BillingColumn{ColumnTopic},
			StartDate: "2024-03-01",
			EndDate:   "2024-03-31",
		}
	}
	assert.NoError(t, valid().ValidateTotalCostQuery())

	q := valid()
	q.StartDate = ""
	assert.True(t, apierror.IsCode(q.ValidateTotalCostQuery(), apierror.ErrMissingParameter))

	q = valid()
	q.Fields = nil
	assert.True(t, apierror.IsCode(q.ValidateTotalCostQuery(), apierror.ErrMissingParameter))

	q = valid()
	q.EndDate = "31/03/2024"
	assert.True(t, apierror.IsCode(q.ValidateTotalCostQuery(), apierror.ErrInvalidParameter))

	q = valid()
	q.EndDate = "2024-02-01"
	assert.True(t, apierror.IsCode(q.ValidateTotalCostQuery(), apierror.ErrInvalidParameter))

	q = valid()
	q.Source = "warehouse"
	assert.True(t, apierror.IsCode(q.ValidateTotalCostQuery(), apierror.ErrInvalidParameter))

	offset := 20
	q = valid()
	q.Offset = &offset
	assert.True(t, apierror.IsCode(q.ValidateTotalCostQuery(), apierror.ErrInvalidParameter))

	limit := 10
	q.Limit = &limit
	assert.NoError(t, q.ValidateTotalCostQuery())
}

func TestTotalCostQueryUnmarshalJSON(t *testing.T) {
	data := []byte(`{
		"fields": ["topic", "sku"],
		"start_date": "2024-03-01",
		"end_date": "2024-03-31",
		"filters": {"topic": ["hail", "seqr"], "labels": {"sample-type": "blood"}},
		"filters_op": "OR",
		"group_by": false,
		"order_by": {"cost": true, "day": false},
		"time_periods": "week",
		"limit": 10
	}`)

	var q TotalCostQuery
	require.NoError(t, json.Unmarshal(data, &q))

	assert.Equal(t, []BillingColumn{ColumnTopic, ColumnSku}, q.Fields)
	assert.Equal(t, []string{"topic", "labels"}, q.Filters.Fields())
	assert.Equal(t, "OR", q.FiltersOp)
	assert.False(t, q.Grouped())
	assert.Equal(t, OrderBy{{Field: ColumnCost, Descending: true}, {Field: ColumnDay}}, q.OrderBy)
	require.NotNil(t, q.Limit)
	assert.Equal(t, 10, *q.Limit)
}

func TestTotalCostQueryUnmarshalJSONRejectsBadFilters(t *testing.T) {
	var q TotalCostQuery
	err := json.Unmarshal([]byte(`{"filters": {"topic": []}}`), &q)
	assert.True(t, apierror.IsCode(err, apierror.ErrInvalidFilter))
}

func TestGroupedDefaultsToTrue(t *testing.T) {
	var q TotalCostQuery
	require.NoError(t, json.Unmarshal([]byte(`{"fields": ["topic"]}`), &q))
	assert.True(t, q.Grouped())
	assert.Nil(t, q.Filters)
}
