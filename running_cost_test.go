package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/populationgenomics/metamist-sub002/database/mocks"
	"github.com/populationgenomics/metamist-sub002/internal/apierror"
	"github.com/populationgenomics/metamist-sub002/model"
)

func fixedNow(s string) func() time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return func() time.Time { return t.Add(10 * time.Hour) }
}

func newTestBilling(w *fakeWarehouse, ds *mocks.MockDataSource, now string) *Billing {
	var b *Billing
	if ds == nil {
		b = NewBilling(w, nil, testTables, nil, 0)
	} else {
		b = NewBilling(w, ds, testTables, nil, 0)
	}
	b.now = fixedNow(now)
	return b
}

func costRow(field, category string, monthly float64, daily interface{}) map[string]bigquery.Value {
	return map[string]bigquery.Value{
		"field":         field,
		"cost_category": category,
		"monthly_cost":  monthly,
		"daily_cost":    daily,
	}
}

func TestInvoiceMonthState(t *testing.T) {
	march := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, currentMonth, invoiceMonthState(march, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, currentMonth, invoiceMonthState(march, time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, historicalMonth, invoiceMonthState(march, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)))
}

func TestGetRunningCost_CurrentMonth(t *testing.T) {
	lastLoaded := time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC)
	w := &fakeWarehouse{respond: func(query string) ([]map[string]bigquery.Value, error) {
		if isLastLoadedQuery(query) {
			return []map[string]bigquery.Value{{"last_loaded_day": lastLoaded}}, nil
		}
		return []map[string]bigquery.Value{costRow("TOPIC1", "Compute Engine", 2345.67, 123.45)}, nil
	}}
	ds := new(mocks.MockDataSource)
	ds.On("CostCategoryGroups", mock.Anything).Return(map[string]model.CostGroup{}, nil)

	b := newTestBilling(w, ds, "2024-03-15")
	records, err := b.GetRunningCost(context.Background(), model.RunningCostQuery{
		Field:        model.ColumnTopic,
		InvoiceMonth: "202403",
	})
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "All Topics", records[0].Field)
	assert.Equal(t, "TOPIC1", records[1].Field)
	for _, rec := range records {
		assert.Equal(t, 2345.67, rec.TotalMonthly)
		assert.Equal(t, 2345.67, rec.ComputeMonthly)
		assert.Equal(t, 0.0, rec.StorageMonthly)
		require.NotNil(t, rec.TotalDaily)
		assert.Equal(t, 123.45, *rec.TotalDaily)
		require.NotNil(t, rec.LastLoadedDay)
		assert.Equal(t, "2024-03-13", *rec.LastLoadedDay)
		assert.Nil(t, rec.Budget)
		require.Len(t, rec.Details, 1)
		assert.Equal(t, model.CostGroupCompute, rec.Details[0].CostGroup)
	}

	queries := w.recorded()
	require.Len(t, queries, 2)
	assert.Contains(t, queries[0].text, "TIMESTAMP_ADD(MAX(day), INTERVAL -2 DAY)")
	assert.Contains(t, queries[1].text, "HAVING SUM(cost) > @min_cost")
	assert.Contains(t, queries[1].text, "LEFT JOIN d ON t.field = d.field")
	assert.Contains(t, queries[1].text, "day = TIMESTAMP(@last_loaded_day)")
	assert.Equal(t, "202403", scalarParam(queries[1], "invoice_month"))
	assert.Equal(t, "2024-03-13 00:00:00", scalarParam(queries[1], "last_loaded_day"))
	assert.Equal(t, 0.1, scalarParam(queries[1], "min_cost"))
	ds.AssertExpectations(t)
}

func TestGetRunningCost_HistoricalMonthHasNoDaily(t *testing.T) {
	w := &fakeWarehouse{respond: func(query string) ([]map[string]bigquery.Value, error) {
		return []map[string]bigquery.Value{
			costRow("hail", "Compute Engine", 100.5, nil),
			costRow("hail", "Cloud Storage", 20.25, nil),
			costRow("seqr", "Cloud Storage Archive", 3.0, nil),
		}, nil
	}}

	b := newTestBilling(w, nil, "2024-05-02")
	records, err := b.GetRunningCost(context.Background(), model.RunningCostQuery{
		Field:        model.ColumnTopic,
		InvoiceMonth: "202403",
	})
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, []string{"All Topics", "hail", "seqr"}, []string{records[0].Field, records[1].Field, records[2].Field})
	for _, rec := range records {
		assert.Nil(t, rec.TotalDaily)
		assert.Nil(t, rec.ComputeDaily)
		assert.Nil(t, rec.StorageDaily)
		assert.Nil(t, rec.LastLoadedDay)
		for _, d := range rec.Details {
			assert.Nil(t, d.DailyCost)
		}
	}

	assert.InDelta(t, 123.75, records[0].TotalMonthly, 1e-9)
	assert.InDelta(t, 23.25, records[0].StorageMonthly, 1e-9)
	assert.InDelta(t, 100.5, records[1].ComputeMonthly, 1e-9)
	assert.InDelta(t, 20.25, records[1].StorageMonthly, 1e-9)
	assert.Equal(t, 3.0, records[2].StorageMonthly)

	queries := w.recorded()
	require.Len(t, queries, 1)
	assert.NotContains(t, queries[0].text, "last_loaded_day")
	assert.Contains(t, queries[0].text, "day BETWEEN TIMESTAMP(@day_start) AND TIMESTAMP(@day_end)")
	assert.Equal(t, "2024-03-31 00:00:00", scalarParam(queries[0], "day_end"))
}

func TestGetRunningCost_CurrentMonthWithoutData(t *testing.T) {
	w := &fakeWarehouse{respond: func(query string) ([]map[string]bigquery.Value, error) {
		if isLastLoadedQuery(query) {
			return []map[string]bigquery.Value{{"last_loaded_day": nil}}, nil
		}
		return nil, nil
	}}

	b := newTestBilling(w, nil, "2024-03-01")
	records, err := b.GetRunningCost(context.Background(), model.RunningCostQuery{
		Field:        model.ColumnGcpProject,
		InvoiceMonth: "202403",
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "All GCP Projects", records[0].Field)
	assert.Nil(t, records[0].LastLoadedDay)
	require.NotNil(t, records[0].TotalDaily)
	assert.Equal(t, 0.0, *records[0].TotalDaily)
}

func TestGetRunningCost_Budgets(t *testing.T) {
	w := &fakeWarehouse{respond: func(query string) ([]map[string]bigquery.Value, error) {
		if isLastLoadedQuery(query) {
			return []map[string]bigquery.Value{{"last_loaded_day": time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC)}}, nil
		}
		return []map[string]bigquery.Value{
			costRow("proj-a", "Compute Engine", 500, 10.0),
			costRow("proj-b", "Cloud Storage", 80, nil),
		}, nil
	}}
	ds := new(mocks.MockDataSource)
	ds.On("CostCategoryGroups", mock.Anything).Return(map[string]model.CostGroup{}, nil)
	ds.On("GetBudgets", mock.Anything, []string{"proj-a", "proj-b"}).Return(map[string]model.GcpProjectBudget{
		"proj-a": {GcpProject: "proj-a", Budget: decimal.NewFromInt(1000), Currency: "AUD"},
	}, nil)

	b := newTestBilling(w, ds, "2024-03-15")
	records, err := b.GetRunningCost(context.Background(), model.RunningCostQuery{
		Field:        model.ColumnGcpProject,
		InvoiceMonth: "202403",
	})
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Nil(t, records[0].Budget)
	require.NotNil(t, records[1].Budget)
	assert.Equal(t, 1000.0, *records[1].Budget)
	require.NotNil(t, records[1].BudgetSpent)
	assert.Equal(t, 50.0, *records[1].BudgetSpent)
	assert.Nil(t, records[2].Budget)
	assert.Nil(t, records[2].BudgetSpent)
	require.NotNil(t, records[2].StorageDaily)
	assert.Equal(t, 0.0, *records[2].StorageDaily)
	ds.AssertExpectations(t)
}

func TestGetRunningCost_NoBudgetsForHistoricalMonth(t *testing.T) {
	w := &fakeWarehouse{respond: func(query string) ([]map[string]bigquery.Value, error) {
		return []map[string]bigquery.Value{costRow("proj-a", "Compute Engine", 500, nil)}, nil
	}}
	ds := new(mocks.MockDataSource)
	ds.On("CostCategoryGroups", mock.Anything).Return(map[string]model.CostGroup{}, nil)

	b := newTestBilling(w, ds, "2024-06-15")
	records, err := b.GetRunningCost(context.Background(), model.RunningCostQuery{
		Field:        model.ColumnGcpProject,
		InvoiceMonth: "202403",
	})
	require.NoError(t, err)
	for _, rec := range records {
		assert.Nil(t, rec.Budget)
	}
	ds.AssertNotCalled(t, "GetBudgets", mock.Anything, mock.Anything)
}

func TestGetRunningCost_ClassificationOverridesPrefix(t *testing.T) {
	w := &fakeWarehouse{respond: func(query string) ([]map[string]bigquery.Value, error) {
		return []map[string]bigquery.Value{
			costRow("hail", "Persistent Disk", 40, nil),
			costRow("hail", "Cloud Storage Egress", 10, nil),
		}, nil
	}}
	ds := new(mocks.MockDataSource)
	ds.On("CostCategoryGroups", mock.Anything).Return(map[string]model.CostGroup{
		"Persistent Disk":      model.CostGroupStorage,
		"Cloud Storage Egress": model.CostGroupCompute,
	}, nil)

	b := newTestBilling(w, ds, "2024-06-15")
	records, err := b.GetRunningCost(context.Background(), model.RunningCostQuery{
		Field:        model.ColumnTopic,
		InvoiceMonth: "202403",
	})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 40.0, records[1].StorageMonthly)
	assert.Equal(t, 10.0, records[1].ComputeMonthly)
}

func TestGetRunningCost_ValidationBeforeQuery(t *testing.T) {
	tests := []struct {
		name  string
		query model.RunningCostQuery
		code  apierror.ErrorCode
	}{
		{"short month", model.RunningCostQuery{Field: model.ColumnTopic, InvoiceMonth: "2024"}, apierror.ErrInvalidParameter},
		{"bad calendar month", model.RunningCostQuery{Field: model.ColumnTopic, InvoiceMonth: "202413"}, apierror.ErrInvalidParameter},
		{"missing month", model.RunningCostQuery{Field: model.ColumnTopic}, apierror.ErrMissingParameter},
		{"disallowed field", model.RunningCostQuery{Field: model.ColumnSku, InvoiceMonth: "202403"}, apierror.ErrDisallowedField},
		{"raw source", model.RunningCostQuery{Field: model.ColumnTopic, InvoiceMonth: "202403", Source: model.SourceRaw}, apierror.ErrInvalidParameter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &fakeWarehouse{}
			b := newTestBilling(w, nil, "2024-03-15")
			_, err := b.GetRunningCost(context.Background(), tt.query)
			assert.True(t, apierror.IsCode(err, tt.code), "got %v", err)
			assert.Empty(t, w.recorded())
		})
	}
}

func TestGetRunningCost_WarehouseErrorPropagates(t *testing.T) {
	boom := errors.New("quota exceeded")
	w := &fakeWarehouse{respond: func(query string) ([]map[string]bigquery.Value, error) {
		return nil, boom
	}}
	b := newTestBilling(w, nil, "2024-06-15")
	_, err := b.GetRunningCost(context.Background(), model.RunningCostQuery{
		Field:        model.ColumnTopic,
		InvoiceMonth: "202403",
	})
	assert.ErrorIs(t, err, boom)
}

func TestRollupInvariants(t *testing.T) {
	categories := []string{"Compute Engine", "Cloud Storage", "Cloud Storage Archive", "BigQuery", "Kubernetes Engine"}
	fields := []string{"hail", "seqr", "ourdna", "tob-wgs"}

	for run := 0; run < 20; run++ {
		r := newRollup(model.ColumnTopic.TotalLabel(), nil)
		var expectedMonthly float64
		n := gofakeit.Number(1, 50)
		for i := 0; i < n; i++ {
			daily := gofakeit.Float64Range(0, 100)
			row := model.CostRow{
				Field:        gofakeit.RandomString(fields),
				CostCategory: gofakeit.RandomString(categories),
				MonthlyCost:  gofakeit.Float64Range(0.1, 10000),
				DailyCost:    &daily,
			}
			expectedMonthly += row.MonthlyCost
			r.add(row)
		}

		for _, withDaily := range []bool{true, false} {
			records := r.records(withDaily)
			assert.Equal(t, "All Topics", records[0].Field)
			assert.InDelta(t, expectedMonthly, records[0].TotalMonthly, 1e-6)

			for _, rec := range records {
				assert.Equal(t, rec.ComputeMonthly+rec.StorageMonthly, rec.TotalMonthly)
				if withDaily {
					require.NotNil(t, rec.TotalDaily)
					assert.Equal(t, *rec.ComputeDaily+*rec.StorageDaily, *rec.TotalDaily)
				} else {
					assert.Nil(t, rec.TotalDaily)
				}
			}
		}
	}
}

func TestRollupKeepsValueNamedLikeTotal(t *testing.T) {
	r := newRollup(model.ColumnTopic.TotalLabel(), nil)
	r.add(model.CostRow{Field: "All Topics", CostCategory: "Compute Engine", MonthlyCost: 10})
	r.add(model.CostRow{Field: "hail", CostCategory: "Compute Engine", MonthlyCost: 5})

	records := r.records(false)
	require.Len(t, records, 3)

	assert.Equal(t, "All Topics", records[0].Field)
	assert.Equal(t, 15.0, records[0].TotalMonthly)
	assert.Equal(t, "All Topics", records[1].Field)
	assert.Equal(t, 10.0, records[1].TotalMonthly)
	assert.Equal(t, "hail", records[2].Field)
	assert.Equal(t, 5.0, records[2].TotalMonthly)
}
