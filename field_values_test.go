package billing

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/populationgenomics/metamist-sub002/internal/apierror"
	"github.com/populationgenomics/metamist-sub002/internal/cache"
	"github.com/populationgenomics/metamist-sub002/model"
)

func TestGetFieldValues_Cached(t *testing.T) {
	var calls int32
	w := &fakeWarehouse{respond: func(query string) ([]map[string]bigquery.Value, error) {
		atomic.AddInt32(&calls, 1)
		return []map[string]bigquery.Value{{"value": "hail"}, {"value": "seqr"}}, nil
	}}

	b := NewBilling(w, nil, testTables, cache.New(nil, 100, time.Minute), time.Minute)
	b.now = fixedNow("2024-04-02")
	ctx := context.Background()

	values, err := b.GetFieldValues(ctx, model.ColumnTopic, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"hail", "seqr"}, values)

	values, err = b.GetFieldValues(ctx, model.ColumnTopic, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"hail", "seqr"}, values)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	require.NoError(t, b.InvalidateFieldValues(ctx, model.ColumnTopic, ""))
	_, err = b.GetFieldValues(ctx, model.ColumnTopic, "")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	queries := w.recorded()
	assert.Contains(t, queries[0].text, "SELECT DISTINCT topic AS value")
	assert.Contains(t, queries[0].text, "ORDER BY value ASC")
	assert.Equal(t, "2024-01-03 00:00:00", scalarParam(queries[0], "day_start"))
}

func TestGetFieldValues_Disallowed(t *testing.T) {
	w := &fakeWarehouse{}
	b := newTestBilling(w, nil, "2024-04-02")

	_, err := b.GetFieldValues(context.Background(), model.ColumnCost, "")
	assert.True(t, apierror.IsCode(err, apierror.ErrDisallowedField))

	_, err = b.GetFieldValues(context.Background(), model.ColumnDataset, model.SourceGcpBilling)
	assert.True(t, apierror.IsCode(err, apierror.ErrDisallowedField))
	assert.Empty(t, w.recorded())
}

func TestGetFilterOptions(t *testing.T) {
	w := &fakeWarehouse{respond: func(query string) ([]map[string]bigquery.Value, error) {
		if strings.Contains(query, "invoice_month AS value") {
			return []map[string]bigquery.Value{{"value": "202404"}, {"value": "202403"}}, nil
		}
		return []map[string]bigquery.Value{{"value": "a"}}, nil
	}}
	b := newTestBilling(w, nil, "2024-04-02")

	options, err := b.GetFilterOptions(context.Background())
	require.NoError(t, err)

	columns := model.FilterOptionColumns()
	assert.Len(t, options.Values, len(columns))
	for _, col := range columns {
		assert.Equal(t, []string{"a"}, options.Values[col], col)
	}
	assert.Equal(t, []string{"202404", "202403"}, options.InvoiceMonths)

	// one connection per concurrent read
	assert.Len(t, w.recorded(), len(columns)+1)
	assert.Equal(t, len(columns)+1, w.conns)
}

func TestGetFilterOptions_ErrorCancelsAll(t *testing.T) {
	w := &fakeWarehouse{respond: func(query string) ([]map[string]bigquery.Value, error) {
		if strings.Contains(query, "sku.description") {
			return nil, assert.AnError
		}
		return nil, nil
	}}
	b := newTestBilling(w, nil, "2024-04-02")

	options, err := b.GetFilterOptions(context.Background())
	assert.ErrorIs(t, err, assert.AnError)
	assert.Nil(t, options)
}
