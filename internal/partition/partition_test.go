package partition

import (
	"testing"
	"time"

	"github.com/populationgenomics/metamist-sub002/internal/filter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestIngestionTimeSlack(t *testing.T) {
	w := IngestionTime().Window(date(2024, 1, 1), date(2024, 1, 31))

	assert.Equal(t, IngestionTimeColumn, w.Column)
	assert.Equal(t, date(2024, 1, 1), w.Lower)
	assert.Equal(t, date(2024, 2, 7), w.Upper)
	assert.Equal(t, 7, w.SlackDays)
}

func TestDayAndUsageEndTimeHaveNoSlack(t *testing.T) {
	for _, p := range []Policy{Day(), UsageEndTime()} {
		w := p.Window(date(2024, 3, 1), date(2024, 3, 31))
		assert.Equal(t, p.Column(), w.Column)
		assert.Zero(t, w.SlackDays)
	}
}

func TestUsageEndTimeCoversWholeEndDay(t *testing.T) {
	w := UsageEndTime().Window(date(2024, 3, 1), date(2024, 3, 31))
	assert.Equal(t, time.Date(2024, 3, 31, 23, 59, 59, 0, time.UTC), w.Upper)

	w = Day().Window(date(2024, 3, 1), date(2024, 3, 31))
	assert.Equal(t, date(2024, 3, 31), w.Upper)
}

func TestWindowPredicate(t *testing.T) {
	c := filter.NewCompiler(filter.BigQuery{})

	predicate, err := Day().Window(date(2024, 3, 1), date(2024, 3, 31)).Predicate(c)
	require.NoError(t, err)
	assert.Equal(t, "day BETWEEN TIMESTAMP(@day_start) AND TIMESTAMP(@day_end)", predicate)

	bindings := c.Bindings()
	require.Len(t, bindings, 2)
	assert.Equal(t, "2024-03-01 00:00:00", bindings[0].Value.Interface())
	assert.Equal(t, "2024-03-31 00:00:00", bindings[1].Value.Interface())

	predicate, err = IngestionTime().Window(date(2024, 1, 1), date(2024, 1, 31)).Predicate(c)
	require.NoError(t, err)
	assert.Equal(t, "_PARTITIONTIME BETWEEN TIMESTAMP(@partitiontime_start) AND TIMESTAMP(@partitiontime_end)", predicate)
	assert.Equal(t, "2024-02-07 00:00:00", c.Bindings()[3].Value.Interface())
}

func TestLastLoadedDayExpr(t *testing.T) {
	assert.Equal(t, "TIMESTAMP_ADD(MAX(day), INTERVAL -2 DAY)", LastLoadedDayExpr("day"))
}
