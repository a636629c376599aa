// Package partition describes how each cost table is partitioned and renders the
// predicate that prunes partitions for a date range.
package partition

import (
	"fmt"
	"time"

	"github.com/populationgenomics/metamist-sub002/internal/filter"
)

const (
	// IngestionSlackDays is added to the upper bound of ingestion-time partitions.
	// Rows land in the partition of the day they were ingested, up to ~5 days after usage.
	IngestionSlackDays = 7

	// LoadLagDays is how far back from the newest partition the last fully loaded day is.
	// Same-day data is routinely incomplete.
	LoadLagDays = 2

	IngestionTimeColumn = "_PARTITIONTIME"
	DayColumn           = "day"
	UsageEndTimeColumn  = "usage_end_time"

	UsageStartTimeColumn = "usage_start_time"
)

// Window is the partition range scanned for a query.
type Window struct {
	Column    string
	Lower     time.Time
	Upper     time.Time
	SlackDays int
}

// Predicate renders "<column> BETWEEN <lower> AND <upper>" through c so the bounds share
// the query's placeholder registry.
func (w Window) Predicate(c *filter.Compiler) (string, error) {
	return c.Between(w.Column, filter.Timestamp(w.Lower), filter.Timestamp(w.Upper))
}

// Policy maps a logical date range onto a partition window.
type Policy interface {
	Column() string
	Window(start, end time.Time) Window
}

type columnPolicy struct {
	column string
	slack  int
	// wholeDay is set for columns holding instants rather than day boundaries; the upper
	// bound then runs to the last second of the end day.
	wholeDay bool
}

func (p columnPolicy) Column() string {
	return p.column
}

func (p columnPolicy) Window(start, end time.Time) Window {
	upper := end.AddDate(0, 0, p.slack)
	if p.wholeDay {
		upper = upper.AddDate(0, 0, 1).Add(-time.Second)
	}
	return Window{
		Column:    p.column,
		Lower:     start,
		Upper:     upper,
		SlackDays: p.slack,
	}
}

// Day partitions on the logical usage day.
func Day() Policy {
	return columnPolicy{column: DayColumn}
}

// IngestionTime partitions on the ingestion timestamp with IngestionSlackDays of slack.
func IngestionTime() Policy {
	return columnPolicy{column: IngestionTimeColumn, slack: IngestionSlackDays}
}

// UsageEndTime partitions directly on usage_end_time. The window covers the whole end day.
func UsageEndTime() Policy {
	return columnPolicy{column: UsageEndTimeColumn, wholeDay: true}
}

// LastLoadedDayExpr is the warehouse expression for the last fully loaded day of column.
func LastLoadedDayExpr(column string) string {
	return fmt.Sprintf("TIMESTAMP_ADD(MAX(%s), INTERVAL -%d DAY)", column, LoadLagDays)
}
