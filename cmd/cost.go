package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/populationgenomics/metamist-sub002/internal/filter"
	"github.com/populationgenomics/metamist-sub002/model"
)

func runningCostCommand(a *app) *cobra.Command {
	var q model.RunningCostQuery
	var field, source string

	cmd := &cobra.Command{
		Use:   "running-cost",
		Short: "Summarize the cost of an invoice month",
		RunE: func(cmd *cobra.Command, args []string) error {
			q.Field = model.BillingColumn(field)
			q.Source = model.BillingSource(source)
			records, err := a.billing.GetRunningCost(cmd.Context(), q)
			if err != nil {
				return err
			}
			return printJSON(records)
		},
	}
	cmd.Flags().StringVar(&field, "field", string(model.ColumnTopic), "column to group by")
	cmd.Flags().StringVar(&q.InvoiceMonth, "invoice-month", "", "invoice month as YYYYMM")
	cmd.Flags().StringVar(&source, "source", "", "billing source (aggregate or extended)")
	return cmd
}

func totalCostCommand(a *app) *cobra.Command {
	var (
		queryFile   string
		fields      []string
		filters     []string
		start, end  string
		source      string
		timePeriods string
		filtersOp   string
		limit       int
	)

	cmd := &cobra.Command{
		Use:   "total-cost",
		Short: "Total cost grouped by fields over a date range",
		Long: `Total cost grouped by fields over a date range.

The query is read from --query (a JSON file, "-" for stdin) or assembled from flags.
Filters given as flags use the field_op=value form, e.g. --filter topic_in=hail,seqr.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var q model.TotalCostQuery
			if queryFile != "" {
				data, err := readQueryFile(queryFile)
				if err != nil {
					return err
				}
				if err := json.Unmarshal(data, &q); err != nil {
					return err
				}
			} else {
				q = model.TotalCostQuery{
					StartDate:   start,
					EndDate:     end,
					Source:      model.BillingSource(source),
					TimePeriods: timePeriods,
					FiltersOp:   filtersOp,
				}
				for _, f := range fields {
					q.Fields = append(q.Fields, model.BillingColumn(f))
				}
				if limit > 0 {
					q.Limit = &limit
				}
				m, err := parseFilterFlags(filters)
				if err != nil {
					return err
				}
				q.Filters = m
			}

			rows, err := a.billing.GetTotalCost(cmd.Context(), q)
			if err != nil {
				return err
			}
			return printJSON(rows)
		},
	}
	cmd.Flags().StringVar(&queryFile, "query", "", "JSON query file")
	cmd.Flags().StringSliceVar(&fields, "fields", nil, "columns to group by")
	cmd.Flags().StringArrayVar(&filters, "filter", nil, "filter as field_op=value, repeatable")
	cmd.Flags().StringVar(&start, "start-date", "", "first day, YYYY-MM-DD")
	cmd.Flags().StringVar(&end, "end-date", "", "last day, YYYY-MM-DD")
	cmd.Flags().StringVar(&source, "source", "", "billing source: aggregate, extended, gcp_billing or raw")
	cmd.Flags().StringVar(&timePeriods, "time-periods", "", "time grouping: day, week, month or invoice_month")
	cmd.Flags().StringVar(&filtersOp, "filters-op", "AND", "how filters combine: AND or OR")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of rows")
	return cmd
}

func readQueryFile(path string) ([]byte, error) {
	if path == "-" {
		var raw json.RawMessage
		if err := json.NewDecoder(os.Stdin).Decode(&raw); err != nil {
			return nil, err
		}
		return raw, nil
	}
	return os.ReadFile(path)
}

// parseFilterFlags turns field_op=value flags into a filter model.
func parseFilterFlags(flags []string) (*filter.Model, error) {
	if len(flags) == 0 {
		return nil, nil
	}
	values := make(map[string][]string, len(flags))
	for _, f := range flags {
		key, value, ok := strings.Cut(f, "=")
		if !ok {
			return nil, fmt.Errorf("filter %q must look like field_op=value", f)
		}
		values[key] = append(values[key], value)
	}

	res := filter.ParseFromQuery(values, model.FilterParseOptions)
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("invalid filter %s: %s", res.Errors[0].Param, res.Errors[0].Message)
	}
	return res.Model, nil
}

func filterOptionsCommand(a *app) *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "filter-options",
		Short: "List the values available for each filterable column",
		RunE: func(cmd *cobra.Command, args []string) error {
			if refresh {
				for _, col := range append(model.FilterOptionColumns(), model.ColumnInvoiceMonth) {
					if err := a.billing.InvalidateFieldValues(cmd.Context(), col, ""); err != nil {
						return err
					}
				}
			}
			options, err := a.billing.GetFilterOptions(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(options)
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "ignore cached values")
	return cmd
}
