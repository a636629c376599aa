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
package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"regexp"
	"sort"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/populationgenomics/metamist-sub002/internal/apierror"
	"github.com/populationgenomics/metamist-sub002/internal/filter"
)

const (
	DateLayout         = "2006-01-02"
	InvoiceMonthLayout = "200601"
)

var invoiceMonthRegex = regexp.MustCompile(`^\d{6}$`)

// FilterParseOptions describes the structured columns of billing filters.
var FilterParseOptions = &filter.ParseOptions{
	MetaFields:   []string{string(ColumnLabels)},
	NestedFields: []string{string(ColumnSku)},
}

// SortField orders total cost rows by one column.
type SortField struct {
	Field      BillingColumn `json:"field"`
	Descending bool          `json:"descending"`
}

// OrderBy decodes either {"cost": true, "day": false} (true = descending, key order kept)
// or a list of SortField.
type OrderBy []SortField

func (o *OrderBy) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var fields []SortField
		if err := json.Unmarshal(trimmed, &fields); err != nil {
			return err
		}
		*o = fields
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	if _, err := dec.Token(); err != nil {
		return err
	}
	var fields OrderBy
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		var desc bool
		if err := dec.Decode(&desc); err != nil {
			return apierror.NewInvalidParameter("order_by.%s must be a boolean", key)
		}
		fields = append(fields, SortField{Field: BillingColumn(key), Descending: desc})
	}
	*o = fields
	return nil
}

// TotalCostQuery selects cost grouped by arbitrary columns over a date range.
type TotalCostQuery struct {
	Fields      []BillingColumn `json:"fields"`
	StartDate   string          `json:"start_date"`
	EndDate     string          `json:"end_date"`
	Filters     *filter.Model   `json:"-"`
	FiltersOp   string          `json:"filters_op"`
	GroupBy     *bool           `json:"group_by"`
	OrderBy     OrderBy         `json:"order_by"`
	TimeColumn  BillingColumn   `json:"time_column"`
	TimePeriods string          `json:"time_periods"`
	Source      BillingSource   `json:"source"`
	Limit       *int            `json:"limit"`
	Offset      *int            `json:"offset"`
}

func (q *TotalCostQuery) UnmarshalJSON(data []byte) error {
	type alias TotalCostQuery
	aux := struct {
		*alias
		Filters json.RawMessage `json:"filters"`
	}{alias: (*alias)(q)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return apierror.NewInvalidParameter("invalid total cost query: %v", err)
	}
	if len(aux.Filters) == 0 || string(bytes.TrimSpace(aux.Filters)) == "null" {
		q.Filters = nil
		return nil
	}
	m, err := filter.ParseSpec(aux.Filters, FilterParseOptions)
	if err != nil {
		return err
	}
	q.Filters = m
	return nil
}

// Grouped reports whether rows are aggregated. Defaults to true.
func (q *TotalCostQuery) Grouped() bool {
	return q.GroupBy == nil || *q.GroupBy
}

func (q *TotalCostQuery) Start() time.Time {
	t, _ := time.Parse(DateLayout, q.StartDate)
	return t
}

func (q *TotalCostQuery) End() time.Time {
	t, _ := time.Parse(DateLayout, q.EndDate)
	return t
}

func (q *TotalCostQuery) ValidateTotalCostQuery() error {
	err := validation.ValidateStruct(q,
		validation.Field(&q.StartDate, validation.Required, validation.Date(DateLayout)),
		validation.Field(&q.EndDate, validation.Required, validation.Date(DateLayout)),
		validation.Field(&q.Fields, validation.Required),
		validation.Field(&q.Source, validation.In(SourceAggregate, SourceExtended, SourceGcpBilling, SourceRaw)),
		validation.Field(&q.Limit, validation.NilOrNotEmpty, validation.Min(1)),
		validation.Field(&q.Offset, validation.Min(0),
			validation.When(q.Limit == nil, validation.Nil.Error("requires limit"))),
	)
	if err != nil {
		return toAPIError(err)
	}
	if q.End().Before(q.Start()) {
		return apierror.NewInvalidParameter("end_date must not be before start_date")
	}
	return nil
}

// RunningCostQuery asks for the running cost of one invoice month grouped by Field.
type RunningCostQuery struct {
	Field        BillingColumn `json:"field"`
	InvoiceMonth string        `json:"invoice_month"`
	Source       BillingSource `json:"source"`
}

func (q *RunningCostQuery) ValidateRunningCostQuery() error {
	err := validation.ValidateStruct(q,
		validation.Field(&q.Field, validation.Required),
		validation.Field(&q.InvoiceMonth, validation.Required, validation.By(func(value interface{}) error {
			_, err := ParseInvoiceMonth(value.(string))
			return err
		})),
	)
	if err != nil {
		return toAPIError(err)
	}
	if !q.Field.IsRunningCostColumn() {
		return apierror.NewDisallowedField("running cost is not available for field %q", q.Field)
	}
	return nil
}

// ParseInvoiceMonth accepts exactly six digits forming a real YYYYMM month.
func ParseInvoiceMonth(s string) (time.Time, error) {
	if !invoiceMonthRegex.MatchString(s) {
		return time.Time{}, apierror.NewInvalidParameter("invoice month %q must be 6 digits (YYYYMM)", s)
	}
	t, err := time.Parse(InvoiceMonthLayout, s)
	if err != nil || t.Format(InvoiceMonthLayout) != s {
		return time.Time{}, apierror.NewInvalidParameter("invoice month %q is not a calendar month", s)
	}
	return t, nil
}

// toAPIError maps ozzo validation errors onto the API error taxonomy: a missing value
// becomes MissingParameter, anything else InvalidParameter.
func toAPIError(err error) error {
	var errs validation.Errors
	if !errors.As(err, &errs) {
		return err
	}

	keys := make([]string, 0, len(errs))
	for key := range errs {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		var verr validation.Error
		if errors.As(errs[key], &verr) && verr.Code() == validation.ErrRequired.Code() {
			return apierror.NewMissingParameter("%s is required", key)
		}
	}
	for _, key := range keys {
		var apiErr apierror.APIError
		if errors.As(errs[key], &apiErr) {
			return apiErr
		}
	}
	return apierror.NewInvalidParameter("%s", errs.Error())
}
