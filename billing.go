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

package billing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"

	"github.com/populationgenomics/metamist-sub002/config"
	"github.com/populationgenomics/metamist-sub002/database"
	"github.com/populationgenomics/metamist-sub002/internal/cache"
	"github.com/populationgenomics/metamist-sub002/internal/filter"
	"github.com/populationgenomics/metamist-sub002/internal/warehouse"
	"github.com/populationgenomics/metamist-sub002/model"
)

var (
	tracer = otel.Tracer("metamist.billing")
)

// Billing answers cost queries against the warehouse and annotates them with the
// budgets and classifications kept in the relational store.
type Billing struct {
	warehouse  warehouse.Connector
	datasource database.IDataSource
	tables     config.BillingTables
	values     *cache.Lookup[[]string]
	now        func() time.Time
}

// NewBilling wires a Billing. c may be nil, in which case field values are read on every call.
func NewBilling(connector warehouse.Connector, ds database.IDataSource, tables config.BillingTables, c cache.Cache, ttl time.Duration) *Billing {
	b := &Billing{
		warehouse:  connector,
		datasource: ds,
		tables:     tables,
		now:        time.Now,
	}
	if c != nil {
		b.values = cache.NewLookup(c, "billing:values:", ttl, b.loadFieldValues)
	}
	return b
}

// SelectBackend resolves the backend for a query on this deployment's tables.
func (b *Billing) SelectBackend(source model.BillingSource, fields []model.BillingColumn, filterFields []string) (*Backend, error) {
	return SelectBackend(b.tables, source, fields, filterFields)
}

// SetBudget records a new monthly budget for a GCP project.
func (b *Billing) SetBudget(ctx context.Context, project string, amount decimal.Decimal, currency string) error {
	return b.datasource.SetBudget(ctx, project, amount, currency)
}

// SetCostCategoryGroup classifies a cost category as compute or storage.
func (b *Billing) SetCostCategoryGroup(ctx context.Context, category string, group model.CostGroup) error {
	return b.datasource.UpsertCostCategoryGroup(ctx, category, group)
}

// ListCostCategoryGroups returns the explicit cost category classifications.
func (b *Billing) ListCostCategoryGroups(ctx context.Context, filters *filter.Model) ([]model.CostCategoryGroup, error) {
	return b.datasource.ListCostCategoryGroups(ctx, filters)
}

func (b *Billing) today() time.Time {
	now := b.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
