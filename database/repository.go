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

package database

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/populationgenomics/metamist-sub002/internal/filter"
	"github.com/populationgenomics/metamist-sub002/model"
)

// IDataSource defines the interface for data source operations, grouping related functionalities.
type IDataSource interface {
	budget
	costCategory
}

// budget defines methods for handling GCP project budgets.
type budget interface {
	GetBudgets(ctx context.Context, projects []string) (map[string]model.GcpProjectBudget, error) // Latest budget per project
	SetBudget(ctx context.Context, project string, amount decimal.Decimal, currency string) error  // Records a new budget
}

// costCategory defines methods for handling the cost category classification table.
type costCategory interface {
	ListCostCategoryGroups(ctx context.Context, filters *filter.Model) ([]model.CostCategoryGroup, error)
	UpsertCostCategoryGroup(ctx context.Context, category string, group model.CostGroup) error
	CostCategoryGroups(ctx context.Context) (map[string]model.CostGroup, error) // Cached category -> group mapping
}
