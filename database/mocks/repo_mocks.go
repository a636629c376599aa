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
package mocks

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/populationgenomics/metamist-sub002/internal/filter"
	"github.com/populationgenomics/metamist-sub002/model"
)

// MockDataSource is a mock implementation of the IDataSource interface
type MockDataSource struct {
	mock.Mock
}

// Budget methods

func (m *MockDataSource) GetBudgets(ctx context.Context, projects []string) (map[string]model.GcpProjectBudget, error) {
	args := m.Called(ctx, projects)
	budgets, _ := args.Get(0).(map[string]model.GcpProjectBudget)
	return budgets, args.Error(1)
}

func (m *MockDataSource) SetBudget(ctx context.Context, project string, amount decimal.Decimal, currency string) error {
	args := m.Called(ctx, project, amount, currency)
	return args.Error(0)
}

// Cost category methods

func (m *MockDataSource) ListCostCategoryGroups(ctx context.Context, filters *filter.Model) ([]model.CostCategoryGroup, error) {
	args := m.Called(ctx, filters)
	groups, _ := args.Get(0).([]model.CostCategoryGroup)
	return groups, args.Error(1)
}

func (m *MockDataSource) UpsertCostCategoryGroup(ctx context.Context, category string, group model.CostGroup) error {
	args := m.Called(ctx, category, group)
	return args.Error(0)
}

func (m *MockDataSource) CostCategoryGroups(ctx context.Context) (map[string]model.CostGroup, error) {
	args := m.Called(ctx)
	groups, _ := args.Get(0).(map[string]model.CostGroup)
	return groups, args.Error(1)
}
