package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CostRow is one (field, cost category) aggregate read from the warehouse.
// DailyCost is nil when no daily figure applies.
type CostRow struct {
	Field        string
	CostCategory string
	MonthlyCost  float64
	DailyCost    *float64
}

type CostDetail struct {
	CostGroup    CostGroup `json:"cost_group"`
	CostCategory string    `json:"cost_category"`
	DailyCost    *float64  `json:"daily_cost"`
	MonthlyCost  float64   `json:"monthly_cost"`
}

// BillingCostBudgetRecord is one row of a running cost summary.
type BillingCostBudgetRecord struct {
	Field          string       `json:"field"`
	TotalMonthly   float64      `json:"total_monthly"`
	TotalDaily     *float64     `json:"total_daily"`
	ComputeMonthly float64      `json:"compute_monthly"`
	ComputeDaily   *float64     `json:"compute_daily"`
	StorageMonthly float64      `json:"storage_monthly"`
	StorageDaily   *float64     `json:"storage_daily"`
	Details        []CostDetail `json:"details"`
	BudgetSpent    *float64     `json:"budget_spent"`
	Budget         *float64     `json:"budget"`
	LastLoadedDay  *string      `json:"last_loaded_day"`
}

// GcpProjectBudget is the monthly spending budget of a GCP project.
type GcpProjectBudget struct {
	GcpProject string          `json:"gcp_project"`
	Budget     decimal.Decimal `json:"budget"`
	Currency   string          `json:"currency"`
	CreatedAt  time.Time       `json:"created_at"`
}

// CostCategoryGroup pins a cost category to a cost group.
type CostCategoryGroup struct {
	CostCategory string    `json:"cost_category"`
	CostGroup    CostGroup `json:"cost_group"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// FilterOptions lists the distinct values available for each filterable column.
type FilterOptions struct {
	Values        map[BillingColumn][]string `json:"values"`
	InvoiceMonths []string                   `json:"invoice_months"`
}
