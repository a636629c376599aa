package database

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"

	"github.com/populationgenomics/metamist-sub002/internal/apierror"
	"github.com/populationgenomics/metamist-sub002/internal/filter"
	"github.com/populationgenomics/metamist-sub002/model"
)

// GetBudgets returns the most recent budget of each project. An empty projects list returns all.
func (d *Datasource) GetBudgets(ctx context.Context, projects []string) (map[string]model.GcpProjectBudget, error) {
	ctx, span := otel.Tracer("billing.database").Start(ctx, "Fetching project budgets")
	defer span.End()

	b := filter.NewBuilder()
	if len(projects) > 0 {
		b.Field("gcp_project", projects)
	}
	m, err := b.Build()
	if err != nil {
		return nil, err
	}

	c := d.compiler()
	where, err := c.Where(m)
	if err != nil {
		return nil, err
	}

	query := "SELECT gcp_project, budget, currency, created_at FROM gcp_project_budget"
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY gcp_project, created_at DESC"

	query, args, err := d.rebind(query, c.Bindings())
	if err != nil {
		return nil, err
	}

	rows, err := d.Conn.QueryContext(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		return nil, apierror.NewInternal("failed to fetch budgets: %v", err)
	}
	defer rows.Close()

	budgets := make(map[string]model.GcpProjectBudget)
	for rows.Next() {
		var budget model.GcpProjectBudget
		if err := rows.Scan(&budget.GcpProject, &budget.Budget, &budget.Currency, &budget.CreatedAt); err != nil {
			return nil, apierror.NewInternal("failed to scan budget: %v", err)
		}
		if _, seen := budgets[budget.GcpProject]; seen {
			continue
		}
		budgets[budget.GcpProject] = budget
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewInternal("failed to read budgets: %v", err)
	}
	return budgets, nil
}

// SetBudget records a new budget for project. Older budgets are kept as history.
func (d *Datasource) SetBudget(ctx context.Context, project string, amount decimal.Decimal, currency string) error {
	ctx, span := otel.Tracer("billing.database").Start(ctx, "Saving project budget")
	defer span.End()

	if project == "" {
		return apierror.NewMissingParameter("gcp_project is required")
	}
	if amount.IsNegative() {
		return apierror.NewInvalidParameter("budget must not be negative")
	}
	if currency == "" {
		currency = "AUD"
	}

	c := d.compiler()
	query := "INSERT INTO gcp_project_budget (gcp_project, budget, currency, created_at) VALUES (" +
		c.Param("gcp_project", filter.String(project)) + ", " +
		c.Param("budget", filter.String(amount.String())) + ", " +
		c.Param("currency", filter.String(currency)) + ", " +
		c.Param("created_at", filter.Timestamp(time.Now().UTC())) + ")"

	query, args, err := d.rebind(query, c.Bindings())
	if err != nil {
		return err
	}

	if _, err := d.Conn.ExecContext(ctx, query, args...); err != nil {
		span.RecordError(err)
		return apierror.NewInternal("failed to save budget: %v", err)
	}
	return nil
}
