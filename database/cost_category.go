package database

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/populationgenomics/metamist-sub002/internal/apierror"
	"github.com/populationgenomics/metamist-sub002/internal/filter"
	"github.com/populationgenomics/metamist-sub002/model"
)

const costCategoryGroupsKey = "cost_category_groups"

var costCategoryFields = map[string]bool{
	"cost_category": true,
	"cost_group":    true,
}

// ListCostCategoryGroups returns the classification entries matching filters.
func (d *Datasource) ListCostCategoryGroups(ctx context.Context, filters *filter.Model) ([]model.CostCategoryGroup, error) {
	if err := filter.Validate(filters, costCategoryFields); err != nil {
		return nil, err
	}

	c := d.compiler()
	where, err := c.Where(filters)
	if err != nil {
		return nil, err
	}

	query := "SELECT cost_category, cost_group, updated_at FROM cost_category_group"
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY cost_category"

	query, args, err := d.rebind(query, c.Bindings())
	if err != nil {
		return nil, err
	}

	rows, err := d.Conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apierror.NewInternal("failed to list cost category groups: %v", err)
	}
	defer rows.Close()

	var groups []model.CostCategoryGroup
	for rows.Next() {
		var g model.CostCategoryGroup
		if err := rows.Scan(&g.CostCategory, &g.CostGroup, &g.UpdatedAt); err != nil {
			return nil, apierror.NewInternal("failed to scan cost category group: %v", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewInternal("failed to read cost category groups: %v", err)
	}
	return groups, nil
}

// UpsertCostCategoryGroup classifies category and invalidates the cached classification.
func (d *Datasource) UpsertCostCategoryGroup(ctx context.Context, category string, group model.CostGroup) error {
	ctx, span := otel.Tracer("billing.database").Start(ctx, "Saving cost category group")
	defer span.End()

	if category == "" {
		return apierror.NewMissingParameter("cost_category is required")
	}
	if group != model.CostGroupCompute && group != model.CostGroupStorage {
		return apierror.NewInvalidParameter("cost group must be %q or %q", model.CostGroupCompute, model.CostGroupStorage)
	}

	c := d.compiler()
	values := "(" +
		c.Param("cost_category", filter.String(category)) + ", " +
		c.Param("cost_group", filter.String(string(group))) + ", " +
		c.Param("updated_at", filter.Timestamp(time.Now().UTC())) + ")"

	query := "INSERT INTO cost_category_group (cost_category, cost_group, updated_at) VALUES " + values
	if d.Flavor == filter.MySQL {
		query += " ON DUPLICATE KEY UPDATE cost_group = VALUES(cost_group), updated_at = VALUES(updated_at)"
	} else {
		query += " ON CONFLICT (cost_category) DO UPDATE SET cost_group = EXCLUDED.cost_group, updated_at = EXCLUDED.updated_at"
	}

	query, args, err := d.rebind(query, c.Bindings())
	if err != nil {
		return err
	}

	if _, err := d.Conn.ExecContext(ctx, query, args...); err != nil {
		span.RecordError(err)
		return apierror.NewInternal("failed to save cost category group: %v", err)
	}

	if d.categories != nil {
		if err := d.categories.Invalidate(ctx, costCategoryGroupsKey); err != nil {
			return apierror.NewInternal("failed to invalidate cost category cache: %v", err)
		}
	}
	return nil
}

// CostCategoryGroups returns the full category classification, cached when a cache is configured.
func (d *Datasource) CostCategoryGroups(ctx context.Context) (map[string]model.CostGroup, error) {
	if d.categories == nil {
		return d.loadCostCategoryGroups(ctx)
	}
	return d.categories.Get(ctx, costCategoryGroupsKey)
}

func (d *Datasource) loadCostCategoryGroups(ctx context.Context) (map[string]model.CostGroup, error) {
	groups, err := d.ListCostCategoryGroups(ctx, nil)
	if err != nil {
		return nil, err
	}
	out := make(map[string]model.CostGroup, len(groups))
	for _, g := range groups {
		out[g.CostCategory] = g.CostGroup
	}
	return out, nil
}
