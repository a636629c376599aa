package database

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/populationgenomics/metamist-sub002/internal/apierror"
	"github.com/populationgenomics/metamist-sub002/internal/cache"
	"github.com/populationgenomics/metamist-sub002/internal/filter"
	"github.com/populationgenomics/metamist-sub002/model"
)

var categoryColumns = []string{"cost_category", "cost_group", "updated_at"}

func TestListCostCategoryGroups_Filtered(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := New(db, filter.Postgres, nil, 0)
	m, err := filter.NewBuilder().Field("cost_group", "Storage").Build()
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT cost_category, cost_group, updated_at FROM cost_category_group WHERE cost_group = $1 ORDER BY cost_category")).
		WithArgs("Storage").
		WillReturnRows(sqlmock.NewRows(categoryColumns).AddRow("Cloud Storage", "Storage", time.Now()))

	groups, err := ds.ListCostCategoryGroups(context.Background(), m)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, model.CostGroupStorage, groups[0].CostGroup)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListCostCategoryGroups_DisallowedField(t *testing.T) {
	ds := &Datasource{Flavor: filter.Postgres}
	m, err := filter.NewBuilder().Field("updated_at", "2024-01-01").Build()
	require.NoError(t, err)

	_, err = ds.ListCostCategoryGroups(context.Background(), m)
	assert.True(t, apierror.IsCode(err, apierror.ErrDisallowedField))
}

func TestUpsertCostCategoryGroup(t *testing.T) {
	tests := []struct {
		name   string
		flavor filter.Flavor
		query  string
	}{
		{
			name:   "postgres",
			flavor: filter.Postgres,
			query:  "INSERT INTO cost_category_group (cost_category, cost_group, updated_at) VALUES ($1, $2, $3) ON CONFLICT (cost_category) DO UPDATE",
		},
		{
			name:   "mysql",
			flavor: filter.MySQL,
			query:  "INSERT INTO cost_category_group (cost_category, cost_group, updated_at) VALUES (?, ?, ?) ON DUPLICATE KEY UPDATE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			ds := New(db, tt.flavor, nil, 0)
			mock.ExpectExec(regexp.QuoteMeta(tt.query)).
				WithArgs("Persistent Disk", "Storage", sqlmock.AnyArg()).
				WillReturnResult(sqlmock.NewResult(1, 1))

			require.NoError(t, ds.UpsertCostCategoryGroup(context.Background(), "Persistent Disk", model.CostGroupStorage))
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUpsertCostCategoryGroup_InvalidGroup(t *testing.T) {
	ds := &Datasource{Flavor: filter.Postgres}

	err := ds.UpsertCostCategoryGroup(context.Background(), "Compute Engine", model.CostGroup("Network"))
	assert.True(t, apierror.IsCode(err, apierror.ErrInvalidParameter))

	err = ds.UpsertCostCategoryGroup(context.Background(), "", model.CostGroupCompute)
	assert.True(t, apierror.IsCode(err, apierror.ErrMissingParameter))
}

func TestCostCategoryGroups_CachedUntilUpsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := New(db, filter.Postgres, cache.New(nil, 10, time.Minute), time.Minute)
	ctx := context.Background()
	list := regexp.QuoteMeta("SELECT cost_category, cost_group, updated_at FROM cost_category_group ORDER BY cost_category")

	mock.ExpectQuery(list).
		WillReturnRows(sqlmock.NewRows(categoryColumns).AddRow("Compute Engine", "Compute", time.Now()))

	groups, err := ds.CostCategoryGroups(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.CostGroupCompute, groups["Compute Engine"])

	// served from cache, no second query expected
	groups, err = ds.CostCategoryGroups(ctx)
	require.NoError(t, err)
	assert.Len(t, groups, 1)

	mock.ExpectExec("INSERT INTO cost_category_group").
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, ds.UpsertCostCategoryGroup(ctx, "Compute Engine", model.CostGroupStorage))

	mock.ExpectQuery(list).
		WillReturnRows(sqlmock.NewRows(categoryColumns).AddRow("Compute Engine", "Storage", time.Now()))

	groups, err = ds.CostCategoryGroups(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.CostGroupStorage, groups["Compute Engine"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
