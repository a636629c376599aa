package database

import (
	"database/sql"
	"embed"
	"fmt"

	migrate "github.com/rubenv/sql-migrate"

	"github.com/populationgenomics/metamist-sub002/internal/filter"
)

//go:embed sql/postgres/*.sql sql/mysql/*.sql
var SQLFiles embed.FS

// Migrations returns the embedded migration set for flavor.
func Migrations(flavor filter.Flavor) (*migrate.EmbedFileSystemMigrationSource, error) {
	switch flavor {
	case filter.Postgres, filter.MySQL:
	default:
		return nil, fmt.Errorf("no migrations for driver %q", flavor)
	}
	return &migrate.EmbedFileSystemMigrationSource{
		FileSystem: SQLFiles,
		Root:       "sql/" + string(flavor),
	}, nil
}

// Migrate applies (migrate.Up) or rolls back (migrate.Down) the schema and returns the
// number of migrations run.
func Migrate(db *sql.DB, flavor filter.Flavor, direction migrate.MigrationDirection) (int, error) {
	source, err := Migrations(flavor)
	if err != nil {
		return 0, err
	}
	return migrate.Exec(db, string(flavor), source, direction)
}
