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

/*
Package main provides the CLI commands for managing database migrations.
This includes commands for applying and rolling back migrations.
*/

package main

import (
	"fmt"
	"log"

	migrate "github.com/rubenv/sql-migrate"
	"github.com/spf13/cobra"

	"github.com/populationgenomics/metamist-sub002/config"
	"github.com/populationgenomics/metamist-sub002/database"
	"github.com/populationgenomics/metamist-sub002/internal/filter"
)

// migrateCommands creates the root command for migration-related operations.
func migrateCommands(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "apply or roll back the budget and cost category schema",
	}

	cmd.AddCommand(migrateDirectionCommand(a, "up", migrate.Up))
	cmd.AddCommand(migrateDirectionCommand(a, "down", migrate.Down))

	return cmd
}

// migrateDirectionCommand creates the command for applying or rolling back migrations.
func migrateDirectionCommand(a *app, use string, direction migrate.MigrationDirection) *cobra.Command {
	cmd := &cobra.Command{
		Use: use,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Fetch the configuration.
			if err := config.InitConfig(a.configFile); err != nil {
				return err
			}
			cnf, err := config.Fetch()
			if err != nil {
				log.Printf("Error fetching config: %v", err)
				return err
			}

			// Connect to the database.
			flavor := filter.Flavor(cnf.DataSource.Driver)
			db, err := database.ConnectDB(flavor, cnf.DataSource.Dns)
			if err != nil {
				log.Printf("Error connecting to database: %v", err)
				return err
			}
			defer db.Close()

			n, err := database.Migrate(db, flavor, direction)
			if err != nil {
				return fmt.Errorf("error migrating %s: %w", use, err)
			}
			if direction == migrate.Up {
				fmt.Printf("Applied %d migrations!\n", n)
			} else {
				fmt.Printf("Rolled back %d migrations!\n", n)
			}
			return nil
		},
	}

	return cmd
}
