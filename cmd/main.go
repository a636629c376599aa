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

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	billing "github.com/populationgenomics/metamist-sub002"
	"github.com/populationgenomics/metamist-sub002/config"
	"github.com/populationgenomics/metamist-sub002/database"
	"github.com/populationgenomics/metamist-sub002/internal/warehouse"
)

// CLI represents the command-line application, encapsulating the root Cobra command.
type CLI struct {
	cmd *cobra.Command
}

// app holds what commands need at runtime. It is filled by preRun.
type app struct {
	configFile string
	cnf        *config.Configuration
	billing    *billing.Billing
	datasource *database.Datasource
	warehouse  *warehouse.Client
}

// recoverPanic handles any panics during program execution and logs the error using Logrus.
func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads configuration and connects to the relational store and the warehouse.
func preRun(a *app) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := config.InitConfig(a.configFile); err != nil {
			return fmt.Errorf("error loading config: %w", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}
		a.cnf = cnf

		ds, err := database.GetDBConnection(cnf)
		if err != nil {
			return fmt.Errorf("error getting datasource: %w", err)
		}
		a.datasource = ds

		wh, err := warehouse.NewClient(cmd.Context(), warehouse.Options{
			ProjectID:      cnf.BigQuery.ProjectID,
			Location:       cnf.BigQuery.Location,
			PricePerTiB:    cnf.BigQuery.PricePerTiB,
			DryRun:         cnf.BigQuery.DryRun,
			MaxBytesBilled: cnf.BigQuery.MaxBytesBilled,
		})
		if err != nil {
			return err
		}
		a.warehouse = wh

		a.billing = billing.NewBilling(wh, ds, cnf.Billing, ds.Cache, cnf.Cache.TTL())
		return nil
	}
}

func postRun(a *app) func(cmd *cobra.Command, args []string) {
	return func(cmd *cobra.Command, args []string) {
		if a.warehouse != nil {
			if err := a.warehouse.Close(); err != nil {
				logrus.WithError(err).Warn("closing warehouse client")
			}
		}
	}
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// NewCLI creates the command-line interface with the cost, budget and migration commands.
func NewCLI() *CLI {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "metamist-billing",
		Short:         "Query and summarize cloud billing costs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&a.configFile, "config", "./metamist.json", "Configuration file")

	// Commands that talk to the warehouse or the relational store share one setup hook.
	withBackends := func(cmd *cobra.Command) *cobra.Command {
		cmd.PersistentPreRunE = preRun(a)
		cmd.PersistentPostRun = postRun(a)
		return cmd
	}

	rootCmd.AddCommand(withBackends(runningCostCommand(a)))
	rootCmd.AddCommand(withBackends(totalCostCommand(a)))
	rootCmd.AddCommand(withBackends(filterOptionsCommand(a)))
	rootCmd.AddCommand(withBackends(budgetCommands(a)))
	rootCmd.AddCommand(withBackends(costCategoryCommands(a)))
	rootCmd.AddCommand(migrateCommands(a))
	rootCmd.AddCommand(configCommands(a))

	return &CLI{cmd: rootCmd}
}

func (c CLI) executeCLI() {
	if err := c.cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
