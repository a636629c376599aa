package main

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/populationgenomics/metamist-sub002/internal/filter"
	"github.com/populationgenomics/metamist-sub002/model"
)

func budgetCommands(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Manage GCP project budgets",
	}

	var currency string
	setCmd := &cobra.Command{
		Use:   "set <gcp-project> <amount>",
		Short: "Record a new monthly budget for a project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := decimal.NewFromString(args[1])
			if err != nil {
				return fmt.Errorf("invalid budget amount %q: %w", args[1], err)
			}
			if err := a.billing.SetBudget(cmd.Context(), args[0], amount, currency); err != nil {
				return err
			}
			fmt.Printf("Budget for %s set to %s %s\n", args[0], amount.StringFixed(2), currency)
			return nil
		},
	}
	setCmd.Flags().StringVar(&currency, "currency", "AUD", "budget currency")

	getCmd := &cobra.Command{
		Use:   "get [gcp-project...]",
		Short: "Show the current budget of projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			budgets, err := a.datasource.GetBudgets(cmd.Context(), args)
			if err != nil {
				return err
			}
			return printJSON(budgets)
		},
	}

	cmd.AddCommand(setCmd, getCmd)
	return cmd
}

func costCategoryCommands(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cost-category",
		Short: "Manage the compute/storage classification of cost categories",
	}

	setCmd := &cobra.Command{
		Use:   "set <cost-category> <Compute|Storage>",
		Short: "Classify a cost category",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.billing.SetCostCategoryGroup(cmd.Context(), args[0], model.CostGroup(args[1])); err != nil {
				return err
			}
			fmt.Printf("%s classified as %s\n", args[0], args[1])
			return nil
		},
	}

	var group string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List explicit classifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := filter.NewBuilder().Field("cost_group", optional(group)).Build()
			if err != nil {
				return err
			}
			groups, err := a.billing.ListCostCategoryGroups(cmd.Context(), m)
			if err != nil {
				return err
			}
			return printJSON(groups)
		},
	}
	listCmd.Flags().StringVar(&group, "group", "", "only list categories of this group")

	cmd.AddCommand(setCmd, listCmd)
	return cmd
}

// optional maps "" to nil so the builder leaves the field out.
func optional(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
