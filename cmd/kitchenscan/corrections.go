package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kitchenstock/scanner/internal/usecase"
)

var correctionsCmd = &cobra.Command{
	Use:   "corrections",
	Short: "Inspect and edit the learned corrections",
}

var correctionsRecordCmd = &cobra.Command{
	Use:   "record RAW_NAME PRODUCT_ID PRODUCT_NAME",
	Short: "Remember that RAW_NAME means the given product",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.corrections.Record(cmd.Context(), args[0], args[1], args[2]); err != nil {
			return err
		}

		correction, err := a.corrections.Lookup(cmd.Context(), usecase.NormalizeName(args[0]))
		if err != nil {
			return err
		}
		return printJSON(cmd, correction)
	},
}

var correctionsLookupCmd = &cobra.Command{
	Use:   "lookup NAME",
	Short: "Show the correction stored for NAME",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.close()

		name := usecase.NormalizeName(args[0])
		correction, err := a.corrections.Lookup(cmd.Context(), name)
		if err != nil {
			return err
		}
		if correction == nil {
			return fmt.Errorf("no correction stored for %q", name)
		}
		return printJSON(cmd, correction)
	},
}

var correctionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every stored correction",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.close()

		corrections, err := a.corrections.List(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd, corrections)
	},
}

func init() {
	correctionsCmd.AddCommand(correctionsRecordCmd)
	correctionsCmd.AddCommand(correctionsLookupCmd)
	correctionsCmd.AddCommand(correctionsListCmd)
}
