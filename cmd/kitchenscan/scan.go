package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kitchenstock/scanner/internal/domain"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan a delivery note or a recipe sheet image",
}

var scanDeliveryCmd = &cobra.Command{
	Use:   "delivery IMAGE",
	Short: "Scan a delivery note and match its lines against the catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScan(cmd, args[0], func(a *app, ctx context.Context, image []byte, products []domain.ProductCatalogEntry) (any, error) {
			return a.scans.ProcessDeliveryImage(ctx, image, products, printProgress(cmd))
		})
	},
}

var scanRecipeCmd = &cobra.Command{
	Use:   "recipe IMAGE",
	Short: "Scan a recipe sheet into name, portions, ingredients and steps",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScan(cmd, args[0], func(a *app, ctx context.Context, image []byte, products []domain.ProductCatalogEntry) (any, error) {
			return a.scans.ProcessRecipeImage(ctx, image, products, printProgress(cmd))
		})
	},
}

func init() {
	scanCmd.AddCommand(scanDeliveryCmd)
	scanCmd.AddCommand(scanRecipeCmd)
}

type scanRunner func(a *app, ctx context.Context, image []byte, products []domain.ProductCatalogEntry) (any, error)

func runScan(cmd *cobra.Command, imagePath string, run scanRunner) error {
	image, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	var products []domain.ProductCatalogEntry
	if a.catalog != nil {
		products = a.catalog.Snapshot()
	} else {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning: no catalog configured, every line will be unmatched")
	}

	result, err := run(a, cmd.Context(), image, products)
	if err != nil {
		return err
	}
	return printJSON(cmd, result)
}

func printProgress(cmd *cobra.Command) domain.ProgressFunc {
	return func(p domain.Progress) {
		fmt.Fprintf(cmd.ErrOrStderr(), "%3d%% %s\n", p.Percent, p.Status)
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
