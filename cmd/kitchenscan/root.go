package main

import (
	"github.com/spf13/cobra"

	"github.com/kitchenstock/scanner/config"
)

var (
	cfgFile     string
	catalogFile string
	cfg         *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "kitchenscan",
	Short: "Delivery note and recipe scanning for the kitchen stock app",
	Long: `kitchenscan reads photographed delivery notes and recipe sheets,
splits them into line items and matches each item against the product catalog.

Corrections confirmed by users are remembered and used on later scans.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if catalogFile != "" {
			loaded.Catalog.Path = catalogFile
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml, ./config/config.yaml or /etc/kitchenscan/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&catalogFile, "catalog", "", "product catalog file (YAML or JSON), overrides catalog.path",
	)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(correctionsCmd)
}
