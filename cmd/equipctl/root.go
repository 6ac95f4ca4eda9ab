package main

import (
	"alcyxob/equipment-app/internal/app"
	"alcyxob/equipment-app/internal/config"
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "equipctl",
	Short:        "Administer the workshop equipment store",
	Long:         "equipctl seeds, inspects and maintains the record store used by the equipment server.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", ".", "Directory containing config.yaml")

	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(resetProgressCmd)
	rootCmd.AddCommand(ensureIndexesCmd)
	rootCmd.AddCommand(tokenCmd)
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	dir, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfig(dir)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// withApp opens the configured store for the duration of fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.New(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}
