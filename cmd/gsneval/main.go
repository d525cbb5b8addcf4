package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"gsneval/internal/config"
	"gsneval/internal/logging"
	"gsneval/internal/report"
	"gsneval/internal/storage"

	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:   "gsneval",
		Short: "Score AI safety evaluations against GSN goal structures",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.LoadConfig(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if cmd.Flags().Changed("db") {
				c.Storage.DBPath = dbPath
			}
			cfg = c
			logging.Init(logging.ParseLevel(cfg.Log.Level), cfg.Log.Format, os.Stderr)
			return nil
		},
		SilenceUsage: true,
	}
	configPath string
	dbPath     string
	cfg        *config.Config
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the configuration file")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "gsneval.db", "Path to the leaf registry database (SQLite)")

	rootCmd.AddCommand(exploreCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(leavesCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(detailCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(nodeCmd)
}

// initRegistry opens the SQLite leaf registry.
func initRegistry() (*storage.SQLiteRegistry, error) {
	slog.Debug("opening registry", "path", cfg.Storage.DBPath)
	return storage.NewSQLiteRegistry(cfg.Storage.DBPath)
}

func tableMode(markdown bool) report.Mode {
	if markdown {
		return report.Markdown
	}
	return report.ASCII
}
