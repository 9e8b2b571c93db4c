package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"tbot/internal/config"
	"tbot/internal/db"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "tbotctl",
		Short:   "tbotctl - administer the task bot's database",
		Version: Version,
	}
	rootCmd.PersistentFlags().String("config", "", "Config file (default $TBOT_CONFIG or tbot.toml)")
	rootCmd.PersistentFlags().String("database", "", "Database URL (overrides config)")

	// Add subcommands
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(usersCmd())
	rootCmd.AddCommand(tasksCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// connect resolves the database URL from flags and config and opens a pool.
func connect(cmd *cobra.Command) (*pgxpool.Pool, *config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	url, _ := cmd.Flags().GetString("database")
	if url == "" {
		url = cfg.DatabaseURL
	}
	pool, err := db.Connect(context.Background(), url)
	if err != nil {
		return nil, nil, err
	}
	return pool, cfg, nil
}
