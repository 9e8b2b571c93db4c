package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tbot/pkg/activity"
	"tbot/pkg/task"
	"tbot/pkg/user"
)

func initCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create tables and optionally seed the roster from config",
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, cfg, err := connect(cmd)
			if err != nil {
				return err
			}
			defer pool.Close()
			ctx := cmd.Context()

			if err := task.NewPgStore(pool).EnsureTable(ctx); err != nil {
				return fmt.Errorf("ensure tasks table: %w", err)
			}
			if err := activity.NewPgStore(pool).EnsureTable(ctx); err != nil {
				return fmt.Errorf("ensure activity table: %w", err)
			}
			roster := user.NewPgStore(pool)
			if err := roster.EnsureTable(ctx); err != nil {
				return fmt.Errorf("ensure users table: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Tables ready.")

			if seed, _ := cmd.Flags().GetBool("seed"); seed {
				records := cfg.Directory().Records()
				for _, r := range records {
					if err := roster.Upsert(ctx, r); err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d users.\n", len(records))
			}
			return nil
		},
	}

	cmd.Flags().Bool("seed", false, "Upsert the configured roster")

	return cmd
}
