package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tbot/pkg/task"
	"tbot/pkg/workflow"
)

func tasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Inspect stored tasks",
	}
	cmd.AddCommand(tasksListCmd())
	return cmd
}

func tasksListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, cfg, err := connect(cmd)
			if err != nil {
				return err
			}
			defer pool.Close()

			tasks, lastID, err := task.NewPgStore(pool).LoadAll(cmd.Context())
			if err != nil {
				return err
			}
			status, _ := cmd.Flags().GetString("status")
			userID, _ := cmd.Flags().GetInt64("user")
			tasks = filterTasks(tasks, task.Status(status), userID)

			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(tasks)
			}

			loc := cfg.Location()
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTATUS\tPRIORITY\tDUE\tTITLE")
			for _, t := range tasks {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", t.ID, t.Status, t.Priority, workflow.FormatDueDate(t.DueDate, loc), t.Title)
			}
			tw.Flush()
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d task(s), last id %d\n", len(tasks), lastID)
			return nil
		},
	}

	cmd.Flags().StringP("status", "s", "", "Filter by aggregate status")
	cmd.Flags().Int64P("user", "u", 0, "Only tasks this user takes part in")
	cmd.Flags().BoolP("json", "j", false, "Output as JSON")

	return cmd
}

func filterTasks(tasks []*task.Task, status task.Status, userID int64) []*task.Task {
	var out []*task.Task
	for _, t := range tasks {
		if status != "" && t.Status != status {
			continue
		}
		if userID != 0 && !t.IsInvolved(userID) {
			continue
		}
		out = append(out, t)
	}
	return out
}
