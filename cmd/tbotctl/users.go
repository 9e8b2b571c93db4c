package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tbot/pkg/user"
)

func usersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage the roster",
	}
	cmd.AddCommand(usersListCmd())
	cmd.AddCommand(usersAddCmd())
	cmd.AddCommand(usersRemoveCmd())
	return cmd
}

func usersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users and their directions",
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, _, err := connect(cmd)
			if err != nil {
				return err
			}
			defer pool.Close()

			records, err := user.NewPgStore(pool).List(cmd.Context())
			if err != nil {
				return err
			}
			printUsers(cmd, records)
			return nil
		},
	}
}

func printUsers(cmd *cobra.Command, records []user.Record) {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tHANDLE\tDIRECTIONS")
	for _, r := range records {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", r.User.ID, r.User.FullName, r.User.Handle, strings.Join(r.Directions, ","))
	}
	tw.Flush()
}

func usersAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add [id] [full name]",
		Short: "Add or update a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid user id %q", args[0])
			}
			pool, cfg, err := connect(cmd)
			if err != nil {
				return err
			}
			defer pool.Close()

			role, _ := cmd.Flags().GetString("role")
			handle, _ := cmd.Flags().GetString("handle")
			dirs, _ := cmd.Flags().GetStringSlice("directions")

			r, err := buildRecord(cfg.Directory(), id, args[1], role, handle, dirs)
			if err != nil {
				return err
			}
			if err := user.NewPgStore(pool).Upsert(cmd.Context(), r); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%d).\n", r.User.FullName, r.User.ID)
			return nil
		},
	}

	cmd.Flags().String("role", "", "Role shown next to the name")
	cmd.Flags().String("handle", "", "Chat handle, e.g. @name")
	cmd.Flags().StringSliceP("directions", "d", nil, "Direction codes or labels")

	return cmd
}

// buildRecord normalizes direction names against the directory's labels.
func buildRecord(d *user.Directory, id int64, name, role, handle string, dirs []string) (user.Record, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return user.Record{}, fmt.Errorf("full name is required")
	}
	r := user.Record{User: user.User{ID: id, FullName: name, Role: role, Handle: handle}}
	for _, dir := range dirs {
		code, ok := d.NormalizeDirection(dir)
		if !ok {
			return user.Record{}, fmt.Errorf("unknown direction %q (known: %s)", dir, strings.Join(d.DirectionCodes(), ", "))
		}
		r.Directions = append(r.Directions, code)
	}
	return r, nil
}

func usersRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove [id]",
		Short: "Remove a user from the roster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid user id %q", args[0])
			}
			pool, _, err := connect(cmd)
			if err != nil {
				return err
			}
			defer pool.Close()
			return user.NewPgStore(pool).Remove(cmd.Context(), id)
		},
	}
}
