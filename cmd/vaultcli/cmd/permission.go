package cmd

import (
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var permissionCmd = &cobra.Command{
	Use:     "permission",
	Aliases: []string{"perm"},
	Short:   "Inspect and revoke stored authorization rules",
}

var permissionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()
		if err := a.unlock(ctx); err != nil {
			return err
		}

		perms, err := a.vault.Permissions()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		defer w.Flush()
		writeRow(w, "ID", "HOST", "METHOD", "KIND", "ACTION")
		for _, p := range perms {
			kind := "*"
			if p.Kind != nil {
				kind = strconv.Itoa(*p.Kind)
			}
			writeRow(w, p.ID, p.Host, string(p.Method), kind, string(p.Action))
		}
		return nil
	},
}

var permissionDeleteCmd = &cobra.Command{
	Use:   "delete <permission-id>",
	Short: "Revoke a stored rule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()
		if err := a.unlock(ctx); err != nil {
			return err
		}

		if err := a.vault.DeletePermission(ctx, args[0]); err != nil {
			return err
		}
		color.Yellow("Revoked %s", args[0])
		return nil
	},
}

func init() {
	permissionCmd.AddCommand(permissionListCmd)
	permissionCmd.AddCommand(permissionDeleteCmd)
}
