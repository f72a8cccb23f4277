package cmd

import (
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nostrvault/nostrvault/internal/vault/models"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Snapshot and restore the encrypted vault",
}

var backupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Take a manual snapshot of the vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		st, err := a.vault.CurrentStore(ctx)
		if err != nil {
			return err
		}
		snap, err := a.backups.Create(ctx, st, models.SnapshotManual)
		if err != nil {
			return err
		}
		color.Green("Created snapshot %s", snap.ID)
		return nil
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshots, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		snaps, err := a.backups.List(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		defer w.Flush()
		writeRow(w, "ID", "CREATED", "REASON", "IDENTITIES")
		for _, s := range snaps {
			writeRow(w, s.ID, s.CreatedAt.Format(time.RFC3339), string(s.Reason), strconv.Itoa(s.IdentityCount))
		}
		return nil
	},
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore <snapshot-id>",
	Short: "Restore the vault from a snapshot",
	Long: `restore snapshots the current vault first, then replaces it with the
chosen snapshot's contents. The vault is left locked.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		current, err := a.vault.CurrentStore(ctx)
		if err != nil {
			return err
		}
		restored, err := a.backups.Restore(ctx, args[0], current)
		if err != nil {
			return err
		}
		if err := a.vault.ReplaceStore(ctx, restored); err != nil {
			return err
		}
		color.Green("Restored snapshot %s", args[0])
		return nil
	},
}

var backupDeleteCmd = &cobra.Command{
	Use:   "delete <snapshot-id>",
	Short: "Delete a snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.backups.Delete(ctx, args[0]); err != nil {
			return err
		}
		color.Yellow("Deleted snapshot %s", args[0])
		return nil
	},
}

func init() {
	backupCmd.AddCommand(backupCreateCmd)
	backupCmd.AddCommand(backupListCmd)
	backupCmd.AddCommand(backupRestoreCmd)
	backupCmd.AddCommand(backupDeleteCmd)
}
