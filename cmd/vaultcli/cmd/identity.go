package cmd

import (
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nostrvault/nostrvault/internal/capability"
)

var identityCmd = &cobra.Command{
	Use:   "identity",
	Short: "Manage identities",
}

var identityNickname string

var identityAddCmd = &cobra.Command{
	Use:   "add [private-key-hex]",
	Short: "Add an identity; generates a fresh key when none is given",
	Args:  cobra.MaximumNArgs(1),
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

		key := capability.GeneratePrivateKey()
		if len(args) == 1 {
			key = args[0]
		}
		ident, err := a.vault.AddIdentity(ctx, identityNickname, key)
		if err != nil {
			return err
		}
		color.Green("Added identity %s (%s)", ident.Nickname, ident.ID)
		return nil
	},
}

var identityListCmd = &cobra.Command{
	Use:   "list",
	Short: "List identities",
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

		idents, err := a.vault.Identities()
		if err != nil {
			return err
		}
		selected, err := a.vault.SelectedIdentity()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		defer w.Flush()
		for _, ident := range idents {
			mark := " "
			if selected != nil && selected.ID == ident.ID {
				mark = "*"
			}
			pub, err := capability.NewNostrProvider().PublicKey(ident.PrivateKeyHex)
			if err != nil {
				return err
			}
			writeRow(w, mark, ident.ID, ident.Nickname, pub, ident.CreatedAt.Format("2006-01-02"))
		}
		return nil
	},
}

var identitySelectCmd = &cobra.Command{
	Use:   "select <identity-id>",
	Short: "Make an identity the active one",
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

		if err := a.vault.SelectIdentity(ctx, args[0]); err != nil {
			return err
		}
		color.Green("Selected %s", args[0])
		return nil
	},
}

var identityDeleteCmd = &cobra.Command{
	Use:   "delete <identity-id>",
	Short: "Delete an identity and everything it owns",
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

		if err := a.vault.DeleteIdentity(ctx, args[0]); err != nil {
			return err
		}
		color.Yellow("Deleted %s and its permissions and relays", args[0])
		return nil
	},
}

func init() {
	identityAddCmd.Flags().StringVarP(&identityNickname, "nickname", "n", "", "display name for the identity")
	identityCmd.AddCommand(identityAddCmd)
	identityCmd.AddCommand(identityListCmd)
	identityCmd.AddCommand(identitySelectCmd)
	identityCmd.AddCommand(identityDeleteCmd)
}
