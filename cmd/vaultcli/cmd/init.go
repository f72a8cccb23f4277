package cmd

import (
	"errors"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a new empty vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		password, err := readPassword("Choose a master password: ")
		if err != nil {
			return err
		}
		confirm, err := readPassword("Repeat master password: ")
		if err != nil {
			return err
		}
		if password != confirm {
			return errors.New("passwords do not match")
		}

		if err := a.vault.Initialize(ctx, password); err != nil {
			return err
		}
		color.Green("Vault created")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether a vault exists and what it contains",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		exists, err := a.vault.Exists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			cmd.Println("No vault found. Run `vaultcli init` to create one.")
			return nil
		}

		st, err := a.vault.CurrentStore(ctx)
		if err != nil {
			return err
		}
		cmd.Printf("Vault version: v%d\n", st.Version)
		cmd.Printf("Identities:    %d\n", len(st.Identities))
		cmd.Printf("Permissions:   %d\n", len(st.Permissions))
		cmd.Printf("Relays:        %d\n", len(st.Relays))
		return nil
	},
}
