package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var exportOut string

// Export writes the persisted ciphertext form; it does not need an unlocked
// vault and the output is exactly as safe at rest as the database file.
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the encrypted vault as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		data, err := a.vault.ExportJSON(ctx)
		if err != nil {
			return err
		}
		if exportOut == "" {
			fmt.Println(data)
			return nil
		}
		if err := os.WriteFile(exportOut, []byte(data), 0o600); err != nil {
			return err
		}
		color.Green("Exported vault to %s", exportOut)
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace the vault with a previously exported JSON file",
	Long: `import overwrites the persisted vault with the given export and leaves
it locked. The export's own master password applies afterwards.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		if err := a.vault.ImportJSON(ctx, string(data)); err != nil {
			return err
		}
		color.Green("Vault replaced from %s", args[0])
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "write to file instead of stdout")
}
