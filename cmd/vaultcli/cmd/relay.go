package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Manage the selected identity's relay list",
}

var (
	relayRead  bool
	relayWrite bool
)

var relayAddCmd = &cobra.Command{
	Use:   "add <url>",
	Short: "Add a relay for the selected identity",
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

		selected, err := a.vault.SelectedIdentity()
		if err != nil {
			return err
		}
		if selected == nil {
			return fmt.Errorf("no identity selected")
		}

		r, err := a.vault.AddRelay(ctx, selected.ID, args[0], relayRead, relayWrite)
		if err != nil {
			return err
		}
		color.Green("Added relay %s", r.URL)
		return nil
	},
}

var relayListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the selected identity's relays",
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

		selected, err := a.vault.SelectedIdentity()
		if err != nil {
			return err
		}
		if selected == nil {
			return fmt.Errorf("no identity selected")
		}

		relays, err := a.vault.Relays(selected.ID)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		defer w.Flush()
		writeRow(w, "URL", "READ", "WRITE")
		for _, r := range relays {
			writeRow(w, r.URL, fmt.Sprint(r.Read), fmt.Sprint(r.Write))
		}
		return nil
	},
}

func writeRow(w io.Writer, cols ...string) {
	for i, c := range cols {
		if i > 0 {
			fmt.Fprint(w, "\t")
		}
		fmt.Fprint(w, c)
	}
	fmt.Fprintln(w)
}

func init() {
	relayAddCmd.Flags().BoolVar(&relayRead, "read", true, "subscribe from this relay")
	relayAddCmd.Flags().BoolVar(&relayWrite, "write", true, "publish to this relay")
	relayCmd.AddCommand(relayAddCmd)
	relayCmd.AddCommand(relayListCmd)
}
