// Package cmd implements the vaultcli command tree. The CLI manages the same
// encrypted vault the extension engine does, backed by a local SQLite file
// instead of browser storage.
package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/nostrvault/nostrvault/internal/backup"
	"github.com/nostrvault/nostrvault/internal/config"
	"github.com/nostrvault/nostrvault/internal/logging"
	"github.com/nostrvault/nostrvault/internal/storage"
	"github.com/nostrvault/nostrvault/internal/vault"
)

var (
	dbPath  string
	cfgPath string
)

var rootCmd = &cobra.Command{
	Use:   "vaultcli",
	Short: "Manage a local Nostr identity vault",
	Long: `vaultcli manages an encrypted Nostr identity vault: identities,
permission rules, relay lists and backups.

Private keys never touch disk in plaintext. Every command that reads the
vault asks for the master password and unlocks it in memory only.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "path to the vault database file")
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to a JSON config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(identityCmd)
	rootCmd.AddCommand(permissionCmd)
	rootCmd.AddCommand(relayCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(backupCmd)
}

// app wires the vault and backup managers over a SQLite-backed sync
// partition. The session partition is in-memory: a CLI invocation is one
// process, its unlocked session dies with it.
type app struct {
	db      *sql.DB
	vault   *vault.Manager
	backups *backup.Manager
	cfg     *config.Config
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return nil, err
	}
	path := dbPath
	if path == "" {
		path = cfg.DatabasePath
	}

	db, err := storage.OpenSQLite(ctx, path)
	if err != nil {
		return nil, err
	}

	log := logging.NewDefault()
	syncStore := storage.NewSQLitePartition(db, "sync")
	return &app{
		db:      db,
		vault:   vault.NewManager(syncStore, storage.NewMemoryPartition(), log),
		backups: backup.NewManager(syncStore, cfg.MaxAutoSnapshots, log),
		cfg:     cfg,
	}, nil
}

func (a *app) close() {
	a.db.Close()
}

// unlock prompts for the master password and unlocks the vault. A v1 vault
// is transparently migrated during the unlock.
func (a *app) unlock(ctx context.Context) error {
	password, err := readPassword("Master password: ")
	if err != nil {
		return err
	}
	return a.vault.Unlock(ctx, password)
}

func readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(raw), nil
}
