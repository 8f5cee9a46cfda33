// vanadm is the VanirDB administration shell.
//
// It executes administration commands (user, role, privilege, and database
// management) against a VanirDB store, either one-shot:
//
//	vanadm exec "CREATE USER alice SET PASSWORD 'wonder'"
//
// or interactively:
//
//	vanadm shell
//
// Storage defaults to in-memory; pass --data-dir (or set VANIRDB_DATA_DIR)
// to persist to a Badger directory.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/orneryd/vanirdb/pkg/config"
)

func main() {
	cfg := config.FromEnv()

	root := &cobra.Command{
		Use:           "vanadm",
		Short:         "VanirDB administration shell",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "Badger storage directory (empty = in-memory)")
	root.PersistentFlags().StringVar(&cfg.AuditLog, "audit-log", cfg.AuditLog, "audit log file (empty = disabled)")
	root.PersistentFlags().IntVar(&cfg.MaxDatabases, "max-databases", cfg.MaxDatabases, "database count limit (0 = unlimited)")

	var principal string
	root.PersistentFlags().StringVar(&principal, "as", "root", "principal to execute as")

	root.AddCommand(newExecCommand(cfg, &principal))
	root.AddCommand(newShellCommand(cfg, &principal))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
