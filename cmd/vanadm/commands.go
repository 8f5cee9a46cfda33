package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/orneryd/vanirdb/pkg/audit"
	"github.com/orneryd/vanirdb/pkg/auth"
	"github.com/orneryd/vanirdb/pkg/config"
	"github.com/orneryd/vanirdb/pkg/cypher/adminplan"
	"github.com/orneryd/vanirdb/pkg/multidb"
	"github.com/orneryd/vanirdb/pkg/storage"
)

var (
	okColor     = color.New(color.FgGreen)
	warnColor   = color.New(color.FgYellow)
	errColor    = color.New(color.FgRed)
	headerColor = color.New(color.Bold)
)

func newExecCommand(cfg *config.Config, principal *string) *cobra.Command {
	return &cobra.Command{
		Use:   "exec <query>",
		Short: "Execute one administration command",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, cleanup, err := openRuntime(cfg, *principal)
			if err != nil {
				return err
			}
			defer cleanup()
			return runQuery(cmd.Context(), rt, args[0], *principal, cmd.OutOrStdout())
		},
	}
}

func newShellCommand(cfg *config.Config, principal *string) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive administration shell",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, cleanup, err := openRuntime(cfg, *principal)
			if err != nil {
				return err
			}
			defer cleanup()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "vanadm connected as %s. Type :exit to quit.\n", *principal)
			scanner := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprintf(out, "%s> ", *principal)
				if !scanner.Scan() {
					return scanner.Err()
				}
				line := strings.TrimSpace(scanner.Text())
				switch {
				case line == "":
					continue
				case line == ":exit" || line == ":quit":
					return nil
				}
				if err := runQuery(cmd.Context(), rt, line, *principal, out); err != nil {
					errColor.Fprintln(out, err)
				}
			}
		},
	}
}

// openRuntime wires storage, the system stores, and the audit log into a
// plan runtime. The principal is bootstrapped as an admin when the user
// store is empty, so a fresh installation is administrable.
func openRuntime(cfg *config.Config, principal string) (*adminplan.Runtime, func(), error) {
	var (
		engine storage.Engine
		err    error
	)
	if cfg.DataDir != "" {
		engine, err = storage.NewBadgerEngine(cfg.DataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open storage at %s: %w", cfg.DataDir, err)
		}
	} else {
		engine = storage.NewMemoryEngine()
	}

	mgr, err := multidb.NewDatabaseManager(engine, cfg.MultiDB())
	if err != nil {
		engine.Close()
		return nil, nil, err
	}
	sys, err := mgr.SystemStorage()
	if err != nil {
		engine.Close()
		return nil, nil, err
	}

	users := auth.NewUserStore(sys)
	roles := auth.NewRoleStore(sys)
	privs := auth.NewPrivilegeStore(sys)
	ctx := context.Background()
	if err := users.Load(ctx); err != nil {
		engine.Close()
		return nil, nil, err
	}
	if err := roles.Load(ctx); err != nil {
		engine.Close()
		return nil, nil, err
	}
	if err := privs.Load(ctx); err != nil {
		engine.Close()
		return nil, nil, err
	}

	if len(users.ListUsers()) == 0 {
		if err := users.Create(principal, "vanir", true, false); err != nil {
			engine.Close()
			return nil, nil, err
		}
		if err := roles.GrantToUser("admin", principal); err != nil {
			engine.Close()
			return nil, nil, err
		}
	}

	var auditOut io.Writer
	var auditFile *os.File
	if cfg.AuditLog != "" {
		auditFile, err = os.OpenFile(cfg.AuditLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			engine.Close()
			return nil, nil, fmt.Errorf("failed to open audit log: %w", err)
		}
		auditOut = auditFile
	}

	rt := &adminplan.Runtime{
		Users:      users,
		Roles:      roles,
		Privileges: privs,
		Procedures: auth.DefaultProcedureAllowlist(),
		Databases:  mgr,
		Audit:      audit.NewLogger(auditOut),
	}
	cleanup := func() {
		if auditFile != nil {
			auditFile.Close()
		}
		mgr.Close()
		engine.Close()
	}
	return rt, cleanup, nil
}

func runQuery(ctx context.Context, rt *adminplan.Runtime, query, principal string, out io.Writer) error {
	res, err := rt.Run(ctx, query, principal, nil)
	if err != nil {
		return err
	}
	printResult(out, res)
	return nil
}

func printResult(out io.Writer, res *adminplan.Result) {
	for _, note := range res.Notifications {
		warnColor.Fprintln(out, note)
	}
	if len(res.Columns) > 0 {
		headerColor.Fprintln(out, strings.Join(res.Columns, "\t"))
		for _, row := range res.Rows {
			cells := make([]string, len(row))
			for i, cell := range row {
				cells[i] = fmt.Sprint(cell)
			}
			fmt.Fprintln(out, strings.Join(cells, "\t"))
		}
		fmt.Fprintf(out, "%d row(s)\n", len(res.Rows))
		return
	}
	if res.NoOp {
		okColor.Fprintln(out, "OK (no changes)")
		return
	}
	okColor.Fprintln(out, "OK")
}
