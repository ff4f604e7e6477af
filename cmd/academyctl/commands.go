package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"golang.org/x/term"

	"academy/internal/backend"
	"academy/internal/backup"
	"academy/internal/config"
	"academy/internal/services"
	"academy/internal/storage"
)

var errUsage = errors.New("invalid arguments, see academyctl help")

func (c *ctl) resetPassword(ctx context.Context, args []string) error {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return errUsage
	}
	username := strings.TrimSpace(args[0])

	password, err := c.readPassword("New password: ")
	if err != nil {
		return err
	}
	confirm, err := c.readPassword("Repeat password: ")
	if err != nil {
		return err
	}
	if password != confirm {
		return errors.New("passwords do not match")
	}

	bcfg, err := backend.FromAppConfig(c.cfg)
	if err != nil {
		return err
	}
	be, err := backend.NewFactory(c.logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return err
	}
	defer be.Cleanup()

	accounts := services.NewAccountService(services.Deps{Store: be.Store, Backups: be.Backups, Logger: c.logger})
	if err := accounts.ResetPassword(ctx, username, password); err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "Password updated for %s\n", username)
	return nil
}

// readPassword prompts without echo on a terminal and reads one line
// otherwise, so the command can be scripted.
func (c *ctl) readPassword(prompt string) (string, error) {
	if f, ok := c.stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(c.stderr, prompt)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(c.stderr)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	if _, ok := c.stdin.(*bufio.Reader); !ok {
		c.stdin = bufio.NewReader(c.stdin)
	}
	line, err := c.stdin.(*bufio.Reader).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (c *ctl) backupManager() (*backup.Manager, error) {
	if c.cfg.DataBackend != config.BackendSQLite {
		return nil, fmt.Errorf("backups need the sqlite backend, DATA_BACKEND is %q", c.cfg.DataBackend)
	}
	return backup.New(c.cfg.SQLiteDBPath, c.cfg.BackupDir, c.cfg.BackupRetention, c.logger), nil
}

func (c *ctl) backup(args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	mgr, err := c.backupManager()
	if err != nil {
		return err
	}

	switch args[0] {
	case "create":
		fs := flag.NewFlagSet("backup create", flag.ContinueOnError)
		fs.SetOutput(c.stderr)
		reason := fs.String("reason", backup.ReasonManual, "reason recorded in the file name")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		info, err := mgr.Create(backup.SanitizeReason(*reason))
		if err != nil {
			return err
		}
		fmt.Fprintf(c.stdout, "Created %s (%.1f KB)\n", info.Path, info.SizeKB)
	case "list":
		list, err := mgr.List()
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Fprintln(c.stdout, "No backups in", mgr.Dir())
			return nil
		}
		tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "FILE\tSIZE (KB)\tCREATED")
		for _, b := range list {
			fmt.Fprintf(tw, "%s\t%.1f\t%s\n", b.Filename, b.SizeKB, b.Created.Format("2006-01-02 15:04:05"))
		}
		return tw.Flush()
	case "restore":
		if len(args) != 2 {
			return errUsage
		}
		if err := mgr.Restore(args[1]); err != nil {
			return err
		}
		fmt.Fprintf(c.stdout, "Restored %s. Restart the server to load it.\n", args[1])
	default:
		return errUsage
	}
	return nil
}

func (c *ctl) migrationTarget() (storage.Dialect, string, error) {
	switch c.cfg.DataBackend {
	case config.BackendSQLite:
		return storage.DialectSQLite, storage.SQLiteDSN(c.cfg.SQLiteDBPath), nil
	case config.BackendPostgres:
		return storage.DialectPostgres, c.cfg.DatabaseURL, nil
	}
	return "", "", fmt.Errorf("the %s backend has no schema to migrate", c.cfg.DataBackend)
}

func (c *ctl) migrate(args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	dialect, dsn, err := c.migrationTarget()
	if err != nil {
		return err
	}
	switch args[0] {
	case "up":
		if err := storage.RunMigrations(dialect, dsn); err != nil {
			return err
		}
		fallthrough
	case "version":
		version, dirty, err := storage.MigrationVersion(dialect, dsn)
		if err != nil {
			return err
		}
		state := "clean"
		if dirty {
			state = "dirty"
		}
		fmt.Fprintf(c.stdout, "%s schema version %d (%s)\n", dialect, version, state)
	default:
		return errUsage
	}
	return nil
}
