// Command academyctl runs maintenance tasks against the academy database:
// password resets, backups, schema migrations and the Google OAuth
// bootstrap for the KPI sheet worker.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"academy/internal/cli"
	"academy/internal/config"
	applog "academy/internal/log"
)

const usage = `usage: academyctl <command> [arguments]

commands:
  resetpassword <username>     set a new password for a user
  backup create [-reason r]    copy the SQLite database into the backup directory
  backup list                  list backups, newest first
  backup restore <file>        restore a backup (stop the server first)
  migrate up                   apply pending schema migrations
  migrate version              print the applied schema version
  sheets-auth [-port 8085]     authorize the KPI worker with a Google account
`

func main() {
	cli.LoadEnvFile()
	cfg := config.Load()
	logger := cli.SetupLogger(applog.ComponentApp, cfg.LogLevel)

	app := &ctl{
		cfg:    cfg,
		logger: logger,
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
	os.Exit(app.run(context.Background(), os.Args[1:]))
}

type ctl struct {
	cfg    *config.Config
	logger *applog.Logger
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// run dispatches args and returns the process exit code.
func (c *ctl) run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		fmt.Fprint(c.stderr, usage)
		return 2
	}

	cmd, rest := args[0], args[1:]
	var fn func() error
	switch cmd {
	case "resetpassword":
		fn = func() error { return c.resetPassword(ctx, rest) }
	case "backup":
		fn = func() error { return c.backup(rest) }
	case "migrate":
		fn = func() error { return c.migrate(rest) }
	case "sheets-auth":
		fn = func() error { return c.sheetsAuth(ctx, rest) }
	case "help", "-h", "--help":
		fmt.Fprint(c.stdout, usage)
		return 0
	default:
		fmt.Fprintf(c.stderr, "unknown command %q\n\n%s", cmd, usage)
		return 2
	}

	if cmd != "sheets-auth" {
		if err := c.cfg.ValidateStorage(); err != nil {
			fmt.Fprintln(c.stderr, err)
			return 1
		}
	}
	if err := fn(); err != nil {
		fmt.Fprintf(c.stderr, "academyctl %s: %v\n", cmd, err)
		return 1
	}
	return 0
}
