// Command packagectl drives the package backend from a terminal: upload a
// package and follow it to completion, inspect one, or serve the lookups as
// MCP tools.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/kirillkom/formpack-portal/internal/bootstrap"
	"github.com/kirillkom/formpack-portal/internal/config"
	"github.com/kirillkom/formpack-portal/internal/core/ports"
	"github.com/kirillkom/formpack-portal/internal/observability/logging"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

const usageText = `usage: packagectl <command> [flags] [args]

commands:
  upload --name NAME FILE...   create a package and wait until it is ready
  status PACKAGE_ID            print the processing status
  show PACKAGE_ID              print the package (-o table|json|yaml, --xlsx PATH)
  mcp                          serve package tools over stdio

Run "packagectl <command> --help" for command flags.
`

var newBackend = func(cfg config.Config) ports.PackageBackend {
	return bootstrap.NewBackend(cfg, bootstrap.NewExecutor(cfg, nil))
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type command struct {
	name  string
	flags func(fs *pflag.FlagSet) func(ctx context.Context, c *cli, args []string) error
}

var commands = []command{
	{name: "upload", flags: uploadFlags},
	{name: "status", flags: statusFlags},
	{name: "show", flags: showFlags},
	{name: "mcp", flags: mcpFlags},
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		fmt.Fprint(stderr, usageText)
		if len(args) == 0 {
			return exitUsage
		}
		return exitOK
	}

	var cmd *command
	for i := range commands {
		if commands[i].name == args[0] {
			cmd = &commands[i]
			break
		}
	}
	if cmd == nil {
		fmt.Fprintf(stderr, "packagectl: unknown command %q\n\n%s", args[0], usageText)
		return exitUsage
	}

	fs := pflag.NewFlagSet(cmd.name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.String("backend-url", "", "package backend base URL (overrides BACKEND_URL)")
	fs.String("log-level", "", "log level: debug, info, warn, error (overrides LOG_LEVEL)")
	exec := cmd.flags(fs)
	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	cfg := config.LoadWithFlags(fs)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "packagectl: invalid configuration: %v\n", err)
		return exitUsage
	}
	logger := logging.NewJSONLoggerTo(stderr, "packagectl", cfg.LogLevel)
	slog.SetDefault(logger)
	c := &cli{
		out:     stdout,
		logger:  logger,
		cfg:     cfg,
		backend: newBackend(cfg),
	}

	if err := exec(ctx, c, fs.Args()); err != nil {
		var usage usageError
		if errors.As(err, &usage) {
			fmt.Fprintf(stderr, "packagectl %s: %s\n", cmd.name, usage.msg)
			return exitUsage
		}
		fmt.Fprintf(stderr, "packagectl %s: %v\n", cmd.name, err)
		return exitError
	}
	return exitOK
}

type usageError struct {
	msg string
}

func (e usageError) Error() string { return e.msg }
