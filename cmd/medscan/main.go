package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/medscan/internal/config"
	"github.com/hpungsan/medscan/internal/db"
	"github.com/hpungsan/medscan/internal/mcp"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"scan": true, "health": true, "history": true, "ui": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	if cliCommands[arg] {
		return true
	}
	// Global flags come before the subcommand
	if arg == "--verbose" && len(os.Args) > 2 {
		return cliCommands[os.Args[2]]
	}
	return isHelpOrVersion()
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
   medscan

  Read drug labels aloud from photos

  Usage: medscan scan <image>...
         medscan history list
         medscan --help

  MCP server mode requires piped input.`)
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion() {
		app := newCLIApp(nil, config.DefaultConfig())
		if err := app.Run(os.Args); err != nil {
			fail("%v", err)
		}
		return
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fail("could not determine home directory: %v", err)
	}
	baseDir := filepath.Join(homeDir, ".medscan")

	cwd, _ := os.Getwd()
	cfg, err := config.LoadWithRepo(baseDir, cwd)
	if err != nil {
		fail("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		fail("invalid config: %v", err)
	}
	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		fmt.Fprintf(os.Stderr, "warning: unknown disabled_tools ignored: %s\n", strings.Join(unknown, ", "))
	}

	database, err := db.Init(baseDir)
	if err != nil {
		fail("failed to initialize database: %v", err)
	}
	defer database.Close()
	db.ConfigurePool(database, cfg)

	// CLI mode: known subcommand
	if isCLIMode() {
		app := newCLIApp(database, cfg)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintln(os.Stderr, err)
			database.Close()
			os.Exit(exitCode(err))
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'medscan --help' for usage.\n")
		os.Exit(1)
	}

	// MCP server mode (default)
	if err := mcp.Run(database, cfg, Version); err != nil {
		fail("%v", err)
	}
}
