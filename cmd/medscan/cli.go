package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/medscan/internal/config"
	"github.com/hpungsan/medscan/internal/drug"
	"github.com/hpungsan/medscan/internal/errors"
	"github.com/hpungsan/medscan/internal/feedback"
	"github.com/hpungsan/medscan/internal/history"
	"github.com/hpungsan/medscan/internal/scan"
	"github.com/hpungsan/medscan/internal/web"
)

// stdout and stderr are swapped out by tests.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(db *sql.DB, cfg *config.Config) *cli.App {
	app := &cli.App{
		Name:    "medscan",
		Usage:   "Read drug labels aloud from photos",
		Version: Version,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verbose", Usage: "Log session and backend activity to stderr"},
		},
		Commands: []*cli.Command{
			scanCmd(db, cfg),
			healthCmd(cfg),
			historyCmd(db, cfg),
			uiCmd(db, cfg),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// scanCmd creates the scan command.
func scanCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "scan",
		Usage:     "Recognize a drug label from photos (a retake moves on to the next photo)",
		ArgsUsage: "<image> [image...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "save", Aliases: []string{"s"}, Usage: "Save the result to history"},
			&cli.BoolFlag{Name: "flash", Usage: "Start with the flash on"},
			&cli.BoolFlag{Name: "fallback", Usage: "Use a flagged sample result if the recognition call fails"},
			&cli.BoolFlag{Name: "debug", Usage: "Include state transitions and the raw result"},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "Do not print notifications to stderr"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return outputError(errors.NewInvalidRequest("at least one image path is required"))
			}

			logger := cliLogger(c)
			deps := scan.Deps{
				DB:      db,
				Config:  cfg,
				Backend: scan.NewBackend(cfg, logger),
				Logger:  logger,
			}
			var notes *feedback.Async
			if !c.Bool("quiet") {
				notes = feedback.NewAsync(feedback.NewConsole(stderr), feedback.DefaultQueueSize)
				deps.Notifier = notes
			}

			output, err := scan.Run(c.Context, deps, scan.Input{
				Images:   c.Args().Slice(),
				Flash:    c.Bool("flash"),
				Fallback: c.Bool("fallback"),
				Save:     c.Bool("save"),
				Debug:    c.Bool("debug"),
			})
			if notes != nil {
				notes.Close()
			}
			if output != nil {
				if jerr := outputJSON(output); jerr != nil {
					return jerr
				}
			}
			if err != nil {
				return outputError(err)
			}
			if !output.Recognized() {
				return cli.Exit("no drug label recognized", 2)
			}
			return nil
		},
	}
}

// healthCmd creates the health command.
func healthCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Check that the recognition service is reachable",
		Action: func(c *cli.Context) error {
			logger := cliLogger(c)
			output := scan.Health(c.Context, scan.Deps{
				Config:  cfg,
				Backend: scan.NewBackend(cfg, logger),
				Logger:  logger,
			}, cfg.BaseURL)

			if err := outputJSON(output); err != nil {
				return err
			}
			if !output.Reachable {
				return outputError(errors.NewConnectivity(cfg.BaseURL, nil))
			}
			return nil
		},
	}
}

// historyCmd groups the saved-results commands.
func historyCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Browse and manage saved recognitions",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List saved recognitions, newest first",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: history.DefaultListLimit, Usage: "Max items"},
					&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Items to skip"},
				},
				Action: func(c *cli.Context) error {
					output, err := history.List(c.Context, db, history.ListInput{
						Limit:  c.Int("limit"),
						Offset: c.Int("offset"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "show",
				Usage:     "Show one saved recognition",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "markdown", Aliases: []string{"m"}, Usage: "Print the Markdown drug card"},
				},
				Action: func(c *cli.Context) error {
					id, err := strconv.ParseInt(c.Args().First(), 10, 64)
					if err != nil {
						return outputError(errors.NewInvalidRequest("id must be an integer"))
					}
					rec, err := history.Fetch(c.Context, db, id)
					if err != nil {
						return outputError(err)
					}
					if c.Bool("markdown") {
						_, err := io.WriteString(stdout, recordMarkdown(rec, cfg.Locale))
						return err
					}
					return outputJSON(rec)
				},
			},
			{
				Name:  "clear",
				Usage: "Delete every saved recognition",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "Confirm deletion"},
				},
				Action: func(c *cli.Context) error {
					if !c.Bool("yes") {
						return outputError(errors.NewInvalidRequest("pass --yes to clear history"))
					}
					output, err := history.Clear(c.Context, db)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "export",
				Usage: "Export saved recognitions to a JSONL file",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Export file path (default: ~/.medscan/exports/history-<ts>.jsonl)"},
				},
				Action: func(c *cli.Context) error {
					output, err := history.Export(c.Context, db, cfg, history.ExportInput{Path: c.String("path")})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
		},
	}
}

// uiCmd creates the ui command.
func uiCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "ui",
		Usage: "Serve the read-only history viewer",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Value: 8420, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			srv := web.NewServer(db, cfg, Version, c.String("bind"), c.Int("port"))
			return web.Run(srv)
		},
	}
}

// Helper functions

// cliLogger logs to stderr with --verbose and discards otherwise.
func cliLogger(c *cli.Context) *log.Logger {
	if c.Bool("verbose") {
		return log.New(stderr, "medscan: ", log.LstdFlags)
	}
	return log.New(io.Discard, "", 0)
}

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if medErr, ok := err.(*errors.MedError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", medErr.Code, medErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// recordMarkdown renders a saved record as the Markdown drug card.
func recordMarkdown(rec *drug.HistoryRecord, locale string) string {
	return drug.Markdown(&rec.DrugInfo, rec.ConfidencePercent, rec.Placeholder, locale)
}

// exitCode maps a command error to the process exit status.
func exitCode(err error) int {
	if ec, ok := err.(cli.ExitCoder); ok && ec.ExitCode() != 0 {
		return ec.ExitCode()
	}
	return 1
}
