package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/hyeongsuk/RBDtector/internal/config"
	"github.com/hyeongsuk/RBDtector/internal/errors"
	"github.com/hyeongsuk/RBDtector/internal/ops"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(db *sql.DB, cfg *config.Config) *cli.App {
	app := &cli.App{
		Name:    "edfconv",
		Usage:   "Polysomnography annotation converter",
		Version: Version,
		Commands: []*cli.Command{
			convertCmd(db, cfg),
			detectCmd(cfg),
			inspectCmd(cfg),
			fixRangesCmd(cfg),
			historyCmd(db, cfg),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// convertCmd creates the convert command. A file argument converts one
// recording; a directory argument converts every recording under it.
func convertCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "convert",
		Usage:     "Convert recordings' annotations to scoring-engine text files",
		ArgsUsage: "<path|dir>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Output directory (defaults to each recording's directory)"},
			&cli.BoolFlag{Name: "json", Usage: "Emit the full result as JSON instead of progress lines"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return outputError(errors.NewInvalidRequest("convert takes exactly one path"))
			}
			path := c.Args().First()

			info, err := os.Stat(path)
			if err != nil {
				return outputError(errors.NewNotFound(path))
			}

			if !info.IsDir() {
				output, err := ops.Convert(c.Context, cfg, ops.ConvertInput{
					Path:      path,
					OutputDir: c.String("out"),
				})
				if err != nil {
					return outputError(err)
				}
				return outputJSON(output)
			}

			var progress ops.Progress
			if !c.Bool("json") {
				progress = func(oc ops.BatchOutcome) {
					if oc.OK {
						fmt.Printf("ok    %s (%s)\n", oc.Path, oc.Verdict)
					} else {
						fmt.Printf("fail  %s: %s\n", oc.Path, oc.Error)
					}
				}
			}

			output, err := ops.Batch(c.Context, db, cfg, ops.BatchInput{
				Root:      path,
				OutputDir: c.String("out"),
			}, progress)
			if err != nil {
				return outputError(err)
			}

			if c.Bool("json") {
				if err := outputJSON(output); err != nil {
					return err
				}
			} else {
				fmt.Printf("%d converted, %d failed, %d total (run %s)\n",
					output.Succeeded, output.Failed, output.Total, output.RunID)
			}
			if output.Failed > 0 {
				return cli.Exit("", 1)
			}
			return nil
		},
	}
}

// detectCmd creates the detect command.
func detectCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "detect",
		Usage:     "Classify a recording by its annotation-storage variant",
		ArgsUsage: "<path>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return outputError(errors.NewInvalidRequest("detect takes exactly one path"))
			}
			output, err := ops.Detect(c.Context, cfg, ops.DetectInput{Path: c.Args().First()})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// inspectCmd creates the inspect command.
func inspectCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Summarize a recording's header and channels",
		ArgsUsage: "<path>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return outputError(errors.NewInvalidRequest("inspect takes exactly one path"))
			}
			output, err := ops.Inspect(c.Context, cfg, ops.InspectInput{Path: c.Args().First()})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// fixRangesCmd creates the fix-ranges command.
func fixRangesCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "fix-ranges",
		Usage:     "Widen clipped biosignal physical ranges into a repaired copy",
		ArgsUsage: "<path>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Output path (defaults to the input stem with a _ranged suffix)"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return outputError(errors.NewInvalidRequest("fix-ranges takes exactly one path"))
			}
			output, err := ops.FixRanges(c.Context, cfg, ops.FixRangesInput{
				Path:       c.Args().First(),
				OutputPath: c.String("out"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// historyCmd creates the history command.
func historyCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "history",
		Usage:     "List recorded batch runs, or one run's per-file outcomes",
		ArgsUsage: "[run-id]",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Value: 20, Usage: "Maximum runs to list"},
		},
		Action: func(c *cli.Context) error {
			input := ops.HistoryInput{Limit: c.Int("limit")}
			if c.NArg() > 0 {
				input.RunID = c.Args().First()
			}
			output, err := ops.History(c.Context, db, cfg, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// outputJSON writes pretty-printed JSON to stdout.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if convErr, ok := errors.AsConvError(err); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", convErr.Code, convErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}
