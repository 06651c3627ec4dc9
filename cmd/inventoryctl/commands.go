package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/paularlott/cli"

	"github.com/JonMunkholm/siteinventory/internal/admin"
	"github.com/JonMunkholm/siteinventory/internal/application"
	"github.com/JonMunkholm/siteinventory/internal/core"
	"github.com/JonMunkholm/siteinventory/internal/seed"
)

// withApp opens the configured store for the duration of fn. Mutations made
// through fn's context are attributed to the invoking user.
func withApp(ctx context.Context, cmd *cli.Command, fn func(context.Context, *application.App) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	app, err := application.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	return fn(core.ContextWithActor(ctx, "cli:"+currentUser()), app)
}

func currentUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "unknown"
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:        "import",
		Usage:       "Import a CSV or XLSX file",
		Description: "Run a file through the import pipeline and print the summary",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "entity", Required: true},
			&cli.StringArg{Name: "file", Required: true},
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "dry-run", Usage: "Validate and resolve every row without writing"},
			&cli.BoolFlag{Name: "json", Usage: "Print the summary as JSON"},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			entity := cmd.GetStringArg("entity")
			path := cmd.GetStringArg("file")

			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			return withApp(ctx, cmd, func(ctx context.Context, app *application.App) error {
				summary, err := app.Service.Import(ctx, entity, f, core.ImportOptions{
					FileName: filepath.Base(path),
					DryRun:   cmd.GetBool("dry-run"),
				})
				if summary != nil {
					if perr := printSummary(os.Stdout, summary, cmd.GetBool("json")); perr != nil {
						return perr
					}
				}
				if err != nil {
					return fmt.Errorf("%s: %w", core.FormatUserError(err), err)
				}
				if summary.Failed > 0 {
					return fmt.Errorf("%d of %d rows failed", summary.Failed, summary.TotalRows)
				}
				return nil
			})
		},
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:        "export",
		Usage:       "Export records to CSV or XLSX",
		Description: "Write every record of an entity in a format that re-imports cleanly",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "entity", Required: true},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "format", Usage: "csv or xlsx", DefaultValue: "csv"},
			&cli.StringFlag{Name: "out", Usage: "Output file (default: dated file name in the current directory, - for stdout)"},
			&cli.StringFlag{Name: "search", Usage: "Free-text filter"},
			&cli.StringFlag{Name: "status", Usage: "Active or Inactive"},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			entity := cmd.GetStringArg("entity")
			format, err := core.ParseExportFormat(cmd.GetString("format"))
			if err != nil {
				return err
			}

			return withApp(ctx, cmd, func(ctx context.Context, app *application.App) error {
				out := cmd.GetString("out")
				if out == "" {
					out = core.ExportFileName(entity, format, app.Service.Today())
				}

				var w io.Writer = os.Stdout
				if out != "-" {
					f, err := os.Create(out)
					if err != nil {
						return err
					}
					defer f.Close()
					w = f
				}

				n, err := app.Service.Export(ctx, core.ExportRequest{
					Entity:  entity,
					Format:  format,
					Sites:   core.SiteFilter{Search: cmd.GetString("search"), Status: cmd.GetString("status")},
					Devices: core.DeviceFilter{Search: cmd.GetString("search"), Status: cmd.GetString("status")},
				}, w)
				if err != nil {
					return err
				}
				if out != "-" {
					fmt.Fprintf(os.Stderr, "exported %d %s to %s\n", n, entity, out)
				}
				return nil
			})
		},
	}
}

func templateCommand() *cli.Command {
	return &cli.Command{
		Name:  "template",
		Usage: "Print the import template for an entity",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "entity", Required: true},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			// Templates need no store.
			return core.NewService(nil).WriteTemplate(cmd.GetStringArg("entity"), os.Stdout)
		},
	}
}

func statsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Print site and device totals as JSON",
		Run: func(ctx context.Context, cmd *cli.Command) error {
			return withApp(ctx, cmd, func(ctx context.Context, app *application.App) error {
				stats, err := app.Service.DashboardStats(ctx)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			})
		},
	}
}

func seedCommand() *cli.Command {
	return &cli.Command{
		Name:        "seed",
		Usage:       "Load the demo inventory",
		Description: "Import a few demo sites and devices; records that already exist are skipped as duplicates",
		Run: func(ctx context.Context, cmd *cli.Command) error {
			return withApp(ctx, cmd, func(ctx context.Context, app *application.App) error {
				summaries, err := seed.Load(ctx, app.Service)
				for _, s := range summaries {
					if perr := printSummary(os.Stdout, s, false); perr != nil {
						return perr
					}
				}
				return err
			})
		},
	}
}

func resetCommand() *cli.Command {
	return &cli.Command{
		Name:        "reset",
		Usage:       "Delete every device and site",
		Description: "Empty the inventory. Requires --yes.",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "yes", Usage: "Confirm the reset"},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			if !cmd.GetBool("yes") {
				return errors.New("reset deletes all data; rerun with --yes to confirm")
			}
			return withApp(ctx, cmd, func(ctx context.Context, app *application.App) error {
				res, err := (&admin.Resetter{Service: app.Service}).ResetAll(ctx)
				fmt.Fprintf(os.Stdout, "deleted %d devices and %d sites\n", res.Devices, res.Sites)
				return err
			})
		},
	}
}

// printSummary writes an import summary as text or JSON.
func printSummary(w io.Writer, s *core.ImportSummary, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}

	mode := ""
	if s.DryRun {
		mode = " (dry run)"
	}
	fmt.Fprintf(w, "%s%s: %d rows, %d succeeded, %d failed in %dms\n",
		s.Entity, mode, s.TotalRows, s.Succeeded, s.Failed, s.DurationMs)
	if s.Interrupted {
		fmt.Fprintf(w, "  interrupted: %d rows not processed\n", s.Skipped)
	}
	for _, e := range s.Errors {
		fmt.Fprintf(w, "  line %d [%s] %s\n", e.Line, e.Code, strings.TrimSpace(e.Reason))
	}
	return nil
}
