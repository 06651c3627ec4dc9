// Command inventoryctl runs inventory maintenance against the configured store
// without going through the HTTP server: bulk imports, exports, templates,
// demo data and resets.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/paularlott/cli"

	"github.com/JonMunkholm/siteinventory/internal/config"
	"github.com/JonMunkholm/siteinventory/internal/logging"
)

var version = "dev"

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	rootCmd := &cli.Command{
		Name:        "inventoryctl",
		Version:     version,
		Usage:       "Site and device inventory maintenance",
		Description: "Import, export and manage the site and device inventory directly against its store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:         "backend",
				Usage:        "Storage backend (postgres, sqlite, memory); overrides STORAGE_BACKEND",
				DefaultValue: "",
				Global:       true,
			},
			&cli.StringFlag{
				Name:         "sqlite-path",
				Usage:        "SQLite database file; overrides SQLITE_PATH",
				DefaultValue: "",
				Global:       true,
			},
			&cli.StringFlag{
				Name:         "log-level",
				Usage:        "Log level (debug, info, warn, error)",
				DefaultValue: "warn",
				EnvVars:      []string{"INVENTORYCTL_LOG_LEVEL"},
				Global:       true,
			},
		},
		PreRun: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			logging.Setup(cmd.GetString("log-level"), "text")
			return ctx, nil
		},
		Commands: []*cli.Command{
			importCommand(),
			exportCommand(),
			templateCommand(),
			statsCommand(),
			seedCommand(),
			resetCommand(),
		},
	}

	if err := rootCmd.Execute(context.Background()); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// loadConfig reads the environment configuration and applies the global
// flag overrides before validation.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	if b := cmd.GetString("backend"); b != "" {
		if err := os.Setenv("STORAGE_BACKEND", b); err != nil {
			return nil, err
		}
	}
	if p := cmd.GetString("sqlite-path"); p != "" {
		if err := os.Setenv("SQLITE_PATH", p); err != nil {
			return nil, err
		}
	}
	return config.Load()
}
