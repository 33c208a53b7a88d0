// Package main implements the ohno CLI.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/srstomp/ohno/internal/config"
	"github.com/srstomp/ohno/internal/discovery"
	"github.com/srstomp/ohno/internal/storage/sqlite"
)

// Version is stamped by the release build.
var Version = "0.3.0"

// Exit codes, stable for scripting.
const (
	exitOK       = 0
	exitGeneral  = 1
	exitUsage    = 2
	exitConfig   = 3
	exitDatabase = 4
	exitNetwork  = 5
)

var (
	dirFlag     string
	jsonOutput  bool
	quietFlag   bool
	noColorFlag bool
	actorFlag   string

	cfg *config.Config
	out *Output

	rootCtx = context.Background()
)

var rootCmd = &cobra.Command{
	Use:           "ohno",
	Short:         "Task state and dependency tracking for agent-driven projects",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
			os.Exit(exitConfig)
		}

		// Flags override environment.
		if dirFlag != "" {
			cfg.Dir = dirFlag
		}
		cfg.JSON = jsonOutput
		cfg.Quiet = quietFlag
		if noColorFlag {
			cfg.NoColor = true
		}
		cfg.Actor = actorFlag

		if cfg.NoColor {
			color.NoColor = true
		}
		out = NewOutput(cfg)
		return nil
	},
}

// projectDir resolves the .ohno directory, honoring --dir and OHNO_DIR.
func projectDir() string {
	dir, err := discovery.FindProjectDir(cfg.Dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(exitConfig)
	}
	return dir
}

// dbPath resolves the database file without requiring it to exist.
func dbPath() string {
	if cfg.DBPath != "" {
		return cfg.DBPath
	}
	return discovery.DBPath(projectDir(), config.DBFileName)
}

// openStore opens the project database, exiting with the database code on
// failure. Callers must Close it.
func openStore() *sqlite.Store {
	path := dbPath()
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintf(os.Stderr, "Database not found at %s (run the producer first, or check --dir)\n", path)
		os.Exit(exitDatabase)
	}

	store, err := sqlite.New(rootCtx, path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Database error: %v\n", err)
		os.Exit(exitDatabase)
	}
	return store
}

// fail prints an error and exits with the given code.
func fail(code int, format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(code)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dirFlag, "dir", "", "project .ohno directory (default: walk up from cwd)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "emit machine-readable JSON")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "suppress informational output")
	rootCmd.PersistentFlags().BoolVar(&noColorFlag, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&actorFlag, "actor", "cli", "actor label recorded in the audit trail")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(doneCmd)
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(blockCmd)
	rootCmd.AddCommand(unblockCmd)
	rootCmd.AddCommand(depCmd)
	rootCmd.AddCommand(contextCmd)
	rootCmd.AddCommand(nextCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitUsage)
	}
}
