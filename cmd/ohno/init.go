package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/srstomp/ohno/internal/board"
	"github.com/srstomp/ohno/internal/config"
	"github.com/srstomp/ohno/internal/discovery"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the .ohno project directory",
	Run: func(cmd *cobra.Command, args []string) {
		base := cfg.Dir
		if base == "" {
			cwd, err := os.Getwd()
			if err != nil {
				fail(exitGeneral, "%v", err)
			}
			base = filepath.Join(cwd, discovery.MarkerDir)
		}

		for _, sub := range []string{"", "sessions", "checkpoints"} {
			if err := os.MkdirAll(filepath.Join(base, sub), 0o755); err != nil {
				fail(exitGeneral, "%v", err)
			}
		}

		// A placeholder board so the serve command has something to
		// show before the first sync.
		boardPath := filepath.Join(base, config.BoardFileName)
		if _, err := os.Stat(boardPath); os.IsNotExist(err) {
			if err := os.WriteFile(boardPath, board.Placeholder(), 0o644); err != nil {
				fail(exitGeneral, "%v", err)
			}
		}

		if out.JSON() {
			out.EmitJSON(map[string]string{"dir": base})
			return
		}
		out.Successf("Initialized %s", base)
	},
}
