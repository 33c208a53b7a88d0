package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/srstomp/ohno/internal/board"
	"github.com/srstomp/ohno/internal/compact"
	"github.com/srstomp/ohno/internal/config"
	"github.com/srstomp/ohno/internal/export"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Regenerate the kanban board and JSON snapshot from the database",
	Run: func(cmd *cobra.Command, args []string) {
		dir := projectDir()
		store := openStore()
		defer store.Close()

		// Pick up extended columns if the producer recreated tables
		// since the last run.
		if err := store.Provision(rootCtx); err != nil {
			fail(exitDatabase, "%v", err)
		}

		if doCompact, _ := cmd.Flags().GetBool("compact"); doCompact {
			ccfg := compact.DefaultConfig()
			ccfg.DeleteRaw, _ = cmd.Flags().GetBool("delete-raw")
			result, err := compact.New(store, ccfg).Run(rootCtx)
			if err != nil {
				fail(exitDatabase, "%v", err)
			}
			out.Infof("Compacted %d of %d eligible tasks (%d skipped, %d failed)",
				result.Summarized, result.Eligible, result.Skipped, result.Failed)
		}

		snap, err := export.Build(rootCtx, store)
		if err != nil {
			fail(exitDatabase, "%v", err)
		}

		boardPath := filepath.Join(dir, config.BoardFileName)
		if err := board.WriteFile(snap, boardPath); err != nil {
			fail(exitGeneral, "%v", err)
		}
		snapPath := filepath.Join(dir, config.SnapshotFileName)
		if err := snap.WriteFile(snapPath); err != nil {
			fail(exitGeneral, "%v", err)
		}

		if out.JSON() {
			out.EmitJSON(map[string]string{"board": boardPath, "snapshot": snapPath})
			return
		}
		out.Successf("Wrote %s and %s", boardPath, snapPath)
	},
}

func init() {
	syncCmd.Flags().Bool("compact", false, "summarize and compress task activity logs")
	syncCmd.Flags().Bool("delete-raw", false, "with --compact, prune summarized raw entries")
}
