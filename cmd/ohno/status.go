package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/srstomp/ohno/internal/types"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show project-wide task counts and completion",
	Run: func(cmd *cobra.Command, args []string) {
		store := openStore()
		defer store.Close()

		ps, err := store.GetProjectStatus(rootCtx)
		if err != nil {
			fail(exitDatabase, "%v", err)
		}

		if out.JSON() {
			out.EmitJSON(ps)
			return
		}

		fmt.Printf("Tasks: %d (%.1f%% done)\n", ps.TotalTasks, ps.CompletionPercent)
		for _, s := range []types.Status{
			types.StatusTodo,
			types.StatusInProgress,
			types.StatusReview,
			types.StatusDone,
			types.StatusBlocked,
			types.StatusArchived,
		} {
			if n := ps.ByStatus[s]; n > 0 {
				fmt.Printf("  %-12s %d\n", s, n)
			}
		}
		fmt.Printf("Epics: %d  Stories: %d\n", ps.EpicCount, ps.StoryCount)
		if ps.TotalEstimateHours > 0 || ps.TotalActualHours > 0 {
			fmt.Printf("Hours: %.1f estimated, %.1f actual\n", ps.TotalEstimateHours, ps.TotalActualHours)
		}
	},
}
