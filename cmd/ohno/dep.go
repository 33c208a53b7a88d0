package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/srstomp/ohno/internal/types"
)

var depCmd = &cobra.Command{
	Use:   "dep",
	Short: "Manage task dependencies",
}

var depAddCmd = &cobra.Command{
	Use:   "add [task] [depends-on]",
	Short: "Record that a task depends on another",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		store := openStore()
		defer store.Close()

		depType, _ := cmd.Flags().GetString("type")
		id, err := store.AddDependency(rootCtx, args[0], args[1], types.DependencyType(depType))
		if err != nil {
			fail(exitGeneral, "%v", err)
		}

		// A reverse edge means the two tasks block each other and
		// neither will ever be recommended.
		reverse, err := store.GetDependencies(rootCtx, args[1])
		if err == nil {
			for _, d := range reverse {
				if d.DependsOnID == args[0] && d.Type == types.DepBlocks {
					out.Warnf("%s and %s now block each other", args[0], args[1])
					break
				}
			}
		}

		if out.JSON() {
			out.EmitJSON(map[string]string{"id": id})
			return
		}
		out.Successf("%s now depends on %s", args[0], args[1])
	},
}

var depRmCmd = &cobra.Command{
	Use:   "rm [task] [depends-on]",
	Short: "Remove a dependency edge",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		store := openStore()
		defer store.Close()

		removed, err := store.RemoveDependency(rootCtx, args[0], args[1])
		if err != nil {
			fail(exitDatabase, "%v", err)
		}
		if !removed {
			fail(exitGeneral, "no dependency from %s to %s", args[0], args[1])
		}
		if out.JSON() {
			out.EmitJSON(map[string]bool{"removed": true})
			return
		}
		out.Successf("Removed dependency %s -> %s", args[0], args[1])
	},
}

var depListCmd = &cobra.Command{
	Use:   "list [task]",
	Short: "List what a task depends on",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store := openStore()
		defer store.Close()

		deps, err := store.GetDependencies(rootCtx, args[0])
		if err != nil {
			fail(exitDatabase, "%v", err)
		}

		if out.JSON() {
			out.EmitJSON(deps)
			return
		}
		if len(deps) == 0 {
			out.Infof("No dependencies")
			return
		}
		for _, d := range deps {
			marker := " "
			if d.DependsOnStatus != "done" {
				marker = "*"
			}
			fmt.Printf("  %s %s (%s, %s) [%s]\n", marker, d.DependsOnID, d.DependsOnTitle, d.DependsOnStatus, d.Type)
		}
	},
}

func init() {
	depAddCmd.Flags().String("type", "", "dependency type (blocks, requires, relates_to)")
	depCmd.AddCommand(depAddCmd, depRmCmd, depListCmd)
}
