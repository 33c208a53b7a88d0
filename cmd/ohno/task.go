package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/srstomp/ohno/internal/types"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List tasks",
	Run: func(cmd *cobra.Command, args []string) {
		store := openStore()
		defer store.Close()

		filter := types.TaskFilter{}
		if v, _ := cmd.Flags().GetString("status"); v != "" {
			status := types.Status(v)
			if !status.IsValid() {
				fail(exitUsage, "invalid status: %s", v)
			}
			filter.Status = &status
		}
		if v, _ := cmd.Flags().GetString("epic"); v != "" {
			filter.EpicID = &v
		}
		if v, _ := cmd.Flags().GetString("priority"); v != "" {
			filter.Priority = &v
		}
		filter.Limit, _ = cmd.Flags().GetInt("limit")

		tasks, err := store.ListTasks(rootCtx, filter)
		if err != nil {
			fail(exitDatabase, "%v", err)
		}

		if out.JSON() {
			out.EmitJSON(tasks)
			return
		}
		if len(tasks) == 0 {
			out.Infof("No tasks found")
			return
		}
		for _, t := range tasks {
			out.PrintTask(t)
		}
	},
}

var taskCmd = &cobra.Command{
	Use:   "task [id]",
	Short: "Show one task with activity and dependencies",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store := openStore()
		defer store.Close()

		task, err := store.GetTask(rootCtx, args[0])
		if err != nil {
			fail(exitDatabase, "%v", err)
		}
		if task == nil {
			fail(exitGeneral, "task %s not found", args[0])
		}

		activity, err := store.GetActivity(rootCtx, task.ID, 10)
		if err != nil {
			fail(exitDatabase, "%v", err)
		}
		deps, err := store.GetDependencies(rootCtx, task.ID)
		if err != nil {
			fail(exitDatabase, "%v", err)
		}

		if out.JSON() {
			out.EmitJSON(map[string]interface{}{
				"task":            task,
				"recent_activity": activity,
				"dependencies":    deps,
			})
			return
		}
		out.PrintTaskDetail(task, activity, deps)
	},
}

var createCmd = &cobra.Command{
	Use:   "create [title]",
	Short: "Create a task",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store := openStore()
		defer store.Close()

		task := &types.Task{Title: args[0]}
		task.StoryID, _ = cmd.Flags().GetString("story")
		task.Description, _ = cmd.Flags().GetString("desc")
		if v, _ := cmd.Flags().GetString("type"); v != "" {
			task.TaskType = types.TaskType(v)
		}
		if cmd.Flags().Changed("estimate") {
			est, _ := cmd.Flags().GetFloat64("estimate")
			task.EstimateHours = &est
		}

		id, err := store.CreateTask(rootCtx, task, cfg.Actor)
		if err != nil {
			fail(exitGeneral, "%v", err)
		}

		if out.JSON() {
			out.EmitJSON(map[string]string{"id": id})
			return
		}
		out.Successf("Created %s: %s", id, task.Title)
	},
}

// statusCommand builds the start/done/review shortcuts.
func statusCommand(use, short string, status types.Status) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [id]",
		Short: short,
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			store := openStore()
			defer store.Close()

			if err := store.UpdateTaskStatus(rootCtx, args[0], status, "", cfg.Actor); err != nil {
				fail(exitGeneral, "%v", err)
			}
			if out.JSON() {
				out.EmitJSON(map[string]string{"id": args[0], "status": string(status)})
				return
			}
			out.Successf("%s is now %s", args[0], status)
		},
	}
}

var (
	startCmd  = statusCommand("start", "Move a task to in_progress", types.StatusInProgress)
	doneCmd   = statusCommand("done", "Mark a task done", types.StatusDone)
	reviewCmd = statusCommand("review", "Move a task to review", types.StatusReview)
)

var blockCmd = &cobra.Command{
	Use:   "block [id] [reason]",
	Short: "Block a task with a reason",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		store := openStore()
		defer store.Close()

		if err := store.SetBlocker(rootCtx, args[0], args[1], cfg.Actor); err != nil {
			fail(exitGeneral, "%v", err)
		}
		if out.JSON() {
			out.EmitJSON(map[string]string{"id": args[0], "status": "blocked", "blockers": args[1]})
			return
		}
		out.Successf("%s blocked: %s", args[0], args[1])
	},
}

var unblockCmd = &cobra.Command{
	Use:   "unblock [id]",
	Short: "Resolve a task's blocker and resume it",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store := openStore()
		defer store.Close()

		if err := store.ResolveBlocker(rootCtx, args[0], cfg.Actor); err != nil {
			fail(exitGeneral, "%v", err)
		}
		if out.JSON() {
			out.EmitJSON(map[string]string{"id": args[0], "status": "in_progress"})
			return
		}
		out.Successf("%s unblocked, now in_progress", args[0])
	},
}

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Show the session-resumption context",
	Run: func(cmd *cobra.Command, args []string) {
		store := openStore()
		defer store.Close()

		sc, err := store.GetSessionContext(rootCtx)
		if err != nil {
			fail(exitDatabase, "%v", err)
		}

		if out.JSON() {
			out.EmitJSON(sc)
			return
		}

		if len(sc.InProgress) > 0 {
			fmt.Println("In progress:")
			for _, t := range sc.InProgress {
				out.PrintTask(t)
			}
		}
		if len(sc.Blocked) > 0 {
			fmt.Println("Blocked:")
			for _, t := range sc.Blocked {
				out.PrintTask(t)
			}
		}
		if sc.SuggestedNext != nil {
			fmt.Println("Suggested next:")
			out.PrintTask(sc.SuggestedNext)
		}
		if len(sc.RecentActivity) > 0 {
			fmt.Println("Recent activity:")
			for _, a := range sc.RecentActivity {
				desc := a.Description
				if desc == "" {
					desc = string(a.ActivityType)
				}
				fmt.Printf("  %s %s: %s\n", a.CreatedAt.Format("2006-01-02 15:04"), a.TaskTitle, desc)
			}
		}
		if len(sc.InProgress) == 0 && len(sc.Blocked) == 0 && sc.SuggestedNext == nil {
			out.Infof("Nothing in flight and nothing to suggest")
		}
	},
}

var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Recommend what to work on next",
	Run: func(cmd *cobra.Command, args []string) {
		store := openStore()
		defer store.Close()

		task, err := store.GetNextTask(rootCtx)
		if err != nil {
			fail(exitDatabase, "%v", err)
		}

		if out.JSON() {
			out.EmitJSON(map[string]interface{}{"task": task})
			return
		}
		if task == nil {
			out.Infof("No actionable tasks")
			return
		}
		out.PrintTask(task)
	},
}

func init() {
	tasksCmd.Flags().String("status", "", "filter by status")
	tasksCmd.Flags().String("epic", "", "filter by epic ID")
	tasksCmd.Flags().String("priority", "", "filter by epic priority (P0-P3)")
	tasksCmd.Flags().Int("limit", 0, "maximum rows")

	createCmd.Flags().String("story", "", "parent story ID")
	createCmd.Flags().String("desc", "", "description")
	createCmd.Flags().String("type", "", "task type (feature, bug, chore, spike, test)")
	createCmd.Flags().Float64("estimate", 0, "estimate in hours")
}
