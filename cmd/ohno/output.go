package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/srstomp/ohno/internal/config"
	"github.com/srstomp/ohno/internal/types"
)

// Output formats command results. It is built once from the resolved
// config and passed around; there is no process-global formatter state
// beyond fatih/color's NoColor switch.
type Output struct {
	json  bool
	quiet bool

	green  func(a ...interface{}) string
	yellow func(a ...interface{}) string
	red    func(a ...interface{}) string
	dim    func(a ...interface{}) string
}

func NewOutput(cfg *config.Config) *Output {
	return &Output{
		json:   cfg.JSON,
		quiet:  cfg.Quiet,
		green:  color.New(color.FgGreen).SprintFunc(),
		yellow: color.New(color.FgYellow).SprintFunc(),
		red:    color.New(color.FgRed).SprintFunc(),
		dim:    color.New(color.Faint).SprintFunc(),
	}
}

// JSON reports whether machine-readable output was requested.
func (o *Output) JSON() bool { return o.json }

// EmitJSON marshals v to stdout.
func (o *Output) EmitJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fail(exitGeneral, "marshaling output: %v", err)
	}
	fmt.Println(string(data))
}

// Infof prints an informational line unless quiet.
func (o *Output) Infof(format string, args ...interface{}) {
	if o.quiet || o.json {
		return
	}
	fmt.Printf(format+"\n", args...)
}

// Successf prints a green checkmark line unless quiet.
func (o *Output) Successf(format string, args ...interface{}) {
	if o.quiet || o.json {
		return
	}
	fmt.Printf("%s "+format+"\n", append([]interface{}{o.green("✓")}, args...)...)
}

// Warnf prints a yellow warning to stderr.
func (o *Output) Warnf(format string, args ...interface{}) {
	if o.json {
		return
	}
	fmt.Fprintf(os.Stderr, "%s "+format+"\n", append([]interface{}{o.yellow("⚠")}, args...)...)
}

// statusColor renders a status label with its conventional color.
func (o *Output) statusColor(s types.Status) string {
	switch s {
	case types.StatusDone:
		return o.green(string(s))
	case types.StatusBlocked:
		return o.red(string(s))
	case types.StatusInProgress, types.StatusReview:
		return o.yellow(string(s))
	}
	return string(s)
}

// PrintTask renders a one-line task row.
func (o *Output) PrintTask(t *types.Task) {
	var extra []string
	if t.EpicPriority != "" {
		extra = append(extra, t.EpicPriority)
	}
	if t.EpicTitle != "" {
		extra = append(extra, t.EpicTitle)
	}
	suffix := ""
	if len(extra) > 0 {
		suffix = " " + o.dim("["+strings.Join(extra, " · ")+"]")
	}
	fmt.Printf("%s  %-12s %s%s\n", o.dim(t.ID), o.statusColor(t.Status), t.Title, suffix)
}

// PrintTaskDetail renders the full task view.
func (o *Output) PrintTaskDetail(t *types.Task, activity []*types.TaskActivity, deps []*types.TaskDependency) {
	fmt.Printf("%s  %s\n", t.ID, t.Title)
	fmt.Printf("  status:   %s\n", o.statusColor(t.Status))
	if t.TaskType != "" {
		fmt.Printf("  type:     %s\n", t.TaskType)
	}
	if t.EpicTitle != "" {
		fmt.Printf("  epic:     %s (%s)\n", t.EpicTitle, t.EpicPriority)
	}
	if t.StoryTitle != "" {
		fmt.Printf("  story:    %s\n", t.StoryTitle)
	}
	if t.Description != "" {
		fmt.Printf("  desc:     %s\n", t.Description)
	}
	if t.Blockers != "" {
		fmt.Printf("  blockers: %s\n", o.red(t.Blockers))
	}
	if t.ProgressPercent != nil {
		fmt.Printf("  progress: %d%%\n", *t.ProgressPercent)
	}
	if t.HandoffNotes != "" {
		fmt.Printf("  handoff:  %s\n", t.HandoffNotes)
	}
	if t.ActivitySummary != "" {
		fmt.Printf("  summary:\n%s\n", indent(t.ActivitySummary, "    "))
	}

	if len(deps) > 0 {
		fmt.Println("  depends on:")
		for _, d := range deps {
			fmt.Printf("    %s %s (%s)\n", d.DependsOnID, d.DependsOnTitle, o.statusColor(d.DependsOnStatus))
		}
	}
	if len(activity) > 0 {
		fmt.Println("  recent activity:")
		for _, a := range activity {
			desc := a.Description
			if desc == "" {
				desc = string(a.ActivityType)
			}
			fmt.Printf("    %s %s %s\n", o.dim(a.CreatedAt.Format("2006-01-02 15:04")), a.ActivityType, desc)
		}
	}
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
