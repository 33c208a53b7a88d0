// Package mcp exposes the task engine as MCP (Model Context Protocol)
// tools so agent hosts can resume and manage work across sessions.
package mcp

import (
	"context"
	"fmt"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/srstomp/ohno/internal/storage/sqlite"
	"github.com/srstomp/ohno/internal/types"
)

// Server wraps a store and exposes engine operations as MCP tools.
type Server struct {
	server *gomcp.Server
	store  *sqlite.Store
	actor  string
}

// NewServer creates an MCP server over the given store. actor labels the
// audit entries written through this server.
func NewServer(store *sqlite.Store, actor, version string) *Server {
	if version == "" {
		version = "dev"
	}
	if actor == "" {
		actor = "agent"
	}

	s := &Server{store: store, actor: actor}
	s.server = gomcp.NewServer(
		&gomcp.Implementation{Name: "ohno", Version: version},
		nil,
	)
	s.registerTools()
	return s
}

// Run serves on stdio until the client disconnects or ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

type taskIDInput struct {
	TaskID string `json:"task_id" jsonschema:"required,the task identifier (e.g. task-a1b2c3d4)"`
}

type emptyInput struct{}

type messageOutput struct {
	Message string `json:"message"`
}

type taskDetailOutput struct {
	Task         *types.Task             `json:"task"`
	Activity     []*types.TaskActivity   `json:"recent_activity,omitempty"`
	Dependencies []*types.TaskDependency `json:"dependencies,omitempty"`
}

type getTasksInput struct {
	Status   string `json:"status,omitempty" jsonschema:"filter by status (todo, in_progress, review, done, blocked, archived)"`
	EpicID   string `json:"epic_id,omitempty" jsonschema:"filter by parent epic"`
	Priority string `json:"priority,omitempty" jsonschema:"filter by epic priority (P0-P3)"`
	Limit    int    `json:"limit,omitempty" jsonschema:"maximum number of tasks to return"`
}

type tasksOutput struct {
	Tasks []*types.Task `json:"tasks"`
	Count int           `json:"count"`
}

type nextTaskOutput struct {
	Task    *types.Task `json:"task,omitempty"`
	Message string      `json:"message,omitempty"`
}

type updateStatusInput struct {
	TaskID      string `json:"task_id" jsonschema:"required"`
	Status      string `json:"status" jsonschema:"required,the new status (todo, in_progress, review, done, blocked, archived)"`
	Description string `json:"description,omitempty" jsonschema:"optional note attached to the transition"`
}

type addActivityInput struct {
	TaskID       string   `json:"task_id" jsonschema:"required"`
	ActivityType string   `json:"activity_type,omitempty" jsonschema:"entry type (note, decision, file_change, progress); defaults to note"`
	Description  string   `json:"description" jsonschema:"required,what happened"`
	Files        []string `json:"files,omitempty" jsonschema:"file paths touched by this work"`
}

type idOutput struct {
	ID string `json:"id"`
}

type handoffInput struct {
	TaskID string `json:"task_id" jsonschema:"required"`
	Notes  string `json:"notes" jsonschema:"required,context for whoever picks the task up next"`
}

type progressInput struct {
	TaskID          string `json:"task_id" jsonschema:"required"`
	ProgressPercent int    `json:"progress_percent" jsonschema:"required,completion percentage in [0 100]"`
}

type blockerInput struct {
	TaskID string `json:"task_id" jsonschema:"required"`
	Reason string `json:"reason" jsonschema:"required,why the task is blocked"`
}

type createTaskInput struct {
	Title         string   `json:"title" jsonschema:"required,short task title"`
	StoryID       string   `json:"story_id,omitempty" jsonschema:"parent story"`
	Description   string   `json:"description,omitempty"`
	TaskType      string   `json:"task_type,omitempty" jsonschema:"feature, bug, chore, spike, or test; defaults to feature"`
	EstimateHours *float64 `json:"estimate_hours,omitempty"`
}

type updateTaskInput struct {
	TaskID          string   `json:"task_id" jsonschema:"required"`
	Title           *string  `json:"title,omitempty"`
	Description     *string  `json:"description,omitempty"`
	ContextSummary  *string  `json:"context_summary,omitempty"`
	WorkingFiles    *string  `json:"working_files,omitempty"`
	HandoffNotes    *string  `json:"handoff_notes,omitempty"`
	EstimateHours   *float64 `json:"estimate_hours,omitempty"`
	ActualHours     *float64 `json:"actual_hours,omitempty"`
	ProgressPercent *int     `json:"progress_percent,omitempty"`
	TaskType        *string  `json:"task_type,omitempty"`
	StoryID         *string  `json:"story_id,omitempty"`
}

type archiveInput struct {
	TaskID string `json:"task_id" jsonschema:"required"`
	Reason string `json:"reason,omitempty"`
}

type dependencyInput struct {
	TaskID         string `json:"task_id" jsonschema:"required,the dependent task"`
	DependsOnID    string `json:"depends_on_task_id" jsonschema:"required,the task that must finish first"`
	DependencyType string `json:"dependency_type,omitempty" jsonschema:"blocks, requires, or relates_to; defaults to blocks"`
}

type removeDependencyInput struct {
	TaskID      string `json:"task_id" jsonschema:"required"`
	DependsOnID string `json:"depends_on_task_id" jsonschema:"required"`
}

type removedOutput struct {
	Removed bool `json:"removed"`
}

type dependenciesOutput struct {
	Dependencies []*types.TaskDependency `json:"dependencies"`
	Blocking     []*types.TaskDependency `json:"blocking"`
	IsBlocked    bool                    `json:"is_blocked"`
}

type summarizeInput struct {
	TaskID     string `json:"task_id" jsonschema:"required"`
	MinEntries int    `json:"min_entries,omitempty" jsonschema:"minimum activity entries required; defaults to 5"`
	DeleteRaw  bool   `json:"delete_raw,omitempty" jsonschema:"prune all but the newest 3 raw entries after summarizing; irreversible"`
}

type summaryOutput struct {
	Summary string `json:"summary"`
}

// --- Tool registration ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_project_status",
		Description: "Get aggregate project status: task counts per status, completion percentage, epic/story counts, and hour totals.",
	}, s.handleGetProjectStatus)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_session_context",
		Description: "Get the session-resumption snapshot: in-progress tasks, blocked tasks, recent activity, and a suggested next task.",
	}, s.handleGetSessionContext)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_tasks",
		Description: "List tasks with optional status, epic, and priority filters, ordered by epic priority.",
	}, s.handleGetTasks)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_task",
		Description: "Get one task with its recent activity and dependencies.",
	}, s.handleGetTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_next_task",
		Description: "Recommend what to work on next. In-progress work wins; otherwise the highest-priority unblocked todo task.",
	}, s.handleGetNextTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_blocked_tasks",
		Description: "List tasks whose status is blocked, with their stated reasons.",
	}, s.handleGetBlockedTasks)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "update_task_status",
		Description: "Transition a task to a new status. The transition is recorded in the audit trail; done/archived trigger activity summarization.",
	}, s.handleUpdateTaskStatus)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "add_task_activity",
		Description: "Append an activity entry (note, decision, file_change, progress) to a task, optionally recording touched files.",
	}, s.handleAddTaskActivity)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "set_handoff_notes",
		Description: "Set the handoff notes another agent or session needs to pick this task up.",
	}, s.handleSetHandoffNotes)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "update_task_progress",
		Description: "Set a task's completion percentage (0-100).",
	}, s.handleUpdateTaskProgress)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "set_blocker",
		Description: "Mark a task blocked with a required reason.",
	}, s.handleSetBlocker)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "resolve_blocker",
		Description: "Clear a task's blocker and return it to in_progress.",
	}, s.handleResolveBlocker)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "create_task",
		Description: "Create a new task (status todo). Returns the generated content-addressed ID.",
	}, s.handleCreateTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "update_task",
		Description: "Partially update a task; only supplied fields change. Status changes must use update_task_status.",
	}, s.handleUpdateTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "archive_task",
		Description: "Soft-delete a task: status becomes archived, all history is preserved.",
	}, s.handleArchiveTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "add_dependency",
		Description: "Record that one task depends on another. Re-adding an existing edge returns the same ID.",
	}, s.handleAddDependency)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "remove_dependency",
		Description: "Remove a dependency edge between two tasks.",
	}, s.handleRemoveDependency)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_task_dependencies",
		Description: "Get a task's dependencies, which of them are still blocking, and whether the task is blocked.",
	}, s.handleGetTaskDependencies)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "summarize_task_activity",
		Description: "Compress a task's activity log into a retained summary. delete_raw prunes history irreversibly and is off by default.",
	}, s.handleSummarizeTaskActivity)
}

// --- Tool handlers ---

func (s *Server) handleGetProjectStatus(ctx context.Context, _ *gomcp.CallToolRequest, _ emptyInput) (*gomcp.CallToolResult, *types.ProjectStatus, error) {
	ps, err := s.store.GetProjectStatus(ctx)
	if err != nil {
		return errorResult(fmt.Sprintf("getting project status: %s", err)), nil, nil
	}
	return nil, ps, nil
}

func (s *Server) handleGetSessionContext(ctx context.Context, _ *gomcp.CallToolRequest, _ emptyInput) (*gomcp.CallToolResult, *types.SessionContext, error) {
	sc, err := s.store.GetSessionContext(ctx)
	if err != nil {
		return errorResult(fmt.Sprintf("getting session context: %s", err)), nil, nil
	}
	return nil, sc, nil
}

func (s *Server) handleGetTasks(ctx context.Context, _ *gomcp.CallToolRequest, input getTasksInput) (*gomcp.CallToolResult, tasksOutput, error) {
	filter := types.TaskFilter{Limit: input.Limit}
	if input.Status != "" {
		status := types.Status(input.Status)
		if !status.IsValid() {
			return errorResult(fmt.Sprintf("invalid status: %s", input.Status)), tasksOutput{}, nil
		}
		filter.Status = &status
	}
	if input.EpicID != "" {
		filter.EpicID = &input.EpicID
	}
	if input.Priority != "" {
		filter.Priority = &input.Priority
	}

	tasks, err := s.store.ListTasks(ctx, filter)
	if err != nil {
		return errorResult(fmt.Sprintf("listing tasks: %s", err)), tasksOutput{}, nil
	}
	return nil, tasksOutput{Tasks: tasks, Count: len(tasks)}, nil
}

func (s *Server) handleGetTask(ctx context.Context, _ *gomcp.CallToolRequest, input taskIDInput) (*gomcp.CallToolResult, taskDetailOutput, error) {
	if input.TaskID == "" {
		return errorResult("task_id is required"), taskDetailOutput{}, nil
	}

	task, err := s.store.GetTask(ctx, input.TaskID)
	if err != nil {
		return errorResult(fmt.Sprintf("getting task %s: %s", input.TaskID, err)), taskDetailOutput{}, nil
	}
	if task == nil {
		return errorResult(fmt.Sprintf("task %s not found", input.TaskID)), taskDetailOutput{}, nil
	}

	activity, err := s.store.GetActivity(ctx, input.TaskID, 10)
	if err != nil {
		return errorResult(fmt.Sprintf("getting activity: %s", err)), taskDetailOutput{}, nil
	}
	deps, err := s.store.GetDependencies(ctx, input.TaskID)
	if err != nil {
		return errorResult(fmt.Sprintf("getting dependencies: %s", err)), taskDetailOutput{}, nil
	}

	return nil, taskDetailOutput{Task: task, Activity: activity, Dependencies: deps}, nil
}

func (s *Server) handleGetNextTask(ctx context.Context, _ *gomcp.CallToolRequest, _ emptyInput) (*gomcp.CallToolResult, nextTaskOutput, error) {
	task, err := s.store.GetNextTask(ctx)
	if err != nil {
		return errorResult(fmt.Sprintf("getting next task: %s", err)), nextTaskOutput{}, nil
	}
	if task == nil {
		return nil, nextTaskOutput{Message: "no actionable tasks"}, nil
	}
	return nil, nextTaskOutput{Task: task}, nil
}

func (s *Server) handleGetBlockedTasks(ctx context.Context, _ *gomcp.CallToolRequest, _ emptyInput) (*gomcp.CallToolResult, tasksOutput, error) {
	tasks, err := s.store.GetBlockedTasks(ctx, 0)
	if err != nil {
		return errorResult(fmt.Sprintf("getting blocked tasks: %s", err)), tasksOutput{}, nil
	}
	return nil, tasksOutput{Tasks: tasks, Count: len(tasks)}, nil
}

func (s *Server) handleUpdateTaskStatus(ctx context.Context, _ *gomcp.CallToolRequest, input updateStatusInput) (*gomcp.CallToolResult, messageOutput, error) {
	err := s.store.UpdateTaskStatus(ctx, input.TaskID, types.Status(input.Status), input.Description, s.actor)
	if err != nil {
		return errorResult(fmt.Sprintf("updating status: %s", err)), messageOutput{}, nil
	}
	return nil, messageOutput{Message: fmt.Sprintf("task %s is now %s", input.TaskID, input.Status)}, nil
}

func (s *Server) handleAddTaskActivity(ctx context.Context, _ *gomcp.CallToolRequest, input addActivityInput) (*gomcp.CallToolResult, idOutput, error) {
	if input.Description == "" {
		return errorResult("description is required"), idOutput{}, nil
	}

	act := &types.TaskActivity{
		TaskID:       input.TaskID,
		ActivityType: types.ActivityType(input.ActivityType),
		Description:  input.Description,
		Actor:        s.actor,
	}
	id, err := s.store.AddActivity(ctx, act, input.Files)
	if err != nil {
		return errorResult(fmt.Sprintf("adding activity: %s", err)), idOutput{}, nil
	}
	return nil, idOutput{ID: id}, nil
}

func (s *Server) handleSetHandoffNotes(ctx context.Context, _ *gomcp.CallToolRequest, input handoffInput) (*gomcp.CallToolResult, messageOutput, error) {
	if err := s.store.SetHandoffNotes(ctx, input.TaskID, input.Notes, s.actor); err != nil {
		return errorResult(fmt.Sprintf("setting handoff notes: %s", err)), messageOutput{}, nil
	}
	return nil, messageOutput{Message: "handoff notes updated"}, nil
}

func (s *Server) handleUpdateTaskProgress(ctx context.Context, _ *gomcp.CallToolRequest, input progressInput) (*gomcp.CallToolResult, messageOutput, error) {
	if err := s.store.UpdateProgress(ctx, input.TaskID, input.ProgressPercent, s.actor); err != nil {
		return errorResult(fmt.Sprintf("updating progress: %s", err)), messageOutput{}, nil
	}
	return nil, messageOutput{Message: fmt.Sprintf("progress set to %d%%", input.ProgressPercent)}, nil
}

func (s *Server) handleSetBlocker(ctx context.Context, _ *gomcp.CallToolRequest, input blockerInput) (*gomcp.CallToolResult, messageOutput, error) {
	if err := s.store.SetBlocker(ctx, input.TaskID, input.Reason, s.actor); err != nil {
		return errorResult(fmt.Sprintf("setting blocker: %s", err)), messageOutput{}, nil
	}
	return nil, messageOutput{Message: fmt.Sprintf("task %s blocked", input.TaskID)}, nil
}

func (s *Server) handleResolveBlocker(ctx context.Context, _ *gomcp.CallToolRequest, input taskIDInput) (*gomcp.CallToolResult, messageOutput, error) {
	if err := s.store.ResolveBlocker(ctx, input.TaskID, s.actor); err != nil {
		return errorResult(fmt.Sprintf("resolving blocker: %s", err)), messageOutput{}, nil
	}
	return nil, messageOutput{Message: fmt.Sprintf("task %s unblocked, now in_progress", input.TaskID)}, nil
}

func (s *Server) handleCreateTask(ctx context.Context, _ *gomcp.CallToolRequest, input createTaskInput) (*gomcp.CallToolResult, idOutput, error) {
	task := &types.Task{
		Title:         input.Title,
		StoryID:       input.StoryID,
		Description:   input.Description,
		TaskType:      types.TaskType(input.TaskType),
		EstimateHours: input.EstimateHours,
	}
	id, err := s.store.CreateTask(ctx, task, s.actor)
	if err != nil {
		return errorResult(fmt.Sprintf("creating task: %s", err)), idOutput{}, nil
	}
	return nil, idOutput{ID: id}, nil
}

func (s *Server) handleUpdateTask(ctx context.Context, _ *gomcp.CallToolRequest, input updateTaskInput) (*gomcp.CallToolResult, messageOutput, error) {
	updates := map[string]interface{}{}
	setIf := func(field string, v interface{}, present bool) {
		if present {
			updates[field] = v
		}
	}
	setIf("title", deref(input.Title), input.Title != nil)
	setIf("description", deref(input.Description), input.Description != nil)
	setIf("context_summary", deref(input.ContextSummary), input.ContextSummary != nil)
	setIf("working_files", deref(input.WorkingFiles), input.WorkingFiles != nil)
	setIf("handoff_notes", deref(input.HandoffNotes), input.HandoffNotes != nil)
	setIf("task_type", deref(input.TaskType), input.TaskType != nil)
	setIf("story_id", deref(input.StoryID), input.StoryID != nil)
	if input.EstimateHours != nil {
		updates["estimate_hours"] = *input.EstimateHours
	}
	if input.ActualHours != nil {
		updates["actual_hours"] = *input.ActualHours
	}
	if input.ProgressPercent != nil {
		updates["progress_percent"] = *input.ProgressPercent
	}

	if len(updates) == 0 {
		return errorResult("no fields to update"), messageOutput{}, nil
	}
	if err := s.store.UpdateTask(ctx, input.TaskID, updates, s.actor); err != nil {
		return errorResult(fmt.Sprintf("updating task: %s", err)), messageOutput{}, nil
	}
	return nil, messageOutput{Message: fmt.Sprintf("task %s updated", input.TaskID)}, nil
}

func (s *Server) handleArchiveTask(ctx context.Context, _ *gomcp.CallToolRequest, input archiveInput) (*gomcp.CallToolResult, messageOutput, error) {
	if err := s.store.ArchiveTask(ctx, input.TaskID, input.Reason, s.actor); err != nil {
		return errorResult(fmt.Sprintf("archiving task: %s", err)), messageOutput{}, nil
	}
	return nil, messageOutput{Message: fmt.Sprintf("task %s archived", input.TaskID)}, nil
}

func (s *Server) handleAddDependency(ctx context.Context, _ *gomcp.CallToolRequest, input dependencyInput) (*gomcp.CallToolResult, idOutput, error) {
	id, err := s.store.AddDependency(ctx, input.TaskID, input.DependsOnID, types.DependencyType(input.DependencyType))
	if err != nil {
		return errorResult(fmt.Sprintf("adding dependency: %s", err)), idOutput{}, nil
	}
	return nil, idOutput{ID: id}, nil
}

func (s *Server) handleRemoveDependency(ctx context.Context, _ *gomcp.CallToolRequest, input removeDependencyInput) (*gomcp.CallToolResult, removedOutput, error) {
	removed, err := s.store.RemoveDependency(ctx, input.TaskID, input.DependsOnID)
	if err != nil {
		return errorResult(fmt.Sprintf("removing dependency: %s", err)), removedOutput{}, nil
	}
	return nil, removedOutput{Removed: removed}, nil
}

func (s *Server) handleGetTaskDependencies(ctx context.Context, _ *gomcp.CallToolRequest, input taskIDInput) (*gomcp.CallToolResult, dependenciesOutput, error) {
	deps, err := s.store.GetDependencies(ctx, input.TaskID)
	if err != nil {
		return errorResult(fmt.Sprintf("getting dependencies: %s", err)), dependenciesOutput{}, nil
	}
	blocking, err := s.store.GetBlocking(ctx, input.TaskID)
	if err != nil {
		return errorResult(fmt.Sprintf("getting blocking: %s", err)), dependenciesOutput{}, nil
	}
	return nil, dependenciesOutput{
		Dependencies: deps,
		Blocking:     blocking,
		IsBlocked:    len(blocking) > 0,
	}, nil
}

func (s *Server) handleSummarizeTaskActivity(ctx context.Context, _ *gomcp.CallToolRequest, input summarizeInput) (*gomcp.CallToolResult, summaryOutput, error) {
	summary, err := s.store.SummarizeActivity(ctx, input.TaskID, input.MinEntries, input.DeleteRaw)
	if err != nil {
		return errorResult(fmt.Sprintf("summarizing activity: %s", err)), summaryOutput{}, nil
	}
	return nil, summaryOutput{Summary: summary}, nil
}

// --- Helpers ---

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
