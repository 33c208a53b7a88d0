// Package types defines the core data structures for the ohno task engine.
package types

import (
	"fmt"
	"time"
)

// Status represents the lifecycle state of a task.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusReview     Status = "review"
	StatusDone       Status = "done"
	StatusBlocked    Status = "blocked"
	StatusArchived   Status = "archived"
)

// IsValid checks if the status is a valid value.
func (s Status) IsValid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusReview, StatusDone, StatusBlocked, StatusArchived:
		return true
	}
	return false
}

// TaskType categorizes the kind of work a task represents.
type TaskType string

const (
	TypeFeature TaskType = "feature"
	TypeBug     TaskType = "bug"
	TypeChore   TaskType = "chore"
	TypeSpike   TaskType = "spike"
	TypeTest    TaskType = "test"
)

// IsValid checks if the task type is a valid value.
func (t TaskType) IsValid() bool {
	switch t {
	case TypeFeature, TypeBug, TypeChore, TypeSpike, TypeTest:
		return true
	}
	return false
}

// DependencyType represents the kind of relationship between two tasks.
type DependencyType string

const (
	DepBlocks    DependencyType = "blocks"
	DepRequires  DependencyType = "requires"
	DepRelatesTo DependencyType = "relates_to"
)

// IsValid checks if the dependency type is a valid value.
func (d DependencyType) IsValid() bool {
	switch d {
	case DepBlocks, DepRequires, DepRelatesTo:
		return true
	}
	return false
}

// ActivityType classifies an audit-trail entry.
type ActivityType string

const (
	ActivityCreated      ActivityType = "created"
	ActivityUpdated      ActivityType = "updated"
	ActivityStatusChange ActivityType = "status_change"
	ActivityNote         ActivityType = "note"
	ActivityFileChange   ActivityType = "file_change"
	ActivityDecision     ActivityType = "decision"
	ActivityProgress     ActivityType = "progress"
	ActivityBlocked      ActivityType = "blocked"
	ActivityUnblocked    ActivityType = "unblocked"
	ActivityArchived     ActivityType = "archived"
)

// Task represents a unit of work tracked by the engine.
//
// StoryTitle, EpicID, EpicTitle, and EpicPriority are read-only display
// fields resolved through the externally-owned stories and epics tables;
// they are populated by list queries and never written back.
type Task struct {
	ID              string    `json:"id"`
	StoryID         string    `json:"story_id,omitempty"`
	Title           string    `json:"title"`
	Status          Status    `json:"status"`
	TaskType        TaskType  `json:"task_type,omitempty"`
	EstimateHours   *float64  `json:"estimate_hours,omitempty"`
	ActualHours     *float64  `json:"actual_hours,omitempty"`
	Description     string    `json:"description,omitempty"`
	ContextSummary  string    `json:"context_summary,omitempty"`
	WorkingFiles    string    `json:"working_files,omitempty"`
	Blockers        string    `json:"blockers,omitempty"`
	HandoffNotes    string    `json:"handoff_notes,omitempty"`
	ProgressPercent *int      `json:"progress_percent,omitempty"`
	ActivitySummary string    `json:"activity_summary,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	CreatedBy       string    `json:"created_by,omitempty"`

	StoryTitle   string `json:"story_title,omitempty"`
	EpicID       string `json:"epic_id,omitempty"`
	EpicTitle    string `json:"epic_title,omitempty"`
	EpicPriority string `json:"epic_priority,omitempty"`
}

// Validate checks that the task fields are well-formed.
func (t *Task) Validate() error {
	if t.Title == "" {
		return fmt.Errorf("task title cannot be empty")
	}
	if !t.Status.IsValid() {
		return fmt.Errorf("invalid status: %s", t.Status)
	}
	if t.TaskType != "" && !t.TaskType.IsValid() {
		return fmt.Errorf("invalid task type: %s", t.TaskType)
	}
	if t.ProgressPercent != nil && (*t.ProgressPercent < 0 || *t.ProgressPercent > 100) {
		return fmt.Errorf("progress_percent must be in [0,100], got %d", *t.ProgressPercent)
	}
	if t.EstimateHours != nil && *t.EstimateHours < 0 {
		return fmt.Errorf("estimate_hours cannot be negative")
	}
	if t.ActualHours != nil && *t.ActualHours < 0 {
		return fmt.Errorf("actual_hours cannot be negative")
	}
	return nil
}

// TaskActivity is an append-only audit entry for a task.
type TaskActivity struct {
	ID           string       `json:"id"`
	TaskID       string       `json:"task_id"`
	ActivityType ActivityType `json:"activity_type"`
	Description  string       `json:"description,omitempty"`
	OldValue     string       `json:"old_value,omitempty"`
	NewValue     string       `json:"new_value,omitempty"`
	Actor        string       `json:"actor,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`

	// TaskTitle is joined in for global activity feeds.
	TaskTitle string `json:"task_title,omitempty"`
}

// TaskDependency is a directed edge: TaskID depends on DependsOnID.
type TaskDependency struct {
	ID          string         `json:"id"`
	TaskID      string         `json:"task_id"`
	DependsOnID string         `json:"depends_on_task_id"`
	Type        DependencyType `json:"dependency_type"`
	CreatedAt   time.Time      `json:"created_at"`

	DependsOnTitle  string `json:"depends_on_title,omitempty"`
	DependsOnStatus Status `json:"depends_on_status,omitempty"`
}

// TaskFile associates a file path with a task.
type TaskFile struct {
	ID        int64     `json:"id"`
	TaskID    string    `json:"task_id"`
	FilePath  string    `json:"file_path"`
	Action    string    `json:"action,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TaskFilter specifies criteria for listing tasks.
// Nil fields are not applied.
type TaskFilter struct {
	Status   *Status `json:"status,omitempty"`
	EpicID   *string `json:"epic_id,omitempty"`
	Priority *string `json:"priority,omitempty"`
	Limit    int     `json:"limit,omitempty"`
}

// SessionContext is a derived snapshot used to resume work without
// replaying full history. It is never persisted.
type SessionContext struct {
	InProgress     []*Task         `json:"in_progress"`
	Blocked        []*Task         `json:"blocked"`
	RecentActivity []*TaskActivity `json:"recent_activity"`
	SuggestedNext  *Task           `json:"suggested_next_task,omitempty"`
}

// ProjectStatus aggregates counts and hour sums for reporting.
type ProjectStatus struct {
	TotalTasks         int            `json:"total_tasks"`
	ByStatus           map[Status]int `json:"by_status"`
	CompletionPercent  float64        `json:"completion_percent"`
	EpicCount          int            `json:"epic_count"`
	StoryCount         int            `json:"story_count"`
	TotalEstimateHours float64        `json:"total_estimate_hours"`
	TotalActualHours   float64        `json:"total_actual_hours"`
}

// PriorityRank maps an epic priority label to its sort rank.
// Unknown or empty priorities sort last.
func PriorityRank(priority string) int {
	switch priority {
	case "P0":
		return 0
	case "P1":
		return 1
	case "P2":
		return 2
	case "P3":
		return 3
	}
	return 99
}
