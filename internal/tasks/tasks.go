package tasks

import (
	"time"

	"github.com/roach88/jmapc/internal/filter"
	"github.com/roach88/jmapc/internal/shape"
)

// Capability is the URN every task method requires.
const Capability = "urn:ietf:params:jmap:tasks"

// Task progress values.
const (
	StatusNeedsAction = "needs-action"
	StatusInProcess   = "in-process"
	StatusCompleted   = "completed"
	StatusCancelled   = "cancelled"
)

// Task is a single to-do item.
type Task struct {
	ID              string          `json:"id,omitempty"`
	TaskListID      string          `json:"taskListId,omitempty"`
	Title           string          `json:"title,omitempty"`
	Description     string          `json:"description,omitempty"`
	Status          string          `json:"progress,omitempty"`
	Priority        int             `json:"priority,omitempty"`
	Due             *time.Time      `json:"due,omitempty"`
	Keywords        map[string]bool `json:"keywords,omitempty"`
	PercentComplete int             `json:"percentComplete,omitempty"`
}

func (Task) TypeName() string   { return "Task" }
func (Task) Capability() string { return Capability }
func (t Task) EntityID() string { return t.ID }

// Done reports whether the task needs no further work.
func (t Task) Done() bool {
	return t.Status == StatusCompleted || t.Status == StatusCancelled
}

// TaskList groups tasks. Role is empty or "inbox" for the default list.
type TaskList struct {
	ID           string `json:"id,omitempty"`
	Name         string `json:"name,omitempty"`
	Role         string `json:"role,omitempty"`
	SortOrder    int    `json:"sortOrder,omitempty"`
	IsSubscribed bool   `json:"isSubscribed,omitempty"`
}

func (TaskList) TypeName() string   { return "TaskList" }
func (TaskList) Capability() string { return Capability }
func (l TaskList) EntityID() string { return l.ID }

// TaskFilterCondition matches tasks. Unset members do not constrain.
type TaskFilterCondition struct {
	InTaskList string     `json:"inTaskList,omitempty"`
	Status     string     `json:"progress,omitempty"`
	Text       string     `json:"text,omitempty"`
	Title      string     `json:"title,omitempty"`
	Before     *time.Time `json:"before,omitempty"`
	After      *time.Time `json:"after,omitempty"`
	HasKeyword string     `json:"hasKeyword,omitempty"`
}

func (TaskFilterCondition) EntityType() string { return "Task" }

// TaskListFilterCondition matches task lists.
type TaskListFilterCondition struct {
	Name         string `json:"name,omitempty"`
	Role         string `json:"role,omitempty"`
	IsSubscribed *bool  `json:"isSubscribed,omitempty"`
}

func (TaskListFilterCondition) EntityType() string { return "TaskList" }

// Method shapes for Task.
type (
	Get             = shape.GetCall[Task]
	GetResponse     = shape.GetResponse[Task]
	Set             = shape.SetCall[Task]
	SetResponse     = shape.SetResponse[Task]
	Query           = shape.QueryCall[Task, TaskFilterCondition]
	QueryResponse   = shape.QueryResponse[Task]
	Changes         = shape.ChangesCall[Task]
	ChangesResponse = shape.ChangesResponse[Task]
	Filter          = filter.Filter[TaskFilterCondition]
)

// Method shapes for TaskList.
type (
	ListGet             = shape.GetCall[TaskList]
	ListGetResponse     = shape.GetResponse[TaskList]
	ListSet             = shape.SetCall[TaskList]
	ListSetResponse     = shape.SetResponse[TaskList]
	ListQuery           = shape.QueryCall[TaskList, TaskListFilterCondition]
	ListQueryResponse   = shape.QueryResponse[TaskList]
	ListChanges         = shape.ChangesCall[TaskList]
	ListChangesResponse = shape.ChangesResponse[TaskList]
	ListFilter          = filter.Filter[TaskListFilterCondition]
)
