package domain

// Priority ranks how urgent a task is.
type Priority string

const (
	PriorityLow      Priority = "Low"
	PriorityMedium   Priority = "Medium"
	PriorityHigh     Priority = "High"
	PriorityCritical Priority = "Critical"
)

// Priorities lists every priority from lowest to highest.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	for _, v := range Priorities {
		if p == v {
			return true
		}
	}
	return false
}

// Status is the workflow state shown on a task card.
type Status string

const (
	StatusNotStarted       Status = "Not started"
	StatusWorkingOnIt      Status = "Working on it"
	StatusStuck            Status = "Stuck"
	StatusInReview         Status = "In review"
	StatusDone             Status = "Done"
	StatusWaitingForReview Status = "Waiting for review"
)

// Statuses lists the statuses in the order they are offered to users.
var Statuses = []Status{
	StatusNotStarted,
	StatusWorkingOnIt,
	StatusStuck,
	StatusInReview,
	StatusDone,
	StatusWaitingForReview,
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// Task represents a single card on the board.
type Task struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Assignee string   `json:"assignee"`
	Priority Priority `json:"priority"`
	Status   Status   `json:"status"`
}

// ProtectedTaskName is the one task name that can never be deleted.
const ProtectedTaskName = "Error Task"

// Protected reports whether the task is covered by the delete policy.
func (t Task) Protected() bool {
	return t.Name == ProtectedTaskName
}
