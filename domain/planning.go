package domain

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format of sprint and epic dates.
const DateLayout = "2006-01-02"

// Sprint is a fixed-length planning window.
type Sprint struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Goals     string `json:"goals"`
	Start     string `json:"start"`
	End       string `json:"end"`
	Completed bool   `json:"completed"`
}

// SprintForm carries user input for a new sprint.
type SprintForm struct {
	Name  string `json:"name"`
	Goals string `json:"goals"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// Normalize trims free-text fields.
func (f SprintForm) Normalize() SprintForm {
	f.Name = strings.TrimSpace(f.Name)
	f.Goals = strings.TrimSpace(f.Goals)
	f.Start = strings.TrimSpace(f.Start)
	f.End = strings.TrimSpace(f.End)
	return f
}

// Validate reports every missing or inconsistent field at once.
func (f SprintForm) Validate() error {
	f = f.Normalize()
	fields := map[string]string{}
	if f.Name == "" {
		fields["name"] = "Required"
	}
	if f.Goals == "" {
		fields["goals"] = "Required"
	}
	start, startErr := parseDate(f.Start)
	end, endErr := parseDate(f.End)
	switch {
	case f.Start == "":
		fields["start"] = "Required"
	case startErr != nil:
		fields["start"] = "Invalid date"
	}
	switch {
	case f.End == "":
		fields["end"] = "Required"
	case endErr != nil:
		fields["end"] = "Invalid date"
	}
	if startErr == nil && endErr == nil && f.Start != "" && f.End != "" && !end.After(start) {
		fields["end"] = "Must be after start date"
	}
	return validationErr(fields)
}

// SprintTimeline renders the sprint length as weeks and days, e.g. "1w 4d".
func SprintTimeline(start, end string) (string, error) {
	s, err := parseDate(start)
	if err != nil {
		return "", err
	}
	e, err := parseDate(end)
	if err != nil {
		return "", err
	}
	days := int(e.Sub(s).Hours() / 24)
	weeks := days / 7
	rem := days % 7
	if weeks == 0 {
		return fmt.Sprintf("%dd", days), nil
	}
	if rem == 0 {
		return fmt.Sprintf("%dw", weeks), nil
	}
	return fmt.Sprintf("%dw %dd", weeks, rem), nil
}

// EpicStatus tracks the lifecycle of an epic.
type EpicStatus string

const (
	EpicPlanning   EpicStatus = "Planning"
	EpicInProgress EpicStatus = "In Progress"
	EpicDone       EpicStatus = "Done"
	EpicBlocked    EpicStatus = "Blocked"
	EpicOnHold     EpicStatus = "On Hold"
)

// EpicStatuses lists every epic status in display order.
var EpicStatuses = []EpicStatus{EpicPlanning, EpicInProgress, EpicDone, EpicBlocked, EpicOnHold}

// Valid reports whether s is a known epic status.
func (s EpicStatus) Valid() bool {
	for _, v := range EpicStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Epic groups related work under a single goal.
type Epic struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Status      EpicStatus `json:"status"`
	Priority    Priority   `json:"priority"`
	Owner       string     `json:"owner"`
	DueDate     string     `json:"dueDate"`
	Progress    int        `json:"progress"`
	LinkedItems int        `json:"linkedItems"`
}

// EpicForm carries user input for a new epic.
type EpicForm struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Status      EpicStatus `json:"status"`
	Priority    Priority   `json:"priority"`
	Owner       string     `json:"owner"`
	DueDate     string     `json:"dueDate"`
	Progress    int        `json:"progress"`
}

// Normalize trims text, applies defaults and clamps progress to 0..100.
func (f EpicForm) Normalize() EpicForm {
	f.Name = strings.TrimSpace(f.Name)
	f.Description = strings.TrimSpace(f.Description)
	f.Owner = strings.TrimSpace(f.Owner)
	f.DueDate = strings.TrimSpace(f.DueDate)
	if f.Status == "" {
		f.Status = EpicPlanning
	}
	if f.Priority == "" {
		f.Priority = PriorityMedium
	}
	if f.Progress < 0 {
		f.Progress = 0
	}
	if f.Progress > 100 {
		f.Progress = 100
	}
	return f
}

// Validate reports every missing or unknown field at once.
func (f EpicForm) Validate() error {
	f = f.Normalize()
	fields := map[string]string{}
	if f.Name == "" {
		fields["name"] = "Required"
	}
	if f.Owner == "" {
		fields["owner"] = "Required"
	}
	if f.DueDate == "" {
		fields["dueDate"] = "Required"
	} else if _, err := parseDate(f.DueDate); err != nil {
		fields["dueDate"] = "Invalid date"
	}
	if !f.Status.Valid() {
		fields["status"] = "Unknown status"
	}
	if !f.Priority.Valid() {
		fields["priority"] = "Unknown priority"
	}
	return validationErr(fields)
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}
