package domain

import "fmt"

// ColumnID identifies a workflow stage on the board.
type ColumnID string

const (
	ColumnBacklog    ColumnID = "backlog"
	ColumnInProgress ColumnID = "in_progress"
	ColumnReview     ColumnID = "review"
	ColumnDone       ColumnID = "done"
)

// ColumnSpec is the fixed configuration of a column.
type ColumnSpec struct {
	ID    ColumnID `json:"id"`
	Title string   `json:"title"`
	Color string   `json:"color,omitempty"`
}

// DefaultLayout is the column set and order used by the workspace.
var DefaultLayout = []ColumnSpec{
	{ID: ColumnBacklog, Title: "Backlog", Color: "bg-slate-500"},
	{ID: ColumnInProgress, Title: "In Progress", Color: "bg-blue-500"},
	{ID: ColumnReview, Title: "In Review", Color: "bg-yellow-500"},
	{ID: ColumnDone, Title: "Done", Color: "bg-green-500"},
}

// Column is an ordered bucket of tasks.
type Column struct {
	ID    ColumnID `json:"id"`
	Title string   `json:"title"`
	Color string   `json:"color,omitempty"`
	Tasks []Task   `json:"tasks"`
}

// Board is an immutable value: every mutation returns a new Board and leaves
// the receiver untouched. Task slices are never written in place, so boards
// derived from each other may share them safely.
type Board struct {
	order   []ColumnID
	columns map[ColumnID]Column
}

// NewBoard builds a board from a layout and the tasks each column starts with.
func NewBoard(layout []ColumnSpec, seed map[ColumnID][]Task) (Board, error) {
	b := Board{
		order:   make([]ColumnID, 0, len(layout)),
		columns: make(map[ColumnID]Column, len(layout)),
	}
	for _, spec := range layout {
		if _, dup := b.columns[spec.ID]; dup {
			return Board{}, fmt.Errorf("column %q declared twice", spec.ID)
		}
		b.order = append(b.order, spec.ID)
		b.columns[spec.ID] = Column{ID: spec.ID, Title: spec.Title, Color: spec.Color, Tasks: []Task{}}
	}
	for colID := range seed {
		if !b.Has(colID) {
			return Board{}, fmt.Errorf("%w: %q", ErrUnknownColumn, colID)
		}
	}
	var err error
	for _, colID := range b.order {
		for _, t := range seed[colID] {
			if b, err = b.InsertTask(colID, t); err != nil {
				return Board{}, err
			}
		}
	}
	return b, nil
}

// Has reports whether id is part of the board's layout.
func (b Board) Has(id ColumnID) bool {
	_, ok := b.columns[id]
	return ok
}

// Order returns the column ids in display order.
func (b Board) Order() []ColumnID {
	out := make([]ColumnID, len(b.order))
	copy(out, b.order)
	return out
}

// Column returns a copy of the column with the given id.
func (b Board) Column(id ColumnID) (Column, bool) {
	c, ok := b.columns[id]
	if !ok {
		return Column{}, false
	}
	return cloneColumn(c), true
}

// Columns returns copies of all columns in display order.
func (b Board) Columns() []Column {
	out := make([]Column, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, cloneColumn(b.columns[id]))
	}
	return out
}

// TotalItems counts tasks across all columns.
func (b Board) TotalItems() int {
	n := 0
	for _, c := range b.columns {
		n += len(c.Tasks)
	}
	return n
}

// TaskIDs lists every task id in display order.
func (b Board) TaskIDs() []string {
	ids := make([]string, 0, b.TotalItems())
	for _, colID := range b.order {
		for _, t := range b.columns[colID].Tasks {
			ids = append(ids, t.ID)
		}
	}
	return ids
}

// Find locates a task anywhere on the board.
func (b Board) Find(taskID string) (Task, ColumnID, bool) {
	for _, colID := range b.order {
		if i := indexOf(b.columns[colID].Tasks, taskID); i >= 0 {
			return b.columns[colID].Tasks[i], colID, true
		}
	}
	return Task{}, "", false
}

// TaskIn returns the task if it currently sits in column.
func (b Board) TaskIn(taskID string, column ColumnID) (Task, bool) {
	c, ok := b.columns[column]
	if !ok {
		return Task{}, false
	}
	i := indexOf(c.Tasks, taskID)
	if i < 0 {
		return Task{}, false
	}
	return c.Tasks[i], true
}

// MoveTask removes the task from one column and appends it to another.
// A task missing from the source column, or an unknown destination, leaves
// the board unchanged and reports false.
func (b Board) MoveTask(taskID string, from, to ColumnID) (Board, bool) {
	src, ok := b.columns[from]
	if !ok {
		return b, false
	}
	if _, ok := b.columns[to]; !ok {
		return b, false
	}
	i := indexOf(src.Tasks, taskID)
	if i < 0 {
		return b, false
	}
	task := src.Tasks[i]

	next := b.shallowCopy()
	src.Tasks = without(src.Tasks, i)
	next.columns[from] = src

	dst := next.columns[to]
	dst.Tasks = appended(dst.Tasks, task)
	next.columns[to] = dst
	return next, true
}

// DeleteTask removes the task from column if present.
func (b Board) DeleteTask(taskID string, column ColumnID) (Board, bool) {
	c, ok := b.columns[column]
	if !ok {
		return b, false
	}
	i := indexOf(c.Tasks, taskID)
	if i < 0 {
		return b, false
	}
	next := b.shallowCopy()
	c.Tasks = without(c.Tasks, i)
	next.columns[column] = c
	return next, true
}

// SetStatus replaces the status of the task in column if present.
func (b Board) SetStatus(taskID string, column ColumnID, status Status) (Board, bool) {
	c, ok := b.columns[column]
	if !ok {
		return b, false
	}
	i := indexOf(c.Tasks, taskID)
	if i < 0 {
		return b, false
	}
	tasks := make([]Task, len(c.Tasks))
	copy(tasks, c.Tasks)
	tasks[i].Status = status

	next := b.shallowCopy()
	c.Tasks = tasks
	next.columns[column] = c
	return next, true
}

// InsertTask appends a new task to column.
func (b Board) InsertTask(column ColumnID, t Task) (Board, error) {
	c, ok := b.columns[column]
	if !ok {
		return b, fmt.Errorf("%w: %q", ErrUnknownColumn, column)
	}
	if err := ValidateTask(t); err != nil {
		return b, err
	}
	if _, at, exists := b.Find(t.ID); exists {
		return b, fmt.Errorf("%w: %q already in %s", ErrDuplicateTask, t.ID, at)
	}
	next := b.shallowCopy()
	c.Tasks = appended(c.Tasks, t)
	next.columns[column] = c
	return next, nil
}

// Clone returns a deep copy that shares no memory with b.
func (b Board) Clone() Board {
	next := Board{
		order:   b.Order(),
		columns: make(map[ColumnID]Column, len(b.columns)),
	}
	for id, c := range b.columns {
		next.columns[id] = cloneColumn(c)
	}
	return next
}

// ValidateTask checks the fields required on every task.
func ValidateTask(t Task) error {
	fields := map[string]string{}
	if t.ID == "" {
		fields["id"] = "Required"
	}
	if t.Name == "" {
		fields["name"] = "Required"
	}
	if !t.Priority.Valid() {
		fields["priority"] = "Unknown priority"
	}
	if !t.Status.Valid() {
		fields["status"] = "Unknown status"
	}
	return validationErr(fields)
}

func (b Board) shallowCopy() Board {
	next := Board{order: b.order, columns: make(map[ColumnID]Column, len(b.columns))}
	for id, c := range b.columns {
		next.columns[id] = c
	}
	return next
}

func cloneColumn(c Column) Column {
	tasks := make([]Task, len(c.Tasks))
	copy(tasks, c.Tasks)
	c.Tasks = tasks
	return c
}

func indexOf(tasks []Task, id string) int {
	for i := range tasks {
		if tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func without(tasks []Task, i int) []Task {
	out := make([]Task, 0, len(tasks)-1)
	out = append(out, tasks[:i]...)
	return append(out, tasks[i+1:]...)
}

func appended(tasks []Task, t Task) []Task {
	out := make([]Task, 0, len(tasks)+1)
	out = append(out, tasks...)
	return append(out, t)
}

// BoardView is the serialisable form of a board.
type BoardView struct {
	Version    uint64   `json:"version"`
	Columns    []Column `json:"columns"`
	TotalItems int      `json:"totalItems"`
}

// View renders b in column order.
func (b Board) View(version uint64) BoardView {
	return BoardView{Version: version, Columns: b.Columns(), TotalItems: b.TotalItems()}
}
