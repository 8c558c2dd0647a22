package domain

import (
	"errors"
	"testing"

	"github.com/bytedance/sonic"
)

func TestSprintFormValidate(t *testing.T) {
	tests := []struct {
		name   string
		form   SprintForm
		fields []string
	}{
		{name: "ok", form: SprintForm{Name: "S5", Goals: "g", Start: "2024-03-04", End: "2024-03-15"}},
		{name: "blank", form: SprintForm{Name: "  ", Goals: ""}, fields: []string{"name", "goals", "start", "end"}},
		{name: "endBeforeStart", form: SprintForm{Name: "S", Goals: "g", Start: "2024-03-15", End: "2024-03-04"}, fields: []string{"end"}},
		{name: "sameDay", form: SprintForm{Name: "S", Goals: "g", Start: "2024-03-15", End: "2024-03-15"}, fields: []string{"end"}},
		{name: "badDate", form: SprintForm{Name: "S", Goals: "g", Start: "03/04/2024", End: "2024-03-15"}, fields: []string{"start"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.form.Validate()
			if len(tt.fields) == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if len(verr.Fields) != len(tt.fields) {
				t.Fatalf("unexpected fields: %#v", verr.Fields)
			}
			for _, f := range tt.fields {
				if verr.Fields[f] == "" {
					t.Fatalf("missing field %s in %#v", f, verr.Fields)
				}
			}
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation in chain")
			}
		})
	}
}

func TestSprintTimeline(t *testing.T) {
	tests := []struct {
		start, end, want string
	}{
		{"2024-01-08", "2024-01-19", "1w 4d"},
		{"2024-01-01", "2024-01-15", "2w"},
		{"2024-01-01", "2024-01-06", "5d"},
	}
	for _, tt := range tests {
		got, err := SprintTimeline(tt.start, tt.end)
		if err != nil {
			t.Fatalf("timeline(%s, %s): %v", tt.start, tt.end, err)
		}
		if got != tt.want {
			t.Fatalf("timeline(%s, %s) = %q, want %q", tt.start, tt.end, got, tt.want)
		}
	}
}

func TestEpicFormDefaultsAndClamp(t *testing.T) {
	f := EpicForm{Name: " Billing ", Owner: "AK", DueDate: "2024-09-01", Progress: 140}.Normalize()
	if f.Name != "Billing" || f.Status != EpicPlanning || f.Priority != PriorityMedium || f.Progress != 100 {
		t.Fatalf("unexpected normalized form: %#v", f)
	}
	if err := f.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	err := EpicForm{Status: "Shipped"}.Validate()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	for _, f := range []string{"name", "owner", "dueDate", "status"} {
		if verr.Fields[f] == "" {
			t.Fatalf("missing field %s in %#v", f, verr.Fields)
		}
	}
}

func TestTaskMarshalUsesDisplayValues(t *testing.T) {
	task := Task{ID: "t1", Name: "n", Priority: PriorityCritical, Status: StatusWaitingForReview}
	payload, err := sonic.Marshal(task)
	if err != nil {
		t.Fatalf("marshal task: %v", err)
	}
	want := `{"id":"t1","name":"n","assignee":"","priority":"Critical","status":"Waiting for review"}`
	if string(payload) != want {
		t.Fatalf("unexpected payload: %s", payload)
	}
}

func TestStatusAndPriorityValid(t *testing.T) {
	for _, st := range Statuses {
		if !st.Valid() {
			t.Fatalf("status %q should be valid", st)
		}
	}
	for _, p := range Priorities {
		if !p.Valid() {
			t.Fatalf("priority %q should be valid", p)
		}
	}
	if Status("Blocked").Valid() {
		t.Fatalf("expected unknown status to be invalid")
	}
	if Priority("Urgent").Valid() {
		t.Fatalf("expected unknown priority to be invalid")
	}
}
