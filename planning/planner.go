// Package planning keeps the workspace's sprints and epics.
package planning

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/thinkocapo/board/domain"
	"github.com/thinkocapo/board/observability"
)

type Planner struct {
	hook   observability.Hook
	logger *log.Logger

	mu      sync.RWMutex
	sprints []domain.Sprint
	epics   []domain.Epic
}

func NewPlanner(hook observability.Hook, logger *log.Logger, sprints []domain.Sprint, epics []domain.Epic) *Planner {
	if hook == nil {
		hook = observability.Nop{}
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Planner{
		hook:    hook,
		logger:  logger,
		sprints: append([]domain.Sprint(nil), sprints...),
		epics:   append([]domain.Epic(nil), epics...),
	}
}

// SprintSummary counts sprints by completion.
type SprintSummary struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
}

// EpicSummary aggregates epic progress.
type EpicSummary struct {
	Total           int `json:"total"`
	Done            int `json:"done"`
	AverageProgress int `json:"averageProgress"`
}

func (p *Planner) CreateSprint(ctx context.Context, form domain.SprintForm) (domain.Sprint, error) {
	form = form.Normalize()
	if err := form.Validate(); err != nil {
		return domain.Sprint{}, err
	}
	s := domain.Sprint{
		ID:    uuid.NewString(),
		Name:  form.Name,
		Goals: form.Goals,
		Start: form.Start,
		End:   form.End,
	}

	p.mu.Lock()
	p.sprints = append(p.sprints, s)
	p.mu.Unlock()

	p.hook.AddBreadcrumb(ctx, observability.Breadcrumb{
		Category: "sprint.create",
		Message:  fmt.Sprintf("Created sprint %q", s.Name),
		Level:    observability.LevelInfo,
		Data:     map[string]any{"sprintId": s.ID, "start": s.Start, "end": s.End},
	})
	p.logger.WithField("sprint_id", s.ID).Debug("sprint created")
	return s, nil
}

// ToggleSprint flips completion and reports the sprint's new state.
func (p *Planner) ToggleSprint(id string) (domain.Sprint, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.sprints {
		if p.sprints[i].ID == id {
			p.sprints[i].Completed = !p.sprints[i].Completed
			return p.sprints[i], true
		}
	}
	return domain.Sprint{}, false
}

func (p *Planner) Sprints() []domain.Sprint {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]domain.Sprint(nil), p.sprints...)
}

func (p *Planner) SprintSummary() SprintSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()
	sum := SprintSummary{Total: len(p.sprints)}
	for _, s := range p.sprints {
		if s.Completed {
			sum.Completed++
		}
	}
	return sum
}

// Timeline renders a sprint's length, e.g. "2w" or "1w 4d".
func (p *Planner) Timeline(s domain.Sprint) (string, error) {
	return domain.SprintTimeline(s.Start, s.End)
}

func (p *Planner) CreateEpic(ctx context.Context, form domain.EpicForm) (domain.Epic, error) {
	form = form.Normalize()
	if err := form.Validate(); err != nil {
		return domain.Epic{}, err
	}
	e := domain.Epic{
		ID:          uuid.NewString(),
		Name:        form.Name,
		Description: form.Description,
		Status:      form.Status,
		Priority:    form.Priority,
		Owner:       form.Owner,
		DueDate:     form.DueDate,
		Progress:    form.Progress,
	}

	p.mu.Lock()
	p.epics = append(p.epics, e)
	p.mu.Unlock()

	p.hook.AddBreadcrumb(ctx, observability.Breadcrumb{
		Category: "epic.create",
		Message:  fmt.Sprintf("Created epic %q", e.Name),
		Level:    observability.LevelInfo,
		Data:     map[string]any{"epicId": e.ID, "status": string(e.Status), "priority": string(e.Priority)},
	})
	p.logger.WithField("epic_id", e.ID).Debug("epic created")
	return e, nil
}

func (p *Planner) Epics() []domain.Epic {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]domain.Epic(nil), p.epics...)
}

func (p *Planner) EpicSummary() EpicSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()
	sum := EpicSummary{Total: len(p.epics)}
	if sum.Total == 0 {
		return sum
	}
	progress := 0
	for _, e := range p.epics {
		if e.Status == domain.EpicDone {
			sum.Done++
		}
		progress += e.Progress
	}
	sum.AverageProgress = int(math.Round(float64(progress) / float64(sum.Total)))
	return sum
}
