package planning

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/thinkocapo/board/domain"
	"github.com/thinkocapo/board/observability"
)

func newPlanner(t *testing.T) (*Planner, *observability.Tracer) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	tracer := observability.NewTracer(logger, observability.Scope{})
	return NewPlanner(tracer, logger, domain.SeedSprints(), domain.SeedEpics()), tracer
}

func TestSeedSummaries(t *testing.T) {
	p, _ := newPlanner(t)

	require.Equal(t, SprintSummary{Total: 4, Completed: 2}, p.SprintSummary())
	require.Equal(t, EpicSummary{Total: 5, Done: 1, AverageProgress: 51}, p.EpicSummary())

	timeline, err := p.Timeline(p.Sprints()[0])
	require.NoError(t, err)
	require.Equal(t, "1w 4d", timeline)
}

func TestCreateSprint(t *testing.T) {
	p, tracer := newPlanner(t)

	s, err := p.CreateSprint(context.Background(), domain.SprintForm{
		Name:  " Sprint 5 ",
		Goals: "Stabilise",
		Start: "2024-03-04",
		End:   "2024-03-15",
	})
	require.NoError(t, err)
	require.NotEmpty(t, s.ID)
	require.Equal(t, "Sprint 5", s.Name)
	require.False(t, s.Completed)
	require.Len(t, p.Sprints(), 5)

	crumbs := tracer.Breadcrumbs()
	require.Len(t, crumbs, 1)
	require.Equal(t, "sprint.create", crumbs[0].Category)
	require.Equal(t, s.ID, crumbs[0].Data["sprintId"])
}

func TestCreateSprintValidation(t *testing.T) {
	p, tracer := newPlanner(t)

	_, err := p.CreateSprint(context.Background(), domain.SprintForm{Name: "S", Goals: "g", Start: "2024-03-15", End: "2024-03-01"})
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	require.Equal(t, "Must be after start date", verr.Fields["end"])
	require.Len(t, p.Sprints(), 4)
	require.Empty(t, tracer.Breadcrumbs())
}

func TestToggleSprint(t *testing.T) {
	p, _ := newPlanner(t)

	s, ok := p.ToggleSprint("s3")
	require.True(t, ok)
	require.True(t, s.Completed)
	require.Equal(t, 3, p.SprintSummary().Completed)

	s, ok = p.ToggleSprint("s3")
	require.True(t, ok)
	require.False(t, s.Completed)

	_, ok = p.ToggleSprint("missing")
	require.False(t, ok)
}

func TestCreateEpic(t *testing.T) {
	p, tracer := newPlanner(t)

	e, err := p.CreateEpic(context.Background(), domain.EpicForm{
		Name:     "Billing",
		Owner:    "AK",
		DueDate:  "2024-09-01",
		Progress: -5,
	})
	require.NoError(t, err)
	require.Equal(t, domain.EpicPlanning, e.Status)
	require.Equal(t, domain.PriorityMedium, e.Priority)
	require.Equal(t, 0, e.Progress)
	require.Equal(t, 0, e.LinkedItems)
	require.Len(t, p.Epics(), 6)
	require.Equal(t, EpicSummary{Total: 6, Done: 1, AverageProgress: 43}, p.EpicSummary())

	crumbs := tracer.Breadcrumbs()
	require.Len(t, crumbs, 1)
	require.Equal(t, "epic.create", crumbs[0].Category)

	_, err = p.CreateEpic(context.Background(), domain.EpicForm{Name: "x", Owner: "y", DueDate: "soon"})
	require.ErrorIs(t, err, domain.ErrValidation)
}
