package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/thinkocapo/board/domain"
	"github.com/thinkocapo/board/planning"
)

type sprintView struct {
	domain.Sprint
	Timeline string `json:"timeline,omitempty"`
}

type sprintsResponse struct {
	Sprints []sprintView           `json:"sprints"`
	Summary planning.SprintSummary `json:"summary"`
}

type epicsResponse struct {
	Epics   []domain.Epic        `json:"epics"`
	Summary planning.EpicSummary `json:"summary"`
}

func getSprints(p *planning.Planner) echo.HandlerFunc {
	return func(c echo.Context) error {
		sprints := p.Sprints()
		views := make([]sprintView, 0, len(sprints))
		for _, s := range sprints {
			timeline, _ := p.Timeline(s)
			views = append(views, sprintView{Sprint: s, Timeline: timeline})
		}
		return c.JSON(http.StatusOK, sprintsResponse{Sprints: views, Summary: p.SprintSummary()})
	}
}

func postSprint(p *planning.Planner) echo.HandlerFunc {
	return func(c echo.Context) error {
		var form domain.SprintForm
		if err := decodeBody(c, &form); err != nil {
			return invalidBody(c, err)
		}
		s, err := p.CreateSprint(c.Request().Context(), form)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusCreated, s)
	}
}

func toggleSprint(p *planning.Planner) echo.HandlerFunc {
	return func(c echo.Context) error {
		s, ok := p.ToggleSprint(c.Param("id"))
		if !ok {
			return c.JSON(http.StatusNotFound, errorResponse{Error: "sprint not found", ID: c.Param("id")})
		}
		return c.JSON(http.StatusOK, s)
	}
}

func getEpics(p *planning.Planner) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, epicsResponse{Epics: p.Epics(), Summary: p.EpicSummary()})
	}
}

func postEpic(p *planning.Planner) echo.HandlerFunc {
	return func(c echo.Context) error {
		var form domain.EpicForm
		if err := decodeBody(c, &form); err != nil {
			return invalidBody(c, err)
		}
		e, err := p.CreateEpic(c.Request().Context(), form)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusCreated, e)
	}
}
