package api

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/thinkocapo/board/board"
	"github.com/thinkocapo/board/domain"
	"github.com/thinkocapo/board/observability"
	"github.com/thinkocapo/board/planning"
	"github.com/thinkocapo/board/storage"
)

const maxBodySize = 64 << 10

// Deps are the collaborators the routes need. Hook, Redis, Cache, Publisher
// and Deduper may be nil.
type Deps struct {
	Service   *board.Service
	Planner   *planning.Planner
	Hook      observability.Hook
	Cache     *storage.MetricsCache
	Publisher *storage.Publisher
	Deduper   *MoveDeduper
	Redis     *redis.Client
	Workspace string
	Keepalive time.Duration
	Queue     QueueConfig
	Logger    *log.Logger
}

// Register wires up all API routes on the provided Echo instance. Background
// feeds stop when ctx is done.
func Register(ctx context.Context, e *echo.Echo, d Deps) {
	if d.Logger == nil {
		d.Logger = log.StandardLogger()
	}
	if d.Hook == nil {
		d.Hook = observability.Nop{}
	}
	// a snapshot cached by an earlier process describes a board that no
	// longer exists
	d.Cache.Evict(ctx)
	broker := newUpdateBroker()
	store := d.Service.Store()
	queue := newMoveQueue(d.Service, d.Deduper, d.Logger, d.Queue)
	go func() {
		<-ctx.Done()
		queue.close()
	}()
	if d.Redis != nil && d.Publisher != nil {
		go d.Publisher.Run(ctx, store)
		go storage.SubscribeUpdates(ctx, d.Redis, d.Workspace, broker.broadcast)
	} else {
		go broker.feedFromStore(ctx, store)
	}

	e.Use(withHook(d.Hook))

	e.GET("/api/board", getBoard(d.Service))
	e.POST("/api/tasks", postTask(d.Service))
	e.GET("/api/tasks/:id", getTask(d.Service))
	e.GET("/api/selected", getSelected(d.Service))
	e.POST("/api/tasks/:id/move", postMove(d.Service, queue, d.Deduper, d.Logger))
	e.DELETE("/api/tasks/:id", deleteTask(d.Service))
	e.PATCH("/api/tasks/:id/status", patchStatus(d.Service))
	e.POST("/api/metrics", postMetrics(d.Service, d.Cache))
	e.GET("/api/metrics", getMetrics(d.Service, d.Cache))
	e.GET("/api/activity", getActivity(d.Service))
	e.GET("/api/inflight", getInFlight(d.Service))
	e.GET("/api/stream", streamBoard(store, broker, d.Keepalive))

	e.GET("/api/sprints", getSprints(d.Planner))
	e.POST("/api/sprints", postSprint(d.Planner))
	e.POST("/api/sprints/:id/toggle", toggleSprint(d.Planner))
	e.GET("/api/epics", getEpics(d.Planner))
	e.POST("/api/epics", postEpic(d.Planner))

	e.GET("/healthz", healthz(d.Redis))
}

var errInvalidGzip = errors.New("invalid gzip body")

// decodeBody reads a JSON body, rejecting unknown fields. Gzip-encoded bodies
// are inflated first; the size limit applies to the inflated JSON.
func decodeBody(c echo.Context, v any) error {
	req := c.Request()
	var body io.Reader = req.Body
	if hasGzipEncoding(req.Header.Get(echo.HeaderContentEncoding)) {
		gr, err := gzip.NewReader(body)
		if err != nil {
			return fmt.Errorf("%w: %v", errInvalidGzip, err)
		}
		defer gr.Close()
		body = gr
	}
	dec := sonic.ConfigStd.NewDecoder(io.LimitReader(body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		c.Logger().Debugf("decode %s body: %v", c.Path(), err)
		return err
	}
	return nil
}

func hasGzipEncoding(header string) bool {
	for _, enc := range strings.Split(header, ",") {
		if strings.EqualFold(strings.TrimSpace(enc), "gzip") {
			return true
		}
	}
	return false
}

// invalidBody answers a body that could not be decoded.
func invalidBody(c echo.Context, err error) error {
	if errors.Is(err, errInvalidGzip) {
		return badRequest(c, errInvalidGzip.Error())
	}
	return badRequest(c, "invalid body")
}

func healthz(rc *redis.Client) echo.HandlerFunc {
	return func(c echo.Context) error {
		if rc != nil {
			if err := rc.Ping(c.Request().Context()).Err(); err != nil {
				return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "redis unavailable"})
			}
		}
		return c.NoContent(http.StatusOK)
	}
}

type boardResponse struct {
	domain.BoardView
	InFlight []string `json:"inFlight"`
}

func getBoard(svc *board.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, boardResponse{
			BoardView: svc.Store().View(),
			InFlight:  svc.InFlight(),
		})
	}
}

type createTaskRequest struct {
	Column   domain.ColumnID `json:"column"`
	Name     string          `json:"name"`
	Assignee string          `json:"assignee"`
	Priority domain.Priority `json:"priority"`
	Status   domain.Status   `json:"status"`
}

func postTask(svc *board.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req createTaskRequest
		if err := decodeBody(c, &req); err != nil {
			return invalidBody(c, err)
		}
		if req.Column == "" {
			req.Column = domain.ColumnBacklog
		}
		task, err := svc.InsertTask(c.Request().Context(), req.Column, board.NewTask{
			Name:     req.Name,
			Assignee: req.Assignee,
			Priority: req.Priority,
			Status:   req.Status,
		})
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusCreated, task)
	}
}

type taskResponse struct {
	Task   domain.Task     `json:"task"`
	Column domain.ColumnID `json:"column"`
}

// getTask opens the task for viewing. Without a column query the task is
// looked up across the board.
func getTask(svc *board.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Param("id")
		column := domain.ColumnID(c.QueryParam("column"))
		if column == "" {
			_, found, ok := svc.Store().Find(id)
			if !ok {
				return c.JSON(http.StatusNotFound, errorResponse{Error: "task not found", ID: id})
			}
			column = found
		}
		task, ok := svc.OpenTask(c.Request().Context(), id, column)
		if !ok {
			return c.JSON(http.StatusNotFound, errorResponse{Error: "task not found", ID: id})
		}
		return c.JSON(http.StatusOK, taskResponse{Task: task, Column: column})
	}
}

// getSelected returns the current state of the last opened task.
func getSelected(svc *board.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		task, column, ok := svc.Selected()
		if !ok {
			return c.JSON(http.StatusNotFound, errorResponse{Error: "no task selected"})
		}
		return c.JSON(http.StatusOK, taskResponse{Task: task, Column: column})
	}
}

type moveRequest struct {
	From domain.ColumnID `json:"from"`
	To   domain.ColumnID `json:"to"`
}

func (r moveRequest) missing() map[string]string {
	fields := map[string]string{}
	if r.From == "" {
		fields["from"] = "Required"
	}
	if r.To == "" {
		fields["to"] = "Required"
	}
	return fields
}

type moveResponse struct {
	State    string             `json:"state"`
	Trace    []board.Phase      `json:"trace"`
	PhasesMs map[string]float64 `json:"phasesMs"`
}

type acceptedMoveResponse struct {
	TaskID   string `json:"taskId"`
	Accepted bool   `json:"accepted"`
}

func postMove(svc *board.Service, queue *moveQueue, deduper *MoveDeduper, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics := newMoveRequestMetrics(logger)
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		decodeStart := time.Now()
		var body moveRequest
		if decodeErr := decodeBody(c, &body); decodeErr != nil {
			metrics.SetErrorStage("decode")
			return invalidBody(c, decodeErr)
		}
		metrics.ObserveDecode(time.Since(decodeStart))
		if fields := body.missing(); len(fields) > 0 {
			metrics.SetErrorStage("decode")
			return c.JSON(http.StatusBadRequest, errorResponse{
				Error:  domain.ErrValidation.Error(),
				Fields: fields,
			})
		}

		ctx := c.Request().Context()
		key := c.Request().Header.Get(HeaderIdempotencyKey)
		fresh, dedupErr := deduper.Add(ctx, key)
		if dedupErr != nil {
			metrics.SetErrorStage("idempotency")
			c.Logger().Error(dedupErr)
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: "idempotency check failed"})
		}
		if !fresh {
			metrics.SetReplayed(true)
			return c.JSON(http.StatusOK, acceptedMoveResponse{TaskID: c.Param("id"), Accepted: false})
		}

		req := board.MoveRequest{TaskID: c.Param("id"), From: body.From, To: body.To}
		async, _ := strconv.ParseBool(c.QueryParam("async"))
		metrics.SetAsync(async)
		if async {
			if !queue.tryEnqueue(moveJob{ctx: context.WithoutCancel(ctx), req: req, key: key}) {
				metrics.SetErrorStage("enqueue")
				if rmErr := deduper.Remove(context.WithoutCancel(ctx), key); rmErr != nil {
					logger.WithError(rmErr).Warn("failed to release idempotency key")
				}
				return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "move queue full"})
			}
			return c.JSON(http.StatusAccepted, acceptedMoveResponse{TaskID: req.TaskID, Accepted: true})
		}

		outcome, moveErr := svc.MoveTask(ctx, req)
		metrics.SetOutcome(outcome)
		if moveErr != nil {
			metrics.SetErrorStage(outcome.State.String())
			if rmErr := deduper.Remove(context.WithoutCancel(ctx), key); rmErr != nil {
				logger.WithError(rmErr).Warn("failed to release idempotency key")
			}
			return writeError(c, moveErr)
		}
		return c.JSON(http.StatusOK, moveResponse{
			State:    outcome.State.String(),
			Trace:    outcome.Trace,
			PhasesMs: outcome.PhaseMillis(),
		})
	}
}

func deleteTask(svc *board.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		column := domain.ColumnID(c.QueryParam("column"))
		if column == "" {
			return c.JSON(http.StatusBadRequest, errorResponse{
				Error:  domain.ErrValidation.Error(),
				Fields: map[string]string{"column": "Required"},
			})
		}
		err := svc.DeleteTask(c.Request().Context(), c.Param("id"), column, c.QueryParam("name"))
		if err != nil {
			return writeError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

type statusRequest struct {
	Column domain.ColumnID `json:"column"`
	Status domain.Status   `json:"status"`
}

type statusResponse struct {
	Found bool `json:"found"`
}

func patchStatus(svc *board.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req statusRequest
		if err := decodeBody(c, &req); err != nil {
			return invalidBody(c, err)
		}
		found, err := svc.SetStatus(c.Request().Context(), c.Param("id"), req.Column, req.Status)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, statusResponse{Found: found})
	}
}

func postMetrics(svc *board.Service, cache *storage.MetricsCache) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		snap := svc.ComputeMetrics(ctx)
		cache.Store(ctx, snap)
		return c.JSON(http.StatusOK, snap)
	}
}

// getMetrics returns the last computed snapshot without recomputing it.
func getMetrics(svc *board.Service, cache *storage.MetricsCache) echo.HandlerFunc {
	return func(c echo.Context) error {
		if snap, ok := cache.Load(c.Request().Context()); ok {
			return c.JSON(http.StatusOK, snap)
		}
		if snap, ok := svc.LastMetrics(); ok {
			return c.JSON(http.StatusOK, snap)
		}
		return c.JSON(http.StatusNotFound, errorResponse{Error: "metrics not computed"})
	}
}

func getActivity(svc *board.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, svc.Activity())
	}
}

func getInFlight(svc *board.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, svc.InFlight())
	}
}
