package main

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/thinkocapo/board/api"
	"github.com/thinkocapo/board/board"
	"github.com/thinkocapo/board/domain"
	"github.com/thinkocapo/board/observability"
	"github.com/thinkocapo/board/planning"
)

func TestCountFrames(t *testing.T) {
	input := "data: {}\n\n: keepalive\n\ndata: {\"version\":2}\n\n"
	var frames int
	if err := countFrames(strings.NewReader(input), func() { frames++ }); err != nil {
		t.Fatalf("count: %v", err)
	}
	if frames != 2 {
		t.Fatalf("expected 2 frames, got %d", frames)
	}
}

func TestPickMoveCyclesColumns(t *testing.T) {
	view := domain.SeedBoard().View(1)

	id, from, to, ok := pickMove(view, 0)
	if !ok || id != "t1" || from != domain.ColumnBacklog || to != domain.ColumnInProgress {
		t.Fatalf("unexpected first move: %s %s → %s", id, from, to)
	}
	id, from, to, _ = pickMove(view, 7)
	if id != "t8" || from != domain.ColumnDone || to != domain.ColumnBacklog {
		t.Fatalf("expected wrap to backlog: %s %s → %s", id, from, to)
	}
	if _, _, _, ok := pickMove(domain.BoardView{}, 0); ok {
		t.Fatal("empty board has no moves")
	}
}

func TestRunAgainstBoardService(t *testing.T) {
	logger := log.New()
	logger.SetOutput(io.Discard)

	svc := board.NewService(board.NewStore(domain.SeedBoard()), observability.Nop{}, board.Options{Logger: logger})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e := echo.New()
	api.Register(ctx, e, api.Deps{
		Service: svc,
		Planner: planning.NewPlanner(observability.Nop{}, logger, nil, nil),
		Logger:  logger,
	})
	srv := httptest.NewServer(e)
	defer srv.Close()

	runCtx, stop := context.WithTimeout(ctx, 500*time.Millisecond)
	defer stop()
	stats := run(runCtx, srv.Client(), loadConfig{
		BaseURL:      srv.URL,
		Connections:  2,
		Movers:       1,
		MoveInterval: 20 * time.Millisecond,
	})

	if stats.moves.Load() == 0 {
		t.Fatalf("no moves applied: %s", stats)
	}
	// one snapshot per connection plus at least one update
	if stats.events.Load() < 3 {
		t.Fatalf("expected stream frames, got %s", stats)
	}
	if stats.moveErrors.Load() != 0 {
		t.Fatalf("unexpected move errors: %s", stats)
	}
	if svc.Store().View().TotalItems != 8 {
		t.Fatalf("moves lost tasks")
	}
}
