package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"

	"github.com/thinkocapo/board/domain"
)

const maxBackoff = 5 * time.Second

type loadConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	Connections  int           `mapstructure:"connections"`
	Movers       int           `mapstructure:"movers"`
	Duration     time.Duration `mapstructure:"duration"`
	MoveInterval time.Duration `mapstructure:"move_interval"`
}

type loadStats struct {
	events     atomic.Uint64
	attempts   atomic.Uint64
	failures   atomic.Uint64
	moves      atomic.Uint64
	moveErrors atomic.Uint64
}

func (s *loadStats) failureRate() float64 {
	attempts := s.attempts.Load()
	if attempts == 0 {
		return 0
	}
	return float64(s.failures.Load()) / float64(attempts)
}

func (s *loadStats) String() string {
	return fmt.Sprintf("events_received=%d connection_attempts=%d connection_failures=%d moves_applied=%d move_errors=%d",
		s.events.Load(), s.attempts.Load(), s.failures.Load(), s.moves.Load(), s.moveErrors.Load())
}

// run holds cfg.Connections streams open and drives moves until ctx ends.
func run(ctx context.Context, client *http.Client, cfg loadConfig) *loadStats {
	stats := &loadStats{}
	base := strings.TrimRight(cfg.BaseURL, "/")

	var wg sync.WaitGroup
	for n := 0; n < cfg.Connections; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			streamLoop(ctx, client, base+"/api/stream", stats)
		}()
	}
	for i := 0; i < cfg.Movers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			moveLoop(ctx, client, base, cfg.MoveInterval, i, stats)
		}()
	}
	wg.Wait()
	return stats
}

func streamLoop(ctx context.Context, client *http.Client, url string, stats *loadStats) {
	backoff := time.Second
	for ctx.Err() == nil {
		stats.attempts.Add(1)
		err := streamOnce(ctx, client, url, func() { stats.events.Add(1) })
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			backoff = time.Second
		}
		stats.failures.Add(1)
		if !sleepCtx(ctx, backoff) {
			return
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

func streamOnce(ctx context.Context, client *http.Client, url string, onFrame func()) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stream status %d", resp.StatusCode)
	}
	return countFrames(resp.Body, onFrame)
}

// countFrames calls onFrame for every data line until r ends.
func countFrames(r io.Reader, onFrame func()) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)
	for scanner.Scan() {
		if strings.HasPrefix(scanner.Text(), "data:") {
			onFrame()
		}
	}
	return scanner.Err()
}

func moveLoop(ctx context.Context, client *http.Client, base string, interval time.Duration, worker int, stats *loadStats) {
	for n := worker; ctx.Err() == nil; n++ {
		if err := moveOnce(ctx, client, base, n); err != nil {
			if ctx.Err() != nil {
				return
			}
			stats.moveErrors.Add(1)
		} else {
			stats.moves.Add(1)
		}
		if !sleepCtx(ctx, interval) {
			return
		}
	}
}

type moveBody struct {
	From domain.ColumnID `json:"from"`
	To   domain.ColumnID `json:"to"`
}

// moveOnce advances the n-th task on the board to the next column.
func moveOnce(ctx context.Context, client *http.Client, base string, n int) error {
	view, err := fetchBoard(ctx, client, base)
	if err != nil {
		return err
	}
	taskID, from, to, ok := pickMove(view, n)
	if !ok {
		return fmt.Errorf("board has no tasks")
	}

	body, err := sonic.Marshal(moveBody{From: from, To: to})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/api/tasks/"+taskID+"/move", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("move status %d", resp.StatusCode)
	}
	return nil
}

func fetchBoard(ctx context.Context, client *http.Client, base string) (domain.BoardView, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/api/board", nil)
	if err != nil {
		return domain.BoardView{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return domain.BoardView{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return domain.BoardView{}, fmt.Errorf("board status %d", resp.StatusCode)
	}
	var view domain.BoardView
	if err := sonic.ConfigStd.NewDecoder(resp.Body).Decode(&view); err != nil {
		return domain.BoardView{}, err
	}
	return view, nil
}

func pickMove(view domain.BoardView, n int) (string, domain.ColumnID, domain.ColumnID, bool) {
	type slot struct {
		id  string
		col int
	}
	var slots []slot
	for i, c := range view.Columns {
		for _, t := range c.Tasks {
			slots = append(slots, slot{id: t.ID, col: i})
		}
	}
	if len(slots) == 0 {
		return "", "", "", false
	}
	s := slots[n%len(slots)]
	next := (s.col + 1) % len(view.Columns)
	return s.id, view.Columns[s.col].ID, view.Columns[next].ID, true
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
