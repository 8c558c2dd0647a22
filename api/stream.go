package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/thinkocapo/board/storage"
)

const sseDataPrefix = "data: "

// updateBroker hands the latest board payload to every open stream. A slow
// reader only ever sees the newest payload.
type updateBroker struct {
	mu   sync.Mutex
	subs map[chan []byte]struct{}
}

func newUpdateBroker() *updateBroker {
	return &updateBroker{subs: make(map[chan []byte]struct{})}
}

func (b *updateBroker) subscribe() chan []byte {
	ch := make(chan []byte, 1)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *updateBroker) unsubscribe(ch chan []byte) {
	b.mu.Lock()
	delete(b.subs, ch)
	b.mu.Unlock()
}

func (b *updateBroker) broadcast(data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- data:
		default:
		}
	}
}

// feedFromStore broadcasts the board after every local change.
func (b *updateBroker) feedFromStore(ctx context.Context, src storage.BoardSource) {
	updates, stop := src.Subscribe()
	defer stop()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-updates:
			if !ok {
				return
			}
			data, err := sonic.Marshal(src.View())
			if err != nil {
				log.WithError(err).Error("failed to encode board update")
				continue
			}
			b.broadcast(data)
		}
	}
}

func streamBoard(src storage.BoardSource, broker *updateBroker, keepalive time.Duration) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
		c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
		c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
		c.Response().Header().Set("X-Accel-Buffering", "no")
		flusher, ok := c.Response().Writer.(http.Flusher)
		if !ok {
			return c.String(http.StatusInternalServerError, "stream unsupported")
		}

		ch := broker.subscribe()
		defer broker.unsubscribe(ch)

		data, err := sonic.Marshal(src.View())
		if err != nil {
			c.Logger().Error(err)
			return err
		}
		if err := writeFrame(c, flusher, data); err != nil {
			return err
		}

		var tick <-chan time.Time
		if keepalive > 0 {
			ticker := time.NewTicker(keepalive)
			defer ticker.Stop()
			tick = ticker.C
		}

		ctx := c.Request().Context()
		for {
			select {
			case <-ctx.Done():
				return nil
			case data := <-ch:
				if err := writeFrame(c, flusher, data); err != nil {
					return err
				}
			case <-tick:
				if _, err := c.Response().Write([]byte(": keepalive\n\n")); err != nil {
					c.Logger().Error(err)
					return err
				}
				flusher.Flush()
			}
		}
	}
}

func writeFrame(c echo.Context, flusher http.Flusher, data []byte) error {
	frame := make([]byte, 0, len(sseDataPrefix)+len(data)+2)
	frame = append(frame, sseDataPrefix...)
	frame = append(frame, data...)
	frame = append(frame, '\n', '\n')
	if _, err := c.Response().Write(frame); err != nil {
		c.Logger().Error(err)
		return err
	}
	flusher.Flush()
	return nil
}
