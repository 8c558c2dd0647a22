package storage

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/thinkocapo/board/domain"
)

// BoardSource is the read side of the board store.
type BoardSource interface {
	Subscribe() (<-chan struct{}, func())
	View() domain.BoardView
}

// Publisher fans board changes out on the workspace updates channel.
type Publisher struct {
	redis   *redis.Client
	channel string
}

func NewPublisher(client *redis.Client, workspace string) *Publisher {
	return &Publisher{redis: client, channel: UpdatesChannel(workspace)}
}

// Publish sends view to every subscriber of the updates channel.
func (p *Publisher) Publish(ctx context.Context, view domain.BoardView) error {
	if p == nil || p.redis == nil {
		return nil
	}
	data, err := sonic.Marshal(view)
	if err != nil {
		return err
	}
	return p.redis.Publish(ctx, p.channel, data).Err()
}

// Run publishes the board after every change until ctx is done.
func (p *Publisher) Run(ctx context.Context, src BoardSource) {
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
			view := src.View()
			if err := p.Publish(ctx, view); err != nil {
				log.WithError(err).WithField("version", view.Version).Error("failed to publish board update")
			}
		}
	}
}

// SubscribeUpdates passes every payload published for workspace to deliver,
// resubscribing if the channel closes before ctx is done.
func SubscribeUpdates(ctx context.Context, rc *redis.Client, workspace string, deliver func([]byte)) {
	channel := UpdatesChannel(workspace)
	for {
		sub := rc.Subscribe(ctx, channel)
		ch := sub.Channel()
	recv:
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break recv
				}
				var view domain.BoardView
				if err := sonic.UnmarshalString(msg.Payload, &view); err != nil {
					log.WithError(err).Warn("unable to parse board update")
					continue
				}
				deliver([]byte(msg.Payload))
			}
		}
		_ = sub.Close()
		if ctx.Err() != nil {
			return
		}
		log.Error("board updates channel closed, resubscribing")
		time.Sleep(time.Second)
	}
}
