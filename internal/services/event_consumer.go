package services

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	goRedis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/moodlog/backend/domain"
	"github.com/moodlog/backend/pkg/logger"
	"github.com/moodlog/backend/usecase/diarylink"
)

const (
	diaryEventStream = "challenge:diary:events"
	consumerGroup    = "challenge-core"
	readBlock        = 5 * time.Second
	readCount        = 16
)

// EventConsumer pulls diary lifecycle events off a Redis stream and feeds
// them to the diary-link handler. The diary service publishes one JSON
// payload per entry under the "payload" field.
type EventConsumer struct {
	client   *goRedis.Client
	handler  *diarylink.Handler
	logger   *zap.Logger
	consumer string

	done chan struct{}
	wg   sync.WaitGroup
}

func NewEventConsumer(client *goRedis.Client, handler *diarylink.Handler, consumer string, logger *zap.Logger) *EventConsumer {
	if consumer == "" {
		consumer = "worker-1"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventConsumer{
		client:   client,
		handler:  handler,
		logger:   logger,
		consumer: consumer,
		done:     make(chan struct{}),
	}
}

// Start creates the consumer group if needed and begins the read loop.
func (c *EventConsumer) Start(ctx context.Context) {
	err := c.client.XGroupCreateMkStream(ctx, diaryEventStream, consumerGroup, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		c.logger.Error("failed to create consumer group", zap.Error(err))
	}

	c.wg.Add(1)
	go c.loop()
	c.logger.Info("diary event consumer started",
		zap.String("stream", diaryEventStream),
		zap.String("consumer", c.consumer))
}

// Stop ends the read loop and waits for the in-flight batch.
func (c *EventConsumer) Stop(ctx context.Context) {
	close(c.done)
	finished := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-ctx.Done():
	}
	c.logger.Info("diary event consumer stopped")
}

func (c *EventConsumer) loop() {
	defer c.wg.Done()
	ctx := context.Background()

	for {
		select {
		case <-c.done:
			return
		default:
		}

		streams, err := c.client.XReadGroup(ctx, &goRedis.XReadGroupArgs{
			Group:    consumerGroup,
			Consumer: c.consumer,
			Streams:  []string{diaryEventStream, ">"},
			Count:    readCount,
			Block:    readBlock,
		}).Result()
		if err != nil {
			if err == goRedis.Nil {
				continue
			}
			c.logger.Warn("stream read failed", zap.Error(err))
			select {
			case <-c.done:
				return
			case <-time.After(readBlock):
			}
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				c.dispatch(ctx, msg)
				if err := c.client.XAck(ctx, diaryEventStream, consumerGroup, msg.ID).Err(); err != nil {
					c.logger.Warn("failed to ack event", zap.String("id", msg.ID), zap.Error(err))
				}
			}
		}
	}
}

func (c *EventConsumer) dispatch(ctx context.Context, msg goRedis.XMessage) {
	ctx = logger.ContextWithEventID(ctx, msg.ID)

	raw, ok := msg.Values["payload"].(string)
	if !ok {
		c.logger.Warn("diary event without payload", zap.String("id", msg.ID))
		return
	}

	var ev domain.DiaryEvent
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		c.logger.Warn("malformed diary event", zap.String("id", msg.ID), zap.Error(err))
		return
	}

	switch ev.Op {
	case domain.DiaryCreated:
		signal := c.handler.DiaryCreated(ctx, ev)
		if signal.Completed {
			c.logger.Info("challenge completed",
				zap.String("participation_id", ev.ParticipationID),
				zap.String("title", signal.Title))
		}
	case domain.DiaryDeleted:
		c.handler.DiaryDeleted(ctx, ev)
	case domain.DiaryRelinked:
		signal := c.handler.DiaryRelinked(ctx, ev)
		if signal.Completed {
			c.logger.Info("challenge completed",
				zap.String("participation_id", ev.NewParticipationID),
				zap.String("title", signal.Title))
		}
	default:
		c.logger.Warn("unknown diary event op",
			zap.String("id", msg.ID), zap.String("op", string(ev.Op)))
	}
}
