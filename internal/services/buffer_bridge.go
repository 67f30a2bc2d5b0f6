package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/moodlog/backend/domain"
	"github.com/moodlog/backend/pkg/logger"
	"github.com/moodlog/backend/usecase"
)

// BufferBridge adapts the event processor's queue to the usecase layer's
// EventBuffer port so the diary-link handler can park events without
// depending on the infrastructure package.
type BufferBridge struct {
	processor *EventProcessor
	logger    *zap.Logger
}

var _ usecase.EventBuffer = (*BufferBridge)(nil)

func NewBufferBridge(processor *EventProcessor, logger *zap.Logger) *BufferBridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BufferBridge{processor: processor, logger: logger}
}

func (b *BufferBridge) BufferDiaryEvent(ctx context.Context, ev domain.DiaryEvent) error {
	if b.processor == nil {
		return domain.ErrInvalidPayload
	}
	log := logger.WithEventID(ctx, b.logger)
	if err := b.processor.Enqueue(ev); err != nil {
		log.Error("failed to buffer diary event",
			zap.String("diary_id", ev.DiaryID),
			zap.String("op", string(ev.Op)),
			zap.Error(err))
		return err
	}
	log.Info("diary event buffered for replay",
		zap.String("diary_id", ev.DiaryID),
		zap.String("op", string(ev.Op)))
	return nil
}
