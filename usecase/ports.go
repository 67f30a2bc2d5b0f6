package usecase

import (
	"context"

	"github.com/moodlog/backend/domain"
)

// EventBuffer abstracts the durable retry queue so use cases stay
// storage-agnostic. Diary events that could not be applied because the
// primary stores were unavailable are parked here and replayed later.
type EventBuffer interface {
	BufferDiaryEvent(ctx context.Context, ev domain.DiaryEvent) error
}
