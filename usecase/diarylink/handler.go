// Package diarylink receives diary lifecycle events from the diary subsystem
// and turns them into progress updates. Progress tracking is best-effort
// relative to the diary write itself: no error escaping this package may fail
// the diary operation that triggered it. Updates that fail on infrastructure
// are parked in the durable event buffer and replayed later.
package diarylink

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/moodlog/backend/domain"
	"github.com/moodlog/backend/usecase"
	"github.com/moodlog/backend/usecase/progress"
)

type Handler struct {
	tracker *progress.Tracker
	buffer  usecase.EventBuffer
	logger  *zap.Logger
}

// NewHandler builds the event entry point. A nil buffer disables buffering;
// failed updates are then only logged.
func NewHandler(tracker *progress.Tracker, buffer usecase.EventBuffer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		tracker: tracker,
		buffer:  buffer,
		logger:  logger,
	}
}

// DiaryCreated records a qualifying day for the linked participation. The
// returned signal lets the caller celebrate a completion in its own response;
// it is the zero value for plain progress updates and for diaries not linked
// to any challenge.
func (h *Handler) DiaryCreated(ctx context.Context, ev domain.DiaryEvent) domain.CompletionSignal {
	if ev.ParticipationID == "" {
		h.logger.Debug("diary not linked to a challenge", zap.String("diary_id", ev.DiaryID))
		return domain.CompletionSignal{}
	}

	signal, err := h.tracker.Record(ctx, ev.ParticipationID, ev.Date, ev.Force)
	if err != nil {
		h.handleFailure(ctx, ev, err)
	}
	return signal
}

// DiaryDeleted removes the qualifying day the deleted diary contributed, if
// it was the last diary on that date.
func (h *Handler) DiaryDeleted(ctx context.Context, ev domain.DiaryEvent) {
	if ev.ParticipationID == "" {
		return
	}
	if err := h.tracker.Remove(ctx, ev.ParticipationID, ev.Date, ev.DiaryID); err != nil {
		h.handleFailure(ctx, ev, err)
	}
}

// DiaryRelinked moves a diary between challenges: the old participation loses
// the day, the new one gains it. The two updates are independent; one side
// failing never rolls back the other. The gaining side checks for another
// diary on the same date first, so relinking a backdated diary onto a day the
// new participation already counted leaves its progress untouched.
func (h *Handler) DiaryRelinked(ctx context.Context, ev domain.DiaryEvent) domain.CompletionSignal {
	if ev.OldParticipationID != "" {
		removal := ev
		removal.Op = domain.DiaryDeleted
		removal.ParticipationID = ev.OldParticipationID
		if err := h.tracker.Remove(ctx, ev.OldParticipationID, ev.Date, ev.DiaryID); err != nil {
			h.handleFailure(ctx, removal, err)
		}
	}

	if ev.NewParticipationID == "" {
		return domain.CompletionSignal{}
	}
	record := ev
	record.Op = domain.DiaryCreated
	record.ParticipationID = ev.NewParticipationID
	signal, err := h.tracker.RecordRelinked(ctx, ev.NewParticipationID, ev.Date, ev.DiaryID)
	if err != nil {
		h.handleFailure(ctx, record, err)
	}
	return signal
}

// handleFailure decides whether a failed update is worth retrying. Domain
// conditions (already finalized, cleaned-up participation) are final; only
// infrastructure failures and persistent write conflicts go to the buffer.
func (h *Handler) handleFailure(ctx context.Context, ev domain.DiaryEvent, err error) {
	if errors.Is(err, domain.ErrParticipationNotActive) || errors.Is(err, domain.ErrParticipationNotFound) {
		h.logger.Warn("progress update not applicable",
			zap.String("diary_id", ev.DiaryID),
			zap.String("participation_id", ev.ParticipationID),
			zap.Error(err))
		return
	}

	h.logger.Error("progress update failed",
		zap.String("diary_id", ev.DiaryID),
		zap.String("participation_id", ev.ParticipationID),
		zap.String("op", string(ev.Op)),
		zap.Error(err))

	if h.buffer == nil {
		return
	}
	if bufErr := h.buffer.BufferDiaryEvent(ctx, ev); bufErr != nil {
		h.logger.Error("failed to buffer diary event",
			zap.String("diary_id", ev.DiaryID),
			zap.Error(bufErr))
	} else {
		h.logger.Warn("diary event buffered for retry",
			zap.String("diary_id", ev.DiaryID),
			zap.String("op", string(ev.Op)))
	}
}
