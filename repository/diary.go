package repository

import (
	"context"
	"time"
)

// DiaryCollaborator supplies the diary-date facts progress recomputation
// needs. Diary content itself (storage, encryption, images) lives in the
// diary subsystem; this core only ever asks about dates.
type DiaryCollaborator interface {
	// MostRecentDate returns the date of the newest diary linked to the
	// participation, or nil when none remain.
	MostRecentDate(ctx context.Context, participationID string) (*time.Time, error)

	// ExistsOnDate reports whether a diary other than excludeDiaryID exists
	// for the participation on the given calendar date. Used to keep
	// same-day duplicates from under- or over-counting progress.
	ExistsOnDate(ctx context.Context, participationID string, date time.Time, excludeDiaryID string) (bool, error)
}
