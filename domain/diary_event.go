package domain

import "time"

// DiaryOp identifies a diary lifecycle event relevant to progress tracking.
type DiaryOp string

const (
	DiaryCreated  DiaryOp = "created"
	DiaryDeleted  DiaryOp = "deleted"
	DiaryRelinked DiaryOp = "relinked"
)

// DiaryEvent is the envelope the diary subsystem hands to this service when
// an entry is written, removed, or moved between challenges. The caller
// supplies the acting user explicitly; there is no ambient identity lookup.
type DiaryEvent struct {
	Op      DiaryOp   `json:"op"`
	DiaryID string    `json:"diary_id"`
	UserID  string    `json:"user_id"`
	Date    time.Time `json:"date"`

	// ParticipationID targets created/deleted events. Relink events carry the
	// old and new participation instead; either side may be empty when the
	// diary was unlinked or newly linked.
	ParticipationID    string `json:"participation_id,omitempty"`
	OldParticipationID string `json:"old_participation_id,omitempty"`
	NewParticipationID string `json:"new_participation_id,omitempty"`

	// Force bypasses the once-per-date dedup on record. Administrative use.
	Force bool `json:"force,omitempty"`

	Retries int `json:"retries,omitempty"`
}
