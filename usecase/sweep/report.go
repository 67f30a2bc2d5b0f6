package sweep

import "time"

// ItemError records one participation the sweep could not finalize. Failures
// are isolated per item; the rest of the run continues.
type ItemError struct {
	ParticipationID string `json:"participation_id"`
	Err             string `json:"error"`
}

// Report aggregates the outcome of one sweep run.
type Report struct {
	RanAt      time.Time   `json:"ran_at"`
	AlreadyRan bool        `json:"already_ran,omitempty"`
	Total      int         `json:"total"`
	Completed  int         `json:"completed"`
	Expired    int         `json:"expired"`
	MissedDay  int         `json:"missed_day"`
	Skipped    int         `json:"skipped"`
	Conflicts  int         `json:"conflicts"`
	Errors     []ItemError `json:"errors,omitempty"`
}

// Succeeded counts participations processed without error.
func (r *Report) Succeeded() int {
	return r.Total - len(r.Errors)
}

// Finalized counts participations moved to a terminal state this run.
func (r *Report) Finalized() int {
	return r.Completed + r.Expired + r.MissedDay
}
