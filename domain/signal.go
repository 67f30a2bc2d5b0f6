package domain

// CompletionSignal tells the caller whether a progress update finished the
// challenge. The zero value means "not completed".
type CompletionSignal struct {
	Completed    bool   `json:"completed"`
	Title        string `json:"title,omitempty"`
	ProgressDays int    `json:"progress_days,omitempty"`
	RequiredDays int    `json:"required_days,omitempty"`
}

// Completed builds a success signal for the given challenge.
func CompletedSignal(title string, progressDays, requiredDays int) CompletionSignal {
	return CompletionSignal{
		Completed:    true,
		Title:        title,
		ProgressDays: progressDays,
		RequiredDays: requiredDays,
	}
}
