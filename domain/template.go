package domain

import "time"

// ChallengeType distinguishes the participation shapes a template can produce.
type ChallengeType string

const (
	TypeNormal ChallengeType = "NORMAL"
	TypeTravel ChallengeType = "TRAVEL"
	TypeGuide  ChallengeType = "GUIDE"
)

// ChallengeTemplate is the shared catalog entry a participation is created from.
// It is read-only for this service; the catalog itself is maintained elsewhere.
type ChallengeTemplate struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Description  string        `json:"description,omitempty"`
	Type         ChallengeType `json:"type"`
	DurationDays *int          `json:"duration_days,omitempty"` // nil for TRAVEL templates
	Daily        bool          `json:"daily"`                   // one qualifying day required per calendar day
	Active       bool          `json:"active"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// EffectiveDuration resolves the duration governing a participation:
// the participation's own value for TRAVEL logs, the template's otherwise.
// Returns 0 when neither is set (misconfigured template).
func (t *ChallengeTemplate) EffectiveDuration(p *Participation) int {
	if t != nil && t.Type == TypeTravel {
		if p != nil && p.DurationDays != nil {
			return *p.DurationDays
		}
		return 0
	}
	if t != nil && t.DurationDays != nil {
		return *t.DurationDays
	}
	return 0
}
