// Package enrollment creates and ends participations: joining a catalog
// challenge, opening a travel log, and quitting early.
package enrollment

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/moodlog/backend/domain"
	"github.com/moodlog/backend/pkg/dateutil"
	"github.com/moodlog/backend/repository"
)

// TravelLogRequest carries the user-supplied shape of a travel log. Departure
// and return dates bound the window; both days count toward the duration.
type TravelLogRequest struct {
	LogName       string    `json:"log_name,omitempty"`
	Destinations  string    `json:"destinations"` // JSON array of {name, country, lat, lon}
	DepartureDate time.Time `json:"departure_date"`
	ReturnDate    time.Time `json:"return_date"`
	Timezone      string    `json:"timezone,omitempty"`
}

type destination struct {
	Name string `json:"name"`
}

type Service struct {
	participations repository.ParticipationRepository
	templates      repository.TemplateCatalog
	logger         *zap.Logger
	now            func() time.Time
}

func New(participations repository.ParticipationRepository, templates repository.TemplateCatalog, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		participations: participations,
		templates:      templates,
		logger:         logger,
		now:            time.Now,
	}
}

// WithClock overrides the wall clock. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Join starts an ACTIVE participation in a catalog challenge. A user holds at
// most one ACTIVE participation per challenge; the end date for NORMAL
// templates is fixed at creation and never recomputed.
func (s *Service) Join(ctx context.Context, userID, challengeID string) (*domain.Participation, error) {
	tpl, err := s.templates.GetByID(ctx, challengeID)
	if err != nil {
		return nil, err
	}

	existing, err := s.participations.FindActiveByUserAndChallenge(ctx, userID, challengeID)
	if err != nil && !domain.IsDomainError(err, domain.ErrCodeNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrAlreadyParticipating
	}

	now := s.now()
	p := &domain.Participation{
		ChallengeID: challengeID,
		UserID:      userID,
		Status:      domain.StatusActive,
		StartedAt:   now,
	}
	p.SetEndDate(tpl)

	created, err := s.participations.Create(ctx, p)
	if err != nil {
		return nil, err
	}

	s.logger.Info("challenge joined",
		zap.String("participation_id", created.ID),
		zap.String("user_id", userID),
		zap.String("challenge", tpl.Title))
	return created, nil
}

// CreateTravelLog opens a travel-log participation under the shared TRAVEL
// template. The window and duration come from the request, not the template,
// and are never recomputed afterwards.
func (s *Service) CreateTravelLog(ctx context.Context, userID string, req TravelLogRequest) (*domain.Participation, error) {
	if err := validateTravelLog(req); err != nil {
		return nil, err
	}

	tpl, err := s.templates.FindActiveByType(ctx, domain.TypeTravel)
	if err != nil {
		return nil, err
	}

	logName := req.LogName
	if logName == "" {
		logName = firstDestinationName(req.Destinations)
	}

	duration := dateutil.DaysBetween(req.DepartureDate, req.ReturnDate)
	p := &domain.Participation{
		ChallengeID:  tpl.ID,
		UserID:       userID,
		Status:       domain.StatusActive,
		StartedAt:    dateutil.Day(req.DepartureDate),
		EndedAt:      dateutil.Day(req.ReturnDate),
		DurationDays: &duration,
		LogName:      logName,
		Destinations: req.Destinations,
		Timezone:     req.Timezone,
	}

	created, err := s.participations.Create(ctx, p)
	if err != nil {
		return nil, err
	}

	s.logger.Info("travel log created",
		zap.String("participation_id", created.ID),
		zap.String("user_id", userID),
		zap.String("log_name", logName),
		zap.Int("duration_days", duration))
	return created, nil
}

// History lists a user's participations, newest first, optionally narrowed
// to a status set. An empty status set returns every status.
func (s *Service) History(ctx context.Context, userID string, statuses []domain.Status, limit, offset int) ([]domain.Participation, error) {
	return s.participations.List(ctx, repository.ParticipationFilter{
		UserID:   userID,
		Statuses: statuses,
		Limit:    limit,
		Offset:   offset,
	})
}

// Quit fails an ACTIVE participation with reason USER_QUIT. Finalized
// participations cannot be quit; the transition error surfaces as-is.
func (s *Service) Quit(ctx context.Context, userID, participationID string) error {
	p, err := s.participations.GetByID(ctx, participationID)
	if err != nil {
		return err
	}
	if p.UserID != userID {
		return domain.ErrParticipationNotFound
	}

	now := s.now()
	if err := p.MarkFailed(domain.FailureUserQuit, now, now); err != nil {
		return err
	}
	if err := s.participations.CompareAndSave(ctx, p); err != nil {
		return err
	}

	s.logger.Info("participation quit",
		zap.String("participation_id", participationID),
		zap.String("user_id", userID))
	return nil
}

func validateTravelLog(req TravelLogRequest) error {
	if req.DepartureDate.IsZero() || req.ReturnDate.IsZero() {
		return domain.NewError(domain.ErrCodeInvalid, "departure and return dates are required")
	}
	if dateutil.Before(req.ReturnDate, req.DepartureDate) {
		return domain.NewError(domain.ErrCodeInvalid, "return date precedes departure date")
	}

	var dests []destination
	if err := json.Unmarshal([]byte(req.Destinations), &dests); err != nil || len(dests) == 0 {
		return domain.NewError(domain.ErrCodeInvalid, "destinations must be a non-empty JSON array")
	}
	return nil
}

func firstDestinationName(destinations string) string {
	var dests []destination
	if err := json.Unmarshal([]byte(destinations), &dests); err != nil || len(dests) == 0 {
		return ""
	}
	return dests[0].Name
}
