package appointment

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/medagenda/medagenda/internal/platform/apperr"
	"github.com/medagenda/medagenda/internal/platform/telemetry"
)

const mismatchMessage = "the name or CPF does not match this appointment; please verify and try again"

type Service struct {
	repo    Repository
	logger  zerolog.Logger
	metrics *telemetry.Metrics
	now     func() time.Time
}

type Option func(*Service)

func WithLogger(l zerolog.Logger) Option { return func(s *Service) { s.logger = l } }

func WithMetrics(m *telemetry.Metrics) Option { return func(s *Service) { s.metrics = m } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{repo: repo, logger: zerolog.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func missingFields(req ConfirmRequest) []string {
	required := []struct {
		name  string
		value string
	}{
		{"fullName", req.FullName},
		{"cpf", req.CPF},
		{"birthDate", req.BirthDate},
		{"motherName", req.MotherName},
		{"sex", req.Sex},
		{"address", req.Address},
	}
	var missing []string
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// GetCheckIn returns the appointment without patient data.
func (s *Service) GetCheckIn(ctx context.Context, id string) (*CheckInSummary, error) {
	a, err := s.repo.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.New(apperr.NotFound, "appointment not found")
	}
	if err != nil {
		return nil, err
	}
	return &CheckInSummary{
		ID:          a.ID,
		Doctor:      a.Doctor,
		ScheduledAt: a.ScheduledAt,
		Location:    a.Location,
		Status:      a.Status,
		CheckInAt:   a.CheckInAt,
	}, nil
}

// ConfirmPresence checks the caller's name and CPF against the appointment
// and, when both match, checks the patient in and records the demographics
// they provided.
func (s *Service) ConfirmPresence(ctx context.Context, id string, req ConfirmRequest) (*Appointment, error) {
	// Unknown ids are reported before payload problems.
	updated, err := s.repo.Update(ctx, id, func(a *Appointment) error {
		if missing := missingFields(req); len(missing) > 0 {
			return apperr.New(apperr.Validation, "missing required fields: "+strings.Join(missing, ", "))
		}

		switch a.Status {
		case StatusCancelled:
			return apperr.New(apperr.Validation, "this appointment was cancelled and cannot be checked in")
		case StatusCompleted:
			return apperr.New(apperr.Validation, "this appointment is already completed")
		}

		if NormalizeName(a.Patient.FullName) != NormalizeName(req.FullName) ||
			NormalizeCPF(a.Patient.CPF) != NormalizeCPF(req.CPF) {
			return apperr.New(apperr.Mismatch, mismatchMessage)
		}

		now := s.now().UTC()
		a.Status = StatusConfirmed
		a.CheckInAt = &now
		a.Patient = Patient{
			FullName:   strings.TrimSpace(req.FullName),
			CPF:        NormalizeCPF(req.CPF),
			BirthDate:  strings.TrimSpace(req.BirthDate),
			MotherName: strings.TrimSpace(req.MotherName),
			Sex:        strings.TrimSpace(req.Sex),
			Email:      strings.TrimSpace(req.Email),
			Address:    strings.TrimSpace(req.Address),
			UpdatedAt:  now,
		}
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		s.metrics.PresenceConfirmation("not_found")
		return nil, apperr.New(apperr.NotFound, "appointment not found")
	}
	if err != nil {
		s.metrics.PresenceConfirmation(apperr.KindOf(err).String())
		return nil, err
	}

	s.metrics.PresenceConfirmation("confirmed")
	s.logger.Info().Str("appointment_id", updated.ID).Msg("patient checked in")
	return updated, nil
}

// Seed stores each appointment, replacing existing ones with the same id.
func (s *Service) Seed(ctx context.Context, appointments []Appointment) (int, error) {
	for i := range appointments {
		if err := s.repo.Save(ctx, &appointments[i]); err != nil {
			return i, err
		}
	}
	return len(appointments), nil
}
