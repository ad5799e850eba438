package team

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medagenda/medagenda/internal/platform/apperr"
	"github.com/medagenda/medagenda/internal/platform/codegen"
	"github.com/medagenda/medagenda/internal/platform/telemetry"
)

const maxCodeAttempts = 5

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// CodeGenerator produces the two code shapes.
type CodeGenerator interface {
	JoinCode() (string, error)
	InviteCode() (string, error)
}

// Notifier delivers a freshly created code to its invitee.
type Notifier interface {
	SendJoinCode(ctx context.Context, to, name, code string, invite bool, uses int, expiresAt *time.Time) error
}

// Identity is the caller identity used as a fallback when redeeming.
type Identity struct {
	Name  string
	Email string
}

type Config struct {
	JoinCodeTTL        time.Duration
	InviteTTL          time.Duration
	DefaultUses        int
	DoctorTeamCodes    []string
	DoctorTeamRedirect string
	SecretaryRedirect  string
}

type Service struct {
	repo     Repository
	codes    CodeGenerator
	cfg      Config
	notifier Notifier
	logger   zerolog.Logger
	metrics  *telemetry.Metrics
	now      func() time.Time
}

type Option func(*Service)

func WithNotifier(n Notifier) Option { return func(s *Service) { s.notifier = n } }

func WithLogger(l zerolog.Logger) Option { return func(s *Service) { s.logger = l } }

func WithMetrics(m *telemetry.Metrics) Option { return func(s *Service) { s.metrics = m } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func NewService(repo Repository, codes CodeGenerator, cfg Config, opts ...Option) *Service {
	if cfg.DefaultUses < 1 {
		cfg.DefaultUses = 1
	}
	s := &Service{
		repo:   repo,
		codes:  codes,
		cfg:    cfg,
		logger: zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func validateInvitee(name, email string) (string, string, error) {
	name, email = strings.TrimSpace(name), strings.TrimSpace(email)
	if name == "" || email == "" {
		return "", "", apperr.New(apperr.Validation, "full name and email are required")
	}
	if !emailPattern.MatchString(email) {
		return "", "", apperr.New(apperr.Validation, "invalid email address")
	}
	return name, email, nil
}

// store generates a code with gen and stores c, regenerating on collision.
func (s *Service) store(ctx context.Context, c *JoinCode, gen func() (string, error)) error {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := gen()
		if err != nil {
			return err
		}
		c.Code = code
		err = s.repo.CreateCode(ctx, c)
		if errors.Is(err, ErrCodeTaken) {
			s.logger.Debug().Int("attempt", attempt+1).Msg("join code collision, regenerating")
			continue
		}
		return err
	}
	return ErrCodeTaken
}

func (s *Service) notify(ctx context.Context, c *JoinCode) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.SendJoinCode(ctx, c.InviteeEmail, c.InviteeName, c.Code, c.Kind == KindInvite, c.UsesLeft, c.ExpiresAt)
	if err != nil {
		s.logger.Warn().Err(err).Str("code_id", c.ID).Msg("failed to email join code")
	}
}

// Create issues an 8-character join code for the named secretary.
func (s *Service) Create(ctx context.Context, req CreateCodeRequest) (*JoinCode, error) {
	name, email, err := validateInvitee(req.FullName, req.Email)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	expires := now.Add(s.cfg.JoinCodeTTL)
	c := &JoinCode{
		ID:           uuid.NewString(),
		Kind:         KindJoin,
		ExpiresAt:    &expires,
		UsesLeft:     s.cfg.DefaultUses,
		MaxUses:      s.cfg.DefaultUses,
		Status:       StatusActive,
		InviteeName:  name,
		InviteeEmail: email,
		CreatedAt:    now,
	}
	if err := s.store(ctx, c, s.codes.JoinCode); err != nil {
		return nil, err
	}

	s.metrics.CodeCreated(string(KindJoin))
	s.logger.Info().Str("code_id", c.ID).Msg("join code created")
	s.notify(ctx, c)
	return c, nil
}

// CreateInvite issues a 12-character invite code with caller-chosen uses and
// expiry.
func (s *Service) CreateInvite(ctx context.Context, req CreateInviteRequest) (*Invite, error) {
	name, email, err := validateInvitee(req.SecretaryFullName, req.SecretaryCorporateEmail)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	uses := s.cfg.DefaultUses
	if req.MaxUses != nil {
		if *req.MaxUses < 1 {
			return nil, apperr.New(apperr.Validation, "maxUses must be at least 1")
		}
		uses = *req.MaxUses
	}
	expires := now.Add(s.cfg.InviteTTL)
	if req.ExpiresAt != nil {
		if !req.ExpiresAt.After(now) {
			return nil, apperr.New(apperr.Validation, "expiresAt must be in the future")
		}
		expires = req.ExpiresAt.UTC()
	}

	c := &JoinCode{
		ID:           uuid.NewString(),
		Kind:         KindInvite,
		ExpiresAt:    &expires,
		UsesLeft:     uses,
		MaxUses:      uses,
		Status:       StatusActive,
		InviteeName:  name,
		InviteeEmail: email,
		CreatedAt:    now,
	}
	if err := s.store(ctx, c, s.codes.InviteCode); err != nil {
		return nil, err
	}

	s.metrics.CodeCreated(string(KindInvite))
	s.logger.Info().Str("code_id", c.ID).Int("uses", uses).Msg("invite code created")
	s.notify(ctx, c)
	return inviteFromCode(c, now), nil
}

// List returns every member and every code, codes most-recent-first with
// their effective status.
func (s *Service) List(ctx context.Context) (*Snapshot, error) {
	members, err := s.repo.ListMembers(ctx)
	if err != nil {
		return nil, err
	}
	codes, err := s.repo.ListCodes(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for i := range codes {
		codes[i].Status = codes[i].EffectiveStatus(now)
	}
	if members == nil {
		members = []Member{}
	}
	if codes == nil {
		codes = []JoinCode{}
	}
	return &Snapshot{Members: members, Codes: codes}, nil
}

// Revoke is idempotent.
func (s *Service) Revoke(ctx context.Context, idOrCode string) error {
	idOrCode = strings.TrimSpace(idOrCode)
	if idOrCode == "" {
		return nil
	}
	return s.repo.RevokeCode(ctx, idOrCode)
}

// RemoveMember is idempotent.
func (s *Service) RemoveMember(ctx context.Context, userID string) error {
	return s.repo.RemoveMember(ctx, strings.TrimSpace(userID))
}

func (s *Service) isDoctorTeamCode(code string) bool {
	for _, c := range s.cfg.DoctorTeamCodes {
		if c == code {
			return true
		}
	}
	return false
}

// Join redeems a code for the caller. Doctor team codes only redirect; any
// other code must exist in the store and is consumed atomically.
func (s *Service) Join(ctx context.Context, req JoinRequest, caller Identity) (*JoinResult, error) {
	code := codegen.Normalize(req.Code)
	if code == "" {
		s.metrics.JoinAttempt("invalid_request")
		return nil, apperr.New(apperr.Validation, "join code is required")
	}
	if !req.AcceptTerms {
		s.metrics.JoinAttempt("invalid_request")
		return nil, apperr.New(apperr.Validation, "you must accept the terms to join the team")
	}

	if s.isDoctorTeamCode(code) {
		s.metrics.JoinAttempt("doctor_team")
		return &JoinResult{RedirectTo: s.cfg.DoctorTeamRedirect}, nil
	}

	stored, err := s.repo.GetCode(ctx, code)
	if errors.Is(err, ErrNotFound) {
		s.metrics.JoinAttempt("unknown_code")
		return nil, apperr.New(apperr.Validation, "invalid join code")
	}
	if err != nil {
		return nil, err
	}

	name := firstNonEmpty(req.FullName, caller.Name, stored.InviteeName)
	email := firstNonEmpty(req.Email, caller.Email, stored.InviteeEmail)
	name, email, err = validateInvitee(name, email)
	if err != nil {
		s.metrics.JoinAttempt("invalid_request")
		return nil, err
	}

	now := s.now().UTC()
	member := Member{
		ID:       uuid.NewString(),
		FullName: name,
		Email:    email,
		Phone:    strings.TrimSpace(req.Phone),
		JoinedAt: now,
	}
	redeemed, err := s.repo.Redeem(ctx, code, member, now)
	if err != nil {
		if msg, ok := redeemMessage(err); ok {
			s.metrics.JoinAttempt("rejected")
			return nil, apperr.Wrap(apperr.Validation, msg, err)
		}
		return nil, err
	}

	s.metrics.JoinAttempt("redeemed")
	s.logger.Info().Str("code_id", redeemed.ID).Str("member_id", member.ID).Int("uses_left", redeemed.UsesLeft).Msg("join code redeemed")
	return &JoinResult{RedirectTo: s.cfg.SecretaryRedirect}, nil
}

func redeemMessage(err error) (string, bool) {
	switch {
	case errors.Is(err, ErrNotFound):
		return "invalid join code", true
	case errors.Is(err, ErrCodeRevoked):
		return "this join code has been revoked", true
	case errors.Is(err, ErrCodeExpired):
		return "this join code has expired", true
	case errors.Is(err, ErrCodeExhausted):
		return "this join code has no uses left", true
	}
	return "", false
}

// SweepExpired persists expired and exhausted statuses. Reads never depend on
// it having run.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	n, err := s.repo.MarkExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	s.metrics.CodesSwept(n)
	return n, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
