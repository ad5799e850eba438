// Package guard counts failed attempts per client key and refuses further
// attempts once a threshold is reached inside a window.
package guard

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/medagenda/medagenda/internal/platform/apperr"
	"github.com/medagenda/medagenda/internal/platform/telemetry"
)

// Store persists attempt counters. A counter's window starts at its first
// attempt and the counter disappears when the window ends.
type Store interface {
	// Attempt atomically increments the counter for key and reports the new
	// count and the time left in its window.
	Attempt(ctx context.Context, key string, window time.Duration) (count int, retryAfter time.Duration, err error)
	// Release gives back one attempt taken by Attempt.
	Release(ctx context.Context, key string) error
	Reset(ctx context.Context, key string) error
}

type Config struct {
	Scope       string
	MaxAttempts int
	Window      time.Duration
}

type Guard struct {
	store   Store
	cfg     Config
	logger  zerolog.Logger
	metrics *telemetry.Metrics
}

func New(store Store, cfg Config, logger zerolog.Logger, metrics *telemetry.Metrics) *Guard {
	return &Guard{store: store, cfg: cfg, logger: logger, metrics: metrics}
}

func (g *Guard) key(client string) string {
	return "guard:" + g.cfg.Scope + ":" + client
}

// Attempt is a reserved slot in a client's budget. The caller settles it
// with exactly one of Fail, Succeed or Release.
type Attempt struct {
	g      *Guard
	key    string
	client string
	count  int
}

// Reserve takes one attempt from client's budget before the guarded work
// runs, so concurrent requests cannot all slip under the limit. Once the
// budget is spent it returns a TooManyAttempts error. Store failures are
// logged and the request is allowed with a no-op Attempt.
func (g *Guard) Reserve(ctx context.Context, client string) (*Attempt, error) {
	if g == nil {
		return nil, nil
	}
	key := g.key(client)
	count, retryAfter, err := g.store.Attempt(ctx, key, g.cfg.Window)
	if err != nil {
		g.logger.Warn().Err(err).Str("scope", g.cfg.Scope).Msg("attempt guard unavailable, allowing request")
		return nil, nil
	}
	if count <= g.cfg.MaxAttempts {
		return &Attempt{g: g, key: key, client: client, count: count}, nil
	}

	if err := g.store.Release(ctx, key); err != nil {
		g.logger.Warn().Err(err).Str("scope", g.cfg.Scope).Msg("failed to release blocked attempt")
	}
	g.metrics.GuardBlocked(g.cfg.Scope)
	minutes := int(math.Ceil(retryAfter.Minutes()))
	if minutes < 1 {
		minutes = 1
	}
	return nil, apperr.Newf(apperr.TooManyAttempts,
		"too many failed attempts; please try again in %d minute(s)", minutes)
}

// Fail keeps the attempt counted against the client.
func (a *Attempt) Fail(_ context.Context) {
	if a == nil {
		return
	}
	if a.count == a.g.cfg.MaxAttempts {
		a.g.logger.Warn().Str("scope", a.g.cfg.Scope).Str("client", a.client).Int("attempts", a.count).Msg("attempt limit reached")
	}
}

// Succeed clears the client's counter.
func (a *Attempt) Succeed(ctx context.Context) {
	if a == nil {
		return
	}
	if err := a.g.store.Reset(ctx, a.key); err != nil {
		a.g.logger.Warn().Err(err).Str("scope", a.g.cfg.Scope).Msg("failed to reset attempts")
	}
}

// Release returns the attempt for outcomes that are not guesses, such as a
// malformed request or an unknown id.
func (a *Attempt) Release(ctx context.Context) {
	if a == nil {
		return
	}
	if err := a.g.store.Release(ctx, a.key); err != nil {
		a.g.logger.Warn().Err(err).Str("scope", a.g.cfg.Scope).Msg("failed to release attempt")
	}
}

// ClientKey joins the parts identifying an attempt source.
func ClientKey(parts ...string) string {
	return strings.Join(parts, ":")
}
