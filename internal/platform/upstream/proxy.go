// Package upstream relays API calls the service does not handle itself to the
// external backend API.
package upstream

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/medagenda/medagenda/internal/platform/apperr"
	"github.com/medagenda/medagenda/internal/platform/telemetry"
)

// forwardedHeaders are the only request headers sent upstream.
var forwardedHeaders = []string{echo.HeaderAuthorization, echo.HeaderContentType, echo.HeaderAccept}

type Config struct {
	BaseURL string
	Timeout time.Duration
	// StripPrefix is removed from the incoming path before forwarding.
	StripPrefix string
}

type Proxy struct {
	cfg     Config
	client  *http.Client
	logger  zerolog.Logger
	metrics *telemetry.Metrics
}

func New(cfg Config, logger zerolog.Logger, m *telemetry.Metrics) *Proxy {
	if cfg.StripPrefix == "" {
		cfg.StripPrefix = "/api"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Proxy{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
		metrics: m,
	}
}

// Target builds the upstream URL for an incoming path and raw query.
func (p *Proxy) Target(path, rawQuery string) string {
	rest := strings.TrimPrefix(path, p.cfg.StripPrefix)
	if rest != "" && !strings.HasPrefix(rest, "/") {
		rest = "/" + rest
	}
	u := p.cfg.BaseURL + rest
	if rawQuery != "" {
		u += "?" + rawQuery
	}
	return u
}

// Handle relays the request and copies status, content type and body back.
func (p *Proxy) Handle(c echo.Context) error {
	if p.cfg.BaseURL == "" {
		return apperr.New(apperr.Configuration, "backend API URL is not configured")
	}

	req := c.Request()
	target := p.Target(req.URL.Path, req.URL.RawQuery)

	ctx, span := telemetry.Tracer().Start(req.Context(), "upstream.relay")
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", req.Method),
		attribute.String("http.route", req.URL.Path),
	)

	start := time.Now()
	outcome := "ok"
	defer func() { p.metrics.ObserveUpstream(outcome, time.Since(start).Seconds()) }()

	out, err := http.NewRequestWithContext(ctx, req.Method, target, req.Body)
	if err != nil {
		outcome = "error"
		return apperr.Wrap(apperr.Upstream, "failed to reach backend API", err)
	}
	for _, h := range forwardedHeaders {
		if v := req.Header.Get(h); v != "" {
			out.Header.Set(h, v)
		}
	}

	resp, err := p.client.Do(out)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upstream request failed")
		if isTimeout(err) {
			outcome = "timeout"
			p.logger.Warn().Err(err).Str("target", target).Msg("upstream timed out")
			return echo.NewHTTPError(http.StatusGatewayTimeout, "backend API timed out")
		}
		outcome = "error"
		p.logger.Error().Err(err).Str("target", target).Msg("upstream request failed")
		return apperr.Wrap(apperr.Upstream, "failed to reach backend API", err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode >= http.StatusInternalServerError {
		outcome = "upstream_5xx"
	}

	if ct := resp.Header.Get(echo.HeaderContentType); ct != "" {
		c.Response().Header().Set(echo.HeaderContentType, ct)
	}
	c.Response().WriteHeader(resp.StatusCode)
	if _, err := io.Copy(c.Response(), resp.Body); err != nil {
		p.logger.Warn().Err(err).Str("target", target).Msg("relaying upstream body")
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
