package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port               string        `mapstructure:"PORT"`
	Env                string        `mapstructure:"ENV"`
	LogLevel           string        `mapstructure:"LOG_LEVEL"`
	DatabaseURL        string        `mapstructure:"DATABASE_URL"`
	DBMaxConns         int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns         int32         `mapstructure:"DB_MIN_CONNS"`
	RedisURL           string        `mapstructure:"REDIS_URL"`
	BackendAPIURL      string        `mapstructure:"BACKEND_API_URL"`
	UpstreamTimeout    time.Duration `mapstructure:"UPSTREAM_TIMEOUT"`
	RequestTimeout     time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	AuthSigningKey     string        `mapstructure:"AUTH_SIGNING_KEY"`
	AuthIssuer         string        `mapstructure:"AUTH_ISSUER"`
	CORSOrigins        []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS       float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst     int           `mapstructure:"RATE_LIMIT_BURST"`
	JoinCodeTTL        time.Duration `mapstructure:"JOIN_CODE_TTL"`
	InviteTTL          time.Duration `mapstructure:"INVITE_TTL"`
	JoinCodeUses       int           `mapstructure:"JOIN_CODE_USES"`
	DoctorTeamCodes    []string      `mapstructure:"DOCTOR_TEAM_CODES"`
	DoctorTeamRedirect string        `mapstructure:"DOCTOR_TEAM_REDIRECT"`
	SecretaryRedirect  string        `mapstructure:"SECRETARY_REDIRECT"`
	GuardMaxAttempts   int           `mapstructure:"GUARD_MAX_ATTEMPTS"`
	GuardWindow        time.Duration `mapstructure:"GUARD_WINDOW"`
	SendGridAPIKey     string        `mapstructure:"SENDGRID_API_KEY"`
	SendGridFromEmail  string        `mapstructure:"SENDGRID_FROM_EMAIL"`
	SendGridFromName   string        `mapstructure:"SENDGRID_FROM_NAME"`
	FrontendURL        string        `mapstructure:"FRONTEND_URL"`
	SweepSchedule      string        `mapstructure:"SWEEP_SCHEDULE"`
	SeedFixtures       bool          `mapstructure:"SEED_FIXTURES"`
}

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"REDIS_URL", "BACKEND_API_URL", "UPSTREAM_TIMEOUT", "REQUEST_TIMEOUT",
	"AUTH_SIGNING_KEY", "AUTH_ISSUER", "CORS_ORIGINS", "RATE_LIMIT_RPS",
	"RATE_LIMIT_BURST", "JOIN_CODE_TTL", "INVITE_TTL", "JOIN_CODE_USES",
	"DOCTOR_TEAM_CODES", "DOCTOR_TEAM_REDIRECT", "SECRETARY_REDIRECT",
	"GUARD_MAX_ATTEMPTS", "GUARD_WINDOW", "SENDGRID_API_KEY",
	"SENDGRID_FROM_EMAIL", "SENDGRID_FROM_NAME", "FRONTEND_URL",
	"SWEEP_SCHEDULE", "SEED_FIXTURES",
}

// Load reads configuration from the environment, after loading an optional
// .env file. Values already present in the environment win over the file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("UPSTREAM_TIMEOUT", "15s")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)
	v.SetDefault("JOIN_CODE_TTL", "168h")
	v.SetDefault("INVITE_TTL", "3h")
	v.SetDefault("JOIN_CODE_USES", 1)
	v.SetDefault("DOCTOR_TEAM_REDIRECT", "/doctor/dashboard")
	v.SetDefault("SECRETARY_REDIRECT", "/secretary/dashboard")
	v.SetDefault("GUARD_MAX_ATTEMPTS", 5)
	v.SetDefault("GUARD_WINDOW", "15m")
	v.SetDefault("SENDGRID_FROM_NAME", "MedAgenda")
	v.SetDefault("FRONTEND_URL", "http://localhost:3000")
	v.SetDefault("SWEEP_SCHEDULE", "@every 15m")
	v.SetDefault("SEED_FIXTURES", true)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))
	cfg.DoctorTeamCodes = splitList(v.GetString("DOCTOR_TEAM_CODES"))
	for i, c := range cfg.DoctorTeamCodes {
		cfg.DoctorTeamCodes[i] = strings.ToUpper(c)
	}
	cfg.BackendAPIURL = strings.TrimRight(cfg.BackendAPIURL, "/")

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Outside development
// a signing key is required so bearer tokens are actually verified.
func (c *Config) Validate() error {
	if !c.IsDev() && c.AuthSigningKey == "" {
		return fmt.Errorf("AUTH_SIGNING_KEY is required when ENV=%q", c.Env)
	}
	if c.JoinCodeTTL <= 0 {
		return fmt.Errorf("JOIN_CODE_TTL must be positive, got %s", c.JoinCodeTTL)
	}
	if c.InviteTTL <= 0 {
		return fmt.Errorf("INVITE_TTL must be positive, got %s", c.InviteTTL)
	}
	if c.UpstreamTimeout <= 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUT must be positive, got %s", c.UpstreamTimeout)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout)
	}
	if c.GuardWindow <= 0 {
		return fmt.Errorf("GUARD_WINDOW must be positive, got %s", c.GuardWindow)
	}
	if c.JoinCodeUses < 1 {
		return fmt.Errorf("JOIN_CODE_USES must be at least 1, got %d", c.JoinCodeUses)
	}
	if c.GuardMaxAttempts < 1 {
		return fmt.Errorf("GUARD_MAX_ATTEMPTS must be at least 1, got %d", c.GuardMaxAttempts)
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) cannot exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	return nil
}
