package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ehr/triage/internal/domain/triage"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	RedisURL    string   `mapstructure:"REDIS_URL"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	AuthIssuer   string `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL  string `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience string `mapstructure:"AUTH_AUDIENCE"`

	TLSEnabled  bool   `mapstructure:"TLS_ENABLED"`
	TLSCertFile string `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile  string `mapstructure:"TLS_KEY_FILE"`

	RateLimitRPS   float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int           `mapstructure:"RATE_LIMIT_BURST"`
	BodyLimit      string        `mapstructure:"BODY_LIMIT"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	MetricsEnabled bool          `mapstructure:"METRICS_ENABLED"`

	TriageUPAEscalation              bool          `mapstructure:"TRIAGE_UPA_ESCALATION"`
	TriageAmbulatoryEscalation       bool          `mapstructure:"TRIAGE_AMBULATORY_ESCALATION"`
	TriageUPABaselineRequired        bool          `mapstructure:"TRIAGE_UPA_BASELINE_REQUIRED"`
	TriageAmbulatoryBaselineRequired bool          `mapstructure:"TRIAGE_AMBULATORY_BASELINE_REQUIRED"`
	TriageDefaultLevel               string        `mapstructure:"TRIAGE_DEFAULT_LEVEL"`
	EncounterCacheTTL                time.Duration `mapstructure:"ENCOUNTER_CACHE_TTL"`
}

var keys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "REDIS_URL", "CORS_ORIGINS",
	"AUTH_ISSUER", "AUTH_JWKS_URL", "AUTH_AUDIENCE",
	"TLS_ENABLED", "TLS_CERT_FILE", "TLS_KEY_FILE",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "BODY_LIMIT", "REQUEST_TIMEOUT", "METRICS_ENABLED",
	"TRIAGE_UPA_ESCALATION", "TRIAGE_AMBULATORY_ESCALATION",
	"TRIAGE_UPA_BASELINE_REQUIRED", "TRIAGE_AMBULATORY_BASELINE_REQUIRED",
	"TRIAGE_DEFAULT_LEVEL", "ENCOUNTER_CACHE_TTL",
}

// Load reads configuration for commands that talk to the database.
func Load() (*Config, error) {
	cfg, err := LoadOffline()
	if err != nil {
		return nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

// LoadOffline reads configuration without requiring a database, for
// commands that only run the classification engine.
func LoadOffline() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("BODY_LIMIT", "64K")
	v.SetDefault("REQUEST_TIMEOUT", "15s")
	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("TRIAGE_UPA_ESCALATION", true)
	v.SetDefault("TRIAGE_AMBULATORY_ESCALATION", false)
	v.SetDefault("TRIAGE_UPA_BASELINE_REQUIRED", true)
	v.SetDefault("TRIAGE_AMBULATORY_BASELINE_REQUIRED", false)
	v.SetDefault("TRIAGE_DEFAULT_LEVEL", "green")
	v.SetDefault("ENCOUNTER_CACHE_TTL", "30s")

	// Bind explicitly so Unmarshal sees variables that have no default.
	for _, k := range keys {
		v.BindEnv(k)
	}

	// The .env file is optional.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = strings.Split(cfg.CORSOrigins[0], ",")
	}
	for i, o := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(o)
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// TriagePolicies returns the per-pathway escalation policy.
func (c *Config) TriagePolicies() triage.Policies {
	return triage.Policies{
		triage.PathwayUPA: {
			EscalationEnabled: c.TriageUPAEscalation,
			BaselineRequired:  c.TriageUPABaselineRequired,
		},
		triage.PathwayAmbulatory: {
			EscalationEnabled: c.TriageAmbulatoryEscalation,
			BaselineRequired:  c.TriageAmbulatoryBaselineRequired,
		},
	}
}

// DefaultLevel returns the level assigned when no baseline or signal exists.
func (c *Config) DefaultLevel() (triage.Level, error) {
	l, err := triage.ParseLevel(c.TriageDefaultLevel)
	if err != nil {
		return 0, fmt.Errorf("TRIAGE_DEFAULT_LEVEL: %w", err)
	}
	return l, nil
}

// Validate rejects configurations that are unsafe or unusable.
func (c *Config) Validate() error {
	if !c.IsDev() && c.AuthIssuer == "" {
		return fmt.Errorf("AUTH_ISSUER must be set outside development (ENV=%q)", c.Env)
	}
	if !c.IsDev() && c.AuthJWKSURL == "" {
		return fmt.Errorf("AUTH_JWKS_URL must be set outside development (ENV=%q)", c.Env)
	}
	if c.TLSEnabled {
		if c.TLSCertFile == "" {
			return fmt.Errorf("TLS_CERT_FILE is required when TLS_ENABLED is true")
		}
		if c.TLSKeyFile == "" {
			return fmt.Errorf("TLS_KEY_FILE is required when TLS_ENABLED is true")
		}
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if _, err := c.DefaultLevel(); err != nil {
		return err
	}
	if c.EncounterCacheTTL < 0 {
		return fmt.Errorf("ENCOUNTER_CACHE_TTL must not be negative")
	}
	return nil
}
