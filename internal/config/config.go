// Package config loads process configuration from the environment or, when
// CLAIMDESK_CONFIG names a file, from YAML with environment overrides.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const pathEnv = "CLAIMDESK_CONFIG"

type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	GRPC      GRPCConfig      `yaml:"grpc"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Auth      AuthConfig      `yaml:"auth"`
	Chat      ChatConfig      `yaml:"chat"`
	Claims    ClaimsConfig    `yaml:"claims"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr" env:"CLAIMDESK_HTTP_ADDR" env-default:":8080"`
	StaticDir       string        `yaml:"static_dir" env:"CLAIMDESK_STATIC_DIR" env-default:"public"`
	AllowedOrigins  []string      `yaml:"allowed_origins" env:"CLAIMDESK_CORS_ORIGINS" env-separator:","`
	// TrustedProxies are addresses or CIDRs allowed to set X-Forwarded-For.
	TrustedProxies  []string      `yaml:"trusted_proxies" env:"CLAIMDESK_TRUSTED_PROXIES" env-separator:","`
	MaxBodyBytes    int64         `yaml:"max_body_bytes" env:"CLAIMDESK_MAX_BODY_BYTES" env-default:"1048576"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"CLAIMDESK_HTTP_READ_TIMEOUT" env-default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"CLAIMDESK_HTTP_WRITE_TIMEOUT" env-default:"75s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"CLAIMDESK_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

type GRPCConfig struct {
	// Addr enables the health service when set.
	Addr string `yaml:"addr" env:"CLAIMDESK_GRPC_ADDR"`
}

type PostgresConfig struct {
	// DSN selects the Postgres stores; empty runs in memory.
	DSN         string `yaml:"dsn" env:"CLAIMDESK_PG_DSN"`
	AutoMigrate bool   `yaml:"auto_migrate" env:"CLAIMDESK_PG_AUTOMIGRATE" env-default:"true"`
}

type AuthConfig struct {
	Secret string `yaml:"secret" env:"CLAIMDESK_AUTH_SECRET" env-required:"true"`
	Issuer string `yaml:"issuer" env:"CLAIMDESK_AUTH_ISSUER" env-default:"claimdesk"`
}

type ChatConfig struct {
	APIKey  string        `yaml:"api_key" env:"OPENAI_KEY"`
	Model   string        `yaml:"model" env:"OPENAI_MODEL" env-default:"gpt-4o-mini"`
	BaseURL string        `yaml:"base_url" env:"OPENAI_BASE_URL" env-default:"https://api.openai.com/v1"`
	Timeout time.Duration `yaml:"timeout" env:"OPENAI_TIMEOUT" env-default:"60s"`
}

type ClaimsConfig struct {
	StrictWorkflow bool `yaml:"strict_workflow" env:"CLAIMDESK_STRICT_WORKFLOW" env-default:"false"`
}

// RateLimitConfig is the per-client token bucket on login, register and chat.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps" env:"CLAIMDESK_RATE_LIMIT_RPS" env-default:"1"`
	Burst int     `yaml:"burst" env:"CLAIMDESK_RATE_LIMIT_BURST" env-default:"10"`
}

// Load reads configuration and validates it.
func Load() (Config, error) {
	var cfg Config
	var err error
	if path := strings.TrimSpace(os.Getenv(pathEnv)); path != "" {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Auth.Secret) == "" {
		errs = append(errs, errors.New("auth secret is required"))
	}
	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http addr is required"))
	}
	if c.RateLimit.RPS < 0 || c.RateLimit.Burst < 0 {
		errs = append(errs, errors.New("rate limit must not be negative"))
	}
	for _, p := range c.HTTP.TrustedProxies {
		if !validProxy(strings.TrimSpace(p)) {
			errs = append(errs, fmt.Errorf("trusted proxy %q is not an address or CIDR", p))
		}
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("max body bytes must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

func validProxy(s string) bool {
	if s == "" {
		return true
	}
	if strings.Contains(s, "/") {
		_, err := netip.ParsePrefix(s)
		return err == nil
	}
	_, err := netip.ParseAddr(s)
	return err == nil
}

// Usage describes every environment variable for --help output.
func Usage() string {
	var cfg Config
	text, err := cleanenv.GetDescription(&cfg, nil)
	if err != nil {
		return ""
	}
	return text
}
