package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port                string   `mapstructure:"PORT"`
	Env                 string   `mapstructure:"ENV"`
	AuthMode            string   `mapstructure:"AUTH_MODE"`
	IngestAPIKey        string   `mapstructure:"INGEST_API_KEY"`
	JWTSigningKey       string   `mapstructure:"JWT_SIGNING_KEY"`
	AuthJWKSURL         string   `mapstructure:"AUTH_JWKS_URL"`
	AuthIssuer          string   `mapstructure:"AUTH_ISSUER"`
	AuthAudience        string   `mapstructure:"AUTH_AUDIENCE"`
	OpenAIAPIKey        string   `mapstructure:"OPENAI_API_KEY"`
	OpenAIModel         string   `mapstructure:"OPENAI_MODEL"`
	NotifyWebhookURL    string   `mapstructure:"NOTIFY_WEBHOOK_URL"`
	NotifyWebhookSecret string   `mapstructure:"NOTIFY_WEBHOOK_SECRET"`
	BodyLimit           string   `mapstructure:"BODY_LIMIT"`
	RateLimitRPS        float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst      int      `mapstructure:"RATE_LIMIT_BURST"`
	CORSOrigins         []string `mapstructure:"CORS_ORIGINS"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("AUTH_MODE", "") // auto-detect: "" -> inferred from config
	v.SetDefault("OPENAI_MODEL", "gpt-4o-mini")
	v.SetDefault("BODY_LIMIT", "4M")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("AUTH_MODE")
	v.BindEnv("INGEST_API_KEY")
	v.BindEnv("JWT_SIGNING_KEY")
	v.BindEnv("AUTH_JWKS_URL")
	v.BindEnv("AUTH_ISSUER")
	v.BindEnv("AUTH_AUDIENCE")
	v.BindEnv("OPENAI_API_KEY")
	v.BindEnv("OPENAI_MODEL")
	v.BindEnv("NOTIFY_WEBHOOK_URL")
	v.BindEnv("NOTIFY_WEBHOOK_SECRET")
	v.BindEnv("BODY_LIMIT")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")
	v.BindEnv("CORS_ORIGINS")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// ResolvedAuthMode returns the effective auth mode. If AUTH_MODE is explicitly
// set, it is returned. Otherwise, the mode is inferred:
//   - JWT_SIGNING_KEY or AUTH_JWKS_URL set → "jwt" (signed bearer tokens)
//   - INGEST_API_KEY set                   → "apikey" (static shared secret)
//   - ENV=development                      → "none" (open, local testing only)
func (c *Config) ResolvedAuthMode() string {
	if c.AuthMode != "" {
		return c.AuthMode
	}
	if c.JWTSigningKey != "" || c.AuthJWKSURL != "" {
		return "jwt"
	}
	if c.IngestAPIKey != "" {
		return "apikey"
	}
	if c.IsDev() {
		return "none"
	}
	return "apikey"
}

// Validate checks that the configuration is safe to run. Production refuses
// to start without credentials for the resolved auth mode.
func (c *Config) Validate() error {
	mode := c.ResolvedAuthMode()
	switch mode {
	case "none":
		if c.IsProduction() {
			return fmt.Errorf("AUTH_MODE=none is not allowed in production; set INGEST_API_KEY or JWT_SIGNING_KEY")
		}
	case "apikey":
		if c.IngestAPIKey == "" {
			return fmt.Errorf("INGEST_API_KEY is required when AUTH_MODE is \"apikey\" (current ENV=%q)", c.Env)
		}
	case "jwt":
		if c.JWTSigningKey == "" && c.AuthJWKSURL == "" {
			return fmt.Errorf("JWT_SIGNING_KEY or AUTH_JWKS_URL is required when AUTH_MODE is \"jwt\" (current ENV=%q)", c.Env)
		}
	default:
		return fmt.Errorf("AUTH_MODE must be \"none\", \"apikey\", or \"jwt\", got %q", mode)
	}
	return nil
}
