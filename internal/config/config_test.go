package config

import (
	"os"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	os.Unsetenv("PORT")
	os.Unsetenv("OPENAI_MODEL")
	os.Unsetenv("BODY_LIMIT")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != "8000" {
		t.Errorf("expected default port 8000, got %s", cfg.Port)
	}
	if cfg.OpenAIModel != "gpt-4o-mini" {
		t.Errorf("expected default model gpt-4o-mini, got %s", cfg.OpenAIModel)
	}
	if cfg.BodyLimit != "4M" {
		t.Errorf("expected default body limit 4M, got %s", cfg.BodyLimit)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	os.Setenv("INGEST_API_KEY", "sekret")
	os.Setenv("PORT", "9090")
	defer os.Unsetenv("INGEST_API_KEY")
	defer os.Unsetenv("PORT")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.IngestAPIKey != "sekret" {
		t.Errorf("expected INGEST_API_KEY to be set, got %s", cfg.IngestAPIKey)
	}
	if cfg.Port != "9090" {
		t.Errorf("expected PORT override 9090, got %s", cfg.Port)
	}
}

func TestConfig_IsDev(t *testing.T) {
	c := &Config{Env: "development"}
	if !c.IsDev() {
		t.Error("expected IsDev() to return true for development")
	}

	c.Env = "production"
	if c.IsDev() {
		t.Error("expected IsDev() to return false for production")
	}
}

func TestConfig_ResolvedAuthMode(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		want string
	}{
		{"explicit wins", Config{AuthMode: "jwt", IngestAPIKey: "k"}, "jwt"},
		{"jwt key infers jwt", Config{JWTSigningKey: "s"}, "jwt"},
		{"api key infers apikey", Config{IngestAPIKey: "k"}, "apikey"},
		{"dev with nothing is open", Config{Env: "development"}, "none"},
		{"prod with nothing demands apikey", Config{Env: "production"}, "apikey"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.cfg.ResolvedAuthMode(); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	c := &Config{Env: "production"}
	if err := c.Validate(); err == nil {
		t.Error("expected error for production without credentials")
	}

	c = &Config{Env: "production", AuthMode: "none"}
	if err := c.Validate(); err == nil {
		t.Error("expected error for AUTH_MODE=none in production")
	}

	c = &Config{Env: "production", IngestAPIKey: "k"}
	if err := c.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	c = &Config{AuthMode: "jwt"}
	if err := c.Validate(); err == nil {
		t.Error("expected error for jwt mode without signing key")
	}

	c = &Config{AuthMode: "bogus"}
	if err := c.Validate(); err == nil {
		t.Error("expected error for unknown auth mode")
	}

	c = &Config{Env: "development"}
	if err := c.Validate(); err != nil {
		t.Errorf("unexpected error in dev: %v", err)
	}
}
