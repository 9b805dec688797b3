package config

import (
	"context"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
)

func TestLoadWith_Defaults(t *testing.T) {
	cfg, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{
		"JWT_SECRET": "dev-secret",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8080" || cfg.Session.TTL != 8*time.Hour || cfg.Session.CookieName != "clinic_session" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Paths.Login != "/login" || cfg.Paths.Landing != "/dashboard" {
		t.Fatalf("unexpected paths: %+v", cfg.Paths)
	}
	if cfg.Mongo.Database != "clinic_system" || cfg.Audit.Workers != 4 {
		t.Fatalf("unexpected store defaults: %+v", cfg)
	}
}

func TestLoadWith_RequiresSecret(t *testing.T) {
	if _, err := LoadWith(context.Background(), envconfig.MapLookuper(nil)); err == nil {
		t.Fatalf("expected error without JWT_SECRET")
	}
}

func TestLoadWith_ShortSecretOutsideDevelopment(t *testing.T) {
	_, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{
		"JWT_SECRET": "short",
		"ENV":        "production",
	}))
	if err == nil {
		t.Fatalf("expected error for short secret in production")
	}
}

func TestLoadWith_RejectsUnsafeSettings(t *testing.T) {
	cases := map[string]map[string]string{
		"root login path":    {"LOGIN_PATH": "/"},
		"slashes only":       {"LOGIN_PATH": "//"},
		"relative login":     {"LOGIN_PATH": "login"},
		"root landing path":  {"LANDING_PATH": "/"},
		"ttl beyond maximum": {"SESSION_TTL": "800h"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			env["JWT_SECRET"] = "0123456789abcdef0123"
			if _, err := LoadWith(context.Background(), envconfig.MapLookuper(env)); err == nil {
				t.Fatalf("expected %v to be rejected", env)
			}
		})
	}
}

func TestLoadWith_Overrides(t *testing.T) {
	cfg, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{
		"JWT_SECRET":    "0123456789abcdef0123",
		"ENV":           "production",
		"SESSION_TTL":   "30m",
		"COOKIE_SECURE": "true",
		"LANDING_PATH":  "/home",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Session.TTL != 30*time.Minute || !cfg.Session.CookieSecure || cfg.Paths.Landing != "/home" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.IsDevelopment() {
		t.Fatalf("expected production")
	}
}
