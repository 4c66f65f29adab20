package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_LocalDefaultsToMemoryStore(t *testing.T) {
	c := Config{
		App:  AppConfig{Env: "local", Port: 8080},
		Auth: AuthConfig{JWTSecret: "secret"},
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.Workflow.StoreBackend != StoreMemory {
		t.Fatalf("expected memory backend, got %q", c.Workflow.StoreBackend)
	}
	if c.Workflow.ChatGrace != 72*time.Hour {
		t.Fatalf("expected default chat grace, got %s", c.Workflow.ChatGrace)
	}
	if c.NeedsRedis() {
		t.Fatalf("memory backend with log notifier should not need redis")
	}
}

func TestValidate_ProductionRejectsMemoryStore(t *testing.T) {
	c := Config{
		App:      AppConfig{Env: "production", Port: 8080},
		Auth:     AuthConfig{JWTSecret: "secret", JWTIssuer: "i", JWTAudience: "a"},
		Workflow: WorkflowConfig{StoreBackend: StoreMemory},
	}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for memory store in production")
	}
}

func TestValidate_PostgresRequiresDBAndRedis(t *testing.T) {
	c := Config{
		App:      AppConfig{Env: "dev", Port: 8080},
		Auth:     AuthConfig{JWTSecret: "secret"},
		Workflow: WorkflowConfig{StoreBackend: StorePostgres},
	}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error without DB/Redis settings")
	}

	c.DB = DBConfig{Host: "localhost", Port: 5432, User: "postgres", Name: "fleet"}
	c.Redis = RedisConfig{Host: "localhost", Port: 6379}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
}

func TestLoadDotEnv_SeedsEnvironment(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, ".env")
	if err := os.WriteFile(p, []byte("FLEET_DOTENV_PROBE=yes\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("FLEET_DOTENV_PROBE") })

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), p); err != nil {
		t.Fatalf("load: %v", err)
	}
	if os.Getenv("FLEET_DOTENV_PROBE") != "yes" {
		t.Fatalf("expected variable from .env")
	}
}
