package config

import (
	"log/slog"
	"testing"
	"time"
)

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

func TestLoadDefaultsForDevProfile(t *testing.T) {
	cfg, err := Load("storequery-api", mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileDev {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileDev)
	}
	if cfg.HTTP.Address != ":8080" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Store.Driver != "sqlite" {
		t.Fatalf("Store.Driver = %q", cfg.Store.Driver)
	}
	if cfg.Chat.MaxRetries != 3 {
		t.Fatalf("Chat.MaxRetries = %d", cfg.Chat.MaxRetries)
	}
	if cfg.Chat.MemoryWindow != 3 {
		t.Fatalf("Chat.MemoryWindow = %d", cfg.Chat.MemoryWindow)
	}
	if cfg.AI.Temperature != 0 {
		t.Fatalf("AI.Temperature = %v", cfg.AI.Temperature)
	}
	if cfg.AI.MaxTokens != 256 {
		t.Fatalf("AI.MaxTokens = %d", cfg.AI.MaxTokens)
	}
	if cfg.Observability.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.Auth.Required {
		t.Fatal("Auth.Required should default to false in dev")
	}
}

func TestLoadProdProfileDefaults(t *testing.T) {
	cfg, err := Load("storequery-api", mapLookup(map[string]string{"STOREQUERY_PROFILE": "prod"}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.Auth.Required {
		t.Fatal("Auth.Required should default to true in prod")
	}
	if cfg.Observability.LogLevel != slog.LevelInfo {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if !cfg.ObjectStore.UseSSL {
		t.Fatal("ObjectStore.UseSSL should default to true in prod")
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load("storequery-api", mapLookup(map[string]string{
		"STOREQUERY_STORE_DRIVER":       "postgres",
		"STOREQUERY_STORE_DSN":          "postgres://localhost:5432/orders",
		"STOREQUERY_AI_MODEL":           "llama3-70b-8192",
		"STOREQUERY_AI_TIMEOUT":         "45s",
		"STOREQUERY_CHAT_MAX_RETRIES":   "5",
		"STOREQUERY_CHAT_MEMORY_WINDOW": "10",
	}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Store.Driver != "postgres" {
		t.Fatalf("Store.Driver = %q", cfg.Store.Driver)
	}
	if cfg.AI.Model != "llama3-70b-8192" {
		t.Fatalf("AI.Model = %q", cfg.AI.Model)
	}
	if cfg.AI.Timeout != 45*time.Second {
		t.Fatalf("AI.Timeout = %v", cfg.AI.Timeout)
	}
	if cfg.Chat.MaxRetries != 5 {
		t.Fatalf("Chat.MaxRetries = %d", cfg.Chat.MaxRetries)
	}
	if cfg.Chat.MemoryWindow != 10 {
		t.Fatalf("Chat.MemoryWindow = %d", cfg.Chat.MemoryWindow)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"profile":       {"STOREQUERY_PROFILE": "staging"},
		"driver":        {"STOREQUERY_STORE_DRIVER": "mysql"},
		"retries":       {"STOREQUERY_CHAT_MAX_RETRIES": "-1"},
		"window":        {"STOREQUERY_CHAT_MEMORY_WINDOW": "0"},
		"timeout":       {"STOREQUERY_AI_TIMEOUT": "soon"},
		"log level":     {"STOREQUERY_LOG_LEVEL": "loud"},
		"auth required": {"STOREQUERY_AUTH_REQUIRED": "maybe"},
	}
	for name, env := range cases {
		if _, err := Load("storequery-api", mapLookup(env)); err == nil {
			t.Fatalf("Load() with invalid %s should fail", name)
		}
	}
}
