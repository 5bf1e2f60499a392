package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadUsesDefaultsAndYAMLOverrides(t *testing.T) {
	clearConfigEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
storage:
  driver: memory
quota:
  default_daily_limit: 3
  timezone: Europe/Berlin
chat:
  idle_timeout: 90s
  allowed_origins: ["https://app.example"]
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Storage.Driver != StorageDriverMemory {
		t.Fatalf("unexpected storage driver: %s", cfg.Storage.Driver)
	}
	if cfg.Quota.DefaultDailyLimit != 3 {
		t.Fatalf("unexpected daily limit: %d", cfg.Quota.DefaultDailyLimit)
	}
	loc, err := cfg.Quota.Location()
	if err != nil || loc.String() != "Europe/Berlin" {
		t.Fatalf("unexpected quota location: %v err=%v", loc, err)
	}
	if cfg.Chat.IdleTimeout != 90*time.Second {
		t.Fatalf("unexpected idle timeout: %s", cfg.Chat.IdleTimeout)
	}
	if len(cfg.Chat.AllowedOrigins) != 1 || cfg.Chat.AllowedOrigins[0] != "https://app.example" {
		t.Fatalf("unexpected allowed origins: %v", cfg.Chat.AllowedOrigins)
	}

	if cfg.Chat.PongWait != 60*time.Second {
		t.Fatalf("pong_wait default should stay 60s, got %s", cfg.Chat.PongWait)
	}
	if cfg.Chat.FanoutChannel != "chat:events" {
		t.Fatalf("fanout channel default should stay chat:events, got %s", cfg.Chat.FanoutChannel)
	}
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load config with missing file: %v", err)
	}

	if cfg.Quota.DefaultDailyLimit != 8 {
		t.Fatalf("unexpected default daily limit: %d", cfg.Quota.DefaultDailyLimit)
	}
	if cfg.Quota.Timezone != "UTC" {
		t.Fatalf("unexpected default timezone: %s", cfg.Quota.Timezone)
	}
	if cfg.Storage.Driver != StorageDriverPostgres {
		t.Fatalf("unexpected default storage driver: %s", cfg.Storage.Driver)
	}
	if cfg.Chat.IdleTimeout != 5*time.Minute {
		t.Fatalf("unexpected default idle timeout: %s", cfg.Chat.IdleTimeout)
	}
	if cfg.Chat.ReplayLimit != 500 || cfg.Chat.RetryInitial != 50*time.Millisecond {
		t.Fatalf("unexpected replay/retry defaults: %d %s", cfg.Chat.ReplayLimit, cfg.Chat.RetryInitial)
	}
}

func TestEnvOverridesWinOverYAML(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("QUOTA_DEFAULT_DAILY_LIMIT", "12")
	t.Setenv("CHAT_IDLE_TIMEOUT", "2m")
	t.Setenv("STORAGE_DRIVER", "MEMORY")
	t.Setenv("CHAT_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("CHAT_REPLAY_LIMIT", "50")
	t.Setenv("CHAT_RETRY_INITIAL", "200ms")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Quota.DefaultDailyLimit != 12 {
		t.Fatalf("unexpected daily limit: %d", cfg.Quota.DefaultDailyLimit)
	}
	if cfg.Chat.IdleTimeout != 2*time.Minute {
		t.Fatalf("unexpected idle timeout: %s", cfg.Chat.IdleTimeout)
	}
	if cfg.Storage.Driver != StorageDriverMemory {
		t.Fatalf("unexpected storage driver: %s", cfg.Storage.Driver)
	}
	if len(cfg.Chat.AllowedOrigins) != 2 {
		t.Fatalf("unexpected allowed origins: %v", cfg.Chat.AllowedOrigins)
	}
	if cfg.Chat.ReplayLimit != 50 {
		t.Fatalf("unexpected replay limit: %d", cfg.Chat.ReplayLimit)
	}
	if cfg.Chat.RetryInitial != 200*time.Millisecond {
		t.Fatalf("unexpected retry initial: %s", cfg.Chat.RetryInitial)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"STORAGE_DRIVER":            "mongo",
		"QUOTA_DEFAULT_DAILY_LIMIT": "-1",
		"QUOTA_TIMEZONE":            "Mars/Olympus",
		"CHAT_IDLE_TIMEOUT":         "not-a-duration",
		"CHAT_REPLAY_LIMIT":         "0",
		"CHAT_RETRY_INITIAL":        "-1s",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			clearConfigEnv(t)
			t.Setenv(key, value)
			if _, err := Load(""); err == nil {
				t.Fatalf("expected error for %s=%s", key, value)
			}
		})
	}
}

func TestLoadRejectsDefaultSecretInProduction(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("APP_ENV", "prod")

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error when jwt secret is the default in production")
	}
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_ENV",
		"HTTP_ADDR",
		"HTTP_READ_TIMEOUT",
		"HTTP_WRITE_TIMEOUT",
		"HTTP_IDLE_TIMEOUT",
		"LOG_LEVEL",
		"STORAGE_DRIVER",
		"POSTGRES_DSN",
		"POSTGRES_AUTO_MIGRATE",
		"REDIS_ADDR",
		"REDIS_PASSWORD",
		"REDIS_DB",
		"JWT_SECRET",
		"JWT_ACCESS_TTL",
		"REFRESH_TTL",
		"QUOTA_DEFAULT_DAILY_LIMIT",
		"QUOTA_TIMEZONE",
		"CHAT_IDLE_TIMEOUT",
		"CHAT_MAX_PER_10S",
		"CHAT_MAX_PER_MINUTE",
		"CHAT_RETRY_INITIAL",
		"CHAT_REPLAY_LIMIT",
		"CHAT_ALLOWED_ORIGINS",
		"TELEGRAM_BOT_TOKEN",
		"CLEANUP_INTERVAL",
	} {
		t.Setenv(key, "")
	}
}
