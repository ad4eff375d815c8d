package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Redis.PoolSize != 30 || cfg.Redis.MinIdleConns != 5 {
		t.Errorf("unexpected redis pool defaults: %+v", cfg.Redis)
	}
	if cfg.Relay.MaxRetries != 3 || cfg.Relay.Prefetch != 5 {
		t.Errorf("unexpected relay defaults: %+v", cfg.Relay)
	}
	if cfg.Relay.UnsupportedMime != MimeConvertToDocument {
		t.Errorf("unexpected unsupported-MIME default: %s", cfg.Relay.UnsupportedMime)
	}
}

func TestLoadRedisPoolOverrides(t *testing.T) {
	t.Setenv("REDIS_POOL_SIZE", "50")
	t.Setenv("REDIS_MIN_IDLE_CONNS", "10")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Redis.PoolSize != 50 || cfg.Redis.MinIdleConns != 10 {
		t.Errorf("redis pool envs not applied: %+v", cfg.Redis)
	}
}

func TestValidateRejectsBadMimeBehavior(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg.Relay.UnsupportedMime = "drop"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for unknown MIME behavior")
	}
}

func TestRedisAddr(t *testing.T) {
	cfg := RedisConfig{Host: "redis.internal", Port: "6380"}
	if got := cfg.GetAddr(); got != "redis.internal:6380" {
		t.Errorf("unexpected addr: %s", got)
	}
}
