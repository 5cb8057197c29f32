package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestApplyDefaults(t *testing.T) {
	t.Parallel()
	cfg := &Config{}
	cfg.ApplyDefaults()

	if cfg.Redis.ProbeInterval != 5*time.Second {
		t.Fatalf("probe interval = %v, want 5s", cfg.Redis.ProbeInterval)
	}
	if cfg.Tasks.Workers <= 0 || cfg.Tasks.QueueSize != cfg.Tasks.Workers*4 {
		t.Fatalf("worker defaults wrong: %+v", cfg.Tasks)
	}
	if cfg.Chat.HistoryWindow != 10 {
		t.Fatalf("history window = %d, want 10", cfg.Chat.HistoryWindow)
	}
	if cfg.Chat.SessionTTL != 48*time.Hour {
		t.Fatalf("session ttl = %v, want 48h", cfg.Chat.SessionTTL)
	}
	if cfg.Chat.ResponseTTL != time.Hour {
		t.Fatalf("response ttl = %v, want 1h", cfg.Chat.ResponseTTL)
	}
	if cfg.Websocket.SendBuffer != 32 {
		t.Fatalf("send buffer = %d, want 32", cfg.Websocket.SendBuffer)
	}
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("server:\n  port: 9090\nredis:\n  url: localhost:6379\nchat:\n  history_window: 6\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path, true)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9090 || cfg.Redis.URL != "localhost:6379" {
		t.Fatalf("parsed config wrong: %+v", cfg)
	}
	if cfg.Chat.HistoryWindow != 6 {
		t.Fatalf("history window = %d, want 6 from file", cfg.Chat.HistoryWindow)
	}
	if cfg.Chat.SessionTTL != 48*time.Hour {
		t.Fatal("defaults not applied on top of file values")
	}
	if !cfg.Runtime.Dev {
		t.Fatal("dev flag not carried into runtime config")
	}
}

func TestLoadConfigRequiresPort(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadConfig(path, false); err == nil {
		t.Fatal("want error when server.port is missing")
	}
}
