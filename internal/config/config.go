// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type RedisConfig struct {
	URL           string        `yaml:"url"`
	Password      string        `yaml:"password"`
	DB            int           `yaml:"db"`
	ProbeInterval time.Duration `yaml:"probe_interval"` // degraded-mode re-probe
	SetRetries    int           `yaml:"set_retries"`    // transient write retries before degrading
}

type TasksConfig struct {
	Workers     int           `yaml:"workers"`
	QueueSize   int           `yaml:"queue_size"`
	StateTTL    time.Duration `yaml:"state_ttl"`    // finished tasks stay queryable until expiry
	StallWindow time.Duration `yaml:"stall_window"` // no-update window before a task is reported stalled
	DataTTL     time.Duration `yaml:"data_ttl"`     // analysis artifacts stay cached this long
}

type ChatConfig struct {
	HistoryWindow     int           `yaml:"history_window"`
	SessionTTL        time.Duration `yaml:"session_ttl"`
	ResponseTTL       time.Duration `yaml:"response_ttl"`
	GenerationTimeout time.Duration `yaml:"generation_timeout"`
}

type WebsocketConfig struct {
	SendBuffer      int           `yaml:"send_buffer"`      // outbound queue per connection
	LivenessTimeout time.Duration `yaml:"liveness_timeout"` // stale connections pruned past this
	PingInterval    time.Duration `yaml:"ping_interval"`
}

type AIConfig struct {
	OpenAIKey    string `yaml:"openai_key"`
	GeminiKey    string `yaml:"gemini_key"`
	GeminiURL    string `yaml:"gemini_url"`
	OllamaHost   string `yaml:"ollama_host"`
	DefaultModel string `yaml:"default_model"`
}

type Config struct {
	Log       LogConfig       `yaml:"log"`
	Server    ServerConfig    `yaml:"server"`
	Redis     RedisConfig     `yaml:"redis"`
	Tasks     TasksConfig     `yaml:"tasks"`
	Chat      ChatConfig      `yaml:"chat"`
	Websocket WebsocketConfig `yaml:"websocket"`
	AI        AIConfig        `yaml:"ai"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.ApplyDefaults()

	// Minimal validation. Redis is optional: with no URL the store runs
	// degraded from the start.
	if cfg.Server.Port == 0 {
		return nil, errors.New("server.port is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

// ApplyDefaults fills zero values so tests and the demo can build a Config
// without a file on disk.
func (cfg *Config) ApplyDefaults() {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Redis.ProbeInterval <= 0 {
		cfg.Redis.ProbeInterval = 5 * time.Second
	}
	if cfg.Redis.SetRetries <= 0 {
		cfg.Redis.SetRetries = 2
	}
	if cfg.Tasks.Workers <= 0 {
		cfg.Tasks.Workers = 4
	}
	if cfg.Tasks.QueueSize <= 0 {
		cfg.Tasks.QueueSize = cfg.Tasks.Workers * 4
	}
	if cfg.Tasks.StateTTL <= 0 {
		cfg.Tasks.StateTTL = time.Hour
	}
	if cfg.Tasks.StallWindow <= 0 {
		cfg.Tasks.StallWindow = 2 * time.Minute
	}
	if cfg.Tasks.DataTTL <= 0 {
		cfg.Tasks.DataTTL = 48 * time.Hour
	}
	if cfg.Chat.HistoryWindow <= 0 {
		cfg.Chat.HistoryWindow = 10
	}
	if cfg.Chat.SessionTTL <= 0 {
		cfg.Chat.SessionTTL = 48 * time.Hour
	}
	if cfg.Chat.ResponseTTL <= 0 {
		cfg.Chat.ResponseTTL = time.Hour
	}
	if cfg.Chat.GenerationTimeout <= 0 {
		cfg.Chat.GenerationTimeout = 30 * time.Second
	}
	if cfg.Websocket.SendBuffer <= 0 {
		cfg.Websocket.SendBuffer = 32
	}
	if cfg.Websocket.LivenessTimeout <= 0 {
		cfg.Websocket.LivenessTimeout = 90 * time.Second
	}
	if cfg.Websocket.PingInterval <= 0 {
		cfg.Websocket.PingInterval = 30 * time.Second
	}
	if cfg.AI.DefaultModel == "" {
		cfg.AI.DefaultModel = "gpt-4o-mini"
	}
}
