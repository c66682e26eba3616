package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"signalchat/internal/domain"
)

const EnvPrefix = "SIGNALCHAT_"

type Config struct {
	LogLevel   string           `koanf:"log_level"`
	Signal     SignalConfig     `koanf:"signal"`
	Notifier   NotifierConfig   `koanf:"notifier"`
	Checkpoint CheckpointConfig `koanf:"checkpoint"`
	Run        RunConfig        `koanf:"run"`
}

type SignalConfig struct {
	BaseURL  string          `koanf:"base_url"`
	APIKey   string          `koanf:"api_key"`
	OrgID    string          `koanf:"org_id"`
	Endpoint domain.Endpoint `koanf:"endpoint"`
}

type NotifierConfig struct {
	WebhookURL string `koanf:"webhook_url"`
}

type CheckpointConfig struct {
	Backend   string `koanf:"backend"`
	Path      string `koanf:"path"`
	RedisAddr string `koanf:"redis_addr"`
	RedisKey  string `koanf:"redis_key"`
}

type RunConfig struct {
	Interval time.Duration `koanf:"interval"`
}

const (
	BackendFile  = "file"
	BackendRedis = "redis"
)

// Error reports a missing or invalid setting.
type Error struct {
	Key    string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config %s: %s", e.Key, e.Reason)
}

func defaults() map[string]any {
	return map[string]any{
		"log_level":            "info",
		"signal.endpoint":      string(domain.EndpointThreads),
		"checkpoint.backend":   BackendFile,
		"checkpoint.path":      "updated_at.txt",
		"checkpoint.redis_key": "signalchat:updated_at",
		"run.interval":         "0s",
	}
}

// Load reads the YAML file at path (if it exists) and applies SIGNALCHAT_*
// environment overrides on top. A double underscore separates nested keys,
// e.g. SIGNALCHAT_SIGNAL__API_KEY sets signal.api_key.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	for key, v := range defaults() {
		if err := k.Set(key, v); err != nil {
			return nil, err
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

func (c *Config) Validate() error {
	if !c.Signal.Endpoint.Valid() {
		return &Error{Key: "signal.endpoint", Reason: fmt.Sprintf("unknown endpoint %q", c.Signal.Endpoint)}
	}
	if c.Signal.BaseURL == "" {
		return &Error{Key: "signal.base_url", Reason: "required"}
	}
	if c.Signal.APIKey == "" && c.Signal.Endpoint != domain.EndpointFeed {
		return &Error{Key: "signal.api_key", Reason: "required"}
	}
	if c.Notifier.WebhookURL == "" {
		return &Error{Key: "notifier.webhook_url", Reason: "required"}
	}

	switch c.Checkpoint.Backend {
	case BackendFile:
		if c.Checkpoint.Path == "" {
			return &Error{Key: "checkpoint.path", Reason: "required"}
		}
	case BackendRedis:
		if c.Checkpoint.RedisAddr == "" {
			return &Error{Key: "checkpoint.redis_addr", Reason: "required"}
		}
		if c.Checkpoint.RedisKey == "" {
			return &Error{Key: "checkpoint.redis_key", Reason: "required"}
		}
	default:
		return &Error{Key: "checkpoint.backend", Reason: fmt.Sprintf("unknown backend %q", c.Checkpoint.Backend)}
	}

	if c.Run.Interval < 0 {
		return &Error{Key: "run.interval", Reason: "must not be negative"}
	}

	return nil
}
