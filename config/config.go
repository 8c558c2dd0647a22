package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/thinkocapo/board/observability"
)

// Config holds application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Workspace WorkspaceConfig `mapstructure:"workspace"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	ListenAddr   string        `mapstructure:"listen_addr"`
	SSEKeepalive time.Duration `mapstructure:"sse_keepalive"`
}

// EngineConfig tunes the move transaction and the metrics workload.
type EngineConfig struct {
	ValidateLatency   time.Duration `mapstructure:"validate_latency"`
	CommitLatency     time.Duration `mapstructure:"commit_latency"`
	MetricsIterations int           `mapstructure:"metrics_iterations"`
	MaxBreadcrumbs    int           `mapstructure:"max_breadcrumbs"`
	AsyncWorkers      int           `mapstructure:"async_workers"`
	AsyncBuffer       int           `mapstructure:"async_buffer"`
	AsyncHandoff      time.Duration `mapstructure:"async_handoff"`
}

// RedisConfig is optional; an empty URL disables caching and fan-out.
type RedisConfig struct {
	URL            string        `mapstructure:"url"`
	MetricsTTL     time.Duration `mapstructure:"metrics_ttl"`
	IdempotencyTTL time.Duration `mapstructure:"idempotency_ttl"`
}

type WorkspaceConfig struct {
	ID     string       `mapstructure:"id"`
	Type   string       `mapstructure:"type"`
	Sprint SprintConfig `mapstructure:"sprint"`
}

type SprintConfig struct {
	ID       string `mapstructure:"id"`
	Goal     string `mapstructure:"goal"`
	Team     string `mapstructure:"team"`
	Velocity int    `mapstructure:"velocity"`
}

type LogConfig struct {
	Debug  bool   `mapstructure:"debug"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from an optional file and the environment.
// Env var overrides use prefix BOARD_, e.g. BOARD_ENGINE_COMMIT_LATENCY=0s.
func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("server.sse_keepalive", 15*time.Second)
	v.SetDefault("engine.validate_latency", 120*time.Millisecond)
	v.SetDefault("engine.commit_latency", 340*time.Millisecond)
	v.SetDefault("engine.metrics_iterations", 6_000_000)
	v.SetDefault("engine.max_breadcrumbs", observability.DefaultMaxBreadcrumbs)
	v.SetDefault("engine.async_workers", 8)
	v.SetDefault("engine.async_buffer", 256)
	v.SetDefault("engine.async_handoff", 15*time.Millisecond)
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.metrics_ttl", 10*time.Minute)
	v.SetDefault("redis.idempotency_ttl", 24*time.Hour)
	v.SetDefault("workspace.id", "default")
	v.SetDefault("workspace.type", "enterprise")
	v.SetDefault("workspace.sprint.id", "sprint-2024")
	v.SetDefault("workspace.sprint.goal", "Q1 Demo")
	v.SetDefault("workspace.sprint.team", "Platform Engineering")
	v.SetDefault("workspace.sprint.velocity", 42)
	v.SetDefault("log.debug", false)
	v.SetDefault("log.format", "json")

	if cfgPath := os.Getenv("BOARD_CONFIG"); cfgPath != "" {
		v.SetConfigFile(cfgPath)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", cfgPath, err)
		}
	}

	v.SetEnvPrefix("BOARD")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) validate() error {
	switch {
	case c.Engine.ValidateLatency < 0 || c.Engine.CommitLatency < 0:
		return fmt.Errorf("engine latencies must not be negative")
	case c.Engine.MetricsIterations < 0:
		return fmt.Errorf("engine.metrics_iterations must not be negative")
	case c.Engine.AsyncWorkers <= 0:
		return fmt.Errorf("engine.async_workers must be greater than zero")
	case c.Redis.MetricsTTL < 0 || c.Redis.IdempotencyTTL < 0:
		return fmt.Errorf("redis ttls must not be negative")
	case c.Workspace.ID == "":
		return fmt.Errorf("workspace.id is required")
	case c.Log.Format != "json" && c.Log.Format != "text":
		return fmt.Errorf("log.format must be json or text, got %q", c.Log.Format)
	}
	return nil
}

// Scope builds the observability scope every record of the workspace carries.
func (w WorkspaceConfig) Scope() observability.Scope {
	return observability.Scope{}.
		WithTag("workspace_type", w.Type).
		WithTag("workspace_id", w.ID).
		WithContext("sprint_data", map[string]any{
			"id":       w.Sprint.ID,
			"goal":     w.Sprint.Goal,
			"team":     w.Sprint.Team,
			"velocity": w.Sprint.Velocity,
		})
}
