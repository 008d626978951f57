package config

import (
	"time"

	"github.com/vietddude/hookbridge/internal/dispatch"
	redisclient "github.com/vietddude/hookbridge/internal/infra/redis"
	"github.com/vietddude/hookbridge/internal/infra/storage/postgres"
	"github.com/vietddude/hookbridge/internal/queue"
	"github.com/vietddude/hookbridge/internal/resilience/breaker"
	"github.com/vietddude/hookbridge/internal/resilience/retry"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig       `yaml:"server"`
	Logging  LoggingConfig      `yaml:"logging"`
	Redis    redisclient.Config `yaml:"redis"`
	Database postgres.Config    `yaml:"database"`
	Dispatch dispatch.Config    `yaml:"dispatch"`
	Retry    retry.Policy       `yaml:"retry"`
	Breaker  breaker.Config     `yaml:"breaker"`
	Fallback FallbackConfig     `yaml:"fallback"`
	Queue    queue.Config       `yaml:"queue"`
	Notify   NotifyConfig       `yaml:"notify"`
	History  HistoryConfig      `yaml:"history"`
	Hooks    []HookConfig       `yaml:"hooks"`
}

// HistoryConfig controls delivery history retention. Zero days disables
// pruning.
type HistoryConfig struct {
	RetentionDays int `yaml:"retention_days"`
}

// Retention returns the retention window.
func (h HistoryConfig) Retention() time.Duration {
	return time.Duration(h.RetentionDays) * 24 * time.Hour
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port             int           `yaml:"port"`
	ExecutionTimeout time.Duration `yaml:"execution_timeout"`
	StopGracePeriod  time.Duration `yaml:"stop_grace_period"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// FallbackConfig holds payload degradation settings. MaxLevel is parsed
// into a rank at wiring time.
type FallbackConfig struct {
	MaxLevel            string `yaml:"max_level"`
	IncludeErrorDetails bool   `yaml:"include_error_details"`
}

// NotifyConfig holds the delivery channels.
type NotifyConfig struct {
	Slack           []SlackChannelConfig `yaml:"slack"`
	Gateway         GatewayConfig        `yaml:"gateway"`
	AdminWebhookURL string               `yaml:"admin_webhook_url"`
	Timeout         time.Duration        `yaml:"timeout"`
}

// SlackChannelConfig is one named Slack incoming webhook.
type SlackChannelConfig struct {
	Name       string `yaml:"name"`
	WebhookURL string `yaml:"webhook_url"`
}

// GatewayConfig holds the gRPC notification gateway endpoint. Empty
// endpoint disables the gateway channel.
type GatewayConfig struct {
	Endpoint string `yaml:"endpoint"`
}

// HookConfig declares one notification hook: which events it matches and
// which channel it delivers to.
type HookConfig struct {
	ID         string   `yaml:"id"`
	Enabled    *bool    `yaml:"enabled"` // nil = enabled
	Channel    string   `yaml:"channel"` // slack channel name or "gateway"
	Projects   []string `yaml:"projects"`
	Categories []string `yaml:"categories"`
}

// IsEnabled resolves the tri-state enabled flag.
func (h HookConfig) IsEnabled() bool {
	return h.Enabled == nil || *h.Enabled
}
