package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/hookbridge/internal/dispatch"
	"github.com/vietddude/hookbridge/internal/queue"
	"github.com/vietddude/hookbridge/internal/resilience/breaker"
	"github.com/vietddude/hookbridge/internal/resilience/retry"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ExecutionTimeout == 0 {
		cfg.Server.ExecutionTimeout = 30 * time.Second
	}
	if cfg.Server.StopGracePeriod == 0 {
		cfg.Server.StopGracePeriod = 10 * time.Second
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultPolicy
	}
	if cfg.Breaker.FailureThreshold == 0 {
		cfg.Breaker = breaker.DefaultConfig
	}
	if cfg.Queue.MaxSize == 0 {
		enabled := cfg.Queue.Enabled
		cfg.Queue = queue.DefaultConfig
		cfg.Queue.Enabled = enabled
	}
	if cfg.Dispatch.MaxBodyBytes == 0 {
		cfg.Dispatch.MaxBodyBytes = dispatch.DefaultConfig.MaxBodyBytes
	}
	if cfg.Dispatch.RateLimit == 0 {
		cfg.Dispatch.RateLimit = dispatch.DefaultConfig.RateLimit
	}
	if cfg.Dispatch.RateWindow == 0 {
		cfg.Dispatch.RateWindow = dispatch.DefaultConfig.RateWindow
	}
	if cfg.Notify.Timeout == 0 {
		cfg.Notify.Timeout = 10 * time.Second
	}
	if cfg.History.RetentionDays == 0 {
		cfg.History.RetentionDays = 30
	}
}

func validate(cfg *AppConfig) error {
	channels := map[string]bool{}
	for _, ch := range cfg.Notify.Slack {
		if ch.Name == "" {
			return fmt.Errorf("slack channel with empty name")
		}
		if channels[ch.Name] {
			return fmt.Errorf("duplicate slack channel %q", ch.Name)
		}
		channels[ch.Name] = true
	}
	if cfg.Notify.Gateway.Endpoint != "" {
		channels["gateway"] = true
	}

	seen := map[string]bool{}
	for _, h := range cfg.Hooks {
		if h.ID == "" {
			return fmt.Errorf("hook with empty id")
		}
		if seen[h.ID] {
			return fmt.Errorf("duplicate hook id %q", h.ID)
		}
		seen[h.ID] = true
		if !channels[h.Channel] {
			return fmt.Errorf("hook %q references unknown channel %q", h.ID, h.Channel)
		}
	}
	return nil
}
