// Package config loads the runtime's environment-driven configuration into
// a single immutable struct, following the teacher's env-expand-then-default
// pattern without its $include/JSON5 file layering.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the runtime's full configuration surface, read once at process
// start and passed explicitly to every constructor.
type Config struct {
	OpenAIAPIKey  string        `yaml:"openai_api_key"`
	OpenAIBaseURL string        `yaml:"openai_base_url"`
	TavilyAPIKey  string        `yaml:"tavily_api_key"`
	StorageRoot   string        `yaml:"storage_root"`
	HTTPAddr      string        `yaml:"http_addr"`
	MaxIterations int           `yaml:"max_iterations"`
	MaxToolCalls  int           `yaml:"max_tool_calls"`
	ToolTimeout   time.Duration `yaml:"tool_timeout"`
	LogLevel      string        `yaml:"log_level"`
}

const (
	defaultStorageRoot   = ".mini-agent/"
	defaultHTTPAddr      = ":8080"
	defaultLogLevel      = "info"
	defaultMaxIterations = 8
	defaultMaxToolCalls  = 25
	defaultToolTimeout   = 60 * time.Second
)

// Load builds a Config from an optional YAML overlay file and environment
// variables, env taking precedence over the file. path may be empty, in
// which case only environment variables and defaults apply.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); v != "" {
		cfg.OpenAIAPIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")); v != "" {
		cfg.OpenAIBaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("TAVILY_API_KEY")); v != "" {
		cfg.TavilyAPIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("MINI_AGENT_STORAGE_ROOT")); v != "" {
		cfg.StorageRoot = v
	}
	if v := strings.TrimSpace(os.Getenv("MINI_AGENT_HTTP_ADDR")); v != "" {
		cfg.HTTPAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("MINI_AGENT_LOG_LEVEL")); v != "" {
		cfg.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv("MINI_AGENT_MAX_ITERATIONS")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.MaxIterations = parsed
		}
	}
	if v := strings.TrimSpace(os.Getenv("MINI_AGENT_MAX_TOOL_CALLS")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.MaxToolCalls = parsed
		}
	}
	if v := strings.TrimSpace(os.Getenv("MINI_AGENT_TOOL_TIMEOUT")); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.ToolTimeout = parsed
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.StorageRoot == "" {
		cfg.StorageRoot = defaultStorageRoot
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = defaultHTTPAddr
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = defaultMaxIterations
	}
	if cfg.MaxToolCalls == 0 {
		cfg.MaxToolCalls = defaultMaxToolCalls
	}
	if cfg.ToolTimeout == 0 {
		cfg.ToolTimeout = defaultToolTimeout
	}
}

// ConfigValidationError collects every validation failure found in one pass,
// mirroring the teacher's all-at-once reporting style.
type ConfigValidationError struct {
	Issues []string
}

func (e *ConfigValidationError) Error() string {
	return "config validation failed:\n- " + strings.Join(e.Issues, "\n- ")
}

func validateConfig(cfg *Config) error {
	var issues []string

	if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
		issues = append(issues, "OPENAI_API_KEY is required")
	}
	if _, err := ParseLogLevel(cfg.LogLevel); err != nil {
		issues = append(issues, err.Error())
	}
	if cfg.MaxIterations <= 0 {
		issues = append(issues, "max_iterations must be > 0")
	}
	if cfg.MaxToolCalls < 0 {
		issues = append(issues, "max_tool_calls must be >= 0")
	}
	if cfg.ToolTimeout <= 0 {
		issues = append(issues, "tool_timeout must be > 0")
	}

	if len(issues) > 0 {
		return &ConfigValidationError{Issues: issues}
	}
	return nil
}

// ParseLogLevel maps the config's log_level string to a slog.Level.
func ParseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("log_level must be one of debug, info, warn, error (got %q)", level)
	}
}
