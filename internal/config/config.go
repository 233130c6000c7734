package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Config is the root configuration for the chatfunnel gateway.
type Config struct {
	General   GeneralConfig   `json:"general"`
	Server    ServerConfig    `json:"server"`
	Webhook   WebhookConfig   `json:"webhook"`
	Channels  ChannelsConfig  `json:"channels"`
	Providers ProvidersConfig `json:"providers"`
	Store     StoreConfig     `json:"store"`
	Pipeline  PipelineConfig  `json:"pipeline"`
	Business  BusinessConfig  `json:"business"`
}

type GeneralConfig struct {
	LogLevel string `json:"logLevel"` // debug | info | warn | error
	LogFile  string `json:"logFile,omitempty"`
}

type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// WebhookConfig holds the platform-facing endpoint secrets.
type WebhookConfig struct {
	Path        string `json:"path"`
	VerifyToken string `json:"verifyToken"` // GET handshake token
	AppSecret   string `json:"appSecret"`   // HMAC signing secret
}

type ChannelsConfig struct {
	Instagram InstagramConfig `json:"instagram"`
	Messenger MessengerConfig `json:"messenger"`
	WhatsApp  WhatsAppConfig  `json:"whatsapp"`

	// GraphAPIBase overrides the Graph API base URL (tests only).
	GraphAPIBase string `json:"graphApiBase,omitempty"`
}

type InstagramConfig struct {
	AccessToken string `json:"accessToken"`
}

type MessengerConfig struct {
	PageToken string `json:"pageToken"`
}

type WhatsAppConfig struct {
	AccessToken   string `json:"accessToken"`
	PhoneNumberID string `json:"phoneNumberId"`
}

type ProvidersConfig struct {
	Gemini GeminiConfig `json:"gemini"`
	OpenAI OpenAIConfig `json:"openai,omitempty"`
}

type GeminiConfig struct {
	APIKey string `json:"apiKey"`
	Model  string `json:"model"`
}

// OpenAIConfig configures the optional OpenAI-compatible failover provider.
type OpenAIConfig struct {
	Enabled bool   `json:"enabled"`
	APIKey  string `json:"apiKey,omitempty"`
	APIBase string `json:"apiBase,omitempty"`
	Model   string `json:"model,omitempty"`
}

type StoreConfig struct {
	DBPath string `json:"dbPath"`
}

type PipelineConfig struct {
	Workers      int `json:"workers"`      // max concurrent message pipelines
	QueueSize    int `json:"queueSize"`    // bus buffer size
	HistoryLimit int `json:"historyLimit"` // turns loaded as model context
}

// BusinessConfig feeds the sales persona and the human-contact fallback path.
type BusinessConfig struct {
	Name         string `json:"name"`
	ContactPhone string `json:"contactPhone"`
	Services     string `json:"services,omitempty"` // one-line service catalog summary
}

// DefaultConfigDir returns the default config directory (~/.chatfunnel).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".chatfunnel"
	}
	return filepath.Join(home, ".chatfunnel")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cannot resolve home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.Store.DBPath = expandPath(cfg.Store.DBPath)
	cfg.General.LogFile = expandPath(cfg.General.LogFile)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 0 and 65535")
	}
	if !strings.HasPrefix(cfg.Webhook.Path, "/") {
		errs = append(errs, "webhook.path must start with /")
	}
	switch cfg.General.LogLevel {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}

	if cfg.Pipeline.Workers < 1 || cfg.Pipeline.Workers > 100 {
		errs = append(errs, "pipeline.workers must be between 1 and 100")
	}
	if cfg.Pipeline.QueueSize < 1 {
		errs = append(errs, "pipeline.queueSize must be >= 1")
	}
	if cfg.Pipeline.HistoryLimit < 1 {
		errs = append(errs, "pipeline.historyLimit must be >= 1")
	}

	if cfg.Providers.OpenAI.Enabled && cfg.Providers.OpenAI.APIKey == "" {
		errs = append(errs, "providers.openai.apiKey is required when openai is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
