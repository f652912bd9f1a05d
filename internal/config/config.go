// Package config loads and validates the guildport configuration:
// defaults, then the JSON config file, then environment overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultPath is where the config file lives unless --config says otherwise.
const DefaultPath = "config/config.json"

// minTokenLength catches obviously truncated tokens before any request
// is made; real platform tokens are much longer.
const minTokenLength = 20

// Config is the top-level guildport configuration.
type Config struct {
	DiscordToken string `json:"discord_token"`
	FluxerToken  string `json:"fluxer_token"`

	// API base URL overrides, mainly for testing against staging.
	DiscordBaseURL string `json:"discord_base_url,omitempty"`
	FluxerBaseURL  string `json:"fluxer_base_url,omitempty"`

	// MaxRateLimitRetries bounds how many rate-limit waits a single API
	// call absorbs before giving up on it.
	MaxRateLimitRetries int `json:"max_rate_limit_retries"`

	// Concurrency is the number of creation operations in flight at once.
	Concurrency int `json:"concurrency"`

	// TieBreak picks among multiple equally-named destination entities:
	// "lowest-position" or "first-listed".
	TieBreak string `json:"tie_break"`

	Logging LoggingConfig `json:"logging"`
}

type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// Default returns a Config with all defaults applied.
func Default() *Config {
	return &Config{
		MaxRateLimitRetries: 5,
		Concurrency:         4,
		TieBreak:            "lowest-position",
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration with priority: defaults, then the JSON file,
// then environment variables. Validation is fail-fast: a config problem
// surfaces here, before any credential is used.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultPath
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	cfg.DiscordToken = CleanToken(cfg.DiscordToken)
	cfg.FluxerToken = CleanToken(cfg.FluxerToken)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.DiscordToken == "" {
		return fmt.Errorf("discord_token is required (set it in the config file or GUILDPORT_DISCORD_TOKEN)")
	}
	if len(c.DiscordToken) < minTokenLength {
		return fmt.Errorf("discord_token looks truncated (%d characters)", len(c.DiscordToken))
	}
	if c.FluxerToken == "" {
		return fmt.Errorf("fluxer_token is required (set it in the config file or GUILDPORT_FLUXER_TOKEN)")
	}
	if len(c.FluxerToken) < minTokenLength {
		return fmt.Errorf("fluxer_token looks truncated (%d characters)", len(c.FluxerToken))
	}
	if c.MaxRateLimitRetries < 1 {
		return fmt.Errorf("max_rate_limit_retries must be at least 1, got %d", c.MaxRateLimitRetries)
	}
	if c.Concurrency < 1 || c.Concurrency > 16 {
		return fmt.Errorf("concurrency must be between 1 and 16, got %d", c.Concurrency)
	}
	switch c.TieBreak {
	case "lowest-position", "first-listed":
	default:
		return fmt.Errorf("tie_break must be \"lowest-position\" or \"first-listed\", got %q", c.TieBreak)
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error; got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format)
	}
	return nil
}

// CleanToken normalizes a pasted token: surrounding whitespace, quotes
// from shell copy-paste, and a "Bearer " prefix are all stripped.
func CleanToken(token string) string {
	token = strings.TrimSpace(token)
	token = strings.Trim(token, `"'`)
	token = strings.TrimPrefix(token, "Bearer ")
	return strings.TrimSpace(token)
}

// GenerateDefault writes a starter config file to the given path.
func GenerateDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(Default(), "", "  ")
	if err != nil {
		return err
	}
	// Tokens hold credentials; keep the file private.
	return os.WriteFile(path, append(data, '\n'), 0o600)
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("GUILDPORT_DISCORD_TOKEN"); v != "" {
		cfg.DiscordToken = v
	}
	if v := os.Getenv("GUILDPORT_FLUXER_TOKEN"); v != "" {
		cfg.FluxerToken = v
	}
	if v := os.Getenv("GUILDPORT_DISCORD_BASE_URL"); v != "" {
		cfg.DiscordBaseURL = v
	}
	if v := os.Getenv("GUILDPORT_FLUXER_BASE_URL"); v != "" {
		cfg.FluxerBaseURL = v
	}
	if err := envInt("GUILDPORT_MAX_RATE_LIMIT_RETRIES", &cfg.MaxRateLimitRetries); err != nil {
		return err
	}
	if err := envInt("GUILDPORT_CONCURRENCY", &cfg.Concurrency); err != nil {
		return err
	}
	if v := os.Getenv("GUILDPORT_TIE_BREAK"); v != "" {
		cfg.TieBreak = v
	}
	if v := os.Getenv("GUILDPORT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("GUILDPORT_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	return nil
}

// envInt reads an integer from the named environment variable. Returns
// an error if the value is set but not a valid integer.
func envInt(name string, dest *int) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %q is not an integer", name, v)
	}
	*dest = n
	return nil
}
