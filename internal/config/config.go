package config

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied before validation.
const (
	DefaultPort        = 3000
	DefaultLogLevel    = "INFO"
	DefaultTokenURL    = "https://auth.noones.com/oauth2/token"
	DefaultAPIBaseURL  = "https://api.noones.com"
	DefaultHTTPTimeout = 30 * time.Second
)

// Config holds the complete relay configuration. It is loaded once at
// startup and treated as read-only afterwards, so it is safe to share
// across request handlers without locking.
type Config struct {
	// Port is the HTTP listen port.
	Port int `yaml:"port"`

	// LogLevel is one of DEBUG, INFO, WARN, ERROR.
	LogLevel string `yaml:"log_level"`

	// OfferHashes lists the offers whose trades receive an autogreeting.
	OfferHashes []string `yaml:"offer_hashes"`

	// GreetingMessage is the chat message posted when a watched trade starts.
	GreetingMessage string `yaml:"greeting_message"`

	// GreetingDelayMS is how long to wait before posting the greeting,
	// in milliseconds.
	GreetingDelayMS int `yaml:"greeting_delay_ms"`

	// ClientID and ClientSecret are the platform OAuth2 credentials.
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`

	// PublicKey is the platform's base64-encoded Ed25519 public key.
	// When set, inbound webhooks must carry a valid signature.
	PublicKey string `yaml:"public_key,omitempty"`

	// WebhookURL is the externally-visible URL of the /webhook endpoint,
	// as registered with the platform. Required when PublicKey is set
	// because it is part of the signed canonical string.
	WebhookURL string `yaml:"webhook_url,omitempty"`

	// TokenURL and APIBaseURL default to the live platform endpoints.
	TokenURL   string `yaml:"token_url,omitempty"`
	APIBaseURL string `yaml:"api_base_url,omitempty"`

	// HTTPTimeout bounds every outbound platform call, token exchange
	// included.
	HTTPTimeout time.Duration `yaml:"http_timeout,omitempty"`

	// offerSet is the membership index over OfferHashes.
	offerSet map[string]struct{}
}

// Load reads configuration from an optional YAML file, then applies
// environment overrides. Environment variables always win, matching the
// original env-only deployment interface.
func Load(configPath string) (*Config, error) {
	cfg := &Config{
		Port:        DefaultPort,
		LogLevel:    DefaultLogLevel,
		TokenURL:    DefaultTokenURL,
		APIBaseURL:  DefaultAPIBaseURL,
		HTTPTimeout: DefaultHTTPTimeout,
	}

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("config file not found: %s\n"+
				"Hint: check the path or run with --config flag", configPath)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cfg.offerSet = make(map[string]struct{}, len(cfg.OfferHashes))
	for _, h := range cfg.OfferHashes {
		cfg.offerSet[h] = struct{}{}
	}

	return cfg, nil
}

// applyEnv overrides config fields from environment variables.
func applyEnv(cfg *Config) error {
	if v := os.Getenv("OFFER_HASHES"); v != "" {
		cfg.OfferHashes = splitOfferHashes(v)
	}
	if v := os.Getenv("NOONES_AUTOGREETING_MESSAGE"); v != "" {
		cfg.GreetingMessage = v
	}
	if v := os.Getenv("NOONES_AUTOGREETING_DELAY"); v != "" {
		delay, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("NOONES_AUTOGREETING_DELAY must be an integer (milliseconds), got %q", v)
		}
		cfg.GreetingDelayMS = delay
	}
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT must be an integer, got %q", v)
		}
		cfg.Port = port
	}
	if v := os.Getenv("NOONES_CLIENT_ID"); v != "" {
		cfg.ClientID = v
	}
	if v := os.Getenv("NOONES_CLIENT_SECRET"); v != "" {
		cfg.ClientSecret = v
	}
	if v := os.Getenv("NOONES_PUBLIC_KEY"); v != "" {
		cfg.PublicKey = v
	}
	if v := os.Getenv("NOONES_WEBHOOK_URL"); v != "" {
		cfg.WebhookURL = v
	}
	if v := os.Getenv("NOONES_TOKEN_URL"); v != "" {
		cfg.TokenURL = v
	}
	if v := os.Getenv("NOONES_API_URL"); v != "" {
		cfg.APIBaseURL = v
	}
	if v := os.Getenv("NOONES_HTTP_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("NOONES_HTTP_TIMEOUT must be a duration like \"30s\", got %q", v)
		}
		cfg.HTTPTimeout = d
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	return nil
}

// splitOfferHashes parses the comma-separated OFFER_HASHES value,
// trimming whitespace and dropping empty entries.
func splitOfferHashes(v string) []string {
	parts := strings.Split(v, ",")
	hashes := make([]string, 0, len(parts))
	for _, p := range parts {
		if h := strings.TrimSpace(p); h != "" {
			hashes = append(hashes, h)
		}
	}
	return hashes
}

// validate checks the configuration for misconfigurations that would
// otherwise only surface on the first live request.
func validate(cfg *Config) error {
	if cfg.ClientID == "" {
		return fmt.Errorf("client_id is required (NOONES_CLIENT_ID)")
	}
	if cfg.ClientSecret == "" {
		return fmt.Errorf("client_secret is required (NOONES_CLIENT_SECRET)")
	}
	if len(cfg.OfferHashes) == 0 {
		return fmt.Errorf("at least one offer hash is required (OFFER_HASHES, comma-separated)")
	}
	if cfg.GreetingMessage == "" {
		return fmt.Errorf("greeting_message is required (NOONES_AUTOGREETING_MESSAGE)")
	}
	if cfg.GreetingDelayMS < 0 {
		return fmt.Errorf("greeting_delay_ms must be non-negative, got %d", cfg.GreetingDelayMS)
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("port must be in 1..65535, got %d", cfg.Port)
	}
	if cfg.HTTPTimeout <= 0 {
		return fmt.Errorf("http_timeout must be positive, got %s", cfg.HTTPTimeout)
	}
	if cfg.PublicKey != "" {
		key, err := base64.StdEncoding.DecodeString(cfg.PublicKey)
		if err != nil {
			return fmt.Errorf("public_key is not valid base64: %w", err)
		}
		if len(key) != ed25519.PublicKeySize {
			return fmt.Errorf("public_key must decode to %d bytes, got %d", ed25519.PublicKeySize, len(key))
		}
		if cfg.WebhookURL == "" {
			return fmt.Errorf("webhook_url is required when public_key is set (NOONES_WEBHOOK_URL)")
		}
	}
	return nil
}

// HasOffer reports whether the given offer hash is watched.
func (c *Config) HasOffer(hash string) bool {
	_, ok := c.offerSet[hash]
	return ok
}

// Signed reports whether webhook signature verification is enabled.
func (c *Config) Signed() bool {
	return c.PublicKey != ""
}

// GreetingDelay returns the autogreeting delay as a duration.
func (c *Config) GreetingDelay() time.Duration {
	return time.Duration(c.GreetingDelayMS) * time.Millisecond
}

// Listen returns the HTTP listen address.
func (c *Config) Listen() string {
	return fmt.Sprintf(":%d", c.Port)
}
