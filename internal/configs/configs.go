/*
Package configs is responsible for loading and validating the client's configuration settings.

Values come from command-line flags, CHATLINE_* environment variables and built-in defaults,
in that order of precedence. Keys are kebab-case; the matching environment variable replaces
dashes with underscores (server-url -> CHATLINE_SERVER_URL).
*/
package configs

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by the client.
const EnvPrefix = "CHATLINE"

// Configuration keys.
const (
	KeyEnvironment    = "environment"
	KeyServerURL      = "server-url"
	KeySocketPath     = "socket-path"
	KeyLogLevel       = "log-level"
	KeyCredentialFile = "credential-file"
	KeyRequestTimeout = "request-timeout"
	KeyTypingTTL      = "typing-ttl"
	KeyTypingTick     = "typing-tick"
	KeyTypingRate     = "typing-rate"
	KeyTypingBurst    = "typing-burst"
)

// AppConfig contains all configuration parameters required for the client to run.
type AppConfig struct {
	// General Settings
	Environment string
	LogLevel    string

	// Server Settings
	ServerURL      string
	SocketPath     string
	RequestTimeout time.Duration

	// Session Settings
	CredentialFile string

	// Typing Indicator Settings
	TypingTTL   time.Duration
	TypingTick  time.Duration
	TypingRate  float64
	TypingBurst int
}

// IsDevelopment reports whether the client runs in the development environment.
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// SocketURL returns the event stream address: the server URL with a ws(s) scheme and the
// socket path.
func (c *AppConfig) SocketURL() string {
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return ""
	}
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = c.SocketPath
	return u.String()
}

// DefaultCredentialFile is where the session credential is kept unless configured otherwise.
func DefaultCredentialFile() string {
	return filepath.Join(xdg.DataHome, "chatline", "session.toml")
}

// New returns a viper instance reading CHATLINE_* variables, with every default set.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyEnvironment, "development")
	v.SetDefault(KeyServerURL, "http://localhost:8080")
	v.SetDefault(KeySocketPath, "/ws")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyCredentialFile, DefaultCredentialFile())
	v.SetDefault(KeyRequestTimeout, 10*time.Second)
	v.SetDefault(KeyTypingTTL, 2*time.Second)
	v.SetDefault(KeyTypingTick, 100*time.Millisecond)
	v.SetDefault(KeyTypingRate, 4.0)
	v.SetDefault(KeyTypingBurst, 2)
	return v
}

// BindFlags defines the persistent flags on fs and binds them to v.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	fs.String(KeyEnvironment, v.GetString(KeyEnvironment), "running environment (development or production)")
	fs.String(KeyServerURL, v.GetString(KeyServerURL), "chat server base URL")
	fs.String(KeySocketPath, v.GetString(KeySocketPath), "event stream path on the chat server")
	fs.String(KeyLogLevel, v.GetString(KeyLogLevel), "log level (trace, debug, info, warn, error)")
	fs.String(KeyCredentialFile, v.GetString(KeyCredentialFile), "file holding the session credential")
	fs.Duration(KeyRequestTimeout, v.GetDuration(KeyRequestTimeout), "timeout of a single API request")

	for _, key := range []string{KeyEnvironment, KeyServerURL, KeySocketPath, KeyLogLevel, KeyCredentialFile, KeyRequestTimeout} {
		if err := v.BindPFlag(key, fs.Lookup(key)); err != nil {
			return fmt.Errorf("bind flag %s: %w", key, err)
		}
	}
	return nil
}

// LoadConfig reads the configuration from v and validates it.
func LoadConfig(v *viper.Viper) (*AppConfig, error) {
	cfg := &AppConfig{
		Environment:    strings.ToLower(strings.TrimSpace(v.GetString(KeyEnvironment))),
		LogLevel:       v.GetString(KeyLogLevel),
		ServerURL:      strings.TrimRight(v.GetString(KeyServerURL), "/"),
		SocketPath:     v.GetString(KeySocketPath),
		CredentialFile: v.GetString(KeyCredentialFile),
	}

	// --- General Settings ---
	switch cfg.Environment {
	case "development", "production":
	default:
		return nil, fmt.Errorf("invalid %s %q: must be development or production", KeyEnvironment, cfg.Environment)
	}

	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", KeyLogLevel, err)
	}

	// --- Server Settings ---
	u, err := url.Parse(cfg.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", KeyServerURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid %s %q: an http(s) URL with a host is required", KeyServerURL, cfg.ServerURL)
	}

	if !strings.HasPrefix(cfg.SocketPath, "/") {
		cfg.SocketPath = "/" + cfg.SocketPath
	}

	if cfg.RequestTimeout, err = duration(v, KeyRequestTimeout); err != nil {
		return nil, err
	}

	// --- Session Settings ---
	if cfg.CredentialFile == "" {
		return nil, fmt.Errorf("%s must not be empty", KeyCredentialFile)
	}

	// --- Typing Indicator Settings ---
	if cfg.TypingTTL, err = duration(v, KeyTypingTTL); err != nil {
		return nil, err
	}
	if cfg.TypingTick, err = duration(v, KeyTypingTick); err != nil {
		return nil, err
	}
	if cfg.TypingTick > cfg.TypingTTL {
		return nil, fmt.Errorf("%s (%s) must not exceed %s (%s)", KeyTypingTick, cfg.TypingTick, KeyTypingTTL, cfg.TypingTTL)
	}

	cfg.TypingRate = v.GetFloat64(KeyTypingRate)
	if cfg.TypingRate <= 0 {
		return nil, fmt.Errorf("invalid %s %v: must be positive", KeyTypingRate, cfg.TypingRate)
	}
	cfg.TypingBurst = v.GetInt(KeyTypingBurst)
	if cfg.TypingBurst < 1 {
		return nil, fmt.Errorf("invalid %s %d: must be at least 1", KeyTypingBurst, cfg.TypingBurst)
	}

	return cfg, nil
}

func duration(v *viper.Viper, key string) (time.Duration, error) {
	d := v.GetDuration(key)
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: a positive duration is required", key, v.GetString(key))
	}
	return d, nil
}
