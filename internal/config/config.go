package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/kookworks/kgate/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "kgate.json"

	// ModeWebSocket receives events over a gateway websocket.
	ModeWebSocket = "websocket"

	// ModeWebhook receives events as signed HTTP callbacks.
	ModeWebhook = "webhook"
)

// Defaults for gateway timing. Durations are JSON strings such as
// "25s" so the file stays readable.
const (
	DefaultHelloTimeout      = 5 * time.Second
	DefaultHeartbeatInterval = 25 * time.Second
	DefaultHeartbeatJitter   = 10 * time.Second
	DefaultHeartbeatTimeout  = 6 * time.Second
	DefaultReconnectBase     = 1 * time.Second
	DefaultMaxReconnects     = 10
	DefaultWebhookAddr       = ":8080"
	DefaultWebhookPath       = "/kook/webhook"
	DefaultMetricsAddr       = ""
)

// Config represents the complete kgate.json configuration.
type Config struct {
	// Token is the bot token used for the gateway and the HTTP API.
	Token string `json:"token"`

	// Mode selects the event receiver: "websocket" (default) or "webhook".
	Mode string `json:"mode,omitempty"`

	// Compress requests zlib-compressed gateway frames.
	Compress bool `json:"compress,omitempty"`

	// EncryptKey is the shared AES key for encrypted frames. Empty
	// means frames arrive in the clear.
	EncryptKey string `json:"encryptKey,omitempty"`

	// VerifyToken authenticates webhook callbacks. Required in
	// webhook mode.
	VerifyToken string `json:"verifyToken,omitempty"`

	// Ignore drops messages before dispatch: "bot", "self", or empty.
	Ignore string `json:"ignore,omitempty"`

	// Gateway contains session timing configuration.
	Gateway GatewayConfig `json:"gateway,omitempty"`

	// Webhook contains the HTTP callback listener configuration.
	Webhook WebhookConfig `json:"webhook,omitempty"`

	// MetricsAddr exposes Prometheus metrics when non-empty,
	// e.g. ":9090".
	MetricsAddr string `json:"metricsAddr,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// GatewayConfig contains timing knobs for the websocket session.
type GatewayConfig struct {
	// HelloTimeout bounds the wait for the hello frame after connect.
	HelloTimeout Duration `json:"helloTimeout,omitempty"`

	// HeartbeatInterval is the base interval between pings.
	HeartbeatInterval Duration `json:"heartbeatInterval,omitempty"`

	// HeartbeatJitter is the maximum random delay added to each interval.
	HeartbeatJitter Duration `json:"heartbeatJitter,omitempty"`

	// HeartbeatTimeout bounds the wait for a pong after each ping.
	HeartbeatTimeout Duration `json:"heartbeatTimeout,omitempty"`

	// ReconnectBase is the first reconnect delay; each further
	// attempt doubles it.
	ReconnectBase Duration `json:"reconnectBase,omitempty"`

	// MaxReconnects is the attempt ceiling before the session gives up.
	MaxReconnects int `json:"maxReconnects,omitempty"`
}

// WebhookConfig contains the HTTP callback listener configuration.
type WebhookConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `json:"addr,omitempty"`

	// Path is the callback route.
	Path string `json:"path,omitempty"`
}

// Duration is a time.Duration that marshals as a string like "25s".
type Duration time.Duration

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON implements json.Unmarshaler. It accepts a duration
// string or a bare number of nanoseconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, perr := time.ParseDuration(s)
		if perr != nil {
			return perr
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*d = Duration(n)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		Mode: ModeWebSocket,
		Gateway: GatewayConfig{
			HelloTimeout:      Duration(DefaultHelloTimeout),
			HeartbeatInterval: Duration(DefaultHeartbeatInterval),
			HeartbeatJitter:   Duration(DefaultHeartbeatJitter),
			HeartbeatTimeout:  Duration(DefaultHeartbeatTimeout),
			ReconnectBase:     Duration(DefaultReconnectBase),
			MaxReconnects:     DefaultMaxReconnects,
		},
		Webhook: WebhookConfig{
			Addr: DefaultWebhookAddr,
			Path: DefaultWebhookPath,
		},
		MetricsAddr: DefaultMetricsAddr,
	}
}

// Load reads configuration from the specified directory. It looks for
// kgate.json in the directory.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Newf(errors.CategoryConfig, "no %s found in %s", ConfigFileName, filepath.Dir(path))
		}
		return nil, errors.Newf(errors.CategoryConfig, "read config: %v", err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.Newf(errors.CategoryConfig, "parse %s: %v", ConfigFileName, err)
	}

	cfg.configPath = path
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string { return c.configPath }

// applyDefaults fills in default values for zero fields. A file that
// sets only some of a section keeps defaults for the rest.
func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = ModeWebSocket
	}
	if c.Gateway.HelloTimeout == 0 {
		c.Gateway.HelloTimeout = Duration(DefaultHelloTimeout)
	}
	if c.Gateway.HeartbeatInterval == 0 {
		c.Gateway.HeartbeatInterval = Duration(DefaultHeartbeatInterval)
	}
	if c.Gateway.HeartbeatJitter == 0 {
		c.Gateway.HeartbeatJitter = Duration(DefaultHeartbeatJitter)
	}
	if c.Gateway.HeartbeatTimeout == 0 {
		c.Gateway.HeartbeatTimeout = Duration(DefaultHeartbeatTimeout)
	}
	if c.Gateway.ReconnectBase == 0 {
		c.Gateway.ReconnectBase = Duration(DefaultReconnectBase)
	}
	if c.Gateway.MaxReconnects == 0 {
		c.Gateway.MaxReconnects = DefaultMaxReconnects
	}
	if c.Webhook.Addr == "" {
		c.Webhook.Addr = DefaultWebhookAddr
	}
	if c.Webhook.Path == "" {
		c.Webhook.Path = DefaultWebhookPath
	}
}

// Validate checks the configuration for contradictions.
func (c *Config) Validate() error {
	if c.Token == "" {
		return errors.Newf(errors.CategoryConfig, "token is required")
	}
	switch c.Mode {
	case ModeWebSocket, ModeWebhook:
	default:
		return errors.Newf(errors.CategoryConfig, "unknown mode %q (want %q or %q)", c.Mode, ModeWebSocket, ModeWebhook)
	}
	if c.Mode == ModeWebhook && c.VerifyToken == "" {
		return errors.Newf(errors.CategoryConfig, "verifyToken is required in webhook mode")
	}
	switch c.Ignore {
	case "", "bot", "self":
	default:
		return errors.Newf(errors.CategoryConfig, "unknown ignore policy %q", c.Ignore)
	}
	if c.Gateway.MaxReconnects < 1 {
		return errors.Newf(errors.CategoryConfig, "maxReconnects must be at least 1")
	}
	return nil
}
