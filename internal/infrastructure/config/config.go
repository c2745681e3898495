package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for onkyod.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Receivers []ReceiverConfig `yaml:"receivers"`
	Listeners []ListenerConfig `yaml:"listeners"`
	Gateway   GatewayConfig    `yaml:"gateway"`
	MQTT      MQTTConfig       `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig   `yaml:"influxdb"`
	Audit     AuditConfig      `yaml:"audit"`
	API       APIConfig        `yaml:"api"`
	WebSocket WebSocketConfig  `yaml:"websocket"`
	Logging   LoggingConfig    `yaml:"logging"`
}

// ReceiverConfig describes one attached receiver.
type ReceiverConfig struct {
	// Name identifies the receiver in MQTT topics, the API and logs.
	Name string `yaml:"name"`

	// Device is the serial device path, e.g. /dev/ttyUSB0.
	Device string `yaml:"device"`

	// Baud is the serial line speed. Unset means 9600; 0 opens the device
	// as a plain file without configuring the line.
	Baud *int `yaml:"baud"`

	// QueryOnStart queues power queries for every zone on startup.
	// Unset means true.
	QueryOnStart *bool `yaml:"query_on_start"`
}

// BaudRate returns the configured baud rate, applying the default.
func (r ReceiverConfig) BaudRate() int {
	if r.Baud == nil {
		return DefaultBaud
	}
	return *r.Baud
}

// QueriesOnStart reports whether power queries are sent on startup.
func (r ReceiverConfig) QueriesOnStart() bool {
	return r.QueryOnStart == nil || *r.QueryOnStart
}

// DefaultBaud is the ISCP serial speed.
const DefaultBaud = 9600

// ListenerConfig is one client listener. Exactly one of TCP and Unix is set.
type ListenerConfig struct {
	TCP  string `yaml:"tcp"`
	Unix string `yaml:"unix"`
}

// Network returns "tcp" or "unix" and the address to listen on.
func (l ListenerConfig) Network() (network, address string) {
	if l.Unix != "" {
		return "unix", l.Unix
	}
	return "tcp", l.TCP
}

// GatewayConfig contains event loop and client connection settings.
type GatewayConfig struct {
	CommandIntervalMS int    `yaml:"command_interval_ms"`
	MaxConnections    int    `yaml:"max_connections"`
	LineBufferSize    int    `yaml:"line_buffer_size"`
	IdleTimeout       int    `yaml:"idle_timeout"`
	WriteTimeoutMS    int    `yaml:"write_timeout_ms"`
	Banner            string `yaml:"banner"`
	QueueLimit        int    `yaml:"queue_limit"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
	TopicPrefix string              `yaml:"topic_prefix"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// AuditConfig contains the SQLite command audit trail settings.
type AuditConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
	QueueSize   int    `yaml:"queue_size"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains settings for the WebSocket line transport.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: ONKYOD_SECTION_KEY
// For example: ONKYOD_MQTT_HOST, ONKYOD_AUDIT_PATH
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			CommandIntervalMS: 80,
			MaxConnections:    20,
			LineBufferSize:    256,
			WriteTimeoutMS:    2000,
			Banner:            "OK:onkyocontrol v0.1",
			QueueLimit:        64,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "onkyod",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			TopicPrefix: "onkyod",
		},
		InfluxDB: InfluxDBConfig{
			Bucket:        "onkyod",
			BatchSize:     100,
			FlushInterval: 10,
		},
		Audit: AuditConfig{
			Path:        "./data/onkyod.db",
			WALMode:     true,
			BusyTimeout: 5,
			QueueSize:   256,
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8702,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 1024,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: ONKYOD_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// MQTT
	if v := os.Getenv("ONKYOD_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("ONKYOD_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("ONKYOD_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("ONKYOD_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Audit
	if v := os.Getenv("ONKYOD_AUDIT_PATH"); v != "" {
		cfg.Audit.Path = v
	}

	// API
	if v := os.Getenv("ONKYOD_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// Logging
	if v := os.Getenv("ONKYOD_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Every problem is collected so the operator sees them all at once.
func (c *Config) Validate() error {
	var errs []string

	// Receivers
	seen := make(map[string]bool)
	for i, r := range c.Receivers {
		switch {
		case r.Name == "":
			errs = append(errs, fmt.Sprintf("receivers[%d].name is required", i))
		case seen[r.Name]:
			errs = append(errs, fmt.Sprintf("receivers[%d].name %q is duplicated", i, r.Name))
		case strings.ContainsAny(r.Name, "/+# "):
			errs = append(errs, fmt.Sprintf("receivers[%d].name %q must not contain '/', '+', '#' or spaces", i, r.Name))
		}
		seen[r.Name] = true
		if r.Device == "" {
			errs = append(errs, fmt.Sprintf("receivers[%d].device is required", i))
		}
		if r.BaudRate() < 0 {
			errs = append(errs, fmt.Sprintf("receivers[%d].baud must not be negative", i))
		}
	}

	// Listeners
	for i, l := range c.Listeners {
		if (l.TCP == "") == (l.Unix == "") {
			errs = append(errs, fmt.Sprintf("listeners[%d] must set exactly one of tcp or unix", i))
		}
	}

	// Gateway
	if c.Gateway.CommandIntervalMS < 1 {
		errs = append(errs, "gateway.command_interval_ms must be positive")
	}
	if c.Gateway.MaxConnections < 1 {
		errs = append(errs, "gateway.max_connections must be positive")
	}
	if c.Gateway.LineBufferSize < 16 {
		errs = append(errs, "gateway.line_buffer_size must be at least 16")
	}
	if c.Gateway.IdleTimeout < 0 {
		errs = append(errs, "gateway.idle_timeout must not be negative")
	}
	if c.Gateway.QueueLimit < 1 {
		errs = append(errs, "gateway.queue_limit must be positive")
	}

	// MQTT
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.TopicPrefix == "" {
		errs = append(errs, "mqtt.topic_prefix is required when mqtt is enabled")
	}

	// InfluxDB
	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.Path == "" {
		errs = append(errs, "audit.path is required when audit is enabled")
	}

	// API
	if c.API.Enabled && (c.API.Port < 0 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 0 and 65535")
	}

	if len(c.Receivers) == 0 && len(c.Listeners) == 0 && !c.MQTT.Enabled && !c.API.Enabled {
		errs = append(errs, "nothing to do: configure at least one receiver or client surface")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetCommandInterval returns the minimum gap between device writes.
func (c *Config) GetCommandInterval() time.Duration {
	return time.Duration(c.Gateway.CommandIntervalMS) * time.Millisecond
}

// GetClientIdleTimeout returns the client idle timeout, zero when disabled.
func (c *Config) GetClientIdleTimeout() time.Duration {
	return time.Duration(c.Gateway.IdleTimeout) * time.Second
}

// GetClientWriteTimeout returns the per-line client write timeout.
func (c *Config) GetClientWriteTimeout() time.Duration {
	return time.Duration(c.Gateway.WriteTimeoutMS) * time.Millisecond
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
