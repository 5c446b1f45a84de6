package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"eeg-monitor/internal/analytics"
	"eeg-monitor/internal/data"
	"eeg-monitor/internal/models"
	"eeg-monitor/internal/simulator"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPort           = 8080
	DefaultTickIntervalMS = 1000
	DefaultRateLimit      = 5.0
	DefaultRateBurst      = 10
	DefaultNATSURL        = "nats://127.0.0.1:4222"
	DefaultMQTTBroker     = "tcp://localhost:1883"
)

// Config application configuration
type Config struct {
	Server     ServerConfig         `yaml:"server"`
	Log        LogConfig            `yaml:"log"`
	Monitor    MonitorConfig        `yaml:"monitor"`
	Simulator  simulator.Config     `yaml:"simulator"`
	Thresholds analytics.Thresholds `yaml:"thresholds"`
	API        APIConfig            `yaml:"api"`
	NATS       NATSConfig           `yaml:"nats"`
	MQTT       MQTTConfig           `yaml:"mqtt"`
}

type ServerConfig struct {
	Port         int `yaml:"port"`
	ReadTimeout  int `yaml:"read_timeout"`  // seconds
	WriteTimeout int `yaml:"write_timeout"` // seconds
	IdleTimeout  int `yaml:"idle_timeout"`  // seconds
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

type MonitorConfig struct {
	TickIntervalMS int    `yaml:"tick_interval_ms"`
	TimeRange      string `yaml:"time_range"`
	DisplayName    string `yaml:"display_name"`
	SessionBackend string `yaml:"session_backend"`
	Seed           int64  `yaml:"seed"` // 0 seeds from the clock
}

// TickInterval returns the tick period as a duration
func (m MonitorConfig) TickInterval() time.Duration {
	return time.Duration(m.TickIntervalMS) * time.Millisecond
}

type APIConfig struct {
	RateLimit      float64  `yaml:"rate_limit"` // control requests per second
	RateBurst      int      `yaml:"rate_burst"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Topic    string `yaml:"topic"`
	Device   string `yaml:"device"`
	QoS      int    `yaml:"qos"`
}

// DefaultConfig returns the built-in configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         DefaultPort,
			ReadTimeout:  15,
			WriteTimeout: 15,
			IdleTimeout:  60,
		},
		Log: LogConfig{
			Level: "info",
		},
		Monitor: MonitorConfig{
			TickIntervalMS: DefaultTickIntervalMS,
			TimeRange:      string(models.DefaultTimeRange),
			DisplayName:    analytics.DefaultDisplayName,
			SessionBackend: data.BackendMemory,
		},
		Simulator:  simulator.DefaultConfig(),
		Thresholds: analytics.DefaultThresholds(),
		API: APIConfig{
			RateLimit:      DefaultRateLimit,
			RateBurst:      DefaultRateBurst,
			AllowedOrigins: []string{"*"},
		},
		NATS: NATSConfig{
			URL:     DefaultNATSURL,
			Subject: "eeg.ticks",
		},
		MQTT: MQTTConfig{
			Broker:   DefaultMQTTBroker,
			ClientID: "eeg-monitor",
			Topic:    "eeg/{device}/tick",
			Device:   "headset-1",
		},
	}
}

// Load reads the YAML file at path over the defaults, then applies .env and
// EEG_* environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(raw, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	// .env is optional
	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	env := &envReader{}

	c.Server.Port = env.int("EEG_PORT", c.Server.Port)
	c.Log.Level = env.string("EEG_LOG_LEVEL", c.Log.Level)
	c.Log.Pretty = env.bool("EEG_LOG_PRETTY", c.Log.Pretty)

	c.Monitor.TickIntervalMS = env.int("EEG_TICK_INTERVAL_MS", c.Monitor.TickIntervalMS)
	c.Monitor.TimeRange = env.string("EEG_TIME_RANGE", c.Monitor.TimeRange)
	c.Monitor.DisplayName = env.string("EEG_DISPLAY_NAME", c.Monitor.DisplayName)
	c.Monitor.SessionBackend = env.string("EEG_SESSION_BACKEND", c.Monitor.SessionBackend)
	c.Monitor.Seed = int64(env.int("EEG_SEED", int(c.Monitor.Seed)))

	c.API.RateLimit = env.float("EEG_RATE_LIMIT", c.API.RateLimit)
	c.API.RateBurst = env.int("EEG_RATE_BURST", c.API.RateBurst)
	if origins := env.string("EEG_ALLOWED_ORIGINS", ""); origins != "" {
		c.API.AllowedOrigins = strings.Split(origins, ",")
	}

	c.NATS.Enabled = env.bool("EEG_NATS_ENABLED", c.NATS.Enabled)
	c.NATS.URL = env.string("EEG_NATS_URL", c.NATS.URL)
	c.NATS.Subject = env.string("EEG_NATS_SUBJECT", c.NATS.Subject)

	c.MQTT.Enabled = env.bool("EEG_MQTT_ENABLED", c.MQTT.Enabled)
	c.MQTT.Broker = env.string("EEG_MQTT_BROKER", c.MQTT.Broker)
	c.MQTT.ClientID = env.string("EEG_MQTT_CLIENT_ID", c.MQTT.ClientID)
	c.MQTT.Username = env.string("EEG_MQTT_USERNAME", c.MQTT.Username)
	c.MQTT.Password = env.string("EEG_MQTT_PASSWORD", c.MQTT.Password)
	c.MQTT.Topic = env.string("EEG_MQTT_TOPIC", c.MQTT.Topic)
	c.MQTT.Device = env.string("EEG_MQTT_DEVICE", c.MQTT.Device)

	return env.err()
}

// Validate rejects values the server cannot run with
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Monitor.TickIntervalMS <= 0 {
		errs = append(errs, errors.New("monitor.tick_interval_ms must be positive"))
	}
	switch c.Monitor.SessionBackend {
	case data.BackendMemory, data.BackendSQLite:
	default:
		errs = append(errs, fmt.Errorf("monitor.session_backend %q unknown", c.Monitor.SessionBackend))
	}
	if err := c.Simulator.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("simulator: %w", err))
	}
	if c.API.RateLimit <= 0 {
		errs = append(errs, errors.New("api.rate_limit must be positive"))
	}
	if c.API.RateBurst < 1 {
		errs = append(errs, errors.New("api.rate_burst must be at least 1"))
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		errs = append(errs, errors.New("nats.url required when nats is enabled"))
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		errs = append(errs, errors.New("mqtt.broker required when mqtt is enabled"))
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, fmt.Errorf("mqtt.qos %d out of range", c.MQTT.QoS))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// envReader collects parse failures instead of silently keeping defaults
type envReader struct {
	errs []error
}

func (r *envReader) string(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func (r *envReader) int(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("parse %s: %w", key, err))
		return defaultValue
	}
	return intValue
}

func (r *envReader) float(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("parse %s: %w", key, err))
		return defaultValue
	}
	return floatValue
}

func (r *envReader) bool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("parse %s: %w", key, err))
		return defaultValue
	}
	return boolValue
}

func (r *envReader) err() error {
	if len(r.errs) == 0 {
		return nil
	}
	return fmt.Errorf("environment overrides: %w", errors.Join(r.errs...))
}
