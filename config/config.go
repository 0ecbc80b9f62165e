package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	mu sync.RWMutex `yaml:"-"`

	Device    DeviceConfig    `yaml:"device"`
	Grid      GridConfig      `yaml:"grid"`
	Patrol    PatrolConfig    `yaml:"patrol"`
	Indicator IndicatorConfig `yaml:"indicator"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Messaging MessagingConfig `yaml:"messaging"`
	Web       WebConfig       `yaml:"web"`
}

// DeviceConfig is the remote positioning service.
type DeviceConfig struct {
	BaseURL         string        `yaml:"base_url"          json:"base_url"`
	Timeout         time.Duration `yaml:"timeout"           json:"timeout"` // per request, 0 = none
	PollInterval    time.Duration `yaml:"poll_interval"     json:"poll_interval"`
	MaxPollDuration time.Duration `yaml:"max_poll_duration" json:"max_poll_duration"` // 0 = poll until idle
}

type GridConfig struct {
	Cols     int       `yaml:"cols"       json:"cols"`
	Rows     int       `yaml:"rows"       json:"rows"`
	YStopsCM []float64 `yaml:"y_stops_cm" json:"y_stops_cm"`
}

type PatrolConfig struct {
	XMax           int           `yaml:"x_max"            json:"x_max"`
	StartY         int           `yaml:"start_y"          json:"start_y"`
	YMax           int           `yaml:"y_max"            json:"y_max"`
	SettleDelay    time.Duration `yaml:"settle_delay"     json:"settle_delay"`
	AbortOnFailure bool          `yaml:"abort_on_failure" json:"abort_on_failure"`
}

type IndicatorConfig struct {
	Home              PointConfig    `yaml:"home"`
	Tags              map[string]int `yaml:"tags"`
	HomeTags          []string       `yaml:"home_tags"`
	DispatchAnimation time.Duration  `yaml:"dispatch_animation"`
	PatrolAnimation   time.Duration  `yaml:"patrol_animation"`
	LocationAnimation time.Duration  `yaml:"location_animation"`
}

type PointConfig struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

type DatabaseConfig struct {
	Driver   string         `yaml:"driver"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// MessagingConfig defines the event publication backend.
type MessagingConfig struct {
	Backend             string        `yaml:"backend"` // "mqtt", "kafka" or "none"
	MQTT                MQTTConfig    `yaml:"mqtt"`
	Kafka               KafkaConfig   `yaml:"kafka"`
	EventsTopic         string        `yaml:"events_topic"`
	CommandsTopic       string        `yaml:"commands_topic"` // empty disables inbound requests
	OutboxDrainInterval time.Duration `yaml:"outbox_drain_interval"`
	StationID           string        `yaml:"station_id"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Port     int    `yaml:"port"`
	ClientID string `yaml:"client_id"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
}

type WebConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	SessionSecret string `yaml:"session_secret"`
}

func Defaults() *Config {
	return &Config{
		Device: DeviceConfig{
			BaseURL:         "http://127.0.0.1:5000",
			PollInterval:    500 * time.Millisecond,
			MaxPollDuration: 10 * time.Minute,
		},
		Grid: GridConfig{
			Cols:     7,
			Rows:     10,
			YStopsCM: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
		Patrol: PatrolConfig{
			XMax:        5,
			StartY:      6,
			YMax:        9,
			SettleDelay: time.Second,
		},
		Indicator: IndicatorConfig{
			Home:              PointConfig{X: 0, Y: 0},
			Tags:              map[string]int{},
			HomeTags:          []string{"HOME"},
			DispatchAnimation: 1500 * time.Millisecond,
			PatrolAnimation:   3 * time.Second,
			LocationAnimation: 5 * time.Second,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{Path: "gridpatrol.db"},
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "gridpatrol",
				User:     "gridpatrol",
				SSLMode:  "disable",
			},
		},
		Redis: RedisConfig{
			Address: "localhost:6379",
		},
		Messaging: MessagingConfig{
			Backend: "none",
			MQTT: MQTTConfig{
				Broker:   "localhost",
				Port:     1883,
				ClientID: "gridpatrol",
			},
			Kafka: KafkaConfig{
				Brokers: []string{"localhost:9092"},
			},
			EventsTopic:         "gridpatrol/events",
			CommandsTopic:       "gridpatrol/commands",
			OutboxDrainInterval: 5 * time.Second,
			StationID:           "gridpatrol",
		},
		Web: WebConfig{
			Host:          "0.0.0.0",
			Port:          8090,
			SessionSecret: "change-me-in-production",
		},
	}
}

func Load(path string) (*Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings the engine cannot run without.
func (c *Config) Validate() error {
	if c.Device.BaseURL == "" {
		return fmt.Errorf("device.base_url is required")
	}
	if c.Device.PollInterval <= 0 {
		return fmt.Errorf("device.poll_interval must be positive")
	}
	if c.Grid.Cols < 1 || c.Grid.Rows < 1 {
		return fmt.Errorf("grid must be at least 1x1, got %dx%d", c.Grid.Cols, c.Grid.Rows)
	}
	if c.Patrol.XMax < 1 || c.Patrol.XMax > c.Grid.Cols {
		return fmt.Errorf("patrol.x_max=%d outside 1..%d", c.Patrol.XMax, c.Grid.Cols)
	}
	if c.Patrol.StartY < 1 || c.Patrol.StartY > c.Patrol.YMax || c.Patrol.YMax > c.Grid.Rows {
		return fmt.Errorf("patrol rows %d..%d outside 1..%d", c.Patrol.StartY, c.Patrol.YMax, c.Grid.Rows)
	}
	switch c.Messaging.Backend {
	case "", "none", "mqtt", "kafka":
	default:
		return fmt.Errorf("messaging.backend %q: expected mqtt, kafka or none", c.Messaging.Backend)
	}
	return nil
}

func (c *Config) Save(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Lock()    { c.mu.Lock() }
func (c *Config) Unlock()  { c.mu.Unlock() }
func (c *Config) RLock()   { c.mu.RLock() }
func (c *Config) RUnlock() { c.mu.RUnlock() }
