// Package config loads station settings from a YAML file with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type (
	Config struct {
		Server       ServerConfig       `yaml:"server"`
		Station      StationConfig      `yaml:"station"`
		Redis        RedisConfig        `yaml:"redis"`
		Mongo        MongoConfig        `yaml:"mongo"`
		Receptionist ReceptionistConfig `yaml:"receptionist"`
		Push         PushConfig         `yaml:"push"`
		Users        UsersConfig        `yaml:"users"`
		Search       SearchConfig       `yaml:"search"`
		Log          LogConfig          `yaml:"log"`
		Neighbors    []string           `yaml:"neighbors" env:"STATION_NEIGHBORS"`
	}

	ServerConfig struct {
		Addr         string        `yaml:"addr"          env:"STATION_SERVER_ADDR"`
		ReadLimit    int64         `yaml:"read_limit"    env:"STATION_SERVER_READ_LIMIT"`
		WriteTimeout time.Duration `yaml:"write_timeout" env:"STATION_SERVER_WRITE_TIMEOUT"`
	}

	StationConfig struct {
		Name    string `yaml:"name"     env:"STATION_NAME"`
		KeyFile string `yaml:"key_file" env:"STATION_KEY_FILE"`
	}

	RedisConfig struct {
		Addr     string `yaml:"addr"     env:"STATION_REDIS_ADDR"`
		Password string `yaml:"password" env:"STATION_REDIS_PASSWORD"`
		DB       int    `yaml:"db"       env:"STATION_REDIS_DB"`
	}

	// MongoConfig with an empty URI keeps the directory in memory.
	MongoConfig struct {
		URI      string `yaml:"uri"      env:"STATION_MONGO_URI"`
		Database string `yaml:"database" env:"STATION_MONGO_DATABASE"`
	}

	ReceptionistConfig struct {
		Interval  time.Duration `yaml:"interval"   env:"STATION_RECEPTIONIST_INTERVAL"`
		BatchSize int           `yaml:"batch_size" env:"STATION_RECEPTIONIST_BATCH_SIZE"`
	}

	PushConfig struct {
		Outbox string `yaml:"outbox" env:"STATION_PUSH_OUTBOX"`
	}

	UsersConfig struct {
		Max int `yaml:"max" env:"STATION_USERS_MAX"`
	}

	SearchConfig struct {
		Limit int `yaml:"limit" env:"STATION_SEARCH_LIMIT"`
	}

	LogConfig struct {
		Level       string `yaml:"level"       env:"STATION_LOG_LEVEL"`
		Development bool   `yaml:"development" env:"STATION_LOG_DEVELOPMENT"`
	}
)

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         "localhost:9090",
			ReadLimit:    1 << 20,
			WriteTimeout: 10 * time.Second,
		},
		Station: StationConfig{
			Name:    "gsp",
			KeyFile: "station.key",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Mongo: MongoConfig{
			URI:      "mongodb://localhost:27017",
			Database: "station",
		},
		Receptionist: ReceptionistConfig{
			Interval:  time.Second,
			BatchSize: 64,
		},
		Push: PushConfig{
			Outbox: "apns:outbox",
		},
		Users: UsersConfig{
			Max: 20,
		},
		Search: SearchConfig{
			Limit: 50,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadConfig reads path over the defaults, then applies STATION_*
// environment variables. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch {
	case c.Server.Addr == "":
		return errors.New("server.addr is required")
	case c.Redis.Addr == "":
		return errors.New("redis.addr is required")
	case c.Station.Name == "":
		return errors.New("station.name is required")
	case c.Station.KeyFile == "":
		return errors.New("station.key_file is required")
	case c.Receptionist.Interval <= 0:
		return fmt.Errorf("receptionist.interval must be positive, got %s", c.Receptionist.Interval)
	case c.Receptionist.BatchSize <= 0:
		return fmt.Errorf("receptionist.batch_size must be positive, got %d", c.Receptionist.BatchSize)
	case c.Mongo.URI != "" && c.Mongo.Database == "":
		return errors.New("mongo.database is required when mongo.uri is set")
	}
	return nil
}
