// Package utils holds the process-level configuration surface,
// loaded from the environment with optional .env overrides.
package utils

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config represents the application configuration.
type Config struct {
	App       AppConfig       `envPrefix:"APP_"`
	Multicast MulticastConfig `envPrefix:"BSE_"`
	Feed      FeedConfig      `envPrefix:"FEED_"`
	Output    OutputConfig    `envPrefix:"OUT_"`
}

// AppConfig represents process-wide settings.
type AppConfig struct {
	Name     string `env:"NAME" envDefault:"bsefeed"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	// Empty disables the websocket endpoint.
	WSListenAddr string `env:"WS_LISTEN_ADDR" envDefault:""`
}

// MulticastConfig represents the UDP transport settings.
type MulticastConfig struct {
	Group       string        `env:"MULTICAST_GROUP" envDefault:"227.0.0.21"`
	Port        int           `env:"MULTICAST_PORT" envDefault:"12996"`
	Interface   string        `env:"INTERFACE" envDefault:""`
	ReadBuffer  int           `env:"READ_BUFFER" envDefault:"2048"`
	ReadTimeout time.Duration `env:"READ_TIMEOUT" envDefault:"1s"`
}

// FeedConfig represents decoder and instrument-master settings.
type FeedConfig struct {
	// "fixed" or "compressed"
	Profile string `env:"PROFILE" envDefault:"fixed"`
	// Some feed deployments transmit header time big-endian.
	BigEndianTime bool          `env:"BIG_ENDIAN_TIME" envDefault:"false"`
	TokenMaster   string        `env:"TOKEN_MASTER" envDefault:"data/tokens/token_details.json"`
	StatsInterval time.Duration `env:"STATS_INTERVAL" envDefault:"1m"`
}

// OutputConfig represents the persistence settings.
type OutputConfig struct {
	Dir           string `env:"DIR" envDefault:"data"`
	JSON          bool   `env:"JSON" envDefault:"true"`
	CSV           bool   `env:"CSV" envDefault:"true"`
	RawStoreLimit int    `env:"RAW_STORE_LIMIT" envDefault:"0"`
}

// Load loads the configuration from the environment.
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}
