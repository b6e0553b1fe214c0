package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

type (
	Config struct {
		Server  Server
		Storage Storage
		PG      PG
		Fees    Fees
		Admin   Admin
		MQTT    MQTT
	}

	Server struct {
		Port                string `env:"REGISTRY_SERVER_PORT" envDefault:"8080"`
		ReadTimeoutSeconds  int    `env:"REGISTRY_SERVER_READ_TIMEOUT_SECONDS" envDefault:"15"`
		WriteTimeoutSeconds int    `env:"REGISTRY_SERVER_WRITE_TIMEOUT_SECONDS" envDefault:"15"`
		IdleTimeoutSeconds  int    `env:"REGISTRY_SERVER_IDLE_TIMEOUT_SECONDS" envDefault:"60"`
	}

	// Storage selects the backing store. "memory" keeps all state in
	// process; "postgres" requires the PG section to be filled in.
	Storage struct {
		Driver string `env:"REGISTRY_STORAGE_DRIVER" envDefault:"memory"`
	}

	PG struct {
		User     string `env:"REGISTRY_PG_USER"`
		Password string `env:"REGISTRY_PG_PASSWORD"`
		Host     string `env:"REGISTRY_PG_HOST"`
		Port     int    `env:"REGISTRY_PG_PORT" envDefault:"5432"`
		DBName   string `env:"REGISTRY_PG_DBNAME"`
		SSLMode  string `env:"REGISTRY_PG_SSLMODE" envDefault:"disable"`
		PoolMax  int    `env:"REGISTRY_PG_POOL_MAX" envDefault:"10"`
	}

	// Fees are the initial global fee parameters, in the smallest
	// transferable unit. Both can be changed at runtime through the API.
	Fees struct {
		Creation     uint64 `env:"REGISTRY_CREATION_FEE" envDefault:"1000"`
		Transmission uint64 `env:"REGISTRY_TRANSMISSION_FEE" envDefault:"10"`
	}

	// Admin gates fee setters and pooled-balance withdrawal. An empty key
	// leaves those operations open to any caller.
	Admin struct {
		Key string `env:"REGISTRY_ADMIN_KEY"`
	}

	// MQTT configures the optional reading-ingest bridge. The bridge is
	// started only when BrokerURL is set.
	MQTT struct {
		BrokerURL   string `env:"REGISTRY_MQTT_BROKER_URL"`
		TopicPrefix string `env:"REGISTRY_MQTT_TOPIC_PREFIX" envDefault:"sensors"`
		ClientID    string `env:"REGISTRY_MQTT_CLIENT_ID" envDefault:"registry-ingest"`
	}
)

func NewConfig() (Config, error) {
	cfg := &Config{}
	err := env.Parse(cfg)
	if err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}

	return *cfg, nil
}
