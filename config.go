// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package mhttp holds the service configuration shared by the binaries.
package mhttp

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/absmach/mhttp/pkg/tlsengine/gotls"
	"github.com/caarlos0/env/v11"
)

// EnvPrefix is the prefix of every environment variable read by LoadConfig.
const EnvPrefix = "MHTTP_"

// Config is the service configuration. Values come from DefaultConfig, then
// the TOML file named by MHTTP_CONFIG_FILE, then the environment.
type Config struct {
	Host string `toml:"host" env:"HOST"`
	Port string `toml:"port" env:"PORT"`

	KeystoreFile       string `toml:"keystore_file"       env:"KEYSTORE_FILE"`
	KeystorePassword   string `toml:"keystore_password"   env:"KEYSTORE_PASSWORD"`
	TruststoreFile     string `toml:"truststore_file"     env:"TRUSTSTORE_FILE"`
	TruststorePassword string `toml:"truststore_password" env:"TRUSTSTORE_PASSWORD"`

	ReadBufferSize  int           `toml:"read_buffer_size" env:"READ_BUFFER_SIZE"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`

	LogLevel    string `toml:"log_level"    env:"LOG_LEVEL"`
	LogFormat   string `toml:"log_format"   env:"LOG_FORMAT"`
	MetricsPort string `toml:"metrics_port" env:"METRICS_PORT"`

	PoolMaxIdle   int `toml:"pool_max_idle"   env:"POOL_MAX_IDLE"`
	PoolMaxActive int `toml:"pool_max_active" env:"POOL_MAX_ACTIVE"`

	RateLimitCapacity float64 `toml:"rate_limit_capacity" env:"RATE_LIMIT_CAPACITY"`
	RateLimitRefill   float64 `toml:"rate_limit_refill"   env:"RATE_LIMIT_REFILL"`

	BreakerMaxFailures  int           `toml:"breaker_max_failures"  env:"BREAKER_MAX_FAILURES"`
	BreakerResetTimeout time.Duration `toml:"breaker_reset_timeout" env:"BREAKER_RESET_TIMEOUT"`

	ExecutorQueue int `toml:"executor_queue" env:"EXECUTOR_QUEUE"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Port:                "8080",
		ReadBufferSize:      4096,
		ShutdownTimeout:     30 * time.Second,
		LogLevel:            "info",
		LogFormat:           "json",
		MetricsPort:         "9090",
		PoolMaxIdle:         100,
		RateLimitCapacity:   20,
		RateLimitRefill:     10,
		BreakerMaxFailures:  5,
		BreakerResetTimeout: 30 * time.Second,
		ExecutorQueue:       64,
	}
}

// LoadConfig layers the optional TOML file and the environment over the
// defaults. opts.Prefix defaults to EnvPrefix.
func LoadConfig(opts env.Options) (Config, error) {
	if opts.Prefix == "" {
		opts.Prefix = EnvPrefix
	}
	cfg := DefaultConfig()

	if path := lookupEnv(opts, "CONFIG_FILE"); path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

func lookupEnv(opts env.Options, key string) string {
	if opts.Environment != nil {
		return opts.Environment[opts.Prefix+key]
	}
	return os.Getenv(opts.Prefix + key)
}

// Address is the listen address.
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// TLSEnabled reports whether a key store is configured.
func (c Config) TLSEnabled() bool {
	return c.KeystoreFile != ""
}

// TLSContext builds the server cryptographic context, or returns nil when
// TLS is not configured.
func (c Config) TLSContext() (*gotls.Context, error) {
	if !c.TLSEnabled() {
		return nil, nil
	}
	return gotls.NewServerContext(c.KeystoreFile, c.KeystorePassword, c.TruststoreFile, c.TruststorePassword)
}
