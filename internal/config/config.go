// Package config assembles server settings from flags with environment
// fallbacks.
package config

import (
	"flag"
	"os"
	"strconv"
)

// Config holds the server configuration.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string
	// DatabaseURL enables the Postgres snapshot store when set.
	DatabaseURL string
	// StorePath enables the local bbolt snapshot store when set and no
	// database is configured.
	StorePath string
	// RedisAddr enables the outbound event relay when set.
	RedisAddr string
	// MDNS announces the server on the local network when true.
	MDNS bool
	// SendBuffer is the per-connection outbound queue length.
	SendBuffer int
}

// ParseFlags builds the configuration from command line flags, falling
// back to environment variables for settings left at their defaults.
func ParseFlags() *Config {
	cfg := &Config{}
	flag.StringVar(&cfg.Addr, "addr", envOr("COLLABTEXT_ADDR", ":8081"), "HTTP listen address")
	flag.StringVar(&cfg.DatabaseURL, "database-url", os.Getenv("DATABASE_URL"), "Postgres URL for snapshot persistence")
	flag.StringVar(&cfg.StorePath, "store", os.Getenv("COLLABTEXT_STORE"), "Path to a local snapshot store file")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", os.Getenv("REDIS_ADDR"), "Redis address for the event relay")
	flag.BoolVar(&cfg.MDNS, "mdns", os.Getenv("COLLABTEXT_MDNS") == "1", "Announce the server over mDNS")
	flag.IntVar(&cfg.SendBuffer, "send-buffer", envIntOr("COLLABTEXT_SEND_BUFFER", 256), "Per-connection outbound queue length")
	flag.Parse()
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
