// CBD Importer - Bulk data loader for the CBD events platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cbd-importer

// Package config loads and validates the importer configuration.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in defaults for every setting
//  2. Config File: Optional YAML config file (config.yaml, or CONFIG_PATH)
//  3. Environment Variables: Override any mapped setting
//
// Configuration Categories:
//   - Server: HTTP listener and the public URL advertised to WebSocket clients
//   - Import: data directory, archive suffixes, batch size, history
//   - Store: target document database (MongoDB or embedded BadgerDB)
//   - Events: optional NATS fan-out of progress events
//   - Security: JWT auth, CORS, rate limiting of the trigger
//   - Logging: level, format, caller
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Import   ImportConfig   `koanf:"import"`
	Store    StoreConfig    `koanf:"store"`
	Events   EventsConfig   `koanf:"events"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `koanf:"port" validate:"gte=1,lte=65535"`
	Host            string        `koanf:"host"`
	Timeout         time.Duration `koanf:"timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`

	// PublicURL is the externally reachable base URL (e.g. https://cbd.example.com).
	// When empty the WebSocket URL in the trigger response is derived from the request.
	PublicURL string `koanf:"public_url" validate:"omitempty,url"`
}

// ImportConfig holds the import pipeline settings.
type ImportConfig struct {
	DataDir string `koanf:"data_dir" validate:"required"`

	// Suffix selects which directory entries are gzip dumps. The collection
	// name is the file name with this suffix removed.
	Suffix string `koanf:"suffix" validate:"required,startswith=."`

	BatchSize int `koanf:"batch_size" validate:"gte=1,lte=100000"`

	// SortFiles imports archives in lexical order instead of directory listing order.
	SortFiles bool `koanf:"sort_files"`

	// ZipEnabled also accepts .zip archives holding one <collection>.json per entry.
	ZipEnabled bool `koanf:"zip_enabled"`

	// CollectionPrefix is stripped from zip entry names (e.g. "cbd." for cbd.users.json).
	CollectionPrefix string `koanf:"collection_prefix"`

	// AutoStart runs one import as soon as the service starts.
	AutoStart bool `koanf:"auto_start"`

	// HistoryPath is the BadgerDB directory for the last job summary.
	// Empty keeps history in memory.
	HistoryPath string `koanf:"history_path"`
}

// StoreConfig selects and configures the target document database.
type StoreConfig struct {
	Driver     string `koanf:"driver" validate:"required,oneof=mongo badger"`
	MongoURI   string `koanf:"mongo_uri"`
	Database   string `koanf:"database" validate:"required"`
	BadgerPath string `koanf:"badger_path"`
}

// EventsConfig holds the optional NATS progress fan-out.
type EventsConfig struct {
	NATSEnabled   bool   `koanf:"nats_enabled"`
	NATSURL       string `koanf:"nats_url"`
	SubjectPrefix string `koanf:"subject_prefix" validate:"required"`
}

// SecurityConfig holds authentication and request limiting settings.
type SecurityConfig struct {
	AuthMode          string        `koanf:"auth_mode" validate:"required,oneof=jwt none"`
	JWTSecret         string        `koanf:"jwt_secret"`
	TokenTTL          time.Duration `koanf:"token_ttl" validate:"gt=0"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs" validate:"gte=1"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"required,oneof=trace debug info warn error fatal panic disabled"`
	Format string `koanf:"format" validate:"required,oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// Addr returns the host:port the HTTP server listens on.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// Suffixes returns the archive name suffixes the reader accepts.
func (i ImportConfig) Suffixes() []string {
	if i.ZipEnabled {
		return []string{i.Suffix, ".zip"}
	}
	return []string{i.Suffix}
}

// Load reads configuration from defaults, an optional config file, and
// environment variables, in that order of precedence.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
