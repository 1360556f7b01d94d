// Package config defines the application configuration model and its
// YAML loader. Configuration files support ${VAR} and ${VAR:-default}
// environment substitution and can be hot-reloaded through the Watcher.
package config

import (
	"time"

	"github.com/vireo-web/vireo/pkg/httperr"
)

// Config is the root application configuration.
type Config struct {
	Server   ServerConfig `yaml:"server"`
	Log      LogConfig    `yaml:"log"`
	Profiles []string     `yaml:"profiles"`
	CORS     *CORSConfig  `yaml:"cors,omitempty"`
}

// ServerConfig holds the listener settings for a server adapter.
type ServerConfig struct {
	Host              string   `yaml:"host"`
	Port              int      `yaml:"port"`
	ReadTimeout       Duration `yaml:"readTimeout"`
	ReadHeaderTimeout Duration `yaml:"readHeaderTimeout"`
	WriteTimeout      Duration `yaml:"writeTimeout"`
	IdleTimeout       Duration `yaml:"idleTimeout"`
	ShutdownTimeout   Duration `yaml:"shutdownTimeout"`
	MaxHeaderBytes    int      `yaml:"maxHeaderBytes"`
}

// LogConfig holds the logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// CORSConfig holds a cross-origin policy declared in configuration
// rather than in code.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowedOrigins"`
	AllowedMethods []string `yaml:"allowedMethods"`
	AllowedHeaders []string `yaml:"allowedHeaders"`
	MaxAge         int      `yaml:"maxAge"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Server: DefaultServerConfig(),
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// DefaultServerConfig returns the default listener settings.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:              "0.0.0.0",
		Port:              8080,
		ReadTimeout:       Duration(30 * time.Second),
		ReadHeaderTimeout: Duration(10 * time.Second),
		WriteTimeout:      Duration(30 * time.Second),
		IdleTimeout:       Duration(120 * time.Second),
		ShutdownTimeout:   Duration(30 * time.Second),
		MaxHeaderBytes:    1 << 20,
	}
}

// Validate checks the configuration for values that cannot be served.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return httperr.NewConfigError("server.port", "port must be between 0 and 65535")
	}
	if c.Server.MaxHeaderBytes < 0 {
		return httperr.NewConfigError("server.maxHeaderBytes", "must not be negative")
	}
	switch c.Log.Format {
	case "", "json", "console":
	default:
		return httperr.NewConfigError("log.format", "must be json or console")
	}
	if c.CORS != nil && c.CORS.MaxAge < 0 {
		return httperr.NewConfigError("cors.maxAge", "must not be negative")
	}
	return nil
}

// withDefaults fills unset fields from the default configuration.
func (c *Config) withDefaults() {
	def := DefaultServerConfig()
	if c.Server.Host == "" {
		c.Server.Host = def.Host
	}
	if c.Server.Port == 0 {
		c.Server.Port = def.Port
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = def.ReadTimeout
	}
	if c.Server.ReadHeaderTimeout == 0 {
		c.Server.ReadHeaderTimeout = def.ReadHeaderTimeout
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = def.WriteTimeout
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = def.IdleTimeout
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = def.ShutdownTimeout
	}
	if c.Server.MaxHeaderBytes == 0 {
		c.Server.MaxHeaderBytes = def.MaxHeaderBytes
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}
