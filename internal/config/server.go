package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig represents the API server configuration loaded from YAML.
type ServerConfig struct {
	Server struct {
		Listen struct {
			Address string `yaml:"address"`
			Port    int    `yaml:"port"`
		} `yaml:"listen"`
		Timeouts struct {
			ReadSeconds     int `yaml:"read_seconds"`
			WriteSeconds    int `yaml:"write_seconds"`
			IdleSeconds     int `yaml:"idle_seconds"`
			ShutdownSeconds int `yaml:"shutdown_seconds"`
		} `yaml:"timeouts"`
		CORS struct {
			AllowedOrigins []string `yaml:"allowed_origins"`
		} `yaml:"cors"`
		RateLimit struct {
			Enabled       bool     `yaml:"enabled"`
			IPLimit       int      `yaml:"ip_limit"`
			WindowSeconds int      `yaml:"window_seconds"`
			ExemptPaths   []string `yaml:"exempt_paths"`
		} `yaml:"rate_limit"`
	} `yaml:"server"`
}

// LoadServerConfig loads server configuration from a YAML file.
// The path parameter is expected to come from a trusted source (command-line argument or hardcoded default).
func LoadServerConfig(path string) (*ServerConfig, error) {
	// #nosec G304 -- path is provided by trusted source (CLI arg or config), not user input
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config ServerConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.applyDefaults()

	if err := validateServerConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// DefaultServerConfig returns a ServerConfig with production defaults,
// used when no config file is provided.
func DefaultServerConfig() *ServerConfig {
	var config ServerConfig
	config.applyDefaults()
	return &config
}

// applyDefaults fills in zero-valued fields with production defaults.
func (c *ServerConfig) applyDefaults() {
	if c.Server.Listen.Address == "" {
		c.Server.Listen.Address = "0.0.0.0"
	}
	if c.Server.Listen.Port == 0 {
		c.Server.Listen.Port = 8080
	}
	if c.Server.Timeouts.ReadSeconds == 0 {
		c.Server.Timeouts.ReadSeconds = 15
	}
	if c.Server.Timeouts.WriteSeconds == 0 {
		c.Server.Timeouts.WriteSeconds = 30
	}
	if c.Server.Timeouts.IdleSeconds == 0 {
		c.Server.Timeouts.IdleSeconds = 120
	}
	if c.Server.Timeouts.ShutdownSeconds == 0 {
		c.Server.Timeouts.ShutdownSeconds = 30
	}
	if c.Server.RateLimit.IPLimit == 0 {
		c.Server.RateLimit.IPLimit = 100
	}
	if c.Server.RateLimit.WindowSeconds == 0 {
		c.Server.RateLimit.WindowSeconds = 60
	}
	if len(c.Server.RateLimit.ExemptPaths) == 0 {
		c.Server.RateLimit.ExemptPaths = []string{"/health", "/ready", "/live", "/metrics"}
	}
}

// validateServerConfig validates the loaded configuration.
func validateServerConfig(config *ServerConfig) error {
	if config.Server.Listen.Port < 1 || config.Server.Listen.Port > 65535 {
		return fmt.Errorf("listen port must be between 1 and 65535")
	}

	if config.Server.Timeouts.ReadSeconds <= 0 {
		return fmt.Errorf("read_seconds must be positive")
	}

	if config.Server.Timeouts.WriteSeconds <= 0 {
		return fmt.Errorf("write_seconds must be positive")
	}

	if config.Server.Timeouts.ShutdownSeconds <= 0 {
		return fmt.Errorf("shutdown_seconds must be positive")
	}

	if config.Server.RateLimit.Enabled {
		if config.Server.RateLimit.IPLimit <= 0 {
			return fmt.Errorf("rate_limit ip_limit must be positive")
		}

		if config.Server.RateLimit.WindowSeconds <= 0 {
			return fmt.Errorf("rate_limit window_seconds must be positive")
		}
	}

	return nil
}

// ListenAddr returns the address:port string for http.Server.
func (c *ServerConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Listen.Address, c.Server.Listen.Port)
}

// ReadTimeout returns the HTTP read timeout.
func (c *ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(c.Server.Timeouts.ReadSeconds) * time.Second
}

// WriteTimeout returns the HTTP write timeout.
func (c *ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(c.Server.Timeouts.WriteSeconds) * time.Second
}

// IdleTimeout returns the HTTP idle timeout.
func (c *ServerConfig) IdleTimeout() time.Duration {
	return time.Duration(c.Server.Timeouts.IdleSeconds) * time.Second
}

// ShutdownTimeout returns the graceful shutdown deadline.
func (c *ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.Timeouts.ShutdownSeconds) * time.Second
}

// AllowedOrigins returns the CORS allowed origins.
func (c *ServerConfig) AllowedOrigins() []string {
	return c.Server.CORS.AllowedOrigins
}

// RateLimitWindow returns the IP rate limit window.
func (c *ServerConfig) RateLimitWindow() time.Duration {
	return time.Duration(c.Server.RateLimit.WindowSeconds) * time.Second
}

// RateLimitExemptPaths returns the paths excluded from rate limiting.
func (c *ServerConfig) RateLimitExemptPaths() []string {
	return c.Server.RateLimit.ExemptPaths
}
