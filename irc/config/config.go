package config

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v6"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the server configuration
type Config struct {
	// Server settings
	Server struct {
		Name     string `yaml:"name" toml:"name" json:"name" env:"IRCD_SERVER_NAME" validate:"required"`
		Network  string `yaml:"network" toml:"network" json:"network" env:"IRCD_NETWORK" validate:"required"`
		Host     string `yaml:"host" toml:"host" json:"host" env:"IRCD_HOST"`
		Port     int    `yaml:"port" toml:"port" json:"port" env:"IRCD_PORT" validate:"min=0,max=65535"`
		// PasswordHash is a bcrypt hash; when set, clients must send a matching PASS
		PasswordHash string   `yaml:"password_hash" toml:"password_hash" json:"password_hash" env:"IRCD_PASSWORD_HASH"`
		MOTD         []string `yaml:"motd" toml:"motd" json:"motd" env:"IRCD_MOTD" envSeparator:"|"`
	} `yaml:"server" toml:"server" json:"server"`

	// Per-connection limits
	Limits Limits `yaml:"limits" toml:"limits" json:"limits"`

	// Admin HTTP settings
	Admin struct {
		Enabled bool   `yaml:"enabled" toml:"enabled" json:"enabled" env:"IRCD_ADMIN_ENABLED"`
		Host    string `yaml:"host" toml:"host" json:"host" env:"IRCD_ADMIN_HOST"`
		Port    int    `yaml:"port" toml:"port" json:"port" env:"IRCD_ADMIN_PORT" validate:"min=0,max=65535"`
	} `yaml:"admin" toml:"admin" json:"admin"`

	Log struct {
		Debug bool `yaml:"debug" toml:"debug" json:"debug" env:"IRCD_DEBUG"`
	} `yaml:"log" toml:"log" json:"log"`

	// Configuration source, empty when running on defaults
	Source string `yaml:"-" toml:"-" json:"-"`
}

// Limits bounds per-connection resources
type Limits struct {
	SendQ        int           `yaml:"sendq" toml:"sendq" json:"sendq" env:"IRCD_SENDQ" validate:"min=1"`
	MaxLine      int           `yaml:"max_line" toml:"max_line" json:"max_line" env:"IRCD_MAX_LINE" validate:"min=512"`
	PingInterval time.Duration `yaml:"ping_interval" toml:"ping_interval" json:"ping_interval" env:"IRCD_PING_INTERVAL" validate:"gt=0"`
	PingTimeout  time.Duration `yaml:"ping_timeout" toml:"ping_timeout" json:"ping_timeout" env:"IRCD_PING_TIMEOUT" validate:"gt=0"`
	FloodRate    float64       `yaml:"flood_rate" toml:"flood_rate" json:"flood_rate" env:"IRCD_FLOOD_RATE" validate:"min=0"`
	FloodBurst   int           `yaml:"flood_burst" toml:"flood_burst" json:"flood_burst" env:"IRCD_FLOOD_BURST" validate:"min=1"`
}

// UnmarshalJSON accepts durations either as Go duration strings ("45s")
// or as integer nanoseconds
func (l *Limits) UnmarshalJSON(data []byte) error {
	type plain Limits
	aux := struct {
		*plain
		PingInterval jsonDuration `json:"ping_interval"`
		PingTimeout  jsonDuration `json:"ping_timeout"`
	}{
		plain:        (*plain)(l),
		PingInterval: jsonDuration(l.PingInterval),
		PingTimeout:  jsonDuration(l.PingTimeout),
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	l.PingInterval = time.Duration(aux.PingInterval)
	l.PingTimeout = time.Duration(aux.PingTimeout)
	return nil
}

type jsonDuration time.Duration

func (d *jsonDuration) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		*d = jsonDuration(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid duration %s", data)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = jsonDuration(parsed)
	return nil
}

// Default returns a configuration populated with default values
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Name = "ircd.local"
	cfg.Server.Network = "ircd"
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = 6667
	cfg.Server.MOTD = []string{"Welcome to {nick}!"}

	cfg.Limits.SendQ = 512
	cfg.Limits.MaxLine = 8191
	cfg.Limits.PingInterval = 300 * time.Second
	cfg.Limits.PingTimeout = 30 * time.Second
	cfg.Limits.FloodRate = 5
	cfg.Limits.FloodBurst = 20

	cfg.Admin.Host = "127.0.0.1"
	cfg.Admin.Port = 8080
	return cfg
}

// Load loads configuration from a file or URL, applies IRCD_* environment
// overrides and validates the result. An empty source yields the defaults
// plus environment overrides.
func Load(source string) (*Config, error) {
	cfg := Default()

	if source != "" {
		if err := cfg.loadFromSource(source); err != nil {
			return nil, err
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// loadFromSource loads configuration from a file or URL
func (c *Config) loadFromSource(source string) error {
	var data []byte
	var err error

	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		data, err = fetch(source)
	} else {
		data, err = os.ReadFile(source)
		if err != nil {
			err = fmt.Errorf("failed to read config file: %w", err)
		}
	}
	if err != nil {
		return err
	}

	// Determine the format based on the extension, defaulting to YAML
	path := strings.SplitN(source, "?", 2)[0]
	switch {
	case strings.HasSuffix(path, ".toml"):
		err = toml.Unmarshal(data, c)
	case strings.HasSuffix(path, ".json"):
		err = json.Unmarshal(data, c)
	default:
		err = yaml.Unmarshal(data, c)
	}
	if err != nil {
		return fmt.Errorf("failed to parse config %s: %w", source, err)
	}

	c.Source = source
	return nil
}

func fetch(url string) ([]byte, error) {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to load config from URL, status: %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read config from URL: %w", err)
	}
	return data, nil
}

// ListenAddress returns the IRC listener address
func (c *Config) ListenAddress() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// AdminAddress returns the admin HTTP listener address
func (c *Config) AdminAddress() string {
	return net.JoinHostPort(c.Admin.Host, strconv.Itoa(c.Admin.Port))
}
