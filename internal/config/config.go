// Package config resolves the connection settings of the rcon command from defaults, an optional
// TOML file and the environment.
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/schultz-is/rconsh"
)

const (
	// DefaultHost is the server host used when none is configured.
	DefaultHost = "localhost"
	// DefaultPort is the conventional RCON port.
	DefaultPort = 25575
	// DefaultTimeout is the per-exchange limit used when none is configured.
	DefaultTimeout = rcon.DefaultClientTimeout
)

// Environment variables that override the config file.
const (
	// EnvHost overrides the server host.
	EnvHost = "RCON_HOST"
	// EnvPort overrides the server port.
	EnvPort = "RCON_PORT"
	// EnvPassword overrides the RCON password.
	EnvPassword = "RCON_PASSWORD"
	// EnvTimeout overrides the per-exchange limit, as a duration such as "30s".
	EnvTimeout = "RCON_TIMEOUT"
)

// Config holds the settings needed to open a session.
type Config struct {
	Host     string        `toml:"host"`
	Port     int           `toml:"port"`
	Password string        `toml:"password"`
	Timeout  time.Duration `toml:"timeout"`
	Debug    bool          `toml:"debug"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Host:    DefaultHost,
		Port:    DefaultPort,
		Timeout: DefaultTimeout,
	}
}

// Load starts from [Default], applies the TOML file at path when path is not empty, then applies
// environment overrides read through getenv. The result is not validated.
func Load(path string, getenv func(string) string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadToml(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg, getenv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadToml(path string, cfg *Config) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("config parse failed (%s): unknown keys %s", path, strings.Join(keys, ", "))
	}
	return nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	if getenv == nil {
		return nil
	}
	if v := strings.TrimSpace(getenv(EnvHost)); v != "" {
		cfg.Host = v
	}
	if v := strings.TrimSpace(getenv(EnvPort)); v != "" {
		port, err := ParsePort(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPort, err)
		}
		cfg.Port = port
	}
	if v := getenv(EnvPassword); v != "" {
		cfg.Password = v
	}
	if v := strings.TrimSpace(getenv(EnvTimeout)); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTimeout, err)
		}
		cfg.Timeout = d
	}
	return nil
}

// ParsePort parses a TCP port number in the range 1 to 65535.
func ParsePort(raw string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid port %q", raw)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("port %d out of range 1-65535", port)
	}
	return port, nil
}

// Validate reports the first setting that cannot be used to connect. A negative timeout is valid
// and disables the per-exchange limit.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return errors.New("host is required")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range 1-65535", c.Port)
	}
	return nil
}

// Addr returns the host:port address of the server.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
