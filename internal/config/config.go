// Package config loads server settings from flags, DIRSERVE_* environment
// variables and an optional config file.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultPort            = 8080
	DefaultRoot            = "."
	DefaultEntry           = "droneview-logo.html"
	DefaultMaxConns        = 1
	DefaultShutdownTimeout = 5 * time.Second

	EnvPrefix = "DIRSERVE"
)

type Config struct {
	Port            int           `mapstructure:"port"`
	Listen          string        `mapstructure:"listen"`
	Root            string        `mapstructure:"root"`
	Entry           string        `mapstructure:"entry"`
	MaxConns        int           `mapstructure:"max-conns"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown-timeout"`
	Verbose         bool          `mapstructure:"verbose"`
}

// BindFlags registers the server flags with their defaults.
func BindFlags(fs *pflag.FlagSet) {
	fs.IntP("port", "p", DefaultPort, "port to listen on, all interfaces")
	fs.String("listen", "", "listen address overriding --port (tcp:, tcp4:, tcp6:, unix: prefixes accepted)")
	fs.StringP("root", "d", DefaultRoot, "directory to serve")
	fs.String("entry", DefaultEntry, "file named in the startup browse URL")
	fs.Int("max-conns", DefaultMaxConns, "connections serviced at once, 0 for unlimited")
	fs.Duration("shutdown-timeout", DefaultShutdownTimeout, "graceful shutdown deadline")
	fs.BoolP("verbose", "v", false, "enable verbose logging")
	fs.String("config", "", "optional config file (yaml, toml or json)")
}

// NewViper returns a viper instance reading DIRSERVE_* variables and the
// given flags.
func NewViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}
	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %q: %w", file, err)
		}
	}
	return v, nil
}

// Load decodes and validates the settings held by v.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var ErrInvalid = errors.New("invalid configuration")

func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalid, c.Port)
	}
	if c.MaxConns < 0 {
		return fmt.Errorf("%w: max-conns %d is negative", ErrInvalid, c.MaxConns)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("%w: shutdown-timeout %s must be positive", ErrInvalid, c.ShutdownTimeout)
	}
	if c.Root == "" {
		return fmt.Errorf("%w: root cannot be empty", ErrInvalid)
	}
	info, err := os.Stat(c.Root)
	if err != nil {
		return fmt.Errorf("%w: root: %w", ErrInvalid, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: root %q is not a directory", ErrInvalid, c.Root)
	}
	return nil
}

// Addr is the listen address, 0.0.0.0:<port> unless Listen overrides it.
func (c *Config) Addr() string {
	if c.Listen != "" {
		return c.Listen
	}
	return net.JoinHostPort("0.0.0.0", strconv.Itoa(c.Port))
}

// BrowseURL is the address suggested to the user at startup for a listener
// bound to addr. Wildcard binds are shown as 0.0.0.0.
func (c *Config) BrowseURL(addr net.Addr) string {
	entry := "/" + strings.TrimPrefix(c.Entry, "/")
	tcp, ok := addr.(*net.TCPAddr)
	if !ok {
		return "http://localhost" + entry + " via " + addr.Network() + ":" + addr.String()
	}
	host := "0.0.0.0"
	if tcp.IP != nil && !tcp.IP.IsUnspecified() {
		host = tcp.IP.String()
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(tcp.Port)) + entry
}
