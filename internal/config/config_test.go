package config

import (
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs)
	require.NoError(t, fs.Parse(args))
	v, err := NewViper(fs)
	if err != nil {
		return nil, err
	}
	return Load(v)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(t)
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultRoot, cfg.Root)
	assert.Equal(t, DefaultEntry, cfg.Entry)
	assert.Equal(t, DefaultMaxConns, cfg.MaxConns)
	assert.Equal(t, DefaultShutdownTimeout, cfg.ShutdownTimeout)
	assert.False(t, cfg.Verbose)
	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
	assert.Equal(t, "http://0.0.0.0:8080/droneview-logo.html", cfg.BrowseURL(&net.TCPAddr{IP: net.IPv4zero, Port: 8080}))
}

func TestLoad_Flags(t *testing.T) {
	dir := t.TempDir()
	cfg, err := load(t, "-p", "9000", "-d", dir, "--max-conns", "0", "--shutdown-timeout", "1s", "-v")
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, dir, cfg.Root)
	assert.Equal(t, 0, cfg.MaxConns)
	assert.Equal(t, time.Second, cfg.ShutdownTimeout)
	assert.True(t, cfg.Verbose)
	assert.Equal(t, "0.0.0.0:9000", cfg.Addr())
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("DIRSERVE_PORT", "8181")
	t.Setenv("DIRSERVE_MAX_CONNS", "4")
	t.Setenv("DIRSERVE_ENTRY", "/index.html")

	cfg, err := load(t)
	require.NoError(t, err)
	assert.Equal(t, 8181, cfg.Port)
	assert.Equal(t, 4, cfg.MaxConns)
	assert.Equal(t, "http://0.0.0.0:8181/index.html", cfg.BrowseURL(&net.TCPAddr{Port: 8181}))

	cfg, err = load(t, "--port", "8282")
	require.NoError(t, err)
	assert.Equal(t, 8282, cfg.Port, "flags win over environment")
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "dirserve.yaml")
	require.NoError(t, os.WriteFile(file, []byte("port: 8383\nlisten: unix:/tmp/dirserve.sock\n"), 0o644))

	cfg, err := load(t, "--config", file)
	require.NoError(t, err)
	assert.Equal(t, 8383, cfg.Port)
	assert.Equal(t, "unix:/tmp/dirserve.sock", cfg.Addr())
}

func TestLoad_MissingConfigFile(t *testing.T) {
	_, err := load(t, "--config", filepath.Join(t.TempDir(), "none.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	good := Config{Port: 8080, Root: dir, MaxConns: 1, ShutdownTimeout: time.Second}
	require.NoError(t, good.Validate())

	testCases := map[string]func(c *Config){
		"port zero":      func(c *Config) { c.Port = 0 },
		"port too large": func(c *Config) { c.Port = 70000 },
		"negative conns": func(c *Config) { c.MaxConns = -1 },
		"zero timeout":   func(c *Config) { c.ShutdownTimeout = 0 },
		"empty root":     func(c *Config) { c.Root = "" },
		"missing root":   func(c *Config) { c.Root = filepath.Join(dir, "missing") },
		"root is a file": func(c *Config) { c.Root = file },
	}
	for name, mutate := range testCases {
		t.Run(name, func(t *testing.T) {
			c := good
			mutate(&c)
			err := c.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalid))
		})
	}
}

func TestBrowseURL_BoundAddress(t *testing.T) {
	cfg := Config{Entry: DefaultEntry}

	assert.Equal(t, "http://127.0.0.1:9000/droneview-logo.html",
		cfg.BrowseURL(&net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9000}))
	assert.Equal(t, "http://[::1]:9001/droneview-logo.html",
		cfg.BrowseURL(&net.TCPAddr{IP: net.IPv6loopback, Port: 9001}))
	assert.Equal(t, "http://0.0.0.0:9002/droneview-logo.html",
		cfg.BrowseURL(&net.TCPAddr{IP: net.IPv6unspecified, Port: 9002}))
	assert.Equal(t, "http://localhost/droneview-logo.html via unix:/tmp/d.sock",
		cfg.BrowseURL(&net.UnixAddr{Name: "/tmp/d.sock", Net: "unix"}))
}
