package dirserve

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
)

type Config struct {
	RootDir     string `json:"rootdir,omitempty"`
	Fallthrough bool   `json:"fallthrough,omitempty"`
}

func CreateConfig() *Config {
	return &Config{}
}

// Middleware serves a root directory and optionally hands unknown paths to
// the next handler.
type Middleware struct {
	next        http.Handler
	hdl         *Handler
	name        string
	passThrough bool
}

// OpenRoot opens dir as a file system confined to dir. Symlinks pointing
// outside dir cannot be followed.
func OpenRoot(dir string) (fs.StatFS, error) {
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("open root %q: %w", dir, err)
	}
	info, err := root.Stat(".")
	if err != nil {
		root.Close()
		return nil, fmt.Errorf("stat root %q: %w", dir, err)
	}
	if !info.IsDir() {
		root.Close()
		return nil, fmt.Errorf("root %q is not a directory", dir)
	}
	if _, err := fs.ReadDir(root.FS(), "."); err != nil {
		root.Close()
		return nil, fmt.Errorf("read root %q: %w", dir, err)
	}
	return root.FS().(fs.StatFS), nil
}

func New(ctx context.Context, next http.Handler, config *Config, name string) (http.Handler, error) {
	if config.RootDir == "" {
		return nil, fmt.Errorf("rootdir cannot be empty")
	}
	fsys, err := OpenRoot(config.RootDir)
	if err != nil {
		return nil, err
	}
	slog.Info("dirserve middleware initialized", "name", name, "rootdir", config.RootDir, "fallthrough", config.Fallthrough)
	return &Middleware{
		next:        next,
		hdl:         NewHandler(fsys),
		name:        name,
		passThrough: config.Fallthrough,
	}, nil
}

func (m *Middleware) ServeHTTP(res http.ResponseWriter, req *http.Request) {
	if m.passThrough && m.next != nil && !m.hdl.Exists(req.URL.Path) {
		slog.Debug("fallthrough", "name", m.name, "path", req.URL.Path)
		m.next.ServeHTTP(res, req)
		return
	}
	m.hdl.ServeHTTP(res, req)
}
