// Package server binds the listen address and runs the HTTP loop until its
// context is cancelled.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"syscall"

	"golang.org/x/net/netutil"

	"github.com/wtnb75/dirserve/internal/config"
)

// ErrAddrInUse is returned by Listen when another process holds the address.
var ErrAddrInUse = errors.New("address already in use")

// Listen binds addr. A "unix:", "tcp:", "tcp4:" or "tcp6:" prefix selects the
// network, plain addresses are tcp.
func Listen(addr string) (net.Listener, error) {
	network, address := "tcp", addr
	protos := strings.SplitN(addr, ":", 2)
	switch protos[0] {
	case "unix", "tcp", "tcp4", "tcp6":
		network, address = protos[0], protos[1]
	}
	ln, err := net.Listen(network, address)
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return nil, fmt.Errorf("listen %s: %w: %w", addr, ErrAddrInUse, err)
		}
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return ln, nil
}

type Server struct {
	cfg     *config.Config
	handler http.Handler
	out     io.Writer
}

// New returns a server for cfg. The startup banner goes to out.
func New(cfg *config.Config, handler http.Handler, out io.Writer) *Server {
	return &Server{cfg: cfg, handler: handler, out: out}
}

// Run binds the configured address, prints the banner and serves until ctx
// is done. Bind failures are returned immediately.
func (s *Server) Run(ctx context.Context) error {
	ln, err := Listen(s.cfg.Addr())
	if err != nil {
		return err
	}
	s.Banner(ln.Addr())
	return s.Serve(ctx, ln)
}

// Banner writes the two startup lines for the bound address.
func (s *Server) Banner(addr net.Addr) {
	if tcp, ok := addr.(*net.TCPAddr); ok {
		fmt.Fprintf(s.out, "Serving at port %d\n", tcp.Port)
	} else {
		fmt.Fprintf(s.out, "Serving at %s:%s\n", addr.Network(), addr.String())
	}
	fmt.Fprintf(s.out, "Open: %s\n", s.cfg.BrowseURL(addr))
}

// Serve accepts connections on ln until ctx is done, then shuts down
// gracefully within the configured timeout. ln is closed on return.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:  s.handler,
		ErrorLog: slog.NewLogLogger(slog.Default().Handler(), slog.LevelWarn),
	}
	if s.cfg.MaxConns > 0 {
		ln = netutil.LimitListener(ln, s.cfg.MaxConns)
		// a kept-alive connection would hold the only slot
		srv.SetKeepAlivesEnabled(false)
	}
	slog.Info("starting server", "addr", ln.Addr().String(), "root", s.cfg.Root, "max_conns", s.cfg.MaxConns)

	errc := make(chan error, 1)
	go func() {
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down server", "timeout", s.cfg.ShutdownTimeout)
	sctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		srv.Close()
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
