package tailnet

import (
	"context"
	"net"
	"time"

	"tailscale.com/tsnet"
)

type Config struct {
	// Disabled dials the gateway directly instead of over the tailnet.
	Disabled bool
	Hostname string
	StateDir string
	Logf     func(format string, args ...interface{})
}

type Server struct {
	srv    *tsnet.Server
	direct *net.Dialer
}

func New(cfg Config) *Server {
	if cfg.Disabled {
		return &Server{direct: &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}}
	}
	return &Server{
		srv: &tsnet.Server{
			Hostname: cfg.Hostname,
			Dir:      cfg.StateDir,
			Logf:     cfg.Logf,
		},
	}
}

func (s *Server) Enabled() bool {
	return s.srv != nil
}

func (s *Server) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if s.srv == nil {
		return s.direct.DialContext(ctx, network, address)
	}
	return s.srv.Dial(ctx, network, address)
}

func (s *Server) Up(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	_, err := s.srv.Up(ctx)
	return err
}

func (s *Server) Close() error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Close()
}
