package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/gitpulse/pkg/domain/interfaces"
	"github.com/m-mizutani/gitpulse/pkg/domain/types"
)

const (
	// DefaultHookAddr is the default push channel listen address
	DefaultHookAddr = "127.0.0.1:47321"

	// DefaultSubscriberAddr is the default subscriber channel listen address
	DefaultSubscriberAddr = "127.0.0.1:47322"
)

// config holds internal HTTP server configuration
type config struct {
	addr         string
	sendBuffer   int
	writeTimeout time.Duration
}

// Option is a functional option for Server configuration
type Option func(*config)

// WithAddr sets the server address. Only loopback addresses are accepted.
func WithAddr(addr string) Option {
	return func(c *config) {
		c.addr = addr
	}
}

// WithSendBuffer sets the per-subscriber outbound queue length
func WithSendBuffer(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.sendBuffer = n
		}
	}
}

// WithWriteTimeout sets the websocket write deadline
func WithWriteTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.writeTimeout = d
		}
	}
}

// Server is one loopback HTTP listener
type Server struct {
	*http.Server
	stopOnce sync.Once
	stopErr  error
}

func newConfig(addr string, opts []Option) (*config, error) {
	cfg := &config{
		addr:         addr,
		sendBuffer:   defaultSendBuffer,
		writeTimeout: defaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if err := validateLoopback(cfg.addr); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newRouter(ctx context.Context) *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(LoggingMiddleware(ctx))
	router.Use(middleware.Recoverer)
	return router
}

func newServer(addr string, router http.Handler) *Server {
	return &Server{
		Server: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 15 * time.Second,
		},
	}
}

// NewHookServer creates the push channel server serving POST /hooks/git
func NewHookServer(ctx context.Context, hook *HookHandler, opts ...Option) (*Server, error) {
	cfg, err := newConfig(DefaultHookAddr, opts)
	if err != nil {
		return nil, err
	}

	router := newRouter(ctx)
	router.Get("/health", healthHandler(nil, nil))
	router.Post("/hooks/git", hook.Handle)

	return newServer(cfg.addr, router), nil
}

// NewSubscriberServer creates the subscriber channel server: the websocket
// stream plus REST helpers for selecting a repository and reading the baseline.
func NewSubscriberServer(
	ctx context.Context,
	tracker interfaces.TrackerUseCase,
	dispatcher interfaces.DispatcherUseCase,
	opts ...Option,
) (*Server, error) {
	cfg, err := newConfig(DefaultSubscriberAddr, opts)
	if err != nil {
		return nil, err
	}

	ws := newStreamHandler(tracker, dispatcher, cfg.sendBuffer, cfg.writeTimeout)
	api := &apiHandler{tracker: tracker}

	router := newRouter(ctx)
	router.Get("/health", healthHandler(tracker, dispatcher))
	router.Get("/ws", ws.Handle)
	router.Route("/api", func(r chi.Router) {
		r.Post("/repository", api.selectRepository)
		r.Get("/baseline", api.baseline)
	})

	srv := newServer(cfg.addr, router)
	srv.RegisterOnShutdown(ws.closeAll)
	return srv, nil
}

// Listen binds the server address. An address already in use is reported as
// types.ErrPortInUse.
func (s *Server) Listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return nil, goerr.Wrap(types.ErrPortInUse, "listen failed", goerr.V("addr", s.Addr))
		}
		return nil, goerr.Wrap(err, "listen failed", goerr.V("addr", s.Addr))
	}
	return ln, nil
}

// Stop gracefully shuts the server down. Later calls return the first result.
func (s *Server) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() {
		if err := s.Shutdown(ctx); err != nil {
			s.stopErr = goerr.Wrap(err, "failed to shutdown server", goerr.V("addr", s.Addr))
		}
	})
	return s.stopErr
}

// validateLoopback rejects addresses that would bind a non-loopback interface
func validateLoopback(addr string) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return goerr.Wrap(err, "invalid listen address", goerr.V("addr", addr))
	}
	if host == "localhost" {
		return nil
	}
	ip := net.ParseIP(host)
	if ip == nil || !ip.IsLoopback() {
		return goerr.New("listen address must be loopback", goerr.V("addr", addr))
	}
	return nil
}
