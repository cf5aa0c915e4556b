package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultReadTimeout     = 60 * time.Second
	DefaultWriteTimeout    = DefaultReadTimeout
	DefaultShutdownTimeout = 30 * time.Second

	// inheritedListenerEnv marks a child started by SIGUSR2; its listener is fd 3.
	inheritedListenerEnv = "QUESTMOCK_INHERITED_LISTENER"
	inheritedListenerFD  = 3
)

// ServerConfig sets the listen address and the server's deadlines.
type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type shutdownHook struct {
	name string
	fn   func(context.Context) error
}

// Server is an http.Server that drains on SIGINT/SIGTERM and hands its socket
// to a fresh process on SIGUSR2.
type Server struct {
	*http.Server

	shutdownTimeout time.Duration
	listener        net.Listener
	inherited       bool
	signals         chan os.Signal
	ready           chan struct{}
	done            chan struct{}
	hooks           []shutdownHook
}

// NewServer builds a Server for handler, filling unset deadlines with defaults.
func NewServer(handler http.Handler, cfg ServerConfig) *Server {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	return &Server{
		Server: &http.Server{
			Addr:         cfg.Addr,
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		shutdownTimeout: cfg.ShutdownTimeout,
		inherited:       os.Getenv(inheritedListenerEnv) != "",
		signals:         make(chan os.Signal, 1),
		ready:           make(chan struct{}),
		done:            make(chan struct{}),
	}
}

// OnShutdown registers a hook run after in-flight requests have drained.
// Hooks run in registration order and share the shutdown deadline.
func (srv *Server) OnShutdown(name string, hook func(context.Context) error) {
	srv.hooks = append(srv.hooks, shutdownHook{name: name, fn: hook})
}

// Ready is closed once the server is accepting connections.
func (srv *Server) Ready() <-chan struct{} {
	return srv.ready
}

// ListenAddr reports the bound address, or nil before Ready.
func (srv *Server) ListenAddr() net.Addr {
	if srv.listener == nil {
		return nil
	}
	return srv.listener.Addr()
}

// Stop triggers the same graceful shutdown as SIGTERM.
func (srv *Server) Stop() {
	select {
	case srv.signals <- syscall.SIGTERM:
	default:
	}
}

// ListenAndServe serves until a shutdown signal arrives and every hook has run.
func (srv *Server) ListenAndServe() error {
	ln, err := srv.listen()
	if err != nil {
		return err
	}
	srv.listener = ln

	signal.Notify(srv.signals, syscall.SIGTERM, syscall.SIGINT, syscall.SIGUSR2)
	defer signal.Stop(srv.signals)
	go srv.handleSignals()

	close(srv.ready)
	if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-srv.done
	return nil
}

func (srv *Server) listen() (net.Listener, error) {
	if srv.inherited {
		ln, err := net.FileListener(os.NewFile(inheritedListenerFD, "inherited-listener"))
		if err != nil {
			return nil, fmt.Errorf("inherit listener: %w", err)
		}
		return ln, nil
	}
	addr := srv.Addr
	if addr == "" {
		addr = ":http"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	return ln, nil
}

func (srv *Server) handleSignals() {
	for sig := range srv.signals {
		switch sig {
		case syscall.SIGUSR2:
			pid, err := srv.handOver()
			if err != nil {
				Logger.Error("restart failed, still serving", zap.Error(err))
				continue
			}
			Logger.Info("replacement process started", zap.Int("pid", pid))
		default:
			Logger.Info("shutting down", zap.String("signal", sig.String()))
		}
		srv.shutdown()
		return
	}
}

func (srv *Server) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), srv.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		Logger.Error("http drain incomplete", zap.Error(err))
	}
	for _, h := range srv.hooks {
		if err := h.fn(ctx); err != nil {
			Logger.Warn("shutdown hook failed", zap.String("hook", h.name), zap.Error(err))
		}
	}
	close(srv.done)
}

// handOver starts a copy of this binary that inherits the listening socket.
func (srv *Server) handOver() (int, error) {
	tcpLn, ok := srv.listener.(*net.TCPListener)
	if !ok {
		return 0, errors.New("listener is not a TCP listener")
	}
	file, err := tcpLn.File()
	if err != nil {
		return 0, fmt.Errorf("listener file: %w", err)
	}
	defer file.Close()

	cmd := exec.Command(os.Args[0], os.Args[1:]...)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	cmd.Env = append(os.Environ(), inheritedListenerEnv+"=1")
	cmd.ExtraFiles = []*os.File{file}
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start replacement: %w", err)
	}
	return cmd.Process.Pid, nil
}
