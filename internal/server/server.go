package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/iudanet/dailyuse/internal/server/handlers"
	"github.com/iudanet/dailyuse/internal/server/middleware"
)

// ShutdownTimeout время на завершение активных запросов при остановке
const ShutdownTimeout = 5 * time.Second

// ErrNotLoopback is returned when the listen address is reachable from the network
var ErrNotLoopback = errors.New("listen address must be a loopback address")

// Config содержит настройки HTTP транспорта
type Config struct {
	Addr    string
	Version string
}

// Server - локальный HTTP транспорт для IPC операций
type Server struct {
	logger   *slog.Logger
	handler  http.Handler
	listener net.Listener
	cfg      Config
}

// New создает сервер. Адрес должен быть loopback: операции не требуют аутентификации.
// GET /session регистрируется, только если tokens не nil.
func New(cfg Config, logger *slog.Logger, dispatcher handlers.Dispatcher, db handlers.Pinger, tokens middleware.TokenVerifier) (*Server, error) {
	if err := checkLoopback(cfg.Addr); err != nil {
		return nil, err
	}

	ipcHandler := handlers.NewIPCHandler(logger, dispatcher)
	healthHandler := handlers.NewHealthHandler(logger, db, cfg.Version)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /ipc/{op}", ipcHandler.Handle)
	mux.HandleFunc("GET /health", healthHandler.Health)
	if tokens != nil {
		sessionHandler := handlers.NewSessionHandler(logger)
		mux.Handle("GET /session", middleware.Auth(logger, tokens)(http.HandlerFunc(sessionHandler.Current)))
	}

	// Recovery снаружи, чтобы перехватывать panic и в логировании
	var handler http.Handler = mux
	handler = middleware.Logging(logger, "/health")(handler)
	handler = middleware.Recovery(logger)(handler)

	return &Server{
		logger:  logger,
		handler: handler,
		cfg:     cfg,
	}, nil
}

// Handler returns the root handler with middleware applied
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Listen открывает сокет. Вызывается до Serve, чтобы адрес был известен заранее.
func (s *Server) Listen() (net.Addr, error) {
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	s.listener = listener
	return listener.Addr(), nil
}

// Run обслуживает запросы до отмены ctx, затем корректно завершает работу
func (s *Server) Run(ctx context.Context) error {
	if s.listener == nil {
		if _, err := s.Listen(); err != nil {
			return err
		}
	}

	httpServer := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return context.WithoutCancel(ctx)
		},
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server started", slog.String("addr", s.listener.Addr().String()))
		if err := httpServer.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// checkLoopback отклоняет адреса, доступные из сети
func checkLoopback(addr string) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid listen address %q: %w", addr, err)
	}

	if host == "localhost" {
		return nil
	}

	ip := net.ParseIP(host)
	if ip == nil || !ip.IsLoopback() {
		return fmt.Errorf("%w: %q", ErrNotLoopback, addr)
	}

	return nil
}
