package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/BaSui01/monitorflow/api/handlers"
	"github.com/BaSui01/monitorflow/internal/events"
	"github.com/BaSui01/monitorflow/internal/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// =============================================================================
// 🖥️ 服务器
// =============================================================================

// Server 运行监控循环并对外提供 API 与 metrics 端口
type Server struct {
	app    *App
	logger *zap.Logger

	httpManager    *server.Manager
	metricsManager *server.Manager

	loopDone chan error
	wg       sync.WaitGroup
}

// NewServer 创建服务器
func NewServer(app *App, logger *zap.Logger) *Server {
	return &Server{
		app:      app,
		logger:   logger.With(zap.String("component", "server")),
		loopDone: make(chan error, 1),
	}
}

// Handler 返回带中间件的 API 路由
func (s *Server) Handler(ctx context.Context) http.Handler {
	cfg := s.app.cfg

	health := handlers.NewHealthHandler(s.logger)
	for _, c := range s.app.readyProbes() {
		health.RegisterProbe(c)
	}
	mon := handlers.NewMonitorHandler(s.app.monitor, s.app.registry, s.app.store, s.logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", health.HandleHealth)
	mux.HandleFunc("GET /ready", health.HandleReady)
	mux.HandleFunc("GET /version", health.HandleVersion(Version, BuildTime, GitCommit))
	mux.HandleFunc("GET /v1/status", mon.HandleStatus)
	mux.HandleFunc("GET /v1/checkpoints", mon.HandleCheckpoints)
	mux.HandleFunc("GET /v1/cycles", mon.HandleCycles)
	mux.HandleFunc("GET /v1/ai-results", mon.HandleAIResults)
	mux.Handle("GET /v1/events", events.Handler(s.app.hub, s.logger))

	middlewares := []Middleware{
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		OTelTracing(),
		RequestLogger(s.logger),
	}
	if s.app.collector != nil {
		middlewares = append(middlewares, MetricsMiddleware(s.app.collector))
	}
	middlewares = append(middlewares,
		RateLimiter(ctx, cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst, s.logger),
		JWTAuth(cfg.Server.JWTSecret, cfg.Server.JWTIssuer, "/v1/", s.logger),
	)
	return Chain(mux, middlewares...)
}

// Start 启动 HTTP 端口与监控循环（非阻塞）
func (s *Server) Start(ctx context.Context) error {
	cfg := s.app.cfg.Server

	if cfg.HTTPPort > 0 {
		s.httpManager = server.NewManager(s.Handler(ctx), server.FromServerConfig(cfg, "api", cfg.HTTPPort), s.logger)
		if err := s.httpManager.Start(); err != nil {
			return fmt.Errorf("start api server: %w", err)
		}
	}
	if cfg.MetricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		s.metricsManager = server.NewManager(mux, server.FromServerConfig(cfg, "metrics", cfg.MetricsPort), s.logger)
		if err := s.metricsManager.Start(); err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loopDone <- s.app.monitor.Run(ctx)
	}()
	return nil
}

// Wait 阻塞直到 ctx 取消、循环因致命错误退出或某个端口异常退出
func (s *Server) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown requested")
		return nil
	case err := <-s.loopDone:
		// 循环已退出，放回供 Shutdown 判断
		s.loopDone <- err
		if err != nil {
			return fmt.Errorf("monitoring loop stopped: %w", err)
		}
		s.logger.Info("monitoring loop finished")
		return nil
	case err := <-errorsOf(s.httpManager):
		return fmt.Errorf("api server: %w", err)
	case err := <-errorsOf(s.metricsManager):
		return fmt.Errorf("metrics server: %w", err)
	}
}

// Shutdown 关闭端口、等待循环退出并释放组件。调用方需先取消 Start 的 ctx。
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	for _, m := range []*server.Manager{s.httpManager, s.metricsManager} {
		if m == nil {
			continue
		}
		if err := m.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("monitoring loop did not stop: %w", ctx.Err()))
	}

	if err := s.app.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// errorsOf 未启动的端口返回永不就绪的通道
func errorsOf(m *server.Manager) <-chan error {
	if m == nil {
		return nil
	}
	return m.Errors()
}
