package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BaSui01/monitorflow/api/handlers"
	"github.com/BaSui01/monitorflow/config"
	"github.com/BaSui01/monitorflow/internal/database"
	"github.com/BaSui01/monitorflow/internal/events"
	"github.com/BaSui01/monitorflow/internal/httpx"
	"github.com/BaSui01/monitorflow/internal/metrics"
	"github.com/BaSui01/monitorflow/internal/telemetry"
	"github.com/BaSui01/monitorflow/scheduler/actions"
	"github.com/BaSui01/monitorflow/scheduler/aiexec"
	"github.com/BaSui01/monitorflow/scheduler/checkpoint"
	"github.com/BaSui01/monitorflow/scheduler/checkpoint/builtin"
	"github.com/BaSui01/monitorflow/scheduler/journal"
	"github.com/BaSui01/monitorflow/scheduler/monitor"
	"github.com/BaSui01/monitorflow/scheduler/orchestrator"
	"github.com/BaSui01/monitorflow/scheduler/step"
	"github.com/BaSui01/monitorflow/scheduler/store"
	"go.uber.org/zap"
)

// =============================================================================
// 🧩 组件装配
// =============================================================================

// memoryStoreCapacity 未配置数据库时内存存储保留的记录数
const memoryStoreCapacity = 500

// storeWriteAttempts 审计写入事务的总尝试次数
const storeWriteAttempts = 3

// App 持有一个监控循环运行所需的全部组件
type App struct {
	cfg       *config.Config
	logger    *zap.Logger
	telemetry *telemetry.Providers
	collector *metrics.Collector
	registry  *checkpoint.Registry
	journal   journal.Journal
	db        *database.PoolManager
	store     store.Store
	hub       *events.Hub
	monitor   *monitor.Monitor
}

// buildRegistry 创建包含内置检查点的注册表
func buildRegistry(cfg *config.Config, logger *zap.Logger) (*checkpoint.Registry, error) {
	reg := checkpoint.NewRegistry(logger)
	err := builtin.Register(reg, builtin.Deps{
		HTTPClient: httpx.NewClient(cfg.Actions.HTTPTimeout),
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("register builtin checking points: %w", err)
	}
	return reg, nil
}

// NewApp 按配置装配组件。collector 为 nil 时不记录 Prometheus 指标。
func NewApp(cfg *config.Config, logger *zap.Logger, collector *metrics.Collector) (_ *App, err error) {
	app := &App{cfg: cfg, logger: logger, collector: collector}
	defer func() {
		if err != nil {
			_ = app.Close(context.Background())
		}
	}()

	if app.telemetry, err = telemetry.Init(cfg.Telemetry, cfg.Monitor.Name, logger); err != nil {
		// 遥测不可用不影响监控
		logger.Warn("failed to initialize telemetry", zap.Error(err))
		app.telemetry, err = nil, nil
	}

	if app.journal, err = journal.New(cfg.Journal, cfg.Redis, logger); err != nil {
		return nil, fmt.Errorf("open step journal: %w", err)
	}

	if app.store, err = app.openStore(); err != nil {
		return nil, err
	}

	orch, err := orchestrator.New(cfg.Orchestrator, logger)
	if err != nil {
		return nil, fmt.Errorf("create orchestrator client: %w", err)
	}

	if app.registry, err = buildRegistry(cfg, logger); err != nil {
		return nil, err
	}

	app.hub = events.NewHub(logger)

	runnerOpts := []step.Option{
		step.WithJournal(app.journal),
		step.WithTracer(telemetry.Tracer()),
	}
	dispatchOpts := []actions.Option{}
	aiOpts := []aiexec.Option{
		aiexec.WithStore(app.store),
		aiexec.WithPublisher(app.hub),
		aiexec.WithDryRun(cfg.Orchestrator.DryRun),
		aiexec.WithDebug(cfg.Log.Level == "debug"),
	}
	recorders := loopRecorders{}
	if collector != nil {
		runnerOpts = append(runnerOpts, step.WithRecorder(collector))
		dispatchOpts = append(dispatchOpts, actions.WithRecorder(collector))
		aiOpts = append(aiOpts, aiexec.WithRecorder(collector))
		recorders = append(recorders, collector)
	}
	if app.telemetry.Enabled() {
		instruments, ierr := telemetry.NewLoopInstruments(nil)
		if ierr != nil {
			logger.Warn("failed to create otel loop instruments", zap.Error(ierr))
		} else {
			recorders = append(recorders, instruments)
		}
	}

	app.monitor, err = monitor.New(cfg.Monitor, monitor.Runtime{
		Registry:   app.registry,
		Runner:     step.NewRunner(logger, runnerOpts...),
		Actions:    actions.NewDispatcher(cfg.Actions, logger, dispatchOpts...),
		AI:         aiexec.New(orch, logger, aiOpts...),
		Store:      app.store,
		Publisher:  app.hub,
		Recorder:   recorders,
		Logger:     logger,
		Steps:      cfg.Steps,
		JournalTTL: cfg.Journal.TTL,
	})
	if err != nil {
		return nil, err
	}
	return app, nil
}

// openStore 启用数据库时使用 gorm 存储，否则使用内存存储
func (a *App) openStore() (store.Store, error) {
	if !a.cfg.Database.Enabled {
		return store.NewMemoryStore(memoryStoreCapacity), nil
	}

	pm, err := database.Open(a.cfg.Database, a.logger)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}
	a.db = pm

	gs := store.NewGormStore(pm.DB(), a.logger, store.WithTransactor(pm, storeWriteAttempts))
	if a.cfg.Database.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := gs.AutoMigrate(ctx); err != nil {
			return nil, fmt.Errorf("auto-migrate audit tables: %w", err)
		}
	}
	return gs, nil
}

// readyProbes 就绪探针：循环已启动、步骤日志与审计库可用
func (a *App) readyProbes() []handlers.Probe {
	probes := []handlers.Probe{
		handlers.NewProbe("monitor", func(context.Context) error {
			if a.cfg.Monitor.Enabled && !a.monitor.Started() {
				return errors.New("monitoring loop has not started")
			}
			return nil
		}),
		handlers.NewProbe("journal", func(ctx context.Context) error {
			return a.journal.Ping(ctx)
		}),
	}
	if a.db != nil {
		probes = append(probes, handlers.NewProbe("database", a.db.Ping))
	}
	return probes
}

// Close 释放组件，可重复调用
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.hub != nil {
		a.hub.Close()
		a.hub = nil
	}
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close journal: %w", err))
		}
		a.journal = nil
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
		a.db = nil
	}
	if a.telemetry != nil {
		if err := a.telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		a.telemetry = nil
	}
	return errors.Join(errs...)
}

// =============================================================================
// 📈 循环指标扇出
// =============================================================================

// loopRecorders 将循环指标同时写入 Prometheus 与 OTel
type loopRecorders []monitor.Recorder

func (rs loopRecorders) RecordCycle(status string, d time.Duration, items int) {
	for _, r := range rs {
		r.RecordCycle(status, d, items)
	}
}

func (rs loopRecorders) RecordFetch(source, status string, items int, d time.Duration) {
	for _, r := range rs {
		r.RecordFetch(source, status, items, d)
	}
}

func (rs loopRecorders) RecordEvaluation(checkpoint, result string, d time.Duration) {
	for _, r := range rs {
		r.RecordEvaluation(checkpoint, result, d)
	}
}

func (rs loopRecorders) RecordError(class, checkpoint string) {
	for _, r := range rs {
		r.RecordError(class, checkpoint)
	}
}
