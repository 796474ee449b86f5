// =============================================================================
// MonitorFlow 主入口
// =============================================================================
// 监控循环服务：周期性拉取数据、按检查点评估、执行即时动作并派发 AI 工作流
//
// 使用方法:
//
//	monitorflow serve                       # 启动监控循环与 HTTP 服务
//	monitorflow serve --config config.yaml  # 指定配置文件
//	monitorflow run-once                    # 只运行一个周期并输出报告
//	monitorflow validate                    # 校验配置与检查点
//	monitorflow checkpoints                 # 列出已登记与已启用的检查点
//	monitorflow migrate up                  # 运行审计库迁移
//	monitorflow version                     # 显示版本信息
//	monitorflow health                      # 健康检查
// =============================================================================

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/monitorflow/config"
	"github.com/BaSui01/monitorflow/internal/metrics"
	"github.com/BaSui01/monitorflow/scheduler/monitor"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// errUsage 参数错误，已输出帮助信息
var errUsage = errors.New("invalid usage")

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stdout)
		os.Exit(1)
	}

	if err := dispatch(os.Args[1], os.Args[2:], os.Stdout); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func dispatch(cmd string, args []string, out io.Writer) error {
	switch cmd {
	case "serve":
		return runServe(args)
	case "run-once":
		return runOnce(args, out)
	case "validate":
		return runValidate(args, out)
	case "checkpoints":
		return runCheckpoints(args, out)
	case "migrate":
		return runMigrate(args, out)
	case "version":
		printVersion(out)
		return nil
	case "health":
		return runHealthCheck(args, out)
	case "help", "-h", "--help":
		printUsage(out)
		return nil
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage(os.Stderr)
		return errUsage
	}
}

// loadConfig 加载并校验配置
func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader().WithValidator(func(c *config.Config) error { return c.Validate() })
	if path != "" {
		loader = loader.WithConfigPath(path)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// signalContext 在 SIGINT/SIGTERM 时取消
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// =============================================================================
// 🖥️ serve 命令
// =============================================================================

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to config file")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting MonitorFlow",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
		zap.String("monitor", cfg.Monitor.Name),
		zap.Duration("interval", cfg.Monitor.Interval()),
	)

	collector := metrics.NewCollector("monitorflow", logger)
	app, err := NewApp(cfg, logger, collector)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	srv := NewServer(app, logger)
	if err := srv.Start(ctx); err != nil {
		stop()
		_ = srv.Shutdown(context.Background())
		return err
	}

	waitErr := srv.Wait(ctx)
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}

	logger.Info("MonitorFlow stopped")
	return waitErr
}

// =============================================================================
// 🔁 run-once 命令
// =============================================================================

func runOnce(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("run-once", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to config file")
	asJSON := fs.Bool("json", false, "Print the cycle report as JSON")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	app, err := NewApp(cfg, logger, nil)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close(context.Background()) }()

	ctx, stop := signalContext()
	defer stop()

	report, runErr := app.monitor.RunOnce(ctx)
	if *asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		printCycleReport(out, report)
	}
	return runErr
}

func printCycleReport(out io.Writer, r monitor.CycleReport) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "cycle\t%s\n", r.CycleID)
	fmt.Fprintf(tw, "success\t%t\n", r.Success)
	fmt.Fprintf(tw, "duration\t%s\n", time.Duration(r.DurationMs)*time.Millisecond)
	fmt.Fprintf(tw, "items fetched\t%d\n", r.ItemsFetched)
	fmt.Fprintf(tw, "items processed\t%d\n", r.ItemsProcessed)
	fmt.Fprintf(tw, "matches\t%d\n", r.Matches)
	fmt.Fprintf(tw, "actions\t%d executed, %d failed\n", r.ActionsExecuted, r.ActionsFailed)
	fmt.Fprintf(tw, "ai executions\t%d executed, %d failed\n", r.AIExecuted, r.AIFailed)
	fmt.Fprintf(tw, "source errors\t%d\n", r.SourceErrors)
	if r.Error != "" {
		fmt.Fprintf(tw, "error\t%s\n", r.Error)
	}
	_ = tw.Flush()
}

// =============================================================================
// ✅ validate / checkpoints 命令
// =============================================================================

func runValidate(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to config file")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	reg, err := buildRegistry(cfg, zap.NewNop())
	if err != nil {
		return err
	}
	points, err := reg.AllEnabled(cfg.Monitor)
	if err != nil {
		return fmt.Errorf("resolve checking points: %w", err)
	}

	fmt.Fprintf(out, "config OK: monitor %q, interval %s, %d checking point(s) enabled\n",
		cfg.Monitor.Name, cfg.Monitor.Interval(), len(points))
	return nil
}

func runCheckpoints(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("checkpoints", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to config file")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	reg, err := buildRegistry(cfg, zap.NewNop())
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "Registered types:")
	for _, name := range reg.Names() {
		fmt.Fprintf(out, "  %s\n", name)
	}

	points, err := reg.AllEnabled(cfg.Monitor)
	if err != nil {
		return fmt.Errorf("resolve checking points: %w", err)
	}
	fmt.Fprintf(out, "\nEnabled for monitor %q (evaluation order):\n", cfg.Monitor.Name)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  NAME\tTYPE\tSTOP ON MATCH")
	for _, cp := range points {
		fmt.Fprintf(tw, "  %s\t%s\t%t\n", cp.Name(), cp.Type(), cp.StopOnMatch())
	}
	return tw.Flush()
}

// =============================================================================
// 🏥 健康检查命令
// =============================================================================

func runHealthCheck(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	addr := fs.String("addr", "http://localhost:8080", "Server address")
	ready := fs.Bool("ready", false, "Check /ready instead of /health")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	path := "/health"
	if *ready {
		path = "/ready"
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(*addr + path)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed: status %d", resp.StatusCode)
	}

	fmt.Fprintln(out, "OK")
	return nil
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion(out io.Writer) {
	fmt.Fprintf(out, "MonitorFlow %s\n", Version)
	fmt.Fprintf(out, "  Build Time: %s\n", BuildTime)
	fmt.Fprintf(out, "  Git Commit: %s\n", GitCommit)
}

func printUsage(out io.Writer) {
	fmt.Fprintln(out, `MonitorFlow - checking point monitoring loop

Usage:
  monitorflow <command> [options]

Commands:
  serve        Run the monitoring loop with the HTTP API
  run-once     Run a single monitoring cycle and print its report
  validate     Validate configuration and resolve checking points
  checkpoints  List registered and enabled checking points
  migrate      Audit database migration commands
  version      Show version information
  health       Check server health
  help         Show this help message

Options for 'serve', 'run-once', 'validate', 'checkpoints':
  --config <path>   Path to configuration file (YAML)

Options for 'run-once':
  --json            Print the cycle report as JSON

Examples:
  monitorflow serve --config /etc/monitorflow/config.yaml
  monitorflow run-once --json
  monitorflow migrate up --config /etc/monitorflow/config.yaml
  monitorflow health --addr http://localhost:8080 --ready
  monitorflow version`)
}

// =============================================================================
// 🔧 日志初始化
// =============================================================================

func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Format == "console",
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      outputs,
		ErrorOutputPaths: []string{"stderr"},
	}

	opts := []zap.Option{}
	if cfg.EnableCaller {
		opts = append(opts, zap.AddCaller())
	}
	if cfg.EnableStacktrace {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	logger, err := zapConfig.Build(opts...)
	if err != nil {
		// 回退到基本 logger
		logger, _ = zap.NewProduction()
	}
	return logger
}
