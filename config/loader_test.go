// 配置加载器与默认配置测试。
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- 默认配置测试 ---

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, 9091, cfg.Server.MetricsPort)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)

	// 监控循环默认值
	assert.Equal(t, 300, cfg.Monitor.IntervalSeconds)
	assert.Equal(t, 1, cfg.Monitor.MaxConcurrentAIActions)
	assert.Empty(t, cfg.Monitor.CheckingPoints)

	// 步骤策略默认值
	assert.Equal(t, 5*time.Minute, cfg.Steps.FetchTimeout)
	assert.Equal(t, 30*time.Second, cfg.Steps.EvaluationTimeout)
	assert.Equal(t, 10*time.Minute, cfg.Steps.ActionTimeout)
	assert.Equal(t, 2, cfg.Steps.Evaluation.MaximumAttempts)
	assert.Equal(t, 10*time.Second, cfg.Steps.Evaluation.MaximumInterval)
	assert.Equal(t, 3, cfg.Steps.Action.MaximumAttempts)

	assert.Equal(t, "memory", cfg.Journal.Type)
	assert.Equal(t, "mock", cfg.Orchestrator.Type)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "info", cfg.Log.Level)

	require.NoError(t, cfg.Validate())
}

// --- Loader 测试 ---

func TestLoader_LoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, "default-monitor", cfg.Monitor.Name)
}

func TestLoader_LoadFromYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "monitorflow.yaml")

	yamlContent := `
server:
  http_port: 8888
  read_timeout: 60s

monitor:
  name: "ops-monitor"
  interval_seconds: 120
  max_concurrent_ai_actions: 3
  cycle_timeout: 2m
  checking_points:
    - type: clickup_urgent_task_cp
      config:
        source_url: "http://tasks.local/urgent"
        urgent_keywords: ["prod", "outage"]
    - type: slack_bot_mention_cp
      enabled: false

journal:
  type: redis
  ttl: 1h
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0o644))

	cfg, err := NewLoader().WithConfigPath(configPath).Load()
	require.NoError(t, err)

	assert.Equal(t, 8888, cfg.Server.HTTPPort)
	assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)
	// 未配置的字段保持默认值
	assert.Equal(t, 9091, cfg.Server.MetricsPort)

	assert.Equal(t, "ops-monitor", cfg.Monitor.Name)
	assert.Equal(t, 120, cfg.Monitor.IntervalSeconds)
	assert.Equal(t, 3, cfg.Monitor.MaxConcurrentAIActions)
	assert.Equal(t, 2*time.Minute, cfg.Monitor.CycleTimeout)

	require.Len(t, cfg.Monitor.CheckingPoints, 2)
	first := cfg.Monitor.CheckingPoints[0]
	assert.Equal(t, "clickup_urgent_task_cp", first.Type)
	assert.True(t, first.IsEnabled())
	assert.Equal(t, "http://tasks.local/urgent", first.Config["source_url"])
	assert.False(t, cfg.Monitor.CheckingPoints[1].IsEnabled())

	assert.Equal(t, "redis", cfg.Journal.Type)
	assert.Equal(t, time.Hour, cfg.Journal.TTL)
	assert.Equal(t, "monitorflow:journal:", cfg.Journal.KeyPrefix)
}

func TestLoader_LoadFromEnv(t *testing.T) {
	t.Setenv("MONITORFLOW_SERVER_HTTP_PORT", "7777")
	t.Setenv("MONITORFLOW_MONITOR_INTERVAL_SECONDS", "60")
	t.Setenv("MONITORFLOW_MONITOR_CYCLE_TIMEOUT", "90s")
	t.Setenv("MONITORFLOW_STEPS_EVALUATION_RETRY_MAXIMUM_ATTEMPTS", "4")
	t.Setenv("MONITORFLOW_STEPS_ACTION_RETRY_BACKOFF_COEFFICIENT", "1.5")
	t.Setenv("MONITORFLOW_ORCHESTRATOR_MOCK_FAIL_WORKFLOWS", "a_workflow, b_workflow")
	t.Setenv("MONITORFLOW_LOG_ENABLE_STACKTRACE", "true")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.HTTPPort)
	assert.Equal(t, 60, cfg.Monitor.IntervalSeconds)
	assert.Equal(t, 90*time.Second, cfg.Monitor.CycleTimeout)
	assert.Equal(t, 4, cfg.Steps.Evaluation.MaximumAttempts)
	assert.Equal(t, 1.5, cfg.Steps.Action.BackoffCoefficient)
	assert.Equal(t, []string{"a_workflow", "b_workflow"}, cfg.Orchestrator.MockFailWorkflows)
	assert.True(t, cfg.Log.EnableStacktrace)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("monitor:\n  name: from-yaml\n"), 0o644))

	t.Setenv("MONITORFLOW_MONITOR_NAME", "from-env")

	cfg, err := NewLoader().WithConfigPath(configPath).Load()
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Monitor.Name)
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	t.Setenv("OPS_MONITOR_NAME", "custom")

	cfg, err := NewLoader().WithEnvPrefix("OPS").Load()
	require.NoError(t, err)
	assert.Equal(t, "custom", cfg.Monitor.Name)
}

func TestLoader_InvalidEnvValue(t *testing.T) {
	t.Setenv("MONITORFLOW_MONITOR_INTERVAL_SECONDS", "soon")

	_, err := NewLoader().Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MONITORFLOW_MONITOR_INTERVAL_SECONDS")
}

func TestLoader_WithValidator(t *testing.T) {
	cfg, err := NewLoader().WithValidator((*Config).Validate).Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	t.Setenv("MONITORFLOW_MONITOR_INTERVAL_SECONDS", "5")
	_, err = NewLoader().WithValidator((*Config).Validate).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "interval_seconds must be at least 10")
}

func TestLoader_NonExistentFile(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/nonexistent/monitorflow.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, 300, cfg.Monitor.IntervalSeconds)
}

func TestLoader_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "bad.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("monitor: [unclosed"), 0o644))

	_, err := NewLoader().WithConfigPath(configPath).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{name: "defaults", modify: func(*Config) {}},
		{name: "bad port", modify: func(c *Config) { c.Server.HTTPPort = 70000 }, wantErr: "invalid HTTP port"},
		{name: "tls cert without key", modify: func(c *Config) { c.Server.TLSCertFile = "cert.pem" }, wantErr: "set together"},
		{name: "empty monitor name", modify: func(c *Config) { c.Monitor.Name = " " }, wantErr: "monitor.name"},
		{name: "unknown journal", modify: func(c *Config) { c.Journal.Type = "etcd" }, wantErr: "unknown journal type"},
		{name: "file journal without dir", modify: func(c *Config) {
			c.Journal.Type = "file"
			c.Journal.Dir = ""
		}, wantErr: "journal.dir"},
		{name: "http orchestrator without url", modify: func(c *Config) {
			c.Orchestrator.Type = "http"
			c.Orchestrator.BaseURL = ""
		}, wantErr: "base_url"},
		{name: "bad db driver", modify: func(c *Config) {
			c.Database.Enabled = true
			c.Database.Driver = "oracle"
		}, wantErr: "unsupported database driver"},
		{name: "empty checkpoint type", modify: func(c *Config) {
			c.Monitor.CheckingPoints = []CheckpointEntry{{Type: ""}}
		}, wantErr: "checking_points[0].type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMonitorConfig_Helpers(t *testing.T) {
	m := DefaultMonitorConfig()
	assert.Equal(t, 5*time.Minute, m.Interval())

	m.MaxConcurrentAIActions = 0
	assert.Equal(t, 1, m.AIConcurrency())
	m.MaxConcurrentAIActions = 4
	assert.Equal(t, 4, m.AIConcurrency())

	off := false
	assert.False(t, CheckpointEntry{Type: "x", Enabled: &off}.IsEnabled())
	assert.True(t, CheckpointEntry{Type: "x"}.IsEnabled())
}

func TestDatabaseConfig_DSN(t *testing.T) {
	pg := DatabaseConfig{Driver: "postgres", Host: "db", Port: 5432, User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=n sslmode=disable", pg.DSN())

	my := DatabaseConfig{Driver: "mysql", Host: "db", Port: 3306, User: "u", Password: "p", Name: "n"}
	assert.Equal(t, "u:p@tcp(db:3306)/n?parseTime=true", my.DSN())

	lite := DatabaseConfig{Driver: "sqlite", Name: "file.db"}
	assert.Equal(t, "file.db", lite.DSN())

	assert.Empty(t, (&DatabaseConfig{Driver: "oracle"}).DSN())
}

func TestMustLoad_InvalidFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "bad.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("monitor: [unclosed"), 0o644))

	assert.Panics(t, func() { MustLoad(configPath) })
}
