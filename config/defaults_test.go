package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig_ContainsAllSubConfigs(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, DefaultServerConfig(), cfg.Server)
	assert.Equal(t, DefaultMonitorConfig(), cfg.Monitor)
	assert.Equal(t, DefaultStepsConfig(), cfg.Steps)
	assert.Equal(t, DefaultJournalConfig(), cfg.Journal)
	assert.Equal(t, DefaultOrchestratorConfig(), cfg.Orchestrator)
	assert.Equal(t, DefaultActionsConfig(), cfg.Actions)
	assert.Equal(t, DefaultRedisConfig(), cfg.Redis)
	assert.Equal(t, DefaultDatabaseConfig(), cfg.Database)
	assert.Equal(t, DefaultLogConfig(), cfg.Log)
	assert.Equal(t, DefaultTelemetryConfig(), cfg.Telemetry)
}

func TestDefaultStepsConfig_RetryPresets(t *testing.T) {
	s := DefaultStepsConfig()

	assert.Equal(t, RetryConfig{
		InitialInterval:    time.Second,
		BackoffCoefficient: 2.0,
		MaximumInterval:    time.Minute,
		MaximumAttempts:    3,
	}, s.Default)
	assert.Equal(t, time.Second, s.Evaluation.InitialInterval)
	assert.Equal(t, time.Minute, s.Action.MaximumInterval)
}

func TestDefaultActionsConfig(t *testing.T) {
	a := DefaultActionsConfig()
	assert.Equal(t, 30*time.Second, a.HTTPTimeout)
	assert.Equal(t, "https://api.clickup.com", a.ClickUpBaseURL)
	assert.Equal(t, 587, a.SMTP.Port)
}

func TestDefaultTelemetryConfig(t *testing.T) {
	tc := DefaultTelemetryConfig()
	assert.False(t, tc.Enabled)
	assert.Equal(t, "monitorflow", tc.ServiceName)
	assert.Equal(t, 0.1, tc.SampleRate)
}
