// =============================================================================
// 📦 MonitorFlow 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:       DefaultServerConfig(),
		Monitor:      DefaultMonitorConfig(),
		Steps:        DefaultStepsConfig(),
		Journal:      DefaultJournalConfig(),
		Orchestrator: DefaultOrchestratorConfig(),
		Actions:      DefaultActionsConfig(),
		Redis:        DefaultRedisConfig(),
		Database:     DefaultDatabaseConfig(),
		Log:          DefaultLogConfig(),
		Telemetry:    DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    50,
		RateLimitBurst:  100,
		JWTIssuer:       "monitorflow",
	}
}

// DefaultMonitorConfig 返回默认监控配置
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Name:                   "default-monitor",
		Description:            "MonitorFlow monitoring loop",
		Enabled:                true,
		IntervalSeconds:        300,
		CheckingPoints:         []CheckpointEntry{},
		MaxConcurrentAIActions: 1,
	}
}

// DefaultStepsConfig 返回默认步骤配置
func DefaultStepsConfig() StepsConfig {
	return StepsConfig{
		FetchTimeout:      5 * time.Minute,
		EvaluationTimeout: 30 * time.Second,
		ActionTimeout:     10 * time.Minute,
		Default: RetryConfig{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    3,
		},
		Evaluation: RetryConfig{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    10 * time.Second,
			MaximumAttempts:    2,
		},
		Action: RetryConfig{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    3,
		},
	}
}

// DefaultJournalConfig 返回默认步骤日志配置
func DefaultJournalConfig() JournalConfig {
	return JournalConfig{
		Type:            "memory",
		Dir:             "./data/journal",
		KeyPrefix:       "monitorflow:journal:",
		TTL:             24 * time.Hour,
		CleanupInterval: 5 * time.Minute,
	}
}

// DefaultOrchestratorConfig 返回默认编排服务配置
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		Type:             "mock",
		BaseURL:          "http://localhost:8081",
		RequestTimeout:   10 * time.Minute,
		JWTIssuer:        "monitorflow",
		TokenTTL:         5 * time.Minute,
		BreakerThreshold: 5,
		BreakerTimeout:   30 * time.Second,
	}
}

// DefaultActionsConfig 返回默认即时动作配置
func DefaultActionsConfig() ActionsConfig {
	return ActionsConfig{
		HTTPTimeout:      30 * time.Second,
		RateLimitRPS:     5,
		RateLimitBurst:   10,
		BreakerThreshold: 5,
		BreakerTimeout:   30 * time.Second,
		ClickUpBaseURL:   "https://api.clickup.com",
		GitHubBaseURL:    "https://api.github.com",
		SMTP: SMTPConfig{
			Port: 587,
		},
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Enabled:         false,
		Driver:          "sqlite",
		Host:            "localhost",
		Port:            5432,
		User:            "monitorflow",
		Password:        "",
		Name:            "monitorflow.db",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		AutoMigrate:     true,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "monitorflow",
		SampleRate:   0.1,
	}
}
