// Copyright (c) MonitorFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 MonitorFlow 监控循环的程序入口。

# 概述

cmd/monitorflow 装配监控循环的全部组件（检查点注册表、步骤日志、
即时动作分发、AI 子执行、审计库）并对外提供只读 HTTP API、
WebSocket 事件流与 Prometheus 指标。

# 核心类型

  - App       : 按配置装配的组件集合，负责就绪检查与按序关闭
  - Server    : API 与 Metrics 双端口，后台运行监控循环
  - Middleware: HTTP 中间件函数签名 func(http.Handler) http.Handler

# 主要能力

  - 子命令：serve、run-once、validate、checkpoints、migrate、version、health
  - 中间件链：Recovery、RequestID、SecurityHeaders、OTelTracing、
    RequestLogger、Metrics、RateLimiter、JWTAuth（仅 /v1/）
  - 优雅关闭：信号监听 → 关闭 HTTP → 关闭 Metrics → 等待循环退出 → 关闭组件
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
