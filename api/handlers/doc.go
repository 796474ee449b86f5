// Copyright (c) MonitorFlow Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 MonitorFlow HTTP API 的请求处理器实现。

# 核心类型

  - HealthHandler: 存活与就绪检查（/health, /ready）以及 /version
  - MonitorHandler: 循环状态、检查点、周期历史与 AI 结果查询
  - Response: 统一 JSON 响应结构（success + data + error + timestamp）
  - ResponseWriter: 包装 http.ResponseWriter 以捕获状态码，支持 WebSocket 升级

所有处理器只读，不会改变监控循环的状态。
*/
package handlers
