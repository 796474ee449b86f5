// Package api 定义 MonitorFlow HTTP API 的响应类型。
//
// # API Overview
//
// API 端口只读地暴露监控循环的状态：
//   - GET /health, /ready, /version
//   - GET /v1/status       循环状态与最近一个周期的报告
//   - GET /v1/checkpoints  已登记与已启用的检查点
//   - GET /v1/cycles       周期摘要历史（需要审计存储）
//   - GET /v1/ai-results   AI 子执行结果，可按检查点、条目、周期、成功与否过滤
//   - GET /v1/events       循环事件的 WebSocket 实时流
//
// # Authentication
//
// 配置了 server.jwt_secret 时，/v1/ 下的路径需要 HS256 Bearer token：
//
//	Authorization: Bearer <token>
//
// 处理器实现在 handlers 子包中。
package api
