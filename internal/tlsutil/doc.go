// Package tlsutil 提供集中式 TLS 配置，
// 供出站动作与编排调用的 HTTP 客户端以及 API 服务端使用（TLS 1.2+，仅 AEAD 密码套件）。
package tlsutil
